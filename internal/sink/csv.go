package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/export"
)

// CSVAppender appends wide rows to a local CSV file. The first line is the
// header; a row with columns the header lacks extends it in place while the
// existing rows stay as written.
type CSVAppender struct {
	path string
	lock *fileLock
	mu   sync.Mutex
}

// NewCSVAppender creates an appender for path. The file is created on the
// first append.
func NewCSVAppender(path string) *CSVAppender {
	return &CSVAppender{path: path, lock: newFileLock(path)}
}

func (a *CSVAppender) Name() string { return TargetCSV }

// AppendRow writes row under an exclusive file lock.
func (a *CSVAppender) AppendRow(ctx context.Context, row domain.WideRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := a.lock.Lock(); err != nil {
		return err
	}
	defer a.lock.Unlock()

	data, err := os.ReadFile(a.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", a.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, row.Columns, row); err != nil {
			return err
		}
		return atomicWrite(a.path, buf.Bytes())
	}

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", a.path, err)
	}

	merged, extended := export.MergeHeader(header, row.Columns)
	if extended {
		return a.rewriteHeader(data, merged, row)
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", a.path, err)
	}
	if err := export.AppendCSV(f, header, row); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// rewriteHeader replaces the first line with header and appends row. The
// bytes of the existing rows are kept unchanged.
func (a *CSVAppender) rewriteHeader(data []byte, header []string, row domain.WideRow) error {
	body := []byte{}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		body = data[i+1:]
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, header); err != nil {
		return err
	}
	buf.Write(body)
	if len(body) > 0 && body[len(body)-1] != '\n' {
		buf.WriteByte('\n')
	}
	if err := export.AppendCSV(&buf, header, row); err != nil {
		return err
	}
	return atomicWrite(a.path, buf.Bytes())
}

// Read returns the header and every row of the file.
func (a *CSVAppender) Read() ([]string, []domain.WideRow, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.Open(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", a.path, err)
	}
	defer f.Close()
	return export.ReadCSV(f)
}
