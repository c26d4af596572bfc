package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/screening-server/internal/domain"
)

// WriteCSV writes header followed by each row in header order.
func WriteCSV(w io.Writer, header []string, rows ...domain.WideRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return writeRows(cw, header, rows)
}

// AppendCSV writes rows in header order without a header line.
func AppendCSV(w io.Writer, header []string, rows ...domain.WideRow) error {
	return writeRows(csv.NewWriter(w), header, rows)
}

func writeRows(cw *csv.Writer, header []string, rows []domain.WideRow) error {
	for _, row := range rows {
		if err := cw.Write(row.Ordered(header)); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a header and its rows.
func ReadCSV(r io.Reader) ([]string, []domain.WideRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	header := records[0]
	rows := make([]domain.WideRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		values := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				values[col] = rec[i]
			} else {
				values[col] = ""
			}
		}
		rows = append(rows, domain.WideRow{Columns: header, Values: values})
	}
	return header, rows, nil
}
