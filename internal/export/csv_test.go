package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV_RoundTrip(t *testing.T) {
	inst := builtin(t, "PHQ-9")
	rec := phq9Record()
	row := ToWideRow(inst, rec)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, row.Columns, row))

	header, rows, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, row.Columns, header)
	require.Len(t, rows, 1)

	parsed, err := ParseWideRow(rows[0])
	require.NoError(t, err)
	assert.Equal(t, rec.Answers(), parsed.Answers)
	assert.Equal(t, rec.Result.Flags, parsed.Flags)
}

func TestAppendCSV(t *testing.T) {
	inst := builtin(t, "GAD-7")
	rec := phq9Record()
	rec.Instrument.ID = "GAD-7"
	rec.Items = rec.Items[:7]
	row := ToWideRow(inst, rec)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, row.Columns))
	require.NoError(t, AppendCSV(&buf, row.Columns, row, row))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "submission_id,"))
}

func TestReadCSV_ShortRowsArePadded(t *testing.T) {
	header, rows, err := ReadCSV(strings.NewReader("a,b,c\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].Get("b"))
	assert.Equal(t, "", rows[0].Get("c"))

	header, rows, err = ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Nil(t, rows)
}
