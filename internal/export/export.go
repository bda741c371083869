// Package export serializes a table.Table for download: comma-separated text
// (the default), Parquet, and compressed streams of either.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"airbnbdash/internal/table"
)

// Download defaults for the filtered dataset.
const (
	FileName = "filtered_data.csv"
	MIMEType = "text/csv"
)

// ToDelimitedText renders t as UTF-8 comma-separated text with a header row.
// Fields containing the delimiter, a quote or a line break are quoted. Null
// cells are written empty and numbers in canonical decimal form, so loading
// the output gives back an equal table.
func ToDelimitedText(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteDelimitedText(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDelimitedText streams the ToDelimitedText encoding of t to w.
func WriteDelimitedText(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Schema().Names()); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	rec := make([]string, t.Schema().Len())
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			rec[j] = table.FormatCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}
