package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"airbnbdash/internal/table"
)

// ParquetFileName and ParquetMIMEType describe the Parquet download.
const (
	ParquetFileName = "filtered_data.parquet"
	ParquetMIMEType = "application/vnd.apache.parquet"
)

// ToParquet writes t to w as a single Parquet file. Text columns become
// optional strings and number columns optional doubles. A number cell that did
// not parse is written as null. Parquet groups order fields by name, so the
// column order of the file is alphabetical.
func ToParquet(w io.Writer, t *table.Table) error {
	schema := parquetSchema(t.Schema())

	pw := parquet.NewGenericWriter[map[string]any](w, &parquet.WriterConfig{Schema: schema})

	cols := t.Schema().Columns()
	records := make([]map[string]any, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		rec := make(map[string]any, len(cols))
		for j, c := range cols {
			rec[c.Name] = parquetValue(t, i, j, c.Type)
		}
		records = append(records, rec)
	}
	if _, err := pw.Write(records); err != nil {
		_ = pw.Close()
		return fmt.Errorf("export: write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("export: close parquet writer: %w", err)
	}
	return nil
}

func parquetSchema(s table.Schema) *parquet.Schema {
	group := make(parquet.Group, s.Len())
	for _, c := range s.Columns() {
		if c.Type == table.Number {
			group[c.Name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			group[c.Name] = parquet.Optional(parquet.String())
		}
	}
	return parquet.NewSchema("Listing", group)
}

func parquetValue(t *table.Table, row, col int, typ table.ColumnType) any {
	if typ == table.Number {
		d, ok := t.Number(row, col)
		if !ok {
			return nil
		}
		return d.InexactFloat64()
	}
	s, ok := t.Text(row, col)
	if !ok {
		return nil
	}
	return s
}
