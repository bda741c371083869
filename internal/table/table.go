// Package table holds the in-memory dataset model shared by the loader, the
// filter engine, the aggregator and the exporter.
//
// A Table is an explicit schema (ordered columns with a declared type) plus an
// ordered slice of rows. Tables are immutable once constructed: every
// operation that derives a new view (filtering, projection, head) returns a new
// Table and never writes to the receiver. Rows may be shared between a Table
// and the tables derived from it, which is safe because nobody mutates them.
//
// Cell representation:
//
//	nil              → null (empty cell in the source file)
//	string           → text cell, or an unparsable cell in a number column
//	decimal.Decimal  → parsed cell in a number column
package table

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ColumnType is the declared value type of a column.
type ColumnType string

const (
	// Text columns hold strings (or nulls).
	Text ColumnType = "text"
	// Number columns hold decimals; cells that fail to parse are kept as raw
	// strings so that exports stay faithful to the input.
	Number ColumnType = "number"
)

// Column is a single schema entry.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is an ordered list of uniquely named columns.
type Schema struct {
	cols []Column
	idx  map[string]int
}

// NewSchema validates cols (non-empty names, no duplicates, known types) and
// returns the schema.
func NewSchema(cols ...Column) (Schema, error) {
	s := Schema{
		cols: make([]Column, len(cols)),
		idx:  make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if strings.TrimSpace(c.Name) == "" {
			return Schema{}, fmt.Errorf("schema: column %d has an empty name", i)
		}
		if _, dup := s.idx[c.Name]; dup {
			return Schema{}, fmt.Errorf("schema: duplicate column %q", c.Name)
		}
		switch c.Type {
		case Text, Number:
		case "":
			c.Type = Text
		default:
			return Schema{}, fmt.Errorf("schema: column %q has unknown type %q", c.Name, c.Type)
		}
		s.cols[i] = c
		s.idx[c.Name] = i
	}
	return s, nil
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.cols) }

// Columns returns a copy of the ordered column list.
func (s Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

// Names returns the ordered column names.
func (s Schema) Names() []string {
	out := make([]string, len(s.cols))
	for i, c := range s.cols {
		out[i] = c.Name
	}
	return out
}

// At returns the column at position i.
func (s Schema) At(i int) Column { return s.cols[i] }

// Lookup returns the position of the named column.
func (s Schema) Lookup(name string) (int, bool) {
	i, ok := s.idx[name]
	return i, ok
}

// Row is one record; len(Row) always equals the schema length.
type Row []any

// Table is an immutable, ordered collection of rows sharing one schema.
type Table struct {
	schema Schema
	rows   []Row

	fpOnce sync.Once
	fp     uint64
}

// New builds a Table after checking that every row matches the schema width
// and that every cell has a representation allowed by its column type.
func New(schema Schema, rows []Row) (*Table, error) {
	for i, r := range rows {
		if len(r) != schema.Len() {
			return nil, fmt.Errorf("table: row %d has %d cells, schema has %d columns", i, len(r), schema.Len())
		}
		for j, v := range r {
			if err := checkCell(schema.cols[j], v); err != nil {
				return nil, fmt.Errorf("table: row %d: %w", i, err)
			}
		}
	}
	return &Table{schema: schema, rows: rows}, nil
}

func checkCell(c Column, v any) error {
	switch v.(type) {
	case nil, string:
		return nil
	case decimal.Decimal:
		if c.Type == Number {
			return nil
		}
	}
	return fmt.Errorf("column %q (%s) cannot hold %T", c.Name, c.Type, v)
}

// Schema returns the table schema.
func (t *Table) Schema() Schema { return t.schema }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns row i. Callers must treat it as read-only.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Column resolves name to a column position. op names the operation asking,
// and ends up in the error so that a mismatched caller is easy to find.
func (t *Table) Column(name, op string) (int, error) {
	if i, ok := t.schema.Lookup(name); ok {
		return i, nil
	}
	return -1, &ColumnNotFoundError{Column: name, Op: op, Available: t.schema.Names()}
}

// Text returns the cell at (row, col) formatted as text. ok is false for nulls.
func (t *Table) Text(row, col int) (string, bool) {
	v := t.rows[row][col]
	if v == nil {
		return "", false
	}
	return FormatCell(v), true
}

// Number returns the numeric value at (row, col). ok is false for nulls and
// for cells that did not parse as numbers.
func (t *Table) Number(row, col int) (decimal.Decimal, bool) {
	d, ok := t.rows[row][col].(decimal.Decimal)
	return d, ok
}

// Select returns a new Table holding the rows at the given positions, in the
// given order. Positions must be valid.
func (t *Table) Select(positions []int) *Table {
	rows := make([]Row, len(positions))
	for i, p := range positions {
		rows[i] = t.rows[p]
	}
	return &Table{schema: t.schema, rows: rows}
}

// Head returns the first n rows (all rows when n exceeds Len).
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	return &Table{schema: t.schema, rows: t.rows[:n:n]}
}

// FormatCell renders a cell the way the exporter writes it.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Equal reports whether a and b have the same schema and cell values. Numbers
// compare by value, so "100.50" and "100.5" are equal.
func Equal(a, b *Table) bool {
	if a.schema.Len() != b.schema.Len() || len(a.rows) != len(b.rows) {
		return false
	}
	for i, c := range a.schema.cols {
		if c != b.schema.cols[i] {
			return false
		}
	}
	for i := range a.rows {
		for j := range a.rows[i] {
			if !cellEqual(a.rows[i][j], b.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

func cellEqual(x, y any) bool {
	switch xv := x.(type) {
	case nil:
		return y == nil
	case string:
		yv, ok := y.(string)
		return ok && xv == yv
	case decimal.Decimal:
		yv, ok := y.(decimal.Decimal)
		return ok && xv.Equal(yv)
	}
	return false
}
