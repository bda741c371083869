package storage

import (
	"context"
	"fmt"
	"log"

	"airbnbdash/internal/metrics"
	"airbnbdash/internal/table"
)

// PublishOptions controls Publish.
type PublishOptions struct {
	// Kind selects the DDL dialect used when CreateTable is set.
	Kind string
	// Table is the destination table name.
	Table string
	// Columns restricts and orders the published columns; empty means all.
	Columns []string
	// BatchSize is the number of rows per CopyFrom call (default 1000).
	BatchSize int
	// CreateTable issues CREATE TABLE IF NOT EXISTS first.
	CreateTable bool
	// Job labels the emitted metrics.
	Job string
}

// Publish writes the rows of t to repo in batches. Text cells are sent as
// strings, number cells as float64, and nulls (including number cells that
// did not parse) as NULL.
func Publish(ctx context.Context, repo Repository, t *table.Table, opt PublishOptions) (int64, error) {
	cols, pos, err := publishColumns(t, opt.Columns)
	if err != nil {
		return 0, err
	}
	if opt.BatchSize <= 0 {
		opt.BatchSize = 1000
	}

	if opt.CreateTable {
		if err := EnsureTable(ctx, opt.Kind, repo, opt.Table, cols); err != nil {
			return 0, err
		}
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []any, opt.BatchSize)
	go func() {
		defer close(in)
		for i := 0; i < t.Len(); i++ {
			row := make([]any, len(pos))
			for j, p := range pos {
				row[j] = sqlValue(t, i, p, cols[j].Type)
			}
			select {
			case in <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	batches := int64(0)
	n, err := LoadBatches(ctx, names, in, opt.BatchSize, func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		batches++
		return repo.CopyFrom(ctx, columns, rows)
	})
	metrics.RecordBatches(opt.Job, batches)
	metrics.RecordRows(opt.Job, "published", n)
	if err != nil {
		return n, fmt.Errorf("publish %s: %w", opt.Table, err)
	}
	log.Printf("storage: published table=%s rows=%d batches=%d", opt.Table, n, batches)
	return n, nil
}

func publishColumns(t *table.Table, want []string) ([]table.Column, []int, error) {
	if len(want) == 0 {
		want = t.Schema().Names()
	}
	cols := make([]table.Column, len(want))
	pos := make([]int, len(want))
	for i, name := range want {
		p, err := t.Column(name, "publish")
		if err != nil {
			return nil, nil, err
		}
		pos[i] = p
		cols[i] = t.Schema().At(p)
	}
	return cols, pos, nil
}

func sqlValue(t *table.Table, row, col int, typ table.ColumnType) any {
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
