package sqlite

import (
	"context"

	"airbnbdash/internal/storage"
	"airbnbdash/internal/table"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to storage.Repository, adding a Close that
// calls the cleanup function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: cfg.Columns,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("sqlite", CreateTableSQL)
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for SQLite. Number columns
// use REAL affinity.
func CreateTableSQL(tableName string, cols []table.Column) (string, error) {
	return storage.BuildCreateTable("CREATE TABLE IF NOT EXISTS", tableName, cols, quoteIdent, func(t table.ColumnType) string {
		if t == table.Number {
			return "REAL"
		}
		return "TEXT"
	}, ";"), nil
}
