package mysql

import (
	"context"

	"airbnbdash/internal/storage"
	"airbnbdash/internal/table"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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
	storage.RegisterDDL("mysql", CreateTableSQL)
}

// wrappedRepo adapts *Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for MySQL.
func CreateTableSQL(tableName string, cols []table.Column) (string, error) {
	return storage.BuildCreateTable("CREATE TABLE IF NOT EXISTS", tableName, cols, myIdent, func(t table.ColumnType) string {
		if t == table.Number {
			return "DOUBLE NULL"
		}
		return "TEXT NULL"
	}, " DEFAULT CHARSET=utf8mb4;"), nil
}
