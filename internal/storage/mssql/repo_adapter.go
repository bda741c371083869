package mssql

import (
	"context"
	"fmt"
	"strings"

	"airbnbdash/internal/storage"
	"airbnbdash/internal/table"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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
	storage.RegisterDDL("mssql", CreateTableSQL)
}

// CreateTableSQL renders a guarded CREATE TABLE for SQL Server, which has no
// IF NOT EXISTS clause.
func CreateTableSQL(tableName string, cols []table.Column) (string, error) {
	fqn := storage.QuoteFQN(tableName, msIdent)
	prefix := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE", strings.ReplaceAll(fqn, "'", "''"))
	return storage.BuildCreateTable(prefix, tableName, cols, msIdent, func(t table.ColumnType) string {
		if t == table.Number {
			return "FLOAT NULL"
		}
		return "NVARCHAR(MAX) NULL"
	}, ";"), nil
}
