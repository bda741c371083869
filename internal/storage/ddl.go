package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"airbnbdash/internal/table"
)

// DDLBuilder renders a CREATE TABLE IF NOT EXISTS statement for the given
// destination table and columns in a backend's SQL dialect.
type DDLBuilder func(tableName string, cols []table.Column) (string, error)

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBuilder{}
)

// RegisterDDL registers (or replaces) the DDL builder for kind.
func RegisterDDL(kind string, fn DDLBuilder) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// CreateTableSQL renders the CREATE statement for kind.
func CreateTableSQL(kind, tableName string, cols []table.Column) (string, error) {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no DDL builder registered for storage.kind=%q", kind)
	}
	if strings.TrimSpace(tableName) == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	return fn(tableName, cols)
}

// EnsureTable creates the destination table through repo when it does not
// exist yet.
func EnsureTable(ctx context.Context, kind string, repo Repository, tableName string, cols []table.Column) error {
	stmt, err := CreateTableSQL(kind, tableName, cols)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure table %s: %w", tableName, err)
	}
	return nil
}

// QuoteFQN splits a possibly qualified name on dots and quotes each part
// with quote.
func QuoteFQN(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ".")
}

// BuildCreateTable assembles the common
//
//	<prefix> <table> (
//	  <col> <type>,
//	  ...
//	)<suffix>
//
// shape shared by the dialects. typeOf maps a column type to SQL.
func BuildCreateTable(prefix, tableName string, cols []table.Column, quote func(string) string, typeOf func(table.ColumnType) string, suffix string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quote(c.Name) + " " + typeOf(c.Type)
	}
	return fmt.Sprintf("%s %s (\n  %s\n)%s", prefix, QuoteFQN(tableName, quote), strings.Join(defs, ",\n  "), suffix)
}
