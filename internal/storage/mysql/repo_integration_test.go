//go:build integration

package mysql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"airbnbdash/internal/storage"
	"airbnbdash/internal/table"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set; skipping integration tests")
	}
	return dsn
}

// TestPublishIntegration creates the destination table on a real server and
// publishes three listings into it.
func TestPublishIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn, Table: "dashboard_publish_test"})
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	defer closeFn()
	_ = repo.Exec(ctx, "DROP TABLE IF EXISTS dashboard_publish_test")
	defer func() { _ = repo.Exec(context.Background(), "DROP TABLE IF EXISTS dashboard_publish_test") }()

	s, _ := table.NewSchema(
		table.Column{Name: "room_type", Type: table.Text},
		table.Column{Name: "price", Type: table.Number},
	)
	tbl, _ := table.New(s, []table.Row{
		{"Private room", decimal.NewFromInt(100)},
		{"Shared room", decimal.NewFromInt(40)},
		{nil, nil},
	})

	n, err := storage.Publish(ctx, repo, tbl, storage.PublishOptions{
		Kind:        "mysql",
		Table:       "dashboard_publish_test",
		BatchSize:   2,
		CreateTable: true,
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("Publish() = %d, want 3", n)
	}
}
