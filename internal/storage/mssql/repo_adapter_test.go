package mssql

import (
	"context"
	"testing"

	"airbnbdash/internal/storage"
	"airbnbdash/internal/table"
)

func TestRegistrationUsesNewRepositoryHook(t *testing.T) {
	ctx := context.Background()

	orig := newRepository
	defer func() { newRepository = orig }()

	var (
		called   bool
		gotCfg   Config
		closed   bool
		fakeRepo = &Repository{}
	)
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		called = true
		gotCfg = cfg
		return fakeRepo, func() { closed = true }, nil
	}

	cfg := storage.Config{
		Kind:    "mssql",
		DSN:     "sqlserver://example",
		Table:   "dbo.listings",
		Columns: []string{"room_type", "price"},
	}
	repo, err := storage.New(ctx, cfg)
	if err != nil {
		t.Fatalf("storage.New() error = %v, want nil", err)
	}
	if !called {
		t.Fatalf("newRepository hook was not called")
	}
	if gotCfg.DSN != cfg.DSN || gotCfg.Table != cfg.Table || len(gotCfg.Columns) != len(cfg.Columns) {
		t.Fatalf("hook cfg = %+v", gotCfg)
	}
	w, ok := repo.(*wrappedRepo)
	if !ok {
		t.Fatalf("storage.New() type = %T, want *wrappedRepo", repo)
	}
	if w.Repository != fakeRepo {
		t.Fatalf("wrappedRepo.Repository = %p, want %p", w.Repository, fakeRepo)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close did not call closeFn")
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()
	got, err := CreateTableSQL("dbo.listings", []table.Column{
		{Name: "room_type", Type: table.Text},
		{Name: "price", Type: table.Number},
	})
	if err != nil {
		t.Fatalf("CreateTableSQL: %v", err)
	}
	want := "IF OBJECT_ID(N'[dbo].[listings]', N'U') IS NULL\nCREATE TABLE [dbo].[listings] (\n  [room_type] NVARCHAR(MAX) NULL,\n  [price] FLOAT NULL\n);"
	if got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
}

func TestMsIdent(t *testing.T) {
	t.Parallel()
	if got := msIdent("we]ird"); got != "[we]]ird]" {
		t.Fatalf("msIdent = %q", got)
	}
}
