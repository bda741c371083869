package table

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func listingSchema(t *testing.T) Schema {
	t.Helper()
	s, err := NewSchema(
		Column{Name: "neighbourhood_group", Type: Text},
		Column{Name: "room_type", Type: Text},
		Column{Name: "price", Type: Number},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func TestNewSchema_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cols []Column
		want string
	}{
		{"empty_name", []Column{{Name: " "}}, "empty name"},
		{"duplicate", []Column{{Name: "a"}, {Name: "a"}}, "duplicate"},
		{"unknown_type", []Column{{Name: "a", Type: "blob"}}, "unknown type"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSchema(tc.cols...)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestNewSchema_DefaultsToText(t *testing.T) {
	t.Parallel()
	s, err := NewSchema(Column{Name: "a"})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	if s.At(0).Type != Text {
		t.Fatalf("type = %q, want text", s.At(0).Type)
	}
}

func TestNew_ValidatesRows(t *testing.T) {
	t.Parallel()
	s := listingSchema(t)

	if _, err := New(s, []Row{{"Brooklyn", "Private room"}}); err == nil {
		t.Fatalf("expected width error")
	}
	if _, err := New(s, []Row{{decimal.NewFromInt(1), "Private room", nil}}); err == nil {
		t.Fatalf("expected type error for decimal in text column")
	}
	if _, err := New(s, []Row{{"Brooklyn", "Private room", 12}}); err == nil {
		t.Fatalf("expected type error for int cell")
	}
	tbl, err := New(s, []Row{{"Brooklyn", nil, "n/a"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len = %d", tbl.Len())
	}
}

func TestTable_AccessorsAndColumnNotFound(t *testing.T) {
	t.Parallel()
	tbl, err := New(listingSchema(t), []Row{
		{"Brooklyn", "Private room", decimal.RequireFromString("100.50")},
		{"Manhattan", nil, nil},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if s, ok := tbl.Text(0, 2); !ok || s != "100.5" {
		t.Fatalf("Text(0,2) = %q ok=%v", s, ok)
	}
	if _, ok := tbl.Text(1, 1); ok {
		t.Fatalf("null cell reported as present")
	}
	if _, ok := tbl.Number(1, 2); ok {
		t.Fatalf("null number reported as present")
	}

	_, err = tbl.Column("host_name", "filter")
	var ce *ColumnNotFoundError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %T, want *ColumnNotFoundError", err)
	}
	if ce.Column != "host_name" || ce.Op != "filter" {
		t.Fatalf("unexpected error fields: %+v", ce)
	}
	if !IsColumnNotFound(err) || IsLoadError(err) {
		t.Fatalf("classification helpers disagree for %v", err)
	}
}

func TestTable_SelectAndHeadDoNotMutate(t *testing.T) {
	t.Parallel()
	rows := []Row{
		{"A", "x", decimal.NewFromInt(1)},
		{"B", "y", decimal.NewFromInt(2)},
		{"C", "z", decimal.NewFromInt(3)},
	}
	tbl, err := New(listingSchema(t), rows)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := tbl.Fingerprint()

	sel := tbl.Select([]int{2, 0})
	if sel.Len() != 2 || sel.Row(0)[0] != "C" || sel.Row(1)[0] != "A" {
		t.Fatalf("Select order wrong: %v", sel.rows)
	}

	cases := []struct {
		n, want int
	}{
		{0, 0}, {2, 2}, {3, 3}, {20, 3}, {-1, 0},
	}
	for _, tc := range cases {
		if got := tbl.Head(tc.n).Len(); got != tc.want {
			t.Errorf("Head(%d).Len() = %d, want %d", tc.n, got, tc.want)
		}
	}

	if tbl.Len() != 3 {
		t.Fatalf("source table changed length: %d", tbl.Len())
	}
	fresh, _ := New(listingSchema(t), rows)
	if fresh.Fingerprint() != before {
		t.Fatalf("fingerprint changed after derived views")
	}
}

func TestEqualAndFingerprint(t *testing.T) {
	t.Parallel()
	s := listingSchema(t)
	a, _ := New(s, []Row{{"A", nil, decimal.RequireFromString("100.50")}})
	b, _ := New(s, []Row{{"A", nil, decimal.RequireFromString("100.5")}})
	c, _ := New(s, []Row{{"A", "", decimal.RequireFromString("100.5")}})

	if !Equal(a, b) {
		t.Fatalf("numerically equal tables should be Equal")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("equal tables should share a fingerprint")
	}
	if Equal(a, c) {
		t.Fatalf("null and empty string must differ")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("null and empty string must hash differently")
	}
}

func TestLoadErrorMessage(t *testing.T) {
	t.Parallel()
	err := error(&LoadError{File: "x.csv", Missing: []string{"price", "room_type"}, Err: ErrMissingColumns})
	if got, want := err.Error(), "load x.csv: required columns are missing: price, room_type"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("errors.Is(ErrMissingColumns) = false")
	}
}
