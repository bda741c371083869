package httpds

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestURLOpen_RetriesThenSucceeds verifies that a transient 503 is retried and
// the eventual 200 body is returned to the caller.
func TestURLOpen_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "neighbourhood_group,neighbourhood,room_type,price\n")
	}))
	defer srv.Close()

	c := NewClient(Config{
		MaxRetries:     2,
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	src := NewURL(c, srv.URL+"/exports/listings.csv")

	rc, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(b), "neighbourhood_group,") {
		t.Fatalf("body = %q", b)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("hits = %d, want 2", got)
	}
	if got := src.Name(); got != "listings.csv" {
		t.Fatalf("Name() = %q, want listings.csv", got)
	}
}

// TestURLOpen_NotFound verifies that a non-retryable status becomes an error
// and no body leaks to the caller.
func TestURLOpen_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := NewURL(NewClient(Config{}), srv.URL+"/missing.csv")
	rc, err := src.Open(context.Background())
	if err == nil {
		rc.Close()
		t.Fatalf("expected error for 404")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want *StatusError 404", err)
	}
	if !strings.Contains(err.Error(), "Not Found") {
		t.Fatalf("error = %v, want mention of Not Found", err)
	}
}

func TestFilenameFromURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://example.com/data/AB_NYC_2019.csv", "AB_NYC_2019.csv"},
		{"https://example.com/data/listings%20q3.xlsx", "listings_q3.xlsx"},
	}
	for _, tc := range cases {
		if got := FilenameFromURL(tc.in); got != tc.want {
			t.Errorf("FilenameFromURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	// No extension in the path: fall back to a stable hash.
	a := FilenameFromURL("https://example.com/download?id=7")
	b := FilenameFromURL("https://example.com/download?id=7")
	if a == "" || a != b {
		t.Fatalf("hash fallback not stable: %q vs %q", a, b)
	}
}
