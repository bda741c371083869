package webui

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"

	"airbnbdash/internal/export"
	"airbnbdash/internal/loader"
	"airbnbdash/internal/table"
)

const listingsCSV = `neighbourhood_group,neighbourhood,room_type,price
Brooklyn,Williamsburg,Private room,100
Manhattan,Harlem,Entire home/apt,200
Brooklyn,Bushwick,Private room,150
`

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

// noRedirect keeps 303 responses visible to the test.
func noRedirect(ts *httptest.Server) *http.Client {
	c := ts.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c
}

func multipartBody(name, body string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(fw, body); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func upload(t *testing.T, ts *httptest.Server, name, body string) *http.Response {
	t.Helper()
	buf, ctype, err := multipartBody(name, body)
	if err != nil {
		t.Fatalf("build form: %v", err)
	}
	resp, err := noRedirect(ts).Post(ts.URL+"/explore/upload", ctype, buf)
	if err != nil {
		t.Fatalf("POST upload: %v", err)
	}
	return resp
}

func uploadOK(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := upload(t, ts, "listings.csv", listingsCSV)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d, body=%s", resp.StatusCode, b)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/explore/") {
		t.Fatalf("Location = %q", loc)
	}
	return loc
}

func get(t *testing.T, ts *httptest.Server, path string, hdr http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(b)
}

func TestStaticPages(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, Config{Contact: Contact{Name: "Listings Team", Email: "team@example.com", Batch: "DT1819"}})

	cases := []struct {
		path string
		want string
	}{
		{"/", "Airbnb Analysis"},
		{"/contact", "team@example.com"},
		{"/contact", "Batch: DT1819"},
		{"/explore", "Please upload a dataset to proceed."},
	}
	for _, tc := range cases {
		resp, body := get(t, ts, tc.path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", tc.path, resp.StatusCode)
		}
		if !strings.Contains(body, tc.want) {
			t.Fatalf("GET %s body missing %q", tc.path, tc.want)
		}
		if resp.Header.Get("X-Request-Id") == "" {
			t.Fatalf("GET %s: no X-Request-Id", tc.path)
		}
	}

	if resp, _ := get(t, ts, "/nope", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path status = %d, want 404", resp.StatusCode)
	}
}

func TestUploadAndExplore(t *testing.T) {
	t.Parallel()
	s, ts := newTestServer(t, Config{})

	loc := uploadOK(t, ts)
	if s.Store().Len() != 1 {
		t.Fatalf("store len = %d, want 1", s.Store().Len())
	}

	resp, body := get(t, ts, loc+"?neighbourhood_group=Brooklyn", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("explore status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		"Loaded file: <strong>listings.csv</strong>",
		`<option value="Brooklyn" selected>`,
		`<option value="Manhattan">`,
		"2 listings",
		"Williamsburg",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("explore body missing %q", want)
		}
	}
	if strings.Contains(body, "<td>Harlem</td>") {
		t.Fatalf("filtered preview still shows Manhattan rows")
	}
}

func TestUpload_SameDataSameDataset(t *testing.T) {
	t.Parallel()
	s, ts := newTestServer(t, Config{})

	var wg sync.WaitGroup
	locs := make([]string, 4)
	errs := make([]error, 4)
	for i := range locs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buf, ctype, err := multipartBody("listings.csv", listingsCSV)
			if err != nil {
				errs[i] = err
				return
			}
			resp, err := noRedirect(ts).Post(ts.URL+"/explore/upload", ctype, buf)
			if err != nil {
				errs[i] = err
				return
			}
			resp.Body.Close()
			locs[i] = resp.Header.Get("Location")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
	}
	for _, l := range locs {
		if l == "" || l != locs[0] {
			t.Fatalf("uploads of identical data diverged: %v", locs)
		}
	}
	if s.Store().Len() != 1 {
		t.Fatalf("store len = %d, want 1", s.Store().Len())
	}
}

func TestUpload_LoadErrorKeepsState(t *testing.T) {
	t.Parallel()
	s, ts := newTestServer(t, Config{})
	uploadOK(t, ts)

	resp := upload(t, ts, "no_price.csv", "neighbourhood_group,neighbourhood,room_type\nBrooklyn,Bushwick,Private room\n")
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if !strings.Contains(string(b), "Error loading file:") || !strings.Contains(string(b), "price") {
		t.Fatalf("body does not explain the failure: %s", b)
	}
	if s.Store().Len() != 1 {
		t.Fatalf("failed upload changed the store: len=%d", s.Store().Len())
	}
}

func TestUpload_MissingFileAndTooLarge(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, Config{MaxUploadBytes: 64})

	resp, err := noRedirect(ts).Post(ts.URL+"/explore/upload", "application/x-www-form-urlencoded", strings.NewReader("x=1"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("no file status = %d, want 400", resp.StatusCode)
	}

	resp = upload(t, ts, "big.csv", strings.Repeat(listingsCSV, 10))
	resp.Body.Close()
	if resp.StatusCode < 400 {
		t.Fatalf("oversized upload status = %d, want an error", resp.StatusCode)
	}
}

func TestUnknownDataset(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, Config{})

	if resp, body := get(t, ts, "/explore/0000000000000000", nil); resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "no longer loaded") {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp, _ := get(t, ts, "/api/explore/0000000000000000/views", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("api status = %d", resp.StatusCode)
	}
}

func TestDownload_CSVAndETag(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, Config{})
	loc := uploadOK(t, ts)

	resp, body := get(t, ts, loc+"/download?neighbourhood_group=Brooklyn", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != export.MIMEType {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="filtered_data.csv"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
	want := "neighbourhood_group,neighbourhood,room_type,price\nBrooklyn,Williamsburg,Private room,100\nBrooklyn,Bushwick,Private room,150\n"
	if body != want {
		t.Fatalf("body = %q, want %q", body, want)
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	resp, _ = get(t, ts, loc+"/download?neighbourhood_group=Brooklyn", http.Header{"If-None-Match": {etag}})
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional status = %d, want 304", resp.StatusCode)
	}

	// A different selection is a different representation.
	resp, _ = get(t, ts, loc+"/download", nil)
	if resp.Header.Get("ETag") == etag {
		t.Fatalf("ETag did not change with the selection")
	}
}

func TestDownload_RoundTripsThroughLoader(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, Config{})
	loc := uploadOK(t, ts)

	_, body := get(t, ts, loc+"/download", nil)
	got, err := loader.Load([]byte(body), export.FileName)
	if err != nil {
		t.Fatalf("reload export: %v", err)
	}
	orig, err := loader.Load([]byte(listingsCSV), "listings.csv")
	if err != nil {
		t.Fatalf("load source: %v", err)
	}
	if !table.Equal(got, orig) {
		t.Fatalf("export did not round-trip")
	}
}

func TestDownload_CompressedAndParquet(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, Config{})
	loc := uploadOK(t, ts)

	resp, body := get(t, ts, loc+"/download?compression=zstd", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "filtered_data.csv.zst") {
		t.Fatalf("Content-Disposition = %q", got)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()
	plain, err := dec.DecodeAll([]byte(body), nil)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if !strings.HasPrefix(string(plain), "neighbourhood_group,") {
		t.Fatalf("decoded = %q", plain)
	}

	resp, body = get(t, ts, loc+"/download?format=parquet", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != export.ParquetMIMEType {
		t.Fatalf("parquet status=%d type=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.HasPrefix(body, "PAR1") {
		t.Fatalf("parquet body does not start with magic")
	}

	for _, q := range []string{"?format=xml", "?compression=rar"} {
		if resp, _ := get(t, ts, loc+"/download"+q, nil); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET download%s status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestAPIViews(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, Config{})
	loc := uploadOK(t, ts)
	id := strings.TrimPrefix(loc, "/explore/")

	q := url.Values{"neighbourhood_group": {"Brooklyn"}}
	resp, body := get(t, ts, "/api/explore/"+id+"/views?"+q.Encode(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
	var got struct {
		Rows int `json:"rows"`
		Bar  struct {
			Groups []struct {
				Key   string      `json:"key"`
				Total json.Number `json:"total"`
			} `json:"groups"`
		} `json:"bar"`
	}
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Rows != 2 || len(got.Bar.Groups) != 1 || got.Bar.Groups[0].Key != "Private room" || got.Bar.Groups[0].Total != "250" {
		t.Fatalf("views = %+v", got)
	}
}

func TestMetricsRouteOnlyWhenConfigured(t *testing.T) {
	t.Parallel()

	_, plain := newTestServer(t, Config{})
	if resp, _ := get(t, plain, "/metrics", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("metrics without handler: status = %d", resp.StatusCode)
	}

	_, withMetrics := newTestServer(t, Config{Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "dashboard_rows_total 3\n")
	})})
	if resp, body := get(t, withMetrics, "/metrics", nil); resp.StatusCode != http.StatusOK || !strings.Contains(body, "dashboard_rows_total") {
		t.Fatalf("metrics status = %d body=%q", resp.StatusCode, body)
	}
}
