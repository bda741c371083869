package webui

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"

	"airbnbdash/internal/export"
	"airbnbdash/internal/filter"
	"airbnbdash/internal/loader"
	"airbnbdash/internal/metrics"
	"airbnbdash/internal/pipeline"
	"airbnbdash/internal/table"
)

// page is the data every template receives.
type page struct {
	Title     string
	Nav       string
	MaxUpload int64
	Error     string
	Contact   Contact

	Dataset   *Dataset
	Controls  []control
	Rows      int
	Total     string
	ChartJSON template.JS
	Preview   previewTable
	Downloads []download
}

// download is one export link. URL is pre-encoded.
type download struct {
	Label string
	URL   template.URL
}

// control is one multi-select.
type control struct {
	Column   string
	Values   []option
	Selected int
}

type option struct {
	Value    string
	Selected bool
}

type previewTable struct {
	Columns []string
	Rows    [][]string
}

func (s *Server) render(w http.ResponseWriter, status int, name string, p page) {
	p.MaxUpload = s.cfg.MaxUploadBytes
	p.Contact = s.cfg.Contact
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, p); err != nil {
		log.Printf("webui: template=%s err=%v", name, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("webui: encode json: %v", err)
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "home", page{Title: "Airbnb Analysis", Nav: "home"})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "contact", page{Title: "Contact", Nav: "contact"})
}

func (s *Server) handleExploreForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "explore", page{Title: "Explore data", Nav: "explore"})
}

// handleUpload loads the posted file. A file the loader rejects is shown as
// a message on the upload form; previously loaded datasets are unaffected.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.render(w, http.StatusRequestEntityTooLarge, "explore", page{
				Title: "Explore data", Nav: "explore",
				Error: fmt.Sprintf("The file is larger than %s.", humanize.Bytes(uint64(s.cfg.MaxUploadBytes))),
			})
			return
		}
		s.render(w, http.StatusBadRequest, "explore", page{Title: "Explore data", Nav: "explore", Error: "Please upload a dataset to proceed."})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.render(w, http.StatusBadRequest, "explore", page{Title: "Explore data", Nav: "explore", Error: "Could not read the upload: " + err.Error()})
		return
	}

	ds, err := s.load(data, hdr.Filename)
	if err != nil {
		if table.IsLoadError(err) {
			s.render(w, http.StatusUnprocessableEntity, "explore", page{Title: "Explore data", Nav: "explore", Error: "Error loading file: " + err.Error()})
			return
		}
		log.Printf("webui: upload name=%q err=%v", hdr.Filename, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/explore/"+ds.ID, http.StatusSeeOther)
}

// load parses data and stores the dataset. Identical concurrent uploads
// share one load.
func (s *Server) load(data []byte, name string) (*Dataset, error) {
	key := name + ":" + strconv.FormatUint(xxh3.Hash(data), 16)
	v, err, shared := s.uploads.Do(key, func() (any, error) {
		var t *table.Table
		err := metrics.Time(s.cfg.Pipeline.Job, "load", func() (err error) {
			t, err = loader.LoadWith(data, name, s.cfg.Loader)
			return err
		})
		if err != nil {
			return nil, err
		}
		metrics.RecordRows(s.cfg.Pipeline.Job, "loaded", int64(t.Len()))

		ds := &Dataset{
			ID:       DatasetID(t),
			Name:     name,
			Size:     int64(len(data)),
			LoadedAt: time.Now(),
			Index:    filter.NewIndex(t),
			Options:  make(map[string][]string, len(pipeline.FilterColumns)),
		}
		for _, col := range pipeline.FilterColumns {
			if ds.Options[col], err = filter.Options(t, col); err != nil {
				return nil, err
			}
		}
		log.Printf("webui: loaded name=%q id=%s rows=%d size=%s", name, ds.ID, t.Len(), humanize.Bytes(uint64(len(data))))
		return s.store.Put(ds), nil
	})
	if err != nil {
		return nil, err
	}
	if shared && s.cfg.Verbose {
		log.Printf("webui: coalesced upload name=%q", name)
	}
	return v.(*Dataset), nil
}

// dataset resolves {id} or writes a 404.
func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (*Dataset, bool) {
	ds, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		s.render(w, http.StatusNotFound, "explore", page{
			Title: "Explore data", Nav: "explore",
			Error: "That dataset is no longer loaded. Please upload it again.",
		})
		return nil, false
	}
	return ds, true
}

// views runs the pipeline for the selection in the query string. A failure
// here means the page and the pipeline disagree about column names.
func (s *Server) views(w http.ResponseWriter, r *http.Request, ds *Dataset) (*pipeline.Views, bool) {
	spec := filter.ParseSpec(r.URL.Query(), pipeline.FilterColumns...)
	v, err := s.cfg.Pipeline.Run(ds.Index, spec)
	if err != nil {
		log.Printf("webui: pipeline dataset=%s err=%v", ds.ID, err)
		http.Error(w, "internal error: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return v, true
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	v, ok := s.views(w, r, ds)
	if !ok {
		return
	}
	chart, err := json.Marshal(v)
	if err != nil {
		log.Printf("webui: marshal views: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	p := page{
		Title:     ds.Name,
		Nav:       "explore",
		Dataset:   ds,
		Rows:      v.Filtered.Len(),
		Total:     v.Bar.Total().StringFixed(2),
		ChartJSON: template.JS(chart),
		Preview:   newPreview(v.Preview),
		Downloads: downloadLinks(ds.ID, v.Spec),
	}
	for _, col := range pipeline.FilterColumns {
		c := control{Column: col}
		chosen := make(map[string]bool, len(v.Spec[col]))
		for _, sel := range v.Spec[col] {
			chosen[sel] = true
		}
		for _, val := range ds.Options[col] {
			c.Values = append(c.Values, option{Value: val, Selected: chosen[val]})
			if chosen[val] {
				c.Selected++
			}
		}
		p.Controls = append(p.Controls, c)
	}
	s.render(w, http.StatusOK, "dataset", p)
}

func downloadLinks(id string, spec filter.Spec) []download {
	base := "/explore/" + url.PathEscape(id) + "/download"
	link := func(label string, extra url.Values) download {
		q, _ := url.ParseQuery(spec.Encode())
		for k, vs := range extra {
			q[k] = vs
		}
		u := base
		if enc := q.Encode(); enc != "" {
			u += "?" + enc
		}
		return download{Label: label, URL: template.URL(u)}
	}
	return []download{
		link("Download Filtered Data", nil),
		link("Parquet", url.Values{"format": {"parquet"}}),
		link("CSV (zstd)", url.Values{"compression": {"zstd"}}),
	}
}

func newPreview(t *table.Table) previewTable {
	p := previewTable{Columns: t.Schema().Names(), Rows: make([][]string, t.Len())}
	for i := range p.Rows {
		src := t.Row(i)
		row := make([]string, len(src))
		for j, c := range src {
			if c != nil {
				row[j] = table.FormatCell(c)
			}
		}
		p.Rows[i] = row
	}
	return p
}

var codecMIME = map[export.Codec]string{
	export.CodecZstd:   "application/zstd",
	export.CodecSnappy: "application/x-snappy-framed",
	export.CodecLZ4:    "application/x-lz4",
	export.CodecBrotli: "application/x-brotli",
}

// handleDownload streams the filtered rows. The ETag is derived from the
// filtered table, so a repeated download of an unchanged selection is a 304.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	codec, err := export.ParseCodec(q.Get("compression"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := q.Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "parquet" {
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}

	v, ok := s.views(w, r, ds)
	if !ok {
		return
	}

	etag := fmt.Sprintf(`"%016x-%s%s"`, v.Filtered.Fingerprint(), format, codec.Extension())
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	var buf bytes.Buffer
	cw, err := export.Compress(&buf, codec, export.LevelDefault)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name, mime := export.FileName, export.MIMEType
	if format == "parquet" {
		name, mime = export.ParquetFileName, export.ParquetMIMEType
		err = export.ToParquet(cw, v.Filtered)
	} else {
		err = export.WriteDelimitedText(cw, v.Filtered)
	}
	if cerr := cw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Printf("webui: export dataset=%s format=%s err=%v", ds.ID, format, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if m, ok := codecMIME[codec]; ok {
		mime = m
	}
	metrics.RecordRows(s.cfg.Pipeline.Job, "exported", int64(v.Filtered.Len()))

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+codec.Extension()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleAPIViews(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "dataset not found"})
		return
	}
	spec := filter.ParseSpec(r.URL.Query(), pipeline.FilterColumns...)
	v, err := s.cfg.Pipeline.Run(ds.Index, spec)
	if err != nil {
		log.Printf("webui: pipeline dataset=%s err=%v", ds.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, v)
}
