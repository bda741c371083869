// Package webui serves the listings dashboard.
//
// Routes:
//
//	GET  /                            → landing page
//	GET  /contact                     → contact page
//	GET  /explore                     → upload form
//	POST /explore/upload              → load a dataset, redirect to it
//	GET  /explore/{id}                → selections, charts and preview
//	GET  /explore/{id}/download       → filtered rows (csv or parquet, optionally compressed)
//	GET  /api/explore/{id}/views      → the same views as JSON
//	GET  /metrics                     → metrics scrape endpoint, when configured
package webui

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"airbnbdash/internal/loader"
	"airbnbdash/internal/pipeline"
)

// Config controls server startup.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	MaxDatasets    int
	// Metrics is mounted on /metrics when non-nil.
	Metrics  http.Handler
	Pipeline pipeline.Config
	Loader   loader.Options
	// Contact is shown on the contact page.
	Contact Contact
	// Verbose logs every request.
	Verbose bool
}

// Contact is the static contact information.
type Contact struct {
	Name  string
	Email string
	Batch string
}

// Server holds the routes, the parsed templates and the dataset store.
type Server struct {
	cfg     Config
	mux     *http.ServeMux
	tmpl    *template.Template
	store   *Store
	uploads singleflight.Group
}

//go:embed templates/*.tmpl.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"bytes": func(n int64) string { return humanize.Bytes(uint64(n)) },
	"when":  func(t time.Time) string { return humanize.Time(t) },
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
}

// NewServer constructs a Server with routes and embedded templates.
func NewServer(cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 200 << 20
	}
	if cfg.Pipeline.Measure == "" {
		cfg.Pipeline = pipeline.DefaultConfig()
	}
	s := &Server{
		cfg:   cfg,
		mux:   http.NewServeMux(),
		tmpl:  template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl.html")),
		store: NewStore(cfg.MaxDatasets),
	}
	s.routes()
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler { return s.withRequestID(s.mux) }

// Store exposes the dataset store.
func (s *Server) Store() *Store { return s.store }

// Run listens on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("webui: listening addr=%s max_upload=%s", s.cfg.Addr, humanize.Bytes(uint64(s.cfg.MaxUploadBytes)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("webui: shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /contact", s.handleContact)
	s.mux.HandleFunc("GET /explore", s.handleExploreForm)
	s.mux.HandleFunc("POST /explore/upload", s.handleUpload)
	s.mux.HandleFunc("GET /explore/{id}", s.handleDataset)
	s.mux.HandleFunc("GET /explore/{id}/download", s.handleDownload)
	s.mux.HandleFunc("GET /api/explore/{id}/views", s.handleAPIViews)
	if s.cfg.Metrics != nil {
		s.mux.Handle("GET /metrics", s.cfg.Metrics)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID tags every response with X-Request-Id and logs failures (and
// everything when verbose).
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		if s.cfg.Verbose || rec.status >= 500 {
			log.Printf("webui: req=%s method=%s path=%s status=%d took=%s",
				id, r.Method, r.URL.Path, rec.status, time.Since(start).Truncate(time.Microsecond))
		}
	})
}
