package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"airbnbdash/internal/config"
	"airbnbdash/internal/datasource"
	"airbnbdash/internal/datasource/file"
	"airbnbdash/internal/datasource/httpds"
	"airbnbdash/internal/export"
	"airbnbdash/internal/filter"
	"airbnbdash/internal/loader"
	"airbnbdash/internal/metrics"
	"airbnbdash/internal/pipeline"
	"airbnbdash/internal/storage"
	"airbnbdash/internal/table"
)

// runJob loads the dataset, applies the job's filters, writes every output,
// publishes to storage when configured and prints the views to stdout.
func runJob(ctx context.Context, j config.Job, stdout io.Writer) error {
	src, err := openSource(j)
	if err != nil {
		return err
	}

	var t *table.Table
	err = metrics.Time(j.Job, "load", func() (err error) {
		t, err = loader.LoadSource(ctx, src, loaderOptions(j.Loader.Options))
		return err
	})
	if err != nil {
		return err
	}
	metrics.RecordRows(j.Job, "loaded", int64(t.Len()))
	log.Printf("job: loaded name=%s rows=%d columns=%d", src.Name(), t.Len(), t.Schema().Len())

	cfg := pipeline.DefaultConfig()
	cfg.Job = j.Job
	views, err := cfg.Run(filter.NewIndex(t), filter.Spec(j.Filters))
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	log.Printf("job: %s", views.Describe())

	for i, o := range j.Outputs {
		err := metrics.Time(j.Job, "export", func() error {
			return writeOutput(o, views.Filtered)
		})
		if err != nil {
			return fmt.Errorf("outputs[%d]: %w", i, err)
		}
		metrics.RecordRows(j.Job, "exported", int64(views.Filtered.Len()))
		log.Printf("job: wrote kind=%s path=%s rows=%d", outputKind(o), o.Path, views.Filtered.Len())
	}

	if j.Storage != nil {
		if err := publish(ctx, j, views.Filtered); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

// namedSource overrides the file name of a source, for URLs whose path does
// not carry the extension.
type namedSource struct {
	datasource.Named
	name string
}

func (n namedSource) Name() string { return n.name }

func openSource(j config.Job) (datasource.Named, error) {
	switch j.Source.Kind {
	case "file":
		return file.NewLocal(j.Source.File.Path), nil
	case "url":
		c := httpds.NewClient(httpds.Config{
			Timeout:            time.Duration(j.Runtime.HTTPTimeoutSec) * time.Second,
			MaxRetries:         j.Runtime.HTTPRetries,
			InsecureSkipVerify: j.Source.URL.InsecureTLS,
			UserAgent:          "airbnbdash-listings",
		})
		var src datasource.Named = httpds.NewURL(c, j.Source.URL.Href)
		if j.Source.URL.Name != "" {
			src = namedSource{Named: src, name: j.Source.URL.Name}
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", j.Source.Kind)
	}
}

// loaderOptions maps the free-form loader options onto loader.Options.
func loaderOptions(o config.Options) loader.Options {
	opt := loader.Options{
		Encoding:       o.String("encoding", "auto"),
		Comma:          o.Rune("comma", ','),
		TrimSpace:      o.Bool("trim_space", false),
		FoldHeaders:    o.Bool("fold_headers", false),
		Sheet:          o.String("sheet", ""),
		Required:       o.StringSlice("required"),
		NumericColumns: o.StringSlice("numeric_columns"),
	}
	if m := o.StringMap("header_map"); len(m) > 0 {
		opt.HeaderMap = m
	}
	return opt
}

func outputKind(o config.Output) string {
	if o.Kind == "" {
		return "csv"
	}
	return o.Kind
}

// writeOutput writes t to o.Path through a temp file in the same directory,
// renamed into place once complete.
func writeOutput(o config.Output, t *table.Table) (err error) {
	codec, err := export.ParseCodec(o.Compression)
	if err != nil {
		return err
	}
	dir := filepath.Dir(o.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(o.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w, err := export.Compress(tmp, codec, export.LevelDefault)
	if err != nil {
		return err
	}
	switch strings.ToLower(outputKind(o)) {
	case "csv":
		err = export.WriteDelimitedText(w, t)
	case "parquet":
		err = export.ToParquet(w, t)
	default:
		err = fmt.Errorf("unsupported output kind %q", o.Kind)
	}
	if err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", codec, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	return os.Rename(tmp.Name(), o.Path)
}

func publish(ctx context.Context, j config.Job, t *table.Table) error {
	s := j.Storage
	repo, err := storage.New(ctx, storage.Config{
		Kind:    s.Kind,
		DSN:     s.DB.DSN,
		Table:   s.DB.Table,
		Columns: s.DB.Columns,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer repo.Close()

	return metrics.Time(j.Job, "publish", func() error {
		_, err := storage.Publish(ctx, repo, t, storage.PublishOptions{
			Kind:        s.Kind,
			Table:       s.DB.Table,
			Columns:     s.DB.Columns,
			BatchSize:   j.Runtime.BatchSize,
			CreateTable: s.DB.AutoCreateTable,
			Job:         j.Job,
		})
		return err
	})
}
