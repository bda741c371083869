package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the job
// (e.g. "outputs[1].compression").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateJob lints a decoded Job without mutating it.
func ValidateJob(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(j.Source)...)
	issues = append(issues, validateLoader(j.Loader)...)
	issues = append(issues, validateFilters(j.Filters)...)
	issues = append(issues, validateOutputs(j.Outputs)...)
	if j.Storage != nil {
		issues = append(issues, validateStorage(*j.Storage)...)
	}
	issues = append(issues, validateRuntime(j.Runtime)...)

	if len(j.Outputs) == 0 && j.Storage == nil {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "outputs",
			Message:  "no outputs and no storage; the run only prints the views",
		})
	}
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch strings.TrimSpace(s.Kind) {
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "url":
		u, err := url.Parse(s.URL.Href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.url.href",
				Message:  fmt.Sprintf("url source requires an http(s) URL, got %q", s.URL.Href),
			})
		}
		if s.URL.InsecureTLS {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "source.url.insecure_tls",
				Message:  "TLS certificate verification is disabled",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; want file or url", s.Kind),
		})
	}
	return issues
}

func validateLoader(l Loader) []Issue {
	var issues []Issue

	switch strings.ToLower(l.Options.String("encoding", "auto")) {
	case "auto", "latin1", "latin-1", "iso-8859-1", "iso88591", "utf8", "utf-8":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "loader.options.encoding",
			Message:  fmt.Sprintf("unsupported encoding %q", l.Options.String("encoding", "")),
		})
	}
	if c := l.Options.String("comma", ","); len([]rune(c)) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "loader.options.comma",
			Message:  "comma must be exactly one character",
		})
	}
	return issues
}

func validateFilters(f map[string][]string) []Issue {
	var issues []Issue
	for col, vals := range f {
		if strings.TrimSpace(col) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "filters",
				Message:  "filter column name must not be empty",
			})
			continue
		}
		if len(vals) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "filters." + col,
				Message:  "empty value list does not constrain anything",
			})
		}
	}
	return issues
}

func validateOutputs(outs []Output) []Issue {
	var issues []Issue
	for i, o := range outs {
		path := fmt.Sprintf("outputs[%d]", i)
		switch o.Kind {
		case "", "csv", "parquet":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".kind",
				Message:  fmt.Sprintf("unknown output kind %q; want csv or parquet", o.Kind),
			})
		}
		if strings.TrimSpace(o.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".path",
				Message:  "output path must not be empty",
			})
		}
		switch strings.ToLower(o.Compression) {
		case "", "none", "zstd", "zst", "snappy", "sz", "lz4", "brotli", "br":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".compression",
				Message:  fmt.Sprintf("unknown compression %q", o.Compression),
			})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	}

	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	if r.HTTPRetries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.http_retries",
			Message:  "http_retries must not be negative",
		})
	}
	if r.HTTPTimeoutSec < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.http_timeout_sec",
			Message:  "http_timeout_sec must not be negative",
		})
	}
	return issues
}
