// Package config defines the JSON-serializable job model for the batch CLI
// and the environment-driven settings of the dashboard server.
//
// Jobs are decoded with the standard library; free-form option bags use the
// Options helper for typed access. Server settings come from the process
// environment, optionally seeded from a .env file.
//
// Example job (trimmed):
//
//	{
//	  "job":     "brooklyn_private_rooms",
//	  "source":  { "kind": "file", "file": { "path": "AB_NYC_2019.csv" } },
//	  "loader":  { "options": { "encoding": "auto", "header_map": { "Borough": "neighbourhood_group" } } },
//	  "filters": { "neighbourhood_group": ["Brooklyn"], "room_type": ["Private room"] },
//	  "outputs": [ { "kind": "csv", "path": "out/filtered_data.csv.zst", "compression": "zstd" } ],
//	  "storage": { "kind": "sqlite", "db": { "dsn": "file:out/listings.db", "table": "listings", "auto_create_table": true } },
//	  "runtime": { "batch_size": 1000 }
//	}
package config

import "encoding/json"

// Job describes one batch run: where the dataset comes from, how to load it,
// which rows to keep and where to write them.
type Job struct {
	// Job labels metrics and log lines for this run.
	Job string `json:"job"`

	Source Source `json:"source"`
	Loader Loader `json:"loader"`

	// Filters is the selection applied before anything is derived. Keys are
	// column names, values the accepted cell values.
	Filters map[string][]string `json:"filters"`

	Outputs []Output      `json:"outputs"`
	Storage *Storage      `json:"storage,omitempty"`
	Runtime RuntimeConfig `json:"runtime"`
}

// RuntimeConfig controls batching and network behaviour.
type RuntimeConfig struct {
	BatchSize      int `json:"batch_size"`
	HTTPRetries    int `json:"http_retries"`
	HTTPTimeoutSec int `json:"http_timeout_sec"`
}

// Source identifies the dataset location.
type Source struct {
	// Kind selects the source implementation: "file" or "url".
	Kind string `json:"kind"`

	File SourceFile `json:"file"`
	URL  SourceURL  `json:"url"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path"`
}

// SourceURL holds configuration for the "url" source kind.
type SourceURL struct {
	Href        string `json:"href"`
	InsecureTLS bool   `json:"insecure_tls"`
	// Name overrides the file name used for format detection when the URL
	// path has no extension.
	Name string `json:"name"`
}

// Loader configures how the dataset bytes become a table.
type Loader struct {
	// Options keys:
	//   encoding (string), comma (string), trim_space (bool), sheet (string),
	//   header_map (object), fold_headers (bool), required (array),
	//   numeric_columns (array)
	Options Options `json:"options"`
}

// Output is one file written from the filtered table.
type Output struct {
	// Kind is "csv" (default) or "parquet".
	Kind string `json:"kind"`
	Path string `json:"path"`
	// Compression is "", "zstd", "snappy", "lz4" or "brotli".
	Compression string `json:"compression"`
}

// Storage selects the relational sink the filtered table is published to.
type Storage struct {
	// Kind selects the backend: "postgres", "sqlite", "mssql" or "mysql".
	Kind string   `json:"kind"`
	DB   DBConfig `json:"db"`
}

// DBConfig configures the DB sink.
type DBConfig struct {
	// DSN is the driver connection string.
	DSN string `json:"dsn"`

	// Table is the destination table, optionally schema qualified.
	Table string `json:"table"`

	// Columns restricts and orders the published columns. Empty means every
	// column of the table.
	Columns []string `json:"columns"`

	// AutoCreateTable issues CREATE TABLE IF NOT EXISTS before loading.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns the provided default
// when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64, so both float64 and int are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. Used for the delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the string-valued entries of the object at key. Returns an
// empty map when the key is missing or not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		switch m := v.(type) {
		case map[string]any:
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		case map[string]string:
			for k, s := range m {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns the strings of the array at key, or nil when the key is
// missing or not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON decodes a missing or null "options" object to a non-nil,
// empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
