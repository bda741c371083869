// Package loader turns an uploaded dataset (comma-separated text or an Excel
// workbook) into a table.Table with an explicit schema.
//
// The loader is the only place that deals with raw bytes. Everything it
// returns has already been checked: headers are normalized, the required
// listing columns are present, numeric columns are parsed, and every row has
// the schema width. Failures are reported as *table.LoadError so the caller can
// show the message to the user and keep its previous state.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"airbnbdash/internal/datasource"
	"airbnbdash/internal/table"
)

// Format is the container format of an input file.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "spreadsheet"
)

// Listing columns every dataset must carry.
const (
	ColNeighbourhoodGroup = "neighbourhood_group"
	ColNeighbourhood      = "neighbourhood"
	ColRoomType           = "room_type"
	ColPrice              = "price"
)

// RequiredColumns is the default set of columns a dataset must contain.
var RequiredColumns = []string{ColNeighbourhoodGroup, ColNeighbourhood, ColRoomType, ColPrice}

// Options tunes loading. The zero value loads a listing dataset the way the
// dashboard expects it.
type Options struct {
	// HeaderMap maps source header names (after trimming) to canonical column
	// names. Unmapped headers keep their spelling unless FoldHeaders is set.
	HeaderMap map[string]string

	// FoldHeaders folds diacritics, lowercases and turns spaces into
	// underscores for headers not covered by HeaderMap, so "Neighbourhood
	// Group" matches neighbourhood_group.
	FoldHeaders bool

	// Required overrides RequiredColumns when non-nil.
	Required []string

	// NumericColumns lists columns declared as table.Number. Defaults to
	// ["price"]. All other columns are text and pass through untouched.
	NumericColumns []string

	// Encoding for delimited text: "auto" (default), "latin1" or "utf-8".
	// auto keeps valid UTF-8 input as-is and decodes anything else as
	// ISO-8859-1, so legacy exports load without mangling UTF-8 ones.
	Encoding string

	// Comma is the field delimiter for delimited text (default ',').
	Comma rune

	// TrimSpace trims surrounding whitespace from every cell.
	TrimSpace bool

	// Sheet selects a workbook sheet by name; the first sheet when empty.
	Sheet string
}

func (o Options) required() []string {
	if o.Required != nil {
		return o.Required
	}
	return RequiredColumns
}

func (o Options) numeric() []string {
	if o.NumericColumns != nil {
		return o.NumericColumns
	}
	return []string{ColPrice}
}

// DetectFormat infers the format from the file name extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatSpreadsheet, nil
	default:
		return "", &table.LoadError{File: filename, Err: fmt.Errorf("%w: %q", table.ErrUnsupportedFormat, filepath.Ext(filename))}
	}
}

// Load parses data using the format implied by filename and default Options.
func Load(data []byte, filename string) (*table.Table, error) {
	return LoadWith(data, filename, Options{})
}

// LoadWith parses data using the format implied by filename.
func LoadWith(data []byte, filename string, opt Options) (*table.Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, &table.LoadError{File: filename, Err: table.ErrEmptyFile}
	}

	var src rowSource
	switch format {
	case FormatCSV:
		src, err = newCSVSource(data, opt)
	case FormatSpreadsheet:
		src, err = newSheetSource(data, opt)
	}
	if err != nil {
		return nil, asLoadError(filename, err)
	}
	defer src.Close()

	t, err := build(src, opt)
	if err != nil {
		return nil, asLoadError(filename, err)
	}
	return t, nil
}

// LoadSource reads the whole dataset from src and loads it. The format is
// inferred from src.Name().
func LoadSource(ctx context.Context, src datasource.Named, opt Options) (*table.Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", src.Name(), err)
	}
	return LoadWith(data, src.Name(), opt)
}

// rowSource yields the header once and then data rows until io.EOF.
type rowSource interface {
	Header() ([]string, error)
	Next() ([]string, error)
	Close() error
}

// build assembles a Table from a rowSource: header normalization, required
// column check, schema declaration and per-cell typing.
func build(src rowSource, opt Options) (*table.Table, error) {
	raw, err := src.Header()
	if err != nil {
		return nil, err
	}
	names := NormalizeHeaders(raw, opt.HeaderMap, opt.FoldHeaders)
	if len(names) == 0 {
		return nil, table.ErrEmptyFile
	}

	present := make(map[string]struct{}, len(names))
	for _, n := range names {
		present[n] = struct{}{}
	}
	var missing []string
	for _, r := range opt.required() {
		if _, ok := present[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return nil, &table.LoadError{Missing: missing, Err: table.ErrMissingColumns}
	}

	numeric := make(map[string]struct{}, len(opt.numeric()))
	for _, n := range opt.numeric() {
		numeric[n] = struct{}{}
	}
	cols := make([]table.Column, len(names))
	for i, n := range names {
		cols[i] = table.Column{Name: n, Type: table.Text}
		if _, ok := numeric[n]; ok {
			cols[i].Type = table.Number
		}
	}
	schema, err := table.NewSchema(cols...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", table.ErrMalformed, err)
	}

	var rows []table.Row
	for line := 2; ; line++ {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(rec) {
			continue
		}
		if len(rec) > len(cols) {
			// Trailing empty cells beyond the header are tolerated.
			if !isBlank(rec[len(cols):]) {
				return nil, fmt.Errorf("%w: line %d has %d fields, header has %d", table.ErrMalformed, line, len(rec), len(cols))
			}
			rec = rec[:len(cols)]
		}
		row := make(table.Row, len(cols))
		for i := range cols {
			if i >= len(rec) {
				continue
			}
			row[i] = cell(rec[i], cols[i].Type, opt.TrimSpace)
		}
		rows = append(rows, row)
	}

	return table.New(schema, rows)
}

// cell converts one raw field into its typed representation.
func cell(s string, typ table.ColumnType, trim bool) any {
	if trim {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil
	}
	if typ != table.Number {
		return s
	}
	if d, ok := ParseNumber(s); ok {
		return d
	}
	// Kept verbatim so the export still shows what the file said.
	return s
}

// ParseNumber parses a measure cell. It tolerates surrounding spaces, a
// leading currency symbol and thousands separators ("$1,200.00").
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// NormalizeHeaders produces the column names of a header row. It trims each
// cell, strips a UTF-8 BOM from the first one and applies headerMap. With fold
// set, unmapped headers are folded to ASCII, lowercased and have spaces
// replaced with underscores; otherwise they keep their spelling. Blank headers
// (a leading index column, typically) become "unnamed_<pos>" and repeated
// names get the first free "_<n>" suffix. Normalization is idempotent, so
// exported headers load back unchanged.
func NormalizeHeaders(h []string, headerMap map[string]string, fold bool) []string {
	res := make([]string, len(h))
	taken := make(map[string]struct{}, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimSpace(strings.TrimPrefix(c, utf8BOM))
		}
		name, ok := headerMap[c]
		if !ok {
			name = c
			if fold {
				name = strings.ReplaceAll(strings.ToLower(foldASCII(c)), " ", "_")
			}
		}
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i)
		}
		res[i] = name
	}
	// Names present in the file win over generated suffixes.
	for _, name := range res {
		taken[name] = struct{}{}
	}
	used := make(map[string]struct{}, len(res))
	for i, name := range res {
		if _, dup := used[name]; dup {
			for n := 1; ; n++ {
				cand := fmt.Sprintf("%s_%d", name, n)
				_, inFile := taken[cand]
				_, inUse := used[cand]
				if !inFile && !inUse {
					name = cand
					break
				}
			}
		}
		used[name] = struct{}{}
		res[i] = name
	}
	return res
}

const utf8BOM = "\uFEFF"

// foldASCII removes combining marks (é → e) so "Neighbourhood Gróup" and
// "neighbourhood group" land on the same column name.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// asLoadError wraps err in a *table.LoadError for filename unless it already
// is one, in which case the file name is filled in.
func asLoadError(filename string, err error) error {
	var le *table.LoadError
	if errors.As(err, &le) {
		if le.File == "" {
			le.File = filename
		}
		return le
	}
	if !errors.Is(err, table.ErrEmptyFile) && !errors.Is(err, table.ErrMalformed) {
		err = fmt.Errorf("%w: %v", table.ErrMalformed, err)
	}
	return &table.LoadError{File: filename, Err: err}
}
