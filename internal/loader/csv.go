package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"airbnbdash/internal/table"
)

// csvSource reads delimited text with encoding/csv. The reader is configured
// leniently (lazy quotes, variable width); build enforces the header width.
type csvSource struct {
	cr *csv.Reader
}

func newCSVSource(data []byte, opt Options) (*csvSource, error) {
	// Strip the BOM at byte level so it cannot end up inside a quoted header.
	data = bytes.TrimPrefix(data, []byte(utf8BOM))

	r, err := decodeText(data, opt.Encoding)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(r)
	cr.Comma = ','
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return &csvSource{cr: cr}, nil
}

func (s *csvSource) Header() ([]string, error) {
	h, err := s.cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, table.ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", table.ErrMalformed, err)
	}
	return h, nil
}

func (s *csvSource) Next() ([]string, error) {
	rec, err := s.cr.Read()
	if err == nil || errors.Is(err, io.EOF) {
		return rec, err
	}
	return nil, fmt.Errorf("%w: %v", table.ErrMalformed, err)
}

func (s *csvSource) Close() error { return nil }

// decodeText returns a reader producing UTF-8 text for the given encoding.
func decodeText(data []byte, encoding string) (io.Reader, error) {
	switch normalizeEncoding(encoding) {
	case "", "auto":
		if utf8.Valid(data) {
			return bytes.NewReader(data), nil
		}
		return latin1(data), nil
	case "latin1", "iso88591":
		return latin1(data), nil
	case "utf8":
		return bytes.NewReader(data), nil
	default:
		return nil, fmt.Errorf("unsupported text encoding %q", encoding)
	}
}

func latin1(data []byte) io.Reader {
	return transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder())
}

func normalizeEncoding(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "").Replace(s)
}
