package table

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel causes carried inside a LoadError.
var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrMissingColumns    = errors.New("required columns are missing")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrMalformed         = errors.New("file could not be parsed")
)

// LoadError reports a dataset that could not be turned into a Table: an empty
// or malformed file, an unsupported format, or missing required columns. It
// is a user-facing error; the message is meant to be shown as-is.
type LoadError struct {
	File    string
	Missing []string // set when Err is ErrMissingColumns
	Err     error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("load")
	if e.File != "" {
		fmt.Fprintf(&b, " %s", e.File)
	}
	b.WriteString(": ")
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "%v: %s", ErrMissingColumns, strings.Join(e.Missing, ", "))
		return b.String()
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

// ColumnNotFoundError reports a pipeline call that referenced a column the
// table does not have. It signals a caller bug, not bad user input.
type ColumnNotFoundError struct {
	Column    string
	Op        string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("%s: column %q not found (have %s)", e.Op, e.Column, strings.Join(e.Available, ", "))
}

// IsLoadError reports whether err is, or wraps, a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsColumnNotFound reports whether err is, or wraps, a *ColumnNotFoundError.
func IsColumnNotFound(err error) bool {
	var ce *ColumnNotFoundError
	return errors.As(err, &ce)
}
