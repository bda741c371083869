// Package datasource abstracts where dataset bytes come from. The loader only
// needs an io.ReadCloser plus a file name to infer the format from.
//
// Implementations live in the file (local disk) and httpds (retrying HTTP
// client) subpackages.
package datasource

import (
	"context"
	"io"
)

// Source opens a dataset for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Named is a Source that also knows the file name its content came from.
type Named interface {
	Source
	Name() string
}
