package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names a stream compression for downloads.
type Codec string

const (
	CodecNone   Codec = ""
	CodecZstd   Codec = "zstd"
	CodecSnappy Codec = "snappy"
	CodecLZ4    Codec = "lz4"
	CodecBrotli Codec = "brotli"
)

// ParseCodec maps a user supplied name to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CodecNone, nil
	case "zstd", "zst":
		return CodecZstd, nil
	case "snappy", "sz":
		return CodecSnappy, nil
	case "lz4":
		return CodecLZ4, nil
	case "brotli", "br":
		return CodecBrotli, nil
	default:
		return "", fmt.Errorf("export: unknown compression %q", s)
	}
}

// Extension is the file name suffix for c, including the dot.
func (c Codec) Extension() string {
	switch c {
	case CodecZstd:
		return ".zst"
	case CodecSnappy:
		return ".sz"
	case CodecLZ4:
		return ".lz4"
	case CodecBrotli:
		return ".br"
	}
	return ""
}

// Level is a codec independent compression level.
type Level int

const (
	LevelDefault Level = 0
	LevelFastest Level = 1
	LevelBetter  Level = 3
	LevelBest    Level = 9
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Compress wraps w so that everything written is compressed with c. Close
// must be called to flush the stream; it does not close w. Snappy ignores
// level.
func Compress(w io.Writer, c Codec, level Level) (io.WriteCloser, error) {
	switch c {
	case CodecNone:
		return nopCloser{w}, nil
	case CodecZstd:
		zl := zstd.SpeedDefault
		switch level {
		case LevelFastest:
			zl = zstd.SpeedFastest
		case LevelBetter:
			zl = zstd.SpeedBetterCompression
		case LevelBest:
			zl = zstd.SpeedBestCompression
		}
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zl))
		if err != nil {
			return nil, fmt.Errorf("export: zstd writer: %w", err)
		}
		return enc, nil
	case CodecSnappy:
		return snappy.NewBufferedWriter(w), nil
	case CodecLZ4:
		zw := lz4.NewWriter(w)
		ll := lz4.Fast
		switch level {
		case LevelBetter:
			ll = lz4.Level5
		case LevelBest:
			ll = lz4.Level9
		}
		if err := zw.Apply(lz4.CompressionLevelOption(ll)); err != nil {
			return nil, fmt.Errorf("export: lz4 writer: %w", err)
		}
		return zw, nil
	case CodecBrotli:
		bl := brotli.DefaultCompression
		switch level {
		case LevelFastest:
			bl = brotli.BestSpeed
		case LevelBest:
			bl = brotli.BestCompression
		}
		return brotli.NewWriterLevel(w, bl), nil
	default:
		return nil, fmt.Errorf("export: unknown compression %q", string(c))
	}
}
