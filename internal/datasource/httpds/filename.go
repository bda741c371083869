package httpds

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// filenameCleaner replaces sequences of non-alphanumeric characters with "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9.]+`)

// HashString returns a stable hex digest of s.
func HashString(s string) string {
	return strconv.FormatUint(xxh3.HashString(s), 16)
}

// FilenameFromURL derives a filesystem-safe file name from a URL. The last
// path segment is used when it carries an extension (so ".csv" / ".xlsx"
// survive for format detection); otherwise the whole URL is hashed.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || !strings.Contains(base, ".") {
		return HashString(rawURL)
	}
	return filenameCleaner.ReplaceAllString(base, "_")
}
