package table

import (
	"github.com/zeebo/xxh3"
)

// Fingerprint returns a 64-bit xxh3 digest of the schema and every cell. Two
// tables with equal content (as rendered by FormatCell) share a fingerprint.
// The value is computed once and cached.
func (t *Table) Fingerprint() uint64 {
	t.fpOnce.Do(func() {
		h := xxh3.New()
		for _, c := range t.schema.cols {
			h.WriteString(c.Name)
			h.Write([]byte{0x1f})
			h.WriteString(string(c.Type))
			h.Write([]byte{0x1e})
		}
		for _, r := range t.rows {
			for _, v := range r {
				if v == nil {
					// distinguishes null from ""
					h.Write([]byte{0x00})
				} else {
					h.WriteString(FormatCell(v))
				}
				h.Write([]byte{0x1f})
			}
			h.Write([]byte{0x1e})
		}
		t.fp = h.Sum64()
	})
	return t.fp
}
