// Package filter selects the rows of a table.Table that match a set of
// categorical constraints.
//
// A Spec maps a column name to the values the user selected for it. Within a
// column the values are alternatives (OR); across columns every active
// constraint must hold (AND). A column with no selected values does not
// constrain anything, but it must still exist: naming an unknown column is a
// caller bug and is reported as *table.ColumnNotFoundError.
//
// Cells are compared in their exported text form (table.FormatCell), so a
// number column can be filtered with "100" or "100.5". Null cells never match.
package filter

import (
	"net/url"
	"sort"
	"strings"

	"airbnbdash/internal/table"
)

// Spec is a set of per-column constraints.
type Spec map[string][]string

// Normalize returns a copy of s without empty value sets and without repeated
// values. The first occurrence of each value keeps its position.
func (s Spec) Normalize() Spec {
	out := make(Spec, len(s))
	for col, vals := range s {
		seen := make(map[string]struct{}, len(vals))
		var keep []string
		for _, v := range vals {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			keep = append(keep, v)
		}
		if len(keep) > 0 {
			out[col] = keep
		}
	}
	return out
}

// Columns returns the constrained column names in sorted order, including
// those with an empty value set.
func (s Spec) Columns() []string {
	cols := make([]string, 0, len(s))
	for c := range s {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Active reports whether s constrains at least one column.
func (s Spec) Active() bool {
	for _, v := range s {
		if len(v) > 0 {
			return true
		}
	}
	return false
}

// Encode renders s as a stable query string (sorted keys, values in order).
func (s Spec) Encode() string {
	q := url.Values{}
	for _, c := range s.Columns() {
		for _, v := range s[c] {
			q.Add(c, v)
		}
	}
	return q.Encode()
}

// ParseSpec builds a Spec from form or query values. Only the listed columns
// are read; blank entries are ignored.
func ParseSpec(values url.Values, columns ...string) Spec {
	s := make(Spec, len(columns))
	for _, c := range columns {
		for _, v := range values[c] {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			s[c] = append(s[c], v)
		}
	}
	return s.Normalize()
}

// Apply returns the rows of t that satisfy spec, in their original order.
// t is not modified. With no active constraint the result is t itself.
func Apply(t *table.Table, spec Spec) (*table.Table, error) {
	return NewIndex(t).Apply(spec)
}

// Options returns the distinct non-null values of column in order of first
// appearance. It feeds the selection controls of the dashboard.
func Options(t *table.Table, column string) ([]string, error) {
	col, err := t.Column(column, "options")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for i := 0; i < t.Len(); i++ {
		v, ok := t.Text(i, col)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}
