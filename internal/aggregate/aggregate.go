// Package aggregate derives the chart views of the dashboard from a (filtered)
// table: grouped sums for the bar and pie charts and a three-column projection
// for the scatter chart.
package aggregate

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"airbnbdash/internal/table"
)

// Group is one row of a View: a distinct key and the sum of the measure over
// the rows carrying it.
type Group struct {
	Key   string
	Total decimal.Decimal
}

// View is a grouped sum. Groups are listed in order of first appearance of
// their key in the source table.
type View struct {
	GroupColumn   string
	MeasureColumn string
	Groups        []Group
}

// SumByGroup groups the rows of t by groupColumn and sums measureColumn within
// each group. Null or non-numeric measures add nothing, but their group is
// still listed. Rows with a null key are grouped under the empty key. An empty
// table yields an empty View.
func SumByGroup(t *table.Table, groupColumn, measureColumn string) (*View, error) {
	g, err := t.Column(groupColumn, "sum by group")
	if err != nil {
		return nil, err
	}
	m, err := t.Column(measureColumn, "sum by group")
	if err != nil {
		return nil, err
	}

	v := &View{GroupColumn: groupColumn, MeasureColumn: measureColumn}
	pos := make(map[string]int)
	for i := 0; i < t.Len(); i++ {
		key, _ := t.Text(i, g)
		p, ok := pos[key]
		if !ok {
			p = len(v.Groups)
			pos[key] = p
			v.Groups = append(v.Groups, Group{Key: key})
		}
		if d, ok := t.Number(i, m); ok {
			v.Groups[p].Total = v.Groups[p].Total.Add(d)
		}
	}
	return v, nil
}

// Len returns the number of groups.
func (v *View) Len() int { return len(v.Groups) }

// Keys returns the group keys in order.
func (v *View) Keys() []string {
	out := make([]string, len(v.Groups))
	for i, g := range v.Groups {
		out[i] = g.Key
	}
	return out
}

// Total returns the sum over all groups.
func (v *View) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, g := range v.Groups {
		sum = sum.Add(g.Total)
	}
	return sum
}

// Share is a group's part of the view total, in percent.
type Share struct {
	Key     string
	Percent decimal.Decimal
}

// Shares returns each group's percentage of Total, rounded to two decimal
// places. When the total is zero every share is zero.
func (v *View) Shares() []Share {
	total := v.Total()
	out := make([]Share, len(v.Groups))
	for i, g := range v.Groups {
		out[i] = Share{Key: g.Key, Percent: decimal.Zero}
		if !total.IsZero() {
			out[i].Percent = g.Total.Mul(decimal.NewFromInt(100)).DivRound(total, 2)
		}
	}
	return out
}

// Table renders the view as a two-column table: the group column (text) and
// the measure column (number).
func (v *View) Table() (*table.Table, error) {
	s, err := table.NewSchema(
		table.Column{Name: v.GroupColumn, Type: table.Text},
		table.Column{Name: v.MeasureColumn, Type: table.Number},
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate: view schema: %w", err)
	}
	rows := make([]table.Row, len(v.Groups))
	for i, g := range v.Groups {
		rows[i] = table.Row{g.Key, g.Total}
	}
	return table.New(s, rows)
}

// MarshalJSON writes totals as JSON numbers so chart code can use them as-is.
func (v *View) MarshalJSON() ([]byte, error) {
	type group struct {
		Key     string      `json:"key"`
		Total   json.Number `json:"total"`
		Percent json.Number `json:"percent"`
	}
	out := struct {
		Group   string      `json:"group"`
		Measure string      `json:"measure"`
		Groups  []group     `json:"groups"`
		Total   json.Number `json:"total"`
	}{
		Group:   v.GroupColumn,
		Measure: v.MeasureColumn,
		Groups:  make([]group, len(v.Groups)),
		Total:   json.Number(v.Total().String()),
	}
	for i, s := range v.Shares() {
		out.Groups[i] = group{
			Key:     s.Key,
			Total:   json.Number(v.Groups[i].Total.String()),
			Percent: json.Number(s.Percent.String()),
		}
	}
	return json.Marshal(out)
}

// Project returns the x, y and color columns of t, in that order, for every
// row of t. No aggregation is done. A column named on more than one axis is
// repeated, with the axis appended to the later copies ("room_type_color").
func Project(t *table.Table, x, y, color string) (*table.Table, error) {
	names := []string{x, y, color}
	axes := []string{"x", "y", "color"}
	pos := make([]int, len(names))
	cols := make([]table.Column, len(names))
	used := make(map[string]struct{}, len(names))
	for i, n := range names {
		p, err := t.Column(n, "project")
		if err != nil {
			return nil, err
		}
		pos[i] = p
		cols[i] = t.Schema().At(p)
		for {
			if _, dup := used[cols[i].Name]; !dup {
				break
			}
			cols[i].Name += "_" + axes[i]
		}
		used[cols[i].Name] = struct{}{}
	}
	s, err := table.NewSchema(cols...)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	rows := make([]table.Row, t.Len())
	for i := range rows {
		src := t.Row(i)
		r := make(table.Row, len(pos))
		for j, p := range pos {
			r[j] = src[p]
		}
		rows[i] = r
	}
	return table.New(s, rows)
}

// Head returns the first n rows of t for the preview table.
func Head(t *table.Table, n int) *table.Table {
	return t.Head(n)
}
