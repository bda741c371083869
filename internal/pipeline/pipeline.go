// Package pipeline wires the filter engine, the aggregator and the exporter
// into the single call the dashboard makes on every interaction.
//
// Run takes an already loaded table and the current selection and returns
// every derived view the page needs. It holds no state between calls; the
// caller owns the table and the selection.
package pipeline

import (
	"encoding/json"
	"fmt"

	"airbnbdash/internal/aggregate"
	"airbnbdash/internal/export"
	"airbnbdash/internal/filter"
	"airbnbdash/internal/loader"
	"airbnbdash/internal/metrics"
	"airbnbdash/internal/table"
)

// Config names the columns behind each view.
type Config struct {
	// Job labels the metrics emitted by Run.
	Job string

	Measure  string
	BarGroup string
	PieGroup string

	ScatterX     string
	ScatterY     string
	ScatterColor string

	PreviewRows int
}

// DefaultConfig is the listing dashboard: price by room type (bar), price by
// neighbourhood group (pie), neighbourhood group against neighbourhood
// coloured by room type (scatter), and a 20 row preview.
func DefaultConfig() Config {
	return Config{
		Job:          "dashboard",
		Measure:      loader.ColPrice,
		BarGroup:     loader.ColRoomType,
		PieGroup:     loader.ColNeighbourhoodGroup,
		ScatterX:     loader.ColNeighbourhoodGroup,
		ScatterY:     loader.ColNeighbourhood,
		ScatterColor: loader.ColRoomType,
		PreviewRows:  20,
	}
}

// FilterColumns are the columns the dashboard offers as selections.
var FilterColumns = []string{loader.ColNeighbourhoodGroup, loader.ColNeighbourhood}

// Views is everything derived from one (table, selection) pair.
type Views struct {
	Spec     filter.Spec
	Filtered *table.Table
	Bar      *aggregate.View
	Pie      *aggregate.View
	Scatter  *table.Table
	Preview  *table.Table
}

// Run applies spec to t and derives the views with DefaultConfig.
func Run(t *table.Table, spec filter.Spec) (*Views, error) {
	return DefaultConfig().Run(filter.NewIndex(t), spec)
}

// Run applies spec through ix and derives the views. Typed errors from the
// steps (*table.ColumnNotFoundError in particular) are returned unchanged.
func (c Config) Run(ix *filter.Index, spec filter.Spec) (*Views, error) {
	v := &Views{Spec: spec.Normalize()}

	err := metrics.Time(c.Job, "filter", func() (err error) {
		v.Filtered, err = ix.Apply(spec)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordRows(c.Job, "filtered", int64(v.Filtered.Len()))

	err = metrics.Time(c.Job, "aggregate", func() (err error) {
		if v.Bar, err = aggregate.SumByGroup(v.Filtered, c.BarGroup, c.Measure); err != nil {
			return err
		}
		if v.Pie, err = aggregate.SumByGroup(v.Filtered, c.PieGroup, c.Measure); err != nil {
			return err
		}
		v.Scatter, err = aggregate.Project(v.Filtered, c.ScatterX, c.ScatterY, c.ScatterColor)
		return err
	})
	if err != nil {
		return nil, err
	}

	v.Preview = aggregate.Head(v.Filtered, c.PreviewRows)
	return v, nil
}

// Export serializes the filtered table for download.
func (v *Views) Export() ([]byte, error) {
	return export.ToDelimitedText(v.Filtered)
}

// MarshalJSON renders the views for chart code: grouped sums, scatter points
// and the preview table.
func (v *Views) MarshalJSON() ([]byte, error) {
	scatter := make([]map[string]any, v.Scatter.Len())
	names := v.Scatter.Schema().Names()
	for i := range scatter {
		p := make(map[string]any, 3)
		for j, key := range []string{"x", "y", "color"} {
			p[key] = jsonCell(v.Scatter.Row(i)[j])
		}
		scatter[i] = p
	}
	out := struct {
		Filters     filter.Spec      `json:"filters"`
		Rows        int              `json:"rows"`
		Bar         *aggregate.View  `json:"bar"`
		Pie         *aggregate.View  `json:"pie"`
		ScatterAxes []string         `json:"scatter_axes"`
		Scatter     []map[string]any `json:"scatter"`
		Preview     TableJSON        `json:"preview"`
	}{
		Filters:     v.Spec,
		Rows:        v.Filtered.Len(),
		Bar:         v.Bar,
		Pie:         v.Pie,
		ScatterAxes: names,
		Scatter:     scatter,
		Preview:     NewTableJSON(v.Preview),
	}
	return json.Marshal(out)
}

// TableJSON is the JSON shape of a table: column names and row arrays. Nulls
// are JSON null and numbers JSON numbers.
type TableJSON struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewTableJSON converts t.
func NewTableJSON(t *table.Table) TableJSON {
	out := TableJSON{Columns: t.Schema().Names(), Rows: make([][]any, t.Len())}
	for i := range out.Rows {
		src := t.Row(i)
		r := make([]any, len(src))
		for j, c := range src {
			r[j] = jsonCell(c)
		}
		out.Rows[i] = r
	}
	return out
}

func jsonCell(v any) any {
	switch v.(type) {
	case nil:
		return nil
	case string:
		return v
	default:
		return json.Number(table.FormatCell(v))
	}
}

// Describe is a one-line summary used in logs.
func (v *Views) Describe() string {
	return fmt.Sprintf("rows=%d bar_groups=%d pie_groups=%d total=%s",
		v.Filtered.Len(), v.Bar.Len(), v.Pie.Len(), v.Bar.Total())
}
