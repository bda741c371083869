package filter

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"airbnbdash/internal/table"
)

// Index holds, per column, a bitmap of row positions for every distinct cell
// value. Columns are indexed on first use. An Index is safe for concurrent
// use and is meant to live as long as the table it was built for.
type Index struct {
	t *table.Table

	mu       sync.Mutex
	postings map[int]map[string]*roaring.Bitmap
}

// NewIndex returns an empty index over t.
func NewIndex(t *table.Table) *Index {
	return &Index{t: t, postings: make(map[int]map[string]*roaring.Bitmap)}
}

// Table returns the indexed table.
func (ix *Index) Table() *table.Table { return ix.t }

func (ix *Index) column(col int) map[string]*roaring.Bitmap {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if p, ok := ix.postings[col]; ok {
		return p
	}
	p := make(map[string]*roaring.Bitmap)
	for i := 0; i < ix.t.Len(); i++ {
		v, ok := ix.t.Text(i, col)
		if !ok {
			continue
		}
		bm, ok := p[v]
		if !ok {
			bm = roaring.New()
			p[v] = bm
		}
		bm.Add(uint32(i))
	}
	for _, bm := range p {
		bm.RunOptimize()
	}
	ix.postings[col] = p
	return p
}

// Match returns the positions of the rows satisfying spec, or nil when spec
// has no active constraint. The returned bitmap is owned by the caller.
func (ix *Index) Match(spec Spec) (*roaring.Bitmap, error) {
	cols := spec.Columns()
	pos := make([]int, len(cols))
	for i, c := range cols {
		p, err := ix.t.Column(c, "filter")
		if err != nil {
			return nil, err
		}
		pos[i] = p
	}

	var acc *roaring.Bitmap
	for i, c := range cols {
		vals := spec[c]
		if len(vals) == 0 {
			continue
		}
		p := ix.column(pos[i])
		union := roaring.New()
		for _, v := range vals {
			if bm, ok := p[v]; ok {
				union.Or(bm)
			}
		}
		if acc == nil {
			acc = union
		} else {
			acc.And(union)
		}
		if acc.IsEmpty() {
			break
		}
	}
	return acc, nil
}

// Apply is the index-backed form of the package level Apply.
func (ix *Index) Apply(spec Spec) (*table.Table, error) {
	bm, err := ix.Match(spec)
	if err != nil {
		return nil, err
	}
	if bm == nil {
		return ix.t, nil
	}
	rows := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		rows = append(rows, int(it.Next()))
	}
	return ix.t.Select(rows), nil
}
