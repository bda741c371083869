package webui

import (
	"fmt"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"airbnbdash/internal/filter"
	"airbnbdash/internal/table"
)

// Dataset is one uploaded file, loaded once and never mutated afterwards.
// Every request filters its own copy of the rows through Index.
type Dataset struct {
	ID       string
	Name     string
	Size     int64
	LoadedAt time.Time
	Index    *filter.Index
	// Options holds the distinct values offered by each selection control.
	Options map[string][]string
}

// Table is the loaded table.
func (d *Dataset) Table() *table.Table { return d.Index.Table() }

// DatasetID derives the store key from the table contents, so uploading the
// same data twice lands on the same dataset.
func DatasetID(t *table.Table) string {
	return fmt.Sprintf("%016x", t.Fingerprint())
}

// Store keeps the most recently used datasets in memory.
type Store struct {
	mu    sync.Mutex // serializes Put's lookup-then-add
	cache *lru.Cache[string, *Dataset]
}

// NewStore returns a store holding at most max datasets (at least one).
func NewStore(max int) *Store {
	if max < 1 {
		max = 1
	}
	c, err := lru.NewWithEvict[string, *Dataset](max, func(id string, d *Dataset) {
		log.Printf("webui: evicted dataset id=%s name=%s rows=%d", id, d.Name, d.rows())
	})
	if err != nil {
		// Only a non-positive size fails, which is ruled out above.
		panic(fmt.Sprintf("webui: lru: %v", err))
	}
	return &Store{cache: c}
}

// Put inserts d and evicts the least recently used datasets beyond capacity.
// When the ID is already present the existing dataset is refreshed and
// returned instead.
func (s *Store) Put(d *Dataset) *Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.cache.Get(d.ID); ok {
		return cur
	}
	s.cache.Add(d.ID, d)
	return d
}

// Get returns the dataset for id and marks it as recently used.
func (s *Store) Get(id string) (*Dataset, bool) {
	return s.cache.Get(id)
}

// Len is the number of datasets held.
func (s *Store) Len() int { return s.cache.Len() }

func (d *Dataset) rows() int {
	if d.Index == nil {
		return 0
	}
	return d.Table().Len()
}
