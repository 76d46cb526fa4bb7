package mapping

import (
	"errors"
	"sync/atomic"
)

// ErrNotFound is returned by Resolve when no mapping accepts the title.
var ErrNotFound = errors.New("mapping not found")

// Table is the shared, read-mostly mapping table. Readers never block;
// ReplaceAll swaps the whole table atomically.
type Table struct {
	current atomic.Pointer[[]Mapping]
}

func NewTable(mappings []Mapping) *Table {
	t := &Table{}
	t.ReplaceAll(mappings)
	return t
}

// Resolve returns the first mapping whose canonical title or aliases equal
// title exactly.
func (t *Table) Resolve(title string) (Mapping, error) {
	for _, m := range t.snapshot() {
		if m.Matches(title) {
			return m.Clone(), nil
		}
	}
	return Mapping{}, ErrNotFound
}

// ReplaceAll installs a copy of mappings as the new table.
func (t *Table) ReplaceAll(mappings []Mapping) {
	next := make([]Mapping, len(mappings))
	for i, m := range mappings {
		next[i] = m.Clone()
	}
	t.current.Store(&next)
}

// All returns a copy of the table in order.
func (t *Table) All() []Mapping {
	snap := t.snapshot()
	out := make([]Mapping, len(snap))
	for i, m := range snap {
		out[i] = m.Clone()
	}
	return out
}

func (t *Table) Len() int {
	return len(t.snapshot())
}

func (t *Table) snapshot() []Mapping {
	p := t.current.Load()
	if p == nil {
		return nil
	}
	return *p
}
