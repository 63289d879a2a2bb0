package records

import (
	"iter"
	"maps"
	"slices"
)

type entry struct {
	rec Record
	fp  string
}

// Collection is an ordered sequence of records in which no two records are
// structurally equal. Records placed in a Collection must not be mutated.
type Collection struct {
	entries []entry
	index   map[string]struct{}
}

// New returns a Collection holding recs in order, skipping duplicates.
func New(recs ...Record) *Collection {
	c := &Collection{
		entries: make([]entry, 0, len(recs)),
		index:   make(map[string]struct{}, len(recs)),
	}
	for _, r := range recs {
		c.Add(r)
	}
	return c
}

func (c *Collection) Len() int {
	return len(c.entries)
}

// At returns the i-th record.
func (c *Collection) At(i int) Record {
	return c.entries[i].rec
}

// Records returns the records in order. The slice is fresh; the records are not.
func (c *Collection) Records() []Record {
	out := make([]Record, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.rec
	}
	return out
}

// All iterates over the records in order.
func (c *Collection) All() iter.Seq2[int, Record] {
	return func(yield func(int, Record) bool) {
		for i, e := range c.entries {
			if !yield(i, e.rec) {
				return
			}
		}
	}
}

// Contains reports whether a structurally equal record is present.
func (c *Collection) Contains(r Record) bool {
	return c.has(Fingerprint(r))
}

func (c *Collection) has(fp string) bool {
	_, ok := c.index[fp]
	return ok
}

// Add appends r unless a structurally equal record is already present.
func (c *Collection) Add(r Record) {
	c.add(r, Fingerprint(r))
}

func (c *Collection) add(r Record, fp string) {
	if c.has(fp) {
		return
	}
	c.entries = append(c.entries, entry{rec: r, fp: fp})
	c.index[fp] = struct{}{}
}

// Copy returns a new Collection with the same records in the same order.
func (c *Collection) Copy() *Collection {
	out := &Collection{
		entries: slices.Clone(c.entries),
		index:   maps.Clone(c.index),
	}
	if out.index == nil {
		out.index = make(map[string]struct{})
	}
	return out
}

// FilterByPath keeps the records whose value at path satisfies pred. A record
// in which path cannot be resolved is excluded. Values that are not scalar
// leaves never match.
func (c *Collection) FilterByPath(path []string, pred func(string) bool) *Collection {
	out := New()
	for _, e := range c.entries {
		v, ok := Lookup(e.rec, path)
		if !ok {
			continue
		}
		s, ok := Stringify(v)
		if !ok {
			continue
		}
		if pred(s) {
			out.add(e.rec, e.fp)
		}
	}
	return out
}

// FuzzyScan keeps the records in which any scalar leaf, at any depth,
// satisfies pred.
func (c *Collection) FuzzyScan(pred func(string) bool) *Collection {
	out := New()
	for _, e := range c.entries {
		if anyLeaf(e.rec, pred) {
			out.add(e.rec, e.fp)
		}
	}
	return out
}

// Intersect returns copies of the records of a that are also in b, in a's order.
func Intersect(a, b *Collection) *Collection {
	out := New()
	for _, e := range a.entries {
		if b.has(e.fp) {
			out.add(Clone(e.rec), e.fp)
		}
	}
	return out
}

// Union returns every record of b in b's order, copied when a also holds it,
// followed by the records of a not already present.
func Union(a, b *Collection) *Collection {
	out := New()
	for _, e := range b.entries {
		rec := e.rec
		if a.has(e.fp) {
			rec = Clone(rec)
		}
		out.add(rec, e.fp)
	}
	for _, e := range a.entries {
		out.add(e.rec, e.fp)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
