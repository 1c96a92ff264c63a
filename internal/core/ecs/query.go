package ecs

import "fmt"

// Filter selects archetypes by required and excluded kinds.
type Filter struct {
	Required Mask
	Excluded Mask
}

// FilterOption adds kinds to a Filter.
type FilterOption func(*Filter)

func With(ids ...KindID) FilterOption {
	return func(f *Filter) { f.Required = f.Required.Or(MaskOf(ids...)) }
}

func Without(ids ...KindID) FilterOption {
	return func(f *Filter) { f.Excluded = f.Excluded.Or(MaskOf(ids...)) }
}

func NewFilter(opts ...FilterOption) Filter {
	var f Filter
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Matches reports whether an entity or archetype with mask m satisfies f.
func (f Filter) Matches(m Mask) bool {
	return m.Contains(f.Required) && !m.Intersects(f.Excluded)
}

func (f Filter) validate() {
	if f.Required.Intersects(f.Excluded) {
		panic(fmt.Sprintf("ecs: filter requires and excludes the same kinds: %v", f.Required.And(f.Excluded)))
	}
}

// Iterator walks the entities of every archetype matching a filter.
// Archetypes are visited in creation order and each one is sorted by id on
// entry. The iterator holds a suspension until Close or exhaustion, so
// mutations made while it is open are queued and never move entities under
// the scan.
type Iterator struct {
	w       *World
	filter  Filter
	guard   *Suspension
	arch    *archetype
	archIdx int
	row     int
	cur     Entity
	done    bool
}

// Query opens a typed iteration. The caller must Close it unless it runs to
// exhaustion.
func (w *World) Query(f Filter) *Iterator {
	f.validate()
	return &Iterator{
		w:      w,
		filter: f,
		guard:  w.Suspend(),
	}
}

func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	for {
		if it.arch != nil {
			it.row++
			if id, ok := it.arch.at(it.row); ok {
				it.cur = Entity{ID: id, Mask: it.arch.mask}
				return true
			}
			it.arch = nil
		}

		a := it.w.index.at(it.archIdx)
		if a == nil {
			it.Close()
			return false
		}
		it.archIdx++
		if !a.matches(it.filter) {
			continue
		}
		a.ensureSorted()
		it.arch = a
		it.row = -1
	}
}

// Entity returns the current entity. Valid after Next returned true.
func (it *Iterator) Entity() Entity { return it.cur }

// Close releases the iterator's suspension. Safe to call more than once.
func (it *Iterator) Close() {
	if it.done {
		return
	}
	it.done = true
	it.arch = nil
	it.guard.Release()
}

// EntityIterator walks every active entity with a non-zero mask in id order.
// It holds a suspension for its whole lifetime.
type EntityIterator struct {
	w     *World
	guard *Suspension
	next  int
	cur   Entity
	done  bool
}

// Entities opens a whole-population iteration. The caller must Close it
// unless it runs to exhaustion.
func (w *World) Entities() *EntityIterator {
	return &EntityIterator{w: w, guard: w.Suspend()}
}

func (it *EntityIterator) Next() bool {
	if it.done {
		return false
	}
	for {
		e, ok, end := it.w.visible(it.next)
		it.next++
		if end {
			it.Close()
			return false
		}
		if ok {
			it.cur = e
			return true
		}
	}
}

func (it *EntityIterator) Entity() Entity { return it.cur }

func (it *EntityIterator) Close() {
	if it.done {
		return
	}
	it.done = true
	it.guard.Release()
}
