package ecs

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// archetype groups every live entity sharing one exact mask. Membership is
// positional: rows maps an entity to its slot so removal is a swap with the
// last slot followed by a truncate.
type archetype struct {
	mu       sync.RWMutex
	mask     Mask
	entities []EntityID
	rows     map[EntityID]int
	sorted   bool
}

func newArchetype(mask Mask) *archetype {
	return &archetype{
		mask:     mask,
		entities: make([]EntityID, 0, 16),
		rows:     make(map[EntityID]int, 16),
		sorted:   true,
	}
}

// caller holds a.mu
func (a *archetype) add(id EntityID) {
	a.rows[id] = len(a.entities)
	a.entities = append(a.entities, id)
	a.sorted = false
}

// caller holds a.mu
func (a *archetype) remove(id EntityID) bool {
	row, ok := a.rows[id]
	if !ok {
		return false
	}
	last := len(a.entities) - 1
	if row != last {
		moved := a.entities[last]
		a.entities[row] = moved
		a.rows[moved] = row
	}
	a.entities = a.entities[:last]
	delete(a.rows, id)
	a.sorted = false
	return true
}

// ensureSorted restores ascending id order before a scan enters the archetype.
func (a *archetype) ensureSorted() {
	a.mu.RLock()
	sorted := a.sorted
	a.mu.RUnlock()
	if sorted {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sorted {
		return
	}
	sort.Slice(a.entities, func(i, j int) bool { return a.entities[i] < a.entities[j] })
	for i, id := range a.entities {
		a.rows[id] = i
	}
	a.sorted = true
}

func (a *archetype) at(row int) (EntityID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if row < 0 || row >= len(a.entities) {
		return 0, false
	}
	return a.entities[row], true
}

func (a *archetype) len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entities)
}

func (a *archetype) has(id EntityID) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.rows[id]
	return ok
}

func (a *archetype) members() []EntityID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]EntityID, len(a.entities))
	copy(out, a.entities)
	return out
}

// matches reports whether a non-empty archetype satisfies f.
func (a *archetype) matches(f Filter) bool {
	return f.Matches(a.mask) && a.len() > 0
}

// ArchetypeStat is a point-in-time view of one archetype.
type ArchetypeStat struct {
	Mask     Mask
	Entities int
}

// archetypeIndex is the composition index: archetypes in creation order,
// looked up by mask.
type archetypeIndex struct {
	mu     sync.RWMutex
	list   []*archetype
	byMask map[Mask]*archetype
	log    *zap.Logger
}

func newArchetypeIndex(log *zap.Logger) *archetypeIndex {
	return &archetypeIndex{
		list:   make([]*archetype, 0, 32),
		byMask: make(map[Mask]*archetype, 32),
		log:    log,
	}
}

// apply moves id from the archetype of oldMask to the archetype of newMask.
// A zero mask on either side means "no archetype".
func (x *archetypeIndex) apply(id EntityID, newMask, oldMask Mask) {
	if newMask == oldMask {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if !oldMask.IsZero() {
		if a, ok := x.byMask[oldMask]; ok {
			a.mu.Lock()
			a.remove(id)
			a.mu.Unlock()
		}
	}
	if newMask.IsZero() {
		return
	}
	a, ok := x.byMask[newMask]
	if !ok {
		a = newArchetype(newMask)
		x.list = append(x.list, a)
		x.byMask[newMask] = a
		x.log.Debug("archetype created",
			zap.Int("index", len(x.list)-1), zap.Int("kinds", newMask.Count()))
	}
	a.mu.Lock()
	a.add(id)
	a.mu.Unlock()
}

// at returns the archetype at position i in creation order, or nil.
func (x *archetypeIndex) at(i int) *archetype {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if i < 0 || i >= len(x.list) {
		return nil
	}
	return x.list[i]
}

func (x *archetypeIndex) len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.list)
}

// contains reports whether id is a member of any archetype.
func (x *archetypeIndex) contains(id EntityID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, a := range x.list {
		if a.has(id) {
			return true
		}
	}
	return false
}

func (x *archetypeIndex) stats() []ArchetypeStat {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]ArchetypeStat, 0, len(x.list))
	for _, a := range x.list {
		out = append(out, ArchetypeStat{Mask: a.mask, Entities: a.len()})
	}
	return out
}

func (x *archetypeIndex) reset() {
	x.mu.Lock()
	x.list = make([]*archetype, 0, 32)
	x.byMask = make(map[Mask]*archetype, 32)
	x.mu.Unlock()
}
