package ecs

import (
	"sort"
	"sync"
)

// EntityID is a densely allocated index into the world's record array.
// IDs of destroyed entities are recycled.
type EntityID uint64

// Entity is a snapshot of an entity's identifier and composition at the
// moment it was read.
type Entity struct {
	ID   EntityID
	Mask Mask
}

func (e Entity) Has(id KindID) bool { return e.Mask.Has(id) }

// record is the per-slot state. Slots are never removed from the backing
// array; a destroyed slot keeps its position and is handed out again.
type record struct {
	mask                    Mask
	active                  bool
	shouldActivateAfterInit bool
	alive                   bool
}

// entityPool holds the identifiers of destroyed entities awaiting reuse.
// The free list is sorted lazily, only when an identifier is taken.
type entityPool struct {
	mu       sync.RWMutex
	freeList []EntityID
	sorted   bool
}

func newEntityPool(capacity int) *entityPool {
	return &entityPool{
		freeList: make([]EntityID, 0, capacity),
		sorted:   true,
	}
}

func (p *entityPool) put(id EntityID) {
	p.mu.Lock()
	p.freeList = append(p.freeList, id)
	p.sorted = false
	p.mu.Unlock()
}

// take pops the highest free identifier.
func (p *entityPool) take() (EntityID, bool) {
	p.mu.RLock()
	empty := len(p.freeList) == 0
	p.mu.RUnlock()
	if empty {
		return 0, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.freeList) == 0 {
		return 0, false
	}
	if !p.sorted {
		sort.Slice(p.freeList, func(i, j int) bool { return p.freeList[i] < p.freeList[j] })
		p.sorted = true
	}
	id := p.freeList[len(p.freeList)-1]
	p.freeList = p.freeList[:len(p.freeList)-1]
	return id, true
}

func (p *entityPool) reset() {
	p.mu.Lock()
	p.freeList = p.freeList[:0]
	p.sorted = true
	p.mu.Unlock()
}

func (p *entityPool) len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.freeList)
}
