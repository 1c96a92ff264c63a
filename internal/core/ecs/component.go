package ecs

import (
	"sync"

	"go.uber.org/zap"
)

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
	Clear()
}

// PtrComponentStore is a generic typed map store for component payloads.
// Safe for concurrent use; the pointed-to values are not guarded.
type PtrComponentStore[T any] struct {
	mu   sync.RWMutex
	data map[EntityID]*T
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 256),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	s.mu.Lock()
	s.data[id] = c
	s.mu.Unlock()
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	s.mu.RLock()
	c, ok := s.data[id]
	s.mu.RUnlock()
	return c, ok
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	s.mu.RLock()
	_, ok := s.data[id]
	s.mu.RUnlock()
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *PtrComponentStore[T]) Clear() {
	s.mu.Lock()
	clear(s.data)
	s.mu.Unlock()
}

// Kind is a registered component kind with a typed payload store.
type Kind[T any] struct {
	info  *KindInfo
	store *PtrComponentStore[T]
}

func (k *Kind[T]) ID() KindID      { return k.info.id }
func (k *Kind[T]) Info() *KindInfo { return k.info }

// Get returns the payload attached to id, if any.
func (k *Kind[T]) Get(id EntityID) (*T, bool) {
	return k.store.Get(id)
}

// Attach stores v as id's payload and requests the kind bit. The bit change
// follows the world's deferral rules; the payload is visible immediately.
// Attaching to a dead entity stores nothing.
func (k *Kind[T]) Attach(w *World, id EntityID, v T) *T {
	p := &v
	if !w.withLive(id, func() { k.store.Set(id, p) }) {
		w.log.Warn("attach to dead entity",
			zap.Uint64("entity", uint64(id)), zap.String("kind", k.info.name))
		return p
	}
	w.AddComponent(id, k.info.id)
	return p
}

// Detach drops id's payload and requests the kind bit be cleared.
func (k *Kind[T]) Detach(w *World, id EntityID) {
	k.store.Remove(id)
	w.RemoveComponent(id, k.info.id)
}
