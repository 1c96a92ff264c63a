package ecs

import "iter"

// All ranges over every active entity with a non-zero mask. Breaking out of
// the loop releases the suspension.
func (w *World) All() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		it := w.Entities()
		defer it.Close()
		for it.Next() {
			if !yield(it.Entity()) {
				return
			}
		}
	}
}

// Matching ranges over every entity whose archetype satisfies f.
func (w *World) Matching(f Filter) iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		it := w.Query(f)
		defer it.Close()
		for it.Next() {
			if !yield(it.Entity()) {
				return
			}
		}
	}
}

// Query1 ranges over entities carrying kind a, with their payload. Entities
// whose payload was detached during the scan are skipped.
func Query1[A any](w *World, ka *Kind[A], without ...KindID) iter.Seq2[Entity, *A] {
	f := NewFilter(With(ka.ID()), Without(without...))
	return func(yield func(Entity, *A) bool) {
		it := w.Query(f)
		defer it.Close()
		for it.Next() {
			e := it.Entity()
			a, ok := ka.Get(e.ID)
			if !ok {
				continue
			}
			if !yield(e, a) {
				return
			}
		}
	}
}

// Each1 calls fn for every entity carrying kind a.
func Each1[A any](w *World, ka *Kind[A], fn func(Entity, *A), without ...KindID) {
	for e, a := range Query1(w, ka, without...) {
		fn(e, a)
	}
}

// Query2 ranges over entities carrying kinds a and b, with both payloads.
func Query2[A, B any](w *World, ka *Kind[A], kb *Kind[B], without ...KindID) iter.Seq2[Entity, Pair[A, B]] {
	f := NewFilter(With(ka.ID(), kb.ID()), Without(without...))
	return func(yield func(Entity, Pair[A, B]) bool) {
		it := w.Query(f)
		defer it.Close()
		for it.Next() {
			e := it.Entity()
			a, ok := ka.Get(e.ID)
			if !ok {
				continue
			}
			b, ok := kb.Get(e.ID)
			if !ok {
				continue
			}
			if !yield(e, Pair[A, B]{A: a, B: b}) {
				return
			}
		}
	}
}

// Pair holds the two payloads yielded by Query2.
type Pair[A, B any] struct {
	A *A
	B *B
}

// Each2 calls fn for every entity carrying kinds a and b.
func Each2[A, B any](w *World, ka *Kind[A], kb *Kind[B], fn func(Entity, *A, *B), without ...KindID) {
	for e, p := range Query2(w, ka, kb, without...) {
		fn(e, p.A, p.B)
	}
}

// Each3 calls fn for every entity carrying kinds a, b and c.
func Each3[A, B, C any](w *World, ka *Kind[A], kb *Kind[B], kc *Kind[C], fn func(Entity, *A, *B, *C), without ...KindID) {
	it := w.Query(NewFilter(With(ka.ID(), kb.ID(), kc.ID()), Without(without...)))
	defer it.Close()
	for it.Next() {
		e := it.Entity()
		a, ok := ka.Get(e.ID)
		if !ok {
			continue
		}
		b, ok := kb.Get(e.ID)
		if !ok {
			continue
		}
		c, ok := kc.Get(e.ID)
		if !ok {
			continue
		}
		fn(e, a, b, c)
	}
}

// ForEachEntity calls fn for every entity carrying kind.
func (w *World) ForEachEntity(kind KindID, fn func(Entity)) {
	for e := range w.Matching(NewFilter(With(kind))) {
		fn(e)
	}
}

// ForEachEntityWithout calls fn for every entity with a non-empty
// composition that lacks kind.
func (w *World) ForEachEntityWithout(kind KindID, fn func(Entity)) {
	for e := range w.Matching(NewFilter(Without(kind))) {
		fn(e)
	}
}
