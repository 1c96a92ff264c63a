package ecs

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Suspension defers structural changes while it is held. Suspensions nest;
// when the last one is released the queued mask updates are applied in
// request order, then the queued removals.
//
//	s := w.Suspend()
//	defer s.Release()
type Suspension struct {
	w        *World
	released atomic.Bool
}

// Suspend opens a suspension scope.
func (w *World) Suspend() *Suspension {
	w.updatesMu.Lock()
	w.depth++
	w.updatesMu.Unlock()
	return &Suspension{w: w}
}

// Release ends the scope. Releasing the same suspension twice panics.
func (s *Suspension) Release() {
	if !s.released.CompareAndSwap(false, true) {
		panic("ecs: suspension released twice")
	}
	s.w.resume()
}

// Depth returns the number of open suspensions.
func (w *World) Depth() int {
	w.updatesMu.Lock()
	defer w.updatesMu.Unlock()
	return w.depth
}

func (w *World) resume() {
	w.updatesMu.Lock()
	if w.depth == 0 {
		w.updatesMu.Unlock()
		panic("ecs: suspension depth below zero")
	}
	w.depth--
	var freed []Entity
	if w.depth == 0 {
		freed = w.drainLocked()
	}
	w.updatesMu.Unlock()

	if len(freed) > 0 {
		w.finalize(freed)
	}
}

// caller holds updatesMu with depth == 0
func (w *World) drainLocked() []Entity {
	if len(w.updates) == 0 && len(w.removals) == 0 {
		return nil
	}
	nUpdates, nRemovals := len(w.updates), len(w.removals)

	for _, u := range w.updates {
		w.doUpdateMask(u.id, u.newMask, u.ignoreOldMask)
	}
	var freed []Entity
	for _, id := range w.removals {
		if e, ok := w.doRemove(id); ok {
			freed = append(freed, e)
		}
	}

	w.updates = w.updates[:0]
	clear(w.updateIdx)
	w.removals = w.removals[:0]
	clear(w.removalSet)

	w.log.Debug("mutation queue drained",
		zap.Int("updates", nUpdates), zap.Int("removals", nRemovals))
	return freed
}
