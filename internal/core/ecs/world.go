package ecs

import (
	"fmt"
	"sync"

	"github.com/l1jgo/archestore/internal/core/task"
	"go.uber.org/zap"
)

// EntityObserver is told once per entity creation and once per destruction.
// Callbacks run outside the world's locks and may call back into the world.
type EntityObserver interface {
	RegisterEntity(e Entity)
	RemoveEntity(e Entity)
}

// SaveHook is implemented by observers that persist state alongside Save.
type SaveHook interface {
	OnSave()
}

// LoadHook is implemented by observers that rebuild state after Load.
type LoadHook interface {
	OnLoad()
}

// TaskRunner schedules parallel work that may call back into the world.
type TaskRunner interface {
	RunTask(fn func() error)
	CompleteTasks() error
}

type pendingUpdate struct {
	id            EntityID
	newMask       Mask
	ignoreOldMask bool
}

// World is the top-level ECS container. It owns the entity records, the
// composition index, the reuse pool and the deferred mutation queue.
//
// Each of records, index and reuse pool has its own lock. The suspension
// depth and both pending queues share updatesMu, which is held for the whole
// of every mutation request so that "depth is zero, apply now" cannot race a
// suspension beginning. Lock order: updatesMu, then index, then archetype,
// then entitiesMu.
type World struct {
	registry    *Registry
	log         *zap.Logger
	tasks       TaskRunner
	observers   []EntityObserver
	capacity    int
	debugChecks bool

	entitiesMu sync.RWMutex
	entities   []record

	index *archetypeIndex
	pool  *entityPool

	updatesMu  sync.Mutex
	depth      int
	updates    []pendingUpdate
	updateIdx  map[EntityID]int
	removals   []EntityID
	removalSet map[EntityID]struct{}
}

// Option configures a World.
type Option func(*World)

func WithLogger(log *zap.Logger) Option {
	return func(w *World) { w.log = log }
}

// WithObserver adds an entity lifecycle observer. May be given more than once.
func WithObserver(o EntityObserver) Option {
	return func(w *World) { w.observers = append(w.observers, o) }
}

func WithTasks(t TaskRunner) Option {
	return func(w *World) { w.tasks = t }
}

// WithCapacity presizes the record array.
func WithCapacity(n int) Option {
	return func(w *World) { w.capacity = n }
}

// WithDebugChecks enables the reuse assertion: a recycled id must not be a
// member of any archetype.
func WithDebugChecks(on bool) Option {
	return func(w *World) { w.debugChecks = on }
}

// NewWorld builds a world over reg. The registry is sealed; kinds registered
// afterwards panic.
func NewWorld(reg *Registry, opts ...Option) *World {
	w := &World{
		registry: reg,
		log:      zap.NewNop(),
		capacity: 1024,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.tasks == nil {
		w.tasks = task.NewPool(0, w.log)
	}
	w.entities = make([]record, 0, w.capacity)
	w.index = newArchetypeIndex(w.log)
	w.pool = newEntityPool(w.capacity / 4)
	w.updates = make([]pendingUpdate, 0, 64)
	w.updateIdx = make(map[EntityID]int, 64)
	w.removals = make([]EntityID, 0, 64)
	w.removalSet = make(map[EntityID]struct{}, 64)
	reg.seal()
	return w
}

func (w *World) Registry() *Registry { return w.registry }

// ── Records ────────────────────────────────────────────────────────

func (w *World) record(id EntityID) record {
	w.entitiesMu.RLock()
	defer w.entitiesMu.RUnlock()
	if int(id) >= len(w.entities) {
		panic(fmt.Sprintf("ecs: entity %d out of range (%d records)", id, len(w.entities)))
	}
	return w.entities[id]
}

// visible reads slot i for whole-population iteration.
func (w *World) visible(i int) (e Entity, ok bool, end bool) {
	w.entitiesMu.RLock()
	defer w.entitiesMu.RUnlock()
	if i >= len(w.entities) {
		return Entity{}, false, true
	}
	r := w.entities[i]
	if !r.alive || !r.active || r.mask.IsZero() {
		return Entity{}, false, false
	}
	return Entity{ID: EntityID(i), Mask: r.mask}, true, false
}

// Entity fetches the current composition of id. Panics if id was never
// allocated.
func (w *World) Entity(id EntityID) Entity {
	return Entity{ID: id, Mask: w.record(id).mask}
}

// Alive reports whether id is allocated and not destroyed.
func (w *World) Alive(id EntityID) bool {
	w.entitiesMu.RLock()
	defer w.entitiesMu.RUnlock()
	return int(id) < len(w.entities) && w.entities[id].alive
}

func (w *World) Active(id EntityID) bool {
	return w.record(id).active
}

// SetActive sets both the active flag and the flag applied at the end of
// CreateEntity, so an initializer can keep a new entity inactive.
func (w *World) SetActive(id EntityID, active bool) {
	w.entitiesMu.Lock()
	defer w.entitiesMu.Unlock()
	if int(id) >= len(w.entities) {
		panic(fmt.Sprintf("ecs: entity %d out of range (%d records)", id, len(w.entities)))
	}
	w.entities[id].active = active
	w.entities[id].shouldActivateAfterInit = active
}

// Len returns the number of record slots, live or not.
func (w *World) Len() int {
	w.entitiesMu.RLock()
	defer w.entitiesMu.RUnlock()
	return len(w.entities)
}

// LiveCount returns the number of allocated, undestroyed entities.
func (w *World) LiveCount() int {
	w.entitiesMu.RLock()
	defer w.entitiesMu.RUnlock()
	n := 0
	for i := range w.entities {
		if w.entities[i].alive {
			n++
		}
	}
	return n
}

// FreeCount returns the number of identifiers waiting in the reuse pool.
func (w *World) FreeCount() int { return w.pool.len() }

// ArchetypeStats lists every archetype in creation order.
func (w *World) ArchetypeStats() []ArchetypeStat { return w.index.stats() }

// ── Creation ───────────────────────────────────────────────────────

func (w *World) alloc() EntityID {
	if id, ok := w.pool.take(); ok {
		if w.debugChecks && w.index.contains(id) {
			panic(fmt.Sprintf("ecs: reused entity %d is still in an archetype", id))
		}
		w.entitiesMu.Lock()
		defer w.entitiesMu.Unlock()
		if int(id) >= len(w.entities) {
			panic(fmt.Sprintf("ecs: reused entity %d out of range (%d records)", id, len(w.entities)))
		}
		if w.debugChecks && !w.entities[id].mask.IsZero() {
			panic(fmt.Sprintf("ecs: reused entity %d has a non-zero mask", id))
		}
		w.entities[id] = record{alive: true, shouldActivateAfterInit: true}
		return id
	}

	w.entitiesMu.Lock()
	defer w.entitiesMu.Unlock()
	id := EntityID(len(w.entities))
	w.entities = append(w.entities, record{alive: true, shouldActivateAfterInit: true})
	return id
}

// CreateEntity allocates an entity, runs init on it, activates it unless
// init called SetActive(false), then tells the observers.
func (w *World) CreateEntity(init func(Entity)) Entity {
	id := w.alloc()
	if init != nil {
		init(Entity{ID: id})
	}

	w.entitiesMu.Lock()
	r := &w.entities[id]
	alive := r.alive
	if alive {
		r.active = r.shouldActivateAfterInit
	}
	e := Entity{ID: id, Mask: r.mask}
	w.entitiesMu.Unlock()

	if alive {
		for _, o := range w.observers {
			o.RegisterEntity(e)
		}
	}
	return e
}

// ── Mutation requests ──────────────────────────────────────────────

// AddComponent sets kind's bit on id, now or when the last suspension ends.
func (w *World) AddComponent(id EntityID, kind KindID) {
	w.updateHasComponent(id, kind, true)
}

// RemoveComponent clears kind's bit on id, now or when the last suspension ends.
func (w *World) RemoveComponent(id EntityID, kind KindID) {
	w.updateHasComponent(id, kind, false)
}

// SetMask replaces id's whole composition, now or when the last suspension
// ends.
func (w *World) SetMask(id EntityID, m Mask) {
	if m.And(w.registry.knownMask()) != m {
		panic(fmt.Sprintf("ecs: mask %v carries unregistered kinds", m))
	}

	w.updatesMu.Lock()
	defer w.updatesMu.Unlock()

	if i, ok := w.updateIdx[id]; ok {
		w.updates[i].newMask = m
		return
	}
	r := w.record(id)
	if !r.alive {
		w.log.Warn("mask change on dead entity", zap.Uint64("entity", uint64(id)))
		return
	}
	if m == r.mask {
		return
	}
	w.updateMaskLocked(id, m, false)
}

func (w *World) updateHasComponent(id EntityID, kind KindID, has bool) {
	if int(kind) >= w.registry.Len() {
		panic(fmt.Sprintf("ecs: kind %d is not registered", kind))
	}

	w.updatesMu.Lock()
	defer w.updatesMu.Unlock()

	if i, ok := w.updateIdx[id]; ok {
		u := &w.updates[i]
		if has {
			u.newMask = u.newMask.With(kind)
		} else {
			u.newMask = u.newMask.Without(kind)
		}
		return
	}

	r := w.record(id)
	if !r.alive {
		w.log.Warn("component change on dead entity",
			zap.Uint64("entity", uint64(id)), zap.Uint8("kind", uint8(kind)), zap.Bool("add", has))
		return
	}
	newMask := r.mask.Without(kind)
	if has {
		newMask = r.mask.With(kind)
	}
	if newMask == r.mask {
		return
	}
	w.updateMaskLocked(id, newMask, false)
}

// caller holds updatesMu
func (w *World) updateMaskLocked(id EntityID, newMask Mask, ignoreOldMask bool) {
	if w.depth == 0 {
		w.doUpdateMask(id, newMask, ignoreOldMask)
		return
	}
	w.updateIdx[id] = len(w.updates)
	w.updates = append(w.updates, pendingUpdate{id: id, newMask: newMask, ignoreOldMask: ignoreOldMask})
}

// caller holds updatesMu
func (w *World) doUpdateMask(id EntityID, newMask Mask, ignoreOldMask bool) {
	r := w.record(id)
	if !r.alive {
		return
	}
	oldMask := r.mask
	if ignoreOldMask {
		oldMask = Mask{}
	}
	if newMask == oldMask {
		return
	}
	w.index.apply(id, newMask, oldMask)

	w.entitiesMu.Lock()
	w.entities[id].mask = newMask
	w.entitiesMu.Unlock()
}

// withLive runs fn while id is alive, holding the updates lock so a
// concurrent removal cannot complete in between. It reports whether fn ran.
func (w *World) withLive(id EntityID, fn func()) bool {
	w.updatesMu.Lock()
	defer w.updatesMu.Unlock()
	if !w.Alive(id) {
		return false
	}
	fn()
	return true
}

// RemoveEntity destroys id, now or when the last suspension ends. Observers
// are told, payloads dropped and the id returned to the reuse pool once the
// removal is applied. Removing a dead entity is a no-op.
func (w *World) RemoveEntity(id EntityID) {
	if e, ok := w.requestRemove(id); ok {
		w.finalize([]Entity{e})
	}
}

func (w *World) requestRemove(id EntityID) (Entity, bool) {
	w.updatesMu.Lock()
	defer w.updatesMu.Unlock()

	r := w.record(id)
	if !r.alive {
		w.log.Debug("remove of dead entity", zap.Uint64("entity", uint64(id)))
		return Entity{}, false
	}
	if w.depth > 0 {
		if _, dup := w.removalSet[id]; !dup {
			w.removalSet[id] = struct{}{}
			w.removals = append(w.removals, id)
		}
		return Entity{}, false
	}
	return w.doRemove(id)
}

// caller holds updatesMu
func (w *World) doRemove(id EntityID) (Entity, bool) {
	r := w.record(id)
	if !r.alive {
		return Entity{}, false
	}
	w.index.apply(id, Mask{}, r.mask)

	w.entitiesMu.Lock()
	w.entities[id] = record{shouldActivateAfterInit: true}
	w.entitiesMu.Unlock()
	return Entity{ID: id, Mask: r.mask}, true
}

// finalize runs outside updatesMu. The id only becomes reusable after the
// observers and payload stores are done with it.
func (w *World) finalize(freed []Entity) {
	for _, e := range freed {
		for _, o := range w.observers {
			o.RemoveEntity(e)
		}
		w.registry.RemoveAll(e.ID)
		w.pool.put(e.ID)
	}
}

// ── Tasks ──────────────────────────────────────────────────────────

// RunTask schedules fn on the world's task runner.
func (w *World) RunTask(fn func() error) { w.tasks.RunTask(fn) }

// CompleteTasks blocks until every task submitted so far has finished.
func (w *World) CompleteTasks() error { return w.tasks.CompleteTasks() }
