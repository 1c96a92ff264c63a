package system

import (
	"sort"
	"sync"
	"time"

	"github.com/l1jgo/archestore/internal/core/ecs"
)

// Runner executes systems in phase order each tick. It is also a world
// observer: lifecycle and save/load callbacks are forwarded to every
// registered system that implements the matching handler.
type Runner struct {
	mu      sync.RWMutex
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
	}
}

func (r *Runner) Register(s System) {
	r.mu.Lock()
	r.systems = append(r.systems, s)
	r.sorted = false
	r.mu.Unlock()
}

// Systems returns the registered systems in execution order.
func (r *Runner) Systems() []System {
	r.ensureSorted()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]System, len(r.systems))
	copy(out, r.systems)
	return out
}

func (r *Runner) Tick(dt time.Duration) {
	for _, s := range r.Systems() {
		s.Update(dt)
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	for _, s := range r.Systems() {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

func (r *Runner) ensureSorted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}

func (r *Runner) RegisterEntity(e ecs.Entity) {
	for _, s := range r.Systems() {
		if h, ok := s.(EntityHandler); ok {
			h.RegisterEntity(e)
		}
	}
}

func (r *Runner) RemoveEntity(e ecs.Entity) {
	for _, s := range r.Systems() {
		if h, ok := s.(EntityHandler); ok {
			h.RemoveEntity(e)
		}
	}
}

func (r *Runner) OnSave() {
	for _, s := range r.Systems() {
		if h, ok := s.(SaveHandler); ok {
			h.OnSave()
		}
	}
}

func (r *Runner) OnLoad() {
	for _, s := range r.Systems() {
		if h, ok := s.(LoadHandler); ok {
			h.OnLoad()
		}
	}
}

var (
	_ ecs.EntityObserver = (*Runner)(nil)
	_ ecs.SaveHook       = (*Runner)(nil)
	_ ecs.LoadHook       = (*Runner)(nil)
)
