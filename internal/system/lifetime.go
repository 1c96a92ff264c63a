package system

import (
	"sync/atomic"
	"time"

	"github.com/l1jgo/archestore/internal/core/ecs"
	coresys "github.com/l1jgo/archestore/internal/core/system"
	"go.uber.org/zap"
)

// Lifetime is the time an entity has left before it is destroyed.
type Lifetime struct {
	Remaining time.Duration
}

// RegisterLifetime registers the lifetime kind. Its payload is not part of a
// snapshot, so the kind is transient too.
func RegisterLifetime(reg *ecs.Registry) *ecs.Kind[Lifetime] {
	return ecs.Register[Lifetime](reg, "lifetime", ecs.Transient())
}

// LifetimeSystem counts down every Lifetime and destroys expired entities.
// Countdowns run as world tasks while the scan is open; destruction is
// deferred until the scan ends. Phase 3 (PostUpdate).
type LifetimeSystem struct {
	world   *ecs.World
	kind    *ecs.Kind[Lifetime]
	log     *zap.Logger
	expired atomic.Int64
}

func NewLifetimeSystem(w *ecs.World, kind *ecs.Kind[Lifetime], log *zap.Logger) *LifetimeSystem {
	return &LifetimeSystem{world: w, kind: kind, log: log}
}

func (s *LifetimeSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *LifetimeSystem) Update(dt time.Duration) {
	ecs.Each1(s.world, s.kind, func(e ecs.Entity, lt *Lifetime) {
		id := e.ID
		s.world.RunTask(func() error {
			lt.Remaining -= dt
			if lt.Remaining <= 0 {
				s.world.RemoveEntity(id)
				s.expired.Add(1)
			}
			return nil
		})
	})
	if err := s.world.CompleteTasks(); err != nil {
		s.log.Error("lifetime tasks failed", zap.Error(err))
	}
}

// Expired returns how many entities this system has destroyed.
func (s *LifetimeSystem) Expired() int64 { return s.expired.Load() }
