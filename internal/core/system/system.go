package system

import (
	"time"

	"github.com/l1jgo/archestore/internal/core/ecs"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: script callbacks, external commands
	PhasePreUpdate               // 1: process last tick's events
	PhaseUpdate                  // 2: simulation
	PhasePostUpdate              // 3: expiry, deferred destruction
	PhaseOutput                  // 4: census, reporting
	PhasePersist                 // 5: autosave
	PhaseCleanup                 // 6: end-of-tick bookkeeping
)

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// EntityHandler is implemented by systems that track entities as they enter
// and leave the world.
type EntityHandler interface {
	RegisterEntity(e ecs.Entity)
	RemoveEntity(e ecs.Entity)
}

// SaveHandler runs before the world is written to a snapshot.
type SaveHandler interface {
	OnSave()
}

// LoadHandler runs after a snapshot has replaced the world.
type LoadHandler interface {
	OnLoad()
}
