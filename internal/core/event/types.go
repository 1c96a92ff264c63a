package event

import "github.com/l1jgo/archestore/internal/core/ecs"

// EntityCreated is emitted once an entity's init has run and it is visible.
type EntityCreated struct {
	Entity ecs.Entity
}

// EntityRemoved carries the mask the entity had when it was destroyed.
type EntityRemoved struct {
	Entity ecs.Entity
}

type WorldSaved struct{}

// WorldLoaded follows the EntityCreated events of a snapshot load.
type WorldLoaded struct{}
