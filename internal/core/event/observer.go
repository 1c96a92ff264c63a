package event

import "github.com/l1jgo/archestore/internal/core/ecs"

// Observer turns world callbacks into bus events.
type Observer struct {
	bus *Bus
}

func NewObserver(b *Bus) *Observer {
	return &Observer{bus: b}
}

func (o *Observer) RegisterEntity(e ecs.Entity) { Emit(o.bus, EntityCreated{Entity: e}) }

func (o *Observer) RemoveEntity(e ecs.Entity) { Emit(o.bus, EntityRemoved{Entity: e}) }

func (o *Observer) OnSave() { Emit(o.bus, WorldSaved{}) }

func (o *Observer) OnLoad() { Emit(o.bus, WorldLoaded{}) }

var (
	_ ecs.EntityObserver = (*Observer)(nil)
	_ ecs.SaveHook       = (*Observer)(nil)
	_ ecs.LoadHook       = (*Observer)(nil)
)
