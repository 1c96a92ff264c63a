package system

import (
	"github.com/l1jgo/archestore/internal/core/ecs"
	"github.com/l1jgo/archestore/internal/data"
)

// Kinds holds the kinds every server world registers in code.
type Kinds struct {
	Lifetime *ecs.Kind[Lifetime]
}

// NewRegistry registers the built-in kinds followed by the tag kinds from
// the components file. Snapshot tools must build the same registry as the
// server to decode its masks.
func NewRegistry(defs []data.ComponentDef) (*ecs.Registry, Kinds) {
	reg := ecs.NewRegistry()
	k := Kinds{Lifetime: RegisterLifetime(reg)}
	data.RegisterComponents(reg, defs)
	return reg, k
}
