package scripting

import (
	"github.com/l1jgo/archestore/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
)

// bindWorld installs the "world" table:
//
//	world.create({kinds...}) -> id
//	world.destroy(id)
//	world.add(id, kind)      world.remove(id, kind)
//	world.has(id, kind)      -> bool
//	world.alive(id)          -> bool
//	world.set_active(id, bool)
//	world.query({required...}, {excluded...}) -> {ids...}
//	world.count()            -> live entities
func (e *Engine) bindWorld() {
	t := e.vm.NewTable()
	e.vm.SetFuncs(t, map[string]lua.LGFunction{
		"create":     e.luaCreate,
		"destroy":    e.luaDestroy,
		"add":        e.luaAdd,
		"remove":     e.luaRemove,
		"has":        e.luaHas,
		"alive":      e.luaAlive,
		"set_active": e.luaSetActive,
		"query":      e.luaQuery,
		"count":      e.luaCount,
	})
	e.vm.SetGlobal("world", t)
}

func (e *Engine) checkEntity(L *lua.LState, n int) ecs.EntityID {
	v := L.CheckInt64(n)
	if v < 0 || v >= int64(e.world.Len()) {
		L.ArgError(n, "no such entity")
	}
	return ecs.EntityID(v)
}

func (e *Engine) checkKind(L *lua.LState, n int) ecs.KindID {
	name := L.CheckString(n)
	k, ok := e.world.Registry().Lookup(name)
	if !ok {
		L.ArgError(n, "unknown component kind "+name)
	}
	return k.ID()
}

func (e *Engine) kindNames(L *lua.LState, n int) []string {
	t := L.OptTable(n, nil)
	if t == nil {
		return nil
	}
	var names []string
	t.ForEach(func(_, v lua.LValue) {
		s, ok := v.(lua.LString)
		if !ok {
			L.ArgError(n, "kind names must be strings")
		}
		names = append(names, string(s))
	})
	return names
}

func (e *Engine) luaCreate(L *lua.LState) int {
	names := e.kindNames(L, 1)
	mask, err := e.world.Registry().Mask(names...)
	if err != nil {
		L.ArgError(1, err.Error())
	}
	ent := e.world.CreateEntity(func(ent ecs.Entity) {
		mask.ForEach(func(id ecs.KindID) { e.world.AddComponent(ent.ID, id) })
	})
	L.Push(lua.LNumber(ent.ID))
	return 1
}

func (e *Engine) luaDestroy(L *lua.LState) int {
	e.world.RemoveEntity(e.checkEntity(L, 1))
	return 0
}

func (e *Engine) luaAdd(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	e.world.AddComponent(id, e.checkKind(L, 2))
	return 0
}

func (e *Engine) luaRemove(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	e.world.RemoveComponent(id, e.checkKind(L, 2))
	return 0
}

func (e *Engine) luaHas(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	L.Push(lua.LBool(e.world.Entity(id).Has(e.checkKind(L, 2))))
	return 1
}

func (e *Engine) luaAlive(L *lua.LState) int {
	v := L.CheckInt64(1)
	L.Push(lua.LBool(v >= 0 && v < int64(e.world.Len()) && e.world.Alive(ecs.EntityID(v))))
	return 1
}

func (e *Engine) luaSetActive(L *lua.LState) int {
	id := e.checkEntity(L, 1)
	e.world.SetActive(id, L.CheckBool(2))
	return 0
}

func (e *Engine) luaQuery(L *lua.LState) int {
	f, err := e.world.Registry().Filter(e.kindNames(L, 1), e.kindNames(L, 2))
	if err != nil {
		L.ArgError(1, err.Error())
	}
	if f.Required.Intersects(f.Excluded) {
		L.ArgError(2, "a kind cannot be both required and excluded")
	}
	out := L.NewTable()
	for ent := range e.world.Matching(f) {
		out.Append(lua.LNumber(ent.ID))
	}
	L.Push(out)
	return 1
}

func (e *Engine) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.world.LiveCount()))
	return 1
}
