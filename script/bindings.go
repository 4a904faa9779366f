package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/plus3/hopper/ecs"
)

// Lua masks travel as userdata: a 64-bit set does not survive a round trip
// through Lua's float numbers once high bits are involved.
type maskUD uint64

type componentUD struct {
	ref ecs.EntityRef
	id  ecs.TypeID
}

func (e *Engine) registerAPI() {
	vm := e.vm

	vm.NewTypeMetatable("Entity")

	mtComponent := vm.NewTypeMetatable("Component")
	vm.SetField(mtComponent, "__index", vm.NewFunction(e.componentIndex))
	vm.SetField(mtComponent, "__newindex", vm.NewFunction(e.componentNewIndex))

	vm.SetGlobal("component_mask", vm.NewFunction(e.componentMask))
	vm.SetGlobal("entity_add", vm.NewFunction(e.entityAdd))
	vm.SetGlobal("entity_remove", vm.NewFunction(e.entityRemove))
	vm.SetGlobal("entity_get", vm.NewFunction(e.entityGet))
	vm.SetGlobal("query", vm.NewFunction(e.query))
}

func (e *Engine) checkEntity(l *lua.LState, pos int) ecs.EntityRef {
	ud := l.CheckUserData(pos)
	ref, ok := ud.Value.(ecs.EntityRef)
	if !ok {
		l.ArgError(pos, "entity expected")
	}
	return ref
}

func (e *Engine) pushEntity(l *lua.LState, ref ecs.EntityRef) {
	ud := l.NewUserData()
	ud.Value = ref
	l.SetMetatable(ud, l.GetTypeMetatable("Entity"))
	l.Push(ud)
}

// component_mask(id, ...) -> mask userdata
func (e *Engine) componentMask(l *lua.LState) int {
	var mask uint64
	for i := 1; i <= l.GetTop(); i++ {
		mask |= ecs.TypeID(l.CheckInt(i)).Bit()
	}
	ud := l.NewUserData()
	ud.Value = maskUD(mask)
	l.Push(ud)
	return 1
}

func (e *Engine) checkMask(l *lua.LState, pos int) uint64 {
	switch v := l.Get(pos).(type) {
	case lua.LNumber:
		return uint64(v)
	case *lua.LUserData:
		if m, ok := v.Value.(maskUD); ok {
			return uint64(m)
		}
	}
	l.ArgError(pos, "mask expected (number or component_mask result)")
	return 0
}

// entity_add(mask) -> entity | nil
func (e *Engine) entityAdd(l *lua.LState) int {
	mask := e.checkMask(l, 1)
	ref := e.world.AddEntity(mask)
	if ref.Zero() {
		e.log.Warn("lua entity_add failed: entity table full")
		l.Push(lua.LNil)
		return 1
	}
	e.pushEntity(l, ref)
	return 1
}

// entity_remove(entity)
func (e *Engine) entityRemove(l *lua.LState) int {
	e.world.RemoveEntity(e.checkEntity(l, 1))
	return 0
}

// entity_get(entity, ComponentType [, create]) -> component | nil
func (e *Engine) entityGet(l *lua.LState) int {
	ref := e.checkEntity(l, 1)
	id := ecs.TypeID(l.CheckInt(2))
	create := l.OptBool(3, false)

	var buf []byte
	if create {
		buf = e.world.ComponentOrAdd(ref, id)
	} else {
		buf = e.world.Component(ref, id)
	}
	if buf == nil {
		l.Push(lua.LNil)
		return 1
	}

	ud := l.NewUserData()
	ud.Value = &componentUD{ref: ref, id: id}
	l.SetMetatable(ud, l.GetTypeMetatable("Component"))
	l.Push(ud)
	return 1
}

// query(mask, fn) calls fn(entity) for every live entity matching mask.
func (e *Engine) query(l *lua.LState) int {
	mask := e.checkMask(l, 1)
	fn := l.CheckFunction(2)

	for q := e.world.Query(mask); q.Valid(); q.Next() {
		l.Push(fn)
		e.pushEntity(l, q.Entity())
		l.Call(1, 0)
	}
	return 0
}

func (e *Engine) checkComponent(l *lua.LState) ([]byte, FieldAccessor) {
	ud := l.CheckUserData(1)
	c, ok := ud.Value.(*componentUD)
	if !ok {
		l.ArgError(1, "component expected")
		return nil, nil
	}
	buf := e.world.Component(c.ref, c.id)
	if buf == nil {
		l.RaiseError("component access through stale entity reference")
		return nil, nil
	}
	acc, ok := e.accs[c.id]
	if !ok {
		l.RaiseError("component type %d has no field accessor", int(c.id))
		return nil, nil
	}
	return buf, acc
}

func (e *Engine) componentIndex(l *lua.LState) int {
	buf, acc := e.checkComponent(l)
	field := l.CheckString(2)

	v, ok := acc.Read(buf, field)
	if !ok {
		l.RaiseError("unknown component field %q", field)
		return 0
	}
	l.Push(toLValue(v))
	return 1
}

func (e *Engine) componentNewIndex(l *lua.LState) int {
	buf, acc := e.checkComponent(l)
	field := l.CheckString(2)
	v := fromLValue(l.Get(3))

	if !acc.Write(buf, field, v) {
		l.RaiseError("cannot write component field %q", field)
	}
	return 0
}

func toLValue(v any) lua.LValue {
	switch n := v.(type) {
	case float64:
		return lua.LNumber(n)
	case int64:
		return lua.LNumber(n)
	case bool:
		return lua.LBool(n)
	case string:
		return lua.LString(n)
	}
	return lua.LNil
}

func fromLValue(v lua.LValue) any {
	switch n := v.(type) {
	case lua.LNumber:
		return float64(n)
	case lua.LBool:
		return bool(n)
	case lua.LString:
		return string(n)
	}
	return nil
}
