package ecs_test

import (
	"fmt"
	"testing"

	"github.com/plus3/hopper/ecs"
	"github.com/plus3/hopper/heap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Position struct {
	X, Y float32
}

type Velocity struct {
	DX, DY float32
}

func newWorld(t *testing.T) (*heap.Heap, *ecs.ECS) {
	t.Helper()
	h, err := heap.New(1 << 16)
	require.NoError(t, err)
	world := ecs.New(h)
	t.Cleanup(func() {
		world.Close()
		assert.NoError(t, h.Close())
	})
	return h, world
}

func registerPosVel(t *testing.T, world *ecs.ECS) (ecs.TypeID, ecs.TypeID) {
	t.Helper()
	pos, err := world.RegisterComponentType("position", 8, 4)
	require.NoError(t, err)
	vel, err := world.RegisterComponentType("velocity", 8, 4)
	require.NoError(t, err)
	return pos, vel
}

func TestRegisterComponentType(t *testing.T) {
	_, world := newWorld(t)

	pos, vel := registerPosVel(t, world)
	assert.Equal(t, ecs.TypeID(0), pos)
	assert.Equal(t, ecs.TypeID(1), vel)

	id, ok := world.TypeByName("position")
	assert.True(t, ok)
	assert.Equal(t, pos, id)
	assert.Equal(t, "velocity", world.TypeName(vel))

	_, ok = world.TypeByName("missing")
	assert.False(t, ok)
}

func TestRegistryExhaustsAtMaskWidth(t *testing.T) {
	_, world := newWorld(t)

	seen := make(map[ecs.TypeID]bool)
	for i := 0; i < ecs.MaxComponentTypes; i++ {
		id, err := world.RegisterComponentType(fmt.Sprintf("type%d", i), 4, 4)
		require.NoError(t, err, "registration %d", i)
		require.GreaterOrEqual(t, int(id), 0)
		require.Less(t, int(id), ecs.MaxComponentTypes)
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	_, err := world.RegisterComponentType("one-too-many", 4, 4)
	assert.ErrorIs(t, err, ecs.ErrRegistryFull)
}

func TestAddEntityAndGetComponent(t *testing.T) {
	_, world := newWorld(t)
	pos, vel := registerPosVel(t, world)

	e1 := world.AddEntity(pos.Bit() | vel.Bit())
	e2 := world.AddEntity(pos.Bit() | vel.Bit())
	require.False(t, e1.Zero())
	require.False(t, e2.Zero())

	p1 := world.Component(e1, pos)
	p2 := world.Component(e2, pos)
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	assert.NotSame(t, &p1[0], &p2[0], "entities must not share component storage")

	// Freshly added entities see zeroed components.
	c1 := ecs.As[Position](p1)
	assert.Zero(t, c1.X)
	assert.Zero(t, c1.Y)

	c1.X = 3
	c2 := ecs.Get[Position](world, e2, pos)
	assert.Zero(t, c2.X, "write to e1 leaked into e2")
}

func TestComponentAbsentBit(t *testing.T) {
	_, world := newWorld(t)
	pos, vel := registerPosVel(t, world)

	e := world.AddEntity(pos.Bit())
	assert.NotNil(t, world.Component(e, pos))
	assert.Nil(t, world.Component(e, vel), "type not in mask must read as nil")
}

func TestComponentOrAddSetsBit(t *testing.T) {
	_, world := newWorld(t)
	pos, vel := registerPosVel(t, world)

	e := world.AddEntity(pos.Bit())
	require.Nil(t, world.Component(e, vel))

	buf := world.ComponentOrAdd(e, vel)
	require.NotNil(t, buf)
	v := ecs.As[Velocity](buf)
	assert.Zero(t, v.DX)

	// The bit is now live: plain Component sees it, and queries match it.
	assert.NotNil(t, world.Component(e, vel))
	q := world.Query(vel.Bit())
	require.True(t, q.Valid())
	assert.Equal(t, e, q.Entity())
}

func TestRemoveEntityInvalidatesRefs(t *testing.T) {
	_, world := newWorld(t)
	pos, _ := registerPosVel(t, world)

	e := world.AddEntity(pos.Bit())
	slot := e.Slot()
	require.NotNil(t, world.Component(e, pos))

	world.RemoveEntity(e)
	assert.Nil(t, world.Component(e, pos), "stale ref must not resolve")
	assert.Nil(t, world.ComponentOrAdd(e, pos))

	// Removing again through the stale ref is a no-op.
	world.RemoveEntity(e)

	// The slot is recycled after Update; the old ref must still fail even
	// though the slot is physically reused.
	world.Update()
	reused := world.AddEntity(pos.Bit())
	require.Equal(t, slot, reused.Slot(), "slot should be recycled")
	assert.Nil(t, world.Component(e, pos))
	assert.NotNil(t, world.Component(reused, pos))
}

func TestRemovedSlotNotReusedBeforeUpdate(t *testing.T) {
	_, world := newWorld(t)
	pos, _ := registerPosVel(t, world)

	e := world.AddEntity(pos.Bit())
	world.RemoveEntity(e)

	next := world.AddEntity(pos.Bit())
	assert.NotEqual(t, e.Slot(), next.Slot(), "removal recycles only after Update")
}

func TestEntityTableExhaustion(t *testing.T) {
	_, world := newWorld(t)
	pos, _ := registerPosVel(t, world)

	for i := 0; i < ecs.MaxEntities; i++ {
		require.False(t, world.AddEntity(pos.Bit()).Zero(), "entity %d", i)
	}
	assert.True(t, world.AddEntity(pos.Bit()).Zero(), "table full, add must fail")
	assert.Equal(t, ecs.MaxEntities, world.EntityCount())
}

func TestQueryMaskSuperset(t *testing.T) {
	_, world := newWorld(t)
	pos, vel := registerPosVel(t, world)

	e1 := world.AddEntity(pos.Bit())
	e2 := world.AddEntity(pos.Bit() | vel.Bit())

	collect := func(mask uint64) []ecs.EntityRef {
		var out []ecs.EntityRef
		for q := world.Query(mask); q.Valid(); q.Next() {
			out = append(out, q.Entity())
		}
		return out
	}

	assert.Equal(t, []ecs.EntityRef{e1, e2}, collect(pos.Bit()))
	assert.Equal(t, []ecs.EntityRef{e2}, collect(vel.Bit()))
	assert.Equal(t, []ecs.EntityRef{e2}, collect(pos.Bit()|vel.Bit()))
}

func TestQuerySkipsRemovedEntities(t *testing.T) {
	_, world := newWorld(t)
	pos, _ := registerPosVel(t, world)

	var refs []ecs.EntityRef
	for i := 0; i < 5; i++ {
		refs = append(refs, world.AddEntity(pos.Bit()))
	}
	world.RemoveEntity(refs[1])
	world.RemoveEntity(refs[3])

	var slots []int
	for q := world.Query(pos.Bit()); q.Valid(); q.Next() {
		slots = append(slots, q.Entity().Slot())
	}
	assert.Equal(t, []int{0, 2, 4}, slots)
}

func TestQueryComponentAccess(t *testing.T) {
	_, world := newWorld(t)
	pos, vel := registerPosVel(t, world)

	e := world.AddEntity(pos.Bit() | vel.Bit())
	ecs.Get[Position](world, e, pos).X = 42

	q := world.Query(pos.Bit() | vel.Bit())
	require.True(t, q.Valid())
	assert.Equal(t, float32(42), ecs.As[Position](q.Component(pos)).X)
	assert.Equal(t, e, q.Entity())

	q.Next()
	assert.False(t, q.Valid())
	assert.Nil(t, q.Component(pos))
	assert.True(t, q.Entity().Zero())
}

func TestLayout(t *testing.T) {
	size, align := ecs.Layout[Position]()
	assert.Equal(t, 8, size)
	assert.Equal(t, 4, align)
}

func BenchmarkQueryScan(b *testing.B) {
	h, err := heap.New(1 << 20)
	if err != nil {
		b.Fatal(err)
	}
	defer h.Close()
	world := ecs.New(h)
	defer world.Close()

	pos, _ := world.RegisterComponentType("position", 8, 4)
	vel, _ := world.RegisterComponentType("velocity", 8, 4)
	for i := 0; i < ecs.MaxEntities; i++ {
		mask := pos.Bit()
		if i%2 == 0 {
			mask |= vel.Bit()
		}
		world.AddEntity(mask)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for q := world.Query(pos.Bit() | vel.Bit()); q.Valid(); q.Next() {
			_ = q.Component(pos)
		}
	}
}
