package game_test

import (
	"testing"

	"github.com/plus3/hopper/ecs"
	"github.com/plus3/hopper/game"
	"github.com/plus3/hopper/heap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRenderer struct {
	pushes int
	frames int
}

func (r *recordingRenderer) PushModel(ref ecs.EntityRef, mesh, shader uint32, uniform game.ModelUniform) {
	r.pushes++
}

func (r *recordingRenderer) FrameDone() {
	r.frames++
}

func newGame(t *testing.T, r game.Renderer) *game.Game {
	t.Helper()
	h, err := heap.New(1 << 18)
	require.NoError(t, err)
	g, err := game.New(h, r)
	require.NoError(t, err)
	t.Cleanup(func() {
		g.Close()
		assert.NoError(t, h.Close())
	})
	return g
}

func TestSceneSpawns(t *testing.T) {
	g := newGame(t, nil)

	// Player, 14 cars, camera.
	assert.Equal(t, 16, g.World().EntityCount())
	require.False(t, g.PlayerRef().Zero())

	types := g.ComponentTypes()
	assert.Len(t, types, 6)

	name := ecs.Get[game.Name](g.World(), g.PlayerRef(), types["NameComponent"])
	require.NotNil(t, name)
	assert.Equal(t, "player", name.String())
}

func TestPlayerMovesWithKeys(t *testing.T) {
	g := newGame(t, nil)
	types := g.ComponentTypes()

	transform := ecs.Get[game.Transform](g.World(), g.PlayerRef(), types["TransformComponent"])
	startY := transform.Translation.Y

	g.Update(0.1, game.KeyRight)
	assert.Greater(t, transform.Translation.Y, startY)

	g.Update(0.1, game.KeyLeft)
	assert.InDelta(t, float64(startY), float64(transform.Translation.Y), 1e-4)
}

func TestPlayerClampedToBounds(t *testing.T) {
	g := newGame(t, nil)
	types := g.ComponentTypes()
	bounds := game.DefaultBounds()

	transform := ecs.Get[game.Transform](g.World(), g.PlayerRef(), types["TransformComponent"])

	for i := 0; i < 200; i++ {
		g.Update(0.5, game.KeyRight)
	}
	assert.LessOrEqual(t, transform.Translation.Y, bounds.Right-transform.Scale.Y+1e-4)
}

func TestTrafficWrapsAround(t *testing.T) {
	g := newGame(t, nil)
	types := g.ComponentTypes()
	bounds := game.DefaultBounds()

	mask := types["TransformComponent"].Bit() | types["TrafficComponent"].Bit()
	count := 0
	for q := g.World().Query(mask); q.Valid(); q.Next() {
		count++
	}
	require.Equal(t, 14, count)

	// Run long enough for every car to cross the screen at least once.
	for i := 0; i < 2000; i++ {
		g.Update(1.0/60, 0)
	}

	for q := g.World().Query(mask); q.Valid(); q.Next() {
		tr := ecs.As[game.Transform](q.Component(types["TransformComponent"]))
		limit := tr.Scale.Y + 1e-3
		assert.GreaterOrEqual(t, tr.Translation.Y, bounds.Left-limit-1)
		assert.LessOrEqual(t, tr.Translation.Y, bounds.Right+limit+1)
	}
}

func TestCollisionTeleportsPlayer(t *testing.T) {
	g := newGame(t, nil)
	types := g.ComponentTypes()
	bounds := game.DefaultBounds()

	player := ecs.Get[game.Transform](g.World(), g.PlayerRef(), types["TransformComponent"])

	// Park the player on top of the first car.
	mask := types["TransformComponent"].Bit() | types["TrafficComponent"].Bit()
	q := g.World().Query(mask)
	require.True(t, q.Valid())
	car := ecs.As[game.Transform](q.Component(types["TransformComponent"]))

	player.Translation = car.Translation
	g.Update(0, 0)

	// Teleported to the start row; the bounds clamp keeps the box inside.
	assert.Equal(t, float32(0), player.Translation.Y)
	assert.Equal(t, bounds.Bottom-player.Scale.Z, player.Translation.Z)
}

func TestWinTeleportsPlayer(t *testing.T) {
	g := newGame(t, nil)
	types := g.ComponentTypes()
	bounds := game.DefaultBounds()

	player := ecs.Get[game.Transform](g.World(), g.PlayerRef(), types["TransformComponent"])
	player.Translation.Z = bounds.Top + player.Scale.Z

	g.Update(0, 0)
	assert.Equal(t, float32(0), player.Translation.Y)
	assert.Equal(t, bounds.Bottom-player.Scale.Z, player.Translation.Z)
}

func TestDrawSubmitsModels(t *testing.T) {
	r := &recordingRenderer{}
	g := newGame(t, r)

	g.Update(1.0/60, 0)

	// 15 entities carry transform+model (player + 14 cars), drawn once per
	// camera; the camera entity itself is not drawn.
	assert.Equal(t, 15, r.pushes)
	assert.Equal(t, 1, r.frames)
}
