// Package game implements the Frogger gameplay layer on top of the ECS and
// heap. It talks to the core only through public operations: component
// registration at startup, entity creation with a mask, and query cursors
// each frame.
package game

import (
	"fmt"

	"github.com/plus3/hopper/ecs"
	"github.com/plus3/hopper/fs"
	"github.com/plus3/hopper/heap"
)

// Keys is the pressed-key bitmask sampled by the host each frame.
type Keys uint32

const (
	KeyUp Keys = 1 << iota
	KeyDown
	KeyLeft
	KeyRight
)

// ModelUniform is the per-draw uniform block handed to the renderer.
type ModelUniform struct {
	Projection Mat4
	Model      Mat4
	View       Mat4
}

// Renderer receives draw submissions. Rendering itself is outside this
// package; a nil Renderer runs the simulation headless.
type Renderer interface {
	PushModel(ref ecs.EntityRef, mesh, shader uint32, uniform ModelUniform)
	FrameDone()
}

// Bounds is the playfield rectangle in world units.
type Bounds struct {
	Left, Right, Top, Bottom float32
}

// DefaultBounds mirrors the original 16:9 scene.
func DefaultBounds() Bounds {
	const aspect = 16.0 / 9.0
	top := float32(-13)
	left := top * aspect
	return Bounds{Left: left, Right: -left, Top: top, Bottom: -top}
}

type carData struct {
	spawnPercent float32
	row          float32
	speed        float32
	size         float32
	moveLeft     bool
}

var allCars = []carData{
	{0.25, 0.0, 2.5, 1.5, false},
	{1.0, 0.0, 2.5, 1.5, false},
	{0.0, 1.0, 1.5, 2.5, true},

	{0.0, 3.5, 2.0, 1.5, false},
	{0.45, 3.5, 2.0, 2.0, false},
	{0.0, 4.5, 3.0, 3.0, true},
	{0.3, 4.5, 3.0, 3.0, true},

	{0.1, 7.0, 2.5, 1.5, false},
	{0.5, 7.0, 2.5, 2.0, false},
	{0.8, 7.0, 2.5, 1.5, false},
	{0.15, 8.0, 3.25, 2.5, true},
	{0.45, 8.0, 3.25, 2.5, true},
	{0.25, 9.0, 2.0, 2.5, true},
	{0.65, 9.0, 2.0, 2.5, true},
}

// Game owns one ECS world populated with the Frogger scene.
type Game struct {
	heap     *heap.Heap
	world    *ecs.ECS
	renderer Renderer

	transformType ecs.TypeID
	cameraType    ecs.TypeID
	modelType     ecs.TypeID
	playerType    ecs.TypeID
	trafficType   ecs.TypeID
	nameType      ecs.TypeID

	playerEnt ecs.EntityRef
	cameraEnt ecs.EntityRef

	bounds Bounds

	vertexShader   *fs.Work
	fragmentShader *fs.Work
}

// New builds the world: registers the component types, then spawns the
// player, the traffic wave and the camera.
func New(h *heap.Heap, r Renderer) (*Game, error) {
	g := &Game{
		heap:     h,
		world:    ecs.New(h),
		renderer: r,
		bounds:   DefaultBounds(),
	}

	var err error
	register := func(name string, size, align int) ecs.TypeID {
		if err != nil {
			return -1
		}
		var id ecs.TypeID
		id, err = g.world.RegisterComponentType(name, size, align)
		return id
	}

	transformSize, transformAlign := ecs.Layout[Transform]()
	cameraSize, cameraAlign := ecs.Layout[Camera]()
	modelSize, modelAlign := ecs.Layout[Model]()
	playerSize, playerAlign := ecs.Layout[Player]()
	trafficSize, trafficAlign := ecs.Layout[Traffic]()
	nameSize, nameAlign := ecs.Layout[Name]()

	g.transformType = register("transform", transformSize, transformAlign)
	g.cameraType = register("camera", cameraSize, cameraAlign)
	g.modelType = register("model", modelSize, modelAlign)
	g.playerType = register("player", playerSize, playerAlign)
	g.trafficType = register("traffic", trafficSize, trafficAlign)
	g.nameType = register("name", nameSize, nameAlign)
	if err != nil {
		g.world.Close()
		return nil, fmt.Errorf("game: %w", err)
	}

	g.spawnPlayer(0)
	for i := range allCars {
		g.spawnTraffic(i)
	}
	g.spawnCamera()

	return g, nil
}

// LoadShaders queues asynchronous reads of the scene's shader pair through
// the given fs. The data is held until Close.
func (g *Game) LoadShaders(f *fs.FS, vertPath, fragPath string) error {
	g.vertexShader = f.Read(vertPath)
	g.fragmentShader = f.Read(fragPath)
	if err := g.vertexShader.Err(); err != nil {
		return fmt.Errorf("game: vertex shader: %w", err)
	}
	if err := g.fragmentShader.Err(); err != nil {
		return fmt.Errorf("game: fragment shader: %w", err)
	}
	return nil
}

// Close tears down the world and releases any loaded assets.
func (g *Game) Close() {
	if g.vertexShader != nil {
		g.vertexShader.Release()
	}
	if g.fragmentShader != nil {
		g.fragmentShader.Release()
	}
	g.world.Close()
}

// World exposes the underlying ECS, mainly for script bindings and tests.
func (g *Game) World() *ecs.ECS {
	return g.world
}

// ComponentTypes returns the name-to-id table for binding layers.
func (g *Game) ComponentTypes() map[string]ecs.TypeID {
	return map[string]ecs.TypeID{
		"TransformComponent": g.transformType,
		"CameraComponent":    g.cameraType,
		"ModelComponent":     g.modelType,
		"PlayerComponent":    g.playerType,
		"TrafficComponent":   g.trafficType,
		"NameComponent":      g.nameType,
	}
}

// PlayerRef returns the player entity.
func (g *Game) PlayerRef() ecs.EntityRef {
	return g.playerEnt
}

// Update advances the simulation one frame.
func (g *Game) Update(dt float64, keys Keys) {
	g.world.Update()
	g.updatePlayers(float32(dt), keys)
	g.updateTraffic(float32(dt))
	g.drawModels()
	if g.renderer != nil {
		g.renderer.FrameDone()
	}
}

func (g *Game) spawnPlayer(index int) {
	mask := g.transformType.Bit() |
		g.modelType.Bit() |
		g.playerType.Bit() |
		g.nameType.Bit()
	g.playerEnt = g.world.AddEntity(mask)

	transform := ecs.Get[Transform](g.world, g.playerEnt, g.transformType)
	transform.MakeIdentity()
	transform.Translation.Z = g.bounds.Bottom - 1.5

	ecs.Get[Name](g.world, g.playerEnt, g.nameType).Set("player")

	player := ecs.Get[Player](g.world, g.playerEnt, g.playerType)
	player.Index = int32(index)
	player.Speed = 1.5

	model := ecs.Get[Model](g.world, g.playerEnt, g.modelType)
	model.Mesh = MeshCube
	model.Shader = ShaderDefault
}

func (g *Game) spawnTraffic(index int) {
	mask := g.transformType.Bit() |
		g.modelType.Bit() |
		g.trafficType.Bit() |
		g.nameType.Bit()
	ref := g.world.AddEntity(mask)

	init := allCars[index]

	transform := ecs.Get[Transform](g.world, ref, g.transformType)
	transform.MakeIdentity()
	transform.Translation.Z = g.bounds.Bottom - 4 - init.row*2.1
	transform.Scale.Y = init.size

	traffic := ecs.Get[Traffic](g.world, ref, g.trafficType)
	traffic.Index = int32(index)
	traffic.MovingLeft = init.moveLeft
	traffic.Speed = init.speed

	leftEnd := g.bounds.Left - transform.Scale.Y
	rightEnd := g.bounds.Right + transform.Scale.Y
	total := abs32(leftEnd - rightEnd)
	if traffic.MovingLeft {
		transform.Translation.Y = rightEnd - init.spawnPercent*total
	} else {
		transform.Translation.Y = leftEnd + init.spawnPercent*total
	}

	ecs.Get[Name](g.world, ref, g.nameType).Set("traffic")

	model := ecs.Get[Model](g.world, ref, g.modelType)
	model.Mesh = MeshCar
	model.Shader = ShaderDefault
}

func (g *Game) spawnCamera() {
	mask := g.cameraType.Bit() | g.nameType.Bit()
	g.cameraEnt = g.world.AddEntity(mask)

	ecs.Get[Name](g.world, g.cameraEnt, g.nameType).Set("camera")

	camera := ecs.Get[Camera](g.world, g.cameraEnt, g.cameraType)
	camera.Projection = Orthographic(g.bounds.Left, g.bounds.Right, g.bounds.Bottom, g.bounds.Top, 0.1, 10)
	camera.View = LookAt(Forward().Scale(-5), Forward(), Up())
}
