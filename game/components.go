package game

// Component types registered by the Frogger game. These are plain structs
// stored by value in the ECS; register them with ecs.Layout.

// Transform places an entity in the scene. Y is horizontal, Z vertical
// (positive down), matching the camera basis in math.go.
type Transform struct {
	Translation Vec3
	Scale       Vec3
}

// MakeIdentity resets the transform to origin with unit scale.
func (t *Transform) MakeIdentity() {
	t.Translation = Vec3{}
	t.Scale = Vec3{1, 1, 1}
}

// Camera holds the projection and view matrices for rendering.
type Camera struct {
	Projection Mat4
	View       Mat4
}

// Model names the mesh and shader an entity is drawn with. GPU resources
// themselves live with the renderer; the component only carries handles.
type Model struct {
	Mesh   uint32
	Shader uint32
}

// Mesh and shader handles used by the Frogger scene.
const (
	MeshCube uint32 = iota + 1
	MeshCar
)

const ShaderDefault uint32 = 1

// Player marks the player entity.
type Player struct {
	Index int32
	Speed float32
}

// Traffic marks a car. Cars move horizontally at a fixed speed and wrap at
// the screen edges.
type Traffic struct {
	Index      int32
	MovingLeft bool
	Speed      float32
}

// Name is a fixed-width debug label.
type Name struct {
	Value [32]byte
}

// Set copies s into the name, truncating to the fixed width.
func (n *Name) Set(s string) {
	*n = Name{}
	copy(n.Value[:], s)
}

func (n *Name) String() string {
	for i, b := range n.Value {
		if b == 0 {
			return string(n.Value[:i])
		}
	}
	return string(n.Value[:])
}
