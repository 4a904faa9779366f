package game

// Vec3 is a 3-component float vector.
type Vec3 struct {
	X, Y, Z float32
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Forward, Up and Right give the camera basis used by the original scene:
// X is depth, Y is horizontal, Z is vertical (positive down).
func Forward() Vec3 { return Vec3{X: 1} }
func Up() Vec3      { return Vec3{Z: 1} }
func Right() Vec3   { return Vec3{Y: 1} }

// Mat4 is a column-major 4x4 matrix.
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	var m Mat4
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

// Orthographic builds an orthographic projection over the given volume.
func Orthographic(left, right, bottom, top, near, far float32) Mat4 {
	var m Mat4
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[10] = -2 / (far - near)
	m[12] = -(right + left) / (right - left)
	m[13] = -(top + bottom) / (top - bottom)
	m[14] = -(far + near) / (far - near)
	m[15] = 1
	return m
}

// LookAt builds a view matrix for an eye position looking along forward.
func LookAt(eye, forward, up Vec3) Mat4 {
	f := forward
	s := cross(f, up)
	u := cross(s, f)

	var m Mat4
	m[0], m[4], m[8] = s.X, s.Y, s.Z
	m[1], m[5], m[9] = u.X, u.Y, u.Z
	m[2], m[6], m[10] = -f.X, -f.Y, -f.Z
	m[12] = -dot(s, eye)
	m[13] = -dot(u, eye)
	m[14] = dot(f, eye)
	m[15] = 1
	return m
}

// TransformMatrix expands a translation and scale into a model matrix.
func TransformMatrix(translation, scale Vec3) Mat4 {
	var m Mat4
	m[0] = scale.X
	m[5] = scale.Y
	m[10] = scale.Z
	m[12] = translation.X
	m[13] = translation.Y
	m[14] = translation.Z
	m[15] = 1
	return m
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func dot(a, b Vec3) float32 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
