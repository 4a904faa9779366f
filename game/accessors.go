package game

import "github.com/plus3/hopper/ecs"

// Field accessors expose component fields by name to binding layers (the
// Lua front-end) without the core knowing anything about field names. Each
// accessor implements the script package's FieldAccessor contract
// structurally: Read returns the field value, Write stores one.

// TransformAccessor exposes Transform translation and scale fields.
type TransformAccessor struct{}

func (TransformAccessor) Read(comp []byte, field string) (any, bool) {
	t := ecs.As[Transform](comp)
	switch field {
	case "x":
		return float64(t.Translation.X), true
	case "y":
		return float64(t.Translation.Y), true
	case "z":
		return float64(t.Translation.Z), true
	case "sx":
		return float64(t.Scale.X), true
	case "sy":
		return float64(t.Scale.Y), true
	case "sz":
		return float64(t.Scale.Z), true
	}
	return nil, false
}

func (TransformAccessor) Write(comp []byte, field string, v any) bool {
	t := ecs.As[Transform](comp)
	f, ok := toFloat32(v)
	if !ok {
		return false
	}
	switch field {
	case "x":
		t.Translation.X = f
	case "y":
		t.Translation.Y = f
	case "z":
		t.Translation.Z = f
	case "sx":
		t.Scale.X = f
	case "sy":
		t.Scale.Y = f
	case "sz":
		t.Scale.Z = f
	default:
		return false
	}
	return true
}

// PlayerAccessor exposes Player fields.
type PlayerAccessor struct{}

func (PlayerAccessor) Read(comp []byte, field string) (any, bool) {
	p := ecs.As[Player](comp)
	switch field {
	case "index":
		return int64(p.Index), true
	case "speed":
		return float64(p.Speed), true
	}
	return nil, false
}

func (PlayerAccessor) Write(comp []byte, field string, v any) bool {
	p := ecs.As[Player](comp)
	switch field {
	case "index":
		i, ok := toInt64(v)
		if !ok {
			return false
		}
		p.Index = int32(i)
	case "speed":
		f, ok := toFloat32(v)
		if !ok {
			return false
		}
		p.Speed = f
	default:
		return false
	}
	return true
}

// TrafficAccessor exposes Traffic fields.
type TrafficAccessor struct{}

func (TrafficAccessor) Read(comp []byte, field string) (any, bool) {
	tr := ecs.As[Traffic](comp)
	switch field {
	case "index":
		return int64(tr.Index), true
	case "moving_left":
		return tr.MovingLeft, true
	case "speed":
		return float64(tr.Speed), true
	}
	return nil, false
}

func (TrafficAccessor) Write(comp []byte, field string, v any) bool {
	tr := ecs.As[Traffic](comp)
	switch field {
	case "index":
		i, ok := toInt64(v)
		if !ok {
			return false
		}
		tr.Index = int32(i)
	case "moving_left":
		b, ok := v.(bool)
		if !ok {
			return false
		}
		tr.MovingLeft = b
	case "speed":
		f, ok := toFloat32(v)
		if !ok {
			return false
		}
		tr.Speed = f
	default:
		return false
	}
	return true
}

// NameAccessor exposes the debug label.
type NameAccessor struct{}

func (NameAccessor) Read(comp []byte, field string) (any, bool) {
	if field != "name" {
		return nil, false
	}
	return ecs.As[Name](comp).String(), true
}

func (NameAccessor) Write(comp []byte, field string, v any) bool {
	if field != "name" {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	ecs.As[Name](comp).Set(s)
	return true
}

func toFloat32(v any) (float32, bool) {
	switch n := v.(type) {
	case float64:
		return float32(n), true
	case float32:
		return n, true
	case int64:
		return float32(n), true
	case int:
		return float32(n), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
