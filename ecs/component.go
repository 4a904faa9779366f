package ecs

import (
	"fmt"
	"unsafe"
)

// As reinterprets a component byte slice as a pointer to T. The slice must
// come from Component, ComponentOrAdd, or Cursor.Component for a type
// registered with T's size; anything smaller panics. Returns nil for a nil
// slice so stale-ref results pass through unchanged.
func As[T any](buf []byte) *T {
	if buf == nil {
		return nil
	}
	var zero T
	if size := int(unsafe.Sizeof(zero)); len(buf) < size {
		panic(fmt.Sprintf("ecs: component slice holds %d bytes, %T needs %d", len(buf), zero, size))
	}
	return (*T)(unsafe.Pointer(&buf[0]))
}

// Get fetches the entity's component for the given type as a *T. Nil when
// the ref is stale or the entity does not carry the type.
func Get[T any](e *ECS, ref EntityRef, t TypeID) *T {
	return As[T](e.Component(ref, t))
}

// Layout returns the size and alignment of T for registration:
//
//	size, align := ecs.Layout[Transform]()
//	id, err := world.RegisterComponentType("transform", size, align)
func Layout[T any]() (size, align int) {
	var zero T
	return int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
}
