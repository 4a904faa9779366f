package ecs

// TypeID identifies a registered component type. IDs are small integers in
// [0, MaxComponentTypes) and double as bit positions in an entity mask.
type TypeID int

// Bit returns the mask with only this type's bit set.
func (t TypeID) Bit() uint64 {
	return 1 << uint(t)
}

// EntityRef is a weak reference to an entity: a slot index plus the
// generation the slot had when the reference was handed out. Holding a ref
// never keeps the entity alive, and a ref to a removed entity fails all
// component accesses instead of aliasing a reused slot.
type EntityRef struct {
	slot uint32
	gen  uint32
}

// Slot returns the entity's slot index.
func (r EntityRef) Slot() int {
	return int(r.slot)
}

// Zero reports whether the ref is the zero value, returned by AddEntity
// when the entity table is full.
func (r EntityRef) Zero() bool {
	return r.gen == 0
}
