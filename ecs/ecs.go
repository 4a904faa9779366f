// Package ecs implements a small entity-component-system runtime. Component
// data lives in flat per-type arrays allocated from a shared heap, entity
// membership is a 64-bit mask with one bit per registered type, and queries
// lazily scan the entity table for mask supersets.
//
// All operations on one ECS instance belong to a single goroutine (the frame
// update); the runtime adds no internal locking.
package ecs

import (
	"errors"
	"fmt"

	"github.com/plus3/hopper/heap"
)

const (
	// MaxComponentTypes is the width of the membership mask.
	MaxComponentTypes = 64
	// MaxEntities is the fixed capacity of the entity table. Component
	// stores are sized for this many entities up front.
	MaxEntities = 512
)

// ErrRegistryFull is returned when more component types are registered than
// the membership mask can encode.
var ErrRegistryFull = errors.New("ecs: component type registry full")

// ErrOutOfMemory is returned when the backing store for a component type
// cannot be allocated.
var ErrOutOfMemory = errors.New("ecs: out of memory")

type componentType struct {
	name   string
	size   int
	align  int
	stride int
	store  []byte
}

// ECS is one entity-component-system instance. Bookkeeping and component
// stores are allocated from the heap passed to New and returned on Close.
type ECS struct {
	heap   *heap.Heap
	types  []componentType
	byName map[string]TypeID

	masks [MaxEntities]uint64
	gens  [MaxEntities]uint32
	live  [MaxEntities]bool

	top       uint32   // slots below this index have been used at least once
	freeSlots []uint32 // recycled slots available to AddEntity
	pending   []uint32 // slots removed this frame, recycled on Update
}

// New creates an empty ECS backed by the given heap.
func New(h *heap.Heap) *ECS {
	return &ECS{
		heap:   h,
		byName: make(map[string]TypeID),
	}
}

// Close releases every component store back to the heap. The ECS must not
// be used afterwards.
func (e *ECS) Close() {
	for i := range e.types {
		e.heap.Free(e.types[i].store)
		e.types[i].store = nil
	}
	e.types = nil
}

// RegisterComponentType registers a component type with the given element
// size and alignment and allocates its backing store. Types register once,
// during initialization, and are never unregistered. Fails with
// ErrRegistryFull starting at the 65th registration.
func (e *ECS) RegisterComponentType(name string, size, align int) (TypeID, error) {
	if len(e.types) >= MaxComponentTypes {
		return -1, fmt.Errorf("%w: %q would be type %d", ErrRegistryFull, name, len(e.types))
	}
	if size <= 0 || align <= 0 || align&(align-1) != 0 {
		return -1, fmt.Errorf("ecs: invalid layout for %q: size %d align %d", name, size, align)
	}

	stride := (size + align - 1) &^ (align - 1)
	store := e.heap.Alloc(stride*MaxEntities, align)
	if store == nil {
		return -1, fmt.Errorf("%w: store for %q (%d bytes)", ErrOutOfMemory, name, stride*MaxEntities)
	}

	id := TypeID(len(e.types))
	e.types = append(e.types, componentType{
		name:   name,
		size:   size,
		align:  align,
		stride: stride,
		store:  store,
	})
	e.byName[name] = id
	return id, nil
}

// TypeByName returns the id registered under name.
func (e *ECS) TypeByName(name string) (TypeID, bool) {
	id, ok := e.byName[name]
	return id, ok
}

// TypeName returns the name a type was registered under.
func (e *ECS) TypeName(t TypeID) string {
	if int(t) < 0 || int(t) >= len(e.types) {
		return ""
	}
	return e.types[t].name
}

// AddEntity creates an entity carrying the component types in mask. The
// component slots for every set bit are zeroed. Returns the zero EntityRef
// when the entity table is full; slots removed this frame only become
// available after the next Update.
func (e *ECS) AddEntity(mask uint64) EntityRef {
	var slot uint32
	switch {
	case len(e.freeSlots) > 0:
		slot = e.freeSlots[len(e.freeSlots)-1]
		e.freeSlots = e.freeSlots[:len(e.freeSlots)-1]
	case e.top < MaxEntities:
		slot = e.top
		e.top++
	default:
		return EntityRef{}
	}

	e.masks[slot] = mask
	e.live[slot] = true
	e.gens[slot]++

	for t := range e.types {
		if mask&TypeID(t).Bit() != 0 {
			e.zeroSlot(TypeID(t), slot)
		}
	}

	return EntityRef{slot: slot, gen: e.gens[slot]}
}

// RemoveEntity marks the entity dead and bumps its slot generation so every
// outstanding ref to it becomes stale. A stale ref is a no-op. The slot is
// recycled on the next Update.
func (e *ECS) RemoveEntity(ref EntityRef) {
	if !e.refValid(ref) {
		return
	}
	slot := ref.slot
	e.masks[slot] = 0
	e.live[slot] = false
	e.gens[slot]++
	e.pending = append(e.pending, slot)
}

// Update performs per-frame bookkeeping: slots removed since the previous
// Update become available for reuse. Call once per frame.
func (e *ECS) Update() {
	if len(e.pending) > 0 {
		e.freeSlots = append(e.freeSlots, e.pending...)
		e.pending = e.pending[:0]
	}
}

// Component returns the entity's component data for the given type, or nil
// when the ref is stale or the entity does not carry the type.
func (e *ECS) Component(ref EntityRef, t TypeID) []byte {
	if !e.refValid(ref) || !e.typeValid(t) {
		return nil
	}
	if e.masks[ref.slot]&t.Bit() == 0 {
		return nil
	}
	return e.slotData(t, ref.slot)
}

// ComponentOrAdd is Component, except that when the entity is live but does
// not carry the type, the type's bit is set on the entity's mask and the
// zeroed slot is returned. This is the one operation that mutates a mask
// after creation.
func (e *ECS) ComponentOrAdd(ref EntityRef, t TypeID) []byte {
	if !e.refValid(ref) || !e.typeValid(t) {
		return nil
	}
	if e.masks[ref.slot]&t.Bit() == 0 {
		e.masks[ref.slot] |= t.Bit()
		e.zeroSlot(t, ref.slot)
	}
	return e.slotData(t, ref.slot)
}

// EntityCount returns the number of live entities.
func (e *ECS) EntityCount() int {
	n := 0
	for slot := uint32(0); slot < e.top; slot++ {
		if e.live[slot] {
			n++
		}
	}
	return n
}

func (e *ECS) refValid(ref EntityRef) bool {
	return ref.slot < MaxEntities && e.live[ref.slot] && e.gens[ref.slot] == ref.gen
}

func (e *ECS) typeValid(t TypeID) bool {
	return int(t) >= 0 && int(t) < len(e.types)
}

func (e *ECS) slotData(t TypeID, slot uint32) []byte {
	ct := &e.types[t]
	off := int(slot) * ct.stride
	return ct.store[off : off+ct.size : off+ct.size]
}

func (e *ECS) zeroSlot(t TypeID, slot uint32) {
	buf := e.slotData(t, slot)
	for i := range buf {
		buf[i] = 0
	}
}
