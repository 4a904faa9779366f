package ecs

// Cursor enumerates live entities whose mask is a superset of a required
// mask, in increasing slot order. The scan is lazy: each advance re-checks
// the live entity table, so an entity added during iteration is visited if
// its slot lies at or after the cursor, and removing an entity at or before
// the cursor leaves the remainder of the iteration undefined. Iterate and
// mutate from one goroutine only.
type Cursor struct {
	ecs      *ECS
	required uint64
	slot     int
}

// Query returns a cursor positioned on the first matching entity.
//
//	for q := e.Query(mask); q.Valid(); q.Next() {
//		pos := q.Component(posType)
//		...
//	}
func (e *ECS) Query(required uint64) Cursor {
	c := Cursor{ecs: e, required: required, slot: -1}
	c.Next()
	return c
}

// Valid reports whether the cursor is on a matching entity.
func (c *Cursor) Valid() bool {
	return c.slot >= 0 && c.slot < int(c.ecs.top)
}

// Next advances to the next slot whose mask contains the required mask.
func (c *Cursor) Next() {
	e := c.ecs
	for s := c.slot + 1; s < int(e.top); s++ {
		if e.live[s] && e.masks[s]&c.required == c.required {
			c.slot = s
			return
		}
	}
	c.slot = int(e.top)
}

// Component returns the current entity's data for the given type. Fetching
// a type that was not part of the required mask is a caller error; the
// result is nil when the entity does not carry it.
func (c *Cursor) Component(t TypeID) []byte {
	if !c.Valid() || !c.ecs.typeValid(t) {
		return nil
	}
	if c.ecs.masks[c.slot]&t.Bit() == 0 {
		return nil
	}
	return c.ecs.slotData(t, uint32(c.slot))
}

// Entity returns a ref to the entity under the cursor.
func (c *Cursor) Entity() EntityRef {
	if !c.Valid() {
		return EntityRef{}
	}
	return EntityRef{slot: uint32(c.slot), gen: c.ecs.gens[c.slot]}
}
