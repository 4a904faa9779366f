package heap

import "math/bits"

// Two-level segregated fit free-list allocator. Block metadata lives in Go
// structs off to the side of the payload slabs, so the byte ranges handed out
// are payload-only. The class mapping follows the classic TLSF scheme: a
// first-level index by size magnitude and 32 linear subclasses per level,
// with bitmaps over both levels so a fitting free list is found in O(1).
const (
	slIndexLog2  = 5
	slIndexCount = 1 << slIndexLog2

	alignSizeLog2 = 3
	alignSize     = 1 << alignSizeLog2

	flIndexShift = slIndexLog2 + alignSizeLog2
	flIndexCount = 40

	// Blocks below 256 bytes map linearly onto the first level.
	smallBlockSize = 1 << flIndexShift

	// A split remainder smaller than this stays attached to its block.
	minBlockSize = alignSize
)

// block describes one physical span inside an arena. Blocks within an arena
// form a doubly linked physical chain ordered by offset; free blocks are
// additionally threaded through the size-class free lists.
type block struct {
	arena *arena
	off   int
	size  int
	free  bool

	prevPhys *block
	nextPhys *block
	prevFree *block
	nextFree *block

	// Set while the block is in use, for leak reporting.
	reqSize int
	stack   []uintptr
}

type tlsf struct {
	flBitmap  uint64
	slBitmaps [flIndexCount]uint32
	freeLists [flIndexCount][slIndexCount]*block
}

// mappingInsert returns the exact size class a block of the given size
// belongs to.
func mappingInsert(size int) (fl, sl int) {
	if size < smallBlockSize {
		return 0, size / (smallBlockSize / slIndexCount)
	}
	f := bits.Len(uint(size)) - 1
	sl = (size >> (f - slIndexLog2)) ^ slIndexCount
	fl = f - flIndexShift + 1
	if fl >= flIndexCount {
		fl = flIndexCount - 1
		sl = slIndexCount - 1
	}
	return fl, sl
}

// mappingSearch rounds the request up to the next size class so that any
// block found in that class is guaranteed to fit.
func mappingSearch(size int) (fl, sl int) {
	if size >= smallBlockSize {
		round := (1 << (bits.Len(uint(size)) - 1 - slIndexLog2)) - 1
		size += round
	}
	return mappingInsert(size)
}

func (t *tlsf) pushFree(b *block) {
	fl, sl := mappingInsert(b.size)
	head := t.freeLists[fl][sl]
	b.prevFree = nil
	b.nextFree = head
	if head != nil {
		head.prevFree = b
	}
	t.freeLists[fl][sl] = b
	t.flBitmap |= 1 << uint(fl)
	t.slBitmaps[fl] |= 1 << uint(sl)
	b.free = true
}

func (t *tlsf) removeFree(b *block) {
	fl, sl := mappingInsert(b.size)
	if b.prevFree != nil {
		b.prevFree.nextFree = b.nextFree
	} else {
		t.freeLists[fl][sl] = b.nextFree
		if b.nextFree == nil {
			t.slBitmaps[fl] &^= 1 << uint(sl)
			if t.slBitmaps[fl] == 0 {
				t.flBitmap &^= 1 << uint(fl)
			}
		}
	}
	if b.nextFree != nil {
		b.nextFree.prevFree = b.prevFree
	}
	b.prevFree = nil
	b.nextFree = nil
	b.free = false
}

// findSuitable locates the head of the first non-empty free list at or above
// the given class.
func (t *tlsf) findSuitable(fl, sl int) *block {
	slMap := t.slBitmaps[fl] & (^uint32(0) << uint(sl))
	if slMap == 0 {
		flMap := t.flBitmap & (^uint64(0) << uint(fl+1))
		if flMap == 0 {
			return nil
		}
		fl = bits.TrailingZeros64(flMap)
		slMap = t.slBitmaps[fl]
	}
	sl = bits.TrailingZeros32(slMap)
	return t.freeLists[fl][sl]
}

// allocate carves a block of at least size bytes out of the free lists,
// splitting off the remainder when it is large enough to stand alone.
// size must be a multiple of alignSize. Returns nil when no block fits.
func (t *tlsf) allocate(size int) *block {
	fl, sl := mappingSearch(size)
	b := t.findSuitable(fl, sl)
	if b == nil {
		return nil
	}
	t.removeFree(b)

	if b.size >= size+minBlockSize {
		rem := &block{
			arena:    b.arena,
			off:      b.off + size,
			size:     b.size - size,
			prevPhys: b,
			nextPhys: b.nextPhys,
		}
		if b.nextPhys != nil {
			b.nextPhys.prevPhys = rem
		}
		b.nextPhys = rem
		b.size = size
		t.pushFree(rem)
	}
	return b
}

// release returns a block to the free lists, coalescing it with free
// physical neighbors first.
func (t *tlsf) release(b *block) {
	b.reqSize = 0
	b.stack = nil

	if p := b.prevPhys; p != nil && p.free {
		t.removeFree(p)
		p.size += b.size
		p.nextPhys = b.nextPhys
		if b.nextPhys != nil {
			b.nextPhys.prevPhys = p
		}
		b = p
	}
	if n := b.nextPhys; n != nil && n.free {
		t.removeFree(n)
		b.size += n.size
		b.nextPhys = n.nextPhys
		if n.nextPhys != nil {
			n.nextPhys.prevPhys = b
		}
	}
	t.pushFree(b)
}

// addPool registers an arena's whole slab as a single free block.
func (t *tlsf) addPool(a *arena) {
	b := &block{
		arena: a,
		off:   0,
		size:  len(a.slab),
	}
	a.first = b
	t.pushFree(b)
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
