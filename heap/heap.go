// Package heap provides a growable general-purpose allocator built on a
// two-level segregated-fit free list. A Heap owns a chain of contiguous
// arenas and hands out aligned sub-slices of them; when every arena is
// exhausted it grows a new one and retries. Allocation and free are safe to
// call from multiple goroutines.
package heap

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/kamstrup/intmap"
	"go.uber.org/zap"
)

// ErrBudgetExceeded is returned by New when the configured byte budget is
// too small to hold the heap's own bookkeeping.
var ErrBudgetExceeded = errors.New("heap: byte budget exceeded")

// arena is a single contiguous region registered as a pool with the free
// list. Arenas form a singly linked list, newest first, and live until the
// heap is closed.
type arena struct {
	slab  []byte
	first *block
	next  *arena
}

// Heap is a growable general-purpose allocator.
type Heap struct {
	mu sync.Mutex

	tlsf   tlsf
	arenas *arena
	grow   int

	// Side table from returned payload address to owning block. This keeps
	// diagnostic metadata out of the payload layout entirely.
	live *intmap.Map[uintptr, *block]

	limit    int64
	reserved int64
	inUse    int64
	peak     int64
	count    int

	captureStacks bool
	log           *zap.Logger
	closed        bool
}

// Option configures a Heap.
type Option func(*Heap)

// WithLogger routes heap diagnostics (allocation failures, leak reports)
// through the given logger.
func WithLogger(log *zap.Logger) Option {
	return func(h *Heap) { h.log = log }
}

// WithDiagnostics enables per-allocation call stack capture. Stacks are
// reported for any block still live when the heap is closed.
func WithDiagnostics() Option {
	return func(h *Heap) { h.captureStacks = true }
}

// WithLimit caps the total bytes the heap may reserve across all arenas.
// Allocations that would push reservation past the limit fail with a nil
// result instead of growing.
func WithLimit(n int64) Option {
	return func(h *Heap) { h.limit = n }
}

// New creates a heap with no arenas. growIncrement is the minimum size in
// bytes of each arena added when the heap grows.
func New(growIncrement int, opts ...Option) (*Heap, error) {
	if growIncrement <= 0 {
		return nil, fmt.Errorf("heap: invalid grow increment %d", growIncrement)
	}
	h := &Heap{
		grow: alignUp(growIncrement, alignSize),
		live: intmap.New[uintptr, *block](256),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.limit > 0 && h.limit < int64(h.grow) {
		return nil, ErrBudgetExceeded
	}
	return h, nil
}

// Alloc returns a slice of exactly size bytes whose backing address is
// aligned to align (a power of two). Returns nil when the request cannot be
// satisfied within the heap's byte budget; callers must treat nil as fatal
// for that allocation path.
func (h *Heap) Alloc(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	if align == 0 {
		align = alignSize
	}
	if align&(align-1) != 0 {
		h.log.Error("heap: alignment must be a power of two", zap.Int("align", align))
		return nil
	}

	// Alignment slack is folded into the padded size up front, so any block
	// the search finds already has room for an aligned start.
	padded := alignUp(size, alignSize)
	if align > alignSize {
		padded += align
	}

	// Capture outside the critical section; nothing here touches the lock.
	var stack []uintptr
	if h.captureStacks {
		buf := make([]uintptr, maxStackDepth)
		n := runtime.Callers(2, buf)
		stack = buf[:n]
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	b := h.tlsf.allocate(padded)
	if b == nil {
		if !h.addArena(padded) {
			return nil
		}
		b = h.tlsf.allocate(padded)
		if b == nil {
			// New arena is sized at 2x the padded request, so this cannot
			// happen unless the free lists are corrupted.
			h.log.Error("heap: allocation failed after growth", zap.Int("size", size))
			return nil
		}
	}

	base := uintptr(unsafe.Pointer(&b.arena.slab[b.off]))
	addr := uintptr(alignUp(int(base), align))
	payloadOff := b.off + int(addr-base)
	buf := b.arena.slab[payloadOff : payloadOff+size : payloadOff+size]

	b.reqSize = size
	b.stack = stack
	h.live.Put(addr, b)

	h.inUse += int64(b.size)
	h.count++
	if h.inUse > h.peak {
		h.peak = h.inUse
	}
	return buf
}

// addArena reserves a new arena large enough to satisfy a padded request of
// the given size and registers it with the free list. Reports failure when
// the byte budget would be exceeded.
func (h *Heap) addArena(padded int) bool {
	size := h.grow
	if padded*2 > size {
		size = alignUp(padded*2, alignSize)
	}
	if h.limit > 0 && h.reserved+int64(size) > h.limit {
		h.log.Error("heap: out of memory",
			zap.Int("requested", padded),
			zap.Int64("reserved", h.reserved),
			zap.Int64("limit", h.limit))
		return false
	}
	a := &arena{slab: make([]byte, size)}
	a.next = h.arenas
	h.arenas = a
	h.reserved += int64(size)
	h.tlsf.addPool(a)
	return true
}

// Free releases a block previously returned by Alloc on this heap. Freeing
// a nil or empty slice is a no-op. Freeing a slice the heap did not return,
// or freeing twice, is undefined behavior.
func (h *Heap) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	b, ok := h.live.Get(addr)
	if !ok {
		// Debug guard for foreign/double frees; correctness must not rely
		// on it.
		h.log.Error("heap: free of unknown address", zap.Uintptr("addr", addr))
		return
	}
	h.live.Del(addr)
	h.inUse -= int64(b.size)
	h.count--
	h.tlsf.release(b)
}

// Stats reports current heap usage.
type Stats struct {
	Arenas      int
	Reserved    int64
	InUse       int64
	Peak        int64
	Allocations int
}

// Stats returns a snapshot of heap usage.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{
		Reserved:    h.reserved,
		InUse:       h.inUse,
		Peak:        h.peak,
		Allocations: h.count,
	}
	for a := h.arenas; a != nil; a = a.next {
		s.Arenas++
	}
	return s
}

// Close walks every arena and reports each block still in use as a leak,
// then releases all arenas. Returns a *LeakError describing the live blocks
// if any were found.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var leaks []Leak
	for a := h.arenas; a != nil; a = a.next {
		for b := a.first; b != nil; b = b.nextPhys {
			if b.free {
				continue
			}
			leak := Leak{Size: b.reqSize, Stack: symbolize(b.stack)}
			h.log.Warn("heap: memory leak",
				zap.Int("size", leak.Size),
				zap.Strings("stack", leak.Stack))
			leaks = append(leaks, leak)
		}
	}

	h.arenas = nil
	h.live = nil
	h.tlsf = tlsf{}

	if len(leaks) > 0 {
		return &LeakError{Leaks: leaks}
	}
	return nil
}
