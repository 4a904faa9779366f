package heap

import "testing"

func poolOf(size int) (*tlsf, *arena) {
	t := &tlsf{}
	a := &arena{slab: make([]byte, size)}
	t.addPool(a)
	return t, a
}

func TestMappingInsertSmallSizes(t *testing.T) {
	for size := alignSize; size < smallBlockSize; size += alignSize {
		fl, sl := mappingInsert(size)
		if fl != 0 {
			t.Fatalf("size %d: fl = %d, want 0", size, fl)
		}
		if sl != size/alignSize {
			t.Fatalf("size %d: sl = %d, want %d", size, sl, size/alignSize)
		}
	}
}

func TestMappingInsertLargeSizes(t *testing.T) {
	tests := []struct {
		size int
		fl   int
		sl   int
	}{
		{256, 1, 0},
		{256 + 8, 1, 1},
		{511, 1, 31},
		{512, 2, 0},
		{1024, 3, 0},
		{4096, 5, 0},
		{65536, 9, 0},
	}
	for _, tt := range tests {
		fl, sl := mappingInsert(tt.size)
		if fl != tt.fl || sl != tt.sl {
			t.Fatalf("size %d: got (%d, %d), want (%d, %d)", tt.size, fl, sl, tt.fl, tt.sl)
		}
	}
}

func TestAllocateSplitsRemainder(t *testing.T) {
	tl, a := poolOf(4096)

	b := tl.allocate(64)
	if b == nil {
		t.Fatal("allocate returned nil")
	}
	if b.size != 64 || b.off != 0 {
		t.Fatalf("got block off=%d size=%d", b.off, b.size)
	}
	rem := b.nextPhys
	if rem == nil || !rem.free || rem.size != 4096-64 {
		t.Fatalf("remainder not split correctly: %+v", rem)
	}
	if a.first != b {
		t.Fatal("first physical block changed")
	}
}

func TestReleaseCoalescesNeighbors(t *testing.T) {
	tl, a := poolOf(4096)

	b1 := tl.allocate(64)
	b2 := tl.allocate(64)
	b3 := tl.allocate(64)

	// Freeing out of order must still end in one block spanning the pool.
	tl.release(b2)
	tl.release(b1)
	tl.release(b3)

	if a.first == nil || !a.first.free {
		t.Fatal("pool head not free after releasing everything")
	}
	if a.first.size != 4096 {
		t.Fatalf("pool did not coalesce: head size %d", a.first.size)
	}
	if a.first.nextPhys != nil {
		t.Fatal("physical chain has more than one block")
	}
}

func TestAllocateExhaustion(t *testing.T) {
	tl, _ := poolOf(256)

	b := tl.allocate(256)
	if b == nil {
		t.Fatal("exact-fit allocation failed")
	}
	if tl.allocate(8) != nil {
		t.Fatal("allocation from an empty pool should fail")
	}
	tl.release(b)
	if tl.allocate(256) == nil {
		t.Fatal("pool not reusable after release")
	}
}
