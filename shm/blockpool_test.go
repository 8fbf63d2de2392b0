// SPDX-License-Identifier: EPL-2.0

package shm

import (
	"bytes"
	"testing"
)

func TestDescriptorRingCapacity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		blockCount int
		want       int
	}{
		{blockCount: 1, want: 64},
		{blockCount: 8, want: 64},
		{blockCount: 9, want: 128},
		{blockCount: 32, want: 256},
	}

	for _, tc := range tests {
		if got := DescriptorRingCapacity(tc.blockCount); got != tc.want {
			t.Errorf("DescriptorRingCapacity(%d) = %d, want %d", tc.blockCount, got, tc.want)
		}
	}
}

func TestNewBlockPool_RejectsBadLayout(t *testing.T) {
	t.Parallel()

	if _, err := NewBlockPool(0, 4); err == nil {
		t.Fatal("NewBlockPool(0, 4) succeeded, want error")
	}
	if _, err := NewBlockPool(64, 0); err == nil {
		t.Fatal("NewBlockPool(64, 0) succeeded, want error")
	}
}

func TestBlockPool_ProducerConsumerHandoff(t *testing.T) {
	t.Parallel()

	pool, err := NewBlockPool(64, 4)
	if err != nil {
		t.Fatalf("NewBlockPool: %v", err)
	}
	defer pool.Close()

	// All four blocks start free.
	var acquired []uint32
	for i := 0; i < 4; i++ {
		block, idx, ok := pool.Acquire()
		if !ok {
			t.Fatalf("Acquire #%d failed", i)
		}
		copy(block, []byte{byte(i), byte(i), byte(i)})
		acquired = append(acquired, idx)
		if !pool.Commit(idx, 3) {
			t.Fatalf("Commit #%d failed", i)
		}
	}

	// Free ring is now empty; the producer drops.
	if _, _, ok := pool.Acquire(); ok {
		t.Fatal("Acquire on exhausted pool succeeded")
	}

	// Consumer drains in order and returns the blocks.
	for i := 0; i < 4; i++ {
		block, d, ok := pool.Next()
		if !ok {
			t.Fatalf("Next #%d failed", i)
		}
		if d.Index != acquired[i] {
			t.Errorf("Next #%d index = %d, want %d", i, d.Index, acquired[i])
		}
		if d.Length != 3 || len(block) != 3 {
			t.Errorf("Next #%d length = %d (block %d), want 3", i, d.Length, len(block))
		}
		if !bytes.Equal(block, []byte{byte(i), byte(i), byte(i)}) {
			t.Errorf("Next #%d payload = %v", i, block)
		}
		if !pool.Release(d) {
			t.Fatalf("Release #%d failed", i)
		}
	}

	// Returned blocks are reusable.
	if _, _, ok := pool.Acquire(); !ok {
		t.Fatal("Acquire after Release failed")
	}
}

func TestBlockPool_NextDropsForgedDescriptors(t *testing.T) {
	t.Parallel()

	pool, err := NewBlockPool(16, 4)
	if err != nil {
		t.Fatalf("NewBlockPool: %v", err)
	}
	defer pool.Close()

	// A peer with its own mapping of the ready ring can write arbitrary
	// descriptors. Neither an out-of-range index nor a length beyond the
	// block size may reach the slicing path.
	forged := []Descriptor{
		{Index: 7, Length: 4},
		{Index: 3, Length: 1 << 20},
		{Index: 3, Length: uint32(pool.BlockSize()) + 1},
	}
	for _, d := range forged {
		if !pool.pushDescriptor(pool.ready, d) {
			t.Fatalf("pushDescriptor(%+v) failed", d)
		}
		if block, _, ok := pool.Next(); ok {
			t.Errorf("Next accepted forged descriptor %+v (block len %d)", d, len(block))
		}
	}

	// A well-formed descriptor still flows through afterwards.
	if !pool.pushDescriptor(pool.ready, Descriptor{Index: 2, Length: uint32(pool.BlockSize())}) {
		t.Fatal("pushDescriptor of valid descriptor failed")
	}
	block, d, ok := pool.Next()
	if !ok {
		t.Fatal("Next rejected a valid descriptor")
	}
	if d.Index != 2 || len(block) != pool.BlockSize() {
		t.Errorf("Next = index %d, block len %d, want index 2, len %d", d.Index, len(block), pool.BlockSize())
	}
}

func TestAttachBlockPool_ValidatesMagic(t *testing.T) {
	t.Parallel()

	pool, err := NewBlockPool(32, 2)
	if err != nil {
		t.Fatalf("NewBlockPool: %v", err)
	}
	defer pool.Close()

	poolRegion, readyRegion, freeRegion := pool.Regions()

	attached, err := AttachBlockPool(poolRegion, readyRegion, freeRegion)
	if err != nil {
		t.Fatalf("AttachBlockPool: %v", err)
	}
	if attached.BlockSize() != 32 || attached.BlockCount() != 2 {
		t.Fatalf("attached layout = %dx%d, want 32x2", attached.BlockSize(), attached.BlockCount())
	}

	bogus := NewHeapRegion(PoolRegionSize(32, 2))
	if _, err := AttachBlockPool(bogus, readyRegion, freeRegion); err == nil {
		t.Fatal("AttachBlockPool on zeroed pool region succeeded, want bad magic error")
	}
}
