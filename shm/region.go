// SPDX-License-Identifier: EPL-2.0

package shm

import (
	"os"
	"unsafe"
)

// Region is a contiguous byte mapping used as the backing store for the
// fixed-layout structures in this package. A region is either a shared
// memory mapping with an exportable file descriptor (see region_linux.go)
// or a heap allocation usable within a single process.
type Region struct {
	mem  []byte
	file *os.File
}

// NewHeapRegion allocates a process-local region. It carries no file
// descriptor, so it cannot be shared with a peer process; it exists for
// tests, offline rendering, and platforms without shared-memory support.
func NewHeapRegion(size int) *Region {
	if size < 8 {
		size = 8
	}

	// Back the slice with uint64 storage so the header fields accessed
	// through atomic operations are 8-byte aligned.
	backing := make([]uint64, (size+7)/8)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&backing[0])), size)

	return &Region{mem: mem}
}

// Bytes returns the mapped memory. The slice stays valid until Close.
func (r *Region) Bytes() []byte { return r.mem }

func (r *Region) Size() int { return len(r.mem) }

// File returns the descriptor backing a shared mapping, or nil for a
// heap-backed region. The descriptor may be passed to a peer process, which
// maps it with AttachRegion.
func (r *Region) File() *os.File { return r.file }
