// SPDX-License-Identifier: EPL-2.0

package shm

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Ring header layout, 64 bytes. The read and write indices are monotonic
// byte counters; each is advanced only by its own side, and positions are
// derived by masking with capacity-1.
type ringHeader struct {
	magic    uint64
	capacity uint64
	widx     uint64
	ridx     uint64
	_        [32]byte
}

// RingHeaderSize is the fixed space the ring header occupies at the start
// of its region.
const RingHeaderSize = 64

// MinCallbackFrames is the smallest buffer the device callback is assumed
// to request; ring sizing quotes capacities in multiples of it.
const MinCallbackFrames = 128

const bytesPerSample = 4 // float32 wire format

var ringMagic = binary.LittleEndian.Uint64([]byte("RMXRING\x00"))

// Ring is a single-producer/single-consumer byte ring over a shared region.
// One process writes, one process reads; neither ever blocks. Short reads
// and writes are expected under backpressure and underrun.
type Ring struct {
	region  *Region
	mask    uint64
	dataOff uintptr
}

// RingRegionSize returns the region size needed for a ring of the given
// capacity.
func RingRegionSize(capacity int) int { return RingHeaderSize + capacity }

// RingCapacityForLatency computes the ring capacity, in bytes, for a
// producer at the given device format and target latency: the number of
// bytes covering the latency window, at least twice the minimum callback
// size, rounded up to a power of two, and never below eight minimum
// callbacks' worth.
func RingCapacityForLatency(sampleRate, channelCount, targetLatencyMS int) int {
	bytesPerFrame := channelCount * bytesPerSample
	minCallbackBytes := MinCallbackFrames * bytesPerFrame

	desired := (sampleRate * targetLatencyMS / 1000) * bytesPerFrame
	if desired < 2*minCallbackBytes {
		desired = 2 * minCallbackBytes
	}

	capacity := ceilPow2(desired)
	if floor := ceilPow2(8 * minCallbackBytes); capacity < floor {
		capacity = floor
	}
	return capacity
}

func ceilPow2(n int) int {
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}

// NewRing allocates a fresh region and initializes a ring of the given
// capacity in it.
func NewRing(capacity int) (*Ring, error) {
	region, err := NewRegion(RingRegionSize(capacity))
	if err != nil {
		return nil, err
	}
	return CreateRing(region, capacity)
}

// CreateRing initializes a ring header at the start of region. capacity
// must be a power of two and fit in the region after the header.
func CreateRing(region *Region, capacity int) (*Ring, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, ErrCapacityNotPowerOf2
	}
	if region.Size() < RingRegionSize(capacity) {
		return nil, ErrRegionTooSmall
	}

	r := &Ring{region: region, mask: uint64(capacity) - 1, dataOff: RingHeaderSize}
	h := r.header()
	h.capacity = uint64(capacity)
	atomic.StoreUint64(&h.widx, 0)
	atomic.StoreUint64(&h.ridx, 0)
	atomic.StoreUint64(&h.magic, ringMagic)
	return r, nil
}

// AttachRing adopts a ring previously initialized in region, validating the
// magic value and capacity before trusting the layout.
func AttachRing(region *Region) (*Ring, error) {
	if region.Size() < RingHeaderSize {
		return nil, ErrRegionTooSmall
	}

	r := &Ring{region: region, dataOff: RingHeaderSize}
	h := r.header()
	if atomic.LoadUint64(&h.magic) != ringMagic {
		return nil, ErrBadMagic
	}

	capacity := h.capacity
	if capacity == 0 || capacity&(capacity-1) != 0 {
		return nil, ErrCapacityNotPowerOf2
	}
	if uint64(region.Size()) < RingHeaderSize+capacity {
		return nil, ErrRegionTooSmall
	}

	r.mask = capacity - 1
	return r, nil
}

func (r *Ring) header() *ringHeader {
	return (*ringHeader)(unsafe.Pointer(&r.region.mem[0]))
}

func (r *Ring) data() []byte {
	return r.region.mem[r.dataOff : r.dataOff+uintptr(r.mask+1)]
}

// Region returns the backing region, for handing the ring to a peer.
func (r *Ring) Region() *Region { return r.region }

// Capacity returns the ring's data capacity in bytes.
func (r *Ring) Capacity() int { return int(r.mask + 1) }

// Used returns the number of unread bytes currently in the ring.
func (r *Ring) Used() int {
	h := r.header()
	return int(atomic.LoadUint64(&h.widx) - atomic.LoadUint64(&h.ridx))
}

// TryWrite copies as much of p as fits and returns the number of bytes
// written. It never blocks; a short write means the consumer is behind.
func (r *Ring) TryWrite(p []byte) int {
	if len(p) == 0 {
		return 0
	}

	h := r.header()
	w := atomic.LoadUint64(&h.widx)
	rd := atomic.LoadUint64(&h.ridx)

	capacity := r.mask + 1
	free := capacity - (w - rd)
	n := uint64(len(p))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	data := r.data()
	pos := w & r.mask
	first := capacity - pos
	if first > n {
		first = n
	}
	copy(data[pos:pos+first], p[:first])
	copy(data[:n-first], p[first:n])

	// The index store orders after the byte copies, so the reader never
	// observes the advance before the bytes are visible.
	atomic.StoreUint64(&h.widx, w+n)
	return int(n)
}

// TryRead copies up to len(p) unread bytes into p and returns the number of
// bytes read. It never blocks; zero means the producer is behind (underrun).
func (r *Ring) TryRead(p []byte) int {
	if len(p) == 0 {
		return 0
	}

	h := r.header()
	w := atomic.LoadUint64(&h.widx)
	rd := atomic.LoadUint64(&h.ridx)

	avail := w - rd
	n := uint64(len(p))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	data := r.data()
	capacity := r.mask + 1
	pos := rd & r.mask
	first := capacity - pos
	if first > n {
		first = n
	}
	copy(p[:first], data[pos:pos+first])
	copy(p[first:n], data[:n-first])

	atomic.StoreUint64(&h.ridx, rd+n)
	return int(n)
}
