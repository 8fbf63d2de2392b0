// SPDX-License-Identifier: EPL-2.0

package shm

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Block pool header layout, 32 bytes.
type poolHeader struct {
	magic      uint64
	version    uint32
	blockSize  uint32
	blockCount uint32
	_          [12]byte
}

// PoolHeaderSize is the fixed space the pool header occupies at the start
// of the pool region.
const PoolHeaderSize = 32

const poolVersion = 1

var poolMagic = binary.LittleEndian.Uint64([]byte("RMXPOOL\x00"))

// Descriptor identifies one block handed between producer and consumer.
// Length is the number of valid bytes the producer wrote into the block.
type Descriptor struct {
	Index  uint32
	Length uint32
}

// DescriptorSize is the wire size of a Descriptor in the free/ready rings.
const DescriptorSize = 8

// BlockPool is a fixed pool of equally sized blocks used for auxiliary
// streaming data (analyser snapshots and the like) between a producer and a
// consumer in different processes. Two descriptor rings carry ownership: the
// free ring is pre-seeded with every block index, the ready ring hands
// filled blocks to the consumer, and the consumer returns each block through
// the free ring when done. No side ever blocks; an empty free ring means the
// consumer is behind and the producer drops the update.
type BlockPool struct {
	pool  *Region
	ready *Ring
	free  *Ring

	blockSize  int
	blockCount int
}

// DescriptorRingCapacity returns the ring capacity, in bytes, needed to hold
// one descriptor per block: rounded up to a power of two and never below 64.
func DescriptorRingCapacity(blockCount int) int {
	c := ceilPow2(blockCount * DescriptorSize)
	if c < 64 {
		c = 64
	}
	return c
}

// PoolRegionSize returns the region size needed for a pool of blockCount
// blocks of blockSize bytes.
func PoolRegionSize(blockSize, blockCount int) int {
	return PoolHeaderSize + blockSize*blockCount
}

// NewBlockPool allocates the pool region and both descriptor rings, seeds
// the free ring with every block index, and returns the assembled pool.
func NewBlockPool(blockSize, blockCount int) (*BlockPool, error) {
	if blockSize <= 0 || blockCount <= 0 {
		return nil, ErrInvalidBlockLayout
	}

	pool, err := NewRegion(PoolRegionSize(blockSize, blockCount))
	if err != nil {
		return nil, err
	}

	ringCapacity := DescriptorRingCapacity(blockCount)
	ready, err := NewRing(ringCapacity)
	if err != nil {
		pool.Close()
		return nil, err
	}
	free, err := NewRing(ringCapacity)
	if err != nil {
		pool.Close()
		ready.Region().Close()
		return nil, err
	}

	p := &BlockPool{pool: pool, ready: ready, free: free, blockSize: blockSize, blockCount: blockCount}
	h := p.header()
	h.version = poolVersion
	h.blockSize = uint32(blockSize)
	h.blockCount = uint32(blockCount)
	atomic.StoreUint64(&h.magic, poolMagic)

	for i := 0; i < blockCount; i++ {
		p.pushDescriptor(free, Descriptor{Index: uint32(i)})
	}
	return p, nil
}

// AttachBlockPool adopts a pool previously initialized in the given regions,
// validating the magic value and layout before trusting the memory.
func AttachBlockPool(pool, readyRegion, freeRegion *Region) (*BlockPool, error) {
	if pool.Size() < PoolHeaderSize {
		return nil, ErrRegionTooSmall
	}

	p := &BlockPool{pool: pool}
	h := p.header()
	if atomic.LoadUint64(&h.magic) != poolMagic || h.version != poolVersion {
		return nil, ErrBadMagic
	}
	if h.blockSize == 0 || h.blockCount == 0 {
		return nil, ErrInvalidBlockLayout
	}

	p.blockSize = int(h.blockSize)
	p.blockCount = int(h.blockCount)
	if pool.Size() < PoolRegionSize(p.blockSize, p.blockCount) {
		return nil, ErrRegionTooSmall
	}

	ready, err := AttachRing(readyRegion)
	if err != nil {
		return nil, err
	}
	free, err := AttachRing(freeRegion)
	if err != nil {
		return nil, err
	}
	p.ready = ready
	p.free = free
	return p, nil
}

func (p *BlockPool) header() *poolHeader {
	return (*poolHeader)(unsafe.Pointer(&p.pool.mem[0]))
}

func (p *BlockPool) BlockSize() int  { return p.blockSize }
func (p *BlockPool) BlockCount() int { return p.blockCount }

// Regions returns the pool, ready-ring, and free-ring regions in that
// order, for handing the pool to a peer process.
func (p *BlockPool) Regions() (pool, ready, free *Region) {
	return p.pool, p.ready.Region(), p.free.Region()
}

// Block returns the storage of block i.
func (p *BlockPool) Block(i int) []byte {
	off := PoolHeaderSize + i*p.blockSize
	return p.pool.mem[off : off+p.blockSize]
}

func (p *BlockPool) pushDescriptor(r *Ring, d Descriptor) bool {
	var buf [DescriptorSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], d.Index)
	binary.LittleEndian.PutUint32(buf[4:8], d.Length)
	return r.TryWrite(buf[:]) == DescriptorSize
}

func (p *BlockPool) popDescriptor(r *Ring) (Descriptor, bool) {
	var buf [DescriptorSize]byte
	n := r.TryRead(buf[:])
	if n == 0 {
		return Descriptor{}, false
	}
	// Descriptors are written whole into a power-of-two ring, so a partial
	// read means a corrupted peer; drop it.
	if n != DescriptorSize {
		return Descriptor{}, false
	}
	return Descriptor{
		Index:  binary.LittleEndian.Uint32(buf[0:4]),
		Length: binary.LittleEndian.Uint32(buf[4:8]),
	}, true
}

// Acquire takes a free block for writing. ok is false when the consumer has
// not returned any blocks yet; the producer drops the update in that case.
func (p *BlockPool) Acquire() (block []byte, index uint32, ok bool) {
	d, ok := p.popDescriptor(p.free)
	if !ok || int(d.Index) >= p.blockCount {
		return nil, 0, false
	}
	return p.Block(int(d.Index)), d.Index, true
}

// Commit hands a filled block to the consumer. length is the number of
// valid bytes written into the block.
func (p *BlockPool) Commit(index uint32, length int) bool {
	if int(index) >= p.blockCount || length < 0 || length > p.blockSize {
		return false
	}
	return p.pushDescriptor(p.ready, Descriptor{Index: index, Length: uint32(length)})
}

// Next takes the oldest ready block for reading. The consumer must pass the
// returned descriptor to Release when finished with the block.
func (p *BlockPool) Next() (block []byte, d Descriptor, ok bool) {
	d, ok = p.popDescriptor(p.ready)
	if !ok || int(d.Index) >= p.blockCount || int(d.Length) > p.blockSize {
		return nil, Descriptor{}, false
	}
	return p.Block(int(d.Index))[:d.Length], d, true
}

// Release returns a consumed block to the free ring.
func (p *BlockPool) Release(d Descriptor) bool {
	if int(d.Index) >= p.blockCount {
		return false
	}
	return p.pushDescriptor(p.free, Descriptor{Index: d.Index})
}

// Close releases all three regions.
func (p *BlockPool) Close() {
	p.pool.Close()
	p.ready.Region().Close()
	p.free.Region().Close()
}
