// SPDX-License-Identifier: EPL-2.0

package shm

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// TimingPage layout, 64 bytes. The mixer publishes playback progress here;
// the producer's control side reads it to derive the audible position.
// The sequence counter makes torn reads detectable: it is odd while the
// writer is mid-publication and changes across any completed publication.
type timingPage struct {
	magic              uint64
	sequence           uint64
	devicePlayedFrames uint64
	ringReadFrames     uint64
	serverMonotonicNS  uint64
	underrunCount      uint64
	_                  [16]byte
}

// TimingPageSize is the fixed size of the timing page layout.
const TimingPageSize = 64

var timingMagic = binary.LittleEndian.Uint64([]byte("RMXTIME\x00"))

// TimingSnapshot is one consistent publication read from a TimingPage.
type TimingSnapshot struct {
	// DevicePlayedFrames is the producer's session-relative played frame
	// count at the device output.
	DevicePlayedFrames uint64
	// RingReadFrames is the cumulative number of frames the mixer has
	// drained from the producer's ring.
	RingReadFrames uint64
	// ServerMonotonicNS is the mixer's monotonic clock at publication.
	ServerMonotonicNS uint64
	// UnderrunCount is the cumulative number of callbacks that found the
	// producer's ring empty.
	UnderrunCount uint64
}

// TimingPage is a single-writer/multi-reader timing publication over a
// shared region. The writer (the mixer callback) never waits for readers;
// readers retry until they observe a stable, even sequence value.
type TimingPage struct {
	region *Region
}

// NewTimingPage allocates a region and initializes a timing page in it.
func NewTimingPage() (*TimingPage, error) {
	region, err := NewRegion(TimingPageSize)
	if err != nil {
		return nil, err
	}
	return CreateTimingPage(region)
}

// CreateTimingPage initializes a timing page at the start of region.
func CreateTimingPage(region *Region) (*TimingPage, error) {
	if region.Size() < TimingPageSize {
		return nil, ErrRegionTooSmall
	}

	p := &TimingPage{region: region}
	s := p.storage()
	atomic.StoreUint64(&s.sequence, 0)
	atomic.StoreUint64(&s.devicePlayedFrames, 0)
	atomic.StoreUint64(&s.ringReadFrames, 0)
	atomic.StoreUint64(&s.serverMonotonicNS, 0)
	atomic.StoreUint64(&s.underrunCount, 0)
	atomic.StoreUint64(&s.magic, timingMagic)
	return p, nil
}

// AttachTimingPage adopts a timing page previously initialized in region,
// validating the magic value before trusting the layout.
func AttachTimingPage(region *Region) (*TimingPage, error) {
	if region.Size() < TimingPageSize {
		return nil, ErrRegionTooSmall
	}

	p := &TimingPage{region: region}
	if atomic.LoadUint64(&p.storage().magic) != timingMagic {
		return nil, ErrBadMagic
	}
	return p, nil
}

func (p *TimingPage) storage() *timingPage {
	return (*timingPage)(unsafe.Pointer(&p.region.mem[0]))
}

// Region returns the backing region, for handing the page to a peer.
func (p *TimingPage) Region() *Region { return p.region }

// Publish writes one consistent timing update. deltaRingReadFrames and
// deltaUnderruns accumulate onto the stored counters. Only the mixer
// callback may call Publish; it never blocks.
func (p *TimingPage) Publish(devicePlayedFrames, serverMonotonicNS, deltaRingReadFrames, deltaUnderruns uint64) {
	s := p.storage()

	// Odd sequence marks the writer in progress.
	atomic.AddUint64(&s.sequence, 1)

	ringReadFrames := atomic.LoadUint64(&s.ringReadFrames) + deltaRingReadFrames
	underrunCount := atomic.LoadUint64(&s.underrunCount) + deltaUnderruns

	atomic.StoreUint64(&s.devicePlayedFrames, devicePlayedFrames)
	atomic.StoreUint64(&s.ringReadFrames, ringReadFrames)
	atomic.StoreUint64(&s.serverMonotonicNS, serverMonotonicNS)
	atomic.StoreUint64(&s.underrunCount, underrunCount)

	atomic.AddUint64(&s.sequence, 1)
}

// timingReadRetryLimit bounds the reader's retry loop so a stalled writer
// cannot spin a reader forever.
const timingReadRetryLimit = 1 << 16

// Read returns one consistent snapshot of the page. ok is false only if the
// retry limit was exhausted against a writer that never settled.
func (p *TimingPage) Read() (snap TimingSnapshot, ok bool) {
	s := p.storage()

	for retry := 0; retry < timingReadRetryLimit; retry++ {
		before := atomic.LoadUint64(&s.sequence)
		if before&1 != 0 {
			continue
		}

		snap.DevicePlayedFrames = atomic.LoadUint64(&s.devicePlayedFrames)
		snap.RingReadFrames = atomic.LoadUint64(&s.ringReadFrames)
		snap.ServerMonotonicNS = atomic.LoadUint64(&s.serverMonotonicNS)
		snap.UnderrunCount = atomic.LoadUint64(&s.underrunCount)

		if atomic.LoadUint64(&s.sequence) == before {
			return snap, true
		}
	}
	return TimingSnapshot{}, false
}
