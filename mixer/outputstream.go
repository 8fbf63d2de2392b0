// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/slog"

	"github.com/halvard/rendermix/shm"
)

// OutputStream couples an output driver to the set of registered producers.
// Control-side methods (register, unregister, mute) take the mutex and
// republish the snapshot; the data callback MixInto runs lock-free on the
// driver's goroutine.
type OutputStream struct {
	log    slog.Logger
	driver OutputDriver

	mu        sync.Mutex
	started   bool
	producers map[uint64]Producer
	order     []uint64
	whenReady []func()

	snapshot     atomic.Pointer[Snapshot]
	sampleRate   atomic.Uint32
	channelCount atomic.Uint32

	// playedFrames advances by one buffer's worth per data request. The
	// backend exposes no hardware position, so this monotonic count
	// stands in for it; session-relative accounting only needs deltas.
	playedFrames atomic.Uint64

	startTime time.Time
	scratch   []float32

	lastWarnNS atomic.Int64
}

// NewOutputStream wraps a driver. A nil logger disables logging.
func NewOutputStream(driver OutputDriver, log slog.Logger) *OutputStream {
	if log == nil {
		log = slog.Disabled
	}
	return &OutputStream{
		log:       log,
		driver:    driver,
		producers: make(map[uint64]Producer),
		startTime: time.Now(),
	}
}

// Start brings the device up. It is idempotent; only the first call starts
// the driver.
func (s *OutputStream) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	// The driver may deliver the sample spec synchronously from Start, and
	// onSpec takes the mutex, so Start runs unlocked.
	if err := s.driver.Start(s.onSpec, s.MixInto); err != nil {
		s.log.Warnf("output device failed to start: %v", err)
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	}
	s.log.Infof("output device started")
	return nil
}

// Stop tears the device down. Producers stay registered; a later Start
// resumes mixing them.
func (s *OutputStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	return s.driver.Stop()
}

// SetVolume adjusts the device output gain.
func (s *OutputStream) SetVolume(volume float64) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrDeviceUnavailable
	}
	return s.driver.SetVolume(volume)
}

func (s *OutputStream) onSpec(spec SampleSpec) {
	s.sampleRate.Store(uint32(spec.SampleRate))
	s.channelCount.Store(uint32(spec.ChannelCount))
	s.log.Infof("output device format: %d Hz, %d channels", spec.SampleRate, spec.ChannelCount)

	s.mu.Lock()
	callbacks := s.whenReady
	s.whenReady = nil
	s.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

// SampleSpec reports the negotiated device format, or ok=false while the
// driver has not selected one yet.
func (s *OutputStream) SampleSpec() (SampleSpec, bool) {
	rate := s.sampleRate.Load()
	channels := s.channelCount.Load()
	if rate == 0 || channels == 0 {
		return SampleSpec{}, false
	}
	return SampleSpec{SampleRate: int(rate), ChannelCount: int(channels)}, true
}

// WhenReady invokes the callback once the device format is known, either
// immediately or from the sample-spec notification.
func (s *OutputStream) WhenReady(callback func()) {
	if _, ok := s.SampleSpec(); ok {
		callback()
		return
	}
	s.mu.Lock()
	s.whenReady = append(s.whenReady, callback)
	s.mu.Unlock()
}

// DevicePlayedFrames reports the total frames handed to the device so far.
func (s *OutputStream) DevicePlayedFrames() uint64 {
	return s.playedFrames.Load()
}

// RegisterProducer adds a producer and republishes the snapshot. The
// producer's played-frame base is the device position at registration.
func (s *OutputStream) RegisterProducer(id uint64, ring *shm.Ring, timing *shm.TimingPage, bytesPerFrame int) {
	base := s.DevicePlayedFrames()

	s.mu.Lock()
	if _, exists := s.producers[id]; !exists {
		s.order = append(s.order, id)
	}
	s.producers[id] = Producer{
		ID:                    id,
		Ring:                  ring,
		Timing:                timing,
		BytesPerFrame:         bytesPerFrame,
		DevicePlayedFrameBase: base,
	}
	s.mu.Unlock()

	s.republishSnapshot()
}

// UnregisterProducer removes a producer and republishes the snapshot.
func (s *OutputStream) UnregisterProducer(id uint64) {
	s.mu.Lock()
	if _, exists := s.producers[id]; exists {
		delete(s.producers, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	s.republishSnapshot()
}

// SetProducerMuted toggles a producer's mute flag and republishes.
func (s *OutputStream) SetProducerMuted(id uint64, muted bool) {
	s.mu.Lock()
	p, exists := s.producers[id]
	if exists {
		p.Muted = muted
		s.producers[id] = p
	}
	s.mu.Unlock()
	if exists {
		s.republishSnapshot()
	}
}

// republishSnapshot rebuilds the producer list and stores it while still
// holding the mutex: two concurrent mutations must not publish their
// snapshots out of order, or a stale list could win. The callback never
// takes the mutex, it only Loads.
func (s *OutputStream) republishSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		s.snapshot.Store(nil)
		return
	}
	producers := make([]Producer, 0, len(s.order))
	for _, id := range s.order {
		producers = append(producers, s.producers[id])
	}
	s.snapshot.Store(&Snapshot{Producers: producers})
}

// warnRateLimited logs at most once per second; the data callback must not
// flood the log on a persistently misbehaving producer.
func (s *OutputStream) warnRateLimited(format string, args ...interface{}) {
	now := time.Since(s.startTime).Nanoseconds()
	last := s.lastWarnNS.Load()
	if now-last < int64(time.Second) {
		return
	}
	if s.lastWarnNS.CompareAndSwap(last, now) {
		s.log.Warnf(format, args...)
	}
}

// MixInto is the data-request callback: it drains every producer ring into
// the interleaved output buffer, clamping the mixed sum to [-1, 1], and
// publishes per-producer timing. Always fills the whole buffer; missing
// producer data becomes silence. Lock-free and allocation-free apart from
// scratch growth on a format change.
func (s *OutputStream) MixInto(buf []float32) int {
	for i := range buf {
		buf[i] = 0
	}

	channels := int(s.channelCount.Load())
	if channels == 0 {
		return len(buf)
	}
	alignedSamples := (len(buf) / channels) * channels
	if alignedSamples == 0 {
		return len(buf)
	}
	aligned := buf[:alignedSamples]

	devicePlayed := s.playedFrames.Load()
	monotonicNS := uint64(time.Since(s.startTime).Nanoseconds())
	defer s.playedFrames.Store(devicePlayed + uint64(alignedSamples/channels))

	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return len(buf)
	}

	if len(s.scratch) < len(buf) {
		s.scratch = make([]float32, len(buf))
	}
	scratch := s.scratch[:alignedSamples]

	outBytes := shm.Float32Bytes(aligned)
	scratchBytes := shm.Float32Bytes(scratch)

	haveWritten := false
	for i := range snapshot.Producers {
		producer := &snapshot.Producers[i]
		if producer.BytesPerFrame == 0 || producer.Ring == nil {
			continue
		}

		if producer.Muted {
			// Muted producers are drained so their rings keep moving,
			// and they still get timing.
			bytesRead := producer.Ring.TryRead(scratchBytes)
			if bytesRead%producer.BytesPerFrame != 0 {
				s.warnRateLimited("muted producer %d ring returned misaligned read: %d bytes", producer.ID, bytesRead)
			}
			s.publishProducerTiming(producer, devicePlayed, monotonicNS, bytesRead, 0)
			continue
		}

		dst := scratchBytes
		if !haveWritten {
			dst = outBytes
		}

		bytesRead := producer.Ring.TryRead(dst)
		alignedRead := (bytesRead / producer.BytesPerFrame) * producer.BytesPerFrame
		if bytesRead != alignedRead {
			s.warnRateLimited("producer %d ring returned misaligned read: %d bytes (dropping tail)", producer.ID, bytesRead)
			bytesRead = alignedRead
		}
		for j := bytesRead; j < len(dst); j++ {
			dst[j] = 0
		}

		underruns := 0
		if bytesRead == 0 {
			underruns = 1
		}
		s.publishProducerTiming(producer, devicePlayed, monotonicNS, bytesRead, underruns)

		if !haveWritten {
			haveWritten = true
			continue
		}

		for j := range aligned {
			mixed := aligned[j] + scratch[j]
			if mixed > 1 {
				mixed = 1
			} else if mixed < -1 {
				mixed = -1
			}
			aligned[j] = mixed
		}
	}

	return len(buf)
}

func (s *OutputStream) publishProducerTiming(p *Producer, devicePlayed, monotonicNS uint64, bytesRead, underruns int) {
	if p.Timing == nil {
		return
	}
	readFrames := uint64(bytesRead / p.BytesPerFrame)
	var sessionPlayed uint64
	if devicePlayed > p.DevicePlayedFrameBase {
		sessionPlayed = devicePlayed - p.DevicePlayedFrameBase
	}
	p.Timing.Publish(sessionPlayed, monotonicNS, readFrames, uint64(underruns))
}
