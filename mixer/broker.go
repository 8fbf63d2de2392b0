// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"sync"

	"github.com/decred/slog"

	"github.com/halvard/rendermix/shm"
)

// SessionID identifies one broker session.
type SessionID uint64

// SessionTransport is everything the render side needs to feed a session:
// the ring to write rendered frames into and the timing page to read the
// mixer's progress from, plus the device format the frames must match.
type SessionTransport struct {
	ID           SessionID
	SampleRate   int
	ChannelCount int
	Ring         *shm.Ring
	Timing       *shm.TimingPage
}

type brokerSession struct {
	targetLatencyMS int
	transport       *SessionTransport
}

// Broker allocates sessions and their shared-memory transports against one
// output stream. Creation is two-phase: CreateSession reserves an ID and
// brings the device up; Finalize sizes and allocates the ring once the
// device format is known and registers the producer.
type Broker struct {
	log    slog.Logger
	stream *OutputStream

	mu       sync.Mutex
	nextID   SessionID
	sessions map[SessionID]*brokerSession
}

// NewBroker creates a broker over an output stream. A nil logger disables
// logging.
func NewBroker(stream *OutputStream, log slog.Logger) *Broker {
	if log == nil {
		log = slog.Disabled
	}
	return &Broker{
		log:      log,
		stream:   stream,
		sessions: make(map[SessionID]*brokerSession),
	}
}

// CreateSession reserves a session and starts the device if it is not
// running yet. A device start failure is logged but does not fail the
// session: Finalize reports the device state when the transport is actually
// needed.
func (b *Broker) CreateSession(targetLatencyMS int) SessionID {
	if err := b.stream.Start(); err != nil {
		b.log.Warnf("session create: device start failed: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.sessions[id] = &brokerSession{targetLatencyMS: targetLatencyMS}
	b.log.Debugf("session %d created (target latency %d ms)", id, targetLatencyMS)
	return id
}

// Finalize allocates the session's ring and timing page against the device
// format and registers it with the mixer. Allocation failures fail only this
// session; the stream keeps running.
func (b *Broker) Finalize(id SessionID) (*SessionTransport, error) {
	spec, ok := b.stream.SampleSpec()
	if !ok {
		return nil, ErrDeviceNotReady
	}

	b.mu.Lock()
	session, exists := b.sessions[id]
	b.mu.Unlock()
	if !exists {
		return nil, ErrSessionNotFound
	}
	if session.transport != nil {
		return nil, ErrSessionFinalized
	}

	capacity := shm.RingCapacityForLatency(spec.SampleRate, spec.ChannelCount, session.targetLatencyMS)
	ring, err := shm.NewRing(capacity)
	if err != nil {
		return nil, err
	}
	timing, err := shm.NewTimingPage()
	if err != nil {
		return nil, err
	}

	transport := &SessionTransport{
		ID:           id,
		SampleRate:   spec.SampleRate,
		ChannelCount: spec.ChannelCount,
		Ring:         ring,
		Timing:       timing,
	}

	b.mu.Lock()
	session.transport = transport
	b.mu.Unlock()

	bytesPerFrame := spec.ChannelCount * 4
	b.stream.RegisterProducer(uint64(id), ring, timing, bytesPerFrame)
	b.log.Debugf("session %d finalized: ring capacity %d, %d Hz, %d channels",
		id, capacity, spec.SampleRate, spec.ChannelCount)
	return transport, nil
}

// WhenReady defers the callback until the device format is known, so callers
// can chain Finalize without polling.
func (b *Broker) WhenReady(callback func()) {
	b.stream.WhenReady(callback)
}

// DestroySession unregisters the producer and forgets the session. The ring
// and timing regions stay mapped until every in-flight snapshot reader has
// dropped them; the garbage collector reclaims them.
func (b *Broker) DestroySession(id SessionID) error {
	b.mu.Lock()
	session, exists := b.sessions[id]
	if exists {
		delete(b.sessions, id)
	}
	b.mu.Unlock()
	if !exists {
		return ErrSessionNotFound
	}

	if session.transport != nil {
		b.stream.UnregisterProducer(uint64(id))
	}
	b.log.Debugf("session %d destroyed", id)
	return nil
}

// SetSessionMuted toggles a finalized session's producer mute flag.
func (b *Broker) SetSessionMuted(id SessionID, muted bool) error {
	b.mu.Lock()
	session, exists := b.sessions[id]
	b.mu.Unlock()
	if !exists {
		return ErrSessionNotFound
	}
	if session.transport == nil {
		return ErrDeviceNotReady
	}
	b.stream.SetProducerMuted(uint64(id), muted)
	return nil
}

// SetVolume adjusts the device gain; it fails gracefully when no device is
// running.
func (b *Broker) SetVolume(volume float64) error {
	return b.stream.SetVolume(volume)
}
