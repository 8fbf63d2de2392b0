// SPDX-License-Identifier: EPL-2.0

package client

import (
	"errors"

	"github.com/halvard/rendermix/audio"
	"github.com/halvard/rendermix/render"
	"github.com/halvard/rendermix/shm"
)

var ErrNoTransport = errors.New("session has no ring transport")

// Session drives one render engine against one session transport. All
// methods run on the caller's goroutine; nothing here locks or blocks.
type Session struct {
	engine   *render.Engine
	ring     *shm.Ring
	timing   *shm.TimingPage
	channels int

	scratch []float32

	// droppedFrames counts frames lost to ring backpressure; the ring
	// being full is the mixer's way of pacing the renderer.
	droppedFrames uint64
}

// NewSession binds an engine to a transport. channelCount is the device
// layout the rendered bus is interleaved to.
func NewSession(engine *render.Engine, ring *shm.Ring, timing *shm.TimingPage, channelCount int) (*Session, error) {
	if ring == nil {
		return nil, ErrNoTransport
	}
	if channelCount < 1 {
		channelCount = 1
	}
	return &Session{
		engine:   engine,
		ring:     ring,
		timing:   timing,
		channels: channelCount,
		scratch:  make([]float32, render.QuantumFrames*channelCount),
	}, nil
}

// Engine exposes the underlying graph engine for description updates.
func (s *Session) Engine() *render.Engine { return s.engine }

// DroppedFrames reports frames lost to ring backpressure so far.
func (s *Session) DroppedFrames() uint64 { return s.droppedFrames }

// Timing reads the mixer's latest consistent timing publication. ok is false
// when no timing page is attached or the page could not be read stably.
func (s *Session) Timing() (shm.TimingSnapshot, bool) {
	if s.timing == nil {
		return shm.TimingSnapshot{}, false
	}
	return s.timing.Read()
}

// RenderQuantum renders one quantum, interleaves it to the device layout,
// and writes it to the ring. It returns the number of frames accepted; a
// short count means the ring was full and the remainder was dropped.
func (s *Session) RenderQuantum() int {
	bus := s.engine.RenderQuantum()
	interleave(s.scratch, bus, s.channels)

	// Never leave a partial frame in the ring: a write cut mid-frame would
	// skew every frame after it. Used only grows from our side, so the
	// computed free space is a safe lower bound.
	bytesPerFrame := s.channels * 4
	free := s.ring.Capacity() - s.ring.Used()
	limit := (free / bytesPerFrame) * bytesPerFrame

	data := shm.Float32Bytes(s.scratch)
	if limit < len(data) {
		data = data[:limit]
	}
	written := s.ring.TryWrite(data)

	acceptedFrames := written / bytesPerFrame
	dropped := render.QuantumFrames - acceptedFrames
	if dropped > 0 {
		s.droppedFrames += uint64(dropped)
	}
	return acceptedFrames
}

// RenderAhead renders quanta until the ring holds at least the given number
// of frames or backpressure stops accepting full quanta. It returns the
// number of quanta rendered. Used to prefill a session before the mixer
// starts draining.
func (s *Session) RenderAhead(frames int) int {
	bytesPerFrame := s.channels * 4
	quanta := 0
	for s.ring.Used()/bytesPerFrame < frames {
		if s.RenderQuantum() < render.QuantumFrames {
			break
		}
		quanta++
	}
	return quanta
}

// interleave packs a planar bus into an interleaved frame layout with the
// given channel count: mono duplicates across all output channels, missing
// channels repeat the last active one, extras are dropped. An empty bus
// interleaves to silence.
func interleave(dst []float32, bus *audio.Bus, channels int) {
	frames := bus.FrameCount()
	active := bus.ChannelCount()
	if active == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return
	}

	for ch := 0; ch < channels; ch++ {
		src := ch
		if src >= active {
			src = active - 1
		}
		in := bus.Channel(src)
		for f := 0; f < frames; f++ {
			dst[f*channels+ch] = in[f]
		}
	}
}
