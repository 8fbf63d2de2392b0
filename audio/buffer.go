// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"io"
	"sync"
)

// Buffer is immutable decoded PCM: planar float32 channels of uniform length
// at a fixed sample rate. Buffers back playback sources and convolver
// impulse responses and are shared by pointer between the control side and
// the render side; nothing mutates them after construction.
type Buffer struct {
	channels   [][]float32
	sampleRate int
}

// NewBuffer wraps planar channel data in a Buffer. All channels must have
// the same length and the sample rate must be positive.
func NewBuffer(channels [][]float32, sampleRate int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}
	for _, ch := range channels[1:] {
		if len(ch) != len(channels[0]) {
			return nil, ErrRaggedChannels
		}
	}

	return &Buffer{channels: channels, sampleRate: sampleRate}, nil
}

// NewBufferFromInterleaved deinterleaves frame-ordered samples into planar
// channels. len(samples) must be a multiple of channelCount; decoders hand
// their PCM straight to this.
func NewBufferFromInterleaved(samples []float32, channelCount, sampleRate int) (*Buffer, error) {
	if channelCount <= 0 {
		return nil, ErrNoChannels
	}
	if len(samples)%channelCount != 0 {
		return nil, ErrPartialFrame
	}

	frames := len(samples) / channelCount
	channels := make([][]float32, channelCount)
	for ch := range channels {
		channels[ch] = make([]float32, frames)
	}
	for i, s := range samples {
		channels[i%channelCount][i/channelCount] = s
	}

	return NewBuffer(channels, sampleRate)
}

func (b *Buffer) SampleRate() int   { return b.sampleRate }
func (b *Buffer) ChannelCount() int { return len(b.channels) }
func (b *Buffer) FrameCount() int   { return len(b.channels[0]) }

// Channel returns one channel's samples. Callers must not modify them.
func (b *Buffer) Channel(ch int) []float32 { return b.channels[ch] }

// Decoder constructs a Buffer from an encoded input stream.
type Decoder interface {
	Decode(r io.Reader) (*Buffer, error)
}

// Registry maps format keys (e.g. "wav", "mp3", "ogg vorbis") to decoders.
type Registry struct {
	codecs map[string]Decoder

	mtx *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]Decoder),
		mtx:    &sync.Mutex{},
	}
}

func (r *Registry) Register(format string, d Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.codecs[format] = d
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	d, ok := r.codecs[format]
	return d, ok
}
