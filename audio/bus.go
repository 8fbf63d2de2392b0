// SPDX-License-Identifier: EPL-2.0

package audio

// Bus is a planar set of per-channel sample slices of a fixed frame length.
// The active channel count is mutable between quanta, up to the channel
// capacity fixed at construction; the backing storage is allocated once.
type Bus struct {
	channels     [][]float32
	channelCount int
	frames       int
}

// NewBus creates a bus with the given channel capacity and frame length.
// The active channel count starts at the full capacity.
func NewBus(channelCapacity, frames int) *Bus {
	if channelCapacity < 1 {
		channelCapacity = 1
	}
	if frames < 1 {
		frames = 1
	}

	backing := make([]float32, channelCapacity*frames)
	channels := make([][]float32, channelCapacity)
	for ch := range channels {
		channels[ch] = backing[ch*frames : (ch+1)*frames : (ch+1)*frames]
	}

	return &Bus{
		channels:     channels,
		channelCount: channelCapacity,
		frames:       frames,
	}
}

func (b *Bus) FrameCount() int      { return b.frames }
func (b *Bus) ChannelCapacity() int { return len(b.channels) }

// ChannelCount reports the number of active channels this quantum.
// A count of zero means the bus carries no signal at all.
func (b *Bus) ChannelCount() int { return b.channelCount }

// SetChannelCount changes the active channel count, clamped to [0, capacity].
func (b *Bus) SetChannelCount(n int) {
	if n < 0 {
		n = 0
	}
	if n > len(b.channels) {
		n = len(b.channels)
	}
	b.channelCount = n
}

// Channel returns the samples of one channel. The index must be within the
// channel capacity; callers iterate up to ChannelCount for active signal.
func (b *Bus) Channel(ch int) []float32 { return b.channels[ch] }

// Zero silences every channel up to the full capacity.
func (b *Bus) Zero() {
	for _, ch := range b.channels {
		for i := range ch {
			ch[i] = 0
		}
	}
}

// CopyFrom copies the active channels of src into b and adopts src's channel
// count (clamped to b's capacity). Frame lengths must match.
func (b *Bus) CopyFrom(src *Bus) {
	n := src.ChannelCount()
	if n > len(b.channels) {
		n = len(b.channels)
	}
	b.SetChannelCount(n)
	for ch := 0; ch < n; ch++ {
		copy(b.channels[ch], src.channels[ch])
	}
}
