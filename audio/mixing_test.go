// SPDX-License-Identifier: EPL-2.0

package audio

import "testing"

func constBus(channels, frames int, value float32) *Bus {
	bus := NewBus(channels, frames)
	for ch := 0; ch < channels; ch++ {
		out := bus.Channel(ch)
		for i := range out {
			out[i] = value
		}
	}
	return bus
}

func TestMixInto_SumsEqualChannelCounts(t *testing.T) {
	t.Parallel()

	a := constBus(2, 8, 0.25)
	b := constBus(2, 8, 0.5)
	dst := NewBus(2, 8)

	MixInto(dst, a, b)

	for ch := 0; ch < 2; ch++ {
		for i, v := range dst.Channel(ch) {
			if v != 0.75 {
				t.Fatalf("dst.Channel(%d)[%d] = %v, want 0.75", ch, i, v)
			}
		}
	}
}

func TestMixInto_MonoUpmixDuplicates(t *testing.T) {
	t.Parallel()

	mono := constBus(1, 8, 0.5)
	dst := NewBus(2, 8)
	dst.SetChannelCount(2)

	MixInto(dst, mono)

	for ch := 0; ch < 2; ch++ {
		for i, v := range dst.Channel(ch) {
			if v != 0.5 {
				t.Fatalf("dst.Channel(%d)[%d] = %v, want 0.5", ch, i, v)
			}
		}
	}
}

func TestMixInto_StereoDownmixAverages(t *testing.T) {
	t.Parallel()

	stereo := NewBus(2, 8)
	for i := range stereo.Channel(0) {
		stereo.Channel(0)[i] = 1.0
		stereo.Channel(1)[i] = 0.0
	}
	dst := NewBus(1, 8)

	MixInto(dst, stereo)

	for i, v := range dst.Channel(0) {
		if v != 0.5 {
			t.Fatalf("dst.Channel(0)[%d] = %v, want 0.5", i, v)
		}
	}
}

func TestMixInto_IgnoresSilentBuses(t *testing.T) {
	t.Parallel()

	silent := NewBus(2, 8)
	silent.SetChannelCount(0)
	loud := constBus(2, 8, 0.25)
	dst := NewBus(2, 8)

	MixInto(dst, silent, loud, nil)

	for ch := 0; ch < 2; ch++ {
		for i, v := range dst.Channel(ch) {
			if v != 0.25 {
				t.Fatalf("dst.Channel(%d)[%d] = %v, want 0.25", ch, i, v)
			}
		}
	}
}

func TestMaxChannelCount(t *testing.T) {
	t.Parallel()

	mono := constBus(1, 8, 0)
	stereo := constBus(2, 8, 0)
	empty := NewBus(2, 8)
	empty.SetChannelCount(0)

	if n := MaxChannelCount(mono, stereo, empty, nil); n != 2 {
		t.Errorf("MaxChannelCount() = %d, want 2", n)
	}
	if n := MaxChannelCount(); n != 0 {
		t.Errorf("MaxChannelCount() with no buses = %d, want 0", n)
	}
}
