// SPDX-License-Identifier: EPL-2.0

package audio

// MixInto zeroes dst and sums every source into it. The caller chooses dst's
// active channel count beforehand (normally the widest source channel
// count); sources are up- or down-mixed to fit:
//
//   - equal counts: plain per-channel sum
//   - mono source into a wider bus: the mono channel feeds every output
//   - wider source into a mono bus: the source channels are averaged
//   - otherwise: channel indexes clamp to the source's last channel
//
// Sources with a zero channel count contribute nothing. Frame lengths must
// match dst's.
func MixInto(dst *Bus, srcs ...*Bus) {
	dst.Zero()
	for _, src := range srcs {
		if src == nil {
			continue
		}
		AccumulateInto(dst, src)
	}
}

// AccumulateInto adds src to dst without zeroing, using MixInto's channel
// rules.
func AccumulateInto(dst, src *Bus) {
	frames := dst.FrameCount()
	if src.FrameCount() < frames {
		frames = src.FrameCount()
	}

	sc := src.ChannelCount()
	dc := dst.ChannelCount()
	if sc == 0 || dc == 0 {
		return
	}

	switch {
	case sc == dc:
		for ch := 0; ch < dc; ch++ {
			out := dst.Channel(ch)
			in := src.Channel(ch)
			for i := 0; i < frames; i++ {
				out[i] += in[i]
			}
		}
	case sc == 1:
		in := src.Channel(0)
		for ch := 0; ch < dc; ch++ {
			out := dst.Channel(ch)
			for i := 0; i < frames; i++ {
				out[i] += in[i]
			}
		}
	case dc == 1:
		out := dst.Channel(0)
		gain := 1.0 / float32(sc)
		for ch := 0; ch < sc; ch++ {
			in := src.Channel(ch)
			for i := 0; i < frames; i++ {
				out[i] += in[i] * gain
			}
		}
	default:
		for ch := 0; ch < dc; ch++ {
			sch := ch
			if sch >= sc {
				sch = sc - 1
			}
			out := dst.Channel(ch)
			in := src.Channel(sch)
			for i := 0; i < frames; i++ {
				out[i] += in[i]
			}
		}
	}
}

// MaxChannelCount returns the widest active channel count among the buses.
func MaxChannelCount(srcs ...*Bus) int {
	maxCh := 0
	for _, src := range srcs {
		if src == nil {
			continue
		}
		if n := src.ChannelCount(); n > maxCh {
			maxCh = n
		}
	}
	return maxCh
}
