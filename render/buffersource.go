// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"

	"github.com/halvard/rendermix/audio"
)

// Playhead positions within this distance of an integer sample index snap to
// it, so playback at rate 1 reproduces buffer samples bit-exactly.
const playheadSnapEpsilon = 1e-9

// BufferSourceNode plays back an immutable buffer with sample-accurate
// scheduling: start/stop/offset/duration, optional looping, and k-rate
// playback-rate/detune resampling. The playhead is a continuous position in
// buffer sample frames; it persists across quanta and resets only on
// (re)start.
type BufferSourceNode struct {
	desc BufferSourceDescription

	output *audio.Bus
	kernel sincKernel

	playing  bool
	finished bool

	// playhead is the fractional position in buffer sample frames;
	// progress accumulates consumed buffer frames regardless of playback
	// direction, for the duration budget.
	playhead float64
	progress float64

	lastKernelIncrement float64
	hasKernelIncrement  bool
}

// NewBufferSourceNode builds a source node for the given description.
func NewBufferSourceNode(desc BufferSourceDescription, quantum int) *BufferSourceNode {
	channels := 1
	if desc.Buffer != nil {
		channels = desc.Buffer.ChannelCount()
	}

	n := &BufferSourceNode{
		desc:   desc,
		output: audio.NewBus(channels, quantum),
	}
	// Build the coefficient table off the steady render path.
	n.kernel.prepare(1)
	return n
}

func (n *BufferSourceNode) Output() *audio.Bus { return n.output }

// Finished reports whether the node has played out its scheduled range.
func (n *BufferSourceNode) Finished() bool { return n.finished }

func (n *BufferSourceNode) ApplyDescription(desc NodeDescription) {
	d, ok := desc.(BufferSourceDescription)
	if !ok {
		return
	}

	rebuild := false
	if (d.Buffer == nil) != (n.desc.Buffer == nil) {
		rebuild = true
	} else if d.Buffer != nil && d.Buffer.ChannelCount() != n.desc.Buffer.ChannelCount() {
		rebuild = true
	}
	n.desc = d
	if rebuild {
		channels := 1
		if d.Buffer != nil {
			channels = d.Buffer.ChannelCount()
		}
		n.output = audio.NewBus(channels, n.output.FrameCount())
	}

	// Unscheduling resets playback state; a scheduled node keeps its
	// playhead across parameter updates.
	if d.StartFrame == nil {
		n.playing = false
		n.finished = false
		n.playhead = 0
		n.progress = 0
	}
}

// kRateParam reads a parameter's per-quantum value from its computed bus,
// falling back to the description's intrinsic value.
func kRateParam(params []*audio.Bus, index int, intrinsic float64) float64 {
	if index < len(params) && params[index] != nil && params[index].ChannelCount() > 0 {
		return sanitizeKRate(float64(params[index].Channel(0)[0]))
	}
	return sanitizeKRate(intrinsic)
}

func (n *BufferSourceNode) Process(ctx *Context, _ *audio.Bus, params []*audio.Bus) {
	n.output.Zero()
	n.output.SetChannelCount(0)
	if n.desc.StartFrame == nil || n.finished {
		return
	}

	buffer := n.desc.Buffer
	if buffer == nil || buffer.FrameCount() == 0 {
		return
	}

	// playbackRate and detune are k-rate: sampled once at quantum start.
	playbackRate := kRateParam(params, BufferSourceParamPlaybackRate, n.desc.PlaybackRate)
	detuneCents := kRateParam(params, BufferSourceParamDetune, n.desc.DetuneCents)

	bufferToContextRatio := float64(buffer.SampleRate()) / float64(ctx.SampleRate)
	increment := bufferToContextRatio * playbackRate * math.Exp2(detuneCents/1200)

	// Rebuild the resampler coefficients only when sample-rate conversion
	// is in play and the effective increment actually moved.
	if bufferToContextRatio != 1 {
		if !n.hasKernelIncrement || math.Abs(n.lastKernelIncrement-increment) > 1e-12 {
			n.kernel.prepare(math.Abs(increment))
			n.lastKernelIncrement = increment
			n.hasKernelIncrement = true
		}
	}

	bufferLength := uint64(buffer.FrameCount())

	offset := n.desc.OffsetFrame
	if offset > bufferLength {
		offset = bufferLength
	}

	loopStart := n.desc.LoopStartFrame
	if loopStart > bufferLength {
		loopStart = bufferLength
	}
	loopEnd := n.desc.LoopEndFrame
	if loopEnd == 0 || loopEnd > bufferLength {
		loopEnd = bufferLength
	}
	if loopEnd <= loopStart {
		loopStart = 0
		loopEnd = bufferLength
	}
	loopLength := loopEnd - loopStart

	frames := uint64(n.output.FrameCount())
	graphStart := ctx.CurrentFrame

	// The exact start time is used without rounding to sample frames;
	// when it lands within epsilon of a frame boundary, begin on that
	// frame, otherwise on the next one.
	startTime := float64(*n.desc.StartFrame)
	startFrame := *n.desc.StartFrame
	if n.desc.StartTime != nil {
		startTime = *n.desc.StartTime
		switch {
		case math.IsInf(startTime, 1) || math.IsNaN(startTime):
			startFrame = math.MaxUint64
		case startTime <= 0:
			startFrame = 0
			startTime = math.Max(startTime, 0)
		default:
			nearest := math.Round(startTime)
			if math.Abs(startTime-nearest) <= playheadSnapEpsilon {
				startTime = nearest
				startFrame = uint64(nearest)
			} else {
				startFrame = uint64(math.Ceil(startTime))
			}
		}
	}

	// Stop takes precedence over start within the same quantum.
	if n.desc.StopFrame != nil && graphStart >= *n.desc.StopFrame {
		n.finished = true
		return
	}

	// A start point entirely after this quantum renders pure silence and
	// leaves all persistent state untouched.
	quantumRenderStart := uint64(0)
	if !n.playing {
		if graphStart+frames <= startFrame {
			return
		}
		if graphStart < startFrame {
			quantumRenderStart = startFrame - graphStart
		}
	}

	quantumRenderEnd := frames
	if n.desc.StopFrame != nil && graphStart+frames > *n.desc.StopFrame {
		quantumRenderEnd = *n.desc.StopFrame - graphStart
	}
	if quantumRenderStart >= quantumRenderEnd {
		return
	}

	channels := buffer.ChannelCount()
	if channels > n.output.ChannelCapacity() {
		channels = n.output.ChannelCapacity()
	}
	n.output.SetChannelCount(channels)

	// The duration budget is in buffer sample frames; for non-looping
	// playback it can never exceed the material after the offset.
	var duration *uint64
	if n.desc.DurationFrames != nil {
		d := *n.desc.DurationFrames
		if !n.desc.Loop {
			maxDuration := uint64(0)
			if bufferLength > offset {
				maxDuration = bufferLength - offset
			}
			if d > maxDuration {
				d = maxDuration
			}
		}
		duration = &d
	}

	loopActive := n.desc.Loop && loopLength > 0

	sampleFromChannel := func(channel []float32, playhead float64, index int64) float32 {
		// Treat the loop section as periodic only once the playhead is
		// inside the loop region.
		if loopActive && playhead >= float64(loopStart) && playhead < float64(loopEnd) {
			start := int64(loopStart)
			length := int64(loopLength)
			rel := (index - start) % length
			if rel < 0 {
				rel += length
			}
			index = start + rel
		}

		// Out-of-range indices extrapolate the endpoint slope linearly
		// instead of reading zeros, which would smear edge artifacts
		// into the resampling kernel.
		if len(channel) == 0 {
			return 0
		}
		if len(channel) == 1 {
			return channel[0]
		}
		if index < 0 {
			slope := channel[1] - channel[0]
			return channel[0] + float32(index)*slope
		}
		if index >= int64(len(channel)) {
			last := len(channel) - 1
			slope := channel[last] - channel[last-1]
			return channel[last] + float32(index-int64(last))*slope
		}
		return channel[index]
	}

	wrapPlayhead := func(playhead float64) float64 {
		if !loopActive {
			return playhead
		}
		// Wrap only when the playhead has crossed a loop boundary in its
		// direction of travel.
		if increment > 0 && playhead >= float64(loopEnd) || increment < 0 && playhead < float64(loopStart) {
			start := float64(loopStart)
			rel := math.Mod(playhead-start, float64(loopLength))
			if rel < 0 {
				rel += float64(loopLength)
			}
			return start + rel
		}
		return playhead
	}

	shouldStop := func() bool {
		if duration != nil {
			return n.progress >= float64(*duration)
		}
		if loopActive {
			return false
		}
		if increment >= 0 {
			return n.playhead+playheadSnapEpsilon >= float64(bufferLength)
		}
		return n.playhead <= -playheadSnapEpsilon
	}

	for out := quantumRenderStart; out < quantumRenderEnd; out++ {
		graphFrame := graphStart + out

		if !n.playing {
			if graphFrame < startFrame {
				continue
			}
			n.playing = true
			n.finished = false
			n.progress = 0

			// When rendering begins after the start time, advance the
			// playhead by the elapsed context frames at the current
			// increment.
			elapsed := float64(graphFrame) - startTime
			n.playhead = wrapPlayhead(float64(offset) + elapsed*increment)
		}

		if shouldStop() {
			n.finished = true
			break
		}

		playhead := n.playhead
		baseIndex := math.Floor(playhead)
		frac := playhead - baseIndex

		// A playhead effectively on an integer sample frame returns that
		// exact sample: ideal reconstruction is lossless there, and the
		// windowed kernel would add microscopic drift.
		snapped := frac < playheadSnapEpsilon || 1-frac < playheadSnapEpsilon
		snappedIndex := int64(baseIndex)
		if 1-frac < playheadSnapEpsilon {
			snappedIndex++
		}

		for ch := 0; ch < channels; ch++ {
			src := buffer.Channel(ch)

			switch {
			case snapped:
				n.output.Channel(ch)[out] = sampleFromChannel(src, playhead, snappedIndex)
			case bufferToContextRatio == 1:
				// Equal rates: sub-sample offsets interpolate linearly
				// between adjacent frames.
				s0 := float64(sampleFromChannel(src, playhead, int64(baseIndex)))
				s1 := float64(sampleFromChannel(src, playhead, int64(baseIndex)+1))
				n.output.Channel(ch)[out] = float32(s0 + (s1-s0)*frac)
			default:
				n.output.Channel(ch)[out] = n.kernel.interpolateAt(playhead, func(index int64) float32 {
					return sampleFromChannel(src, playhead, index)
				})
			}
		}

		n.playhead = wrapPlayhead(n.playhead + increment)
		n.progress += math.Abs(increment)
	}
}
