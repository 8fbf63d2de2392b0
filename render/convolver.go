// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"

	"github.com/madelynnblue/go-dsp/fft"

	"github.com/halvard/rendermix/audio"
)

// convolverMaxChannels bounds the impulse layout: 1 (mono), 2 (stereo), or 4
// (true stereo, two impulse pairs).
const convolverMaxChannels = 4

// ConvolverNode applies partitioned FFT convolution against a fixed impulse
// response. The impulse is split into quantum-sized partitions whose spectra
// are computed once; each quantum multiplies the input spectrum ring against
// them and overlap-adds the result, so cost per quantum is uniform no matter
// how long the impulse is.
type ConvolverNode struct {
	desc   ConvolverDescription
	output *audio.Bus

	impulse               [][]float32
	impulseLength         int
	impulseBufferChannels int

	partitionSize     int
	fftSize           int
	partitionCount    int
	impulsePartitions [][][]complex128

	// inputHistory keeps the last partitionCount input spectra per
	// convolution channel; writeIdx is the slot the current quantum's
	// spectrum lands in.
	inputHistory [][][]complex128
	overlapTail  [][]float32
	writeIdx     int

	accum []complex128
	block []float64

	lastOutputChannels int
	channelHoldFrames  int
	holdingChannels    bool
	tailFramesLeft     int
}

// NewConvolverNode builds a convolver for the given description and loads
// its impulse.
func NewConvolverNode(desc ConvolverDescription, quantum int) *ConvolverNode {
	n := &ConvolverNode{
		desc:   desc,
		output: audio.NewBus(convolverMaxChannels, quantum),
	}
	n.loadImpulse()
	return n
}

func (n *ConvolverNode) Output() *audio.Bus { return n.output }

func (n *ConvolverNode) ApplyDescription(desc NodeDescription) {
	d, ok := desc.(ConvolverDescription)
	if !ok {
		return
	}
	normalizeChanged := d.Normalize != n.desc.Normalize
	impulseChanged := d.Impulse != n.desc.Impulse
	n.desc = d

	if impulseChanged {
		n.loadImpulse()
		return
	}
	if normalizeChanged {
		// Reapply from the unscaled impulse so toggling never compounds
		// the gain.
		n.renormalizeImpulse()
		n.rebuildPartitions()
	}
}

// loadImpulse resets all convolution state and ingests the description's
// impulse buffer.
func (n *ConvolverNode) loadImpulse() {
	n.impulse = nil
	n.impulseLength = 0
	n.impulseBufferChannels = 0
	n.partitionSize = 0
	n.fftSize = 0
	n.partitionCount = 0
	n.impulsePartitions = nil
	n.inputHistory = nil
	n.overlapTail = nil
	n.writeIdx = 0
	n.channelHoldFrames = 0
	n.holdingChannels = false
	n.tailFramesLeft = 0

	buffer := n.desc.Impulse
	if buffer == nil {
		n.output.SetChannelCount(1)
		n.lastOutputChannels = 1
		return
	}

	channels := buffer.ChannelCount()
	if channels > convolverMaxChannels {
		channels = convolverMaxChannels
	}
	n.impulseBufferChannels = channels
	n.impulseLength = buffer.FrameCount()

	n.impulse = make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		n.impulse[ch] = make([]float32, n.impulseLength)
		copy(n.impulse[ch], buffer.Channel(ch))
	}

	n.renormalizeImpulse()
	n.rebuildPartitions()

	outputChannels := len(n.impulse)
	if outputChannels < 1 {
		outputChannels = 1
	}
	if outputChannels > n.output.ChannelCapacity() {
		outputChannels = n.output.ChannelCapacity()
	}
	n.output.SetChannelCount(outputChannels)
	n.lastOutputChannels = n.output.ChannelCount()
}

// normalizationGain scales the impulse to unit energy, measured over the
// buffer's own channels.
func normalizationGain(impulse [][]float32, channelCount int) float32 {
	energy := 0.0
	if channelCount > len(impulse) {
		channelCount = len(impulse)
	}
	for ch := 0; ch < channelCount; ch++ {
		for _, s := range impulse[ch] {
			energy += float64(s) * float64(s)
		}
	}
	if energy <= 0 || math.IsNaN(energy) || math.IsInf(energy, 0) {
		return 1
	}
	gain := 1 / math.Sqrt(energy)
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		return 1
	}
	return float32(gain)
}

func (n *ConvolverNode) renormalizeImpulse() {
	if len(n.impulse) == 0 || n.impulseLength == 0 {
		return
	}

	// Reload the unscaled samples before applying the current gain.
	if buffer := n.desc.Impulse; buffer != nil {
		channels := buffer.ChannelCount()
		if channels > len(n.impulse) {
			channels = len(n.impulse)
		}
		length := buffer.FrameCount()
		if length > n.impulseLength {
			length = n.impulseLength
		}
		for ch := 0; ch < channels; ch++ {
			dest := n.impulse[ch]
			copy(dest[:length], buffer.Channel(ch)[:length])
			for i := length; i < len(dest); i++ {
				dest[i] = 0
			}
		}
	}

	gain := float32(1)
	if n.desc.Normalize {
		considered := n.impulseBufferChannels
		if considered < 1 {
			considered = 1
		}
		gain = normalizationGain(n.impulse, considered)
	}
	if gain != 1 {
		for _, channel := range n.impulse {
			for i := range channel {
				channel[i] *= gain
			}
		}
	}

	// A mono buffer expanded for stereo output keeps its duplicates in
	// lockstep.
	if n.impulseBufferChannels == 1 && len(n.impulse) > 1 {
		for ch := 1; ch < len(n.impulse); ch++ {
			copy(n.impulse[ch], n.impulse[0])
		}
	}
}

// ensureImpulseChannels grows the impulse channel set by duplicating channel
// zero, preserving the input spectrum history when the partition layout is
// unchanged so the running tail is not cut.
func (n *ConvolverNode) ensureImpulseChannels(channels int) {
	if channels <= len(n.impulse) {
		return
	}

	oldHistory := n.inputHistory
	oldOverlap := n.overlapTail
	oldPartitionCount := n.partitionCount
	oldFFTSize := n.fftSize
	oldWriteIdx := n.writeIdx

	target := channels
	if target > convolverMaxChannels {
		target = convolverMaxChannels
	}
	existing := len(n.impulse)
	for ch := existing; ch < target; ch++ {
		dup := make([]float32, n.impulseLength)
		if existing > 0 {
			copy(dup, n.impulse[0])
		}
		n.impulse = append(n.impulse, dup)
	}

	n.rebuildPartitions()

	if oldPartitionCount == n.partitionCount && oldFFTSize == n.fftSize {
		if len(oldHistory) > 0 && len(n.inputHistory) > 0 {
			copyChannels := len(oldHistory)
			if copyChannels > len(n.inputHistory) {
				copyChannels = len(n.inputHistory)
			}
			for ch := 0; ch < copyChannels; ch++ {
				for part := 0; part < n.partitionCount; part++ {
					n.inputHistory[ch][part] = oldHistory[ch][part]
				}
			}
			n.writeIdx = oldWriteIdx
		}
		if len(oldOverlap) > 0 && len(n.overlapTail) > 0 {
			n.overlapTail[0] = oldOverlap[0]
		}
	}
}

func (n *ConvolverNode) rebuildPartitions() {
	if n.impulseLength == 0 || len(n.impulse) == 0 {
		return
	}

	n.partitionSize = n.output.FrameCount()
	n.fftSize = n.partitionSize * 2
	n.partitionCount = (n.impulseLength + n.partitionSize - 1) / n.partitionSize
	if n.partitionCount == 0 {
		n.partitionCount = 1
	}

	n.block = make([]float64, n.fftSize)

	n.impulsePartitions = make([][][]complex128, len(n.impulse))
	for ch := range n.impulse {
		n.impulsePartitions[ch] = make([][]complex128, n.partitionCount)
		for part := 0; part < n.partitionCount; part++ {
			for i := range n.block {
				n.block[i] = 0
			}
			base := part * n.partitionSize
			for i := 0; i < n.partitionSize; i++ {
				idx := base + i
				if idx >= n.impulseLength {
					break
				}
				n.block[i] = float64(n.impulse[ch][idx])
			}
			n.impulsePartitions[ch][part] = fft.FFTReal(n.block)
		}
	}

	n.inputHistory = make([][][]complex128, 2)
	for ch := range n.inputHistory {
		n.inputHistory[ch] = make([][]complex128, n.partitionCount)
		for part := 0; part < n.partitionCount; part++ {
			n.inputHistory[ch][part] = make([]complex128, n.fftSize)
		}
	}

	n.overlapTail = make([][]float32, 2)
	for ch := range n.overlapTail {
		n.overlapTail[ch] = make([]float32, n.partitionSize)
	}

	n.accum = make([]complex128, n.fftSize)
	n.writeIdx = 0
	n.channelHoldFrames = 0
	n.holdingChannels = false
}

func (n *ConvolverNode) Process(_ *Context, input *audio.Bus, _ []*audio.Bus) {
	n.output.Zero()

	if n.impulseLength == 0 || len(n.impulse) == 0 {
		return
	}

	inputChannels := 0
	if input != nil {
		inputChannels = input.ChannelCount()
	}
	hasInput := inputChannels > 0

	// Tail time: once the input disconnects, the reverberation keeps
	// ringing for the impulse's length before the node goes silent.
	if hasInput {
		n.tailFramesLeft = n.impulseLength
	} else if n.tailFramesLeft == 0 {
		n.output.SetChannelCount(0)
		n.lastOutputChannels = 0
		return
	}

	outputChannels := n.lastOutputChannels
	if hasInput {
		// The output is mono only when both the input and the impulse
		// buffer are mono.
		monoImpulse := n.impulseBufferChannels == 1
		monoInput := inputChannels == 1
		if monoImpulse && monoInput {
			outputChannels = 1
		} else {
			outputChannels = 2
		}
	}
	if outputChannels == 0 {
		outputChannels = 1
	}

	if hasInput && n.impulseBufferChannels == 1 {
		if outputChannels == 2 {
			n.channelHoldFrames = 0
			n.holdingChannels = false
		} else if n.lastOutputChannels == 2 && !n.holdingChannels {
			// A stereo-to-mono input drop keeps the output stereo for
			// exactly impulseLength further frames, so the earlier
			// stereo material decays out of the tail first. The hold
			// arms once per drop; it must not refresh while counting
			// down.
			n.channelHoldFrames = n.impulseLength
			n.holdingChannels = true
		}

		if n.channelHoldFrames > 0 {
			outputChannels = 2
			frames := n.output.FrameCount()
			if n.channelHoldFrames > frames {
				n.channelHoldFrames -= frames
			} else {
				n.channelHoldFrames = 0
			}
		} else {
			n.holdingChannels = false
		}
	}

	n.ensureImpulseChannels(outputChannels)
	n.output.SetChannelCount(outputChannels)

	// Speaker up-mixing duplicates mono into both channels, so the FFT
	// history and overlap copy over to keep the running tail consistent
	// with the new layout.
	if n.lastOutputChannels == 1 && outputChannels == 2 && n.desc.Interpretation == Speakers {
		if len(n.inputHistory) >= 2 {
			for part := 0; part < n.partitionCount; part++ {
				copy(n.inputHistory[1][part], n.inputHistory[0][part])
			}
		}
		if len(n.overlapTail) >= 2 {
			copy(n.overlapTail[1], n.overlapTail[0])
		}
	}

	n.lastOutputChannels = outputChannels

	if n.partitionSize != n.output.FrameCount() {
		n.rebuildPartitions()
	}
	if n.partitionCount == 0 || n.fftSize == 0 || n.partitionSize == 0 {
		return
	}

	convolutionChannels := 1
	if outputChannels == 2 {
		convolutionChannels = 2
	}
	historyChannels := convolutionChannels
	if historyChannels > len(n.inputHistory) {
		historyChannels = len(n.inputHistory)
	}

	for ch := 0; ch < historyChannels; ch++ {
		for i := range n.block {
			n.block[i] = 0
		}
		if hasInput {
			// Discrete interpretation fills new channels with silence
			// instead of duplicating the mono input.
			monoToStereoDiscrete := inputChannels == 1 && outputChannels == 2 && n.desc.Interpretation == Discrete
			if !monoToStereoDiscrete || ch == 0 {
				source := 0
				if inputChannels > 1 {
					source = ch
					if source > inputChannels-1 {
						source = inputChannels - 1
					}
				}
				channel := input.Channel(source)
				for i := 0; i < n.partitionSize; i++ {
					n.block[i] = float64(channel[i])
				}
			}
		}
		n.inputHistory[ch][n.writeIdx] = fft.FFTReal(n.block)
	}

	accumulate := func(impulseChannel, inputChannel int) {
		if impulseChannel >= len(n.impulsePartitions) || inputChannel >= len(n.inputHistory) {
			return
		}
		for part := 0; part < n.partitionCount; part++ {
			inputIdx := (n.writeIdx + n.partitionCount - part) % n.partitionCount
			inputBlock := n.inputHistory[inputChannel][inputIdx]
			impulseBlock := n.impulsePartitions[impulseChannel][part]
			for i := 0; i < n.fftSize; i++ {
				n.accum[i] += inputBlock[i] * impulseBlock[i]
			}
		}
	}

	for ch := 0; ch < outputChannels; ch++ {
		for i := range n.accum {
			n.accum[i] = 0
		}

		if len(n.impulsePartitions) >= 4 && outputChannels == 2 {
			// True stereo: a four-channel impulse carries one stereo
			// pair per input channel.
			accumulate(ch, 0)
			accumulate(ch+2, 1)
		} else {
			inputChannel := ch
			if inputChannel >= historyChannels {
				inputChannel = historyChannels - 1
				if inputChannel < 0 {
					inputChannel = 0
				}
			}
			accumulate(ch, inputChannel)
		}

		for i, v := range n.accum {
			re, im := real(v), imag(v)
			if math.IsNaN(re) || math.IsInf(re, 0) {
				re = 0
			}
			if math.IsNaN(im) || math.IsInf(im, 0) {
				im = 0
			}
			n.accum[i] = complex(re, im)
		}

		timeDomain := fft.IFFT(n.accum)

		overlap := n.overlapTail[ch]
		out := n.output.Channel(ch)
		for i := 0; i < n.partitionSize; i++ {
			overlapSample := overlap[i]
			if isNonFinite32(overlapSample) {
				overlapSample = 0
			}
			value := float32(real(timeDomain[i]))
			if isNonFinite32(value) {
				value = 0
			}
			value += overlapSample
			if isNonFinite32(value) {
				value = 0
			}
			out[i] = value

			tail := float32(real(timeDomain[i+n.partitionSize]))
			if isNonFinite32(tail) {
				tail = 0
			}
			overlap[i] = tail
		}
	}

	n.writeIdx = (n.writeIdx + 1) % n.partitionCount

	if !hasInput && n.tailFramesLeft > 0 {
		frames := n.output.FrameCount()
		if n.tailFramesLeft > frames {
			n.tailFramesLeft -= frames
		} else {
			n.tailFramesLeft = 0
		}
	}
}

func isNonFinite32(v float32) bool {
	f := float64(v)
	return math.IsNaN(f) || math.IsInf(f, 0)
}
