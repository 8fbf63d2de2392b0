// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"

	"github.com/halvard/rendermix/audio"
)

// QuantumFrames is the fixed number of sample frames processed per render
// step.
const QuantumFrames = 128

// Context carries the per-engine state every node reads while processing.
type Context struct {
	SampleRate   int
	QuantumSize  int
	CurrentFrame uint64
}

// Node is the contract every render node satisfies. Process consumes the
// already fan-in-mixed input bus (nil when nothing is connected) and the
// computed parameter buses, and leaves the result in the node's output bus.
// A node owns only its private DSP state; the engine owns the graph.
type Node interface {
	Process(ctx *Context, input *audio.Bus, params []*audio.Bus)

	// Output returns the node's output bus for the current quantum. A
	// channel count of zero means the node produced no signal.
	Output() *audio.Bus

	// ApplyDescription hot-swaps parameters between quanta. Structural
	// changes (a different buffer, a channel-count change) may rebuild
	// internal state; plain parameter changes must not allocate.
	ApplyDescription(desc NodeDescription)
}

// sanitizeKRate rounds a k-rate parameter value to 1e-6 precision so the
// rendered output is reproducible regardless of how the value was computed.
// Non-finite values sanitize to zero.
func sanitizeKRate(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	const scale = 1e6
	return math.Floor(v*scale+0.5) / scale
}

// destinationNode terminates the graph: it adopts whatever was mixed into
// its input, or renders silence at its configured channel count.
type destinationNode struct {
	output       *audio.Bus
	channelCount int
}

func newDestinationNode(desc DestinationDescription, quantum int) *destinationNode {
	channels := desc.ChannelCount
	if channels < 1 {
		channels = 2
	}
	return &destinationNode{
		output:       audio.NewBus(channels, quantum),
		channelCount: channels,
	}
}

func (n *destinationNode) Process(_ *Context, input *audio.Bus, _ []*audio.Bus) {
	if input == nil || input.ChannelCount() == 0 {
		n.output.Zero()
		n.output.SetChannelCount(n.channelCount)
		return
	}
	n.output.CopyFrom(input)
}

func (n *destinationNode) Output() *audio.Bus { return n.output }

func (n *destinationNode) ApplyDescription(desc NodeDescription) {
	d, ok := desc.(DestinationDescription)
	if !ok {
		return
	}
	if d.ChannelCount >= 1 && d.ChannelCount <= n.output.ChannelCapacity() {
		n.channelCount = d.ChannelCount
	}
}
