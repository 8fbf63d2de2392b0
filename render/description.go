// SPDX-License-Identifier: EPL-2.0

package render

import "github.com/halvard/rendermix/audio"

// NodeID identifies a node within one graph generation. IDs are assigned by
// the control layer and stay stable across incremental graph updates unless
// the node is explicitly removed.
type NodeID uint64

// ChannelInterpretation selects the up-mix rule applied when a node's input
// gains channels.
type ChannelInterpretation int

const (
	// Speakers duplicates mono into left and right on mono-to-stereo
	// transitions.
	Speakers ChannelInterpretation = iota
	// Discrete fills new channels with silence instead.
	Discrete
)

// AutomationRate distinguishes per-quantum from per-sample parameter
// evaluation.
type AutomationRate int

const (
	// KRate parameters are sampled once at the start of each quantum.
	KRate AutomationRate = iota
	// ARate parameters are evaluated per sample.
	ARate
)

// SegmentKind enumerates the automation curve shapes.
type SegmentKind int

const (
	SegmentConstant SegmentKind = iota
	SegmentLinearRamp
	SegmentExponentialRamp
	SegmentTarget
)

// AutomationSegment is one piece of a parameter automation timeline. Times
// are in seconds of context time; EndFrame is the context frame at which the
// next segment takes over.
type AutomationSegment struct {
	Kind       SegmentKind
	StartTime  float64
	EndTime    float64
	EndFrame   uint64
	StartValue float32
	EndValue   float32

	// Target-kind fields.
	Target       float32
	TimeConstant float64
}

// ParamAutomation attaches an automation timeline to one parameter of one
// node.
type ParamAutomation struct {
	Destination NodeID
	ParamIndex  int
	Rate        AutomationRate
	Segments    []AutomationSegment

	InitialValue float32
	DefaultValue float32
	MinValue     float32
	MaxValue     float32
}

// Connection is one audio edge: the source node's output feeds the
// destination node's input. Nodes in this engine expose a single mixed
// input and a single output.
type Connection struct {
	Source      NodeID
	Destination NodeID
}

// ParamConnection routes a source node's output into a destination node's
// parameter, where it is down-mixed to mono and summed with the parameter's
// intrinsic value.
type ParamConnection struct {
	Source      NodeID
	Destination NodeID
	ParamIndex  int
}

// NodeDescription configures one node. The set of kinds is closed; the
// engine dispatches on the concrete type.
type NodeDescription interface {
	isNodeDescription()
}

// BufferSourceDescription configures a BufferSourceNode.
//
// StartFrame/StopFrame are context frames. StartTime, when set, is the exact
// (fractional) start position in context frames and takes precedence over
// StartFrame for playhead math. OffsetFrame, DurationFrames, and the loop
// points are in buffer sample frames.
type BufferSourceDescription struct {
	Buffer *audio.Buffer

	PlaybackRate float64
	DetuneCents  float64

	StartFrame     *uint64
	StartTime      *float64
	StopFrame      *uint64
	OffsetFrame    uint64
	DurationFrames *uint64

	Loop           bool
	LoopStartFrame uint64
	LoopEndFrame   uint64
}

func (BufferSourceDescription) isNodeDescription() {}

// Parameter indices of BufferSourceNode.
const (
	BufferSourceParamPlaybackRate = iota
	BufferSourceParamDetune
	bufferSourceParamCount
)

// ConvolverDescription configures a ConvolverNode.
type ConvolverDescription struct {
	Impulse *audio.Buffer

	// Normalize scales the impulse to unit energy on load. Toggling it
	// reloads the unscaled impulse and reapplies, never compounding.
	Normalize bool

	Interpretation ChannelInterpretation
}

func (ConvolverDescription) isNodeDescription() {}

// DestinationDescription configures the graph's destination node, a
// pass-through that exposes the mixed program material for the quantum.
type DestinationDescription struct {
	ChannelCount int
}

func (DestinationDescription) isNodeDescription() {}

// GraphDescription is the decoded form of a render graph handed over by the
// control layer. The engine owns nodes by ID; edges are ID pairs; no node
// holds a reference to another.
type GraphDescription struct {
	Nodes            map[NodeID]NodeDescription
	Connections      []Connection
	ParamConnections []ParamConnection
	Automations      []ParamAutomation
	DestinationID    NodeID
}

func paramCountFor(desc NodeDescription) int {
	switch desc.(type) {
	case BufferSourceDescription:
		return bufferSourceParamCount
	default:
		return 0
	}
}
