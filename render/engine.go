// SPDX-License-Identifier: EPL-2.0

package render

import (
	"fmt"
	"math"

	"github.com/halvard/rendermix/audio"
)

// Engine evaluates one render graph, one quantum at a time. It owns the node
// set, the topological processing order, and the fan-in mix and parameter
// buses, so the per-quantum path allocates nothing.
type Engine struct {
	ctx  Context
	desc GraphDescription

	order []NodeID
	nodes map[NodeID]Node
	state map[NodeID]*nodeState
}

// nodeState is the engine-side bookkeeping for one node: its fan-in sources,
// the pre-allocated mixed input bus, and the computed parameter buses.
type nodeState struct {
	node    Node
	sources []Node
	input   *audio.Bus
	fanIn   []*audio.Bus
	params  []*audio.Bus

	automations  []*ParamAutomation
	paramSources [][]Node
	intrinsics   []float64
}

// NewEngine validates and instantiates the graph. The node set is ordered
// topologically; a cycle or a missing destination is rejected.
func NewEngine(desc GraphDescription, sampleRate int) (*Engine, error) {
	if _, ok := desc.Nodes[desc.DestinationID]; !ok {
		return nil, ErrNoDestination
	}

	e := &Engine{
		ctx: Context{
			SampleRate:  sampleRate,
			QuantumSize: QuantumFrames,
		},
	}
	if err := e.build(desc); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(desc GraphDescription) error {
	order, err := topologicalOrder(desc)
	if err != nil {
		return err
	}

	nodes := make(map[NodeID]Node, len(desc.Nodes))
	for id, nd := range desc.Nodes {
		node, err := newNode(nd, QuantumFrames)
		if err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
		nodes[id] = node
	}

	state := make(map[NodeID]*nodeState, len(nodes))
	for id, node := range nodes {
		state[id] = &nodeState{node: node}
	}

	for _, c := range desc.Connections {
		src, ok := nodes[c.Source]
		if !ok {
			continue
		}
		dst, ok := state[c.Destination]
		if !ok {
			continue
		}
		dst.sources = append(dst.sources, src)
	}

	for id, nd := range desc.Nodes {
		st := state[id]
		count := paramCountFor(nd)
		if count == 0 {
			continue
		}
		st.params = make([]*audio.Bus, count)
		st.automations = make([]*ParamAutomation, count)
		st.paramSources = make([][]Node, count)
		st.intrinsics = make([]float64, count)
		for pi := 0; pi < count; pi++ {
			st.intrinsics[pi] = intrinsicParamValue(nd, pi)
		}
	}

	for i := range desc.Automations {
		a := &desc.Automations[i]
		st, ok := state[a.Destination]
		if !ok || a.ParamIndex < 0 || a.ParamIndex >= len(st.automations) {
			continue
		}
		st.automations[a.ParamIndex] = a
	}

	for _, pc := range desc.ParamConnections {
		src, ok := nodes[pc.Source]
		if !ok {
			continue
		}
		st, ok := state[pc.Destination]
		if !ok || pc.ParamIndex < 0 || pc.ParamIndex >= len(st.paramSources) {
			continue
		}
		st.paramSources[pc.ParamIndex] = append(st.paramSources[pc.ParamIndex], src)
	}

	// Buses are allocated once per graph generation. Input buses size to
	// the widest possible fan-in; parameter buses are always mono.
	for _, st := range state {
		if len(st.sources) > 0 {
			capacity := 1
			for _, src := range st.sources {
				if c := src.Output().ChannelCapacity(); c > capacity {
					capacity = c
				}
			}
			st.input = audio.NewBus(capacity, QuantumFrames)
			st.fanIn = make([]*audio.Bus, len(st.sources))
		}
		for pi := range st.params {
			if st.automations[pi] != nil || len(st.paramSources[pi]) > 0 {
				st.params[pi] = audio.NewBus(1, QuantumFrames)
				st.params[pi].SetChannelCount(1)
			}
		}
	}

	e.desc = desc
	e.order = order
	e.nodes = nodes
	e.state = state
	return nil
}

func newNode(desc NodeDescription, quantum int) (Node, error) {
	switch d := desc.(type) {
	case BufferSourceDescription:
		return NewBufferSourceNode(d, quantum), nil
	case ConvolverDescription:
		return NewConvolverNode(d, quantum), nil
	case DestinationDescription:
		return newDestinationNode(d, quantum), nil
	default:
		return nil, ErrUnknownNodeKind
	}
}

// intrinsicParamValue is the parameter's value absent any automation, read
// from the node description.
func intrinsicParamValue(desc NodeDescription, index int) float64 {
	if d, ok := desc.(BufferSourceDescription); ok {
		switch index {
		case BufferSourceParamPlaybackRate:
			return d.PlaybackRate
		case BufferSourceParamDetune:
			return d.DetuneCents
		}
	}
	return 0
}

// topologicalOrder runs Kahn's algorithm over the union of audio and
// parameter edges. Parameter sources must render before their consumer reads
// them, so both edge kinds constrain the order.
func topologicalOrder(desc GraphDescription) ([]NodeID, error) {
	indegree := make(map[NodeID]int, len(desc.Nodes))
	adjacency := make(map[NodeID][]NodeID, len(desc.Nodes))
	for id := range desc.Nodes {
		indegree[id] = 0
	}

	addEdge := func(src, dst NodeID) {
		if _, ok := desc.Nodes[src]; !ok {
			return
		}
		if _, ok := desc.Nodes[dst]; !ok {
			return
		}
		adjacency[src] = append(adjacency[src], dst)
		indegree[dst]++
	}
	for _, c := range desc.Connections {
		addEdge(c.Source, c.Destination)
	}
	for _, pc := range desc.ParamConnections {
		addEdge(pc.Source, pc.Destination)
	}

	ready := make([]NodeID, 0, len(desc.Nodes))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]NodeID, 0, len(desc.Nodes))
	for len(ready) > 0 {
		// Pick the smallest ready ID so the order is deterministic
		// across runs with the same description.
		minIdx := 0
		for i := 1; i < len(ready); i++ {
			if ready[i] < ready[minIdx] {
				minIdx = i
			}
		}
		id := ready[minIdx]
		ready[minIdx] = ready[len(ready)-1]
		ready = ready[:len(ready)-1]

		order = append(order, id)
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(desc.Nodes) {
		return nil, ErrGraphCycle
	}
	return order, nil
}

// CurrentFrame reports the engine's position in context frames.
func (e *Engine) CurrentFrame() uint64 { return e.ctx.CurrentFrame }

// SampleRate reports the context sample rate in frames per second.
func (e *Engine) SampleRate() int { return e.ctx.SampleRate }

// Node returns the instantiated node for an ID, for callers that need to
// inspect node state between quanta.
func (e *Engine) Node(id NodeID) (Node, bool) {
	n, ok := e.nodes[id]
	return n, ok
}

// RenderQuantum evaluates every node once in topological order and returns
// the destination's output bus. The bus contents are valid until the next
// call. The engine's frame position advances by QuantumFrames.
func (e *Engine) RenderQuantum() *audio.Bus {
	for _, id := range e.order {
		st := e.state[id]

		input := st.input
		if input != nil {
			// Output bus pointers are re-read every quantum; a hot
			// parameter swap may have rebuilt a source's bus.
			for i, src := range st.sources {
				st.fanIn[i] = src.Output()
			}
			width := audio.MaxChannelCount(st.fanIn...)
			if width == 0 {
				input.SetChannelCount(0)
				input.Zero()
			} else {
				input.SetChannelCount(width)
				audio.MixInto(input, st.fanIn...)
			}
		}

		for pi, bus := range st.params {
			if bus == nil {
				continue
			}
			e.computeParam(st, pi, bus)
		}

		st.node.Process(&e.ctx, input, st.params)
	}

	e.ctx.CurrentFrame += uint64(e.ctx.QuantumSize)
	return e.nodes[e.desc.DestinationID].Output()
}

// computeParam fills a mono parameter bus for the quantum: the automation
// timeline value (or the intrinsic value when no timeline exists), plus the
// mono down-mix of every parameter input, with non-finite samples replaced
// by the default and the result clamped to the parameter's range. K-rate
// parameters flatten to their value at the first frame.
func (e *Engine) computeParam(st *nodeState, index int, bus *audio.Bus) {
	out := bus.Channel(0)
	a := st.automations[index]

	if a != nil && len(a.Segments) > 0 {
		t := float64(e.ctx.CurrentFrame) / float64(e.ctx.SampleRate)
		dt := 1 / float64(e.ctx.SampleRate)
		for i := range out {
			out[i] = evaluateTimeline(a, e.ctx.CurrentFrame+uint64(i), t)
			t += dt
		}
	} else {
		intrinsic := float32(st.intrinsics[index])
		if a != nil {
			intrinsic = a.InitialValue
		}
		for i := range out {
			out[i] = intrinsic
		}
	}

	for _, src := range st.paramSources[index] {
		srcOut := src.Output()
		sc := srcOut.ChannelCount()
		if sc == 0 {
			continue
		}
		// Parameter inputs are down-mixed to mono by averaging.
		gain := 1 / float32(sc)
		for ch := 0; ch < sc; ch++ {
			in := srcOut.Channel(ch)
			for i := range out {
				out[i] += in[i] * gain
			}
		}
	}

	defaultValue := float32(st.intrinsics[index])
	minValue := float32(math.Inf(-1))
	maxValue := float32(math.Inf(1))
	if a != nil {
		defaultValue = a.DefaultValue
		if a.MinValue != 0 || a.MaxValue != 0 {
			minValue, maxValue = a.MinValue, a.MaxValue
		}
	}
	for i, v := range out {
		v64 := float64(v)
		if math.IsNaN(v64) || math.IsInf(v64, 0) {
			v = defaultValue
		}
		if v < minValue {
			v = minValue
		}
		if v > maxValue {
			v = maxValue
		}
		out[i] = v
	}

	if a == nil || a.Rate == KRate {
		first := out[0]
		for i := range out {
			out[i] = first
		}
	}
}

// evaluateTimeline computes the automation value at one context frame. The
// active segment is the first whose EndFrame lies beyond the frame; past the
// timeline's end the final segment's end state holds (a target segment keeps
// converging).
func evaluateTimeline(a *ParamAutomation, frame uint64, t float64) float32 {
	segments := a.Segments
	if t < segments[0].StartTime {
		return a.InitialValue
	}

	idx := len(segments) - 1
	for i := range segments {
		if frame < segments[i].EndFrame {
			idx = i
			break
		}
	}
	seg := &segments[idx]

	if seg.Kind != SegmentTarget && frame >= seg.EndFrame {
		return seg.EndValue
	}

	switch seg.Kind {
	case SegmentConstant:
		return seg.StartValue
	case SegmentLinearRamp:
		span := seg.EndTime - seg.StartTime
		if span <= 0 {
			return seg.EndValue
		}
		progress := (t - seg.StartTime) / span
		return seg.StartValue + float32(progress)*(seg.EndValue-seg.StartValue)
	case SegmentExponentialRamp:
		span := seg.EndTime - seg.StartTime
		if span <= 0 || seg.StartValue == 0 || (seg.StartValue < 0) != (seg.EndValue < 0) {
			// An exponential ramp through zero or a sign change is
			// undefined; fall back to a linear ramp.
			if span <= 0 {
				return seg.EndValue
			}
			progress := (t - seg.StartTime) / span
			return seg.StartValue + float32(progress)*(seg.EndValue-seg.StartValue)
		}
		ratio := float64(seg.EndValue) / float64(seg.StartValue)
		progress := (t - seg.StartTime) / span
		return seg.StartValue * float32(math.Pow(ratio, progress))
	case SegmentTarget:
		if seg.TimeConstant <= 0 {
			return seg.Target
		}
		decay := math.Exp(-(t - seg.StartTime) / seg.TimeConstant)
		return seg.Target + (seg.StartValue-seg.Target)*float32(decay)
	default:
		return seg.StartValue
	}
}

// ApplyDescription carries a new graph description into the running engine.
// When the node set and every node's kind are unchanged, parameters are
// hot-swapped in place and DSP state survives; otherwise the graph is
// rebuilt from scratch and the frame position resets.
func (e *Engine) ApplyDescription(desc GraphDescription) error {
	if _, ok := desc.Nodes[desc.DestinationID]; !ok {
		return ErrNoDestination
	}

	if e.sameStructure(desc) {
		order, err := topologicalOrder(desc)
		if err != nil {
			return err
		}
		for id, nd := range desc.Nodes {
			e.nodes[id].ApplyDescription(nd)
			st := e.state[id]
			for pi := range st.intrinsics {
				st.intrinsics[pi] = intrinsicParamValue(nd, pi)
			}
			for i := range st.automations {
				st.automations[i] = nil
			}
		}
		for i := range desc.Automations {
			a := &desc.Automations[i]
			st, ok := e.state[a.Destination]
			if !ok || a.ParamIndex < 0 || a.ParamIndex >= len(st.automations) {
				continue
			}
			st.automations[a.ParamIndex] = a
			if st.params[a.ParamIndex] == nil {
				st.params[a.ParamIndex] = audio.NewBus(1, QuantumFrames)
				st.params[a.ParamIndex].SetChannelCount(1)
			}
		}
		e.desc = desc
		e.order = order
		return nil
	}

	frame := e.ctx.CurrentFrame
	if err := e.build(desc); err != nil {
		return err
	}
	e.ctx.CurrentFrame = frame
	return nil
}

// sameStructure reports whether the new description keeps the node set, node
// kinds, and both edge lists identical, so the update can be applied without
// rebuilding.
func (e *Engine) sameStructure(desc GraphDescription) bool {
	if len(desc.Nodes) != len(e.desc.Nodes) {
		return false
	}
	if desc.DestinationID != e.desc.DestinationID {
		return false
	}
	for id, nd := range desc.Nodes {
		old, ok := e.desc.Nodes[id]
		if !ok || !sameKind(nd, old) {
			return false
		}
	}
	if len(desc.Connections) != len(e.desc.Connections) {
		return false
	}
	for i, c := range desc.Connections {
		if c != e.desc.Connections[i] {
			return false
		}
	}
	if len(desc.ParamConnections) != len(e.desc.ParamConnections) {
		return false
	}
	for i, pc := range desc.ParamConnections {
		if pc != e.desc.ParamConnections[i] {
			return false
		}
	}
	return true
}

func sameKind(a, b NodeDescription) bool {
	switch a.(type) {
	case BufferSourceDescription:
		_, ok := b.(BufferSourceDescription)
		return ok
	case ConvolverDescription:
		_, ok := b.(ConvolverDescription)
		return ok
	case DestinationDescription:
		_, ok := b.(DestinationDescription)
		return ok
	default:
		return false
	}
}
