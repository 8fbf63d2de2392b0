// SPDX-License-Identifier: EPL-2.0

// Package render evaluates a dataflow graph of audio-processing nodes in
// fixed-size quanta.
//
// The control layer hands the engine a decoded GraphDescription: a set of
// node descriptions keyed by NodeID, the connections between them, parameter
// automation tracks, and the destination node. Each call to RenderQuantum
// walks the graph in topological order, mixes fan-in at every input edge,
// computes the per-quantum parameter buses, and runs every node's Process.
// The destination node's output bus is the quantum's result.
//
// Two node kinds carry the interesting DSP:
//
//   - BufferSourceNode plays an immutable audio.Buffer with sample-accurate
//     start/stop/offset/duration and loop points, resampling through a
//     windowed-sinc kernel when the buffer and context rates differ.
//   - ConvolverNode applies partitioned frequency-domain convolution with a
//     pre-transformed impulse response, overlap-add reconstruction, and the
//     channel-count tail-hold rules reverberant nodes require.
//
// All node state is owned by the render goroutine. ApplyDescription swaps
// parameters between quanta without reallocating the steady per-quantum
// buffers unless the change is structural.
package render
