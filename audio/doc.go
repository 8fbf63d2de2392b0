// SPDX-License-Identifier: EPL-2.0

// Package audio provides the sample-data model shared by the render engine
// and the output mixer.
//
// This package contains the core building blocks:
//   - Bus for per-quantum planar signal flow
//   - Buffer for immutable decoded PCM assets
//   - Mixing rules applied when several outputs fan into one input
//   - Format registry for decoder registration
//
// # Bus
//
// A Bus is the unit of per-quantum signal flow. Its channel count may change
// from one quantum to the next (mono/stereo transitions) up to a fixed
// channel capacity chosen at construction, so render nodes never reallocate
// on the processing path:
//
//	bus := audio.NewBus(2, 128)
//	bus.SetChannelCount(1)
//	samples := bus.Channel(0)
//
// # Buffer
//
// A Buffer is immutable decoded source material: a playback asset or a
// convolver impulse response. Decoders for concrete file formats live in the
// formats subpackages and produce Buffers:
//
//	buf, err := wav.Decoder{}.Decode(file)
//
// # Mixing
//
// MixInto implements the fan-in rule used at graph edges: a plain per-sample
// sum, with mono inputs duplicated across wider outputs and wider inputs
// averaged down to mono.
//
// # Format Registry
//
// The registry allows dynamic decoder registration:
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	decoder, _ := registry.Get("wav")
//
// # Sample Format
//
// Audio samples are represented as float32 in the range [-1.0, 1.0]:
//   - 0.0 represents silence
//   - 1.0 represents maximum positive amplitude
//   - -1.0 represents maximum negative amplitude
//
// This normalized format makes it easy to process audio without worrying
// about bit depths and ensures no clipping during intermediate processing.
package audio
