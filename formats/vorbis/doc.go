// SPDX-License-Identifier: EPL-2.0

// Package vorbis provides Ogg Vorbis audio file decoding.
//
// This package uses github.com/jfreymuth/oggvorbis to decode Ogg Vorbis
// files into the immutable planar float32 buffers the render graph
// consumes. Vorbis is a free, open-source lossy audio compression format.
//
// # Supported Formats
//
// The decoder supports:
//   - Ogg Vorbis (.ogg files)
//   - Variable bitrates
//   - Mono and multi-channel
//   - Various sample rates
//
// # Decoding Vorbis Files
//
// Use the Decoder to read Ogg Vorbis files:
//
//	decoder := vorbis.Decoder{}
//	file, _ := os.Open("audio.ogg")
//	buf, err := decoder.Decode(file)
//	if err != nil {
//	    // Handle error
//	}
//
//	// buf holds the whole file: planar float32 in [-1.0, 1.0]
//	left := buf.Channel(0)
//
// # Output Format
//
// Vorbis decodes natively to float32, so samples pass through without
// quantization scaling:
//   - Sample format: float32 in range [-1.0, 1.0]
//   - Channels: Depends on file (mono or stereo typically)
//   - Sample rate: Depends on file (commonly 44.1kHz or 48kHz)
//
// # Limitations
//
//   - Vorbis writing is not supported (decoding only)
//   - Opus streams are a different codec and are not supported
package vorbis
