// SPDX-License-Identifier: EPL-2.0

// Package wav provides WAV audio file decoding and encoding.
//
// This package wraps github.com/go-audio/wav for robust container parsing
// and converts the PCM payload into the immutable planar float32 buffers
// the render graph consumes.
//
// # Supported Formats
//
// Decoding:
//   - PCM 8, 16, 24 and 32-bit
//   - Any channel count and sample rate
//
// Encoding always produces 16-bit PCM.
//
// # Decoding WAV Files
//
// Use the Decoder to read WAV files:
//
//	decoder := wav.Decoder{}
//	file, _ := os.Open("audio.wav")
//	buf, err := decoder.Decode(file)
//	if err != nil {
//	    // Handle error
//	}
//
//	// buf holds the whole file: planar float32 in [-1.0, 1.0]
//	left := buf.Channel(0)
//
// The decoder reads the complete file; buffers back playback sources and
// convolver impulse responses, so streaming decode would buy nothing.
//
// # Writing WAV Files
//
// WriteBuffer quantizes a decoded buffer back to 16-bit PCM:
//
//	file, _ := os.Create("output.wav")
//	err := wav.WriteBuffer(file, buf)
//
// WriteWAV16 writes raw mono int16 samples directly:
//
//	samples := []int16{100, -100, 200, -200}
//	err := wav.WriteWAV16(file, 8000, samples)
//
// # Error Handling
//
// The package defines several error types:
//   - ErrNotWavFile: The input is not a valid WAV file
//   - ErrUnsupportedWavLayout: Unsupported WAV file structure
//   - ErrUnsupportedBitDepth: Bit depth outside 8/16/24/32
//
// Example:
//
//	buf, err := decoder.Decode(file)
//	if errors.Is(err, wav.ErrNotWavFile) {
//	    fmt.Println("Not a WAV file")
//	}
//
// # Performance
//
// The WAV encoder is highly optimized:
//   - Near-zero allocations (5-11 allocations per file)
//   - Chunked writing for large files
//   - Pre-allocated header buffer
package wav
