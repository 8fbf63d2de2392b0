// SPDX-License-Identifier: EPL-2.0

// Package aiff provides AIFF (Audio Interchange File Format) decoding.
//
// This package uses github.com/go-audio/aiff to decode AIFF files into the
// immutable planar float32 buffers the render graph consumes. AIFF is
// Apple's standard audio file format, commonly used on macOS.
//
// # Supported Formats
//
//   - AIFF (Audio Interchange File Format)
//   - PCM 8, 16, 24 and 32-bit
//   - Mono and multi-channel
//   - Any sample rate
//
// # Decoding AIFF Files
//
// Use the Decoder to read AIFF files:
//
//	decoder := aiff.Decoder{}
//	file, _ := os.Open("audio.aif")
//	buf, err := decoder.Decode(file)
//	if err != nil {
//	    // Handle error
//	}
//
//	// buf holds the whole file: planar float32 in [-1.0, 1.0]
//	left := buf.Channel(0)
//
// # Error Handling
//
// The package defines several error types:
//   - ErrNotAiffFile: The input is not a valid AIFF file
//   - ErrUnsupportedBitDepth: PCM bit depth outside 8/16/24/32
//   - ErrUnsupportedAiffLayout: Unsupported AIFF file structure
//
// Example:
//
//	buf, err := decoder.Decode(file)
//	if errors.Is(err, aiff.ErrNotAiffFile) {
//	    fmt.Println("Not an AIFF file")
//	}
//
// # AIFF vs. WAV
//
// AIFF is similar to WAV but:
//   - Uses big-endian byte order (WAV uses little-endian)
//   - Originated on Apple platforms (WAV on Windows)
//   - Stores sample rate as 80-bit float (WAV uses 32-bit int)
//   - Both are uncompressed PCM formats
//
// The decoder handles all format differences automatically.
//
// # Limitations
//
//   - AIFF writing is not supported (decoding only)
//   - AIFF-C compressed payloads are not supported
//
// # File Extensions
//
// AIFF files typically use:
//   - .aif or .aiff for standard AIFF
//   - .aifc for AIFF-C (compressed, not supported)
package aiff
