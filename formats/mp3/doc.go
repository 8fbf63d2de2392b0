// SPDX-License-Identifier: EPL-2.0

// Package mp3 provides MP3 audio file decoding.
//
// This package uses github.com/hajimehoshi/go-mp3 to decode MP3 files into
// the immutable planar float32 buffers the render graph consumes.
//
// # Supported Formats
//
// The decoder supports:
//   - MP3 (MPEG-1 Audio Layer 3)
//   - Various bitrates
//   - Stereo output (go-mp3 always emits two channels)
//
// # Decoding MP3 Files
//
// Use the Decoder to read MP3 files:
//
//	decoder := mp3.Decoder{}
//	file, _ := os.Open("audio.mp3")
//	buf, err := decoder.Decode(file)
//	if err != nil {
//	    // Handle error
//	}
//
//	// buf holds the whole file: planar float32 in [-1.0, 1.0]
//	left, right := buf.Channel(0), buf.Channel(1)
//
// # Output Format
//
// MP3 decoder output:
//   - Sample format: float32 in range [-1.0, 1.0]
//   - Channels: 2 (stereo, even for mono sources)
//   - Sample rate: Depends on the MP3 file (typically 44.1kHz or 48kHz)
//
// # Limitations
//
//   - MP3 writing is not supported (decoding only)
//   - Output is always stereo
//
// # Example: MP3 to WAV Conversion
//
//	mp3File, _ := os.Open("input.mp3")
//	buf, _ := mp3.Decoder{}.Decode(mp3File)
//
//	wavFile, _ := os.Create("output.wav")
//	wav.WriteBuffer(wavFile, buf)
package mp3
