// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"encoding/binary"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/halvard/rendermix/audio"
)

// mp3Reader is the part of gomp3.Decoder we consume; tests substitute it.
type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

// Decoder reads a complete MP3 stream into an audio.Buffer.
type Decoder struct{}

// Decode decompresses the MP3 stream and converts it to planar float32 in
// [-1.0, 1.0] at the file's own sample rate. go-mp3 always emits two
// channels, so the result is stereo even for mono sources.
func (Decoder) Decode(r io.Reader) (*audio.Buffer, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("opening mp3 stream: %w", err)
	}

	return decodeAll(dec, dec.SampleRate())
}

// decodeAll drains 16-bit little-endian interleaved PCM from dec.
func decodeAll(dec mp3Reader, sampleRate int) (*audio.Buffer, error) {
	var samples []float32
	buf := make([]byte, 8192)

	for {
		n, err := dec.Read(buf)
		for i := 0; i+1 < n; i += 2 {
			v := int16(binary.LittleEndian.Uint16(buf[i : i+2]))
			samples = append(samples, float32(v)/32768.0)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding mp3 data: %w", err)
		}
		if n == 0 {
			break
		}
	}

	return audio.NewBufferFromInterleaved(samples, 2, sampleRate)
}
