// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/halvard/rendermix/audio"
)

// oggReader is the part of oggvorbis.Reader we consume; tests substitute it.
type oggReader interface {
	SampleRate() int
	Channels() int
	Read([]float32) (int, error)
}

// Decoder reads a complete Ogg Vorbis stream into an audio.Buffer.
type Decoder struct{}

// Decode decompresses the Vorbis stream and converts it to planar float32
// at the file's own sample rate. Vorbis already decodes to float, so no
// quantization scaling is involved.
func (Decoder) Decode(r io.Reader) (*audio.Buffer, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening ogg vorbis stream: %w", err)
	}

	return decodeAll(dec)
}

// decodeAll drains interleaved float32 samples from dec.
func decodeAll(dec oggReader) (*audio.Buffer, error) {
	channels := dec.Channels()
	if channels <= 0 {
		return nil, ErrNoVorbisChannels
	}

	var samples []float32
	buf := make([]float32, 4096*channels)

	for {
		n, err := dec.Read(buf)
		samples = append(samples, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding ogg vorbis data: %w", err)
		}
		if n == 0 {
			break
		}
	}

	return audio.NewBufferFromInterleaved(samples, channels, dec.SampleRate())
}
