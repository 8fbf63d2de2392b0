// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/halvard/rendermix/audio"
)

// Decoder reads a complete RIFF/WAVE stream into an audio.Buffer.
type Decoder struct{}

// Decode parses the WAV container and converts its PCM payload to planar
// float32 in [-1.0, 1.0] at the file's own sample rate. The container needs
// random access to walk its chunks, so inputs that cannot seek are buffered
// in memory first.
func (Decoder) Decode(r io.Reader) (*audio.Buffer, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading wav input: %w", err)
		}
		rs = bytes.NewReader(raw)
	}

	dec := gowav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("locating wav data chunk: %w", err)
	}

	format := dec.Format()
	if format == nil || format.NumChannels <= 0 || format.SampleRate <= 0 {
		return nil, ErrUnsupportedWavLayout
	}

	bitDepth := int(dec.SampleBitDepth())
	var scale, offset float32
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned.
		scale, offset = 1.0/128.0, -128.0
	case 16:
		scale = 1.0 / 32768.0
	case 24:
		scale = 1.0 / 8388608.0
	case 32:
		scale = 1.0 / 2147483648.0
	default:
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedBitDepth, bitDepth)
	}

	bytesPerSample := (bitDepth-1)/8 + 1
	sampleCount := int(dec.PCMLen()) / bytesPerSample

	intBuf := &goaudio.IntBuffer{
		Format: format,
		Data:   make([]int, sampleCount),
	}
	if _, err := dec.PCMBuffer(intBuf); err != nil {
		return nil, fmt.Errorf("decoding wav data: %w", err)
	}

	samples := make([]float32, len(intBuf.Data))
	for i, v := range intBuf.Data {
		samples[i] = (float32(v) + offset) * scale
	}

	return audio.NewBufferFromInterleaved(samples, format.NumChannels, format.SampleRate)
}
