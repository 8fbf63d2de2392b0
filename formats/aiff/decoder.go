// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"bytes"
	"fmt"
	"io"

	goaiff "github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"

	"github.com/halvard/rendermix/audio"
)

// Decoder reads a complete AIFF stream into an audio.Buffer.
type Decoder struct{}

// Decode parses the AIFF container and converts its PCM payload to planar
// float32 in [-1.0, 1.0] at the file's own sample rate. go-audio requires
// an io.ReadSeeker, so inputs that cannot seek are buffered in memory first.
func (Decoder) Decode(r io.Reader) (*audio.Buffer, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading aiff input: %w", err)
		}
		rs = bytes.NewReader(raw)
	}

	dec := goaiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}

	dec.ReadInfo()
	format := dec.Format()
	if format == nil || format.NumChannels <= 0 || format.SampleRate <= 0 {
		return nil, ErrUnsupportedAiffLayout
	}

	// AIFF PCM is signed at every depth, so one scale per depth suffices.
	var maxVal float32
	switch dec.BitDepth {
	case 8:
		maxVal = 128.0
	case 16:
		maxVal = 32768.0
	case 24:
		maxVal = 8388608.0
	case 32:
		maxVal = 2147483648.0
	default:
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedBitDepth, dec.BitDepth)
	}

	intBuf := &goaudio.IntBuffer{
		Data:   make([]int, 4096*format.NumChannels),
		Format: format,
	}

	var samples []float32
	for {
		n, err := dec.PCMBuffer(intBuf)
		if n > 0 {
			for _, v := range intBuf.Data[:n] {
				samples = append(samples, float32(v)/maxVal)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decoding aiff data: %w", err)
		}
		if n == 0 {
			break
		}
	}

	return audio.NewBufferFromInterleaved(samples, format.NumChannels, format.SampleRate)
}
