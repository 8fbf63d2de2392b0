// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/halvard/rendermix/audio"
)

// writeHeader writes a canonical 44-byte RIFF/WAVE header for 16-bit PCM
// with dataSize payload bytes following it.
func writeHeader(w io.Writer, sampleRate, channels int, dataSize uint32) error {
	numChannels := uint16(channels)
	bitsPerSample := uint16(16)
	byteRate := uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample/8)
	blockAlign := numChannels * (bitsPerSample / 8)
	riffSize := 36 + dataSize

	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], riffSize)
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(header[22:24], numChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// WriteWAV16 writes a mono 16-bit PCM WAV at sampleRate. samples must be
// int16 PCM. This uses an optimized implementation for minimal allocations.
func WriteWAV16(w io.Writer, sampleRate int, samples []int16) error {
	if err := writeHeader(w, sampleRate, 1, uint32(len(samples)*2)); err != nil {
		return err
	}

	if len(samples) == 0 {
		return nil
	}

	// For better performance with large files, write in chunks.
	const chunkSize = 8192 // samples per write
	buf := make([]byte, min(len(samples), chunkSize)*2)

	for i := 0; i < len(samples); i += chunkSize {
		end := min(i+chunkSize, len(samples))
		chunk := samples[i:end]
		buf = buf[:len(chunk)*2]

		for j, s := range chunk {
			binary.LittleEndian.PutUint16(buf[j*2:j*2+2], uint16(s))
		}

		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("%w", err)
		}
	}

	return nil
}

// WriteBuffer quantizes a decoded buffer to 16-bit PCM and writes it as a
// WAV file, interleaving the planar channels frame by frame. Samples outside
// [-1.0, 1.0] are clipped.
func WriteBuffer(w io.Writer, buf *audio.Buffer) error {
	channels := buf.ChannelCount()
	frames := buf.FrameCount()

	if err := writeHeader(w, buf.SampleRate(), channels, uint32(frames*channels*2)); err != nil {
		return err
	}

	const chunkFrames = 4096
	out := make([]byte, min(frames, chunkFrames)*channels*2)

	for start := 0; start < frames; start += chunkFrames {
		end := min(start+chunkFrames, frames)
		out = out[:(end-start)*channels*2]

		pos := 0
		for frame := start; frame < end; frame++ {
			for ch := 0; ch < channels; ch++ {
				binary.LittleEndian.PutUint16(out[pos:pos+2], uint16(quantize16(buf.Channel(ch)[frame])))
				pos += 2
			}
		}

		if _, err := w.Write(out); err != nil {
			return fmt.Errorf("%w", err)
		}
	}

	return nil
}

func quantize16(s float32) int16 {
	v := s * 32767.0
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}
