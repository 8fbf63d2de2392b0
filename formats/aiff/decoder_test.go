// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// extendedRate encodes a sample rate as the 80-bit IEEE 754 extended float
// the AIFF COMM chunk stores rates in.
func extendedRate(rate int) []byte {
	b := make([]byte, 10)
	mant := uint64(rate)
	exp := uint16(16383 + 63)
	for mant&(1<<63) == 0 {
		mant <<= 1
		exp--
	}
	binary.BigEndian.PutUint16(b[0:2], exp)
	binary.BigEndian.PutUint64(b[2:10], mant)
	return b
}

// makeAIFF builds a minimal FORM/AIFF container holding interleaved 16-bit
// PCM frames.
func makeAIFF(sampleRate, channels int, samples []int16) []byte {
	body := new(bytes.Buffer)

	frames := uint32(len(samples) / channels)

	// COMM chunk
	body.WriteString("COMM")
	binary.Write(body, binary.BigEndian, uint32(18))
	binary.Write(body, binary.BigEndian, int16(channels))
	binary.Write(body, binary.BigEndian, frames)
	binary.Write(body, binary.BigEndian, int16(16))
	body.Write(extendedRate(sampleRate))

	// SSND chunk
	body.WriteString("SSND")
	binary.Write(body, binary.BigEndian, uint32(8+len(samples)*2))
	binary.Write(body, binary.BigEndian, uint32(0)) // offset
	binary.Write(body, binary.BigEndian, uint32(0)) // block size
	for _, s := range samples {
		binary.Write(body, binary.BigEndian, s)
	}

	out := new(bytes.Buffer)
	out.WriteString("FORM")
	binary.Write(out, binary.BigEndian, uint32(4+body.Len()))
	out.WriteString("AIFF")
	out.Write(body.Bytes())
	return out.Bytes()
}

// onlyReader hides the Seek method so the decoder's in-memory fallback path
// gets exercised.
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func TestDecoderDecodesMono(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 1000, -1000, 32767, -32768}
	data := makeAIFF(44100, 1, samples)

	buf, err := Decoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil", err)
	}

	if buf.SampleRate() != 44100 {
		t.Errorf("SampleRate() = %d, want 44100", buf.SampleRate())
	}
	if buf.ChannelCount() != 1 {
		t.Fatalf("ChannelCount() = %d, want 1", buf.ChannelCount())
	}
	if buf.FrameCount() != len(samples) {
		t.Fatalf("FrameCount() = %d, want %d", buf.FrameCount(), len(samples))
	}

	for i, s := range samples {
		want := float32(s) / 32768.0
		if got := buf.Channel(0)[i]; got != want {
			t.Errorf("Channel(0)[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestDecoderDeinterleavesStereo(t *testing.T) {
	t.Parallel()

	// Frames are (L,R) pairs.
	samples := []int16{100, -100, 200, -200, 300, -300}
	data := makeAIFF(48000, 2, samples)

	buf, err := Decoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil", err)
	}

	if buf.ChannelCount() != 2 {
		t.Fatalf("ChannelCount() = %d, want 2", buf.ChannelCount())
	}
	if buf.FrameCount() != 3 {
		t.Fatalf("FrameCount() = %d, want 3", buf.FrameCount())
	}

	for i := 0; i < 3; i++ {
		wantL := float32(samples[i*2]) / 32768.0
		wantR := float32(samples[i*2+1]) / 32768.0
		if got := buf.Channel(0)[i]; got != wantL {
			t.Errorf("Channel(0)[%d] = %v, want %v", i, got, wantL)
		}
		if got := buf.Channel(1)[i]; got != wantR {
			t.Errorf("Channel(1)[%d] = %v, want %v", i, got, wantR)
		}
	}
}

func TestDecoderNonSeekingInput(t *testing.T) {
	t.Parallel()

	data := makeAIFF(8000, 1, []int16{1, 2, 3})

	buf, err := Decoder{}.Decode(onlyReader{r: bytes.NewReader(data)})
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil", err)
	}
	if buf.FrameCount() != 3 {
		t.Errorf("FrameCount() = %d, want 3", buf.FrameCount())
	}
}

func TestDecoderRejectsGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not form", []byte("This is not AIFF data")},
		{"wav instead", []byte("RIFF\x00\x00\x00\x00WAVE")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := (Decoder{}).Decode(bytes.NewReader(tt.data)); !errors.Is(err, ErrNotAiffFile) {
				t.Errorf("Decode() error = %v, want %v", err, ErrNotAiffFile)
			}
		})
	}
}
