// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

// mockMP3Reader simulates the gomp3.Decoder for testing
type mockMP3Reader struct {
	sampleRate   int
	samples      []int16 // interleaved stereo PCM
	offset       int
	returnErrors bool
}

func (m *mockMP3Reader) SampleRate() int {
	return m.sampleRate
}

func (m *mockMP3Reader) Read(buf []byte) (int, error) {
	if m.returnErrors {
		return 0, io.ErrUnexpectedEOF
	}

	if m.offset >= len(m.samples) {
		return 0, io.EOF
	}

	bytesAvailable := (len(m.samples) - m.offset) * 2
	bytesToRead := min(len(buf), bytesAvailable)

	// Only hand out complete samples.
	bytesToRead = (bytesToRead / 2) * 2
	samplesToRead := bytesToRead / 2

	for i := range samplesToRead {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(m.samples[m.offset+i]))
	}

	m.offset += samplesToRead

	if m.offset >= len(m.samples) {
		return bytesToRead, io.EOF
	}
	return bytesToRead, nil
}

func TestDecodeAllDeinterleavesStereo(t *testing.T) {
	t.Parallel()

	// Frames are (L,R) pairs.
	mock := &mockMP3Reader{
		sampleRate: 44100,
		samples:    []int16{100, -100, 200, -200, 32767, -32768},
	}

	buf, err := decodeAll(mock, mock.SampleRate())
	if err != nil {
		t.Fatalf("decodeAll() error = %v, want nil", err)
	}

	if buf.SampleRate() != 44100 {
		t.Errorf("SampleRate() = %d, want 44100", buf.SampleRate())
	}
	if buf.ChannelCount() != 2 {
		t.Fatalf("ChannelCount() = %d, want 2", buf.ChannelCount())
	}
	if buf.FrameCount() != 3 {
		t.Fatalf("FrameCount() = %d, want 3", buf.FrameCount())
	}

	wantLeft := []int16{100, 200, 32767}
	wantRight := []int16{-100, -200, -32768}
	for i := 0; i < 3; i++ {
		if got, want := buf.Channel(0)[i], float32(wantLeft[i])/32768.0; got != want {
			t.Errorf("Channel(0)[%d] = %v, want %v", i, got, want)
		}
		if got, want := buf.Channel(1)[i], float32(wantRight[i])/32768.0; got != want {
			t.Errorf("Channel(1)[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestDecodeAllSpansReadBoundaries(t *testing.T) {
	t.Parallel()

	// More samples than one 8192-byte read can carry, so decodeAll has to
	// loop and stitch reads together.
	const frames = 5000
	samples := make([]int16, frames*2)
	for i := range samples {
		samples[i] = int16(i % 3000)
	}

	mock := &mockMP3Reader{sampleRate: 48000, samples: samples}

	buf, err := decodeAll(mock, mock.SampleRate())
	if err != nil {
		t.Fatalf("decodeAll() error = %v, want nil", err)
	}

	if buf.FrameCount() != frames {
		t.Fatalf("FrameCount() = %d, want %d", buf.FrameCount(), frames)
	}

	for i := 0; i < frames; i++ {
		if got, want := buf.Channel(0)[i], float32(samples[i*2])/32768.0; got != want {
			t.Fatalf("Channel(0)[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestDecodeAllPropagatesReadErrors(t *testing.T) {
	t.Parallel()

	mock := &mockMP3Reader{sampleRate: 44100, returnErrors: true}

	if _, err := decodeAll(mock, mock.SampleRate()); err == nil {
		t.Error("decodeAll() error = nil, want error")
	}
}

func TestDecodeAllEmptyStream(t *testing.T) {
	t.Parallel()

	mock := &mockMP3Reader{sampleRate: 44100}

	buf, err := decodeAll(mock, mock.SampleRate())
	if err != nil {
		t.Fatalf("decodeAll() error = %v, want nil", err)
	}
	if buf.FrameCount() != 0 {
		t.Errorf("FrameCount() = %d, want 0", buf.FrameCount())
	}
}

func TestDecoderInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("This is not MP3 data")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := (Decoder{}).Decode(bytes.NewReader(tt.data)); err == nil {
				t.Error("Decode() error = nil, want error")
			}
		})
	}
}
