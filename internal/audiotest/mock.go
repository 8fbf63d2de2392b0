// SPDX-License-Identifier: EPL-2.0

// Package audiotest provides shared helpers for constructing test signals.
package audiotest

import (
	"math"

	"github.com/halvard/rendermix/audio"
)

// NewBuffer builds an immutable buffer whose samples come from a waveform
// closure, given the frame index and channel.
func NewBuffer(sampleRate, channels, frames int, waveform func(frame, channel int) float32) *audio.Buffer {
	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, frames)
		for i := range data[ch] {
			data[ch][i] = waveform(i, ch)
		}
	}

	buf, err := audio.NewBuffer(data, sampleRate)
	if err != nil {
		panic(err)
	}
	return buf
}

// SineBuffer generates a sine wave at the given frequency, identical across
// channels.
func SineBuffer(sampleRate, channels, frames int, frequency float64) *audio.Buffer {
	return NewBuffer(sampleRate, channels, frames, func(frame, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

// ConstantBuffer generates a constant value on every channel.
func ConstantBuffer(sampleRate, channels, frames int, value float32) *audio.Buffer {
	return NewBuffer(sampleRate, channels, frames, func(_, _ int) float32 {
		return value
	})
}

// RampBuffer generates a linear ramp 0, 1, 2, ... in sample units, identical
// across channels. Useful for making interpolation errors visible.
func RampBuffer(sampleRate, channels, frames int) *audio.Buffer {
	return NewBuffer(sampleRate, channels, frames, func(frame, _ int) float32 {
		return float32(frame)
	})
}

// ImpulseBuffer generates a unit impulse: 1 at frame 0, 0 elsewhere, on
// every channel. Convolving with it must reproduce the input.
func ImpulseBuffer(sampleRate, channels, frames int) *audio.Buffer {
	return NewBuffer(sampleRate, channels, frames, func(frame, _ int) float32 {
		if frame == 0 {
			return 1
		}
		return 0
	})
}

// NearlyEqual reports whether two samples are within tol of each other.
func NearlyEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
