// SPDX-License-Identifier: EPL-2.0

package mixer

// SampleSpec is the device-selected output format. The driver reports it
// once, before the first data request.
type SampleSpec struct {
	SampleRate   int
	ChannelCount int
}

// OutputDriver abstracts the playback backend. Start hands over two
// callbacks: onSpec fires once with the negotiated format, onData is invoked
// from the driver's own goroutine with an interleaved float32 buffer to fill
// and returns the number of samples written. Stop tears the backend down;
// onData is not called after Stop returns.
type OutputDriver interface {
	Start(onSpec func(SampleSpec), onData func([]float32) int) error
	Stop() error
	SetVolume(volume float64) error
}
