// SPDX-License-Identifier: EPL-2.0

package mixer

import "sync"

// HeadlessDriver is an output driver without a device: the caller advances
// time explicitly with Pump. Used for tests and offline rendering.
type HeadlessDriver struct {
	spec SampleSpec

	mu      sync.Mutex
	started bool
	volume  float64
	onData  func([]float32) int
	buf     []float32
}

func NewHeadlessDriver(spec SampleSpec) *HeadlessDriver {
	return &HeadlessDriver{spec: spec, volume: 1}
}

func (d *HeadlessDriver) Start(onSpec func(SampleSpec), onData func([]float32) int) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	d.onData = onData
	d.mu.Unlock()

	onSpec(d.spec)
	return nil
}

func (d *HeadlessDriver) Stop() error {
	d.mu.Lock()
	d.started = false
	d.mu.Unlock()
	return nil
}

func (d *HeadlessDriver) SetVolume(volume float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return ErrDeviceUnavailable
	}
	d.volume = volume
	return nil
}

// Volume reports the last gain set through SetVolume.
func (d *HeadlessDriver) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

// Pump requests the given number of frames from the mixing callback and
// returns the interleaved result. The returned slice is valid until the next
// Pump.
func (d *HeadlessDriver) Pump(frames int) []float32 {
	d.mu.Lock()
	onData := d.onData
	started := d.started
	d.mu.Unlock()
	if !started || onData == nil {
		return nil
	}

	need := frames * d.spec.ChannelCount
	if len(d.buf) < need {
		d.buf = make([]float32, need)
	}
	buf := d.buf[:need]
	onData(buf)
	return buf
}
