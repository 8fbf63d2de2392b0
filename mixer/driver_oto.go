// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/halvard/rendermix/shm"
)

// OtoDriver plays through the system audio device via oto. The device pulls
// float32 little-endian samples through an io.Reader on oto's own goroutine;
// each Read forwards to the mixing callback.
type OtoDriver struct {
	sampleRate    int
	channelCount  int
	targetLatency time.Duration

	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player

	onData  func([]float32) int
	scratch []float32
}

// NewOtoDriver configures the device format up front; oto takes the
// requested rate and channel count as-is.
func NewOtoDriver(sampleRate, channelCount int, targetLatency time.Duration) *OtoDriver {
	return &OtoDriver{
		sampleRate:    sampleRate,
		channelCount:  channelCount,
		targetLatency: targetLatency,
	}
}

func (d *OtoDriver) Start(onSpec func(SampleSpec), onData func([]float32) int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		return ErrAlreadyStarted
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   d.sampleRate,
		ChannelCount: d.channelCount,
		Format:       oto.FormatFloat32LE,
		BufferSize:   d.targetLatency,
	})
	if err != nil {
		return err
	}
	<-ready

	d.ctx = ctx
	d.onData = onData
	onSpec(SampleSpec{SampleRate: d.sampleRate, ChannelCount: d.channelCount})

	d.player = ctx.NewPlayer(d)
	d.player.Play()
	return nil
}

// Read satisfies io.Reader for oto's pull model.
func (d *OtoDriver) Read(p []byte) (int, error) {
	sampleCount := len(p) / 4
	if sampleCount == 0 {
		return 0, nil
	}
	if len(d.scratch) < sampleCount {
		d.scratch = make([]float32, sampleCount)
	}
	samples := d.scratch[:sampleCount]
	d.onData(samples)
	copy(p, shm.Float32Bytes(samples))
	return sampleCount * 4, nil
}

func (d *OtoDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	err := d.player.Close()
	d.player = nil
	return err
}

func (d *OtoDriver) SetVolume(volume float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return ErrDeviceUnavailable
	}
	d.player.SetVolume(volume)
	return nil
}
