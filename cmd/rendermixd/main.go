// SPDX-License-Identifier: EPL-2.0

// rendermixd renders a configured audio graph and mixes it into the system
// output device. It stands up the full pipeline: decode source files, build
// the render graph, open a broker session, and keep the session's shared
// ring fed ahead of the device callback.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"

	"github.com/halvard/rendermix/audio"
	"github.com/halvard/rendermix/client"
	"github.com/halvard/rendermix/formats"
	"github.com/halvard/rendermix/mixer"
	"github.com/halvard/rendermix/render"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "rendermix.yaml", "path to daemon configuration")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rendermixd: %v\n", err)
		return 1
	}

	backend := slog.NewBackend(os.Stderr)
	log := backend.Logger("RMIX")
	if level, ok := slog.LevelFromString(cfg.Logging.Level); ok {
		log.SetLevel(level)
	}

	driver := newDriver(cfg.Device)
	stream := mixer.NewOutputStream(driver, log)
	broker := mixer.NewBroker(stream, log)
	defer stream.Stop()

	id := broker.CreateSession(cfg.Device.TargetLatencyMS)
	transport, err := broker.Finalize(id)
	if err != nil {
		log.Errorf("session finalize: %v", err)
		return 1
	}
	if err := broker.SetVolume(cfg.Device.Volume); err != nil {
		log.Warnf("set volume: %v", err)
	}

	session, err := buildSession(cfg, transport)
	if err != nil {
		log.Errorf("graph setup: %v", err)
		return 1
	}

	log.Infof("session %d: %d Hz, %d channels, ring %d bytes",
		transport.ID, transport.SampleRate, transport.ChannelCount,
		transport.Ring.Capacity())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := renderLoop(ctx, cfg, session, transport, driver, log)

	if err := broker.DestroySession(id); err != nil {
		log.Warnf("destroy session: %v", err)
	}
	return code
}

// newDriver picks the configured output backend.
func newDriver(dev DeviceConfig) mixer.OutputDriver {
	if dev.Headless {
		return mixer.NewHeadlessDriver(mixer.SampleSpec{
			SampleRate:   dev.SampleRate,
			ChannelCount: dev.Channels,
		})
	}
	return mixer.NewOtoDriver(dev.SampleRate, dev.Channels,
		time.Duration(dev.TargetLatencyMS)*time.Millisecond)
}

// buildSession decodes the configured material and assembles the render
// graph: every source feeds the mix bus, optionally through one convolver.
func buildSession(cfg *Config, transport *mixer.SessionTransport) (*client.Session, error) {
	registry := formats.NewRegistry()

	desc := render.GraphDescription{
		Nodes: make(map[render.NodeID]render.NodeDescription),
	}

	const destinationID render.NodeID = 1
	desc.DestinationID = destinationID
	desc.Nodes[destinationID] = render.DestinationDescription{
		ChannelCount: transport.ChannelCount,
	}

	// Sources connect to the convolver when an impulse is configured,
	// otherwise straight to the destination.
	mixTarget := destinationID
	nextID := destinationID + 1

	if cfg.Graph.Impulse != "" {
		impulse, err := loadBuffer(registry, cfg.Graph.Impulse)
		if err != nil {
			return nil, fmt.Errorf("impulse %s: %w", cfg.Graph.Impulse, err)
		}
		convolverID := nextID
		nextID++
		desc.Nodes[convolverID] = render.ConvolverDescription{
			Impulse:   impulse,
			Normalize: cfg.Graph.NormalizeImpulse,
		}
		desc.Connections = append(desc.Connections, render.Connection{
			Source: convolverID, Destination: destinationID,
		})
		mixTarget = convolverID
	}

	startFrame := uint64(0)
	for _, src := range cfg.Graph.Sources {
		buffer, err := loadBuffer(registry, src.File)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.File, err)
		}
		sourceID := nextID
		nextID++
		desc.Nodes[sourceID] = render.BufferSourceDescription{
			Buffer:       buffer,
			PlaybackRate: src.PlaybackRate,
			DetuneCents:  src.DetuneCents,
			StartFrame:   &startFrame,
			OffsetFrame:  src.OffsetFrames,
			Loop:         src.Loop,
		}
		desc.Connections = append(desc.Connections, render.Connection{
			Source: sourceID, Destination: mixTarget,
		})
	}

	engine, err := render.NewEngine(desc, transport.SampleRate)
	if err != nil {
		return nil, err
	}

	return client.NewSession(engine, transport.Ring, transport.Timing, transport.ChannelCount)
}

func loadBuffer(registry *audio.Registry, path string) (*audio.Buffer, error) {
	key, ok := formats.KeyForPath(path)
	if !ok {
		return nil, fmt.Errorf("unrecognized audio format")
	}
	decoder, ok := registry.Get(key)
	if !ok {
		return nil, fmt.Errorf("no decoder registered for %q", key)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decoder.Decode(f)
}

// renderLoop keeps the ring filled to the target latency, one quantum tick
// at a time, until the context is cancelled.
func renderLoop(ctx context.Context, cfg *Config, session *client.Session,
	transport *mixer.SessionTransport, driver mixer.OutputDriver, log slog.Logger) int {

	targetFrames := cfg.Device.TargetLatencyMS * transport.SampleRate / 1000

	// Prefill so the first device callbacks do not underrun.
	session.RenderAhead(targetFrames)

	quantumInterval := time.Duration(render.QuantumFrames) * time.Second /
		time.Duration(transport.SampleRate)
	ticker := time.NewTicker(quantumInterval)
	defer ticker.Stop()

	stats := time.NewTicker(5 * time.Second)
	defer stats.Stop()

	headless, _ := driver.(*mixer.HeadlessDriver)

	for {
		select {
		case <-ctx.Done():
			log.Infof("shutting down: %d frames dropped to backpressure",
				session.DroppedFrames())
			return 0
		case <-stats.C:
			if snap, ok := session.Timing(); ok {
				log.Debugf("played %d frames, drained %d, underruns %d",
					snap.DevicePlayedFrames, snap.RingReadFrames, snap.UnderrunCount)
			}
		case <-ticker.C:
			if headless != nil {
				headless.Pump(render.QuantumFrames)
			}
			session.RenderAhead(targetFrames)
		}
	}
}
