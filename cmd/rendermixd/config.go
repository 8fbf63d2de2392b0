// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's YAML configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Device  DeviceConfig  `yaml:"device"`
	Graph   GraphConfig   `yaml:"graph"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type DeviceConfig struct {
	// Headless replaces the hardware output with a null device that is
	// drained at wall-clock rate. Useful on machines without audio.
	Headless        bool    `yaml:"headless"`
	SampleRate      int     `yaml:"sample_rate"`
	Channels        int     `yaml:"channels"`
	TargetLatencyMS int     `yaml:"target_latency_ms"`
	Volume          float64 `yaml:"volume"`
}

type SourceConfig struct {
	File         string  `yaml:"file"`
	Loop         bool    `yaml:"loop"`
	PlaybackRate float64 `yaml:"playback_rate"`
	DetuneCents  float64 `yaml:"detune_cents"`
	OffsetFrames uint64  `yaml:"offset_frames"`
}

type GraphConfig struct {
	Sources []SourceConfig `yaml:"sources"`

	// Impulse, when set, routes all sources through a convolver loaded
	// with this file before they reach the destination.
	Impulse          string `yaml:"impulse"`
	NormalizeImpulse bool   `yaml:"normalize_impulse"`
}

// LoadConfig reads and validates the daemon configuration, filling in
// defaults for omitted fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	applyDefaults(&cfg)

	if len(cfg.Graph.Sources) == 0 {
		return nil, fmt.Errorf("config: graph needs at least one source")
	}
	for i := range cfg.Graph.Sources {
		if cfg.Graph.Sources[i].File == "" {
			return nil, fmt.Errorf("config: source %d has no file", i)
		}
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Device.SampleRate <= 0 {
		cfg.Device.SampleRate = 48000
	}
	if cfg.Device.Channels <= 0 {
		cfg.Device.Channels = 2
	}
	if cfg.Device.TargetLatencyMS <= 0 {
		cfg.Device.TargetLatencyMS = 50
	}
	if cfg.Device.Volume <= 0 || cfg.Device.Volume > 1 {
		cfg.Device.Volume = 1
	}
	for i := range cfg.Graph.Sources {
		if cfg.Graph.Sources[i].PlaybackRate == 0 {
			cfg.Graph.Sources[i].PlaybackRate = 1
		}
	}
}
