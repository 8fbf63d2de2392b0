// SPDX-License-Identifier: EPL-2.0

// Package rendermix is a real-time audio rendering and mixing core.
//
// A render process evaluates a dataflow graph of audio nodes in fixed
// 128-frame quanta (package render) and streams the result through a
// shared-memory ring (package shm) to a privileged output service
// (package mixer) that merges every session into the hardware device.
// Source material and impulse responses are decoded from audio files
// (package formats) into immutable buffers (package audio).
//
// The cmd/rendermixd daemon wires the whole pipeline together from a YAML
// configuration.
package rendermix
