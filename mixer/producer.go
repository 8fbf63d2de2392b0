// SPDX-License-Identifier: EPL-2.0

package mixer

import "github.com/halvard/rendermix/shm"

// Producer is one registered audio source from the mixer's point of view: a
// ring to drain, an optional timing page to publish into, and the device
// frame position at registration so played frames can be reported relative
// to the session's start.
//
// A Producer value is immutable once it enters a snapshot; mute toggles go
// through the control side, which republishes a fresh snapshot.
type Producer struct {
	ID                    uint64
	Ring                  *shm.Ring
	Timing                *shm.TimingPage
	BytesPerFrame         int
	Muted                 bool
	DevicePlayedFrameBase uint64
}

// Snapshot is the immutable producer list the mixing callback iterates.
// Replaced wholesale on every change, never mutated in place; the garbage
// collector keeps a superseded snapshot alive for callbacks still reading
// it.
type Snapshot struct {
	Producers []Producer
}
