// SPDX-License-Identifier: EPL-2.0

//go:build !linux

package shm

import "os"

// NewRegion falls back to a heap allocation on platforms without memfd
// support. The region works within one process but carries no descriptor
// to hand to a peer.
func NewRegion(size int) (*Region, error) {
	return NewHeapRegion(size), nil
}

// AttachRegion is unsupported without a shared-memory backend.
func AttachRegion(*os.File, int) (*Region, error) {
	return nil, ErrRegionClosed
}

// Close releases the region.
func (r *Region) Close() error {
	if r.mem == nil {
		return ErrRegionClosed
	}
	r.mem = nil
	return nil
}
