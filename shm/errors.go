// SPDX-License-Identifier: EPL-2.0

package shm

import "errors"

var (
	ErrBadMagic            = errors.New("shared region has wrong magic value")
	ErrRegionTooSmall      = errors.New("shared region smaller than required layout")
	ErrCapacityNotPowerOf2 = errors.New("ring capacity must be a power of two")
	ErrRegionClosed        = errors.New("shared region already closed")
	ErrInvalidBlockLayout  = errors.New("block pool needs positive block size and count")
)
