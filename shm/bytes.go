// SPDX-License-Identifier: EPL-2.0

package shm

import "unsafe"

// Float32Bytes reinterprets a sample slice as its little-endian byte
// representation, without copying. Rings carry interleaved float32 frames,
// so both ends of a ring use this view for reads and writes.
func Float32Bytes(samples []float32) []byte {
	if len(samples) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*bytesPerSample)
}
