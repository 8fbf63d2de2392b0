// SPDX-License-Identifier: EPL-2.0

//go:build linux

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// NewRegion allocates an anonymous shared-memory region backed by a memfd.
// The returned region's File may be sent to a peer process over a unix
// socket; the peer maps it with AttachRegion.
func NewRegion(size int) (*Region, error) {
	if size < 8 {
		size = 8
	}

	fd, err := unix.MemfdCreate("rendermix-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}

	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &Region{mem: mem, file: os.NewFile(uintptr(fd), "rendermix-shm")}, nil
}

// AttachRegion maps an existing shared-memory descriptor received from a
// peer process. The region takes ownership of the file.
func AttachRegion(file *os.File, size int) (*Region, error) {
	if size < 8 {
		return nil, ErrRegionTooSmall
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	return &Region{mem: mem, file: file}, nil
}

// Close unmaps the region and closes its descriptor. Structures attached to
// the region must not be used afterwards.
func (r *Region) Close() error {
	if r.mem == nil {
		return ErrRegionClosed
	}

	var err error
	if r.file != nil {
		err = unix.Munmap(r.mem)
		if closeErr := r.file.Close(); err == nil {
			err = closeErr
		}
		r.file = nil
	}
	r.mem = nil

	if err != nil {
		return fmt.Errorf("close region: %w", err)
	}
	return nil
}
