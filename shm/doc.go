// SPDX-License-Identifier: EPL-2.0

// Package shm implements the shared-memory transport between a render
// process and the output-mixing service.
//
// Three fixed-layout structures live in shared regions, each identified by a
// magic value that attach functions validate before trusting the memory:
//
//   - Ring: a single-producer/single-consumer byte ring. TryWrite and
//     TryRead never block; a short transfer is normal backpressure or
//     underrun, not an error.
//   - TimingPage: mixer-to-producer playback timing published under a
//     sequence-counter protocol, so a reader either sees a complete
//     publication or retries. The writer never waits for readers.
//   - BlockPool: a pool of fixed-size blocks with "free" and "ready"
//     descriptor rings, used for auxiliary streaming data such as analyser
//     snapshots. The consumer returns blocks through the free ring.
//
// A Region is the underlying mapping. On Linux it is a memfd-backed mmap
// whose file descriptor can be handed to a peer process; elsewhere (and in
// tests) a heap-backed region provides the same layout within one process.
package shm
