// SPDX-License-Identifier: EPL-2.0

// Package client is the render side of a session: it owns a graph engine,
// renders quanta on the caller's goroutine, interleaves them to the device
// channel layout, and feeds the session ring. It never blocks; when the ring
// is full the quantum's tail is dropped and counted as backpressure.
package client
