// SPDX-License-Identifier: EPL-2.0

// Package mixer owns the privileged output side: the device driver, the
// real-time mixing callback that drains every producer ring into the device
// buffer, and the session broker that hands ring and timing transports to
// render clients.
//
// The mixing callback runs on the driver's goroutine and never locks. It
// reads the current producer snapshot through an atomic pointer; the control
// side republishes a fresh snapshot (copy on write) whenever producers are
// added, removed, or muted.
package mixer
