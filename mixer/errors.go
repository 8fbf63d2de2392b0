// SPDX-License-Identifier: EPL-2.0

package mixer

import "errors"

var (
	ErrDeviceUnavailable = errors.New("output device is unavailable")
	ErrDeviceNotReady    = errors.New("output device has not reported its format yet")
	ErrSessionNotFound   = errors.New("no such session")
	ErrSessionFinalized  = errors.New("session already finalized")
	ErrAlreadyStarted    = errors.New("driver already started")
)
