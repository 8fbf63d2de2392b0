// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrNoChannels        = errors.New("buffer needs at least one channel")
	ErrRaggedChannels    = errors.New("buffer channels must have uniform length")
	ErrPartialFrame      = errors.New("interleaved samples end mid-frame")
	ErrFrameMismatch     = errors.New("bus frame lengths differ")
)
