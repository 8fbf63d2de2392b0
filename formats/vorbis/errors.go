// SPDX-License-Identifier: EPL-2.0

package vorbis

import "errors"

// ErrNoVorbisChannels indicates a stream header declaring zero channels.
var ErrNoVorbisChannels = errors.New("ogg vorbis stream has no channels")
