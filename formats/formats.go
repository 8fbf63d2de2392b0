// SPDX-License-Identifier: EPL-2.0

// Package formats wires the individual codec packages into an
// audio.Registry so callers can look decoders up by format name or file
// extension instead of importing each codec directly.
package formats

import (
	"path/filepath"
	"strings"

	"github.com/halvard/rendermix/audio"
	"github.com/halvard/rendermix/formats/aiff"
	"github.com/halvard/rendermix/formats/mp3"
	"github.com/halvard/rendermix/formats/vorbis"
	"github.com/halvard/rendermix/formats/wav"
)

// extensions maps lower-case file extensions onto registry keys.
var extensions = map[string]string{
	".wav":  "wav",
	".aif":  "aiff",
	".aiff": "aiff",
	".mp3":  "mp3",
	".ogg":  "ogg vorbis",
	".oga":  "ogg vorbis",
}

// NewRegistry returns a registry with every built-in decoder registered.
func NewRegistry() *audio.Registry {
	reg := audio.NewRegistry()
	reg.Register("wav", wav.Decoder{})
	reg.Register("aiff", aiff.Decoder{})
	reg.Register("mp3", mp3.Decoder{})
	reg.Register("ogg vorbis", vorbis.Decoder{})
	return reg
}

// KeyForPath maps a file name onto the registry key of the decoder that
// handles its extension. The second result is false for unknown extensions.
func KeyForPath(path string) (string, bool) {
	key, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return key, ok
}
