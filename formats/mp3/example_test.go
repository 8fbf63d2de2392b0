// SPDX-License-Identifier: EPL-2.0

package mp3_test

import (
	"bytes"
	"fmt"

	"github.com/halvard/rendermix/formats/mp3"
)

// Example_errorHandling shows handling of invalid MP3 data.
func Example_errorHandling() {
	// Try to decode non-MP3 data
	invalidData := bytes.NewReader([]byte("This is not an MP3 file"))

	decoder := mp3.Decoder{}
	_, err := decoder.Decode(invalidData)

	if err != nil {
		fmt.Println("Decode failed as expected")
	}
	// Output: Decode failed as expected
}

// Example_decoding demonstrates the decoding flow for MP3 files.
func Example_decoding() {
	decoder := mp3.Decoder{}

	// In real code, open a file: f, _ := os.Open("audio.mp3")
	_, err := decoder.Decode(bytes.NewReader(nil))
	if err != nil {
		fmt.Println("Empty input is rejected")
	}

	// A successful decode yields a stereo planar buffer:
	//
	//	buf, err := decoder.Decode(f)
	//	left, right := buf.Channel(0), buf.Channel(1)
	//	fmt.Println(buf.SampleRate(), buf.FrameCount())

	// Output: Empty input is rejected
}
