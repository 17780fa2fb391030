// Package libmp binds the LibMP C wrapper around the MediaPipe graph runner.
//
// The native library is only linked when building with the libmp tag:
//
//	$ CGO_CFLAGS=-I/path/to/libmp CGO_LDFLAGS=-L/path/to/libmp go build -tags libmp ./...
//
// Without the tag Open returns ErrNotLinked, which lets the rest of the
// module build and run the pure Go fallback detector.
//
// Vector packets of protocol buffers are read message by message: the
// message is fetched from the packet by index, then sized and serialized.
package libmp

import (
	"errors"
	"fmt"
)

// ErrNotLinked is returned when the binary was built without the native library.
var ErrNotLinked = errors.New("libmp: native library not linked, rebuild with -tags libmp")

// ErrNoPacket is returned when an output stream has no packet queued.
var ErrNoPacket = errors.New("libmp: no packet available")

// ImageFormat mirrors mediapipe::ImageFormat::Format.
type ImageFormat int

// Image formats accepted by the graph input stream.
const (
	FormatUnknown ImageFormat = 0
	FormatSRGB    ImageFormat = 1
	FormatSRGBA   ImageFormat = 2
	FormatGray8   ImageFormat = 3
	FormatSBGRA   ImageFormat = 11
)

// BytesPerPixel returns the number of bytes used by one pixel of the format,
// or 0 if the format is not supported.
func (f ImageFormat) BytesPerPixel() int {
	switch f {
	case FormatSRGB:
		return 3
	case FormatSRGBA, FormatSBGRA:
		return 4
	case FormatGray8:
		return 1
	}
	return 0
}

func (f ImageFormat) String() string {
	switch f {
	case FormatSRGB:
		return "SRGB"
	case FormatSRGBA:
		return "SRGBA"
	case FormatGray8:
		return "GRAY8"
	case FormatSBGRA:
		return "SBGRA"
	}
	return fmt.Sprintf("ImageFormat(%d)", int(f))
}

// checkFrame validates a frame buffer before it is handed to the engine.
func checkFrame(pix []byte, width, height int, format ImageFormat) error {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("libmp: unsupported image format %v", format)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("libmp: invalid frame size %dx%d", width, height)
	}
	if want := width * height * bpp; len(pix) != want {
		return fmt.Errorf("libmp: frame buffer holds %d bytes, expected %d", len(pix), want)
	}
	return nil
}
