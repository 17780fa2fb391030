/*
Package facemesh runs the MediaPipe face mesh graph over images and draws the
detected facial landmarks on them.

The graph is executed by the native LibMP library, which is linked when
building with the libmp tag. Without it the Processor can fall back to the
pigo face detector, which reports face boxes only.

The package provides a command line interface with an image and a webcam
subcommand. To check the supported flags type:

	$ facemesh --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"fmt"
		"github.com/esimov/facemesh"
	)

	func main() {
		p := facemesh.NewProcessor()
		defer p.Close()

		if err := p.Process(in, out); err != nil {
			fmt.Printf("Error detecting the face landmarks: %s", err.Error())
		}
	}
*/
package facemesh
