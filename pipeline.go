package facemesh

import (
	"errors"

	"github.com/esimov/facemesh/libmp"
)

// ErrNoPipeline is returned when the processor is used before a pipeline could be opened.
var ErrNoPipeline = errors.New("facemesh: pipeline not started")

// Pipeline is the graph engine the frames are pushed through.
// It is implemented by *libmp.Graph.
type Pipeline interface {
	SetMaxQueueSize(stream string, size int) error
	Start() error
	Process(pix []byte, width, height int, format libmp.ImageFormat) error
	WaitUntilIdle() error
	QueueSize(stream string) int
	NextImage(stream string) ([]byte, error)
	NextProtos(stream string) ([][]byte, error)
	Close() error
}

var _ Pipeline = (*libmp.Graph)(nil)

// OpenFunc creates a pipeline from a graph configuration, the name of the
// input stream and the output streams to observe.
type OpenFunc func(config, input string, outputs ...string) (Pipeline, error)

// OpenLibMP opens a graph through the native LibMP wrapper.
func OpenLibMP(config, input string, outputs ...string) (Pipeline, error) {
	g, err := libmp.Open(config, input, outputs...)
	if err != nil {
		return nil, err
	}
	return g, nil
}
