//go:build !libmp || !cgo

package libmp

// Graph is a placeholder used when the native library is not linked.
type Graph struct{}

// Open always fails with ErrNotLinked.
func Open(config, input string, outputs ...string) (*Graph, error) {
	return nil, ErrNotLinked
}

func (g *Graph) SetMaxQueueSize(stream string, size int) error { return ErrNotLinked }

func (g *Graph) Start() error { return ErrNotLinked }

func (g *Graph) Process(pix []byte, width, height int, format ImageFormat) error {
	if err := checkFrame(pix, width, height, format); err != nil {
		return err
	}
	return ErrNotLinked
}

func (g *Graph) WaitUntilIdle() error { return ErrNotLinked }

func (g *Graph) QueueSize(stream string) int { return 0 }

func (g *Graph) NextImage(stream string) ([]byte, error) { return nil, ErrNotLinked }

func (g *Graph) NextProtos(stream string) ([][]byte, error) { return nil, ErrNotLinked }

func (g *Graph) Close() error { return nil }
