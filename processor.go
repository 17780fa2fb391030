package facemesh

import (
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/esimov/facemesh/graph"
	"github.com/esimov/facemesh/landmark"
	"github.com/esimov/facemesh/libmp"
	"github.com/esimov/facemesh/utils"
	pigo "github.com/esimov/pigo/core"
)

// Backend selects the engine used to find the faces.
type Backend string

const (
	// BackendLibMP runs the MediaPipe face mesh graph through LibMP.
	BackendLibMP Backend = "libmp"
	// BackendPigo runs the pure Go pigo face detector. It only reports face
	// boxes, no landmarks.
	BackendPigo Backend = "pigo"
)

// Detection is a face region found in a frame.
type Detection struct {
	Rect  image.Rectangle
	Score float32
}

// Result holds everything extracted from a single frame.
type Result struct {
	Width, Height int

	// Image is the frame rendered by the graph. It is nil when the graph
	// has no renderer or produced no output for the frame.
	Image *image.NRGBA

	Faces      []landmark.List
	Detections []Detection
}

// Processor options
type Processor struct {
	Graph        graph.Options
	Backend      Backend
	Classifier   string
	FaceAngle    float64
	MinFaceSize  int
	MinQuality   float32
	ShapeType    ShapeType
	MarkerSize   float32
	MarkerColor  string
	BoxColor     string
	DrawBoxes    bool
	Preview      bool
	// RenderedPath, if set, receives the frame rendered by the graph while
	// the markers are drawn on the source image.
	RenderedPath string
	Open         OpenFunc
	// MaxQueueSize bounds the packets kept on every output stream, the
	// oldest ones being dropped. Zero leaves the streams unbounded.
	MaxQueueSize int
	FaceDetector *pigo.Pigo
	Spinner      *utils.Spinner

	mu       sync.Mutex
	pipeline Pipeline
	started  bool
	last     *image.NRGBA
}

// NewProcessor returns a processor configured like the face mesh example programs.
func NewProcessor() *Processor {
	return &Processor{
		Graph:       graph.DefaultOptions(),
		Backend:     BackendLibMP,
		MinFaceSize: 20,
		MinQuality:  5.0,
		ShapeType:   Square,
		MarkerSize:  2,
		MarkerColor: "#00ff00",
		BoxColor:    "#ff0000",
		Open:        OpenLibMP,
	}
}

// clone returns a copy of the processor options without the running
// pipeline, used to give every batch worker its own graph.
func (p *Processor) clone() *Processor {
	return &Processor{
		Graph:        p.Graph,
		Backend:      p.Backend,
		Classifier:   p.Classifier,
		FaceAngle:    p.FaceAngle,
		MinFaceSize:  p.MinFaceSize,
		MinQuality:   p.MinQuality,
		ShapeType:    p.ShapeType,
		MarkerSize:   p.MarkerSize,
		MarkerColor:  p.MarkerColor,
		BoxColor:     p.BoxColor,
		DrawBoxes:    p.DrawBoxes,
		Open:         p.Open,
		MaxQueueSize: p.MaxQueueSize,
		FaceDetector: p.FaceDetector,
	}
}

// Start opens and starts the pipeline, or loads the face classifier when the
// pigo backend is selected. Calling Start on a started processor is a no-op.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.start()
}

func (p *Processor) start() error {
	if p.started {
		return nil
	}

	switch p.Backend {
	case BackendPigo:
		if p.FaceDetector == nil {
			if err := p.unpackClassifier(); err != nil {
				return err
			}
		}
	case BackendLibMP, "":
		cfg, err := graph.Render(p.Graph)
		if err != nil {
			return err
		}
		open := p.Open
		if open == nil {
			open = OpenLibMP
		}
		pl, err := open(cfg, p.Graph.InputStream, p.Graph.Outputs()...)
		if err != nil {
			return fmt.Errorf("could not open the face mesh graph: %w", err)
		}
		if p.MaxQueueSize > 0 {
			for _, stream := range p.Graph.Outputs() {
				if err := pl.SetMaxQueueSize(stream, p.MaxQueueSize); err != nil {
					pl.Close()
					return fmt.Errorf("could not bound the output stream %q: %w", stream, err)
				}
			}
		}
		if err := pl.Start(); err != nil {
			pl.Close()
			return fmt.Errorf("could not start the face mesh graph: %w", err)
		}
		p.pipeline = pl
	default:
		return fmt.Errorf("unknown backend %q", p.Backend)
	}
	p.started = true
	return nil
}

// Close stops the pipeline. The processor can be started again afterwards.
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = false
	if p.pipeline == nil {
		return nil
	}
	err := p.pipeline.Close()
	p.pipeline = nil
	return err
}

// Detect pushes an image through the pipeline and collects the results.
func (p *Processor) Detect(img image.Image) (*Result, error) {
	src := imgToNRGBA(img)
	pix, err := imgToPix(src, libmp.FormatSRGB)
	if err != nil {
		return nil, err
	}
	return p.DetectPixels(pix, src.Bounds().Dx(), src.Bounds().Dy(), libmp.FormatSRGB)
}

// DetectPixels is like Detect but operates on a packed pixel buffer, which
// avoids a conversion when the frames already come in a supported format.
func (p *Processor) DetectPixels(pix []byte, width, height int, format libmp.ImageFormat) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.start(); err != nil {
		return nil, err
	}
	res := &Result{Width: width, Height: height}

	if p.Backend == BackendPigo {
		gray, err := pixToGrayscale(pix, width, height, format)
		if err != nil {
			return nil, err
		}
		res.Detections = p.findFaces(gray, width, height)
		return res, nil
	}

	if p.pipeline == nil {
		return nil, ErrNoPipeline
	}
	if err := p.pipeline.Process(pix, width, height, format); err != nil {
		return nil, err
	}
	if err := p.pipeline.WaitUntilIdle(); err != nil {
		return nil, err
	}

	if p.Graph.Render && p.pipeline.QueueSize(p.Graph.OutputVideo) > 0 {
		buf, err := p.pipeline.NextImage(p.Graph.OutputVideo)
		if err != nil {
			return nil, err
		}
		res.Image, err = decodeOutput(buf, width, height)
		if err != nil {
			return nil, err
		}
	}

	// An empty landmark queue means that no face has been found in the frame.
	if p.pipeline.QueueSize(p.Graph.OutputLandmarks) > 0 {
		msgs, err := p.pipeline.NextProtos(p.Graph.OutputLandmarks)
		if err != nil {
			return nil, err
		}
		for i, msg := range msgs {
			face, err := landmark.Unmarshal(msg)
			if err != nil {
				return nil, fmt.Errorf("could not decode the landmarks of face %d: %w", i, err)
			}
			res.Faces = append(res.Faces, face)
			res.Detections = append(res.Detections, Detection{
				Rect:  face.Bounds(width, height),
				Score: 1,
			})
		}
	}
	return res, nil
}

// decodeOutput converts the buffer of the rendered output stream to an image.
// The renderer keeps the input channel layout, which is either RGB or RGBA.
func decodeOutput(buf []byte, width, height int) (*image.NRGBA, error) {
	switch len(buf) {
	case width * height * libmp.FormatSRGB.BytesPerPixel():
		return pixToImage(buf, width, height, libmp.FormatSRGB)
	case width * height * libmp.FormatSRGBA.BytesPerPixel():
		return pixToImage(buf, width, height, libmp.FormatSRGBA)
	}
	return nil, fmt.Errorf("unexpected output image size: %d bytes for a %dx%d frame", len(buf), width, height)
}

// Process decodes the source image, runs the face mesh over it and encodes
// the annotated image into the destination writer.
func (p *Processor) Process(r io.Reader, w io.Writer) error {
	src, _, err := image.Decode(r)
	if err != nil {
		return err
	}
	img := imgToNRGBA(src)

	res, err := p.Detect(img)
	if err != nil {
		return err
	}

	out := res.Image
	if res.Image != nil && p.RenderedPath != "" {
		if err := saveImage(p.RenderedPath, res.Image); err != nil {
			return fmt.Errorf("could not save the rendered image: %w", err)
		}
		out = nil
	}
	if out == nil {
		// Draw on a copy so that the caller's image stays untouched.
		out = image.NewNRGBA(img.Bounds())
		copy(out.Pix, img.Pix)
	}
	if err := p.Annotate(out, res); err != nil {
		return err
	}

	if p.Preview {
		p.mu.Lock()
		p.last = out
		p.mu.Unlock()
	}
	return encodeImg(w, out)
}

// Annotated returns the last image produced by Process when preview is enabled.
func (p *Processor) Annotated() image.Image {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last == nil {
		return nil
	}
	return p.last
}
