package facemesh

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/esimov/facemesh/landmark"
	"github.com/esimov/facemesh/libmp"
	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePipeline answers every frame with a fixed set of packets.
type fakePipeline struct {
	video  []byte
	protos [][]byte

	processErr error
	closed     bool
	frames     int
	format     libmp.ImageFormat
	queues     map[string]int
	limits     map[string]int
}

func (f *fakePipeline) SetMaxQueueSize(stream string, size int) error {
	if f.limits == nil {
		f.limits = map[string]int{}
	}
	f.limits[stream] = size
	return nil
}

func (f *fakePipeline) Start() error { return nil }

func (f *fakePipeline) Process(pix []byte, width, height int, format libmp.ImageFormat) error {
	if f.processErr != nil {
		return f.processErr
	}
	f.frames++
	f.format = format
	f.queues = map[string]int{}
	if f.video != nil {
		f.queues["output_video"] = 1
	}
	if f.protos != nil {
		f.queues["multi_face_landmarks"] = 1
	}
	return nil
}

func (f *fakePipeline) WaitUntilIdle() error { return nil }

func (f *fakePipeline) QueueSize(stream string) int { return f.queues[stream] }

func (f *fakePipeline) NextImage(stream string) ([]byte, error) {
	if f.queues[stream] == 0 {
		return nil, libmp.ErrNoPacket
	}
	f.queues[stream]--
	return f.video, nil
}

func (f *fakePipeline) NextProtos(stream string) ([][]byte, error) {
	if f.queues[stream] == 0 {
		return nil, libmp.ErrNoPacket
	}
	f.queues[stream]--
	return f.protos, nil
}

func (f *fakePipeline) Close() error {
	f.closed = true
	return nil
}

func newFakeProcessor(fp *fakePipeline) *Processor {
	p := NewProcessor()
	p.Open = func(config, input string, outputs ...string) (Pipeline, error) {
		return fp, nil
	}
	return p
}

func face(points ...[2]float32) []byte {
	ls := make(landmark.List, 0, len(points))
	for _, pt := range points {
		ls = append(ls, landmark.Landmark{X: pt[0], Y: pt[1]})
	}
	return landmark.Marshal(ls)
}

func TestProcessor_ShouldExtractRenderedImageAndLandmarks(t *testing.T) {
	width, height := 40, 20
	rendered := bytes.Repeat([]byte{1, 2, 3}, width*height)
	fp := &fakePipeline{
		video:  rendered,
		protos: [][]byte{face([2]float32{0.25, 0.5}, [2]float32{0.5, 0.75})},
	}
	p := newFakeProcessor(fp)
	defer p.Close()

	res, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, width, height)))
	require.NoError(t, err)

	assert.Equal(t, 1, fp.frames)
	assert.Equal(t, libmp.FormatSRGB, fp.format)
	require.NotNil(t, res.Image)
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, res.Image.NRGBAAt(5, 5))

	require.Len(t, res.Faces, 1)
	assert.Len(t, res.Faces[0], 2)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, image.Rect(10, 10, 21, 16), res.Detections[0].Rect)
}

func TestProcessor_ShouldKeepAlphaOfRenderedImage(t *testing.T) {
	width, height := 8, 8
	fp := &fakePipeline{video: bytes.Repeat([]byte{9, 8, 7, 200}, width*height)}
	p := newFakeProcessor(fp)
	defer p.Close()

	res, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, width, height)))
	require.NoError(t, err)
	require.NotNil(t, res.Image)
	assert.Equal(t, color.NRGBA{R: 9, G: 8, B: 7, A: 200}, res.Image.NRGBAAt(1, 1))
}

func TestProcessor_EmptyLandmarkQueueMeansNoFace(t *testing.T) {
	fp := &fakePipeline{}
	p := newFakeProcessor(fp)
	defer p.Close()

	res, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	assert.Nil(t, res.Image)
	assert.Empty(t, res.Faces)
	assert.Empty(t, res.Detections)
}

func TestProcessor_ShouldPropagatePipelineErrors(t *testing.T) {
	errBoom := errors.New("boom")
	p := newFakeProcessor(&fakePipeline{processErr: errBoom})
	defer p.Close()

	_, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	assert.ErrorIs(t, err, errBoom)
}

func TestProcessor_ShouldRejectUnexpectedOutputSize(t *testing.T) {
	p := newFakeProcessor(&fakePipeline{video: make([]byte, 10)})
	defer p.Close()

	_, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	assert.Error(t, err)
}

func TestProcessor_ShouldRejectMalformedLandmarks(t *testing.T) {
	p := newFakeProcessor(&fakePipeline{protos: [][]byte{{0x0a, 0x05, 0x0d}}})
	defer p.Close()

	_, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	assert.ErrorIs(t, err, landmark.ErrMalformed)
}

func TestProcessor_StartShouldValidateGraph(t *testing.T) {
	opened := false
	p := NewProcessor()
	p.Graph.NumFaces = 0
	p.Open = func(config, input string, outputs ...string) (Pipeline, error) {
		opened = true
		return &fakePipeline{}, nil
	}

	assert.Error(t, p.Start())
	assert.False(t, opened)
}

func TestProcessor_StartShouldReportOpenErrors(t *testing.T) {
	p := NewProcessor()
	p.Open = func(config, input string, outputs ...string) (Pipeline, error) {
		return nil, libmp.ErrNotLinked
	}

	err := p.Start()
	assert.ErrorIs(t, err, libmp.ErrNotLinked)
}

func TestProcessor_StartShouldBoundOutputQueues(t *testing.T) {
	fp := &fakePipeline{}
	p := newFakeProcessor(fp)
	p.MaxQueueSize = 1
	defer p.Close()

	require.NoError(t, p.Start())
	assert.Equal(t, map[string]int{"output_video": 1, "multi_face_landmarks": 1}, fp.limits)

	unbounded := &fakePipeline{}
	q := newFakeProcessor(unbounded)
	defer q.Close()
	require.NoError(t, q.Start())
	assert.Nil(t, unbounded.limits)
}

func TestProcessor_CloseShouldReleasePipeline(t *testing.T) {
	fp := &fakePipeline{}
	p := newFakeProcessor(fp)

	require.NoError(t, p.Start())
	require.NoError(t, p.Close())
	assert.True(t, fp.closed)
	assert.NoError(t, p.Close())
}

func TestProcessor_ShouldDrawLandmarksOnSourceImage(t *testing.T) {
	fp := &fakePipeline{protos: [][]byte{face([2]float32{0.5, 0.5})}}
	p := newFakeProcessor(fp)
	p.Graph.Render = false
	p.MarkerColor = "#ff0000"
	p.Preview = true
	defer p.Close()

	src := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, src))

	out, err := os.Create(filepath.Join(t.TempDir(), "out.png"))
	require.NoError(t, err)
	require.NoError(t, p.Process(&in, out))
	require.NoError(t, out.Close())

	f, err := os.Open(out.Name())
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})
	r, g, b, _ = img.At(1, 1).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})

	assert.NotNil(t, p.Annotated())
	// The source image has to stay untouched.
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, src.NRGBAAt(10, 10))
}

func TestProcessor_PigoBackendNeedsClassifier(t *testing.T) {
	p := NewProcessor()
	p.Backend = BackendPigo

	assert.Error(t, p.Start())
}

func TestProcessor_UnknownBackend(t *testing.T) {
	p := NewProcessor()
	p.Backend = "opencv"

	assert.Error(t, p.Start())
}

func TestFinder_ShouldSelectBestDetections(t *testing.T) {
	faces := []pigo.Detection{
		{Row: 50, Col: 50, Scale: 20, Q: 6},
		{Row: 10, Col: 10, Scale: 40, Q: 9},
		{Row: 80, Col: 80, Scale: 10, Q: 2},
		{Row: 30, Col: 70, Scale: 10, Q: 7},
	}

	dets := selectDetections(faces, 5, 2, 100, 100)
	require.Len(t, dets, 2)
	assert.Equal(t, float32(9), dets[0].Score)
	// Clipped to the frame.
	assert.Equal(t, image.Rect(0, 0, 30, 30), dets[0].Rect)
	assert.Equal(t, image.Rect(65, 25, 75, 35), dets[1].Rect)

	assert.Len(t, selectDetections(faces, 5, 0, 100, 100), 3)
	assert.Empty(t, selectDetections(faces, 10, 0, 100, 100))
}

func TestProcessor_ShouldSaveRenderedImageSeparately(t *testing.T) {
	width, height := 10, 10
	fp := &fakePipeline{
		video:  bytes.Repeat([]byte{0, 0, 255}, width*height),
		protos: [][]byte{face([2]float32{0.5, 0.5})},
	}
	p := newFakeProcessor(fp)
	p.RenderedPath = filepath.Join(t.TempDir(), "rendered.png")
	defer p.Close()

	var in, out bytes.Buffer
	require.NoError(t, png.Encode(&in, newCanvas(width, height)))
	require.NoError(t, p.Process(&in, &out))

	f, err := os.Open(p.RenderedPath)
	require.NoError(t, err)
	defer f.Close()
	rendered, err := png.Decode(f)
	require.NoError(t, err)
	_, _, b, _ := rendered.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), b)

	// The markers are drawn on the source image, which stays white around them.
	annotated, _, err := image.Decode(&out)
	require.NoError(t, err)
	r, g, b, _ := annotated.At(0, 9).RGBA()
	assert.InDelta(t, 0xffff, r, 0x0200)
	assert.InDelta(t, 0xffff, g, 0x0200)
	assert.InDelta(t, 0xffff, b, 0x0200)
}
