package facemesh

import (
	"image"
	"image/color"
	"testing"

	"github.com/esimov/facemesh/landmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
)

func newCanvas(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestDraw_ShouldDrawMarkers(t *testing.T) {
	for _, shape := range []ShapeType{Square, Circle} {
		t.Run(string(shape), func(t *testing.T) {
			p := NewProcessor()
			p.ShapeType = shape
			p.MarkerSize = 4

			dst := newCanvas(50, 50)
			res := &Result{
				Width: 50, Height: 50,
				Faces: []landmark.List{{{X: 0.5, Y: 0.5}}},
			}
			require.NoError(t, p.Annotate(dst, res))

			assert.Equal(t, green, dst.NRGBAAt(25, 25))
			assert.Equal(t, white, dst.NRGBAAt(0, 0))
			assert.Equal(t, white, dst.NRGBAAt(40, 40))
		})
	}
}

func TestDraw_SquareShouldCoverWholePixels(t *testing.T) {
	p := NewProcessor()
	p.MarkerSize = 2

	dst := newCanvas(20, 20)
	res := &Result{Width: 20, Height: 20, Faces: []landmark.List{{{X: 0.5, Y: 0.5}}}}
	require.NoError(t, p.Annotate(dst, res))

	for y := 7; y <= 12; y++ {
		for x := 7; x <= 12; x++ {
			want := white
			if x >= 8 && x < 12 && y >= 8 && y < 12 {
				want = green
			}
			assert.Equal(t, want, dst.NRGBAAt(x, y), "pixel (%d, %d)", x, y)
		}
	}
}

func TestDraw_CircleShouldLeaveCornersEmpty(t *testing.T) {
	p := NewProcessor()
	p.ShapeType = Circle
	p.MarkerSize = 10

	dst := newCanvas(50, 50)
	res := &Result{Width: 50, Height: 50, Faces: []landmark.List{{{X: 0.5, Y: 0.5}}}}
	require.NoError(t, p.Annotate(dst, res))

	// The corner of the bounding square lies outside of the circle.
	assert.Equal(t, white, dst.NRGBAAt(16, 16))
	assert.Equal(t, green, dst.NRGBAAt(25, 17))
}

func TestDraw_MarkersNearTheBorderShouldBeClipped(t *testing.T) {
	p := NewProcessor()
	p.MarkerSize = 3

	dst := newCanvas(10, 10)
	res := &Result{Width: 10, Height: 10, Faces: []landmark.List{{{X: 0, Y: 0}, {X: 1, Y: 1}}}}
	require.NoError(t, p.Annotate(dst, res))

	assert.Equal(t, green, dst.NRGBAAt(0, 0))
	assert.Equal(t, green, dst.NRGBAAt(9, 9))
}

func TestDraw_ShouldOutlineBoxes(t *testing.T) {
	p := NewProcessor()
	p.DrawBoxes = true

	dst := newCanvas(100, 100)
	res := &Result{
		Width: 100, Height: 100,
		Detections: []Detection{{Rect: image.Rect(20, 20, 80, 80)}},
	}
	require.NoError(t, p.Annotate(dst, res))

	assert.Equal(t, red, dst.NRGBAAt(20, 50))
	assert.Equal(t, red, dst.NRGBAAt(50, 79))
	assert.Equal(t, white, dst.NRGBAAt(50, 50))
	assert.Equal(t, white, dst.NRGBAAt(10, 10))
}

func TestDraw_BoxesShouldScaleToDestination(t *testing.T) {
	p := NewProcessor()
	p.DrawBoxes = true

	dst := newCanvas(50, 50)
	res := &Result{
		Width: 100, Height: 100,
		Detections: []Detection{{Rect: image.Rect(20, 20, 80, 80)}},
	}
	require.NoError(t, p.Annotate(dst, res))

	assert.Equal(t, red, dst.NRGBAAt(10, 25))
	assert.Equal(t, white, dst.NRGBAAt(25, 25))
	assert.Equal(t, image.Rect(10, 10, 40, 40), scaleRect(image.Rect(20, 20, 80, 80), 100, 100, 50, 50))
}

func TestDraw_ShouldFailOnInvalidOptions(t *testing.T) {
	res := &Result{Width: 10, Height: 10, Faces: []landmark.List{{{X: 0.5, Y: 0.5}}}}

	p := NewProcessor()
	p.ShapeType = "triangle"
	assert.Error(t, p.Annotate(newCanvas(10, 10), res))

	p = NewProcessor()
	p.MarkerColor = "green"
	assert.Error(t, p.Annotate(newCanvas(10, 10), res))
}

func TestPreview_ShouldFitToScreen(t *testing.T) {
	img := fitToScreen(image.NewNRGBA(image.Rect(0, 0, 2732, 1000)))
	assert.Equal(t, maxScreenX, img.Bounds().Dx())
	assert.Equal(t, 500, img.Bounds().Dy())

	small := fitToScreen(image.NewNRGBA(image.Rect(0, 0, 300, 200)))
	assert.Equal(t, image.Rect(0, 0, 300, 200), small.Bounds())
}
