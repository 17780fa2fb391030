package facemesh

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/esimov/facemesh/utils"
	"golang.org/x/image/vector"
)

// ShapeType is the marker drawn over every landmark.
type ShapeType string

const (
	Square ShapeType = "square"
	Circle ShapeType = "circle"
)

// kappa is the control point distance used to approximate a quarter circle with a cubic Bézier curve.
const kappa = 0.5522847498

// Annotate draws the landmarks and, if enabled, the face boxes of the result
// over dst. Coordinates are scaled to the dst size, so the source frame and
// the rendered frame can be annotated alike.
func (p *Processor) Annotate(dst *image.NRGBA, res *Result) error {
	if res == nil {
		return nil
	}
	bounds := dst.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	if len(res.Faces) > 0 {
		col, err := utils.HexToRGBA(p.MarkerColor)
		if err != nil {
			return err
		}
		size := p.MarkerSize
		if size <= 0 {
			size = 1
		}

		z := vector.NewRasterizer(w, h)
		for _, face := range res.Faces {
			for _, l := range face {
				pt := l.Pixel(w, h)
				// Squares span [pt-size, pt+size) on the pixel grid, circles
				// are centred on the pixel.
				x, y := float32(pt.X), float32(pt.Y)
				if p.ShapeType == Circle {
					x, y = x+0.5, y+0.5
				}
				if err := addMarker(z, p.ShapeType, x, y, size); err != nil {
					return err
				}
			}
		}
		fill(dst, z, col)
	}

	if p.DrawBoxes && len(res.Detections) > 0 {
		col, err := utils.HexToRGBA(p.BoxColor)
		if err != nil {
			return err
		}
		z := vector.NewRasterizer(w, h)
		for _, det := range res.Detections {
			r := scaleRect(det.Rect, res.Width, res.Height, w, h)
			addOutline(z, r, utils.Max(1, float32(utils.Min(w, h))/200))
		}
		fill(dst, z, col)
	}
	return nil
}

// addMarker adds a closed marker path centered at (x, y). The path is
// clipped to the rasterizer bounds.
func addMarker(z *vector.Rasterizer, shape ShapeType, x, y, size float32) error {
	var (
		sz  = z.Size()
		w   = float32(sz.X)
		h   = float32(sz.Y)
		clx = func(v float32) float32 { return utils.Clamp(v, 0, w) }
		cly = func(v float32) float32 { return utils.Clamp(v, 0, h) }
	)

	switch shape {
	case Square, "":
		z.MoveTo(clx(x-size), cly(y-size))
		z.LineTo(clx(x+size), cly(y-size))
		z.LineTo(clx(x+size), cly(y+size))
		z.LineTo(clx(x-size), cly(y+size))
		z.ClosePath()
	case Circle:
		k := size * kappa
		z.MoveTo(clx(x+size), cly(y))
		z.CubeTo(clx(x+size), cly(y+k), clx(x+k), cly(y+size), clx(x), cly(y+size))
		z.CubeTo(clx(x-k), cly(y+size), clx(x-size), cly(y+k), clx(x-size), cly(y))
		z.CubeTo(clx(x-size), cly(y-k), clx(x-k), cly(y-size), clx(x), cly(y-size))
		z.CubeTo(clx(x+k), cly(y-size), clx(x+size), cly(y-k), clx(x+size), cly(y))
		z.ClosePath()
	default:
		return fmt.Errorf("unknown marker shape %q", shape)
	}
	return nil
}

// addOutline adds a rectangular ring of the given thickness. The inner path
// runs in the opposite direction, which leaves the inside of the box empty.
func addOutline(z *vector.Rasterizer, r image.Rectangle, thickness float32) {
	x0, y0 := float32(r.Min.X), float32(r.Min.Y)
	x1, y1 := float32(r.Max.X), float32(r.Max.Y)

	z.MoveTo(x0, y0)
	z.LineTo(x1, y0)
	z.LineTo(x1, y1)
	z.LineTo(x0, y1)
	z.ClosePath()

	if x1-x0 <= 2*thickness || y1-y0 <= 2*thickness {
		return
	}
	z.MoveTo(x0+thickness, y0+thickness)
	z.LineTo(x0+thickness, y1-thickness)
	z.LineTo(x1-thickness, y1-thickness)
	z.LineTo(x1-thickness, y0+thickness)
	z.ClosePath()
}

func fill(dst *image.NRGBA, z *vector.Rasterizer, col color.NRGBA) {
	z.DrawOp = draw.Over
	z.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
}

// scaleRect maps a rectangle from a sw x sh frame to a dw x dh frame.
func scaleRect(r image.Rectangle, sw, sh, dw, dh int) image.Rectangle {
	if sw <= 0 || sh <= 0 || (sw == dw && sh == dh) {
		return r.Intersect(image.Rect(0, 0, dw, dh))
	}
	sx, sy := float64(dw)/float64(sw), float64(dh)/float64(sh)
	return image.Rect(
		int(float64(r.Min.X)*sx), int(float64(r.Min.Y)*sy),
		int(float64(r.Max.X)*sx), int(float64(r.Max.Y)*sy),
	).Intersect(image.Rect(0, 0, dw, dh))
}
