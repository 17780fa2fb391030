package facemesh

import (
	"image"

	"gioui.org/app"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"github.com/disintegration/imaging"
)

const (
	maxScreenX = 1366
	maxScreenY = 768
)

// Gui shows the annotated image in a Gio window.
type Gui struct {
	img   *image.NRGBA
	title string
}

// NewGUI prepares the preview window of img. Images larger than the screen
// are scaled down preserving their aspect ratio.
func NewGUI(img image.Image, title string) *Gui {
	return &Gui{
		img:   fitToScreen(img),
		title: title,
	}
}

// fitToScreen downscales the image to fit the predefined window, if needed.
func fitToScreen(img image.Image) *image.NRGBA {
	return imaging.Fit(img, maxScreenX, maxScreenY, imaging.Lanczos)
}

// Run is the core method of the Gio GUI application. It blocks until the
// window is closed or the ESC key is pressed. It has to be invoked from a
// goroutine other than the one calling app.Main.
func (g *Gui) Run() error {
	bounds := g.img.Bounds()
	w := app.NewWindow(
		app.Title(g.title),
		app.Size(unit.Dp(bounds.Dx()), unit.Dp(bounds.Dy())),
	)
	src := paint.NewImageOp(g.img)

	var ops op.Ops
	for e := range w.Events() {
		switch e := e.(type) {
		case system.FrameEvent:
			gtx := layout.NewContext(&ops, e)

			for _, ev := range gtx.Events(w) {
				if ke, ok := ev.(key.Event); ok && ke.Name == key.NameEscape && ke.State == key.Press {
					w.Perform(system.ActionClose)
				}
			}
			key.InputOp{Tag: w, Keys: key.NameEscape}.Add(gtx.Ops)

			widget.Image{
				Src:   src,
				Fit:   widget.Contain,
				Scale: 1 / gtx.Metric.PxPerDp,
			}.Layout(gtx)
			e.Frame(gtx.Ops)
		case system.DestroyEvent:
			return e.Err
		}
	}
	return nil
}
