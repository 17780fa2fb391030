// Package webcam runs the face mesh over a live camera stream and shows the
// annotated frames in an OpenCV window.
package webcam

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"os"
	"time"

	"github.com/esimov/facemesh"
	"github.com/esimov/facemesh/libmp"
	"github.com/esimov/facemesh/stream"
	"github.com/esimov/facemesh/utils"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// errEndOfStream is returned by the capture loop when a video file is exhausted.
var errEndOfStream = errors.New("webcam: end of stream")

// Detector finds the faces of a packed frame. It is implemented by *facemesh.Processor.
type Detector interface {
	DetectPixels(pix []byte, width, height int, format libmp.ImageFormat) (*facemesh.Result, error)
}

// Config holds the capture and display options.
type Config struct {
	// Device is a camera index or a video file/stream URL.
	Device        string
	Width, Height int
	Mirror        bool
	Title         string
	SnapshotDir   string
	StatsInterval time.Duration

	MarkerColor string
	MarkerSize  int
	BoxColor    string
	DrawBoxes   bool
}

// DefaultConfig returns the options of the live face mesh demo.
func DefaultConfig() Config {
	return Config{
		Device:        "0",
		Width:         640,
		Height:        480,
		Mirror:        true,
		Title:         "Face Mesh",
		SnapshotDir:   ".",
		StatsInterval: 5 * time.Second,
		MarkerColor:   "#00ff00",
		MarkerSize:    2,
		BoxColor:      "#ff0000",
	}
}

type style struct {
	marker, box color.RGBA
	radius      int
	boxes       bool
}

func (c Config) style() (style, error) {
	marker, err := utils.HexToRGBA(c.MarkerColor)
	if err != nil {
		return style{}, err
	}
	box, err := utils.HexToRGBA(c.BoxColor)
	if err != nil {
		return style{}, err
	}
	return style{
		marker: color.RGBA(marker),
		box:    color.RGBA(box),
		radius: utils.Max(1, c.MarkerSize),
		boxes:  c.DrawBoxes,
	}, nil
}

// Run captures frames from the configured device until the window is
// closed, ESC or q is pressed or the context is cancelled.
// It has to be called from the main goroutine on platforms where the
// windowing system requires it.
func Run(ctx context.Context, det Detector, cfg Config) error {
	st, err := cfg.style()
	if err != nil {
		return err
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = DefaultConfig().StatsInterval
	}

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return fmt.Errorf("webcam: could not open device %s: %w", cfg.Device, err)
	}
	defer vc.Close()
	if cfg.Width > 0 && cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}

	window := gocv.NewWindow(cfg.Title)
	defer window.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	box := stream.NewMailbox()
	errc := make(chan error, 1)
	go func() {
		errc <- capture(ctx, vc, cfg.Mirror, box)
	}()

	var (
		session   = uuid.New()
		stats     = stream.NewStats(time.Now())
		ticker    = time.NewTicker(cfg.StatsInterval)
		snapshots int
	)
	defer ticker.Stop()
	log.Printf("webcam session %s started on device %s", session, cfg.Device)

	loopErr := func() error {
		for {
			f, err := box.Take(ctx)
			if err != nil {
				if errors.Is(err, stream.ErrClosed) || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			res, err := det.DetectPixels(f.Pix, f.Width, f.Height, libmp.FormatSRGB)
			if err != nil {
				return fmt.Errorf("webcam: frame %d: %w", f.Seq, err)
			}
			stats.Record(time.Since(f.Captured), len(res.Detections))

			mat, err := frameToMat(f, res)
			if err != nil {
				return err
			}
			drawResult(&mat, res, st)
			window.IMShow(mat)

			switch keyAction(window.WaitKey(1)) {
			case actionQuit:
				mat.Close()
				return nil
			case actionSnapshot:
				snapshots++
				name := snapshotName(cfg.SnapshotDir, session, snapshots)
				if gocv.IMWrite(name, mat) {
					log.Println(utils.Status("⇢ snapshot saved as "+name, utils.SuccessMessage))
				} else {
					log.Println(utils.Status("⇢ could not save the snapshot "+name, utils.ErrorMessage))
				}
			}
			mat.Close()

			if !window.IsOpen() {
				return nil
			}
			select {
			case <-ticker.C:
				log.Printf("webcam: %v", stats.Summary(time.Now(), box.Drops()))
			default:
			}
		}
	}()

	cancel()
	box.Close()
	capErr := <-errc

	fmt.Fprintf(os.Stderr, "\n%s\n", utils.DecorateText(
		stats.Summary(time.Now(), box.Drops()).String(), utils.SuccessMessage),
	)

	if loopErr != nil {
		return loopErr
	}
	if capErr != nil && !errors.Is(capErr, errEndOfStream) {
		return capErr
	}
	return nil
}

// capture reads frames from the device into the mailbox, converted to packed RGB.
func capture(ctx context.Context, vc *gocv.VideoCapture, mirror bool, box *stream.Mailbox) error {
	defer box.Close()

	img := gocv.NewMat()
	defer img.Close()
	rgb := gocv.NewMat()
	defer rgb.Close()

	for ctx.Err() == nil {
		if ok := vc.Read(&img); !ok {
			return errEndOfStream
		}
		if img.Empty() {
			continue
		}
		if mirror {
			gocv.Flip(img, &img, 1)
		}
		gocv.CvtColor(img, &rgb, gocv.ColorBGRToRGB)

		box.Put(&stream.Frame{
			Pix:      rgb.ToBytes(),
			Width:    rgb.Cols(),
			Height:   rgb.Rows(),
			Captured: time.Now(),
		})
	}
	return nil
}

// frameToMat returns the BGR frame to show: the one rendered by the graph
// when available, otherwise the captured one.
func frameToMat(f *stream.Frame, res *facemesh.Result) (gocv.Mat, error) {
	var (
		src  gocv.Mat
		err  error
		code = gocv.ColorRGBToBGR
	)
	if res.Image != nil {
		b := res.Image.Bounds()
		src, err = gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, res.Image.Pix)
		code = gocv.ColorRGBAToBGR
	} else {
		src, err = gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
	}
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("webcam: could not wrap frame %d: %w", f.Seq, err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, code)
	return dst, nil
}

// drawResult draws the landmarks as filled circles and the face boxes.
func drawResult(mat *gocv.Mat, res *facemesh.Result, st style) {
	w, h := mat.Cols(), mat.Rows()
	for _, face := range res.Faces {
		for _, l := range face {
			gocv.Circle(mat, l.Pixel(w, h), st.radius, st.marker, -1)
		}
	}
	if st.boxes {
		for _, det := range res.Detections {
			gocv.Rectangle(mat, det.Rect, st.box, 2)
		}
	}
}
