package facemesh

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/esimov/facemesh/libmp"
	"golang.org/x/image/bmp"
)

// encodeImg encodes an image to a destination of type io.Writer.
// Files are encoded by their extension, any other writer receives a jpeg.
func encodeImg(w io.Writer, img image.Image) error {
	switch w := w.(type) {
	case *os.File:
		ext := strings.ToLower(filepath.Ext(w.Name()))
		switch ext {
		case "", ".jpg", ".jpeg":
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
		case ".png":
			return png.Encode(w, img)
		case ".bmp":
			return bmp.Encode(w, img)
		case ".gif":
			return gif.Encode(w, img, nil)
		default:
			return errors.New("unsupported image format")
		}
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	}
}

// saveImage encodes the image into a new file, removing it on failure.
func saveImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeImg(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// imgToNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func imgToNRGBA(img image.Image) *image.NRGBA {
	srcBounds := img.Bounds()
	if srcBounds.Min.X == 0 && srcBounds.Min.Y == 0 {
		if src0, ok := img.(*image.NRGBA); ok {
			return src0
		}
	}
	srcMinX := srcBounds.Min.X
	srcMinY := srcBounds.Min.Y

	dstBounds := srcBounds.Sub(srcBounds.Min)
	dstW := dstBounds.Dx()
	dstH := dstBounds.Dy()
	dst := image.NewNRGBA(dstBounds)

	switch src := img.(type) {
	case *image.NRGBA:
		rowSize := srcBounds.Dx() * 4
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			si := src.PixOffset(srcMinX, srcMinY+dstY)
			copy(dst.Pix[di:di+rowSize], src.Pix[si:si+rowSize])
		}
	case *image.YCbCr:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				srcX := srcMinX + dstX
				srcY := srcMinY + dstY
				siy := src.YOffset(srcX, srcY)
				sic := src.COffset(srcX, srcY)
				r, g, b := color.YCbCrToRGB(src.Y[siy], src.Cb[sic], src.Cr[sic])
				dst.Pix[di+0] = r
				dst.Pix[di+1] = g
				dst.Pix[di+2] = b
				dst.Pix[di+3] = 0xff
				di += 4
			}
		}
	default:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				c := color.NRGBAModel.Convert(img.At(srcMinX+dstX, srcMinY+dstY)).(color.NRGBA)
				dst.Pix[di+0] = c.R
				dst.Pix[di+1] = c.G
				dst.Pix[di+2] = c.B
				dst.Pix[di+3] = c.A
				di += 4
			}
		}
	}

	return dst
}

// imgToPix packs the image pixels into a contiguous buffer of the requested
// format. The alpha channel is dropped for the 3 channel formats.
func imgToPix(src *image.NRGBA, format libmp.ImageFormat) ([]uint8, error) {
	var (
		bounds = src.Bounds()
		dx, dy = bounds.Dx(), bounds.Dy()
		bpp    = format.BytesPerPixel()
	)
	if format == libmp.FormatGray8 {
		return rgbToGrayscale(src), nil
	}
	if bpp == 0 {
		return nil, fmt.Errorf("unsupported image format %v", format)
	}
	pixels := make([]uint8, dx*dy*bpp)

	for y := 0; y < dy; y++ {
		si := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		di := y * dx * bpp
		for x := 0; x < dx; x++ {
			r, g, b, a := src.Pix[si], src.Pix[si+1], src.Pix[si+2], src.Pix[si+3]
			switch format {
			case libmp.FormatSRGB:
				pixels[di], pixels[di+1], pixels[di+2] = r, g, b
			case libmp.FormatSRGBA:
				pixels[di], pixels[di+1], pixels[di+2], pixels[di+3] = r, g, b, a
			case libmp.FormatSBGRA:
				pixels[di], pixels[di+1], pixels[di+2], pixels[di+3] = b, g, r, a
			}
			si += 4
			di += bpp
		}
	}
	return pixels, nil
}

// pixToImage converts a pixel buffer of the given format back to an image.
func pixToImage(pixels []uint8, width, height int, format libmp.ImageFormat) (*image.NRGBA, error) {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("unsupported image format %v", format)
	}
	if len(pixels) != width*height*bpp {
		return nil, fmt.Errorf("pixel buffer holds %d bytes, expected %d for a %dx%d %v image",
			len(pixels), width*height*bpp, width, height, format)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))

	for i, di := 0, 0; i < len(pixels); i, di = i+bpp, di+4 {
		switch format {
		case libmp.FormatSRGB:
			dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2], dst.Pix[di+3] = pixels[i], pixels[i+1], pixels[i+2], 0xff
		case libmp.FormatSRGBA:
			copy(dst.Pix[di:di+4], pixels[i:i+4])
		case libmp.FormatSBGRA:
			dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2], dst.Pix[di+3] = pixels[i+2], pixels[i+1], pixels[i], pixels[i+3]
		case libmp.FormatGray8:
			dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2], dst.Pix[di+3] = pixels[i], pixels[i], pixels[i], 0xff
		}
	}
	return dst, nil
}

// rgbToGrayscale converts an image to grayscale mode and
// returns the pixel values as an one dimensional array.
func rgbToGrayscale(src *image.NRGBA) []uint8 {
	var (
		bounds        = src.Bounds()
		width, height = bounds.Dx(), bounds.Dy()
		gray          = make([]uint8, width*height)
	)

	for y := 0; y < height; y++ {
		si := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < width; x++ {
			gray[y*width+x] = luminance(src.Pix[si], src.Pix[si+1], src.Pix[si+2])
			si += 4
		}
	}

	return gray
}

// pixToGrayscale is the buffer counterpart of rgbToGrayscale.
func pixToGrayscale(pixels []uint8, width, height int, format libmp.ImageFormat) ([]uint8, error) {
	bpp := format.BytesPerPixel()
	if bpp == 0 || len(pixels) != width*height*bpp {
		return nil, fmt.Errorf("invalid %v buffer for a %dx%d image", format, width, height)
	}
	if format == libmp.FormatGray8 {
		return pixels, nil
	}
	gray := make([]uint8, width*height)
	for i, si := 0, 0; i < len(gray); i, si = i+1, si+bpp {
		r, g, b := pixels[si], pixels[si+1], pixels[si+2]
		if format == libmp.FormatSBGRA {
			r, b = b, r
		}
		gray[i] = luminance(r, g, b)
	}
	return gray, nil
}

func luminance(r, g, b uint8) uint8 {
	return uint8(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}
