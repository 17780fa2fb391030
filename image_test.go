package facemesh

import (
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"os"
	"path/filepath"
	"testing"

	"github.com/esimov/facemesh/libmp"
	"github.com/esimov/facemesh/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImage_ImgToNRGBA(t *testing.T) {
	rect := image.Rect(-1, -1, 15, 15)
	colors := palette.Plan9
	testCases := []struct {
		name string
		img  image.Image
	}{
		{
			name: "NRGBA",
			img:  makeNRGBAImage(rect, colors),
		},
		{
			name: "RGBA",
			img:  makeRGBAImage(rect, colors),
		},
		{
			name: "YCbCr-444",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio444),
		},
		{
			name: "YCbCr-422",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio422),
		},
		{
			name: "YCbCr-420",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio420),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.img.Bounds()
			dst := imgToNRGBA(tc.img)

			assert.Equal(t, image.Rect(0, 0, r.Dx(), r.Dy()), dst.Bounds())
			for y := r.Min.Y; y < r.Max.Y; y++ {
				got := dst.Pix[dst.PixOffset(0, y-r.Min.Y):dst.PixOffset(0, y-r.Min.Y+1)]
				want := readRow(tc.img, y)
				if !compareBytes(got, want, 1) {
					t.Errorf("row %d: got %v want %v", y, got, want)
				}
			}
		})
	}
}

func TestImage_ShouldPackAndUnpackPixels(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 128})

	rgb, err := imgToPix(src, libmp.FormatSRGB)
	require.NoError(t, err)
	assert.Equal(t, []uint8{10, 20, 30, 40, 50, 60}, rgb)

	bgra, err := imgToPix(src, libmp.FormatSBGRA)
	require.NoError(t, err)
	assert.Equal(t, []uint8{30, 20, 10, 255, 60, 50, 40, 128}, bgra)

	back, err := pixToImage(bgra, 2, 1, libmp.FormatSBGRA)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, back.Pix)

	opaque, err := pixToImage(rgb, 2, 1, libmp.FormatSRGB)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 40, G: 50, B: 60, A: 255}, opaque.NRGBAAt(1, 0))

	_, err = pixToImage(rgb, 3, 1, libmp.FormatSRGB)
	assert.Error(t, err)
	_, err = imgToPix(src, libmp.FormatUnknown)
	assert.Error(t, err)
}

func TestImage_GrayscaleShouldMatchBufferConversion(t *testing.T) {
	src := makeNRGBAImage(image.Rect(0, 0, 16, 16), palette.Plan9)

	want := rgbToGrayscale(src)
	for _, format := range []libmp.ImageFormat{libmp.FormatSRGB, libmp.FormatSRGBA, libmp.FormatSBGRA} {
		pix, err := imgToPix(src, format)
		require.NoError(t, err)

		got, err := pixToGrayscale(pix, 16, 16, format)
		require.NoError(t, err)
		assert.Equal(t, want, got, format.String())
	}

	_, err := pixToGrayscale(make([]uint8, 5), 16, 16, libmp.FormatSRGB)
	assert.Error(t, err)
}

func TestImage_ShouldEncodeByExtension(t *testing.T) {
	img := makeNRGBAImage(image.Rect(0, 0, 16, 16), palette.Plan9)
	dir := t.TempDir()

	for _, ext := range []string{".jpg", ".png", ".bmp", ".gif"} {
		t.Run(ext, func(t *testing.T) {
			f, err := os.Create(filepath.Join(dir, "out"+ext))
			require.NoError(t, err)
			require.NoError(t, encodeImg(f, img))
			require.NoError(t, f.Close())

			f, err = os.Open(f.Name())
			require.NoError(t, err)
			defer f.Close()

			decoded, _, err := image.Decode(f)
			require.NoError(t, err)
			assert.Equal(t, img.Bounds(), decoded.Bounds())
		})
	}

	f, err := os.Create(filepath.Join(dir, "out.tiff"))
	require.NoError(t, err)
	defer f.Close()
	assert.Error(t, encodeImg(f, img))
}

func makeYCbCrImage(rect image.Rectangle, colors []color.Color, sr image.YCbCrSubsampleRatio) *image.YCbCr {
	img := image.NewYCbCr(rect, sr)
	j := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			iy := img.YOffset(x, y)
			ic := img.COffset(x, y)
			c := color.NRGBAModel.Convert(colors[j]).(color.NRGBA)
			img.Y[iy], img.Cb[ic], img.Cr[ic] = color.RGBToYCbCr(c.R, c.G, c.B)
			j++
		}
	}
	return img
}

func makeNRGBAImage(rect image.Rectangle, colors []color.Color) *image.NRGBA {
	img := image.NewNRGBA(rect)
	fillDrawImage(img, colors)
	return img
}

func makeRGBAImage(rect image.Rectangle, colors []color.Color) *image.RGBA {
	img := image.NewRGBA(rect)
	fillDrawImage(img, colors)
	return img
}

func fillDrawImage(img draw.Image, colors []color.Color) {
	colorsNRGBA := make([]color.NRGBA, len(colors))
	for i, c := range colors {
		nrgba := color.NRGBAModel.Convert(c).(color.NRGBA)
		nrgba.A = 0xff
		colorsNRGBA[i] = nrgba
	}
	rect := img.Bounds()
	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.Set(x, y, colorsNRGBA[i%len(colorsNRGBA)])
			i++
		}
	}
}

func readRow(img image.Image, y int) []uint8 {
	row := make([]byte, img.Bounds().Dx()*4)
	i := 0
	for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
		c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		row[i+0] = c.R
		row[i+1] = c.G
		row[i+2] = c.B
		row[i+3] = c.A
		i += 4
	}
	return row
}

func compareBytes(a, b []uint8, delta int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if utils.Abs(int(a[i])-int(b[i])) > delta {
			return false
		}
	}
	return true
}
