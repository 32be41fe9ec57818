package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// CreateTestImage creates a plain image with the given dimensions and
// background color.
func CreateTestImage(width, height int, background color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)
	return img
}

// DrawText renders text onto the image with the basic bitmap font,
// with (x, y) as the baseline origin.
func DrawText(img *image.RGBA, text string, x, y int, col color.Color) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{col},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}

// TextLine places one line of text on a synthetic scan.
type TextLine struct {
	Text string
	X, Y int // baseline origin
}

// GenerateScanImage renders a white scan with black text lines at
// fixed positions.
func GenerateScanImage(width, height int, lines []TextLine) *image.RGBA {
	img := CreateTestImage(width, height, color.White)
	for _, ln := range lines {
		DrawText(img, ln.Text, ln.X, ln.Y, color.Black)
	}
	return img
}

// SaveImage writes the image to path, picking the encoder from the
// file extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)), "Failed to create directory for %s", path)
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage reads an image back from disk.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image file %s", path)
	return img
}
