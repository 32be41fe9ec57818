package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTestImage(t *testing.T) {
	img := CreateTestImage(120, 80, color.White)

	b := img.Bounds()
	assert.Equal(t, 120, b.Dx())
	assert.Equal(t, 80, b.Dy())

	r, g, bl, _ := img.At(60, 40).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), bl)
}

func TestGenerateScanImage_DrawsText(t *testing.T) {
	img := GenerateScanImage(200, 100, []TextLine{
		{Text: "XXXX", X: 20, Y: 50},
	})

	// Something dark must appear along the baseline band.
	found := false
	for x := 20; x < 60 && !found; x++ {
		for y := 40; y <= 50; y++ {
			r, _, _, _ := img.At(x, y).RGBA()
			if r < 0x8000 {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "expected dark text pixels near the baseline")

	// Corners stay white.
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestSaveAndLoadImage(t *testing.T) {
	dir := t.TempDir()

	for _, ext := range []string{".png", ".jpg"} {
		path := filepath.Join(dir, "scan"+ext)
		SaveImage(t, CreateTestImage(64, 48, color.White), path)
		require.True(t, FileExists(path))

		loaded := LoadImage(t, path)
		assert.Equal(t, 64, loaded.Bounds().Dx())
		assert.Equal(t, 48, loaded.Bounds().Dy())
	}
}

func TestSaveImage_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "scan.png")
	SaveImage(t, CreateTestImage(10, 10, color.Black), path)
	assert.True(t, FileExists(path))
}
