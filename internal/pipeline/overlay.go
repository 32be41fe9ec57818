package pipeline

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"

	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/geometry"
	"github.com/quill-ocr/quill/internal/utils"
)

// Overlay outline colors and JPEG quality.
var (
	regionOutline = color.RGBA{R: 220, G: 60, B: 60, A: 255}
	cropOutline   = color.RGBA{R: 60, G: 130, B: 220, A: 255}
)

const overlayQuality = 85

// RenderOverlay draws region extents and line crop rectangles over a
// copy of the scan, for reviewers checking the assembled geometry.
func RenderOverlay(src image.Image, doc *document.Result) *image.RGBA {
	canvas := image.NewRGBA(src.Bounds())
	draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, reg := range doc.Regions {
		for _, line := range reg.Lines {
			if line.Coordinates.Crop.IsZero() {
				continue
			}
			utils.DrawRect(canvas, line.Coordinates.Crop.Rect(), cropOutline, 1)
		}

		rc := reg.Coordinates
		if rc.Width == 0 && rc.Height == 0 && rc.MinX == 0 && rc.MinY == 0 {
			continue
		}
		utils.DrawRect(canvas, geometry.Rect{
			MinX: rc.MinX,
			MinY: rc.MinY,
			MaxX: rc.MaxX,
			MaxY: rc.MaxY,
		}, regionOutline, 3)
	}
	return canvas
}

// SaveOverlay renders the overlay and writes it as JPEG to path.
func SaveOverlay(src image.Image, doc *document.Result, path string) error {
	return utils.SaveJPEG(RenderOverlay(src, doc), path, overlayQuality)
}

// overlayDir resolves the configured overlay output directory.
func (p *Pipeline) overlayDir() string {
	if p.cfg.Overlay.Dir != "" {
		return p.cfg.Overlay.Dir
	}
	if p.cfg.StorageDir != "" {
		return filepath.Join(p.cfg.StorageDir, "overlays")
	}
	return ""
}
