// Package crop cuts per-line images out of a scan. The pipeline feeds
// the cuts to text recognition and saves them alongside the result so
// reviewers can check each line against its source pixels.
package crop

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/quill-ocr/quill/internal/assemble"
	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/geometry"
	"github.com/quill-ocr/quill/internal/mempool"
)

// ErrNoGeometry is returned when a line's polygon is empty and no crop
// rectangle can be derived.
var ErrNoGeometry = errors.New("crop: line has no geometry")

// DefaultQuality is the JPEG quality used for saved line crops.
const DefaultQuality = 90

// Options configures the cropper.
type Options struct {
	// Padding expands each line's polygon extent before clamping to the
	// image bounds. It must match the aggregation padding so the saved
	// crops line up with the coordinates reported in the result.
	Padding int

	// Quality is the JPEG quality for saved crops, 1..100.
	Quality int
}

// DefaultOptions returns production cropping settings.
func DefaultOptions() Options {
	return Options{Padding: assemble.DefaultCropPadding, Quality: DefaultQuality}
}

// Cropper cuts line images from scans.
type Cropper struct {
	opts Options
}

// New creates a cropper.
func New(opts Options) *Cropper {
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	return &Cropper{opts: opts}
}

// Rect computes the crop rectangle for a line polygon: its extent
// expanded by the configured padding and clamped to the image bounds.
func (c *Cropper) Rect(poly geometry.Polygon, width, height int) (geometry.Rect, error) {
	if poly.IsEmpty() {
		return geometry.Rect{}, ErrNoGeometry
	}
	return poly.BoundingRect().Expand(c.opts.Padding).Clamp(width, height), nil
}

// Line cuts one line image out of src given the raw polygon string.
// Used by recognition, which runs the OCR engine on the cut alone.
func (c *Cropper) Line(src image.Image, coords string) (image.Image, geometry.Rect, error) {
	poly, err := geometry.ParsePoints(coords)
	if err != nil {
		return nil, geometry.Rect{}, err
	}
	b := src.Bounds()
	rect, err := c.Rect(poly, b.Dx(), b.Dy())
	if err != nil {
		return nil, geometry.Rect{}, err
	}
	return imaging.Crop(src, toImageRect(rect)), rect, nil
}

// Result summarizes one scan's cropping run.
type Result struct {
	// Crops maps canonical crop filenames to saved paths, in the form
	// the assembler consumes.
	Crops assemble.CropSet

	// Saved counts written crop files; Skipped counts lines without
	// usable geometry.
	Saved   int
	Skipped int
}

// SaveRegionCrops cuts and saves a JPEG for every line with geometry,
// region-major and line-minor, into outDir. Filenames follow the
// canonical scheme so the assembler can link them back to their lines.
//
// Lines with empty polygons are skipped. A malformed polygon fails the
// run; the caller isolates the owning region before retrying without it.
func (c *Cropper) SaveRegionCrops(src image.Image, scanID string, regions []assemble.RegionInput, outDir string) (Result, error) {
	res := Result{Crops: assemble.CropSet{}}

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return res, fmt.Errorf("create crop directory: %w", err)
	}

	b := src.Bounds()
	for ri, region := range regions {
		for li, line := range region.Lines {
			poly, err := geometry.ParsePoints(line.Coords)
			if err != nil {
				return res, fmt.Errorf("region %q line %q: %w", region.ID, line.ID, err)
			}
			rect, err := c.Rect(poly, b.Dx(), b.Dy())
			if errors.Is(err, ErrNoGeometry) {
				res.Skipped++
				continue
			}
			if err != nil {
				return res, err
			}

			filename := document.CropFilename(scanID, ri, li)
			path := filepath.Join(outDir, filename)
			cut := imaging.Crop(src, toImageRect(rect))
			if err := c.encodeTo(path, cut); err != nil {
				return res, fmt.Errorf("save crop %s: %w", filename, err)
			}

			res.Crops.Add(filename, path)
			res.Saved++
		}
	}
	return res, nil
}

// encodeTo JPEG-encodes img into a pooled buffer and writes it to path.
func (c *Cropper) encodeTo(path string, img image.Image) error {
	buf := mempool.GetBuffer()
	defer mempool.PutBuffer(buf)

	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(c.opts.Quality)); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// toImageRect converts an inclusive-max rect to the half-open form the
// image package uses.
func toImageRect(r geometry.Rect) image.Rectangle {
	return image.Rect(r.MinX, r.MinY, r.MaxX+1, r.MaxY+1)
}
