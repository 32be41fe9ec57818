// Package assemble turns parsed layout regions into the normalized
// result document: it aggregates per-region geometry and text, and
// assembles the final scan/regions/cropped_images structure.
package assemble

import (
	"fmt"

	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/geometry"
)

// Default paddings, in pixels. Line crops get a tight margin so the OCR
// engine sees a little context; the region padding is only reported in
// the output for downstream rendering.
const (
	DefaultCropPadding   = 5
	DefaultRegionPadding = 10
)

// Options configures aggregation for one scan.
type Options struct {
	// ImageWidth and ImageHeight bound crop rectangles. Both must be
	// set to the scan's pixel dimensions.
	ImageWidth  int
	ImageHeight int

	// CropPadding expands each line's polygon extent before clamping.
	CropPadding int

	// RegionPadding is reported in region coordinates; it does not
	// shift the aggregated extents.
	RegionPadding int

	// RequireRegions makes assembly fail when the layout produced no
	// regions at all, for callers that treat a blank layout as a
	// structural error.
	RequireRegions bool

	Text TextOptions
}

// DefaultOptions returns production aggregation settings; callers fill
// in the image dimensions per scan.
func DefaultOptions() Options {
	return Options{
		CropPadding:   DefaultCropPadding,
		RegionPadding: DefaultRegionPadding,
		Text:          DefaultTextOptions(),
	}
}

// LineInput is one text line as produced by layout detection and
// recognition: the raw polygon string plus recognized text.
type LineInput struct {
	ID         string
	Coords     string
	Text       string
	Confidence float64
}

// RegionInput is one layout region with its ordered lines.
type RegionInput struct {
	ID    string
	Type  string
	Lines []LineInput
}

// Aggregator computes region geometry, concatenated text and statistics.
type Aggregator struct {
	opts Options
}

// NewAggregator creates an aggregator with the given options.
func NewAggregator(opts Options) *Aggregator {
	return &Aggregator{opts: opts}
}

// AggregateRegion builds the document region for one layout region.
//
// The region's min/max extents are the union of its lines' original
// polygon points; padding never shifts them. Each line with a non-empty
// polygon also gets a crop rectangle: its polygon extent expanded by
// CropPadding and clamped to the image bounds. Lines with empty
// polygons contribute no geometry but keep their text and count toward
// the line total.
//
// A region with no lines yields an all-zero coordinate placeholder and
// empty text without error. A malformed polygon fails the whole region
// with a RegionAggregationError; the caller decides whether to isolate
// or propagate.
func (a *Aggregator) AggregateRegion(in RegionInput) (document.Region, error) {
	reg := document.Region{
		ID:    in.ID,
		Type:  in.Type,
		Lines: make([]document.Line, 0, len(in.Lines)),
	}

	var bounds geometry.Rect
	haveBounds := false
	geomLines := 0
	texts := make([]string, 0, len(in.Lines))

	for i, li := range in.Lines {
		poly, err := geometry.ParsePoints(li.Coords)
		if err != nil {
			return document.Region{}, &RegionAggregationError{
				RegionID: in.ID,
				Err:      fmt.Errorf("line %q: %w", li.ID, err),
			}
		}

		line := document.Line{
			ID:          li.ID,
			Index:       i,
			Text:        normalizeText(li.Text, a.opts.Text),
			Confidence:  li.Confidence,
			Coordinates: document.LineCoordinates{Original: li.Coords},
		}

		if !poly.IsEmpty() {
			extent := poly.BoundingRect()
			if haveBounds {
				bounds = bounds.Union(extent)
			} else {
				bounds = extent
				haveBounds = true
			}

			crop := extent.Expand(a.opts.CropPadding).Clamp(a.opts.ImageWidth, a.opts.ImageHeight)
			line.Coordinates.Crop = document.CropRect{
				MinX:    crop.MinX,
				MaxX:    crop.MaxX,
				MinY:    crop.MinY,
				MaxY:    crop.MaxY,
				Width:   crop.Width(),
				Height:  crop.Height(),
				Padding: a.opts.CropPadding,
			}
			geomLines++
		}

		texts = append(texts, line.Text)
		reg.Lines = append(reg.Lines, line)
	}

	if haveBounds {
		reg.Coordinates = document.RegionCoordinates{
			MinX:        bounds.MinX,
			MaxX:        bounds.MaxX,
			MinY:        bounds.MinY,
			MaxY:        bounds.MaxY,
			Width:       bounds.Width(),
			Height:      bounds.Height(),
			Padding:     a.opts.RegionPadding,
			TotalLines:  geomLines,
			BoundingBox: document.BoundingBoxFromRect(bounds),
		}
	}

	concatenated, stats := concatenate(texts, a.opts.Text)
	reg.ConcatenatedText = concatenated
	reg.Statistics = document.RegionStatistics{
		LineBreaksHandled: stats.LineBreaksHandled,
		MergedWords:       stats.MergedWords,
		TotalLines:        len(in.Lines),
	}

	return reg, nil
}

// RecomputeText rebuilds a region's concatenated_text and text
// statistics from its current line texts, leaving coordinates and
// identifiers untouched. Called after a reviewer edits line text.
func (a *Aggregator) RecomputeText(reg *document.Region) {
	texts := make([]string, len(reg.Lines))
	for i := range reg.Lines {
		texts[i] = reg.Lines[i].Text
	}
	concatenated, stats := concatenate(texts, a.opts.Text)
	reg.ConcatenatedText = concatenated
	reg.Statistics.LineBreaksHandled = stats.LineBreaksHandled
	reg.Statistics.MergedWords = stats.MergedWords
}
