// Package document defines the persisted OCR result document: the
// hierarchical scan/regions/cropped_images structure consumed by the
// review frontend and the report generator. Field names are a wire
// contract and must not change.
package document

import (
	"fmt"

	"github.com/quill-ocr/quill/internal/geometry"
)

// Result is the top-level assembled document for one scan.
type Result struct {
	Scan          Scan           `json:"scan"`
	Regions       []Region       `json:"regions"`
	CroppedImages []CroppedImage `json:"cropped_images"`
}

// Scan carries the source-image metadata for an assembled result.
type Scan struct {
	ID                  string     `json:"id"`
	ImagePath           string     `json:"image_path"`
	LocalPath           string     `json:"local_path"`
	Dimensions          Dimensions `json:"dimensions"`
	ProcessingTimestamp string     `json:"processing_timestamp"`
}

// Dimensions is the pixel size of the source image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Region is one detected layout region with its aggregated geometry,
// concatenated text and the ordered list of lines it contains.
type Region struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	Index            int               `json:"index"`
	ConcatenatedText string            `json:"concatenated_text"`
	CorrectedText    string            `json:"corrected_text,omitempty"`
	Coordinates      RegionCoordinates `json:"coordinates"`
	Statistics       RegionStatistics  `json:"statistics"`
	Lines            []Line            `json:"lines"`
	NamedEntities    []NamedEntity     `json:"named_entities,omitempty"`
}

// RegionCoordinates aggregates the extents of a region's lines.
// TotalLines counts only the lines that contributed geometry.
type RegionCoordinates struct {
	MinX        int         `json:"min_x"`
	MaxX        int         `json:"max_x"`
	MinY        int         `json:"min_y"`
	MaxY        int         `json:"max_y"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Padding     int         `json:"padding"`
	TotalLines  int         `json:"total_lines"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// BoundingBox spells out the four corners of a region rectangle so
// consumers can render it without recomputing from min/max.
type BoundingBox struct {
	TopLeft     geometry.Point `json:"top_left"`
	TopRight    geometry.Point `json:"top_right"`
	BottomLeft  geometry.Point `json:"bottom_left"`
	BottomRight geometry.Point `json:"bottom_right"`
}

// RegionStatistics summarizes text aggregation for a region.
type RegionStatistics struct {
	LineBreaksHandled int `json:"line_breaks_handled"`
	MergedWords       int `json:"merged_words"`
	TotalLines        int `json:"total_lines"`
}

// Line is a single recognized text line within a region.
type Line struct {
	ID           string          `json:"id"`
	Index        int             `json:"index"`
	Text         string          `json:"text"`
	Confidence   float64         `json:"confidence"`
	Coordinates  LineCoordinates `json:"coordinates"`
	CroppedImage CroppedImageRef `json:"cropped_image"`
}

// LineCoordinates keeps both the raw polygon string from layout
// detection and the derived crop rectangle.
type LineCoordinates struct {
	Original string   `json:"original"`
	Crop     CropRect `json:"crop"`
}

// CropRect is a padded, clamped crop rectangle in scan pixel space.
type CropRect struct {
	MinX    int `json:"min_x"`
	MaxX    int `json:"max_x"`
	MinY    int `json:"min_y"`
	MaxY    int `json:"max_y"`
	Width   int `json:"width"`
	Height  int `json:"height"`
	Padding int `json:"padding"`
}

// Rect converts the crop rectangle back to a geometry.Rect.
func (c CropRect) Rect() geometry.Rect {
	return geometry.Rect{MinX: c.MinX, MinY: c.MinY, MaxX: c.MaxX, MaxY: c.MaxY}
}

// IsZero reports whether no crop rectangle was recorded for the line.
func (c CropRect) IsZero() bool { return c == CropRect{} }

// CroppedImageRef points a line at its persisted crop file.
type CroppedImageRef struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// CroppedImage is a denormalized index entry in the flat cropped_images
// list, enabling direct lookup without walking the region tree.
type CroppedImage struct {
	Filename          string   `json:"filename"`
	RegionID          string   `json:"region_id"`
	LineID            string   `json:"line_id"`
	CoordinatesOnScan ScanRect `json:"coordinates_on_scan"`
}

// ScanRect locates a crop on the source scan.
type ScanRect struct {
	MinX   int `json:"min_x"`
	MaxX   int `json:"max_x"`
	MinY   int `json:"min_y"`
	MaxY   int `json:"max_y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NamedEntity is attached to a region by the downstream entity
// extraction service; this core only carries it through.
type NamedEntity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// CropFilename returns the canonical crop filename for the line at the
// given positional indices: {scan_id}_region_{region:03d}_{line:03d}.jpg.
// Indices are zero-based positions in their ordered sequences, not the
// semantic region/line identifiers.
func CropFilename(scanID string, regionIndex, lineIndex int) string {
	return fmt.Sprintf("%s_region_%03d_%03d.jpg", scanID, regionIndex, lineIndex)
}

// BoundingBoxFromRect builds the explicit corner structure for a rectangle.
func BoundingBoxFromRect(r geometry.Rect) BoundingBox {
	tl, tr, bl, br := r.Corners()
	return BoundingBox{TopLeft: tl, TopRight: tr, BottomLeft: bl, BottomRight: br}
}

// FindRegion returns a pointer to the region with the given id, or nil.
func (r *Result) FindRegion(regionID string) *Region {
	for i := range r.Regions {
		if r.Regions[i].ID == regionID {
			return &r.Regions[i]
		}
	}
	return nil
}

// FindLine returns pointers to the region and line with the given ids,
// or nils when either is absent.
func (r *Result) FindLine(regionID, lineID string) (*Region, *Line) {
	region := r.FindRegion(regionID)
	if region == nil {
		return nil, nil
	}
	for i := range region.Lines {
		if region.Lines[i].ID == lineID {
			return region, &region.Lines[i]
		}
	}
	return region, nil
}

// TotalLines counts lines across all regions.
func (r *Result) TotalLines() int {
	n := 0
	for i := range r.Regions {
		n += len(r.Regions[i].Lines)
	}
	return n
}

// Text returns the text of a region preferring a human correction over
// the machine concatenation, the rule report generation follows.
func (reg *Region) Text() string {
	if reg.CorrectedText != "" {
		return reg.CorrectedText
	}
	return reg.ConcatenatedText
}
