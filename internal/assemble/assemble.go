package assemble

import (
	"errors"
	"fmt"
	"time"

	"github.com/quill-ocr/quill/internal/document"
)

// ScanInfo identifies the scan being assembled.
type ScanInfo struct {
	ID        string
	ImagePath string
	LocalPath string
	Width     int
	Height    int
}

// CropSet maps canonical crop filenames to the paths where the crops
// were saved. A nil CropSet means cropping was skipped entirely, so no
// crop references are expected; an empty non-nil set means cropping ran
// and produced nothing, which flags every geometric line as missing.
type CropSet map[string]string

// Add records a produced crop.
func (cs CropSet) Add(filename, path string) { cs[filename] = path }

// Path looks up the saved location of a crop by filename.
func (cs CropSet) Path(filename string) (string, bool) {
	p, ok := cs[filename]
	return p, ok
}

// Input bundles everything Assemble needs for one scan.
type Input struct {
	Scan    ScanInfo
	Regions []RegionInput
	Crops   CropSet
}

// Issues collects the non-fatal problems encountered during assembly.
// The document is still produced; callers log these for the reviewer.
type Issues struct {
	RegionFailures []*RegionAggregationError
	MissingCrops   []*MissingCropReferenceError
}

// Empty reports whether assembly completed without recorded problems.
func (i Issues) Empty() bool {
	return len(i.RegionFailures) == 0 && len(i.MissingCrops) == 0
}

// Errors flattens the collected issues for logging.
func (i Issues) Errors() []error {
	out := make([]error, 0, len(i.RegionFailures)+len(i.MissingCrops))
	for _, e := range i.RegionFailures {
		out = append(out, e)
	}
	for _, e := range i.MissingCrops {
		out = append(out, e)
	}
	return out
}

// Assembler builds the final hierarchical document for a scan.
type Assembler struct {
	opts Options
	now  func() time.Time
}

// NewAssembler creates an assembler with the given aggregation options.
// The image dimensions in the options are overridden per scan.
func NewAssembler(opts Options) *Assembler {
	return &Assembler{opts: opts, now: time.Now}
}

// WithClock fixes the timestamp source, for deterministic tests.
func (as *Assembler) WithClock(now func() time.Time) *Assembler {
	as.now = now
	return as
}

// Assemble aggregates every region and builds the scan document.
//
// Region aggregation failures are isolated: the failed region is
// replaced with an error-marker region (zeroed geometry, marker text,
// lines retained for traceability) and recorded in Issues. A line whose
// crop rectangle exists but whose crop file is absent from the CropSet
// is recorded as a MissingCropReferenceError and left without a path.
//
// Only structural problems abort: an empty scan id, or an empty region
// list when RequireRegions is set.
func (as *Assembler) Assemble(in Input) (document.Result, Issues, error) {
	var issues Issues

	if in.Scan.ID == "" {
		return document.Result{}, issues, errors.New("assemble: scan id is empty")
	}
	if as.opts.RequireRegions && len(in.Regions) == 0 {
		return document.Result{}, issues, fmt.Errorf("assemble scan %q: %w", in.Scan.ID, ErrNoRegions)
	}

	opts := as.opts
	opts.ImageWidth = in.Scan.Width
	opts.ImageHeight = in.Scan.Height
	agg := NewAggregator(opts)

	res := document.Result{
		Scan: document.Scan{
			ID:                  in.Scan.ID,
			ImagePath:           in.Scan.ImagePath,
			LocalPath:           in.Scan.LocalPath,
			Dimensions:          document.Dimensions{Width: in.Scan.Width, Height: in.Scan.Height},
			ProcessingTimestamp: as.now().UTC().Format(time.RFC3339),
		},
		Regions:       make([]document.Region, 0, len(in.Regions)),
		CroppedImages: []document.CroppedImage{},
	}

	for idx, rin := range in.Regions {
		reg, err := agg.AggregateRegion(rin)
		if err != nil {
			var raErr *RegionAggregationError
			if !errors.As(err, &raErr) {
				raErr = &RegionAggregationError{RegionID: rin.ID, Err: err}
			}
			raErr.Index = idx
			issues.RegionFailures = append(issues.RegionFailures, raErr)
			res.Regions = append(res.Regions, errorRegion(rin, idx))
			continue
		}

		reg.Index = idx
		as.attachCrops(&res, &reg, in, idx, &issues)
		res.Regions = append(res.Regions, reg)
	}

	return res, issues, nil
}

// attachCrops links produced crop files to the region's lines and
// appends the flat cropped_images entries in region-major, line-minor
// order.
func (as *Assembler) attachCrops(res *document.Result, reg *document.Region, in Input, regionIdx int, issues *Issues) {
	for lineIdx := range reg.Lines {
		line := &reg.Lines[lineIdx]
		if line.Coordinates.Crop.IsZero() {
			continue
		}

		filename := document.CropFilename(in.Scan.ID, regionIdx, lineIdx)
		line.CroppedImage.Filename = filename

		if in.Crops == nil {
			continue
		}
		path, ok := in.Crops.Path(filename)
		if !ok {
			issues.MissingCrops = append(issues.MissingCrops, &MissingCropReferenceError{
				RegionID: reg.ID,
				LineID:   line.ID,
				Filename: filename,
			})
			continue
		}

		line.CroppedImage.Path = path
		crop := line.Coordinates.Crop
		res.CroppedImages = append(res.CroppedImages, document.CroppedImage{
			Filename: filename,
			RegionID: reg.ID,
			LineID:   line.ID,
			CoordinatesOnScan: document.ScanRect{
				MinX:   crop.MinX,
				MaxX:   crop.MaxX,
				MinY:   crop.MinY,
				MaxY:   crop.MaxY,
				Width:  crop.Width,
				Height: crop.Height,
			},
		})
	}
}

// errorRegion builds the placeholder emitted for a region whose
// aggregation failed: marker text, zeroed geometry, lines kept with
// their raw coordinates so a reviewer can recover them manually.
func errorRegion(in RegionInput, index int) document.Region {
	lines := make([]document.Line, len(in.Lines))
	for i, li := range in.Lines {
		lines[i] = document.Line{
			ID:          li.ID,
			Index:       i,
			Text:        li.Text,
			Confidence:  li.Confidence,
			Coordinates: document.LineCoordinates{Original: li.Coords},
		}
	}
	return document.Region{
		ID:               in.ID,
		Type:             in.Type,
		Index:            index,
		ConcatenatedText: ErrorMarker,
		Statistics:       document.RegionStatistics{TotalLines: len(in.Lines)},
		Lines:            lines,
	}
}

// UpdateLineText replaces one line's text and recomputes the owning
// region's concatenated_text and statistics. Coordinates, identifiers
// and crop references are untouched.
func (as *Assembler) UpdateLineText(res *document.Result, regionID, lineID, text string) error {
	region, line := res.FindLine(regionID, lineID)
	if region == nil {
		return fmt.Errorf("%w: %q", ErrRegionNotFound, regionID)
	}
	if line == nil {
		return fmt.Errorf("%w: %q in region %q", ErrLineNotFound, lineID, regionID)
	}

	line.Text = normalizeText(text, as.opts.Text)
	NewAggregator(as.opts).RecomputeText(region)
	return nil
}
