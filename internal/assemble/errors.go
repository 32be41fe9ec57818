package assemble

import (
	"errors"
	"fmt"
)

// ErrorMarker replaces the concatenated text of a region whose
// aggregation failed, so reviewers can spot it in the document.
const ErrorMarker = "[REGION PROCESSING ERROR]"

// ErrRegionNotFound is returned when a text update names an unknown region.
var ErrRegionNotFound = errors.New("region not found")

// ErrLineNotFound is returned when a text update names an unknown line.
var ErrLineNotFound = errors.New("line not found")

// ErrNoRegions is returned when assembly requires at least one region
// and the layout produced none.
var ErrNoRegions = errors.New("no regions to assemble")

// RegionAggregationError wraps a failure while aggregating a single
// region. It is non-fatal to the scan: the assembler substitutes an
// error-marker region and keeps going.
type RegionAggregationError struct {
	RegionID string
	Index    int
	Err      error
}

func (e *RegionAggregationError) Error() string {
	return fmt.Sprintf("aggregating region %q (index %d): %v", e.RegionID, e.Index, e.Err)
}

func (e *RegionAggregationError) Unwrap() error { return e.Err }

// MissingCropReferenceError records a line whose crop rectangle was
// computed but whose crop file never materialized. Collected during
// assembly, not fatal.
type MissingCropReferenceError struct {
	RegionID string
	LineID   string
	Filename string
}

func (e *MissingCropReferenceError) Error() string {
	return fmt.Sprintf("line %s/%s references missing crop %q", e.RegionID, e.LineID, e.Filename)
}
