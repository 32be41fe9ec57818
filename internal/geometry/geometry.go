// Package geometry provides integer pixel-space primitives for scan layouts:
// points, axis-aligned rectangles, and polygons parsed from PAGE-style
// coordinate strings.
package geometry

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is a pixel coordinate in source-image space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is an axis-aligned rectangle in pixel coordinates.
// Min is inclusive top-left, Max is the bottom-right extent.
type Rect struct {
	MinX int
	MinY int
	MaxX int
	MaxY int
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int { return r.MaxX - r.MinX }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int { return r.MaxY - r.MinY }

// Area returns Width*Height. Degenerate rectangles have zero area.
func (r Rect) Area() int { return r.Width() * r.Height() }

// IsZero reports whether the rectangle is the all-zero placeholder.
func (r Rect) IsZero() bool { return r == Rect{} }

// Contains reports whether the point lies inside the rectangle,
// treating Max as inclusive since crop extents address pixels directly.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Union returns the smallest rectangle covering both r and other.
// Degenerate rectangles participate like any other: a zero-area rect
// still contributes its position, which aggregation depends on.
func (r Rect) Union(other Rect) Rect {
	return Rect{
		MinX: min(r.MinX, other.MinX),
		MinY: min(r.MinY, other.MinY),
		MaxX: max(r.MaxX, other.MaxX),
		MaxY: max(r.MaxY, other.MaxY),
	}
}

// Expand grows the rectangle symmetrically by pad pixels on every side.
// Negative pad shrinks it; extents may cross and should be clamped after.
func (r Rect) Expand(pad int) Rect {
	return Rect{
		MinX: r.MinX - pad,
		MinY: r.MinY - pad,
		MaxX: r.MaxX + pad,
		MaxY: r.MaxY + pad,
	}
}

// Clamp restricts the rectangle to [0,width] x [0,height]. The result
// always satisfies Min <= Max; a rectangle entirely outside the bounds
// collapses to a zero-extent rectangle on the nearest edge.
func (r Rect) Clamp(width, height int) Rect {
	c := Rect{
		MinX: max(0, r.MinX),
		MinY: max(0, r.MinY),
		MaxX: min(width, r.MaxX),
		MaxY: min(height, r.MaxY),
	}
	if c.MaxX < c.MinX {
		if r.MaxX < 0 {
			c.MinX, c.MaxX = 0, 0
		} else {
			c.MinX, c.MaxX = width, width
		}
	}
	if c.MaxY < c.MinY {
		if r.MaxY < 0 {
			c.MinY, c.MaxY = 0, 0
		} else {
			c.MinY, c.MaxY = height, height
		}
	}
	return c
}

// Corners returns the four corner points in top_left, top_right,
// bottom_left, bottom_right order.
func (r Rect) Corners() (tl, tr, bl, br Point) {
	tl = Point{X: r.MinX, Y: r.MinY}
	tr = Point{X: r.MaxX, Y: r.MinY}
	bl = Point{X: r.MinX, Y: r.MaxY}
	br = Point{X: r.MaxX, Y: r.MaxY}
	return tl, tr, bl, br
}

// Polygon is an ordered sequence of points as produced by layout detection.
type Polygon []Point

// IsEmpty reports whether the polygon has no points.
func (p Polygon) IsEmpty() bool { return len(p) == 0 }

// BoundingRect returns the axis-aligned extent of the polygon.
// An empty polygon yields the zero rectangle.
func (p Polygon) BoundingRect() Rect {
	if len(p) == 0 {
		return Rect{}
	}
	r := Rect{MinX: p[0].X, MinY: p[0].Y, MaxX: p[0].X, MaxY: p[0].Y}
	for _, pt := range p[1:] {
		r.MinX = min(r.MinX, pt.X)
		r.MinY = min(r.MinY, pt.Y)
		r.MaxX = max(r.MaxX, pt.X)
		r.MaxY = max(r.MaxY, pt.Y)
	}
	return r
}

// String serializes the polygon back to the "x,y x,y ..." wire form,
// round-tripping exactly what ParsePoints accepted.
func (p Polygon) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for i, pt := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(pt.X))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(pt.Y))
	}
	return b.String()
}

// MalformedCoordinateError reports a polygon token that could not be
// parsed into an x,y pair.
type MalformedCoordinateError struct {
	Token string
	Index int
	Err   error
}

func (e *MalformedCoordinateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed coordinate pair %q at index %d: %v", e.Token, e.Index, e.Err)
	}
	return fmt.Sprintf("malformed coordinate pair %q at index %d", e.Token, e.Index)
}

func (e *MalformedCoordinateError) Unwrap() error { return e.Err }

// ParsePoints parses a PAGE-style coordinate string of whitespace-separated
// "x,y" pairs. Coordinates are parsed as floats and truncated toward zero,
// so "10.7,20.3" yields (10,20). An empty or all-whitespace input returns
// an empty polygon without error; any token that does not split into
// exactly two numeric components fails with MalformedCoordinateError.
func ParsePoints(s string) (Polygon, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Polygon{}, nil
	}
	pts := make(Polygon, 0, len(fields))
	for i, tok := range fields {
		parts := strings.Split(tok, ",")
		if len(parts) != 2 {
			return nil, &MalformedCoordinateError{Token: tok, Index: i}
		}
		x, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, &MalformedCoordinateError{Token: tok, Index: i, Err: err}
		}
		y, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, &MalformedCoordinateError{Token: tok, Index: i, Err: err}
		}
		pts = append(pts, Point{X: int(x), Y: int(y)})
	}
	return pts, nil
}

// MustParsePoints is a test and fixture helper that panics on parse errors.
func MustParsePoints(s string) Polygon {
	p, err := ParsePoints(s)
	if err != nil {
		panic(err)
	}
	return p
}
