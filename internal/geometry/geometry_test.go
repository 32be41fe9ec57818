package geometry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoints(t *testing.T) {
	pts, err := ParsePoints("10,10 20,10 20,20 10,20")
	require.NoError(t, err)
	require.Len(t, pts, 4)
	assert.Equal(t, Point{X: 10, Y: 10}, pts[0])
	assert.Equal(t, Point{X: 20, Y: 20}, pts[2])
}

func TestParsePointsTruncatesFloats(t *testing.T) {
	pts, err := ParsePoints("10.7,20.3 -3.9,4.5")
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, Point{X: 10, Y: 20}, pts[0])
	assert.Equal(t, Point{X: -3, Y: 4}, pts[1])
}

func TestParsePointsEmptyInput(t *testing.T) {
	pts, err := ParsePoints("")
	require.NoError(t, err)
	assert.Empty(t, pts)

	pts, err = ParsePoints("   \t ")
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestParsePointsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		token string
		index int
	}{
		{"missing comma", "10,10 2020", "2020", 1},
		{"too many components", "10,10,10", "10,10,10", 0},
		{"non-numeric x", "a,10", "a,10", 0},
		{"non-numeric y", "10,b", "10,b", 0},
		{"trailing garbage", "10,10 20,20x", "20,20x", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePoints(tt.input)
			require.Error(t, err)

			var malformed *MalformedCoordinateError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tt.token, malformed.Token)
			assert.Equal(t, tt.index, malformed.Index)
		})
	}
}

func TestPolygonRoundTrip(t *testing.T) {
	inputs := []string{
		"10,10 20,10 20,20 10,20",
		"0,0",
		"5,7 9,3 -2,14",
	}
	for _, in := range inputs {
		pts, err := ParsePoints(in)
		require.NoError(t, err)
		assert.Equal(t, in, pts.String())
	}
}

func TestPolygonStringEmpty(t *testing.T) {
	assert.Equal(t, "", Polygon{}.String())
}

func TestBoundingRect(t *testing.T) {
	pts := MustParsePoints("10,10 20,10 20,20 10,20")
	r := pts.BoundingRect()
	assert.Equal(t, Rect{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}, r)
	assert.Equal(t, 10, r.Width())
	assert.Equal(t, 10, r.Height())
}

func TestBoundingRectDegenerate(t *testing.T) {
	r := MustParsePoints("5,5").BoundingRect()
	assert.Equal(t, Rect{MinX: 5, MinY: 5, MaxX: 5, MaxY: 5}, r)
	assert.Equal(t, 0, r.Area())
}

func TestBoundingRectEmpty(t *testing.T) {
	r := Polygon{}.BoundingRect()
	assert.True(t, r.IsZero())
}

func TestRectUnion(t *testing.T) {
	a := Rect{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}
	b := Rect{MinX: 5, MinY: 15, MaxX: 25, MaxY: 18}
	assert.Equal(t, Rect{MinX: 5, MinY: 10, MaxX: 25, MaxY: 20}, a.Union(b))

	// A degenerate rect still contributes its position.
	point := Rect{MinX: 0, MinY: 0, MaxX: 0, MaxY: 0}
	assert.Equal(t, Rect{MinX: 0, MinY: 0, MaxX: 20, MaxY: 20}, a.Union(point))
}

func TestRectExpandClamp(t *testing.T) {
	crop := Rect{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}.Expand(5).Clamp(100, 50)
	assert.Equal(t, Rect{MinX: 5, MinY: 5, MaxX: 25, MaxY: 25}, crop)

	// Padding near the origin clamps at zero.
	crop = Rect{MinX: 2, MinY: 3, MaxX: 20, MaxY: 20}.Expand(5).Clamp(100, 50)
	assert.Equal(t, Rect{MinX: 0, MinY: 0, MaxX: 25, MaxY: 25}, crop)

	// Padding near the far edge clamps at the image bounds.
	crop = Rect{MinX: 90, MinY: 40, MaxX: 99, MaxY: 49}.Expand(5).Clamp(100, 50)
	assert.Equal(t, Rect{MinX: 85, MinY: 35, MaxX: 100, MaxY: 50}, crop)
}

func TestRectClampOutsideBounds(t *testing.T) {
	r := Rect{MinX: 200, MinY: 10, MaxX: 220, MaxY: 20}.Clamp(100, 50)
	assert.LessOrEqual(t, r.MinX, r.MaxX)
	assert.LessOrEqual(t, r.MinY, r.MaxY)
	assert.Equal(t, 0, r.Width())

	r = Rect{MinX: -30, MinY: -20, MaxX: -10, MaxY: -5}.Clamp(100, 50)
	assert.Equal(t, Rect{}, r)
}

func TestRectCorners(t *testing.T) {
	r := Rect{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}
	tl, tr, bl, br := r.Corners()
	assert.Equal(t, Point{X: 10, Y: 10}, tl)
	assert.Equal(t, Point{X: 20, Y: 10}, tr)
	assert.Equal(t, Point{X: 10, Y: 20}, bl)
	assert.Equal(t, Point{X: 20, Y: 20}, br)
}

func TestRectContains(t *testing.T) {
	r := Rect{MinX: 10, MinY: 10, MaxX: 20, MaxY: 20}
	assert.True(t, r.Contains(Point{X: 10, Y: 10}))
	assert.True(t, r.Contains(Point{X: 20, Y: 20}))
	assert.True(t, r.Contains(Point{X: 15, Y: 12}))
	assert.False(t, r.Contains(Point{X: 9, Y: 15}))
	assert.False(t, r.Contains(Point{X: 15, Y: 21}))
}

func TestMustParsePointsPanics(t *testing.T) {
	assert.Panics(t, func() { MustParsePoints("not-a-polygon") })

	var parseErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if err, ok := r.(error); ok {
					parseErr = err
				}
			}
		}()
		MustParsePoints("1,2 3")
	}()
	var malformed *MalformedCoordinateError
	assert.True(t, errors.As(parseErr, &malformed))
}
