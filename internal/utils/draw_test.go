package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/quill-ocr/quill/internal/geometry"
)

var red = color.RGBA{R: 255, A: 255}

func countColored(img *image.RGBA, col color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == col {
				n++
			}
		}
	}
	return n
}

func TestDrawRect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	DrawRect(img, geometry.Rect{MinX: 2, MinY: 3, MaxX: 10, MaxY: 12}, red, 1)

	// Corners and edges are painted, interior is not.
	if img.RGBAAt(2, 3) != red {
		t.Fatalf("top-left corner not painted")
	}
	if img.RGBAAt(10, 12) != red {
		t.Fatalf("bottom-right corner not painted")
	}
	if img.RGBAAt(6, 3) != red || img.RGBAAt(2, 7) != red {
		t.Fatalf("edges not painted")
	}
	if img.RGBAAt(6, 7) == red {
		t.Fatalf("interior should stay untouched")
	}
}

func TestDrawRectClipped(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))

	// Rectangles partially or fully outside the canvas must not panic.
	DrawRect(img, geometry.Rect{MinX: -5, MinY: -5, MaxX: 5, MaxY: 5}, red, 2)
	DrawRect(img, geometry.Rect{MinX: 50, MinY: 50, MaxX: 60, MaxY: 60}, red, 1)

	if img.RGBAAt(5, 5) != red {
		t.Fatalf("clipped rect edge not painted")
	}
}

func TestDrawPolygon(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 30))
	poly := geometry.Polygon{
		{X: 5, Y: 5},
		{X: 25, Y: 5},
		{X: 25, Y: 20},
		{X: 5, Y: 20},
	}
	DrawPolygon(img, poly, red, 1)

	if img.RGBAAt(5, 5) != red || img.RGBAAt(25, 20) != red {
		t.Fatalf("polygon vertices not painted")
	}
	// The closing segment back to the first vertex is drawn too.
	if img.RGBAAt(5, 12) != red {
		t.Fatalf("closing edge not painted")
	}
	if countColored(img, red) == 0 {
		t.Fatalf("nothing drawn")
	}
}

func TestDrawPolygonDegenerate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))

	DrawPolygon(img, geometry.Polygon{}, red, 1)
	DrawPolygon(img, geometry.Polygon{{X: 3, Y: 3}}, red, 1)

	if countColored(img, red) != 0 {
		t.Fatalf("degenerate polygons should draw nothing")
	}
}

func TestDrawLineThickness(t *testing.T) {
	thin := image.NewRGBA(image.Rect(0, 0, 20, 20))
	thick := image.NewRGBA(image.Rect(0, 0, 20, 20))

	drawLine(thin, image.Pt(2, 10), image.Pt(18, 10), red, 1)
	drawLine(thick, image.Pt(2, 10), image.Pt(18, 10), red, 3)

	if countColored(thick, red) <= countColored(thin, red) {
		t.Fatalf("thick line should cover more pixels than thin line")
	}
}
