package testutil

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quill-ocr/quill/internal/pagexml"
)

// Sample scan dimensions shared by GenerateSampleScan and SamplePage.
const (
	SampleScanWidth  = 400
	SampleScanHeight = 300
)

// SamplePage returns a small PAGE layout matching GenerateSampleScan:
// a two-line paragraph region followed by a heading region whose single
// line carries no text and needs recognition.
func SamplePage(imageFilename string) *pagexml.Document {
	return &pagexml.Document{
		ImageFilename: imageFilename,
		Width:         SampleScanWidth,
		Height:        SampleScanHeight,
		Regions: []pagexml.Region{
			{
				ID:   "r1",
				Type: "paragraph",
				Lines: []pagexml.Line{
					{
						ID:         "r1l1",
						Coords:     "40,45 360,45 360,70 40,70",
						Text:       "Opening line of the record",
						Confidence: 0.97,
						HasText:    true,
					},
					{
						ID:         "r1l2",
						Coords:     "40,85 360,85 360,110 40,110",
						Text:       "continued on the second line",
						Confidence: 0.95,
						HasText:    true,
					},
				},
			},
			{
				ID:   "r2",
				Type: "heading",
				Lines: []pagexml.Line{
					{ID: "r2l1", Coords: "120,160 280,160 280,185 120,185"},
				},
			},
		},
	}
}

// GenerateSampleScan renders the scan image described by SamplePage,
// with each text line drawn inside its polygon band.
func GenerateSampleScan() *image.RGBA {
	return GenerateScanImage(SampleScanWidth, SampleScanHeight, []TextLine{
		{Text: "Opening line of the record", X: 42, Y: 62},
		{Text: "continued on the second line", X: 42, Y: 102},
		{Text: "HEADING", X: 150, Y: 178},
	})
}

// WriteScanFixture writes {stem}.png and the matching {stem}.xml PAGE
// file into dir, returning both paths.
func WriteScanFixture(t *testing.T, dir, stem string) (imgPath, xmlPath string) {
	t.Helper()

	imgPath = filepath.Join(dir, stem+".png")
	xmlPath = filepath.Join(dir, stem+".xml")
	SaveImage(t, GenerateSampleScan(), imgPath)
	require.NoError(t, pagexml.WriteFile(xmlPath, SamplePage(stem+".png")))
	return imgPath, xmlPath
}
