package assemble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-ocr/quill/internal/document"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	}
}

func testAssembler() *Assembler {
	return NewAssembler(DefaultOptions()).WithClock(fixedClock())
}

func testInput() Input {
	crops := CropSet{}
	crops.Add("letter_001_region_000_000.jpg", "/data/cropped_images/letter_001_region_000_000.jpg")
	crops.Add("letter_001_region_000_001.jpg", "/data/cropped_images/letter_001_region_000_001.jpg")
	crops.Add("letter_001_region_001_000.jpg", "/data/cropped_images/letter_001_region_001_000.jpg")

	return Input{
		Scan: ScanInfo{
			ID:        "letter_001",
			ImagePath: "https://archive.example/letter.jpg",
			LocalPath: "/data/input_scans/letter_001.jpg",
			Width:     1000,
			Height:    1400,
		},
		Regions: []RegionInput{
			{
				ID:   "region_0001",
				Type: "paragraph",
				Lines: []LineInput{
					{ID: "line_0001", Coords: "10,10 200,10 200,40 10,40", Text: "Выдано сие", Confidence: 0.98},
					{ID: "line_0002", Coords: "10,50 200,50 200,80 10,80", Text: "свидетельство", Confidence: 0.95},
				},
			},
			{
				ID:   "region_0002",
				Type: "heading",
				Lines: []LineInput{
					{ID: "line_0003", Coords: "300,10 500,10 500,60 300,60", Text: "Метрика", Confidence: 0.99},
				},
			},
		},
		Crops: crops,
	}
}

func TestAssembleFullDocument(t *testing.T) {
	res, issues, err := testAssembler().Assemble(testInput())
	require.NoError(t, err)
	assert.True(t, issues.Empty())

	assert.Equal(t, "letter_001", res.Scan.ID)
	assert.Equal(t, "https://archive.example/letter.jpg", res.Scan.ImagePath)
	assert.Equal(t, "/data/input_scans/letter_001.jpg", res.Scan.LocalPath)
	assert.Equal(t, document.Dimensions{Width: 1000, Height: 1400}, res.Scan.Dimensions)
	assert.Equal(t, "2024-05-17T10:30:00Z", res.Scan.ProcessingTimestamp)

	require.Len(t, res.Regions, 2)
	assert.Equal(t, 0, res.Regions[0].Index)
	assert.Equal(t, 1, res.Regions[1].Index)
	assert.Equal(t, "Выдано сие\nсвидетельство", res.Regions[0].ConcatenatedText)

	// Flat crop list is region-major, line-minor.
	require.Len(t, res.CroppedImages, 3)
	assert.Equal(t, "letter_001_region_000_000.jpg", res.CroppedImages[0].Filename)
	assert.Equal(t, "letter_001_region_000_001.jpg", res.CroppedImages[1].Filename)
	assert.Equal(t, "letter_001_region_001_000.jpg", res.CroppedImages[2].Filename)
	assert.Equal(t, "region_0001", res.CroppedImages[0].RegionID)
	assert.Equal(t, "line_0002", res.CroppedImages[1].LineID)

	// Index entry geometry mirrors the line's crop rect.
	line := res.Regions[0].Lines[0]
	onScan := res.CroppedImages[0].CoordinatesOnScan
	assert.Equal(t, line.Coordinates.Crop.MinX, onScan.MinX)
	assert.Equal(t, line.Coordinates.Crop.MaxY, onScan.MaxY)
	assert.Equal(t, line.Coordinates.Crop.Width, onScan.Width)

	assert.Equal(t, "letter_001_region_000_000.jpg", line.CroppedImage.Filename)
	assert.Equal(t, "/data/cropped_images/letter_001_region_000_000.jpg", line.CroppedImage.Path)
}

func TestAssembleDeterministic(t *testing.T) {
	a, issues1, err1 := testAssembler().Assemble(testInput())
	b, issues2, err2 := testAssembler().Assemble(testInput())
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.True(t, issues1.Empty())
	assert.True(t, issues2.Empty())
	assert.Equal(t, a, b)
}

func TestAssembleMissingCrop(t *testing.T) {
	in := testInput()
	delete(in.Crops, "letter_001_region_000_001.jpg")

	res, issues, err := testAssembler().Assemble(in)
	require.NoError(t, err)

	require.Len(t, issues.MissingCrops, 1)
	missing := issues.MissingCrops[0]
	assert.Equal(t, "region_0001", missing.RegionID)
	assert.Equal(t, "line_0002", missing.LineID)
	assert.Equal(t, "letter_001_region_000_001.jpg", missing.Filename)

	// The line keeps its canonical filename but no path, and the flat
	// list only contains crops that were actually produced.
	line := res.Regions[0].Lines[1]
	assert.Equal(t, "letter_001_region_000_001.jpg", line.CroppedImage.Filename)
	assert.Equal(t, "", line.CroppedImage.Path)
	assert.Len(t, res.CroppedImages, 2)
}

func TestAssembleWithoutCropping(t *testing.T) {
	in := testInput()
	in.Crops = nil

	res, issues, err := testAssembler().Assemble(in)
	require.NoError(t, err)

	// Cropping skipped: no crop references are expected, so nothing is
	// reported missing and the flat list stays empty.
	assert.True(t, issues.Empty())
	assert.Empty(t, res.CroppedImages)
	assert.Equal(t, "letter_001_region_000_000.jpg", res.Regions[0].Lines[0].CroppedImage.Filename)
	assert.Equal(t, "", res.Regions[0].Lines[0].CroppedImage.Path)
}

func TestAssembleIsolatesRegionFailure(t *testing.T) {
	in := testInput()
	broken := RegionInput{
		ID:   "region_broken",
		Type: "paragraph",
		Lines: []LineInput{
			{ID: "line_bad", Coords: "10,10 garbage", Text: "осталось"},
		},
	}
	in.Regions = []RegionInput{in.Regions[0], broken, in.Regions[1]}

	res, issues, err := testAssembler().Assemble(in)
	require.NoError(t, err)

	require.Len(t, issues.RegionFailures, 1)
	failure := issues.RegionFailures[0]
	assert.Equal(t, "region_broken", failure.RegionID)
	assert.Equal(t, 1, failure.Index)

	require.Len(t, res.Regions, 3)
	marker := res.Regions[1]
	assert.Equal(t, ErrorMarker, marker.ConcatenatedText)
	assert.Equal(t, document.RegionCoordinates{}, marker.Coordinates)
	assert.Equal(t, 1, marker.Index)

	// Lines survive with their raw coordinates for manual recovery.
	require.Len(t, marker.Lines, 1)
	assert.Equal(t, "осталось", marker.Lines[0].Text)
	assert.Equal(t, "10,10 garbage", marker.Lines[0].Coordinates.Original)

	// Neighbouring regions are unaffected.
	assert.Equal(t, "Выдано сие\nсвидетельство", res.Regions[0].ConcatenatedText)
	assert.Equal(t, "Метрика", res.Regions[2].ConcatenatedText)
	assert.Equal(t, 2, res.Regions[2].Index)
}

func TestAssembleEmptyScanID(t *testing.T) {
	in := testInput()
	in.Scan.ID = ""

	_, _, err := testAssembler().Assemble(in)
	assert.Error(t, err)
}

func TestAssembleRequireRegions(t *testing.T) {
	opts := DefaultOptions()
	opts.RequireRegions = true
	as := NewAssembler(opts).WithClock(fixedClock())

	in := testInput()
	in.Regions = nil
	_, _, err := as.Assemble(in)
	assert.ErrorIs(t, err, ErrNoRegions)

	// Without the flag an empty layout assembles to an empty document.
	res, issues, err := testAssembler().Assemble(in)
	require.NoError(t, err)
	assert.True(t, issues.Empty())
	assert.Empty(t, res.Regions)
}

func TestUpdateLineText(t *testing.T) {
	as := testAssembler()
	res, _, err := as.Assemble(testInput())
	require.NoError(t, err)

	require.NoError(t, as.UpdateLineText(&res, "region_0001", "line_0001", "Исправлено"))
	assert.Equal(t, "Исправлено", res.Regions[0].Lines[0].Text)
	assert.Equal(t, "Исправлено\nсвидетельство", res.Regions[0].ConcatenatedText)

	// Coordinates and crop references survive the edit.
	assert.Equal(t, 10, res.Regions[0].Coordinates.MinX)
	assert.Equal(t, "letter_001_region_000_000.jpg", res.Regions[0].Lines[0].CroppedImage.Filename)

	assert.ErrorIs(t, as.UpdateLineText(&res, "no-such-region", "line_0001", "x"), ErrRegionNotFound)
	assert.ErrorIs(t, as.UpdateLineText(&res, "region_0001", "no-such-line", "x"), ErrLineNotFound)
}
