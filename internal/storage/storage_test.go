package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-ocr/quill/internal/document"
)

func TestSanitizeScanID(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"letter_001", "letter_001"},
		{"Letter 001", "letter_001"},
		{"Fond 183 Opis 1", "fond_183_opis_1"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.out, SanitizeScanID(c.in))
	}
}

func TestOpenCreatesLayout(t *testing.T) {
	base := filepath.Join(t.TempDir(), "workspace")
	s, err := Open(base)
	require.NoError(t, err)
	assert.Equal(t, base, s.Base())

	for _, dir := range []string{"input_scans", "cropped_images", "results", "xml_intermediate", "logs", "status"} {
		fi, err := os.Stat(filepath.Join(base, dir))
		require.NoError(t, err, dir)
		assert.True(t, fi.IsDir())
	}
}

func TestSaveInputScan(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "original.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg-bytes"), 0o644))

	stored, err := s.SaveInputScan(src, "Letter 001")
	require.NoError(t, err)
	assert.Equal(t, s.InputScanPath("letter_001"), stored)

	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestWriteInputScan(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	stored, err := s.WriteInputScan([]byte("uploaded"), "Upload 01")
	require.NoError(t, err)
	assert.Equal(t, s.InputScanPath("upload_01"), stored)

	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "uploaded", string(data))
}

func TestResultRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	res := document.Result{
		Scan: document.Scan{
			ID:                  "letter_001",
			ImagePath:           "/scans/letter_001.jpg",
			Dimensions:          document.Dimensions{Width: 1000, Height: 1400},
			ProcessingTimestamp: "2024-05-17T10:30:00Z",
		},
		Regions: []document.Region{
			{ID: "r1", Type: "paragraph", ConcatenatedText: "Милостивый государь"},
		},
		CroppedImages: []document.CroppedImage{},
	}

	path, err := s.SaveResult(res)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "letter_001_result.json"))

	// Cyrillic text is stored as UTF-8, not escaped.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Милостивый государь")

	loaded, err := s.LoadResult("letter_001")
	require.NoError(t, err)
	assert.Equal(t, res.Scan.ID, loaded.Scan.ID)
	require.Len(t, loaded.Regions, 1)
	assert.Equal(t, "Милостивый государь", loaded.Regions[0].ConcatenatedText)
}

func TestLoadResultMissing(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.LoadResult("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestXMLIntermediateRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	path, err := s.SaveXMLIntermediate([]byte("<PcGts/>"), "letter_001", "layout")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "letter_001_layout.xml"))

	data, err := s.LoadXMLIntermediate("letter_001", "layout")
	require.NoError(t, err)
	assert.Equal(t, "<PcGts/>", string(data))
}

func TestListScans(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"b_scan", "a_scan"} {
		require.NoError(t, os.WriteFile(s.InputScanPath(id), []byte("x"), 0o644))
	}

	ids, err := s.ListScans()
	require.NoError(t, err)
	assert.Equal(t, []string{"a_scan", "b_scan"}, ids)
}

func TestCleanupScan(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.InputScanPath("letter_001"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.CroppedImagesDir(), "letter_001_region_000_000.jpg"), []byte("x"), 0o644))
	_, err = s.SaveXMLIntermediate([]byte("<PcGts/>"), "letter_001", "layout")
	require.NoError(t, err)
	_, err = s.SaveResult(document.Result{Scan: document.Scan{ID: "letter_001"}})
	require.NoError(t, err)

	// A second scan's files survive the cleanup.
	require.NoError(t, os.WriteFile(s.InputScanPath("letter_002"), []byte("x"), 0o644))

	require.NoError(t, s.CleanupScan("letter_001"))

	ids, err := s.ListScans()
	require.NoError(t, err)
	assert.Equal(t, []string{"letter_002"}, ids)

	_, err = s.LoadResult("letter_001")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	// Cleaning an already-clean scan is not an error.
	require.NoError(t, s.CleanupScan("letter_001"))
}

func TestInfo(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.InputScanPath("a"), []byte("12345"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.CroppedImagesDir(), "a_region_000_000.jpg"), []byte("123"), 0o644))
	_, err = s.SaveResult(document.Result{Scan: document.Scan{ID: "a"}})
	require.NoError(t, err)
	_, err = s.SaveLog([]byte("log line"), "a")
	require.NoError(t, err)

	info, err := s.Info()
	require.NoError(t, err)
	assert.Equal(t, s.Base(), info.BasePath)
	assert.Equal(t, 1, info.InputScans)
	assert.Equal(t, 1, info.CroppedImages)
	assert.Equal(t, 0, info.XMLFiles)
	assert.Equal(t, 1, info.ResultFiles)
	assert.Equal(t, 1, info.LogFiles)
	assert.Greater(t, info.TotalSizeBytes, int64(0))
}
