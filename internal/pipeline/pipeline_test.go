package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Empty(t, cfg.StorageDir)
	assert.Equal(t, cfg.Aggregation.CropPadding, cfg.Crop.Padding, "paddings start in step")
	assert.True(t, cfg.Recognition.Enabled)
	assert.False(t, cfg.Recognition.Force)
	assert.Positive(t, cfg.RegionWorkers)
}

func TestBuilder_WithCropPadding(t *testing.T) {
	b := NewBuilder().WithCropPadding(12)

	cfg := b.Config()
	assert.Equal(t, 12, cfg.Crop.Padding)
	assert.Equal(t, 12, cfg.Aggregation.CropPadding, "aggregation padding follows crop padding")

	// Negative values are ignored.
	b.WithCropPadding(-1)
	assert.Equal(t, 12, b.Config().Crop.Padding)
}

func TestBuilder_WithTextDelimiter(t *testing.T) {
	b := NewBuilder().WithTextDelimiter(" ")
	assert.Equal(t, " ", b.Config().Aggregation.Text.Delimiter)

	// Empty keeps the previous delimiter.
	b.WithTextDelimiter("")
	assert.Equal(t, " ", b.Config().Aggregation.Text.Delimiter)
}

func TestBuilder_WithForceRecognition(t *testing.T) {
	b := NewBuilder().WithRecognition(false).WithForceRecognition(true)

	cfg := b.Config()
	assert.True(t, cfg.Recognition.Force)
	assert.True(t, cfg.Recognition.Enabled, "force implies enabled")
}

func TestBuilder_WithLanguages(t *testing.T) {
	b := NewBuilder().WithLanguages("rus", "", "eng")
	assert.Equal(t, []string{"rus", "eng"}, b.Config().Recognition.Languages)

	// All-empty input keeps the previous value.
	b.WithLanguages("")
	assert.Equal(t, []string{"rus", "eng"}, b.Config().Recognition.Languages)
}

func TestBuilder_Chaining(t *testing.T) {
	b := NewBuilder()
	result := b.WithCropPadding(3).
		WithRegionPadding(7).
		WithHyphenMerge(true).
		WithRequireRegions(true).
		WithCropQuality(80).
		WithDPI(300).
		WithRegionWorkers(2)

	assert.Equal(t, b, result, "setters return the same builder")

	cfg := b.Config()
	assert.Equal(t, 7, cfg.Aggregation.RegionPadding)
	assert.True(t, cfg.Aggregation.Text.MergeHyphenBreaks)
	assert.True(t, cfg.Aggregation.RequireRegions)
	assert.Equal(t, 80, cfg.Crop.Quality)
	assert.Equal(t, 300, cfg.Recognition.DPI)
	assert.Equal(t, 2, cfg.RegionWorkers)
}

func TestBuilder_Validate_OverlayWithoutDir(t *testing.T) {
	b := NewBuilder().WithOverlay(true, "")
	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlay")
}

func TestBuilder_Validate_OverlayWithStorage(t *testing.T) {
	b := NewBuilder().WithOverlay(true, "").WithStorageDir(t.TempDir())
	require.NoError(t, b.Validate())
}

func TestBuilder_Build(t *testing.T) {
	dir := t.TempDir()

	p, err := NewBuilder().
		WithStorageDir(dir).
		WithRecognition(false).
		Build()
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.NotNil(t, p.Store())
	assert.Equal(t, dir, p.Config().StorageDir)

	// The storage layout is created eagerly.
	assert.DirExists(t, filepath.Join(dir, "input_scans"))
	assert.DirExists(t, filepath.Join(dir, "results"))
}

func TestBuilder_Build_NoStorage(t *testing.T) {
	p, err := NewBuilder().WithRecognition(false).Build()
	require.NoError(t, err)
	assert.Nil(t, p.Store())
}

func TestBuilder_Build_InvalidConfig(t *testing.T) {
	_, err := NewBuilder().WithOverlay(true, "").Build()
	require.Error(t, err)
}

func TestPipeline_Info(t *testing.T) {
	p, err := NewBuilder().
		WithRecognition(false).
		WithCropPadding(4).
		WithRegionWorkers(3).
		Build()
	require.NoError(t, err)

	info := p.Info()
	assert.Equal(t, 4, info["crop_padding"])
	assert.Equal(t, 3, info["region_workers"])

	rec, ok := info["recognition"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, rec["enabled"])
	assert.Equal(t, "none", rec["engine"])
}
