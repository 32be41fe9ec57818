// Package pipeline orchestrates scan processing: loading the scan
// image, parsing its PAGE XML layout, recognizing missing line text,
// cutting and saving line crops, aggregating regions and persisting the
// assembled result document.
package pipeline

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/quill-ocr/quill/internal/assemble"
	"github.com/quill-ocr/quill/internal/crop"
	"github.com/quill-ocr/quill/internal/recognize"
	"github.com/quill-ocr/quill/internal/storage"
)

// RecognitionConfig controls when and how missing line text is OCR'd.
type RecognitionConfig struct {
	// Enabled turns recognition on for lines without text.
	Enabled bool

	// Force re-recognizes every line, replacing layout-supplied text.
	Force bool

	// Languages lists trained-data hints passed to the engine.
	Languages []string

	// DPI is forwarded to the engine; zero means unknown.
	DPI int

	// Variables passes engine-specific knobs.
	Variables map[string]string
}

// OverlayConfig controls rendering of review overlays.
type OverlayConfig struct {
	// Enabled renders an overlay image with region and crop outlines.
	Enabled bool

	// Dir receives {scan_id}_overlay.jpg files. Empty falls back to an
	// overlays directory under the storage base.
	Dir string
}

// Config holds configuration for the scan pipeline and its components.
type Config struct {
	// StorageDir is the workspace base. Empty disables persistence and
	// crop saving; the pipeline then only assembles in memory.
	StorageDir string

	Aggregation assemble.Options
	Crop        crop.Options
	Recognition RecognitionConfig
	Overlay     OverlayConfig

	// RegionWorkers bounds parallel per-region recognition
	// (0 = runtime.NumCPU()).
	RegionWorkers int

	// Progress receives region-level progress during a scan.
	Progress ProgressCallback
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Aggregation:   assemble.DefaultOptions(),
		Crop:          crop.DefaultOptions(),
		Recognition:   RecognitionConfig{Enabled: true},
		RegionWorkers: runtime.NumCPU(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg    Config
	engine recognize.Engine
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithStorageDir sets the workspace base directory for persistence.
func (b *Builder) WithStorageDir(dir string) *Builder {
	b.cfg.StorageDir = dir
	return b
}

// WithCropPadding sets the pixel padding for line crops, keeping the
// aggregation and the cropper in step.
func (b *Builder) WithCropPadding(pad int) *Builder {
	if pad >= 0 {
		b.cfg.Aggregation.CropPadding = pad
		b.cfg.Crop.Padding = pad
	}
	return b
}

// WithRegionPadding sets the padding reported in region coordinates.
func (b *Builder) WithRegionPadding(pad int) *Builder {
	if pad >= 0 {
		b.cfg.Aggregation.RegionPadding = pad
	}
	return b
}

// WithTextDelimiter sets the join delimiter for concatenated text.
func (b *Builder) WithTextDelimiter(delim string) *Builder {
	if delim != "" {
		b.cfg.Aggregation.Text.Delimiter = delim
	}
	return b
}

// WithHyphenMerge toggles merging of hyphenated line breaks.
func (b *Builder) WithHyphenMerge(enabled bool) *Builder {
	b.cfg.Aggregation.Text.MergeHyphenBreaks = enabled
	return b
}

// WithRequireRegions makes scans with an empty layout fail.
func (b *Builder) WithRequireRegions(required bool) *Builder {
	b.cfg.Aggregation.RequireRegions = required
	return b
}

// WithCropQuality sets the JPEG quality for saved crops.
func (b *Builder) WithCropQuality(q int) *Builder {
	if q > 0 {
		b.cfg.Crop.Quality = q
	}
	return b
}

// WithRecognition toggles OCR for lines without text.
func (b *Builder) WithRecognition(enabled bool) *Builder {
	b.cfg.Recognition.Enabled = enabled
	return b
}

// WithForceRecognition re-recognizes every line regardless of
// layout-supplied text.
func (b *Builder) WithForceRecognition(force bool) *Builder {
	b.cfg.Recognition.Force = force
	if force {
		b.cfg.Recognition.Enabled = true
	}
	return b
}

// WithLanguages sets recognition language hints.
func (b *Builder) WithLanguages(langs ...string) *Builder {
	cleaned := make([]string, 0, len(langs))
	for _, l := range langs {
		if l != "" {
			cleaned = append(cleaned, l)
		}
	}
	if len(cleaned) > 0 {
		b.cfg.Recognition.Languages = cleaned
	}
	return b
}

// WithDPI sets the scan resolution hint forwarded to the engine.
func (b *Builder) WithDPI(dpi int) *Builder {
	if dpi > 0 {
		b.cfg.Recognition.DPI = dpi
	}
	return b
}

// WithEngine overrides the OCR engine. Nil keeps the registered default.
func (b *Builder) WithEngine(e recognize.Engine) *Builder {
	b.engine = e
	return b
}

// WithOverlay enables review overlay rendering into dir.
func (b *Builder) WithOverlay(enabled bool, dir string) *Builder {
	b.cfg.Overlay.Enabled = enabled
	if dir != "" {
		b.cfg.Overlay.Dir = dir
	}
	return b
}

// WithRegionWorkers bounds parallel per-region recognition.
func (b *Builder) WithRegionWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.RegionWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for scan processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Progress = callback
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration is usable.
func (b *Builder) Validate() error {
	if b.cfg.Crop.Padding != b.cfg.Aggregation.CropPadding {
		return errors.New("crop padding and aggregation crop padding differ")
	}
	if b.cfg.Overlay.Enabled && b.cfg.Overlay.Dir == "" && b.cfg.StorageDir == "" {
		return errors.New("overlay enabled without an overlay or storage directory")
	}
	if b.cfg.RegionWorkers < 0 {
		return errors.New("region workers must not be negative")
	}
	return nil
}

// Pipeline wires together cropping, recognition, aggregation and storage.
type Pipeline struct {
	cfg       Config
	assembler *assemble.Assembler
	cropper   *crop.Cropper
	engine    recognize.Engine
	store     *storage.Store
}

// Build initializes the pipeline components.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:       b.cfg,
		assembler: assemble.NewAssembler(b.cfg.Aggregation),
		cropper:   crop.New(b.cfg.Crop),
		engine:    b.engine,
	}
	if p.engine == nil && b.cfg.Recognition.Enabled {
		p.engine = recognize.DefaultEngine()
	}

	if b.cfg.StorageDir != "" {
		store, err := storage.Open(b.cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		p.store = store
	}
	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Store exposes the workspace store, or nil when persistence is off.
func (p *Pipeline) Store() *storage.Store { return p.store }

// Info returns a map with key pipeline properties.
func (p *Pipeline) Info() map[string]interface{} {
	info := map[string]interface{}{
		"storage_dir":    p.cfg.StorageDir,
		"crop_padding":   p.cfg.Crop.Padding,
		"region_padding": p.cfg.Aggregation.RegionPadding,
		"region_workers": p.cfg.RegionWorkers,
		"delimiter":      p.cfg.Aggregation.Text.Delimiter,
		"hyphen_merge":   p.cfg.Aggregation.Text.MergeHyphenBreaks,
	}
	engineName := "none"
	if p.engine != nil {
		engineName = p.engine.Name()
	}
	info["recognition"] = map[string]interface{}{
		"enabled":   p.cfg.Recognition.Enabled,
		"force":     p.cfg.Recognition.Force,
		"engine":    engineName,
		"languages": p.cfg.Recognition.Languages,
	}
	info["overlay"] = map[string]interface{}{
		"enabled": p.cfg.Overlay.Enabled,
		"dir":     p.overlayDir(),
	}
	return info
}
