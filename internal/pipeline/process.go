package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quill-ocr/quill/internal/assemble"
	"github.com/quill-ocr/quill/internal/common"
	"github.com/quill-ocr/quill/internal/document"
	"github.com/quill-ocr/quill/internal/geometry"
	"github.com/quill-ocr/quill/internal/pagexml"
	"github.com/quill-ocr/quill/internal/storage"
	"github.com/quill-ocr/quill/internal/utils"
)

// ScanRequest identifies one scan to process. The image and the PAGE
// XML layout can each come from a path or from an in-memory payload;
// payloads win when both are set.
type ScanRequest struct {
	ScanID    string
	ImagePath string
	XMLPath   string
	ImageData []byte
	XMLData   []byte
}

// StageTiming carries per-stage durations for one processed scan.
type StageTiming struct {
	Load      time.Duration `json:"load_ns"`
	Parse     time.Duration `json:"parse_ns"`
	Recognize time.Duration `json:"recognize_ns"`
	Crop      time.Duration `json:"crop_ns"`
	Assemble  time.Duration `json:"assemble_ns"`
	Persist   time.Duration `json:"persist_ns"`
	Total     time.Duration `json:"total_ns"`
}

// ProcessResult is the outcome of processing one scan.
type ProcessResult struct {
	Document document.Result
	Issues   assemble.Issues

	// RecognitionFailures lists regions whose OCR failed; their lines
	// keep the layout-supplied text.
	RecognitionFailures []error

	// ResultPath and OverlayPath are set when persistence respectively
	// overlay rendering are configured.
	ResultPath  string
	OverlayPath string

	Timing StageTiming
}

// ProcessScan runs the full pipeline for one scan: load the image,
// parse the PAGE XML, recognize missing line text, save line crops,
// aggregate and assemble the result document, and persist it.
//
// Region-level problems never abort the scan; they surface in
// Issues and RecognitionFailures. Only structural problems return an
// error: unreadable inputs, an empty scan id, or an empty layout when
// regions are required.
func (p *Pipeline) ProcessScan(ctx context.Context, req ScanRequest) (res *ProcessResult, err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		scansProcessed.WithLabelValues(status).Inc()
	}()

	scanID := scanIDFromRequest(req)
	slog.Debug("Starting scan processing", "scan_id", scanID)

	sw := common.NewStopwatch()
	timing := StageTiming{}

	img, width, height, err := p.loadImage(req)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", scanID, err)
	}
	timing.Load = sw.Lap("load")

	doc, err := p.parseLayout(req)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", scanID, err)
	}
	if doc.Width > 0 && doc.Height > 0 && (doc.Width != width || doc.Height != height) {
		slog.Warn("Layout dimensions disagree with image",
			"scan_id", scanID,
			"layout", fmt.Sprintf("%dx%d", doc.Width, doc.Height),
			"image", fmt.Sprintf("%dx%d", width, height))
	}
	regions := regionInputs(doc)
	timing.Parse = sw.Lap("parse")
	slog.Debug("Layout parsed", "scan_id", scanID, "regions", len(regions))

	var recFailures []error
	if p.engine != nil && p.cfg.Recognition.Enabled {
		regions, recFailures = p.recognizeRegions(ctx, img, regions)
		for _, rerr := range recFailures {
			slog.Warn("Region recognition failed", "scan_id", scanID, "error", rerr)
		}
	}
	timing.Recognize = sw.Lap("recognize")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var crops assemble.CropSet
	localPath := ""
	if p.store != nil {
		cropRes, cerr := p.cropper.SaveRegionCrops(img, scanID, cropSafeRegions(regions), p.store.CroppedImagesDir())
		if cerr != nil {
			return nil, fmt.Errorf("scan %q: %w", scanID, cerr)
		}
		crops = cropRes.Crops
		slog.Debug("Crops saved", "scan_id", scanID, "saved", cropRes.Saved, "skipped", cropRes.Skipped)

		localPath, err = p.storeInput(req, scanID)
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", scanID, err)
		}
	}
	timing.Crop = sw.Lap("crop")

	imagePath := req.ImagePath
	if imagePath == "" {
		imagePath = doc.ImageFilename
	}
	assembled, issues, err := p.assembler.Assemble(assemble.Input{
		Scan: assemble.ScanInfo{
			ID:        scanID,
			ImagePath: imagePath,
			LocalPath: localPath,
			Width:     width,
			Height:    height,
		},
		Regions: regions,
		Crops:   crops,
	})
	if err != nil {
		return nil, err
	}
	timing.Assemble = sw.Lap("assemble")
	regionsPerScan.Observe(float64(len(assembled.Regions)))
	regionFailures.Add(float64(len(issues.RegionFailures)))
	for _, ierr := range issues.Errors() {
		slog.Warn("Assembly issue", "scan_id", scanID, "error", ierr)
	}

	out := &ProcessResult{
		Document:            assembled,
		Issues:              issues,
		RecognitionFailures: recFailures,
	}

	if p.store != nil {
		out.ResultPath, err = p.store.SaveResult(assembled)
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", scanID, err)
		}
	}
	if p.cfg.Overlay.Enabled {
		overlayPath := filepath.Join(p.overlayDir(), scanID+"_overlay.jpg")
		if err := SaveOverlay(img, &assembled, overlayPath); err != nil {
			return nil, fmt.Errorf("scan %q: render overlay: %w", scanID, err)
		}
		out.OverlayPath = overlayPath
	}
	timing.Persist = sw.Lap("persist")

	timing.Total = sw.Total()
	out.Timing = timing
	scanDuration.Observe(timing.Total.Seconds())

	slog.Info("Scan processing completed",
		"scan_id", scanID,
		"regions", len(assembled.Regions),
		"region_failures", len(issues.RegionFailures),
		"crops", len(assembled.CroppedImages),
		"duration_ms", timing.Total.Milliseconds())

	return out, nil
}

// loadImage decodes the request's image payload or file.
func (p *Pipeline) loadImage(req ScanRequest) (image.Image, int, int, error) {
	if len(req.ImageData) > 0 {
		img, _, err := utils.DecodeImage(req.ImageData)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("decode image: %w", err)
		}
		b := img.Bounds()
		return img, b.Dx(), b.Dy(), nil
	}
	if req.ImagePath == "" {
		return nil, 0, 0, errors.New("no scan image provided")
	}
	img, meta, err := utils.LoadImage(req.ImagePath)
	if err != nil {
		return nil, 0, 0, err
	}
	return img, meta.Width, meta.Height, nil
}

// parseLayout decodes the request's PAGE XML payload or file.
func (p *Pipeline) parseLayout(req ScanRequest) (*pagexml.Document, error) {
	if len(req.XMLData) > 0 {
		return pagexml.Parse(bytes.NewReader(req.XMLData))
	}
	if req.XMLPath == "" {
		return nil, errors.New("no layout xml provided")
	}
	return pagexml.ParseFile(req.XMLPath)
}

// storeInput copies the scan image into the workspace.
func (p *Pipeline) storeInput(req ScanRequest, scanID string) (string, error) {
	if len(req.ImageData) > 0 {
		return p.store.WriteInputScan(req.ImageData, scanID)
	}
	return p.store.SaveInputScan(req.ImagePath, scanID)
}

// scanIDFromRequest resolves the scan identifier: the explicit id, the
// image filename stem, or a fresh UUID, in that order.
func scanIDFromRequest(req ScanRequest) string {
	if req.ScanID != "" {
		return storage.SanitizeScanID(req.ScanID)
	}
	if req.ImagePath != "" {
		stem := strings.TrimSuffix(filepath.Base(req.ImagePath), filepath.Ext(req.ImagePath))
		if stem != "" {
			return storage.SanitizeScanID(stem)
		}
	}
	return uuid.NewString()
}

// regionInputs converts the parsed layout to aggregation inputs.
func regionInputs(doc *pagexml.Document) []assemble.RegionInput {
	regions := make([]assemble.RegionInput, 0, len(doc.Regions))
	for _, r := range doc.Regions {
		lines := make([]assemble.LineInput, 0, len(r.Lines))
		for _, l := range r.Lines {
			lines = append(lines, assemble.LineInput{
				ID:         l.ID,
				Coords:     l.Coords,
				Text:       l.Text,
				Confidence: l.Confidence,
			})
		}
		regions = append(regions, assemble.RegionInput{ID: r.ID, Type: r.Type, Lines: lines})
	}
	return regions
}

// cropSafeRegions blanks the lines of regions containing malformed
// polygons, preserving indices so crop filenames stay positional.
// Aggregation isolates those regions with their own error markers.
func cropSafeRegions(regions []assemble.RegionInput) []assemble.RegionInput {
	out := make([]assemble.RegionInput, len(regions))
	for i, reg := range regions {
		out[i] = reg
		for _, li := range reg.Lines {
			if _, err := geometry.ParsePoints(li.Coords); err != nil {
				out[i].Lines = nil
				break
			}
		}
	}
	return out
}
