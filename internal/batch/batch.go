// Package batch runs the scan pipeline over directories of scan images
// paired with PAGE XML layouts.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quill-ocr/quill/internal/common"
	"github.com/quill-ocr/quill/internal/pipeline"
	"github.com/quill-ocr/quill/internal/storage"
)

// ErrNoScans is returned when discovery finds no scan images at all.
var ErrNoScans = errors.New("no scan images found")

// Config holds batch processing settings.
type Config struct {
	// Paths lists the files and directories to discover scans under.
	Paths []string

	Discover DiscoverOptions

	// DestinationDir receives a copy of every {scan_id}_result.json.
	// Empty writes results only to the pipeline workspace.
	DestinationDir string

	// Workers bounds concurrently processed scans (0 = runtime.NumCPU()).
	Workers int

	// Progress receives scan-level progress across the batch.
	Progress pipeline.ProgressCallback
}

// ItemResult is the outcome for one discovered scan.
type ItemResult struct {
	Scan     Scan
	Result   *pipeline.ProcessResult
	Err      error
	Duration time.Duration
}

// Summary reports the batch outcome. Items keeps discovery order.
type Summary struct {
	Items     []ItemResult
	Processed int
	Failed    int
	Duration  time.Duration
	Workers   int
}

// Succeeded reports whether every scan processed cleanly.
func (s *Summary) Succeeded() bool { return s.Failed == 0 }

// FailedScans lists the items that did not produce a result.
func (s *Summary) FailedScans() []ItemResult {
	var out []ItemResult
	for _, item := range s.Items {
		if item.Err != nil {
			out = append(out, item)
		}
	}
	return out
}

func (s *Summary) String() string {
	return fmt.Sprintf("processed %d/%d scans in %v (%d workers, %d failed)",
		s.Processed, len(s.Items), s.Duration.Round(time.Millisecond), s.Workers, s.Failed)
}

// Runner drives the pipeline over a discovered set of scans.
type Runner struct {
	pipeline *pipeline.Pipeline
	cfg      Config
}

// New creates a batch runner on top of a built pipeline.
func New(p *pipeline.Pipeline, cfg Config) *Runner {
	return &Runner{pipeline: p, cfg: cfg}
}

// Run discovers and processes all scans under the configured paths.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	scans, err := DiscoverScans(r.cfg.Paths, r.cfg.Discover)
	if err != nil {
		return nil, err
	}
	return r.RunScans(ctx, scans)
}

// RunScans processes an explicit scan list with bounded concurrency.
//
// Scan failures never abort the batch; they are recorded on their item
// and counted in the summary. Only an empty scan list, an unusable
// destination directory, or context cancellation return an error.
func (r *Runner) RunScans(ctx context.Context, scans []Scan) (*Summary, error) {
	if len(scans) == 0 {
		return nil, ErrNoScans
	}
	if r.cfg.DestinationDir != "" {
		if err := os.MkdirAll(r.cfg.DestinationDir, 0o750); err != nil {
			return nil, fmt.Errorf("create destination: %w", err)
		}
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(scans) {
		workers = len(scans)
	}

	if r.cfg.Progress != nil {
		r.cfg.Progress.OnStart(len(scans))
		defer r.cfg.Progress.OnComplete()
	}
	slog.Info("Batch processing started", "scans", len(scans), "workers", workers)
	start := time.Now()

	items := make([]ItemResult, len(scans))
	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, scan := range scans {
		g.Go(func() error {
			item := r.processScan(gctx, scan)
			items[i] = item

			mu.Lock()
			completed++
			current := completed
			mu.Unlock()

			if r.cfg.Progress != nil {
				if item.Err != nil {
					r.cfg.Progress.OnError(current, item.Err)
				}
				r.cfg.Progress.OnProgress(current, len(scans))
			}
			return gctx.Err()
		})
	}
	waitErr := g.Wait()

	summary := &Summary{Items: items, Duration: time.Since(start), Workers: workers}
	for _, item := range items {
		switch {
		case item.Err != nil:
			summary.Failed++
		case item.Result != nil:
			summary.Processed++
		}
	}

	slog.Info("Batch processing finished",
		"processed", summary.Processed,
		"failed", summary.Failed,
		"duration_ms", summary.Duration.Milliseconds())
	slog.Debug("Batch memory", "stats", common.ReadMemoryStats().String())

	if waitErr != nil {
		return summary, waitErr
	}
	return summary, nil
}

// processScan runs one scan through the pipeline and exports the
// result to the destination directory when one is configured.
func (r *Runner) processScan(ctx context.Context, scan Scan) ItemResult {
	item := ItemResult{Scan: scan}
	start := time.Now()

	if scan.XMLPath == "" {
		item.Err = fmt.Errorf("scan %s: no sibling layout xml", scan.ImagePath)
		item.Duration = time.Since(start)
		return item
	}

	res, err := r.pipeline.ProcessScan(ctx, pipeline.ScanRequest{
		ScanID:    scan.ID,
		ImagePath: scan.ImagePath,
		XMLPath:   scan.XMLPath,
	})
	if err != nil {
		slog.Warn("Scan failed", "scan_id", scan.ID, "error", err)
		item.Err = fmt.Errorf("process %s: %w", scan.ImagePath, err)
		item.Duration = time.Since(start)
		return item
	}
	item.Result = res

	if r.cfg.DestinationDir != "" {
		dst := filepath.Join(r.cfg.DestinationDir, res.Document.Scan.ID+"_result.json")
		if err := storage.WriteResultFile(dst, res.Document); err != nil {
			item.Err = err
		}
	}
	item.Duration = time.Since(start)
	return item
}
