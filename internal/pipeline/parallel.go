package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"runtime"
	"sync"

	"github.com/quill-ocr/quill/internal/assemble"
	"github.com/quill-ocr/quill/internal/crop"
	"github.com/quill-ocr/quill/internal/mempool"
	"github.com/quill-ocr/quill/internal/recognize"
)

// regionJob is a single region recognition job.
type regionJob struct {
	index  int
	region assemble.RegionInput
}

// regionResult is the outcome of recognizing one region's lines.
type regionResult struct {
	index  int
	region assemble.RegionInput
	err    error
}

// recognizeRegions fills missing line text across all regions using a
// bounded worker pool, returning regions in their input order. A failed
// region keeps its layout-supplied lines and contributes an error.
func (p *Pipeline) recognizeRegions(ctx context.Context, src image.Image, regions []assemble.RegionInput) ([]assemble.RegionInput, []error) {
	if len(regions) == 0 {
		return regions, nil
	}

	workers := p.cfg.RegionWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(regions) {
		workers = len(regions)
	}

	if p.cfg.Progress != nil {
		p.cfg.Progress.OnStart(len(regions))
		defer p.cfg.Progress.OnComplete()
	}

	if workers == 1 || len(regions) == 1 {
		return p.recognizeRegionsSequential(ctx, src, regions)
	}

	jobs := make(chan regionJob, len(regions))
	results := make(chan regionResult, len(regions))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.regionWorker(ctx, src, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, reg := range regions {
			select {
			case jobs <- regionJob{index: i, region: reg}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]assemble.RegionInput, len(regions))
	copy(out, regions)
	var failures []error
	processed := 0

	for res := range results {
		processed++
		if res.err != nil {
			failures = append(failures, fmt.Errorf("region %q: %w", regions[res.index].ID, res.err))
			if p.cfg.Progress != nil {
				p.cfg.Progress.OnError(processed, res.err)
			}
		} else {
			out[res.index] = res.region
		}
		if p.cfg.Progress != nil {
			p.cfg.Progress.OnProgress(processed, len(regions))
		}
	}

	return out, failures
}

// recognizeRegionsSequential is the single-worker fallback.
func (p *Pipeline) recognizeRegionsSequential(ctx context.Context, src image.Image, regions []assemble.RegionInput) ([]assemble.RegionInput, []error) {
	out := make([]assemble.RegionInput, len(regions))
	copy(out, regions)
	var failures []error

	for i, reg := range regions {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		recognized, err := p.recognizeRegion(ctx, src, reg)
		if err != nil {
			failures = append(failures, fmt.Errorf("region %q: %w", reg.ID, err))
			if p.cfg.Progress != nil {
				p.cfg.Progress.OnError(i+1, err)
			}
		} else {
			out[i] = recognized
		}
		if p.cfg.Progress != nil {
			p.cfg.Progress.OnProgress(i+1, len(regions))
		}
	}
	return out, failures
}

// regionWorker processes regions from the jobs channel.
func (p *Pipeline) regionWorker(
	ctx context.Context,
	src image.Image,
	jobs <-chan regionJob,
	results chan<- regionResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}

			region, err := p.recognizeRegion(ctx, src, job.region)

			select {
			case results <- regionResult{index: job.index, region: region, err: err}:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// recognizeRegion runs the engine over the region's lines that need
// text. The returned region is a copy; the input is never mutated.
func (p *Pipeline) recognizeRegion(ctx context.Context, src image.Image, reg assemble.RegionInput) (assemble.RegionInput, error) {
	inputs := make([]recognize.Input, 0, len(reg.Lines))
	targets := make([]int, 0, len(reg.Lines))

	for i, li := range reg.Lines {
		if li.Text != "" && !p.cfg.Recognition.Force {
			continue
		}
		cut, _, err := p.cropper.Line(src, li.Coords)
		if errors.Is(err, crop.ErrNoGeometry) {
			continue
		}
		if err != nil {
			return reg, fmt.Errorf("line %q: %w", li.ID, err)
		}
		data, err := encodePNG(cut)
		if err != nil {
			return reg, fmt.Errorf("line %q: %w", li.ID, err)
		}
		inputs = append(inputs, recognize.Input{
			ID:        li.ID,
			Image:     data,
			Languages: p.cfg.Recognition.Languages,
			DPI:       p.cfg.Recognition.DPI,
			Variables: p.cfg.Recognition.Variables,
		})
		targets = append(targets, i)
	}
	if len(inputs) == 0 {
		return reg, nil
	}

	results, err := recognize.RecognizeAll(ctx, p.engine, inputs)
	if err != nil {
		return reg, err
	}
	linesRecognized.Add(float64(len(results)))

	out := reg
	out.Lines = append([]assemble.LineInput(nil), reg.Lines...)
	for k, res := range results {
		line := &out.Lines[targets[k]]
		line.Text = res.Text
		line.Confidence = res.Confidence
	}
	return out, nil
}

// encodePNG renders the crop losslessly for the OCR engine.
func encodePNG(img image.Image) ([]byte, error) {
	buf := mempool.GetBuffer()
	defer mempool.PutBuffer(buf)
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}
