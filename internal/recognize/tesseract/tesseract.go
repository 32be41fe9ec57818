// Package tesseract backs the recognize.Engine contract with the
// gosseract client. Importing it makes Tesseract the default engine.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/quill-ocr/quill/internal/recognize"
)

func init() {
	recognize.SetDefaultEngine(New())
}

// Engine implements recognize.Engine and recognize.BatchEngine using a
// gosseract client per call.
type Engine struct {
	clientFactory func() *gosseract.Client
	dataPath      string
}

// New constructs a Tesseract-backed engine using the resolved tessdata
// directory.
func New() *Engine {
	return &Engine{
		clientFactory: gosseract.NewClient,
		dataPath:      DataPath(""),
	}
}

// WithDataPath overrides the tessdata directory.
func (e *Engine) WithDataPath(path string) *Engine {
	e.dataPath = path
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs OCR on a single line crop.
func (e *Engine) Recognize(ctx context.Context, in recognize.Input) (recognize.Result, error) {
	c := e.clientFactory()
	defer func() { _ = c.Close() }()
	return e.recognizeWithClient(ctx, c, in)
}

// RecognizeBatch processes a region's crops on one client instance to
// amortize setup costs. Inputs are processed sequentially.
func (e *Engine) RecognizeBatch(ctx context.Context, inputs []recognize.Input) ([]recognize.Result, error) {
	c := e.clientFactory()
	defer func() { _ = c.Close() }()

	results := make([]recognize.Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := e.recognizeWithClient(ctx, c, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) recognizeWithClient(_ context.Context, c *gosseract.Client, in recognize.Input) (recognize.Result, error) {
	if e.dataPath != "" {
		if err := c.SetTessdataPrefix(e.dataPath); err != nil {
			return recognize.Result{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return recognize.Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return recognize.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return recognize.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range in.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return recognize.Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return recognize.Result{}, fmt.Errorf("recognize text: %w", err)
	}

	return recognize.Result{
		InputID:    in.ID,
		Text:       strings.TrimSpace(text),
		Confidence: wordConfidence(c),
	}, nil
}

// wordConfidence averages per-word confidences, scaled to 0..1.
func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
