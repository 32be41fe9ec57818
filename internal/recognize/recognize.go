// Package recognize defines the pluggable OCR engine contract used when
// PAGE XML supplies line geometry without recognized text. Engines get
// an encoded line crop and return the text with a 0..1 confidence.
package recognize

import (
	"context"
	"fmt"
)

// Input is a single line crop submitted for recognition.
type Input struct {
	// ID is a caller-provided identifier, echoed back in the Result.
	ID string

	// Image is the encoded crop (JPEG or PNG).
	Image []byte

	// Languages lists trained-data hints, e.g. "rus", "deu".
	Languages []string

	// DPI carries the effective dots-per-inch; zero means unknown.
	DPI int

	// Variables passes engine-specific knobs (e.g. "tessedit_pageseg_mode")
	// without hard-coding them into the API surface.
	Variables map[string]string
}

// Result is the recognized text for one input.
type Result struct {
	InputID    string
	Text       string
	Confidence float64
}

// Engine is the OCR provider contract: one line crop in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Result, error)
}

// BatchEngine handles multiple crops in one call, for providers that
// amortize client setup across a region's lines.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}

var defaultEngine Engine = noopEngine{}

// DefaultEngine returns the registered default engine. Importing the
// tesseract subpackage replaces the initial no-op engine.
func DefaultEngine() Engine { return defaultEngine }

// SetDefaultEngine replaces the default engine.
func SetDefaultEngine(e Engine) { defaultEngine = e }

// RecognizeAll runs every input through the engine, using batch mode
// when the engine supports it.
func RecognizeAll(ctx context.Context, engine Engine, inputs []Input) ([]Result, error) {
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// noopEngine returns empty text, leaving lines as the layout gave them.
type noopEngine struct{}

func (noopEngine) Name() string { return "noop" }

func (noopEngine) Recognize(_ context.Context, in Input) (Result, error) {
	return Result{InputID: in.ID}, nil
}
