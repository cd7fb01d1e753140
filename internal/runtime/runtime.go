// Package runtime abstracts the model execution backend. The engine and
// loader depend only on the interfaces here, so the orchestrator never
// branches on model identity: every architecture is "given a preprocessed
// tensor, return per-class scores".
package runtime

import (
	"context"
	"math"

	"xrayd/internal/preprocess"
	"xrayd/pkg/types"
)

// Runtime loads model weights into accelerator memory. Implementations
// (e.g., ONNX Runtime) should satisfy this interface.
type Runtime interface {
	// Load reads the weights declared by spec and returns a live session.
	// The session owns all accelerator memory for the model until Close.
	Load(ctx context.Context, spec types.ModelSpec) (Session, error)
}

// Session is one loaded model. Predict must be safe to call repeatedly;
// Close releases every accelerator buffer, including cached intermediates,
// before returning.
type Session interface {
	Predict(ctx context.Context, img *preprocess.Image) (Prediction, error)
	Close() error
}

// Explainer is an optional capability of sessions whose architecture has
// instrumented layers. Sessions without it cause explainability to fail
// softly upstream.
type Explainer interface {
	// Activations returns the final convolutional feature maps for img.
	Activations(ctx context.Context, img *preprocess.Image) (*Activations, error)
}

// Prediction is a single model's raw verdict.
type Prediction struct {
	// Per-class scores in label-space order, percent, summing to ~100.
	Scores []float64
}

// TopLabel returns the winning label index, its name, and its score.
func (p Prediction) TopLabel(labels []string) (int, string, float64) {
	best := 0
	for i, s := range p.Scores {
		if s > p.Scores[best] {
			best = i
		}
	}
	if best >= len(labels) {
		return best, "", p.Scores[best]
	}
	return best, labels[best], p.Scores[best]
}

// Activations holds cached convolutional feature maps: Maps[c] is one
// Height x Width plane in row-major order.
type Activations struct {
	Maps   [][]float32
	Height int
	Width  int
}

// Softmax converts raw logits to percent scores. Shared by adapters.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	max := logits[0]
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	exps := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - max))
		exps[i] = e
		sum += e
	}
	out := make([]float64, len(logits))
	for i, e := range exps {
		out[i] = e / sum * 100.0
	}
	return out
}
