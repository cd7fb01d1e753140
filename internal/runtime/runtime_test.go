package runtime

import (
	"context"
	"math"
	"testing"

	"xrayd/pkg/types"
)

func TestSoftmaxSumsToHundred(t *testing.T) {
	scores := Softmax([]float32{2.0, 1.0, 0.1})
	var sum float64
	for _, s := range scores {
		sum += s
	}
	if math.Abs(sum-100.0) > 1e-6 {
		t.Fatalf("sum = %f", sum)
	}
	if !(scores[0] > scores[1] && scores[1] > scores[2]) {
		t.Fatalf("order not preserved: %v", scores)
	}
}

func TestSoftmaxStableForLargeLogits(t *testing.T) {
	scores := Softmax([]float32{1000, 999, -1000})
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			t.Fatalf("unstable at %d: %v", i, scores)
		}
	}
	if scores[0] <= scores[1] {
		t.Fatalf("order not preserved: %v", scores)
	}
}

func TestSoftmaxEmpty(t *testing.T) {
	if got := Softmax(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestTopLabel(t *testing.T) {
	p := Prediction{Scores: []float64{10, 70, 20}}
	idx, label, conf := p.TopLabel([]string{"COVID", "Normal", "Pneumonia"})
	if idx != 1 || label != "Normal" || conf != 70 {
		t.Fatalf("got idx=%d label=%s conf=%f", idx, label, conf)
	}
}

func TestStubLoadFailsUnavailable(t *testing.T) {
	if onnxBuilt {
		t.Skip("built with real onnx runtime")
	}
	rt := NewONNXRuntime()
	_, err := rt.Load(context.Background(), types.ModelSpec{ID: "m"})
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestErrorPredicates(t *testing.T) {
	if !IsOutOfMemory(ErrOutOfMemory("arena exhausted")) {
		t.Fatalf("oom predicate")
	}
	if IsOutOfMemory(ErrUnavailable("x")) {
		t.Fatalf("predicates must not overlap")
	}
	if !IsUnavailable(ErrUnavailable("x")) {
		t.Fatalf("unavailable predicate")
	}
}
