//go:build !onnxrt

package runtime

import (
	"context"

	"xrayd/pkg/types"
)

// onnxBuilt indicates whether this binary was compiled with real ONNX
// support. The stub keeps the daemon buildable without the onnxruntime
// shared library installed.
var onnxBuilt = false

type stubRuntime struct{}

// NewONNXRuntime returns a stub when built without -tags=onnxrt. Load fails
// fast with a runtime-unavailable error; no mocking.
func NewONNXRuntime() Runtime { return stubRuntime{} }

func (stubRuntime) Load(ctx context.Context, spec types.ModelSpec) (Session, error) {
	return nil, ErrUnavailable("onnxruntime not compiled in: rebuild with -tags=onnxrt")
}
