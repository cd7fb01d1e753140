//go:build onnxrt

package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"xrayd/internal/preprocess"
	"xrayd/pkg/types"
)

// onnxBuilt indicates this binary was compiled with real ONNX support.
var onnxBuilt = true

var ortInit sync.Once

// onnxRuntime loads ONNX models through onnxruntime. The environment is
// initialized once per process and kept for its lifetime; sessions come and
// go with acquire/release.
type onnxRuntime struct{}

// NewONNXRuntime returns the onnxruntime-backed Runtime.
func NewONNXRuntime() Runtime { return &onnxRuntime{} }

func (r *onnxRuntime) Load(ctx context.Context, spec types.ModelSpec) (Session, error) {
	var initErr error
	ortInit.Do(func() {
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", initErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(spec.InputShape) == 0 {
		return nil, fmt.Errorf("model %s: missing input shape", spec.ID)
	}
	inputShape := ort.NewShape(spec.InputShape...)
	outputShape := ort.NewShape(1, int64(len(spec.Labels)))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, classifyLoadErr(err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, classifyLoadErr(err)
	}
	sess, err := ort.NewAdvancedSession(spec.Path,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, classifyLoadErr(err)
	}
	return &onnxSession{
		spec:   spec,
		sess:   sess,
		input:  inputTensor,
		output: outputTensor,
	}, nil
}

// classifyLoadErr maps allocation failures to the oom taxonomy so the
// loader's forced release-and-retry can trigger.
func classifyLoadErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "out of memory") || strings.Contains(msg, "alloc") {
		return ErrOutOfMemory(err.Error())
	}
	return err
}

type onnxSession struct {
	spec   types.ModelSpec
	sess   *ort.AdvancedSession
	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]
}

func (s *onnxSession) Predict(ctx context.Context, img *preprocess.Image) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	data := s.input.GetData()
	if len(data) != len(img.Tensor) {
		return Prediction{}, fmt.Errorf("model %s expects %d values, preprocessor produced %d", s.spec.ID, len(data), len(img.Tensor))
	}
	copy(data, img.Tensor)
	if err := s.sess.Run(); err != nil {
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}
	logits := make([]float32, len(s.output.GetData()))
	copy(logits, s.output.GetData())
	return Prediction{Scores: Softmax(logits)}, nil
}

func (s *onnxSession) Close() error {
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
	if s.sess != nil {
		s.sess.Destroy()
	}
	return nil
}
