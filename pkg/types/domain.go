package types

// ModelSpec describes one registered classification model. Specs are built
// from the manifest at process start and never mutated afterwards.
type ModelSpec struct {
	// Stable identifier for the model.
	// example: densenet121-chest
	ID string `json:"id" yaml:"id" example:"densenet121-chest"`
	// Human-friendly name.
	// example: DenseNet-121 (chest X-ray)
	Name string `json:"name,omitempty" yaml:"name" example:"DenseNet-121 (chest X-ray)"`
	// Absolute path to the weight file on disk.
	// example: /srv/models/densenet121.onnx
	Path string `json:"path" yaml:"path" example:"/srv/models/densenet121.onnx"`
	// Optional architecture family (e.g., densenet, resnet, vgg).
	// example: densenet
	Family string `json:"family,omitempty" yaml:"family" example:"densenet"`
	// Expected input tensor shape, NCHW.
	// example: [1,3,224,224]
	InputShape []int64 `json:"input_shape" yaml:"input_shape"`
	// Ordered label space. All registered models must share the same labels
	// in the same order for consensus to be well-defined.
	Labels []string `json:"labels" yaml:"labels"`
	// Estimated accelerator memory footprint in MB. Zero means "estimate
	// from the weight file size".
	// example: 1200
	MemoryMB int `json:"memory_mb,omitempty" yaml:"memory_mb" example:"1200"`
}

// InputSize returns the spatial side length of the expected input, assuming
// a square NCHW shape. Falls back to 224 when the shape is malformed.
func (s ModelSpec) InputSize() int {
	if len(s.InputShape) == 4 && s.InputShape[3] > 0 {
		return int(s.InputShape[3])
	}
	return 224
}
