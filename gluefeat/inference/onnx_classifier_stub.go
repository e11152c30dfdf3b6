//go:build !onnx
// +build !onnx

package inference

// NewONNXClassifier is a stub used when built without the "onnx" build tag.
func NewONNXClassifier(modelPath string, opts Options) (Classifier, error) {
	return nil, ErrUnavailable
}
