//go:build onnx
// +build onnx

package inference

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/glue-features/gluefeat/features"

	ort "github.com/yalue/onnxruntime_go"
)

type inputKind int

const (
	inputIDs inputKind = iota
	inputMask
	inputSegments
)

// onnxClassifier feeds input_ids, attention_mask and token_type_ids tensors
// to a dynamic ONNX Runtime session and reads the first float output.
type onnxClassifier struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	inputs  []inputKind
	opts    Options
}

// NewONNXClassifier opens modelPath and binds its inputs by name.
func NewONNXClassifier(modelPath string, opts Options) (Classifier, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("onnx model path is required")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	ins, outs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("get IO info: %w", err)
	}

	var inputNames []string
	var kinds []inputKind
	for _, ii := range ins {
		n := strings.ToLower(ii.Name)
		switch {
		case strings.Contains(n, "input_ids") || n == "ids":
			kinds = append(kinds, inputIDs)
		case strings.Contains(n, "attention_mask") || n == "mask":
			kinds = append(kinds, inputMask)
		case strings.Contains(n, "token_type") || strings.Contains(n, "segment"):
			kinds = append(kinds, inputSegments)
		default:
			return nil, fmt.Errorf("unsupported model input %q", ii.Name)
		}
		inputNames = append(inputNames, ii.Name)
	}
	if len(inputNames) == 0 {
		return nil, fmt.Errorf("could not determine ONNX input names")
	}

	var outputNames []string
	for _, oi := range outs {
		if oi.DataType == ort.TensorElementDataTypeFloat {
			outputNames = append(outputNames, oi.Name)
			break
		}
	}
	if len(outputNames) == 0 {
		return nil, fmt.Errorf("could not determine ONNX output name")
	}

	sessionOpts, err := sessionOptions(opts)
	if err != nil {
		return nil, err
	}
	s, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, sessionOpts)
	if sessionOpts != nil {
		_ = sessionOpts.Destroy()
	}
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return &onnxClassifier{session: s, inputs: kinds, opts: opts}, nil
}

// sessionOptions returns nil for the default CPU provider.
func sessionOptions(opts Options) (*ort.SessionOptions, error) {
	ep := opts.provider()
	if ep == "" || ep == "cpu" {
		return nil, nil
	}
	o, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	_ = o.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)
	switch ep {
	case "cuda":
		if cu, e := ort.NewCUDAProviderOptions(); e == nil {
			_ = o.AppendExecutionProviderCUDA(cu)
			_ = cu.Destroy()
		}
	case "tensorrt":
		if trt, e := ort.NewTensorRTProviderOptions(); e == nil {
			_ = o.AppendExecutionProviderTensorRT(trt)
			_ = trt.Destroy()
		}
	case "coreml":
		_ = o.AppendExecutionProviderCoreMLV2(map[string]string{})
	case "dml":
		_ = o.AppendExecutionProviderDirectML(opts.DeviceID)
	default:
		_ = o.Destroy()
		return nil, fmt.Errorf("unknown execution provider %q", opts.ExecutionProvider)
	}
	return o, nil
}

func (c *onnxClassifier) Logits(ctx context.Context, feats []features.Feature) ([][]float32, error) {
	out := make([][]float32, 0, len(feats))
	for _, r := range chunks(len(feats), c.opts.batchSize()) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := c.run(feats[r[0]:r[1]])
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (c *onnxClassifier) run(feats []features.Feature) ([][]float32, error) {
	b, err := flatten(feats)
	if err != nil {
		return nil, err
	}
	shape := ort.NewShape(int64(b.rows), int64(b.seq))

	inVals := make([]ort.Value, len(c.inputs))
	for i, kind := range c.inputs {
		data := b.ids
		switch kind {
		case inputMask:
			data = b.mask
		case inputSegments:
			data = b.segments
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("input tensor: %w", err)
		}
		defer t.Destroy()
		inVals[i] = t
	}

	outs := make([]ort.Value, 1)
	c.mu.Lock()
	err = c.session.Run(inVals, outs)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		for _, v := range outs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	t, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type")
	}
	data := t.GetData()
	outShape := t.GetShape()
	if len(outShape) != 2 || int(outShape[0]) != b.rows {
		return nil, fmt.Errorf("unexpected output shape %v", outShape)
	}
	cols := int(outShape[1])
	logits := make([][]float32, b.rows)
	for r := range logits {
		row := make([]float32, cols)
		copy(row, data[r*cols:(r+1)*cols])
		logits[r] = row
	}
	return logits, nil
}

func (c *onnxClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.session = nil
	return err
}
