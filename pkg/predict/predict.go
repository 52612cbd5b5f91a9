// Package predict wraps a model's ONNX weights as an image operation, so
// prediction slots into the same pipeline as the declared pre- and
// post-processing steps.
package predict

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"

	"bioclassify/pkg/numpy"
	"bioclassify/pkg/ops"
	"bioclassify/pkg/spec"
	"bioclassify/pkg/tensor"
)

// Op runs a single-input, single-output ONNX model on image tensors. The
// underlying session holds native resources and must be released with Close.
//
// Sessions are created lazily on first Apply, once the tile shape is known,
// and recreated if a later input arrives with a different shape.
type Op struct {
	modelPath  string
	inputAxes  string
	outputAxes string
	padding    ops.Padding
	outChans   int

	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	rows, cols   int
	chans        int
	closed       bool
}

// New builds a prediction op from the descriptor's ONNX weights entry and
// its input/output tensor specs. The op's declared padding is the output
// halo at the spatial axes.
func New(modelPath string, input, output *spec.TensorSpec) (*Op, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx weights: %w", err)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initializing onnx runtime: %w", err)
	}
	op := &Op{
		modelPath:  modelPath,
		inputAxes:  input.Axes,
		outputAxes: output.Axes,
		padding:    haloPadding(output),
		outChans:   outputChannels(input, output),
	}
	return op, nil
}

// haloPadding converts the output tensor's declared halo into symmetric
// padding at the spatial axes. Outputs without a usable halo need none.
func haloPadding(output *spec.TensorSpec) ops.Padding {
	indX := output.AxisIndex('x')
	indY := output.AxisIndex('y')
	if len(output.Halo) == 0 || indX < 0 || indY < 0 ||
		indX >= len(output.Halo) || indY >= len(output.Halo) {
		return ops.Padding{}
	}
	return ops.Padding{
		X1: output.Halo[indX], X2: output.Halo[indX],
		Y1: output.Halo[indY], Y2: output.Halo[indY],
	}
}

// outputChannels derives the output channel count from the output spec's
// shape arrays, falling back to the input's channel count.
func outputChannels(input, output *spec.TensorSpec) int {
	if ind := output.AxisIndex('c'); ind >= 0 {
		if s := output.Shape.Shape(); ind < len(s) && s[ind] > 0 {
			return s[ind]
		}
		if m := output.Shape.Min(); ind < len(m) && m[ind] > 0 {
			return m[ind]
		}
	}
	if ind := input.AxisIndex('c'); ind >= 0 {
		if s := input.Shape.Shape(); ind < len(s) && s[ind] > 0 {
			return s[ind]
		}
		if m := input.Shape.Min(); ind < len(m) && m[ind] > 0 {
			return m[ind]
		}
	}
	return 1
}

// Padding returns the halo declared by the model's output.
func (op *Op) Padding() ops.Padding { return op.padding }

// Apply runs the model on one tile. The input is laid out according to the
// descriptor's input axes, the raw output reinterpreted according to the
// output axes.
func (op *Op) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	if op.closed {
		return nil, fmt.Errorf("prediction op already closed")
	}
	if err := op.ensureSession(t.Rows(), t.Cols(), t.Channels()); err != nil {
		return nil, err
	}

	in, err := numpy.FromTensor(t, op.inputAxes)
	if err != nil {
		return nil, fmt.Errorf("laying out model input: %w", err)
	}
	dst := op.inputTensor.GetData()
	if len(dst) != len(in.Data) {
		return nil, fmt.Errorf("input tensor holds %d samples, expected %d", len(dst), len(in.Data))
	}
	for i, v := range in.Data {
		dst[i] = float32(v)
	}

	if err := op.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	raw := op.outputTensor.GetData()
	outRows := t.Rows() - op.padding.Y1 - op.padding.Y2
	outCols := t.Cols() - op.padding.X1 - op.padding.X2
	out := &numpy.Array{
		Shape: op.shapeFor(op.outputAxes, outRows, outCols, op.outChans),
		Data:  make([]float64, len(raw)),
		DType: "<f4",
	}
	for i, v := range raw {
		out.Data[i] = float64(v)
	}
	result, err := numpy.AsTensor(out, op.outputAxes)
	if err != nil {
		return nil, fmt.Errorf("reading model output: %w", err)
	}
	return result, nil
}

// ensureSession (re)creates the session for the given tile shape.
func (op *Op) ensureSession(rows, cols, chans int) error {
	if op.session != nil && rows == op.rows && cols == op.cols && chans == op.chans {
		return nil
	}
	op.destroySession()

	inShape := toInt64(op.shapeFor(op.inputAxes, rows, cols, chans))
	outRows := rows - op.padding.Y1 - op.padding.Y2
	outCols := cols - op.padding.X1 - op.padding.X2
	if outRows <= 0 || outCols <= 0 {
		return fmt.Errorf("tile %dx%d smaller than model halo", cols, rows)
	}
	outShape := toInt64(op.shapeFor(op.outputAxes, outRows, outCols, op.outChans))

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inShape...))
	if err != nil {
		return fmt.Errorf("creating input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outShape...))
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("creating output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(op.modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("creating onnx session: %w", err)
	}

	op.session = session
	op.inputTensor = inputTensor
	op.outputTensor = outputTensor
	op.rows, op.cols, op.chans = rows, cols, chans
	return nil
}

// shapeFor maps image dimensions onto an axis-order string.
func (op *Op) shapeFor(axes string, rows, cols, chans int) []int {
	shape := make([]int, len(axes))
	for i := 0; i < len(axes); i++ {
		switch axes[i] {
		case 'b', 'B':
			shape[i] = 1
		case 'y', 'Y':
			shape[i] = rows
		case 'x', 'X':
			shape[i] = cols
		case 'c', 'C':
			shape[i] = chans
		default:
			shape[i] = 1
		}
	}
	return shape
}

func toInt64(shape []int) []int64 {
	out := make([]int64, len(shape))
	for i, v := range shape {
		out[i] = int64(v)
	}
	return out
}

func (op *Op) destroySession() {
	if op.inputTensor != nil {
		op.inputTensor.Destroy()
		op.inputTensor = nil
	}
	if op.outputTensor != nil {
		op.outputTensor.Destroy()
		op.outputTensor = nil
	}
	if op.session != nil {
		op.session.Destroy()
		op.session = nil
	}
}

// Close releases the session and the onnx runtime environment. It is safe
// to call more than once.
func (op *Op) Close() {
	if op.closed {
		return
	}
	op.closed = true
	op.destroySession()
	ort.DestroyEnvironment()
}
