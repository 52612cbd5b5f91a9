// Package verify runs a configured classifier pipeline against the test
// tensors bundled with a model descriptor and diffs the prediction against
// the reference output. It is a best-effort diagnostic: a model without
// usable fixtures simply cannot be verified, which is logged, not fatal.
package verify

import (
	"fmt"
	"log"
	"os"

	"bioclassify/pkg/classifier"
	"bioclassify/pkg/numpy"
	"bioclassify/pkg/ops"
	"bioclassify/pkg/spec"
	"bioclassify/pkg/tensor"
)

// Result carries the tensors produced by one verification run. All of them
// belong to the caller; the verifier keeps no reference.
type Result struct {
	// Input is a copy of the model's test input tensor
	Input *tensor.Tensor

	// Predicted is the pipeline output for the test input
	Predicted *tensor.Tensor

	// Target is a copy of the reference output, if the model bundles one
	Target *tensor.Tensor

	// Difference is Predicted - Target, present only when their shapes match
	Difference *tensor.Tensor

	// ShapeMismatch is set when a target exists but its dimensions differ
	// from the prediction's, in which case Difference is nil
	ShapeMismatch bool
}

// Verifier owns the test fixture tensors for one model. Fixtures are loaded
// once at construction and must be released with Close; Close is idempotent
// and safe to call whether or not Verify ever ran.
type Verifier struct {
	modelName string
	input     *tensor.Tensor
	target    *tensor.Tensor
	closed    bool
}

// New loads the model's test fixtures. A missing or unreadable fixture
// disables verification (HasInput reports false) rather than failing:
// fixtures are optional descriptor content.
func New(m *spec.Model) *Verifier {
	v := &Verifier{modelName: m.Name}
	if len(m.TestInputs) > 0 {
		v.input = tryToReadTensor(m.ResolvePath(m.TestInputs[0]), m.Inputs[0].Axes)
	}
	if len(m.TestOutputs) > 0 && len(m.Outputs) > 0 {
		v.target = tryToReadTensor(m.ResolvePath(m.TestOutputs[0]), m.Outputs[0].Axes)
	}
	return v
}

// tryToReadTensor loads one .npy fixture, returning nil on any failure.
func tryToReadTensor(path, axes string) *tensor.Tensor {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	a, err := numpy.Read(path)
	if err != nil {
		log.Printf("Warning: could not read test tensor %s: %v", path, err)
		return nil
	}
	t, err := numpy.AsTensor(a, axes)
	if err != nil {
		log.Printf("Warning: could not interpret test tensor %s: %v", path, err)
		return nil
	}
	return t
}

// HasInput reports whether a usable test input was loaded.
func (v *Verifier) HasInput() bool {
	return v.input != nil
}

// Verify runs the configured pipeline on the test input. Without a test
// input it logs and returns early with no result. A failure while applying
// the pipeline aborts this verification attempt only; the classifier built
// from the same parameters remains usable.
func (v *Verifier) Verify(p *classifier.Params) (*Result, error) {
	if v.closed {
		return nil, fmt.Errorf("verifier already closed")
	}
	if v.input == nil {
		log.Printf("Cannot run test for %s - no test input found", v.modelName)
		return nil, nil
	}

	chain := make([]ops.ImageOp, 0, len(p.Preprocessing())+1+len(p.Postprocessing()))
	chain = append(chain, p.Preprocessing()...)
	if p.Prediction() != nil {
		chain = append(chain, p.Prediction())
	}
	chain = append(chain, p.Postprocessing()...)
	op := ops.Sequential(chain...)

	// The fixture is reused and released later, so the pipeline always runs
	// on a padded or plain copy, never the original.
	var in *tensor.Tensor
	padding := op.Padding()
	if !padding.Empty() {
		padded, err := v.input.PadReflect(padding.Y1, padding.Y2, padding.X1, padding.X2)
		if err != nil {
			return nil, fmt.Errorf("padding test input: %w", err)
		}
		in = padded
	} else {
		in = v.input.Clone()
	}

	predicted, err := op.Apply(in)
	if err != nil {
		return nil, fmt.Errorf("applying pipeline to test input: %w", err)
	}

	result := &Result{
		Input:     v.input.Clone(),
		Predicted: predicted,
	}
	if v.target != nil {
		result.Target = v.target.Clone()
		if predicted.SameShape(v.target) {
			diff, err := tensor.Sub(predicted, v.target)
			if err != nil {
				return nil, fmt.Errorf("computing difference: %w", err)
			}
			result.Difference = diff
		} else {
			result.ShapeMismatch = true
			log.Printf("Warning: target output and prediction for %s have different shapes (%dx%dx%d vs %dx%dx%d)",
				v.modelName,
				result.Target.Rows(), result.Target.Cols(), result.Target.Channels(),
				predicted.Rows(), predicted.Cols(), predicted.Channels())
		}
	}
	return result, nil
}

// Close releases the fixture tensors. Safe to call more than once.
func (v *Verifier) Close() {
	if v.closed {
		return
	}
	v.closed = true
	if v.input != nil {
		v.input.Release()
	}
	if v.target != nil {
		v.target.Release()
	}
}
