// Package ops implements the image processing operations a model descriptor
// can declare around its prediction step, and their composition into a
// single pipeline. Operations never mutate their input tensor; each Apply
// returns a fresh tensor.
package ops

import (
	"fmt"

	"bioclassify/pkg/tensor"
)

// Padding is the number of extra pixels an operation needs on each side of
// its input to produce a properly aligned output.
type Padding struct {
	// X1 and X2 are the left and right padding in pixels
	X1, X2 int

	// Y1 and Y2 are the top and bottom padding in pixels
	Y1, Y2 int
}

// Empty reports whether no padding is required on any side.
func (p Padding) Empty() bool {
	return p.X1 == 0 && p.X2 == 0 && p.Y1 == 0 && p.Y2 == 0
}

// Add accumulates the padding of two chained operations.
func (p Padding) Add(o Padding) Padding {
	return Padding{X1: p.X1 + o.X1, X2: p.X2 + o.X2, Y1: p.Y1 + o.Y1, Y2: p.Y2 + o.Y2}
}

// Symmetric builds padding with the same size on all four sides.
func Symmetric(size int) Padding {
	return Padding{X1: size, X2: size, Y1: size, Y2: size}
}

// ImageOp is one step of the classifier pipeline: a pure transformation of
// an image tensor, plus the padding it declares for itself.
type ImageOp interface {
	// Apply transforms the input into a new tensor, leaving the input intact.
	Apply(*tensor.Tensor) (*tensor.Tensor, error)

	// Padding returns the symmetric border this operation needs around its
	// input. Most operations are pointwise and return the zero Padding.
	Padding() Padding
}

// sequential applies a list of operations in order.
type sequential struct {
	ops []ImageOp
}

// Sequential composes operations into one. Applying the result applies each
// operation in order; the declared padding is the sum over all operations.
func Sequential(list ...ImageOp) ImageOp {
	filtered := make([]ImageOp, 0, len(list))
	for _, op := range list {
		if op != nil {
			filtered = append(filtered, op)
		}
	}
	return &sequential{ops: filtered}
}

func (s *sequential) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	current := t
	for i, op := range s.ops {
		next, err := op.Apply(current)
		if err != nil {
			return nil, fmt.Errorf("pipeline step %d: %w", i, err)
		}
		current = next
	}
	if current == t {
		// No steps ran; still honor the no-mutation contract.
		return t.Clone(), nil
	}
	return current, nil
}

func (s *sequential) Padding() Padding {
	var p Padding
	for _, op := range s.ops {
		p = p.Add(op.Padding())
	}
	return p
}
