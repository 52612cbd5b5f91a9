// Package tensor provides the in-memory image tensor used throughout the
// classifier pipeline. A Tensor is a dense rows x cols x channels block of
// float64 samples stored row-major with channels interleaved, mirroring the
// pixel layout of the tiles the host application hands to a model.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense numeric image tile. Tensors backing test fixtures may
// hold large buffers, so they support explicit release; a released tensor
// must not be used again.
type Tensor struct {
	rows     int
	cols     int
	channels int
	data     []float64
	released bool
}

// New creates a zero-filled tensor with the given dimensions.
func New(rows, cols, channels int) (*Tensor, error) {
	if rows <= 0 || cols <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid tensor dimensions %dx%dx%d", rows, cols, channels)
	}
	return &Tensor{
		rows:     rows,
		cols:     cols,
		channels: channels,
		data:     make([]float64, rows*cols*channels),
	}, nil
}

// FromData wraps an existing sample buffer in a tensor. The buffer is used
// directly, not copied, and its length must equal rows*cols*channels.
func FromData(rows, cols, channels int, data []float64) (*Tensor, error) {
	if rows <= 0 || cols <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid tensor dimensions %dx%dx%d", rows, cols, channels)
	}
	if len(data) != rows*cols*channels {
		return nil, fmt.Errorf("buffer length %d does not match dimensions %dx%dx%d",
			len(data), rows, cols, channels)
	}
	return &Tensor{rows: rows, cols: cols, channels: channels, data: data}, nil
}

// Rows returns the number of rows (image height).
func (t *Tensor) Rows() int { return t.rows }

// Cols returns the number of columns (image width).
func (t *Tensor) Cols() int { return t.cols }

// Channels returns the number of channels.
func (t *Tensor) Channels() int { return t.channels }

// Released reports whether Release has been called.
func (t *Tensor) Released() bool { return t.released }

// Data returns the underlying sample buffer. The caller must not hold on to
// it past the tensor's release.
func (t *Tensor) Data() []float64 { return t.data }

// At returns the sample at the given row, column and channel.
func (t *Tensor) At(row, col, channel int) float64 {
	return t.data[(row*t.cols+col)*t.channels+channel]
}

// Set stores a sample at the given row, column and channel.
func (t *Tensor) Set(row, col, channel int, v float64) {
	t.data[(row*t.cols+col)*t.channels+channel] = v
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{rows: t.rows, cols: t.cols, channels: t.channels, data: data}
}

// Release drops the tensor's buffer. It is safe to call more than once;
// subsequent calls are no-ops. Any use of the tensor after release will
// panic on index access, which is deliberate: released fixtures must not
// silently keep working.
func (t *Tensor) Release() {
	if t.released {
		return
	}
	t.released = true
	t.data = nil
}

// SameShape reports whether two tensors have identical dimensions.
func (t *Tensor) SameShape(o *Tensor) bool {
	return t.rows == o.rows && t.cols == o.cols && t.channels == o.channels
}

// Channel extracts one channel as a gonum matrix. The returned matrix is a
// copy; mutating it does not affect the tensor.
func (t *Tensor) Channel(channel int) (*mat.Dense, error) {
	if channel < 0 || channel >= t.channels {
		return nil, fmt.Errorf("channel %d out of range [0,%d)", channel, t.channels)
	}
	m := mat.NewDense(t.rows, t.cols, nil)
	for r := 0; r < t.rows; r++ {
		for c := 0; c < t.cols; c++ {
			m.Set(r, c, t.At(r, c, channel))
		}
	}
	return m, nil
}

// SetChannel writes a gonum matrix into one channel of the tensor.
func (t *Tensor) SetChannel(channel int, m *mat.Dense) error {
	if channel < 0 || channel >= t.channels {
		return fmt.Errorf("channel %d out of range [0,%d)", channel, t.channels)
	}
	r, c := m.Dims()
	if r != t.rows || c != t.cols {
		return fmt.Errorf("matrix %dx%d does not match tensor %dx%d", r, c, t.rows, t.cols)
	}
	for row := 0; row < t.rows; row++ {
		for col := 0; col < t.cols; col++ {
			t.Set(row, col, channel, m.At(row, col))
		}
	}
	return nil
}

// Sub computes the element-wise difference a - b. Both tensors must have
// identical dimensions.
func Sub(a, b *Tensor) (*Tensor, error) {
	if !a.SameShape(b) {
		return nil, fmt.Errorf("shape mismatch: %dx%dx%d vs %dx%dx%d",
			a.rows, a.cols, a.channels, b.rows, b.cols, b.channels)
	}
	out := a.Clone()
	floats.Sub(out.data, b.data)
	return out, nil
}

// MinMax returns the smallest and largest sample in the tensor.
func (t *Tensor) MinMax() (min, max float64) {
	return floats.Min(t.data), floats.Max(t.data)
}

// reflectIndex maps a possibly out-of-range coordinate into [0,n) by
// reflecting it at the borders, edge pixel included (OpenCV BORDER_REFLECT:
// cba|abcdef|fed).
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// PadReflect returns a copy of the tensor grown by the given number of
// pixels on each side, filling the new border by reflecting the image
// content at its edges. All pad values must be non-negative.
func (t *Tensor) PadReflect(top, bottom, left, right int) (*Tensor, error) {
	if top < 0 || bottom < 0 || left < 0 || right < 0 {
		return nil, fmt.Errorf("negative padding (%d,%d,%d,%d)", top, bottom, left, right)
	}
	out, err := New(t.rows+top+bottom, t.cols+left+right, t.channels)
	if err != nil {
		return nil, err
	}
	for r := 0; r < out.rows; r++ {
		srcR := reflectIndex(r-top, t.rows)
		for c := 0; c < out.cols; c++ {
			srcC := reflectIndex(c-left, t.cols)
			for ch := 0; ch < t.channels; ch++ {
				out.Set(r, c, ch, t.At(srcR, srcC, ch))
			}
		}
	}
	return out, nil
}

// CropCenter returns a copy of the central rows x cols region of the tensor.
// It is the inverse of PadReflect for symmetric padding.
func (t *Tensor) CropCenter(rows, cols int) (*Tensor, error) {
	if rows > t.rows || cols > t.cols {
		return nil, fmt.Errorf("crop %dx%d exceeds tensor %dx%d", rows, cols, t.rows, t.cols)
	}
	top := (t.rows - rows) / 2
	left := (t.cols - cols) / 2
	out, err := New(rows, cols, t.channels)
	if err != nil {
		return nil, err
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for ch := 0; ch < t.channels; ch++ {
				out.Set(r, c, ch, t.At(top+r, left+c, ch))
			}
		}
	}
	return out, nil
}
