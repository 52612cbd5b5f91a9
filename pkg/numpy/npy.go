// Package numpy reads and writes NumPy .npy array files, the format used by
// Bioimage Model Zoo descriptors for their bundled test tensors.
//
// Only the subset of the format that model test fixtures actually use is
// supported: little-endian numeric scalars in C (row-major) order, .npy
// versions 1.0 and 2.0.
package numpy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"bioclassify/pkg/tensor"
)

var magic = []byte("\x93NUMPY")

// Array is a parsed .npy file: its shape and its samples widened to float64.
type Array struct {
	// Shape holds the array dimensions in the order stored in the file
	Shape []int

	// Data holds the samples in row-major order
	Data []float64

	// DType is the original NumPy dtype string, e.g. "<f4"
	DType string
}

// Len returns the total number of samples implied by the shape.
func (a *Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Read loads a .npy file from disk.
func Read(path string) (*Array, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Decode parses an in-memory .npy file.
func Decode(raw []byte) (*Array, error) {
	if len(raw) < 10 || !bytes.Equal(raw[:6], magic) {
		return nil, fmt.Errorf("not a .npy file")
	}
	major := raw[6]
	var header string
	var body []byte
	switch major {
	case 1:
		n := int(binary.LittleEndian.Uint16(raw[8:10]))
		if len(raw) < 10+n {
			return nil, fmt.Errorf("truncated .npy header")
		}
		header = string(raw[10 : 10+n])
		body = raw[10+n:]
	case 2, 3:
		if len(raw) < 12 {
			return nil, fmt.Errorf("truncated .npy header")
		}
		n := int(binary.LittleEndian.Uint32(raw[8:12]))
		if len(raw) < 12+n {
			return nil, fmt.Errorf("truncated .npy header")
		}
		header = string(raw[12 : 12+n])
		body = raw[12+n:]
	default:
		return nil, fmt.Errorf("unsupported .npy version %d", major)
	}

	dtype, fortran, shape, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	if fortran {
		return nil, fmt.Errorf("fortran-order .npy arrays are not supported")
	}

	a := &Array{Shape: shape, DType: dtype}
	n := a.Len()
	data, err := decodeSamples(body, dtype, n)
	if err != nil {
		return nil, err
	}
	a.Data = data
	return a, nil
}

// parseHeader extracts descr, fortran_order and shape from the Python dict
// literal in the .npy header.
func parseHeader(h string) (dtype string, fortran bool, shape []int, err error) {
	dtype, err = headerValue(h, "descr")
	if err != nil {
		return "", false, nil, err
	}
	dtype = strings.Trim(dtype, "' \"")

	order, err := headerValue(h, "fortran_order")
	if err != nil {
		return "", false, nil, err
	}
	fortran = strings.HasPrefix(strings.TrimSpace(order), "True")

	tup, err := headerValue(h, "shape")
	if err != nil {
		return "", false, nil, err
	}
	tup = strings.TrimSpace(tup)
	if !strings.HasPrefix(tup, "(") {
		return "", false, nil, fmt.Errorf("malformed shape in .npy header: %q", tup)
	}
	tup = strings.TrimPrefix(tup, "(")
	end := strings.Index(tup, ")")
	if end < 0 {
		return "", false, nil, fmt.Errorf("malformed shape in .npy header: %q", tup)
	}
	for _, part := range strings.Split(tup[:end], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, convErr := strconv.Atoi(part)
		if convErr != nil {
			return "", false, nil, fmt.Errorf("malformed shape dimension %q", part)
		}
		// The header is untrusted input; a non-positive dimension makes the
		// sample count meaningless (and a negative one panics the allocation).
		if d <= 0 {
			return "", false, nil, fmt.Errorf("invalid .npy shape dimension %d", d)
		}
		shape = append(shape, d)
	}
	return dtype, fortran, shape, nil
}

// headerValue finds the raw value following 'key': in the header dict.
func headerValue(h, key string) (string, error) {
	idx := strings.Index(h, "'"+key+"'")
	if idx < 0 {
		return "", fmt.Errorf(".npy header missing %q", key)
	}
	rest := h[idx+len(key)+2:]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return "", fmt.Errorf("malformed .npy header near %q", key)
	}
	rest = rest[colon+1:]
	// Value runs to the next top-level comma or closing brace. The shape
	// tuple contains commas, so skip over a parenthesised group first.
	depth := 0
	for i, r := range rest {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',', '}':
			if depth == 0 {
				return rest[:i], nil
			}
		}
	}
	return rest, nil
}

func decodeSamples(body []byte, dtype string, n int) ([]float64, error) {
	size, ok := dtypeSize(dtype)
	if !ok {
		return nil, fmt.Errorf("unsupported .npy dtype %q", dtype)
	}
	if len(body) < n*size {
		return nil, fmt.Errorf(".npy body holds %d bytes, need %d", len(body), n*size)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		b := body[i*size:]
		switch dtype {
		case "<f4":
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case "<f8":
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		case "|u1":
			out[i] = float64(b[0])
		case "|i1":
			out[i] = float64(int8(b[0]))
		case "<u2":
			out[i] = float64(binary.LittleEndian.Uint16(b))
		case "<i2":
			out[i] = float64(int16(binary.LittleEndian.Uint16(b)))
		case "<u4":
			out[i] = float64(binary.LittleEndian.Uint32(b))
		case "<i4":
			out[i] = float64(int32(binary.LittleEndian.Uint32(b)))
		case "<i8":
			out[i] = float64(int64(binary.LittleEndian.Uint64(b)))
		}
	}
	return out, nil
}

func dtypeSize(dtype string) (int, bool) {
	switch dtype {
	case "|u1", "|i1":
		return 1, true
	case "<u2", "<i2":
		return 2, true
	case "<f4", "<u4", "<i4":
		return 4, true
	case "<f8", "<i8":
		return 8, true
	default:
		return 0, false
	}
}

// Write saves an array as a version 1.0 .npy file with dtype <f8.
func Write(path string, a *Array) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Encode serializes an array as a version 1.0 .npy file with dtype <f8.
func Encode(a *Array) ([]byte, error) {
	if a.Len() != len(a.Data) {
		return nil, fmt.Errorf("shape %v does not match %d samples", a.Shape, len(a.Data))
	}
	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := strings.Join(dims, ", ")
	if len(a.Shape) == 1 {
		shape += ","
	}
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%s), }", shape)
	// Pad so that the data section starts on a 64-byte boundary.
	total := len(magic) + 2 + 2 + len(header) + 1
	if pad := 64 - total%64; pad < 64 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.Write(magic)
	buf.WriteByte(1)
	buf.WriteByte(0)
	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(header)))
	buf.Write(hlen[:])
	buf.WriteString(header)
	var b [8]byte
	for _, v := range a.Data {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
	}
	return buf.Bytes(), nil
}

// AsTensor reinterprets an array as an image tensor using the axis-order
// string from the model descriptor. Batch ("b") axes must have size 1 and
// are dropped; missing channel axes default to a single channel. Axes other
// than b, c, y and x are rejected.
func AsTensor(a *Array, axes string) (*tensor.Tensor, error) {
	axes = strings.ToLower(axes)
	if len(axes) != len(a.Shape) {
		return nil, fmt.Errorf("axes %q do not match %d-dimensional array", axes, len(a.Shape))
	}
	rows, cols, channels := 0, 0, 1
	strides := make(map[byte]int)
	sizes := make(map[byte]int)
	stride := 1
	for i := len(axes) - 1; i >= 0; i-- {
		ax := axes[i]
		sizes[ax] = a.Shape[i]
		strides[ax] = stride
		stride *= a.Shape[i]
	}
	for ax, size := range sizes {
		switch ax {
		case 'b':
			if size != 1 {
				return nil, fmt.Errorf("batch axis of size %d is not supported", size)
			}
		case 'y':
			rows = size
		case 'x':
			cols = size
		case 'c':
			channels = size
		default:
			return nil, fmt.Errorf("unsupported axis %q in %q", string(ax), axes)
		}
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("axes %q lack spatial x/y dimensions", axes)
	}

	out, err := tensor.New(rows, cols, channels)
	if err != nil {
		return nil, err
	}
	ys, xs, cs := strides['y'], strides['x'], strides['c']
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			for ch := 0; ch < channels; ch++ {
				out.Set(r, c, ch, a.Data[r*ys+c*xs+ch*cs])
			}
		}
	}
	return out, nil
}

// FromTensor converts an image tensor back to an array laid out according
// to the given axis-order string.
func FromTensor(t *tensor.Tensor, axes string) (*Array, error) {
	axes = strings.ToLower(axes)
	shape := make([]int, len(axes))
	for i := 0; i < len(axes); i++ {
		switch axes[i] {
		case 'b':
			shape[i] = 1
		case 'y':
			shape[i] = t.Rows()
		case 'x':
			shape[i] = t.Cols()
		case 'c':
			shape[i] = t.Channels()
		default:
			return nil, fmt.Errorf("unsupported axis %q in %q", string(axes[i]), axes)
		}
	}
	a := &Array{Shape: shape, DType: "<f8"}
	a.Data = make([]float64, a.Len())
	strides := make(map[byte]int)
	stride := 1
	for i := len(axes) - 1; i >= 0; i-- {
		strides[axes[i]] = stride
		stride *= shape[i]
	}
	ys, xs, cs := strides['y'], strides['x'], strides['c']
	for r := 0; r < t.Rows(); r++ {
		for c := 0; c < t.Cols(); c++ {
			for ch := 0; ch < t.Channels(); ch++ {
				a.Data[r*ys+c*xs+ch*cs] = t.At(r, c, ch)
			}
		}
	}
	return a, nil
}
