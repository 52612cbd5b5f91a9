// Package spec parses Bioimage Model Zoo model descriptors (rdf.yaml files)
// into the subset of the model metadata needed to configure a pixel
// classifier: tensor axis orders, shape constraints, processing operation
// declarations, test fixtures and weight locations.
package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blang/semver"
	"gopkg.in/yaml.v3"
)

// Supported descriptor format versions. Descriptors outside this range use
// axis/shape encodings this package does not understand.
var supportedFormats = semver.MustParseRange(">=0.3.0 <0.5.0")

// Model is a parsed model descriptor. It is immutable once parsed; callers
// own it for the duration of one configuration session.
type Model struct {
	FormatVersion string `yaml:"format_version"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`

	Inputs  []TensorSpec `yaml:"inputs"`
	Outputs []TensorSpec `yaml:"outputs"`

	// TestInputs and TestOutputs are file paths relative to the descriptor
	TestInputs  []string `yaml:"test_inputs"`
	TestOutputs []string `yaml:"test_outputs"`

	Weights Weights `yaml:"weights"`

	baseDir string
}

// TensorSpec describes one input or output tensor of the model.
type TensorSpec struct {
	Name     string    `yaml:"name"`
	Axes     string    `yaml:"axes"`
	DataType string    `yaml:"data_type"`
	Shape    ShapeSpec `yaml:"shape"`

	// Halo gives, per axis, the number of border pixels the model needs
	// around each output tile. Only present on outputs.
	Halo []int `yaml:"halo"`

	Preprocessing  []OpSpec `yaml:"preprocessing"`
	Postprocessing []OpSpec `yaml:"postprocessing"`
}

// OpSpec is one declared processing operation with its keyword arguments.
type OpSpec struct {
	Name   string         `yaml:"name"`
	Kwargs map[string]any `yaml:"kwargs"`
}

// Weights lists the model weight formats on offer. Only ONNX is consumed.
type Weights struct {
	ONNX *WeightsEntry `yaml:"onnx"`
}

// WeightsEntry points at one weights file relative to the descriptor.
type WeightsEntry struct {
	Source string `yaml:"source"`
}

// ShapeSpec holds the three optional shape arrays of a tensor spec. In the
// descriptor a shape is either an explicit list of sizes, or a map with
// "min" and "step" lists; both forms are accepted.
type ShapeSpec struct {
	shape []int
	min   []int
	step  []int
}

// Shape returns the representative size per axis, or an empty slice.
func (s ShapeSpec) Shape() []int { return s.shape }

// Min returns the minimum legal size per axis, or an empty slice.
func (s ShapeSpec) Min() []int { return s.min }

// Step returns the legal increment per axis, or an empty slice. A step of
// zero means the axis is fixed.
func (s ShapeSpec) Step() []int { return s.step }

// UnmarshalYAML accepts both the list form and the {min, step} map form.
func (s *ShapeSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		return value.Decode(&s.shape)
	case yaml.MappingNode:
		var aux struct {
			Min  []int `yaml:"min"`
			Step []int `yaml:"step"`
		}
		if err := value.Decode(&aux); err != nil {
			return err
		}
		s.min = aux.Min
		s.step = aux.Step
		return nil
	default:
		return fmt.Errorf("shape must be a list or a {min, step} map")
	}
}

// AxisIndex returns the position of the given axis character in the tensor's
// axis-order string, matching case-insensitively, or -1 if absent.
func (t *TensorSpec) AxisIndex(axis byte) int {
	if axis >= 'A' && axis <= 'Z' {
		axis += 'a' - 'A'
	}
	return strings.IndexByte(strings.ToLower(t.Axes), axis)
}

// SpatialAxes counts the spatial (x, y, z) axes of the tensor.
func (t *TensorSpec) SpatialAxes() int {
	n := 0
	for _, r := range strings.ToLower(t.Axes) {
		if r == 'x' || r == 'y' || r == 'z' {
			n++
		}
	}
	return n
}

// Parse reads and validates a model descriptor from disk. Test fixture and
// weight paths resolve relative to the descriptor's directory.
func Parse(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model descriptor: %w", err)
	}
	m, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	m.baseDir = filepath.Dir(path)
	return m, nil
}

// ParseBytes parses a model descriptor held in memory. Relative fixture
// paths will resolve against the current directory.
func ParseBytes(data []byte) (*Model, error) {
	if err := validateStructure(data); err != nil {
		return nil, err
	}
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed descriptor: %w", err)
	}
	v, err := semver.ParseTolerant(m.FormatVersion)
	if err != nil {
		return nil, fmt.Errorf("malformed format_version %q: %w", m.FormatVersion, err)
	}
	if !supportedFormats(v) {
		return nil, fmt.Errorf("%w: format_version %s (supported: >=0.3.0 <0.5.0)",
			ErrUnsupportedModel, m.FormatVersion)
	}
	return &m, nil
}

// BaseDir returns the directory the descriptor was loaded from, or "" when
// it was parsed from memory.
func (m *Model) BaseDir() string { return m.baseDir }

// ResolvePath resolves a descriptor-relative path such as a test fixture or
// weights location.
func (m *Model) ResolvePath(rel string) string {
	if m.baseDir == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.baseDir, rel)
}

// CheckSupported verifies that the model fits the pixel-classifier bridge:
// exactly one input and one output, and at most two spatial axes. Models
// failing these checks are reported before any state is created.
func (m *Model) CheckSupported() error {
	if len(m.Inputs) != 1 || len(m.Outputs) != 1 {
		return fmt.Errorf("%w: models with more than one input or output cannot be run",
			ErrUnsupportedModel)
	}
	if n := m.Inputs[0].SpatialAxes(); n > 2 {
		return fmt.Errorf("%w: only 2D models are supported (input has %d spatial axes)",
			ErrUnsupportedModel, n)
	}
	return nil
}
