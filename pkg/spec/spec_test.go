package spec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const validDescriptor = `
format_version: 0.4.9
name: nucleus-segmentation
description: Test model
inputs:
  - name: input0
    axes: bcyx
    data_type: float32
    shape:
      min: [1, 1, 64, 64]
      step: [0, 0, 16, 16]
    preprocessing:
      - name: zero_mean_unit_variance
        kwargs:
          mode: per_sample
outputs:
  - name: output0
    axes: bcyx
    shape: [1, 3, 256, 256]
    halo: [0, 0, 32, 32]
    postprocessing:
      - name: sigmoid
test_inputs: [test_input.npy]
test_outputs: [test_output.npy]
weights:
  onnx:
    source: weights.onnx
`

// TestParseBytes parses a complete descriptor and checks the fields the
// classifier bridge relies on
func TestParseBytes(t *testing.T) {
	m, err := ParseBytes([]byte(validDescriptor))
	if err != nil {
		t.Fatalf("ParseBytes failed: %v", err)
	}

	if m.Name != "nucleus-segmentation" {
		t.Errorf("Expected name nucleus-segmentation, got %q", m.Name)
	}
	if len(m.Inputs) != 1 || len(m.Outputs) != 1 {
		t.Fatalf("Expected 1 input and 1 output, got %d and %d", len(m.Inputs), len(m.Outputs))
	}

	in := m.Inputs[0]
	if in.Axes != "bcyx" {
		t.Errorf("Expected input axes bcyx, got %q", in.Axes)
	}
	if got := in.Shape.Min(); len(got) != 4 || got[2] != 64 {
		t.Errorf("Expected input min shape [1 1 64 64], got %v", got)
	}
	if got := in.Shape.Step(); len(got) != 4 || got[3] != 16 {
		t.Errorf("Expected input step [0 0 16 16], got %v", got)
	}
	if len(in.Shape.Shape()) != 0 {
		t.Errorf("Expected empty explicit shape for min/step input, got %v", in.Shape.Shape())
	}

	out := m.Outputs[0]
	if got := out.Shape.Shape(); len(got) != 4 || got[1] != 3 {
		t.Errorf("Expected output shape [1 3 256 256], got %v", got)
	}
	if len(out.Shape.Min()) != 0 || len(out.Shape.Step()) != 0 {
		t.Errorf("Expected no min/step for explicit output shape")
	}
	if len(out.Halo) != 4 || out.Halo[2] != 32 {
		t.Errorf("Expected halo [0 0 32 32], got %v", out.Halo)
	}

	if m.Weights.ONNX == nil || m.Weights.ONNX.Source != "weights.onnx" {
		t.Errorf("Expected onnx weights source weights.onnx")
	}
	if err := m.CheckSupported(); err != nil {
		t.Errorf("Expected model to be supported: %v", err)
	}
}

// TestParseResolvesPaths verifies descriptor-relative path resolution
func TestParseResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rdf.yaml")
	if err := os.WriteFile(path, []byte(validDescriptor), 0644); err != nil {
		t.Fatalf("Failed to write descriptor: %v", err)
	}

	m, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.BaseDir() != dir {
		t.Errorf("Expected base dir %s, got %s", dir, m.BaseDir())
	}
	want := filepath.Join(dir, "test_input.npy")
	if got := m.ResolvePath(m.TestInputs[0]); got != want {
		t.Errorf("Expected resolved path %s, got %s", want, got)
	}
}

// TestFormatVersionGate rejects descriptors from format generations this
// package cannot interpret
func TestFormatVersionGate(t *testing.T) {
	for _, version := range []string{"0.2.3", "0.5.0", "1.0.0"} {
		doc := `
format_version: ` + version + `
name: m
inputs:
  - {name: i, axes: byx, shape: [1, 8, 8]}
outputs:
  - {name: o, axes: byx, shape: [1, 8, 8]}
`
		_, err := ParseBytes([]byte(doc))
		if err == nil {
			t.Errorf("Expected format_version %s to be rejected", version)
			continue
		}
		if !errors.Is(err, ErrUnsupportedModel) {
			t.Errorf("Expected ErrUnsupportedModel for %s, got %v", version, err)
		}
	}

	if _, err := ParseBytes([]byte(`
format_version: not-a-version
name: m
inputs:
  - {name: i, axes: byx}
outputs:
  - {name: o, axes: byx}
`)); err == nil {
		t.Errorf("Expected malformed format_version to be rejected")
	}
}

// TestStructuralValidation rejects descriptors missing required fields
func TestStructuralValidation(t *testing.T) {
	cases := map[string]string{
		"missing name": `
format_version: 0.4.0
inputs:
  - {axes: byx}
outputs:
  - {axes: byx}
`,
		"missing inputs": `
format_version: 0.4.0
name: m
outputs:
  - {axes: byx}
`,
		"empty outputs": `
format_version: 0.4.0
name: m
inputs:
  - {axes: byx}
outputs: []
`,
		"input without axes": `
format_version: 0.4.0
name: m
inputs:
  - {name: i}
outputs:
  - {axes: byx}
`,
		"not yaml at all": `[[[`,
	}
	for label, doc := range cases {
		if _, err := ParseBytes([]byte(doc)); err == nil {
			t.Errorf("Expected %s to fail validation", label)
		}
	}
}

// TestCheckSupported covers the unsupported-model shapes
func TestCheckSupported(t *testing.T) {
	twoInputs := &Model{
		Inputs:  []TensorSpec{{Axes: "byx"}, {Axes: "byx"}},
		Outputs: []TensorSpec{{Axes: "byx"}},
	}
	if err := twoInputs.CheckSupported(); !errors.Is(err, ErrUnsupportedModel) {
		t.Errorf("Expected ErrUnsupportedModel for two inputs, got %v", err)
	}

	threeD := &Model{
		Inputs:  []TensorSpec{{Axes: "bzyxc"}},
		Outputs: []TensorSpec{{Axes: "bzyxc"}},
	}
	if err := threeD.CheckSupported(); !errors.Is(err, ErrUnsupportedModel) {
		t.Errorf("Expected ErrUnsupportedModel for 3D model, got %v", err)
	}

	flat := &Model{
		Inputs:  []TensorSpec{{Axes: "byxc"}},
		Outputs: []TensorSpec{{Axes: "byxc"}},
	}
	if err := flat.CheckSupported(); err != nil {
		t.Errorf("Expected 2D model to be supported, got %v", err)
	}
}

// TestAxisIndex checks case-insensitive axis location
func TestAxisIndex(t *testing.T) {
	spec := &TensorSpec{Axes: "BCYX"}
	if got := spec.AxisIndex('x'); got != 3 {
		t.Errorf("Expected x at index 3, got %d", got)
	}
	if got := spec.AxisIndex('Y'); got != 2 {
		t.Errorf("Expected y at index 2, got %d", got)
	}
	if got := spec.AxisIndex('z'); got != -1 {
		t.Errorf("Expected -1 for absent axis, got %d", got)
	}

	if n := spec.SpatialAxes(); n != 2 {
		t.Errorf("Expected 2 spatial axes in BCYX, got %d", n)
	}
}
