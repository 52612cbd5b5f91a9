package classifier

import (
	"testing"

	"bioclassify/pkg/spec"
	"gopkg.in/yaml.v3"
)

// outputSpec builds a TensorSpec from a YAML fragment, so shape fields go
// through the same decoding as a real descriptor.
func outputSpec(t *testing.T, doc string) *spec.TensorSpec {
	t.Helper()
	var ts spec.TensorSpec
	if err := yaml.Unmarshal([]byte(doc), &ts); err != nil {
		t.Fatalf("Failed to build tensor spec: %v", err)
	}
	return &ts
}

// TestResolveTileGeometryFromMin prefers the minimum legal shape when the
// descriptor declares one
func TestResolveTileGeometryFromMin(t *testing.T) {
	out := outputSpec(t, `
axes: bcyx
shape:
  min: [1, 1, 64, 96]
  step: [0, 0, 16, 32]
`)

	g := ResolveTileGeometry(out, 512, 512)
	if g.Width != 96 || g.Height != 64 {
		t.Errorf("Expected 96x64 from min shape, got %dx%d", g.Width, g.Height)
	}
	if g.StepWidth != 32 || g.StepHeight != 16 {
		t.Errorf("Expected steps 32x16, got %dx%d", g.StepWidth, g.StepHeight)
	}
	if g.Fixed() {
		t.Errorf("Expected adjustable geometry with nonzero steps")
	}
	if g.MaxTile() != 96*8 {
		t.Errorf("Expected max tile %d, got %d", 96*8, g.MaxTile())
	}
}

// TestResolveTileGeometryFromShape falls back to the representative shape
// when no minimum is declared
func TestResolveTileGeometryFromShape(t *testing.T) {
	out := outputSpec(t, `
axes: byxc
shape: [1, 256, 128, 3]
`)

	g := ResolveTileGeometry(out, 512, 512)
	if g.Width != 128 || g.Height != 256 {
		t.Errorf("Expected 128x256 from explicit shape, got %dx%d", g.Width, g.Height)
	}
	if !g.Fixed() {
		t.Errorf("Expected fixed geometry without steps, got steps %dx%d",
			g.StepWidth, g.StepHeight)
	}
}

// TestResolveTileGeometryNoSpatialAxes returns the defaults untouched when
// the output has no x or y axis
func TestResolveTileGeometryNoSpatialAxes(t *testing.T) {
	out := outputSpec(t, `
axes: bc
shape: [1, 10]
`)

	g := ResolveTileGeometry(out, 512, 384)
	if g.Width != 512 || g.Height != 384 {
		t.Errorf("Expected default 512x384, got %dx%d", g.Width, g.Height)
	}
	if g.StepWidth != 0 || g.StepHeight != 0 {
		t.Errorf("Expected zero steps for non-spatial output, got %dx%d",
			g.StepWidth, g.StepHeight)
	}
}

// TestResolveTileGeometryNoShapeInfo keeps the defaults when the output has
// spatial axes but declares neither shape nor minimum
func TestResolveTileGeometryNoShapeInfo(t *testing.T) {
	out := &spec.TensorSpec{Axes: "byxc"}

	g := ResolveTileGeometry(out, 512, 512)
	if g.Width != 512 || g.Height != 512 {
		t.Errorf("Expected default 512x512, got %dx%d", g.Width, g.Height)
	}
	if !g.Fixed() {
		t.Errorf("Expected fixed geometry without step info")
	}
}

// TestResolveTileGeometryNeverMixesSources checks that width and height come
// from the same array even when both min and shape are present
func TestResolveTileGeometryNeverMixesSources(t *testing.T) {
	// min and step present: the explicit-shape fallback must not be used
	out := outputSpec(t, `
axes: byx
shape:
  min: [1, 32, 32]
  step: [0, 8, 8]
`)

	g := ResolveTileGeometry(out, 512, 512)
	if g.Width != 32 || g.Height != 32 {
		t.Errorf("Expected both dimensions from min shape, got %dx%d", g.Width, g.Height)
	}
}

// TestResolveTileGeometryClamps verifies that untrusted descriptor values
// are clamped rather than passed through
func TestResolveTileGeometryClamps(t *testing.T) {
	out := outputSpec(t, `
axes: byx
shape:
  min: [1, -64, 0]
  step: [0, -8, 4]
`)

	g := ResolveTileGeometry(out, 512, 512)
	if g.Width != 1 || g.Height != 1 {
		t.Errorf("Expected clamped 1x1 tile, got %dx%d", g.Width, g.Height)
	}
	if g.StepHeight != 0 {
		t.Errorf("Expected negative step clamped to 0, got %d", g.StepHeight)
	}
	if g.StepWidth != 4 {
		t.Errorf("Expected valid step kept at 4, got %d", g.StepWidth)
	}
}

// TestResolveTileGeometryUpperCaseAxes locates axes case-insensitively
func TestResolveTileGeometryUpperCaseAxes(t *testing.T) {
	out := outputSpec(t, `
axes: BYX
shape: [1, 100, 200]
`)

	g := ResolveTileGeometry(out, 512, 512)
	if g.Width != 200 || g.Height != 100 {
		t.Errorf("Expected 200x100 from upper-case axes, got %dx%d", g.Width, g.Height)
	}
}
