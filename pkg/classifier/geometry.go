package classifier

import (
	"bioclassify/internal/models"
	"bioclassify/pkg/spec"
)

// ResolveTileGeometry derives the tile size and step increments for a model
// from its output tensor spec.
//
// The minimum legal shape is preferred as the default tile size when the
// descriptor declares one; otherwise the representative shape is used, and
// if neither is present (or the output has no x/y axes to tile over) the
// supplied defaults are returned with zero steps. Zero steps mean the tile
// size is fixed and must not be adjusted.
//
// Descriptors are externally authored and untrusted, so values read from
// them are clamped: width and height to at least 1, steps to at least 0.
func ResolveTileGeometry(output *spec.TensorSpec, defaultWidth, defaultHeight int) models.TileGeometry {
	g := models.TileGeometry{Width: defaultWidth, Height: defaultHeight}

	indX := output.AxisIndex('x')
	indY := output.AxisIndex('y')
	if indX < 0 || indY < 0 {
		// No spatial tiling dimensionality for this output.
		return g
	}

	if minSize := output.Shape.Min(); len(minSize) > 0 {
		if indX < len(minSize) && indY < len(minSize) {
			g.Width = minSize[indX]
			g.Height = minSize[indY]
		}
	} else if shape := output.Shape.Shape(); len(shape) > 0 {
		if indX < len(shape) && indY < len(shape) {
			g.Width = shape[indX]
			g.Height = shape[indY]
		}
	}

	if steps := output.Shape.Step(); len(steps) > 0 {
		if indX < len(steps) && indY < len(steps) {
			g.StepWidth = steps[indX]
			g.StepHeight = steps[indY]
		}
	}

	if g.Width < 1 {
		g.Width = 1
	}
	if g.Height < 1 {
		g.Height = 1
	}
	if g.StepWidth < 0 {
		g.StepWidth = 0
	}
	if g.StepHeight < 0 {
		g.StepHeight = 0
	}
	return g
}
