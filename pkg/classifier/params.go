// Package classifier turns a parsed model descriptor into the configuration
// of an executable patch classifier: which image channels feed the model,
// what the output channels mean, how large a processing tile is, and the
// ordered processing pipeline around the prediction itself.
package classifier

import (
	"fmt"

	"bioclassify/internal/models"
	"bioclassify/pkg/config"
	"bioclassify/pkg/ops"
	"bioclassify/pkg/predict"
	"bioclassify/pkg/spec"
)

// Params is the finalized, immutable patch classifier configuration.
// Instances are produced by Builder.Finalize and are safe to share.
type Params struct {
	modelName         string
	inputChannels     []models.ChannelSelector
	outputClasses     []string
	outputChannelType models.OutputChannelType
	patchWidth        int
	patchHeight       int
	downsample        float64
	geometry          models.TileGeometry
	preprocessing     []ops.ImageOp
	prediction        ops.ImageOp
	postprocessing    []ops.ImageOp
}

// ModelName returns the name of the model the parameters came from.
func (p *Params) ModelName() string { return p.modelName }

// InputChannels returns the configured input channel selectors.
func (p *Params) InputChannels() []models.ChannelSelector { return p.inputChannels }

// OutputClasses returns the class label per output channel.
func (p *Params) OutputClasses() []string { return p.outputClasses }

// OutputChannelType returns the semantics of the output channels.
func (p *Params) OutputChannelType() models.OutputChannelType { return p.outputChannelType }

// PatchWidth returns the configured tile width in pixels.
func (p *Params) PatchWidth() int { return p.patchWidth }

// PatchHeight returns the configured tile height in pixels.
func (p *Params) PatchHeight() int { return p.patchHeight }

// Downsample returns the resolution factor the classifier runs at.
func (p *Params) Downsample() float64 { return p.downsample }

// Geometry returns the tile geometry resolved from the model descriptor.
func (p *Params) Geometry() models.TileGeometry { return p.geometry }

// Preprocessing returns the ordered preprocessing operations.
func (p *Params) Preprocessing() []ops.ImageOp { return p.preprocessing }

// Prediction returns the prediction operation.
func (p *Params) Prediction() ops.ImageOp { return p.prediction }

// Postprocessing returns the ordered postprocessing operations.
func (p *Params) Postprocessing() []ops.ImageOp { return p.postprocessing }

// Builder assembles classifier parameters. All values are plain fields set
// before a single Finalize call; nothing is validated until then, so fields
// can be filled in any order.
type Builder struct {
	ModelName         string
	InputChannels     []models.ChannelSelector
	OutputClasses     []string
	OutputChannelType models.OutputChannelType
	PatchWidth        int
	PatchHeight       int
	Downsample        float64
	Geometry          models.TileGeometry
	Preprocessing     []ops.ImageOp
	Prediction        ops.ImageOp
	Postprocessing    []ops.ImageOp

	// expected channel/class counts from the descriptor; zero disables the check
	wantChannels int
	wantClasses  int
}

// Finalize validates the builder and produces immutable parameters.
func (b *Builder) Finalize() (*Params, error) {
	if b.PatchWidth <= 0 || b.PatchHeight <= 0 {
		return nil, fmt.Errorf("patch size %dx%d must be positive", b.PatchWidth, b.PatchHeight)
	}
	if b.wantChannels > 0 && len(b.InputChannels) != b.wantChannels {
		return nil, fmt.Errorf("model expects %d input channels, %d configured",
			b.wantChannels, len(b.InputChannels))
	}
	if b.wantClasses > 0 && len(b.OutputClasses) != b.wantClasses {
		return nil, fmt.Errorf("model produces %d output channels, %d classes configured",
			b.wantClasses, len(b.OutputClasses))
	}
	if b.Geometry == (models.TileGeometry{}) {
		// No geometry resolved from a descriptor; any positive patch size goes.
	} else if b.Geometry.Fixed() {
		if b.PatchWidth != b.Geometry.Width || b.PatchHeight != b.Geometry.Height {
			return nil, fmt.Errorf("tile size is fixed to %dx%d by the model",
				b.Geometry.Width, b.Geometry.Height)
		}
	} else if max := b.Geometry.MaxTile(); b.PatchWidth > max || b.PatchHeight > max {
		return nil, fmt.Errorf("patch size %dx%d exceeds maximum tile size %d",
			b.PatchWidth, b.PatchHeight, max)
	}
	downsample := b.Downsample
	if downsample < 1 {
		downsample = 1
	}
	p := &Params{
		modelName:         b.ModelName,
		inputChannels:     append([]models.ChannelSelector(nil), b.InputChannels...),
		outputClasses:     append([]string(nil), b.OutputClasses...),
		outputChannelType: b.OutputChannelType,
		patchWidth:        b.PatchWidth,
		patchHeight:       b.PatchHeight,
		downsample:        downsample,
		geometry:          b.Geometry,
		preprocessing:     append([]ops.ImageOp(nil), b.Preprocessing...),
		prediction:        b.Prediction,
		postprocessing:    append([]ops.ImageOp(nil), b.Postprocessing...),
	}
	return p, nil
}

// FromModel pre-fills a builder from a model descriptor: default channel
// selectors and class labels matching the declared tensor dimensionality,
// the resolved tile geometry, the declared processing chains and an ONNX
// prediction operation.
func FromModel(m *spec.Model, cfg *config.Config) (*Builder, error) {
	if err := m.CheckSupported(); err != nil {
		return nil, err
	}
	input := &m.Inputs[0]
	output := &m.Outputs[0]

	geometry := ResolveTileGeometry(output,
		cfg.Classifier.DefaultPatchWidth, cfg.Classifier.DefaultPatchHeight)

	preprocessing, err := ops.FromDescriptor(input.Preprocessing)
	if err != nil {
		return nil, fmt.Errorf("preprocessing: %w", err)
	}
	postprocessing, err := ops.FromDescriptor(output.Postprocessing)
	if err != nil {
		return nil, fmt.Errorf("postprocessing: %w", err)
	}

	if m.Weights.ONNX == nil || m.Weights.ONNX.Source == "" {
		return nil, fmt.Errorf("%w: model provides no onnx weights", spec.ErrUnsupportedModel)
	}
	prediction, err := predict.New(m.ResolvePath(m.Weights.ONNX.Source), input, output)
	if err != nil {
		return nil, fmt.Errorf("building prediction op: %w", err)
	}

	nChannels := axisSize(input, 'c', 1)
	channels := make([]models.ChannelSelector, nChannels)
	for i := range channels {
		channels[i] = models.ChannelSelector{
			Kind:    models.SelectChannel,
			Channel: i,
			Name:    fmt.Sprintf("Channel %d", i+1),
		}
	}

	nClasses := axisSize(output, 'c', 1)
	classes := make([]string, nClasses)
	for i := range classes {
		classes[i] = fmt.Sprintf("Class %d", i+1)
	}

	return &Builder{
		ModelName:         m.Name,
		InputChannels:     channels,
		OutputClasses:     classes,
		OutputChannelType: models.OutputProbability,
		PatchWidth:        geometry.Width,
		PatchHeight:       geometry.Height,
		Downsample:        cfg.Classifier.DefaultDownsample,
		Geometry:          geometry,
		Preprocessing:     preprocessing,
		Prediction:        prediction,
		Postprocessing:    postprocessing,
		wantChannels:      nChannels,
		wantClasses:       nClasses,
	}, nil
}

// axisSize reads the size of one axis from a tensor spec's shape arrays,
// preferring the representative shape over the minimum.
func axisSize(t *spec.TensorSpec, axis byte, def int) int {
	ind := t.AxisIndex(axis)
	if ind < 0 {
		return def
	}
	if s := t.Shape.Shape(); ind < len(s) && s[ind] > 0 {
		return s[ind]
	}
	if m := t.Shape.Min(); ind < len(m) && m[ind] > 0 {
		return m[ind]
	}
	return def
}
