package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bioclassify/internal/models"
	"bioclassify/pkg/ops"
	"bioclassify/pkg/tensor"
)

// Classifier is an executable pixel classifier built from finalized
// parameters: the composed processing pipeline plus the configuration
// needed to save and later rebuild it.
type Classifier struct {
	name              string
	inputChannels     []models.ChannelSelector
	outputClasses     []string
	outputChannelType models.OutputChannelType
	patchWidth        int
	patchHeight       int
	downsample        float64
	geometry          models.TileGeometry
	pipeline          ops.ImageOp
}

// Build composes the classifier from finalized parameters: the ordered
// preprocessing list, the prediction operation and the postprocessing list
// become one sequential pipeline.
func Build(p *Params) (*Classifier, error) {
	if p.Prediction() == nil {
		return nil, fmt.Errorf("parameters carry no prediction operation")
	}
	chain := make([]ops.ImageOp, 0, len(p.Preprocessing())+1+len(p.Postprocessing()))
	chain = append(chain, p.Preprocessing()...)
	chain = append(chain, p.Prediction())
	chain = append(chain, p.Postprocessing()...)

	return &Classifier{
		name:              p.ModelName(),
		inputChannels:     p.InputChannels(),
		outputClasses:     p.OutputClasses(),
		outputChannelType: p.OutputChannelType(),
		patchWidth:        p.PatchWidth(),
		patchHeight:       p.PatchHeight(),
		downsample:        p.Downsample(),
		geometry:          p.Geometry(),
		pipeline:          ops.Sequential(chain...),
	}, nil
}

// Name returns the classifier name (the model name by default).
func (c *Classifier) Name() string { return c.name }

// SetName renames the classifier before saving.
func (c *Classifier) SetName(name string) { c.name = name }

// OutputClasses returns the class label per output channel.
func (c *Classifier) OutputClasses() []string { return c.outputClasses }

// Pipeline returns the composed processing operation.
func (c *Classifier) Pipeline() ops.ImageOp { return c.pipeline }

// ApplyToTile runs the full pipeline on one input tile.
func (c *Classifier) ApplyToTile(t *tensor.Tensor) (*tensor.Tensor, error) {
	return c.pipeline.Apply(t)
}

// classifierFile is the saved JSON representation. The pipeline itself is
// not serialized; the host rebuilds it from the model descriptor.
type classifierFile struct {
	Name              string           `json:"name"`
	InputChannels     []channelFile    `json:"input_channels"`
	OutputClasses     []string         `json:"output_classes"`
	OutputChannelType string           `json:"output_channel_type"`
	PatchWidth        int              `json:"patch_width"`
	PatchHeight       int              `json:"patch_height"`
	Downsample        float64          `json:"downsample"`
	TileGeometry      tileGeometryFile `json:"tile_geometry"`
}

type channelFile struct {
	Kind    int    `json:"kind"`
	Channel int    `json:"channel"`
	Name    string `json:"name,omitempty"`
}

type tileGeometryFile struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	StepWidth  int `json:"step_width"`
	StepHeight int `json:"step_height"`
}

// WriteClassifier saves the classifier configuration as JSON.
func WriteClassifier(c *Classifier, path string) error {
	f := classifierFile{
		Name:              c.name,
		OutputClasses:     c.outputClasses,
		OutputChannelType: c.outputChannelType.String(),
		PatchWidth:        c.patchWidth,
		PatchHeight:       c.patchHeight,
		Downsample:        c.downsample,
		TileGeometry: tileGeometryFile{
			Width:      c.geometry.Width,
			Height:     c.geometry.Height,
			StepWidth:  c.geometry.StepWidth,
			StepHeight: c.geometry.StepHeight,
		},
	}
	for _, ch := range c.inputChannels {
		f.InputChannels = append(f.InputChannels, channelFile{
			Kind:    int(ch.Kind),
			Channel: ch.Channel,
			Name:    ch.Name,
		})
	}
	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding classifier: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating classifier directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing classifier: %w", err)
	}
	return nil
}

// ReadClassifier loads a saved classifier configuration. The returned
// classifier has no pipeline; it describes the saved configuration only.
func ReadClassifier(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading classifier: %w", err)
	}
	var f classifierFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding classifier: %w", err)
	}
	c := &Classifier{
		name:              f.Name,
		outputClasses:     f.OutputClasses,
		outputChannelType: models.ParseOutputChannelType(f.OutputChannelType),
		patchWidth:        f.PatchWidth,
		patchHeight:       f.PatchHeight,
		downsample:        f.Downsample,
		geometry: models.TileGeometry{
			Width:      f.TileGeometry.Width,
			Height:     f.TileGeometry.Height,
			StepWidth:  f.TileGeometry.StepWidth,
			StepHeight: f.TileGeometry.StepHeight,
		},
	}
	for _, ch := range f.InputChannels {
		c.inputChannels = append(c.inputChannels, models.ChannelSelector{
			Kind:    models.ChannelSelectorKind(ch.Kind),
			Channel: ch.Channel,
			Name:    ch.Name,
		})
	}
	return c, nil
}
