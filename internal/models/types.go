package models

// TileGeometry describes the tile size used when applying a model to a large
// image, together with the legal increment for each dimension. A step of zero
// means the corresponding dimension is fixed and must not be adjusted.
type TileGeometry struct {
	// Width is the tile width in pixels
	Width int

	// Height is the tile height in pixels
	Height int

	// StepWidth is the legal increment for the tile width (0 = fixed)
	StepWidth int

	// StepHeight is the legal increment for the tile height (0 = fixed)
	StepHeight int
}

// Fixed reports whether the tile size is not user-adjustable, i.e. both
// step increments are zero.
func (g TileGeometry) Fixed() bool {
	return g.StepWidth == 0 && g.StepHeight == 0
}

// MaxTile returns the upper bound for an adjustable tile dimension,
// defined as 8x the larger of width and height.
func (g TileGeometry) MaxTile() int {
	if g.Width > g.Height {
		return g.Width * 8
	}
	return g.Height * 8
}

// ChannelSelectorKind enumerates the ways an input channel can be derived
// from the channels of the image being classified.
type ChannelSelectorKind int

const (
	// SelectChannel extracts a single named image channel
	SelectChannel ChannelSelectorKind = iota

	// SelectMean averages all image channels
	SelectMean

	// SelectMaximum takes the per-pixel maximum across image channels
	SelectMaximum

	// SelectMinimum takes the per-pixel minimum across image channels
	SelectMinimum
)

// ChannelSelector describes how one model input channel is produced from
// the host image.
type ChannelSelector struct {
	// Kind selects the derivation strategy
	Kind ChannelSelectorKind

	// Channel is the zero-based image channel index, used when Kind is SelectChannel
	Channel int

	// Name is the display name of the selected channel, if known
	Name string
}

// OutputChannelType describes the semantics of the model output channels.
type OutputChannelType int

const (
	// OutputProbability means each output channel is a class probability map
	OutputProbability OutputChannelType = iota

	// OutputClassification means the output encodes a discrete class per pixel
	OutputClassification

	// OutputMulticlass means channels are independent (non-exclusive) detections
	OutputMulticlass
)

// String returns the lower-case name used in saved classifier files.
func (t OutputChannelType) String() string {
	switch t {
	case OutputProbability:
		return "probability"
	case OutputClassification:
		return "classification"
	case OutputMulticlass:
		return "multiclass"
	default:
		return "unknown"
	}
}

// ParseOutputChannelType converts a saved name back to an OutputChannelType.
// Unknown names map to OutputProbability.
func ParseOutputChannelType(s string) OutputChannelType {
	switch s {
	case "classification":
		return OutputClassification
	case "multiclass":
		return OutputMulticlass
	default:
		return OutputProbability
	}
}
