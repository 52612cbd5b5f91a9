package ops

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"bioclassify/pkg/tensor"
)

// pointwise is the base for operations that need no padding.
type pointwise struct{}

func (pointwise) Padding() Padding { return Padding{} }

// ScaleLinear multiplies each sample by a gain and adds an offset. Gain and
// offset may be scalar (length 1) or per-channel.
type ScaleLinear struct {
	pointwise
	Gain   []float64
	Offset []float64
}

func (op *ScaleLinear) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	gain, err := perChannel(op.Gain, t.Channels(), 1)
	if err != nil {
		return nil, fmt.Errorf("scale_linear gain: %w", err)
	}
	offset, err := perChannel(op.Offset, t.Channels(), 0)
	if err != nil {
		return nil, fmt.Errorf("scale_linear offset: %w", err)
	}
	out := t.Clone()
	mapChannels(out, func(ch int, v float64) float64 {
		return v*gain[ch] + offset[ch]
	})
	return out, nil
}

// ZeroMeanUnitVariance normalizes samples to zero mean and unit variance.
// In "fixed" mode the mean and standard deviation come from the descriptor;
// otherwise they are computed per channel from the tensor itself.
type ZeroMeanUnitVariance struct {
	pointwise
	Mode string
	Mean []float64
	Std  []float64
	Eps  float64
}

func (op *ZeroMeanUnitVariance) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	eps := op.Eps
	if eps == 0 {
		eps = 1e-6
	}
	nc := t.Channels()
	mean := make([]float64, nc)
	std := make([]float64, nc)
	if op.Mode == "fixed" {
		m, err := perChannel(op.Mean, nc, 0)
		if err != nil {
			return nil, fmt.Errorf("zero_mean_unit_variance mean: %w", err)
		}
		s, err := perChannel(op.Std, nc, 1)
		if err != nil {
			return nil, fmt.Errorf("zero_mean_unit_variance std: %w", err)
		}
		copy(mean, m)
		copy(std, s)
	} else {
		for ch := 0; ch < nc; ch++ {
			samples := channelSamples(t, ch)
			m, s := stat.MeanStdDev(samples, nil)
			if math.IsNaN(s) {
				s = 0
			}
			mean[ch] = m
			std[ch] = s
		}
	}
	out := t.Clone()
	mapChannels(out, func(ch int, v float64) float64 {
		return (v - mean[ch]) / (std[ch] + eps)
	})
	return out, nil
}

// ScaleRange rescales each channel so that the given lower and upper
// percentiles map to 0 and 1.
type ScaleRange struct {
	pointwise
	MinPercentile float64
	MaxPercentile float64
	Eps           float64
}

func (op *ScaleRange) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	lo, hi := op.MinPercentile, op.MaxPercentile
	if hi == 0 {
		hi = 100
	}
	if lo < 0 || hi > 100 || lo >= hi {
		return nil, fmt.Errorf("scale_range percentiles [%g, %g] out of order", lo, hi)
	}
	eps := op.Eps
	if eps == 0 {
		eps = 1e-6
	}
	nc := t.Channels()
	lower := make([]float64, nc)
	upper := make([]float64, nc)
	for ch := 0; ch < nc; ch++ {
		samples := channelSamples(t, ch)
		sort.Float64s(samples)
		lower[ch] = stat.Quantile(lo/100, stat.Empirical, samples, nil)
		upper[ch] = stat.Quantile(hi/100, stat.Empirical, samples, nil)
	}
	out := t.Clone()
	mapChannels(out, func(ch int, v float64) float64 {
		return (v - lower[ch]) / (upper[ch] - lower[ch] + eps)
	})
	return out, nil
}

// Sigmoid applies the logistic function to every sample.
type Sigmoid struct {
	pointwise
}

func (op *Sigmoid) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	out := t.Clone()
	mapChannels(out, func(_ int, v float64) float64 {
		return 1 / (1 + math.Exp(-v))
	})
	return out, nil
}

// Binarize thresholds every sample to 0 or 1.
type Binarize struct {
	pointwise
	Threshold float64
}

func (op *Binarize) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	out := t.Clone()
	mapChannels(out, func(_ int, v float64) float64 {
		if v > op.Threshold {
			return 1
		}
		return 0
	})
	return out, nil
}

// Clip limits every sample to the [Min, Max] interval.
type Clip struct {
	pointwise
	Min float64
	Max float64
}

func (op *Clip) Apply(t *tensor.Tensor) (*tensor.Tensor, error) {
	if op.Max < op.Min {
		return nil, fmt.Errorf("clip bounds [%g, %g] out of order", op.Min, op.Max)
	}
	out := t.Clone()
	mapChannels(out, func(_ int, v float64) float64 {
		return math.Min(op.Max, math.Max(op.Min, v))
	})
	return out, nil
}

// perChannel expands a scalar-or-per-channel argument to one value per
// channel, substituting a default when the argument is absent.
func perChannel(vals []float64, channels int, def float64) ([]float64, error) {
	out := make([]float64, channels)
	switch len(vals) {
	case 0:
		for i := range out {
			out[i] = def
		}
	case 1:
		for i := range out {
			out[i] = vals[0]
		}
	case channels:
		copy(out, vals)
	default:
		return nil, fmt.Errorf("got %d values for %d channels", len(vals), channels)
	}
	return out, nil
}

// channelSamples copies one channel's samples into a flat slice.
func channelSamples(t *tensor.Tensor, channel int) []float64 {
	out := make([]float64, 0, t.Rows()*t.Cols())
	for r := 0; r < t.Rows(); r++ {
		for c := 0; c < t.Cols(); c++ {
			out = append(out, t.At(r, c, channel))
		}
	}
	return out
}

// mapChannels rewrites every sample of the tensor in place.
func mapChannels(t *tensor.Tensor, f func(channel int, v float64) float64) {
	for r := 0; r < t.Rows(); r++ {
		for c := 0; c < t.Cols(); c++ {
			for ch := 0; ch < t.Channels(); ch++ {
				t.Set(r, c, ch, f(ch, t.At(r, c, ch)))
			}
		}
	}
}
