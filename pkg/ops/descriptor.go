package ops

import (
	"fmt"

	"bioclassify/pkg/spec"
)

// FromDescriptor converts declared processing operations into executable
// ImageOps. A declaration this package does not recognize makes the whole
// chain malformed, since skipping a step would silently change the model's
// numeric behavior; so does an argument that cannot be read as its
// expected type.
func FromDescriptor(declared []spec.OpSpec) ([]ImageOp, error) {
	out := make([]ImageOp, 0, len(declared))
	for _, d := range declared {
		op, err := fromSpec(d)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

func fromSpec(d spec.OpSpec) (op ImageOp, err error) {
	kw := kwargs(d.Kwargs)
	switch d.Name {
	case "scale_linear":
		var gain, offset []float64
		if gain, err = kw.floats("gain"); err == nil {
			offset, err = kw.floats("offset")
		}
		op = &ScaleLinear{Gain: gain, Offset: offset}
	case "zero_mean_unit_variance":
		var mean, std []float64
		var eps float64
		if mean, err = kw.floats("mean"); err == nil {
			if std, err = kw.floats("std"); err == nil {
				eps, err = kw.float("eps")
			}
		}
		op = &ZeroMeanUnitVariance{Mode: kw.str("mode"), Mean: mean, Std: std, Eps: eps}
	case "scale_range":
		var minP, maxP, eps float64
		if minP, err = kw.float("min_percentile"); err == nil {
			if maxP, err = kw.float("max_percentile"); err == nil {
				eps, err = kw.float("eps")
			}
		}
		op = &ScaleRange{MinPercentile: minP, MaxPercentile: maxP, Eps: eps}
	case "sigmoid":
		op = &Sigmoid{}
	case "binarize":
		var threshold float64
		threshold, err = kw.float("threshold")
		op = &Binarize{Threshold: threshold}
	case "clip":
		var lo, hi float64
		if lo, err = kw.float("min"); err == nil {
			hi, err = kw.float("max")
		}
		op = &Clip{Min: lo, Max: hi}
	default:
		return nil, fmt.Errorf("unsupported processing operation %q", d.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name, err)
	}
	return op, nil
}

// kwargs wraps the loosely typed keyword arguments decoded from YAML.
// Absent arguments fall back to the operation's defaults; present but
// untypeable arguments are errors.
type kwargs map[string]any

func (k kwargs) float(name string) (float64, error) {
	raw, present := k[name]
	if !present {
		return 0, nil
	}
	v, ok := toFloat(raw)
	if !ok {
		return 0, fmt.Errorf("argument %q is not numeric (%v)", name, raw)
	}
	return v, nil
}

func (k kwargs) floats(name string) ([]float64, error) {
	raw, present := k[name]
	if !present {
		return nil, nil
	}
	switch v := raw.(type) {
	case []any:
		out := make([]float64, 0, len(v))
		for _, e := range v {
			f, ok := toFloat(e)
			if !ok {
				return nil, fmt.Errorf("argument %q holds a non-numeric value (%v)", name, e)
			}
			out = append(out, f)
		}
		return out, nil
	default:
		if f, ok := toFloat(v); ok {
			return []float64{f}, nil
		}
		return nil, fmt.Errorf("argument %q is not numeric (%v)", name, raw)
	}
}

func (k kwargs) str(name string) string {
	s, _ := k[name].(string)
	return s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
