package bottleneck

import (
	"fmt"
	"math"
)

// Range decides how activations outside [0, 1] reach the codec.
type Range int

const (
	// RangeClamp quantizes values as they are, so anything below 0 or above
	// 1 saturates. Output is always in [0, 1].
	RangeClamp Range = iota

	// RangeMinMax rescales each call's tensor to [0, 1] before encoding and
	// maps the decoded values back, so output stays in the input's
	// [min, max] and out-of-range activations keep their magnitude.
	RangeMinMax
)

// String returns "clamp" or "minmax".
func (r Range) String() string {
	switch r {
	case RangeClamp:
		return "clamp"
	case RangeMinMax:
		return "minmax"
	default:
		return fmt.Sprintf("Range(%d)", int(r))
	}
}

// ParseRange parses the names produced by String. Empty means clamp.
func ParseRange(s string) (Range, error) {
	switch s {
	case "", "clamp":
		return RangeClamp, nil
	case "minmax":
		return RangeMinMax, nil
	default:
		return RangeClamp, fmt.Errorf("bottleneck: unknown range %q (want clamp or minmax)", s)
	}
}

// affine is the per-call map between activations and codec input.
type affine struct {
	active bool
	lo     float32
	span   float32
}

// fit measures the finite values only. Infinities then saturate at the ends
// of the range and NaN quantizes to 0, as under RangeClamp.
func (r Range) fit(pix []float32) affine {
	if r != RangeMinMax {
		return affine{}
	}
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range pix {
		if math.IsInf(float64(v), 0) || math.IsNaN(float64(v)) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo > hi {
		return affine{active: true}
	}
	return affine{active: true, lo: lo, span: hi - lo}
}

// normalize returns pix mapped onto [0, 1]. A constant tensor maps to 0.
func (a affine) normalize(pix []float32) []float32 {
	out := make([]float32, len(pix))
	if a.span == 0 {
		return out
	}
	for i, v := range pix {
		out[i] = min(max((v-a.lo)/a.span, 0), 1)
	}
	return out
}

func (a affine) restore(dst, decoded []float32) {
	for i, v := range decoded {
		dst[i] = a.lo + v*a.span
	}
}
