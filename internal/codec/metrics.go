package codec

import (
	"fmt"
	"math"
)

// MSE returns the mean squared error between two planes of equal size.
func MSE(a, b Plane) (float64, error) {
	if a.Rows != b.Rows || a.Cols != b.Cols || len(a.Pix) != len(b.Pix) {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensions, a.Rows, a.Cols, b.Rows, b.Cols)
	}
	if len(a.Pix) == 0 {
		return 0, nil
	}
	var sum float64
	for i, v := range a.Pix {
		d := float64(v) - float64(b.Pix[i])
		sum += d * d
	}
	return sum / float64(len(a.Pix)), nil
}

// PSNR returns the peak signal-to-noise ratio in dB for a peak of 1.
// Identical planes report +Inf.
func PSNR(a, b Plane) (float64, error) {
	mse, err := MSE(a, b)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 10 * math.Log10(1/mse), nil
}
