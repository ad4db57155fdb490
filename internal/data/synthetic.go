package data

import (
	"math"
	"math/rand/v2"
)

// SyntheticSide is the edge length of synthetic images, matching MNIST.
const SyntheticSide = 28

// Synthetic generates n labeled stripe images. Class k draws a sinusoidal
// grating whose orientation and frequency depend on k, with a random phase
// and additive noise from rng, so the classes are separable but not trivial.
func Synthetic(n int, rng *rand.Rand) *Dataset {
	const side = SyntheticSide
	pix := make([]float32, n*side*side)
	labels := make([]int32, n)

	for i := range n {
		k := rng.IntN(NumClasses)
		labels[i] = int32(k)

		angle := float64(k) * math.Pi / NumClasses
		freq := 2 * math.Pi * float64(2+k%3) / side
		cos, sin := math.Cos(angle), math.Sin(angle)
		phase := rng.Float64() * 2 * math.Pi

		img := pix[i*side*side : (i+1)*side*side]
		for y := range side {
			for x := range side {
				v := 0.5 + 0.4*math.Sin(freq*(float64(x)*cos+float64(y)*sin)+phase)
				v += 0.05 * rng.NormFloat64()
				img[y*side+x] = float32(min(max(v, 0), 1))
			}
		}
	}

	return &Dataset{pix: pix, labels: labels, rows: side, cols: side}
}
