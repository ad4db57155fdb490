package nn

import (
	"math"
	"math/rand/v2"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// Xavier returns a tensor drawn from U(-a, a) with a = sqrt(6 / (fanIn +
// fanOut)) (Glorot & Bengio, 2010).
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return uniform(math.Sqrt(6.0/float64(fanIn+fanOut)), shape, rng, backend)
}

// Kaiming returns a tensor drawn from U(-a, a) with a = sqrt(6 / fanIn), the
// He initialization for layers followed by ReLU.
func Kaiming[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return uniform(math.Sqrt(6.0/float64(fanIn)), shape, rng, backend)
}

func uniform[B tensor.Backend](bound float64, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2 - 1) * bound)
	}
	return t
}
