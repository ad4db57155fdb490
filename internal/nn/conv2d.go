package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// Conv2D is a square-kernel 2D convolution with bias.
//
//	input:  [N, C_in, H, W]
//	weight: [C_out, C_in, K, K]
//	output: [N, C_out, (H+2p-K)/s+1, (W+2p-K)/s+1]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight  *Parameter[B]
	bias    *Parameter[B]
	backend B
}

// NewConv2D creates a Conv2D layer with Kaiming weights and zero bias.
func NewConv2D[B tensor.Backend](name string, inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand, backend B) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 || stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid config in=%d out=%d kernel=%d stride=%d padding=%d",
			inChannels, outChannels, kernelSize, stride, padding))
	}

	fanIn := inChannels * kernelSize * kernelSize
	weight := Kaiming(fanIn, tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, rng, backend)
	bias := tensor.Zeros[float32](tensor.Shape{outChannels}, backend)

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", bias),
		backend:     backend,
	}
}

// Forward convolves input and adds the bias broadcast over N, H and W.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: expected input [N, %d, H, W], got %v", c.inChannels, shape))
	}

	out := tensor.New[float32](c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding), c.backend)
	return out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
}

// Parameters returns [weight, bias].
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}

// OutputSize returns the spatial output size for an input of h x w.
func (c *Conv2D[B]) OutputSize(h, w int) (int, int) {
	return (h+2*c.padding-c.kernelSize)/c.stride + 1, (w+2*c.padding-c.kernelSize)/c.stride + 1
}

func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(%d -> %d, kernel=%d, stride=%d, padding=%d)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding)
}
