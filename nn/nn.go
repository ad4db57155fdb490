// Package nn provides the layers used to build bottlenet classifiers.
//
// Layers: Linear, Conv2D, MaxPool2D, ReLU, Dropout, Flatten and the codec
// Bottleneck. Losses: CrossEntropyLoss. Utilities: Sequential, Parameter,
// Xavier and Kaiming initialization.
//
//	backend := autodiff.New(cpu.New())
//	rng := tensor.NewRNG(1)
//	model := nn.NewSequential[B](
//	    nn.NewConv2D("conv", 1, 8, 3, 1, 0, rng, backend),
//	    nn.NewReLU[B](),
//	    nn.NewBottleneck[B](nil, true, backend),
//	    nn.NewFlatten[B](),
//	    nn.NewLinear("fc", 8*26*26, 10, rng, backend),
//	)
package nn

import (
	"math/rand/v2"

	"github.com/bottlenet-ml/bottlenet/autodiff"
	"github.com/bottlenet-ml/bottlenet/internal/nn"
	"github.com/bottlenet-ml/bottlenet/tensor"
)

// Module is a layer or network.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// SetTraining switches m and its children between training and evaluation.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	nn.SetTraining(m, training)
}

// Linear is a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a Linear layer with Xavier-initialized weights.
func NewLinear[B tensor.Backend](name string, in, out int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(name, in, out, rng, backend)
}

// Conv2D is a 2-D convolution over [N, C, H, W] inputs.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a square-kernel convolution with Kaiming init.
func NewConv2D[B tensor.Backend](name string, in, out, kernel, stride, padding int, rng *rand.Rand, backend B) *Conv2D[B] {
	return nn.NewConv2D(name, in, out, kernel, stride, padding, rng, backend)
}

// MaxPool2D is max pooling.
type MaxPool2D[B tensor.Backend] = nn.MaxPool2D[B]

// NewMaxPool2D creates a MaxPool2D layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	return nn.NewMaxPool2D(kernelSize, stride, backend)
}

// ReLU is max(0, x).
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Dropout zeroes activations with probability p during training.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a Dropout layer drawing masks from rng.
func NewDropout[B tensor.Backend](p float32, rng *rand.Rand, backend B) *Dropout[B] {
	return nn.NewDropout(p, rng, backend)
}

// Flatten collapses all but the batch dimension.
type Flatten[B tensor.Backend] = nn.Flatten[B]

// NewFlatten creates a Flatten layer.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return nn.NewFlatten[B]()
}

// Bottleneck inserts a lossy codec round trip with a straight-through
// gradient.
type Bottleneck[B tensor.Backend] = nn.Bottleneck[B]

// NewBottleneck creates a Bottleneck layer; nil fn means JPEG quality 90.
func NewBottleneck[B tensor.Backend](fn autodiff.Function, enabled bool, backend B) *Bottleneck[B] {
	return nn.NewBottleneck(fn, enabled, backend)
}

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// CrossEntropyLoss is fused log-softmax and negative log-likelihood.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates the loss for backend.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss(backend)
}

// Accuracy returns the fraction of rows of logits that pick the target.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float64 {
	return nn.Accuracy(logits, targets)
}

// Xavier draws a Glorot-uniform tensor.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, rng, backend)
}

// Kaiming draws a He-uniform tensor.
func Kaiming[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return nn.Kaiming(fanIn, shape, rng, backend)
}
