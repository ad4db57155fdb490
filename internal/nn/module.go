// Package nn provides the layers used to build convolutional classifiers on
// top of a tensor backend.
//
// Layers are generic over the backend. Wrapping the backend with
// autodiff.New makes every layer trainable:
//
//	backend := autodiff.New(cpu.New())
//	model := nn.NewSequential[*autodiff.AutodiffBackend[*cpu.CPUBackend]](
//	    nn.NewConv2D("conv1", 1, 16, 3, 1, 0, rng, backend),
//	    nn.NewReLU[*autodiff.AutodiffBackend[*cpu.CPUBackend]](),
//	)
package nn

import "github.com/bottlenet-ml/bottlenet/internal/tensor"

// Module is a layer or a composition of layers.
type Module[B tensor.Backend] interface {
	// Forward computes the layer's output. Layers panic on inputs whose shape
	// they cannot accept.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns the trainable parameters, or nil.
	Parameters() []*Parameter[B]
}

// ModeSetter is implemented by layers that behave differently during
// training and evaluation.
type ModeSetter interface {
	SetTraining(training bool)
}

// SetTraining switches m and every nested layer between training and
// evaluation mode.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	if s, ok := m.(ModeSetter); ok {
		s.SetTraining(training)
	}
}

// Parameter is a named trainable tensor and the gradient last assigned to it.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.RawTensor
}

// NewParameter creates a parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter name (e.g. "conv1.weight").
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor. Optimizers update its data in place.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Gradient looks up p's gradient in the map produced by the tape, or nil.
func (p *Parameter[B]) Gradient(grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	return grads[p.tensor.Raw()]
}

// Grad returns the gradient set by the last optimizer step, or nil.
func (p *Parameter[B]) Grad() *tensor.RawTensor {
	return p.grad
}

// SetGrad stores grad for p.
func (p *Parameter[B]) SetGrad(grad *tensor.RawTensor) {
	p.grad = grad
}

// ZeroGrad drops the stored gradient.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// CountParameters returns the number of scalar parameters in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.tensor.NumElements()
	}
	return n
}
