// Package optim provides gradient-based optimizers and learning-rate
// schedules.
//
// Optimizers consume the gradient map produced by the autodiff tape and
// update parameter data in place:
//
//	grads := autodiff.Backward(loss, backend)
//	opt.Step(grads)
//	backend.Tape().Clear()
package optim

import (
	"github.com/bottlenet-ml/bottlenet/internal/nn"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// Optimizer updates parameters from gradients.
type Optimizer interface {
	// Step assigns each parameter its gradient from grads and applies one
	// update. Parameters without a gradient are left unchanged.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradients stored on the parameters.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR changes the learning rate; schedulers call it between epochs.
	SetLR(lr float32)
}

// base holds the parameter list and learning rate shared by optimizers.
type base[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	lr     float32
}

// ZeroGrad clears the gradients stored on the parameters.
func (o *base[B]) ZeroGrad() {
	for _, p := range o.params {
		p.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (o *base[B]) GetLR() float32 {
	return o.lr
}

// SetLR sets the learning rate.
func (o *base[B]) SetLR(lr float32) {
	o.lr = lr
}

// each calls update with the parameter index, its data and its gradient, for
// every parameter that has a gradient in grads.
func (o *base[B]) each(grads map[*tensor.RawTensor]*tensor.RawTensor, update func(i int, param, grad []float32)) {
	for i, p := range o.params {
		g := p.Gradient(grads)
		if g == nil {
			continue
		}
		p.SetGrad(g)
		update(i, p.Tensor().Data(), g.AsFloat32())
	}
}

// slots lazily allocates one zeroed state buffer per parameter.
type slots [][]float32

func newSlots[B tensor.Backend](params []*nn.Parameter[B]) slots {
	return make(slots, len(params))
}

func (s slots) get(i, n int) []float32 {
	if s[i] == nil {
		s[i] = make([]float32, n)
	}
	return s[i]
}
