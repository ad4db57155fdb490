// Package autodiff provides reverse-mode automatic differentiation.
//
// A Backend decorates any tensor backend and, while its tape records,
// notes how to differentiate each operation. Custom nodes such as the
// codec bottleneck join the tape through Apply.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := model.Forward(x)
//	grads := autodiff.Backward(y, backend)
package autodiff

import (
	"github.com/bottlenet-ml/bottlenet/internal/autodiff"
	"github.com/bottlenet-ml/bottlenet/tensor"
)

// Backend is the recording backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New wraps backend with a gradient tape.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for backpropagation.
type GradientTape = autodiff.GradientTape

// BackwardCapable is implemented by backends that own a tape.
type BackwardCapable = autodiff.BackwardCapable

// Function is a custom differentiable node with its own backward rule.
type Function = autodiff.Function

// Backward returns the gradient of every recorded tensor with respect to t,
// seeding dL/dt with ones.
func Backward[B BackwardCapable](t *tensor.Tensor[float32, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}

// BackwardWith runs the tape from output with an explicit upstream gradient.
func BackwardWith(output, outputGrad *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.BackwardWith(output, outputGrad, backend)
}
