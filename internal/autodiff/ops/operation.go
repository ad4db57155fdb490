// Package ops defines the differentiable operations recorded on the gradient
// tape.
//
// Each operation keeps the tensors its backward pass needs and returns one
// gradient per input:
//   - AddOp, SubOp: gradient flows unchanged (reduced over broadcast dims)
//   - MulOp: d(a*b)/da = b, d(a*b)/db = a
//   - MatMulOp: dA = grad @ B^T, dB = A^T @ grad
//   - ReLUOp: grad masked where input <= 0
//   - Conv2DOp, MaxPool2DOp: delegate to the backend's backward kernels
//   - FunctionOp: delegates to a user supplied Function
package ops

import "github.com/bottlenet-ml/bottlenet/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The result is aligned with Inputs(); a nil entry means no gradient.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// unary is embedded by single-input operations.
type unary struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns the single input.
func (u unary) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{u.input}
}

// Output returns the output tensor.
func (u unary) Output() *tensor.RawTensor {
	return u.output
}

// binary is embedded by two-input operations.
type binary struct {
	a, b   *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns [a, b].
func (op binary) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.a, op.b}
}

// Output returns the output tensor.
func (op binary) Output() *tensor.RawTensor {
	return op.output
}

// reduceBroadcast sums grad back to shape when the forward pass broadcast
// an operand.
func reduceBroadcast(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(shape) {
		return grad
	}
	return backend.SumTo(grad, shape)
}
