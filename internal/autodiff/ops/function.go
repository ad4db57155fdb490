package ops

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// Function is a custom node with a hand-written gradient. Forward may be
// non-differentiable (a codec round trip, a quantizer); Backward supplies the
// surrogate gradient the tape uses in its place.
//
// Implementations must not retain state between calls: the same Function
// value may be applied concurrently to independent tensors.
type Function interface {
	// Name identifies the node in errors.
	Name() string

	// Forward computes the node's output.
	Forward(x *tensor.RawTensor) (*tensor.RawTensor, error)

	// Backward maps the gradient of the output to the gradient of the input.
	Backward(grad *tensor.RawTensor) (*tensor.RawTensor, error)
}

// FunctionOp records one application of a Function.
type FunctionOp struct {
	unary
	fn Function
}

// NewFunctionOp creates a new FunctionOp.
func NewFunctionOp(fn Function, input, output *tensor.RawTensor) *FunctionOp {
	return &FunctionOp{unary: unary{input: input, output: output}, fn: fn}
}

// Backward delegates to the Function. Operation.Backward has no error
// result, so a failing Function panics like any other kernel.
func (op *FunctionOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grad, err := op.fn.Backward(outputGrad)
	if err != nil {
		panic(fmt.Sprintf("%s backward: %v", op.fn.Name(), err))
	}
	if !grad.Shape().Equal(op.input.Shape()) {
		panic(fmt.Sprintf("%s backward: gradient shape %v, input shape %v",
			op.fn.Name(), grad.Shape(), op.input.Shape()))
	}
	return []*tensor.RawTensor{grad}
}

// Function returns the recorded Function.
func (op *FunctionOp) Function() Function {
	return op.fn
}
