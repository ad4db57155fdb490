package ops

import "github.com/bottlenet-ml/bottlenet/internal/tensor"

// ReLUForward computes max(0, x) into a new tensor.
func ReLUForward(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, x.Device())
	out := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		if v > 0 {
			out[i] = v
		}
	}
	return result
}

// ReLUOp records output = max(0, x).
type ReLUOp struct{ unary }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{unary{input: input, output: output}}
}

// Backward passes the gradient where the input was positive.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask := tensor.MustNewRaw(op.input.Shape(), tensor.Float32, backend.Device())
	m := mask.AsFloat32()
	for i, v := range op.input.AsFloat32() {
		if v > 0 {
			m[i] = 1
		}
	}
	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}
