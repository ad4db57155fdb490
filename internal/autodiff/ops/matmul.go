package ops

import "github.com/bottlenet-ml/bottlenet/internal/tensor"

// MatMulOp records output = a @ b for 2D a [M, K] and b [K, N].
type MatMulOp struct{ binary }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{binary{a: a, b: b, output: output}}
}

// Backward computes:
//
//	grad_a = grad @ b^T   [M, N] @ [N, K] -> [M, K]
//	grad_b = a^T @ grad   [K, M] @ [M, N] -> [K, N]
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.MatMul(outputGrad, backend.Transpose(op.b)),
		backend.MatMul(backend.Transpose(op.a), outputGrad),
	}
}
