package cpu

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// Reshape returns a view of t with newShape. The buffer is shared; no
// kernel in this backend writes into its inputs.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	view, err := t.View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// Transpose permutes the axes of t. With no axes it reverses them.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	requireFloat32("transpose", t)

	shape := t.Shape()
	rank := len(shape)
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), rank))
	}

	seen := make([]bool, rank)
	newShape := make(tensor.Shape, rank)
	for i, ax := range axes {
		if ax < 0 || ax >= rank || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid permutation %v", axes))
		}
		seen[ax] = true
		newShape[i] = shape[ax]
	}

	result := tensor.MustNewRaw(newShape, tensor.Float32, cpu.device)
	in := t.AsFloat32()
	out := result.AsFloat32()
	inStrides := t.Strides()
	outStrides := result.Strides()

	for flat := range out {
		rem := flat
		src := 0
		for d := 0; d < rank; d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			src += coord * inStrides[axes[d]]
		}
		out[flat] = in[src]
	}
	return result
}

// SumTo sums x over the dimensions that were broadcast to produce it, so the
// result has shape. It is the adjoint of broadcasting.
func (cpu *CPUBackend) SumTo(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	requireFloat32("sumto", x)

	if x.Shape().Equal(shape) {
		return x.Copy()
	}
	if _, _, err := tensor.BroadcastShapes(shape, x.Shape()); err != nil || len(shape) > len(x.Shape()) {
		panic(fmt.Sprintf("sumto: cannot reduce %v to %v", x.Shape(), shape))
	}

	result := tensor.MustNewRaw(shape, tensor.Float32, cpu.device)
	out := result.AsFloat32()
	idx := broadcastIndex(shape, x.Shape())
	for i, v := range x.AsFloat32() {
		out[idx[i]] += v
	}
	return result
}
