package cpu

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/parallel"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

func (g convGeometry) checkGrad(op string, grad *tensor.RawTensor) {
	want := tensor.Shape{g.n, g.cOut, g.hOut, g.wOut}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("%s: gradient shape %v, expected %v", op, grad.Shape(), want))
	}
}

// Conv2DInputBackward computes dL/dinput for Conv2D.
//
// Every output gradient is scattered back through the kernel onto the input
// taps that produced it (col2im of kernel^T @ grad).
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_input_backward", input, kernel, stride, padding)
	requireFloat32("conv2d_input_backward", grad)
	g.checkGrad("conv2d_input_backward", grad)

	result := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	dx := result.AsFloat32()
	k := kernel.AsFloat32()
	dy := grad.AsFloat32()
	pos := g.positions()
	sample := g.cIn * g.h * g.w

	// Each sample writes a disjoint slice of dx.
	parallel.For(g.n, func(n int) {
		dxN := dx[n*sample : (n+1)*sample]
		dyN := dy[n*g.cOut*pos : (n+1)*g.cOut*pos]
		for oc := 0; oc < g.cOut; oc++ {
			for oh := 0; oh < g.hOut; oh++ {
				for ow := 0; ow < g.wOut; ow++ {
					gv := dyN[oc*pos+oh*g.wOut+ow]
					if gv == 0 {
						continue
					}
					hStart := oh*g.stride - g.padding
					wStart := ow*g.stride - g.padding
					for c := 0; c < g.cIn; c++ {
						kBase := ((oc*g.cIn + c) * g.kh) * g.kw
						for i := 0; i < g.kh; i++ {
							y := hStart + i
							if y < 0 || y >= g.h {
								continue
							}
							for j := 0; j < g.kw; j++ {
								x := wStart + j
								if x < 0 || x >= g.w {
									continue
								}
								dxN[(c*g.h+y)*g.w+x] += gv * k[kBase+i*g.kw+j]
							}
						}
					}
				}
			}
		}
	}, cpu.parallel)

	return result
}

// Conv2DKernelBackward computes dL/dkernel for Conv2D as the sum over the
// batch of grad @ im2col(input).
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_kernel_backward", input, kernel, stride, padding)
	requireFloat32("conv2d_kernel_backward", grad)
	g.checkGrad("conv2d_kernel_backward", grad)

	width := g.colWidth()
	pos := g.positions()
	in := input.AsFloat32()
	dy := grad.AsFloat32()

	// Per-sample partial gradients are reduced afterwards so workers never
	// share an accumulator.
	partial := make([][]float32, g.n)
	parallel.For(g.n, func(n int) {
		col := make([]float32, pos*width)
		g.im2col(col, in, n)

		dk := make([]float32, g.cOut*width)
		dyN := dy[n*g.cOut*pos : (n+1)*g.cOut*pos]
		for oc := 0; oc < g.cOut; oc++ {
			dkRow := dk[oc*width : (oc+1)*width]
			for p := 0; p < pos; p++ {
				gv := dyN[oc*pos+p]
				if gv == 0 {
					continue
				}
				cRow := col[p*width : (p+1)*width]
				for i, cv := range cRow {
					dkRow[i] += gv * cv
				}
			}
		}
		partial[n] = dk
	}, cpu.parallel)

	result := tensor.MustNewRaw(kernel.Shape(), tensor.Float32, cpu.device)
	dk := result.AsFloat32()
	for _, p := range partial {
		for i, v := range p {
			dk[i] += v
		}
	}
	return result
}
