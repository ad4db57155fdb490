package cpu

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/parallel"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// convGeometry holds the dimensions shared by the forward and backward
// convolution kernels.
type convGeometry struct {
	n, cIn, h, w    int
	cOut, kh, kw    int
	hOut, wOut      int
	stride, padding int
}

func newConvGeometry(op string, input, kernel *tensor.RawTensor, stride, padding int) convGeometry {
	requireFloat32(op, input, kernel)

	n, cIn, h, w, err := input.Shape().Dims4()
	if err != nil {
		panic(fmt.Sprintf("%s: input must be [N,C,H,W]: %v", op, err))
	}
	cOut, cInK, kh, kw, err := kernel.Shape().Dims4()
	if err != nil {
		panic(fmt.Sprintf("%s: kernel must be [C_out,C_in,K_h,K_w]: %v", op, err))
	}
	if cIn != cInK {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, cIn, cInK))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d / padding %d", op, stride, padding))
	}

	g := convGeometry{
		n: n, cIn: cIn, h: h, w: w,
		cOut: cOut, kh: kh, kw: kw,
		stride: stride, padding: padding,
	}
	g.hOut = (h+2*padding-kh)/stride + 1
	g.wOut = (w+2*padding-kw)/stride + 1
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions %dx%d (check stride/padding)", op, g.hOut, g.wOut))
	}
	return g
}

func (g convGeometry) colWidth() int  { return g.cIn * g.kh * g.kw }
func (g convGeometry) positions() int { return g.hOut * g.wOut }

// im2col unrolls the patches of sample n into col, one row per output
// position. Out-of-bounds taps read as zero.
func (g convGeometry) im2col(col, input []float32, n int) {
	width := g.colWidth()
	base := n * g.cIn * g.h * g.w
	row := 0
	for oh := 0; oh < g.hOut; oh++ {
		for ow := 0; ow < g.wOut; ow++ {
			hStart := oh*g.stride - g.padding
			wStart := ow*g.stride - g.padding
			idx := row * width
			for c := 0; c < g.cIn; c++ {
				for i := 0; i < g.kh; i++ {
					for j := 0; j < g.kw; j++ {
						y, x := hStart+i, wStart+j
						if y >= 0 && y < g.h && x >= 0 && x < g.w {
							col[idx] = input[base+(c*g.h+y)*g.w+x]
						} else {
							col[idx] = 0
						}
						idx++
					}
				}
			}
			row++
		}
	}
}

// Conv2D performs 2D cross-correlation using im2col.
//
//	input:  [N, C_in, H, W]
//	kernel: [C_out, C_in, K_h, K_w]
//	output: [N, C_out, H_out, W_out]
//
// Samples are processed concurrently according to the backend's parallel
// configuration.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d", input, kernel, stride, padding)

	output := tensor.MustNewRaw(tensor.Shape{g.n, g.cOut, g.hOut, g.wOut}, tensor.Float32, cpu.device)
	in := input.AsFloat32()
	k := kernel.AsFloat32()
	out := output.AsFloat32()

	width := g.colWidth()
	pos := g.positions()

	parallel.For(g.n, func(n int) {
		col := make([]float32, pos*width)
		g.im2col(col, in, n)

		dst := out[n*g.cOut*pos : (n+1)*g.cOut*pos]
		for oc := 0; oc < g.cOut; oc++ {
			kRow := k[oc*width : (oc+1)*width]
			for p := 0; p < pos; p++ {
				cRow := col[p*width : (p+1)*width]
				var sum float32
				for i, kv := range kRow {
					sum += kv * cRow[i]
				}
				dst[oc*pos+p] = sum
			}
		}
	}, cpu.parallel)

	return output
}
