package cpu

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// poolOutput validates a pooling call and returns the input and output
// spatial dimensions.
func poolOutput(op string, input *tensor.RawTensor, kernelSize, stride int) (n, c, h, w, hOut, wOut int) {
	requireFloat32(op, input)

	n, c, h, w, err := input.Shape().Dims4()
	if err != nil {
		panic(fmt.Sprintf("%s: expected [N,C,H,W] input: %v", op, err))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("%s: invalid kernel size %d / stride %d", op, kernelSize, stride))
	}
	if kernelSize > h || kernelSize > w {
		panic(fmt.Sprintf("%s: kernel size %d too large for input %dx%d", op, kernelSize, h, w))
	}
	return n, c, h, w, (h-kernelSize)/stride + 1, (w-kernelSize)/stride + 1
}

// MaxPool2D takes the maximum of each kernelSize x kernelSize window.
//
//	input:  [N, C, H, W]
//	output: [N, C, (H-k)/stride+1, (W-k)/stride+1]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	n, c, h, w, hOut, wOut := poolOutput("maxpool2d", input, kernelSize, stride)

	output := tensor.MustNewRaw(tensor.Shape{n, c, hOut, wOut}, tensor.Float32, cpu.device)
	in := input.AsFloat32()
	out := output.AsFloat32()

	o := 0
	for plane := 0; plane < n*c; plane++ {
		base := plane * h * w
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				best := in[base+oh*stride*w+ow*stride]
				for i := 0; i < kernelSize; i++ {
					row := base + (oh*stride+i)*w + ow*stride
					for j := 0; j < kernelSize; j++ {
						if v := in[row+j]; v > best {
							best = v
						}
					}
				}
				out[o] = best
				o++
			}
		}
	}
	return output
}

// MaxPool2DBackward routes each output gradient to the input position
// recorded in maxIndices. Overlapping windows accumulate.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, maxIndices []int, kernelSize, stride int) *tensor.RawTensor {
	n, c, _, _, hOut, wOut := poolOutput("maxpool2d_backward", input, kernelSize, stride)
	requireFloat32("maxpool2d_backward", grad)

	if want := n * c * hOut * wOut; grad.NumElements() != want || len(maxIndices) != want {
		panic(fmt.Sprintf("maxpool2d_backward: expected %d gradients and indices, got %d and %d",
			want, grad.NumElements(), len(maxIndices)))
	}

	result := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	dx := result.AsFloat32()
	for i, gv := range grad.AsFloat32() {
		dx[maxIndices[i]] += gv
	}
	return result
}
