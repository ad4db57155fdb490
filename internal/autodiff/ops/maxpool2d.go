package ops

import "github.com/bottlenet-ml/bottlenet/internal/tensor"

// MaxPool2DOp records a max pooling. The flat input index of every window's
// maximum is captured at record time so the backward pass can route the
// gradient to it; every other position in the window gets zero.
type MaxPool2DOp struct {
	unary
	maxIndices []int
	kernelSize int
	stride     int
}

// NewMaxPool2DOp creates a new MaxPool2DOp.
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *MaxPool2DOp {
	return &MaxPool2DOp{
		unary:      unary{input: input, output: output},
		maxIndices: MaxIndices(input, output.Shape(), kernelSize, stride),
		kernelSize: kernelSize,
		stride:     stride,
	}
}

// MaxIndices returns, for every element of a pooled output of outShape, the
// flat input index holding the window maximum. Ties go to the first position
// in row-major order.
func MaxIndices(input *tensor.RawTensor, outShape tensor.Shape, kernelSize, stride int) []int {
	in := input.AsFloat32()
	shape := input.Shape()
	planes, h, w := shape[0]*shape[1], shape[2], shape[3]
	hOut, wOut := outShape[2], outShape[3]

	indices := make([]int, 0, planes*hOut*wOut)
	for p := 0; p < planes; p++ {
		base := p * h * w
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				best := base + oh*stride*w + ow*stride
				for i := 0; i < kernelSize; i++ {
					for j := 0; j < kernelSize; j++ {
						idx := base + (oh*stride+i)*w + ow*stride + j
						if in[idx] > in[best] {
							best = idx
						}
					}
				}
				indices = append(indices, best)
			}
		}
	}
	return indices
}

// Backward routes the gradient to the recorded maxima.
func (op *MaxPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.MaxPool2DBackward(op.input, outputGrad, op.maxIndices, op.kernelSize, op.stride),
	}
}
