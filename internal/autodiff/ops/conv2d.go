package ops

import "github.com/bottlenet-ml/bottlenet/internal/tensor"

// Conv2DOp records a 2D convolution.
//
//	output[n, oc, h, w] = sum_{c, kh, kw} input[n, c, h*s+kh-p, w*s+kw-p] * kernel[oc, c, kh, kw]
type Conv2DOp struct {
	binary
	stride  int
	padding int
}

// NewConv2DOp creates a new Conv2DOp.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{
		binary:  binary{a: input, b: kernel, output: output},
		stride:  stride,
		padding: padding,
	}
}

// Backward returns [grad_input, grad_kernel] using the backend's kernels.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.Conv2DInputBackward(op.a, op.b, outputGrad, op.stride, op.padding),
		backend.Conv2DKernelBackward(op.a, op.b, outputGrad, op.stride, op.padding),
	}
}
