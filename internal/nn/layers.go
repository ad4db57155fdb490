package nn

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// ReLUBackend is implemented by backends that provide a ReLU kernel, such as
// autodiff.AutodiffBackend.
type ReLUBackend interface {
	ReLU(*tensor.RawTensor) *tensor.RawTensor
}

// ReLU applies max(0, x).
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a ReLU layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU through the backend.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	rb, ok := any(backend).(ReLUBackend)
	if !ok {
		panic("relu: backend must implement ReLU (use autodiff.AutodiffBackend)")
	}
	return tensor.New[float32](rb.ReLU(input.Raw()), backend)
}

// Parameters returns nil.
func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

func (r *ReLU[B]) String() string { return "ReLU" }

// MaxPool2D takes the maximum over square windows.
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	backend    B
}

// NewMaxPool2D creates a MaxPool2D layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel %d / stride %d", kernelSize, stride))
	}
	return &MaxPool2D[B]{kernelSize: kernelSize, stride: stride, backend: backend}
}

// Forward pools input [N, C, H, W].
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32](m.backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride), m.backend)
}

// Parameters returns nil.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] { return nil }

func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel=%d, stride=%d)", m.kernelSize, m.stride)
}

// Flatten reshapes [N, ...] to [N, prod(...)].
type Flatten[B tensor.Backend] struct{}

// NewFlatten creates a Flatten layer.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return &Flatten[B]{}
}

// Forward flattens all but the first dimension.
func (f *Flatten[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("flatten: expected at least 2D input, got %v", shape))
	}
	return input.Reshape(shape[0], shape[1:].NumElements())
}

// Parameters returns nil.
func (f *Flatten[B]) Parameters() []*Parameter[B] { return nil }

func (f *Flatten[B]) String() string { return "Flatten" }

// Dropout zeroes each activation with probability p during training and
// scales the survivors by 1/(1-p). In evaluation mode it is the identity.
type Dropout[B tensor.Backend] struct {
	p       float32
	backend B

	mu       sync.Mutex
	rng      *rand.Rand
	training bool
}

// NewDropout creates a Dropout layer in training mode. rng makes the masks
// reproducible.
func NewDropout[B tensor.Backend](p float32, rng *rand.Rand, backend B) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability %v out of range [0, 1)", p))
	}
	return &Dropout[B]{p: p, backend: backend, rng: rng, training: true}
}

// SetTraining switches between training and evaluation mode.
func (d *Dropout[B]) SetTraining(training bool) {
	d.mu.Lock()
	d.training = training
	d.mu.Unlock()
}

// Forward applies an inverted-dropout mask through the backend's Mul, so the
// same mask gates the gradient.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.training || d.p == 0 {
		return input
	}

	mask := tensor.Zeros[float32](input.Shape(), d.backend)
	keep := 1 / (1 - d.p)
	data := mask.Data()
	for i := range data {
		if d.rng.Float32() >= d.p {
			data[i] = keep
		}
	}
	return input.Mul(mask)
}

// Parameters returns nil.
func (d *Dropout[B]) Parameters() []*Parameter[B] { return nil }

func (d *Dropout[B]) String() string { return fmt.Sprintf("Dropout(p=%v)", d.p) }
