package nn

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/autodiff"
	"github.com/bottlenet-ml/bottlenet/internal/bottleneck"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// FunctionBackend is implemented by backends that can register custom
// nodes, such as autodiff.AutodiffBackend.
type FunctionBackend interface {
	Apply(fn autodiff.Function, x *tensor.RawTensor) (*tensor.RawTensor, error)
}

// Bottleneck inserts a lossy codec round trip into the network. On a
// recording autodiff backend the node is taped with its straight-through
// gradient; on any other backend the function is simply applied.
type Bottleneck[B tensor.Backend] struct {
	fn      autodiff.Function
	enabled bool
	backend B
}

// NewBottleneck creates the layer. A nil fn means bottleneck.Default().
func NewBottleneck[B tensor.Backend](fn autodiff.Function, enabled bool, backend B) *Bottleneck[B] {
	if fn == nil {
		fn = bottleneck.Default()
	}
	return &Bottleneck[B]{fn: fn, enabled: enabled, backend: backend}
}

// Apply runs the round trip and reports codec or shape errors. A disabled
// layer returns input unchanged.
func (l *Bottleneck[B]) Apply(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if !l.enabled {
		return input, nil
	}

	var (
		out *tensor.RawTensor
		err error
	)
	if fb, ok := any(l.backend).(FunctionBackend); ok {
		out, err = fb.Apply(l.fn, input.Raw())
	} else {
		out, err = l.fn.Forward(input.Raw())
	}
	if err != nil {
		return nil, err
	}
	return tensor.New[float32](out, l.backend), nil
}

// Forward is Apply for use inside Sequential; it panics on error.
func (l *Bottleneck[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out, err := l.Apply(input)
	if err != nil {
		panic(err)
	}
	return out
}

// Parameters returns nil.
func (l *Bottleneck[B]) Parameters() []*Parameter[B] { return nil }

// Enabled reports whether the round trip runs.
func (l *Bottleneck[B]) Enabled() bool { return l.enabled }

func (l *Bottleneck[B]) String() string {
	if !l.enabled {
		return "Bottleneck(disabled)"
	}
	return fmt.Sprintf("Bottleneck(%s)", l.fn.Name())
}
