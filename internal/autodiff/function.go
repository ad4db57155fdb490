package autodiff

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/autodiff/ops"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// Function is a custom node with a hand-written gradient.
type Function = ops.Function

// Apply runs fn.Forward on x and, while the tape is recording, registers a
// node whose backward pass calls fn.Backward. This is how operations that
// the backend cannot differentiate join the graph.
func (b *AutodiffBackend[B]) Apply(fn Function, x *tensor.RawTensor) (*tensor.RawTensor, error) {
	out, err := fn.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("%s forward: %w", fn.Name(), err)
	}
	if out == x {
		// The tape keys gradients by tensor identity; an aliased output
		// would make the node its own input.
		out = x.Clone()
	}
	b.record(func() ops.Operation { return ops.NewFunctionOp(fn, x, out) })
	return out, nil
}
