package autodiff

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// BackwardCapable is implemented by backends that own a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the gradient tape.
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of t with respect to every recorded tensor,
// seeding dL/dt with ones.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := criterion.Forward(model.Forward(x), y)
//	grads := autodiff.Backward(loss, backend)
func Backward[B BackwardCapable](t *tensor.Tensor[float32, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	seed := tensor.Ones[float32](t.Shape(), backend).Raw()
	return BackwardWith(t.Raw(), seed, backend)
}

// BackwardWith runs the tape from output with an explicit upstream gradient.
func BackwardWith(output, outputGrad *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	if !outputGrad.Shape().Equal(output.Shape()) {
		panic(fmt.Sprintf("backward: gradient shape %v, output shape %v", outputGrad.Shape(), output.Shape()))
	}
	return backend.GetTape().Backward(output, outputGrad, backend)
}
