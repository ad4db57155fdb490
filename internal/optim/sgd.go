package optim

import (
	"github.com/bottlenet-ml/bottlenet/internal/nn"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// SGDConfig configures SGD.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor in [0, 1) (default: 0)
}

// SGD is stochastic gradient descent with optional momentum:
//
//	v = momentum * v + grad
//	param -= lr * v
type SGD[B tensor.Backend] struct {
	base[B]
	momentum   float32
	velocities slots
}

// NewSGD creates an SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], cfg SGDConfig) *SGD[B] {
	if cfg.LR == 0 {
		cfg.LR = 0.01
	}
	return &SGD[B]{
		base:       base[B]{params: params, lr: cfg.LR},
		momentum:   cfg.Momentum,
		velocities: newSlots(params),
	}
}

// Step applies one update.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	s.each(grads, func(i int, param, grad []float32) {
		if s.momentum == 0 {
			for j, g := range grad {
				param[j] -= s.lr * g
			}
			return
		}
		v := s.velocities.get(i, len(param))
		for j, g := range grad {
			v[j] = s.momentum*v[j] + g
			param[j] -= s.lr * v[j]
		}
	})
}
