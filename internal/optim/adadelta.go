package optim

import (
	"math"

	"github.com/bottlenet-ml/bottlenet/internal/nn"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// AdadeltaConfig configures Adadelta. Zero fields take the defaults.
type AdadeltaConfig struct {
	LR      float32 // default 1.0
	Rho     float32 // default 0.9
	Epsilon float32 // default 1e-6
}

// Adadelta (Zeiler, 2012) scales each update by the ratio of running RMS
// values of past updates and past gradients:
//
//	E[g^2]  = rho*E[g^2] + (1-rho)*g^2
//	delta   = sqrt(E[dx^2] + eps) / sqrt(E[g^2] + eps) * g
//	E[dx^2] = rho*E[dx^2] + (1-rho)*delta^2
//	param  -= lr * delta
type Adadelta[B tensor.Backend] struct {
	base[B]
	rho, eps float32
	sqGrad   slots
	sqDelta  slots
}

// NewAdadelta creates an Adadelta optimizer.
func NewAdadelta[B tensor.Backend](params []*nn.Parameter[B], cfg AdadeltaConfig) *Adadelta[B] {
	if cfg.LR == 0 {
		cfg.LR = 1.0
	}
	if cfg.Rho == 0 {
		cfg.Rho = 0.9
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-6
	}
	return &Adadelta[B]{
		base:    base[B]{params: params, lr: cfg.LR},
		rho:     cfg.Rho,
		eps:     cfg.Epsilon,
		sqGrad:  newSlots(params),
		sqDelta: newSlots(params),
	}
}

// Step applies one update.
func (a *Adadelta[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.each(grads, func(i int, param, grad []float32) {
		sg := a.sqGrad.get(i, len(param))
		sd := a.sqDelta.get(i, len(param))
		for j, g := range grad {
			sg[j] = a.rho*sg[j] + (1-a.rho)*g*g
			delta := float32(math.Sqrt(float64(sd[j]+a.eps))/math.Sqrt(float64(sg[j]+a.eps))) * g
			sd[j] = a.rho*sd[j] + (1-a.rho)*delta*delta
			param[j] -= a.lr * delta
		}
	})
}
