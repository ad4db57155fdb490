package optim

import (
	"math"

	"github.com/bottlenet-ml/bottlenet/internal/nn"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// AdamConfig configures Adam. Zero fields take the defaults from Kingma & Ba
// (2014).
type AdamConfig struct {
	LR      float32 // default 0.001
	Beta1   float32 // default 0.9
	Beta2   float32 // default 0.999
	Epsilon float32 // default 1e-8
}

// Adam implements bias-corrected adaptive moment estimation:
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g^2
//	param -= lr * m_hat / (sqrt(v_hat) + eps)
type Adam[B tensor.Backend] struct {
	base[B]
	beta1, beta2, eps float32
	m, v              slots
	t                 int
}

// NewAdam creates an Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], cfg AdamConfig) *Adam[B] {
	if cfg.LR == 0 {
		cfg.LR = 0.001
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-8
	}
	return &Adam[B]{
		base:  base[B]{params: params, lr: cfg.LR},
		beta1: cfg.Beta1,
		beta2: cfg.Beta2,
		eps:   cfg.Epsilon,
		m:     newSlots(params),
		v:     newSlots(params),
	}
}

// Step applies one update.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	c1 := 1 - float32(math.Pow(float64(a.beta1), float64(a.t)))
	c2 := 1 - float32(math.Pow(float64(a.beta2), float64(a.t)))

	a.each(grads, func(i int, param, grad []float32) {
		m := a.m.get(i, len(param))
		v := a.v.get(i, len(param))
		for j, g := range grad {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			param[j] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	})
}
