// Package optim provides optimizers and learning-rate schedules.
//
//	opt := optim.NewAdadelta(model.Parameters(), optim.AdadeltaConfig{})
//	sched, _ := optim.NewStepLR(opt, 1, 0.7)
//	for epoch := range epochs {
//	    // ... opt.Step(grads) per batch
//	    sched.Step()
//	}
package optim

import (
	"github.com/bottlenet-ml/bottlenet/internal/optim"
	"github.com/bottlenet-ml/bottlenet/nn"
	"github.com/bottlenet-ml/bottlenet/tensor"
)

// Optimizer updates parameters from a gradient map.
type Optimizer = optim.Optimizer

// Scheduler adjusts the learning rate once per epoch.
type Scheduler = optim.Scheduler

// SGD is stochastic gradient descent with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], cfg SGDConfig) *SGD[B] {
	return optim.NewSGD(params, cfg)
}

// Adam is bias-corrected adaptive moment estimation.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], cfg AdamConfig) *Adam[B] {
	return optim.NewAdam(params, cfg)
}

// Adadelta is Zeiler's adaptive learning-rate method.
type Adadelta[B tensor.Backend] = optim.Adadelta[B]

// AdadeltaConfig configures Adadelta.
type AdadeltaConfig = optim.AdadeltaConfig

// NewAdadelta creates an Adadelta optimizer.
func NewAdadelta[B tensor.Backend](params []*nn.Parameter[B], cfg AdadeltaConfig) *Adadelta[B] {
	return optim.NewAdadelta(params, cfg)
}

// StepLR decays the learning rate by gamma every stepSize epochs.
type StepLR = optim.StepLR

// NewStepLR creates a StepLR schedule.
func NewStepLR(opt Optimizer, stepSize int, gamma float32) (*StepLR, error) {
	return optim.NewStepLR(opt, stepSize, gamma)
}
