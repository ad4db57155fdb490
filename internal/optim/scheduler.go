package optim

import "fmt"

// Scheduler adjusts an optimizer's learning rate once per epoch.
type Scheduler interface {
	Step()
	LR() float32
}

// StepLR multiplies the learning rate by gamma every stepSize epochs.
type StepLR struct {
	opt      Optimizer
	initial  float32
	stepSize int
	gamma    float32
	epoch    int
}

// NewStepLR creates a StepLR schedule starting from opt's current rate.
func NewStepLR(opt Optimizer, stepSize int, gamma float32) (*StepLR, error) {
	if stepSize <= 0 {
		return nil, fmt.Errorf("optim: step size must be positive, got %d", stepSize)
	}
	if gamma <= 0 || gamma > 1 {
		return nil, fmt.Errorf("optim: gamma must be in (0, 1], got %v", gamma)
	}
	return &StepLR{opt: opt, initial: opt.GetLR(), stepSize: stepSize, gamma: gamma}, nil
}

// Step advances one epoch and updates the optimizer.
func (s *StepLR) Step() {
	s.epoch++
	lr := s.initial
	for range s.epoch / s.stepSize {
		lr *= s.gamma
	}
	s.opt.SetLR(lr)
}

// LR returns the optimizer's current learning rate.
func (s *StepLR) LR() float32 {
	return s.opt.GetLR()
}
