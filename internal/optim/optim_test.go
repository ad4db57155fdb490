package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bottlenet-ml/bottlenet/internal/autodiff"
	"github.com/bottlenet-ml/bottlenet/internal/backend/cpu"
	"github.com/bottlenet-ml/bottlenet/internal/nn"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

func param(t *testing.T, name string, data ...float32) *nn.Parameter[*cpu.CPUBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, tensor.Shape{len(data)}, cpu.New())
	require.NoError(t, err)
	return nn.NewParameter(name, x)
}

func gradsFor(t *testing.T, p *nn.Parameter[*cpu.CPUBackend], g ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(p.Tensor().Shape(), tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), g)
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor().Raw(): r}
}

func TestSGD(t *testing.T) {
	p := param(t, "w", 1, 2)
	other := param(t, "untouched", 5)
	opt := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p, other}, SGDConfig{LR: 0.1})

	grads := gradsFor(t, p, 1, -2)
	opt.Step(grads)
	assert.InDeltaSlice(t, []float32{0.9, 2.2}, p.Tensor().Data(), 1e-6)
	assert.Equal(t, []float32{5}, other.Tensor().Data())
	assert.NotNil(t, p.Grad())

	opt.ZeroGrad()
	assert.Nil(t, p.Grad())
	assert.Equal(t, float32(0.1), opt.GetLR())
}

func TestSGD_Momentum(t *testing.T) {
	p := param(t, "w", 0)
	opt := NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, SGDConfig{LR: 1, Momentum: 0.5})

	opt.Step(gradsFor(t, p, 1)) // v = 1
	opt.Step(gradsFor(t, p, 1)) // v = 1.5
	assert.InDelta(t, -2.5, p.Tensor().Data()[0], 1e-6)
}

func TestSGD_DefaultLR(t *testing.T) {
	opt := NewSGD[*cpu.CPUBackend](nil, SGDConfig{})
	assert.Equal(t, float32(0.01), opt.GetLR())
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	p := param(t, "w", 1, 1, 1)
	opt := NewAdam([]*nn.Parameter[*cpu.CPUBackend]{p}, AdamConfig{LR: 0.01})

	opt.Step(gradsFor(t, p, 3, -0.5, 0))
	// bias correction makes the first step lr * sign(g)
	assert.InDeltaSlice(t, []float32{0.99, 1.01, 1}, p.Tensor().Data(), 1e-5)
}

func TestAdadelta_FirstStep(t *testing.T) {
	p := param(t, "w", 0)
	opt := NewAdadelta([]*nn.Parameter[*cpu.CPUBackend]{p}, AdadeltaConfig{})
	assert.Equal(t, float32(1), opt.GetLR())

	opt.Step(gradsFor(t, p, 1))
	// sqrt(1e-6) / sqrt(0.1 + 1e-6)
	assert.InDelta(t, -0.0031623, p.Tensor().Data()[0], 1e-6)
}

func TestStepLR(t *testing.T) {
	opt := NewAdadelta[*cpu.CPUBackend](nil, AdadeltaConfig{})
	sched, err := NewStepLR(opt, 1, 0.7)
	require.NoError(t, err)

	sched.Step()
	assert.InDelta(t, 0.7, sched.LR(), 1e-6)
	sched.Step()
	assert.InDelta(t, 0.49, opt.GetLR(), 1e-6)

	every2, err := NewStepLR(NewSGD[*cpu.CPUBackend](nil, SGDConfig{LR: 1}), 2, 0.5)
	require.NoError(t, err)
	every2.Step()
	assert.InDelta(t, 1, every2.LR(), 1e-6)
	every2.Step()
	assert.InDelta(t, 0.5, every2.LR(), 1e-6)

	_, err = NewStepLR(opt, 0, 0.7)
	assert.Error(t, err)
	_, err = NewStepLR(opt, 1, 1.5)
	assert.Error(t, err)
}

// TestOptimizers_ReduceLoss trains a linear classifier on two separable
// points with every optimizer.
func TestOptimizers_ReduceLoss(t *testing.T) {
	type ad = *autodiff.AutodiffBackend[*cpu.CPUBackend]

	builders := map[string]func([]*nn.Parameter[ad]) Optimizer{
		"sgd":      func(p []*nn.Parameter[ad]) Optimizer { return NewSGD(p, SGDConfig{LR: 0.5, Momentum: 0.9}) },
		"adam":     func(p []*nn.Parameter[ad]) Optimizer { return NewAdam(p, AdamConfig{LR: 0.05}) },
		"adadelta": func(p []*nn.Parameter[ad]) Optimizer { return NewAdadelta(p, AdadeltaConfig{}) },
	}

	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			b := autodiff.New(cpu.New())
			model := nn.NewLinear("fc", 2, 2, tensor.NewRNG(1), b)
			criterion := nn.NewCrossEntropyLoss(b)
			opt := build(model.Parameters())

			x, err := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{2, 2}, b)
			require.NoError(t, err)
			y, err := tensor.FromSlice([]int32{0, 1}, tensor.Shape{2}, b)
			require.NoError(t, err)

			b.Tape().StartRecording()
			var first, last float32
			for step := range 50 {
				opt.ZeroGrad()
				loss := criterion.Forward(model.Forward(x), y)
				if step == 0 {
					first = loss.Item()
				}
				last = loss.Item()
				opt.Step(autodiff.Backward(loss, b))
				b.Tape().Clear()
			}
			assert.Less(t, last, first)
		})
	}
}
