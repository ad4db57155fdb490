package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bottlenet-ml/bottlenet/autodiff"
	"github.com/bottlenet-ml/bottlenet/backend/cpu"
	"github.com/bottlenet-ml/bottlenet/nn"
	"github.com/bottlenet-ml/bottlenet/optim"
	"github.com/bottlenet-ml/bottlenet/tensor"
)

type backendT = *autodiff.Backend[*cpu.Backend]

func TestTrainThroughBottleneck(t *testing.T) {
	backend := autodiff.New(cpu.New(cpu.WithWorkers(1)))
	rng := tensor.NewRNG(7)

	model := nn.NewSequential[backendT](
		nn.NewConv2D("conv", 1, 2, 3, 1, 0, rng, backend),
		nn.NewReLU[backendT](),
		nn.NewBottleneck[backendT](nil, true, backend),
		nn.NewFlatten[backendT](),
		nn.NewLinear("fc", 2*6*6, 2, rng, backend),
	)
	loss := nn.NewCrossEntropyLoss(backend)
	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.1})

	x := tensor.Rand(tensor.Shape{4, 1, 8, 8}, tensor.NewRNG(8), backend)
	y, err := tensor.FromSlice([]int32{0, 1, 0, 1}, tensor.Shape{4}, backend)
	require.NoError(t, err)

	before := append([]float32(nil), model.Parameters()[0].Tensor().Data()...)

	backend.Tape().StartRecording()
	l := loss.Forward(model.Forward(x), y)
	grads := autodiff.Backward(l, backend)
	opt.Step(grads)
	backend.Tape().Clear()

	assert.NotEqual(t, before, model.Parameters()[0].Tensor().Data(), "conv weights updated through the bottleneck")
	acc := nn.Accuracy(model.Forward(x), y)
	assert.GreaterOrEqual(t, acc, 0.0)
	assert.LessOrEqual(t, acc, 1.0)
}
