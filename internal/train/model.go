// Package train builds the BottleNet classifier and runs its training loop.
package train

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/bottlenet-ml/bottlenet/internal/autodiff"
	"github.com/bottlenet-ml/bottlenet/internal/config"
	"github.com/bottlenet-ml/bottlenet/internal/nn"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// Input geometry of the classifier.
const (
	InputSide  = 28
	NumClasses = 10

	conv1Out = 16
	conv2Out = config.BottleneckChannels
	hidden   = 128
	pooled   = (InputSide - 4) / 2 // two 3x3 valid convs, then 2x2 pooling
	flatDim  = conv2Out * pooled * pooled
)

// Model is the MNIST CNN with a lossy codec after the pooling stage:
//
//	conv(1->16,3) ReLU conv(16->32,3) ReLU maxpool(2)
//	bottleneck dropout(0.25) flatten fc(4608->128) ReLU dropout(0.5) fc(128->10)
type Model[B tensor.Backend] struct {
	conv1      *nn.Conv2D[B]
	relu1      *nn.ReLU[B]
	conv2      *nn.Conv2D[B]
	relu2      *nn.ReLU[B]
	pool       *nn.MaxPool2D[B]
	bottleneck *nn.Bottleneck[B]
	drop1      *nn.Dropout[B]
	flatten    *nn.Flatten[B]
	fc1        *nn.Linear[B]
	relu3      *nn.ReLU[B]
	drop2      *nn.Dropout[B]
	fc2        *nn.Linear[B]
}

// NewModel builds the classifier. fn is the bottleneck node (nil means the
// JPEG q90 default); enabled=false makes the bottleneck an identity. All
// random draws come from rng.
func NewModel[B tensor.Backend](fn autodiff.Function, enabled bool, rng *rand.Rand, backend B) *Model[B] {
	return &Model[B]{
		conv1:      nn.NewConv2D("conv1", 1, conv1Out, 3, 1, 0, rng, backend),
		relu1:      nn.NewReLU[B](),
		conv2:      nn.NewConv2D("conv2", conv1Out, conv2Out, 3, 1, 0, rng, backend),
		relu2:      nn.NewReLU[B](),
		pool:       nn.NewMaxPool2D(2, 2, backend),
		bottleneck: nn.NewBottleneck(fn, enabled, backend),
		drop1:      nn.NewDropout(0.25, rng, backend),
		flatten:    nn.NewFlatten[B](),
		fc1:        nn.NewLinear("fc1", flatDim, hidden, rng, backend),
		relu3:      nn.NewReLU[B](),
		drop2:      nn.NewDropout(0.5, rng, backend),
		fc2:        nn.NewLinear("fc2", hidden, NumClasses, rng, backend),
	}
}

// Forward maps [batch, 1, 28, 28] images to [batch, 10] logits. Codec and
// shape failures in the bottleneck are returned, not panicked.
func (m *Model[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != 1 || shape[2] != InputSide || shape[3] != InputSide {
		return nil, fmt.Errorf("model: expected [batch, 1, %d, %d] input, got %v", InputSide, InputSide, shape)
	}

	x := m.relu1.Forward(m.conv1.Forward(input)) // [batch, 16, 26, 26]
	x = m.relu2.Forward(m.conv2.Forward(x))      // [batch, 32, 24, 24]
	x = m.pool.Forward(x)                        // [batch, 32, 12, 12]

	x, err := m.bottleneck.Apply(x)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	x = m.flatten.Forward(m.drop1.Forward(x)) // [batch, 4608]
	x = m.relu3.Forward(m.fc1.Forward(x))     // [batch, 128]
	x = m.fc2.Forward(m.drop2.Forward(x))     // [batch, 10]
	return x, nil
}

// Parameters returns the trainable parameters in layer order.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, 8)
	params = append(params, m.conv1.Parameters()...)
	params = append(params, m.conv2.Parameters()...)
	params = append(params, m.fc1.Parameters()...)
	params = append(params, m.fc2.Parameters()...)
	return params
}

// SetTraining switches dropout between training and evaluation mode.
func (m *Model[B]) SetTraining(training bool) {
	m.drop1.SetTraining(training)
	m.drop2.SetTraining(training)
}

// Bottleneck returns the codec layer.
func (m *Model[B]) Bottleneck() *nn.Bottleneck[B] {
	return m.bottleneck
}

func (m *Model[B]) String() string {
	layers := []fmt.Stringer{
		m.conv1, m.relu1, m.conv2, m.relu2, m.pool, m.bottleneck,
		m.drop1, m.flatten, m.fc1, m.relu3, m.drop2, m.fc2,
	}
	var sb strings.Builder
	sb.WriteString("BottleNet(\n")
	for _, l := range layers {
		sb.WriteString("  " + l.String() + "\n")
	}
	sb.WriteString(")")
	return sb.String()
}
