package nn

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// CrossEntropyBackend is implemented by backends with a fused
// log-softmax + NLL kernel.
type CrossEntropyBackend interface {
	CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// CrossEntropyLoss computes the mean cross-entropy of logits [batch,
// classes] against int32 class labels [batch].
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates the loss for backend.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{backend: backend}
}

// Forward returns the scalar loss as a [1] tensor.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	ce, ok := any(c.backend).(CrossEntropyBackend)
	if !ok {
		panic("cross_entropy: backend must implement CrossEntropy (use autodiff.AutodiffBackend)")
	}
	return tensor.New[float32](ce.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
}

// Predictions returns the argmax class of every row of logits.
func Predictions[B tensor.Backend](logits *tensor.Tensor[float32, B]) []int32 {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("predictions: expected logits [batch, classes], got %v", shape))
	}
	batch, classes := shape[0], shape[1]
	data := logits.Data()

	preds := make([]int32, batch)
	for b := 0; b < batch; b++ {
		row := data[b*classes : (b+1)*classes]
		best := 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}
		preds[b] = int32(best) //nolint:gosec // class count is small
	}
	return preds
}

// Correct returns how many rows of logits pick the target label.
func Correct[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) int {
	labels := targets.Data()
	n := 0
	for i, p := range Predictions(logits) {
		if p == labels[i] {
			n++
		}
	}
	return n
}

// Accuracy returns the fraction of rows of logits that pick the target label.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float64 {
	batch := logits.Shape()[0]
	if batch == 0 {
		return 0
	}
	return float64(Correct(logits, targets)) / float64(batch)
}
