package ops

import (
	"fmt"
	"math"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// CrossEntropyForward computes mean(-log_softmax(logits)[targets]) as a
// scalar tensor of shape [1].
//
//	logits:  [batch, classes] float32
//	targets: [batch] int32 class indices
func CrossEntropyForward(logits, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	batch, classes := checkCrossEntropy(logits, targets)

	z := logits.AsFloat32()
	y := targets.AsInt32()

	var total float64
	for b := 0; b < batch; b++ {
		row := z[b*classes : (b+1)*classes]
		total += logSumExp(row) - float64(row[y[b]])
	}

	result := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, device)
	result.AsFloat32()[0] = float32(total / float64(batch))
	return result
}

func checkCrossEntropy(logits, targets *tensor.RawTensor) (batch, classes int) {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cross_entropy: logits must be [batch, classes], got %v", shape))
	}
	batch, classes = shape[0], shape[1]
	if targets.DType() != tensor.Int32 || targets.NumElements() != batch {
		panic(fmt.Sprintf("cross_entropy: targets must be %d int32 labels, got %s%v",
			batch, targets.DType(), targets.Shape()))
	}
	for _, t := range targets.AsInt32() {
		if t < 0 || int(t) >= classes {
			panic(fmt.Sprintf("cross_entropy: label %d out of range [0, %d)", t, classes))
		}
	}
	return batch, classes
}

// logSumExp uses the max-shift trick for numerical stability.
func logSumExp(row []float32) float64 {
	m := row[0]
	for _, v := range row[1:] {
		m = max(m, v)
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - m))
	}
	return float64(m) + math.Log(sum)
}

// CrossEntropyOp records the fused log-softmax + negative log-likelihood.
//
// Backward:
//
//	dL/dlogits[b, i] = (softmax(logits[b])[i] - onehot(targets[b])[i]) / batch
type CrossEntropyOp struct {
	unary
	targets *tensor.RawTensor
}

// NewCrossEntropyOp creates a new CrossEntropyOp. Targets are not
// differentiable and are not listed as inputs.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{unary: unary{input: logits, output: output}, targets: targets}
}

// Backward computes the logits gradient scaled by the upstream scalar.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	batch, classes := checkCrossEntropy(op.input, op.targets)
	scale := float64(outputGrad.AsFloat32()[0]) / float64(batch)

	grad := tensor.MustNewRaw(op.input.Shape(), tensor.Float32, backend.Device())
	g := grad.AsFloat32()
	z := op.input.AsFloat32()
	y := op.targets.AsInt32()

	for b := 0; b < batch; b++ {
		row := z[b*classes : (b+1)*classes]
		lse := logSumExp(row)
		for i, v := range row {
			p := math.Exp(float64(v) - lse)
			if i == int(y[b]) {
				p--
			}
			g[b*classes+i] = float32(p * scale)
		}
	}
	return []*tensor.RawTensor{grad}
}
