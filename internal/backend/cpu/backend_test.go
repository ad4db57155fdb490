package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bottlenet-ml/bottlenet/internal/parallel"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

func raw(t *testing.T, shape tensor.Shape, data ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func seq(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out
}

func TestCPUBackend_New(t *testing.T) {
	b := New()
	assert.Equal(t, "CPU", b.Name())
	assert.Equal(t, tensor.CPU, b.Device())
}

func TestElementwise(t *testing.T) {
	b := New()
	x := raw(t, tensor.Shape{2, 2}, 1, 2, 3, 4)
	y := raw(t, tensor.Shape{2, 2}, 10, 20, 30, 40)

	assert.Equal(t, []float32{11, 22, 33, 44}, b.Add(x, y).AsFloat32())
	assert.Equal(t, []float32{9, 18, 27, 36}, b.Sub(y, x).AsFloat32())
	assert.Equal(t, []float32{10, 40, 90, 160}, b.Mul(x, y).AsFloat32())
	assert.Equal(t, []float32{2, 4, 6, 8}, b.MulScalar(x, 2).AsFloat32())

	// inputs are untouched
	assert.Equal(t, []float32{1, 2, 3, 4}, x.AsFloat32())
}

func TestAdd_Broadcast(t *testing.T) {
	b := New()
	x := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	bias := raw(t, tensor.Shape{3}, 10, 20, 30)

	out := b.Add(x, bias)
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.AsFloat32())

	col := raw(t, tensor.Shape{2, 1}, 100, 200)
	out = b.Add(x, col)
	assert.Equal(t, []float32{101, 102, 103, 204, 205, 206}, out.AsFloat32())
}

func TestAdd_IncompatibleShapesPanics(t *testing.T) {
	b := New()
	assert.Panics(t, func() {
		b.Add(raw(t, tensor.Shape{2, 3}), raw(t, tensor.Shape{2, 4}))
	})
}

func TestMatMul(t *testing.T) {
	b := New()
	x := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	y := raw(t, tensor.Shape{3, 2}, 7, 8, 9, 10, 11, 12)

	out := b.MatMul(x, y)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, out.AsFloat32())

	assert.Panics(t, func() { b.MatMul(x, x) })
}

func TestReshape_SharesData(t *testing.T) {
	b := New()
	x := raw(t, tensor.Shape{2, 3}, seq(6)...)

	out := b.Reshape(x, tensor.Shape{3, 2})
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, x.AsFloat32(), out.AsFloat32())

	assert.Panics(t, func() { b.Reshape(x, tensor.Shape{4, 2}) })
}

func TestTranspose(t *testing.T) {
	b := New()
	x := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	out := b.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.AsFloat32())

	cube := raw(t, tensor.Shape{2, 2, 2}, seq(8)...)
	out = b.Transpose(cube, 0, 2, 1)
	assert.Equal(t, []float32{1, 3, 2, 4, 5, 7, 6, 8}, out.AsFloat32())

	assert.Panics(t, func() { b.Transpose(cube, 0, 0, 1) })
}

func TestSumTo(t *testing.T) {
	b := New()
	x := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	assert.Equal(t, []float32{5, 7, 9}, b.SumTo(x, tensor.Shape{3}).AsFloat32())
	assert.Equal(t, []float32{6, 15}, b.SumTo(x, tensor.Shape{2, 1}).AsFloat32())
	assert.Equal(t, []float32{21}, b.SumTo(x, tensor.Shape{1, 1}).AsFloat32())

	same := b.SumTo(x, tensor.Shape{2, 3})
	assert.Equal(t, x.AsFloat32(), same.AsFloat32())
}

func TestConv2D_Basic(t *testing.T) {
	b := New()
	input := raw(t, tensor.Shape{1, 1, 3, 3}, seq(9)...)
	kernel := raw(t, tensor.Shape{1, 1, 2, 2}, 1, 0, 0, 1)

	out := b.Conv2D(input, kernel, 1, 0)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{6, 8, 12, 14}, out.AsFloat32())
}

func TestConv2D_Padding(t *testing.T) {
	b := New()
	ones := make([]float32, 9)
	for i := range ones {
		ones[i] = 1
	}
	input := raw(t, tensor.Shape{1, 1, 3, 3}, ones...)
	kernel := raw(t, tensor.Shape{1, 1, 3, 3}, ones...)

	out := b.Conv2D(input, kernel, 1, 1)
	assert.Equal(t, tensor.Shape{1, 1, 3, 3}, out.Shape())
	assert.Equal(t, []float32{4, 6, 4, 6, 9, 6, 4, 6, 4}, out.AsFloat32())
}

func TestConv2D_ParallelMatchesSequential(t *testing.T) {
	rng := tensor.NewRNG(3)
	seqB := New(WithParallel(parallel.Sequential()))
	parB := New(WithParallel(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}))

	input := tensor.Randn(tensor.Shape{9, 2, 6, 6}, rng, seqB).Raw()
	kernel := tensor.Randn(tensor.Shape{3, 2, 3, 3}, rng, seqB).Raw()

	assert.Equal(t, seqB.Conv2D(input, kernel, 1, 1).AsFloat32(), parB.Conv2D(input, kernel, 1, 1).AsFloat32())
}

func TestConv2D_InvalidShapesPanic(t *testing.T) {
	b := New()
	assert.Panics(t, func() {
		b.Conv2D(raw(t, tensor.Shape{1, 3, 3}), raw(t, tensor.Shape{1, 1, 2, 2}), 1, 0)
	})
	assert.Panics(t, func() {
		b.Conv2D(raw(t, tensor.Shape{1, 2, 3, 3}), raw(t, tensor.Shape{1, 1, 2, 2}), 1, 0)
	})
}

// lossOf returns sum(conv(input, kernel) * weights), a scalar whose gradient
// with respect to conv's output is weights.
func lossOf(b *CPUBackend, input, kernel, weights *tensor.RawTensor, stride, padding int) float64 {
	var sum float64
	out := b.Conv2D(input, kernel, stride, padding).AsFloat32()
	for i, w := range weights.AsFloat32() {
		sum += float64(out[i]) * float64(w)
	}
	return sum
}

func TestConv2DBackward_MatchesFiniteDifferences(t *testing.T) {
	const eps = 5e-2
	b := New()
	rng := tensor.NewRNG(11)

	for _, tc := range []struct {
		name            string
		stride, padding int
	}{
		{"stride1", 1, 0},
		{"stride2_pad1", 2, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			input := tensor.Randn(tensor.Shape{2, 2, 5, 5}, rng, b).Raw()
			kernel := tensor.Randn(tensor.Shape{3, 2, 3, 3}, rng, b).Raw()
			outShape := b.Conv2D(input, kernel, tc.stride, tc.padding).Shape()
			weights := tensor.Randn(outShape, rng, b).Raw()

			dx := b.Conv2DInputBackward(input, kernel, weights, tc.stride, tc.padding).AsFloat32()
			dk := b.Conv2DKernelBackward(input, kernel, weights, tc.stride, tc.padding).AsFloat32()

			check := func(name string, param *tensor.RawTensor, analytic []float32) {
				data := param.AsFloat32()
				for i := range data {
					orig := data[i]
					data[i] = orig + eps
					plus := lossOf(b, input, kernel, weights, tc.stride, tc.padding)
					data[i] = orig - eps
					minus := lossOf(b, input, kernel, weights, tc.stride, tc.padding)
					data[i] = orig

					numeric := (plus - minus) / (2 * eps)
					assert.InDelta(t, numeric, float64(analytic[i]), 1e-2, "%s[%d]", name, i)
				}
			}
			check("input", input, dx)
			check("kernel", kernel, dk)
		})
	}
}

func TestMaxPool2D(t *testing.T) {
	b := New()
	input := raw(t, tensor.Shape{1, 1, 4, 4}, seq(16)...)

	out := b.MaxPool2D(input, 2, 2)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{6, 8, 14, 16}, out.AsFloat32())

	assert.Panics(t, func() { b.MaxPool2D(input, 5, 1) })
}

func TestMaxPool2DBackward(t *testing.T) {
	b := New()
	input := raw(t, tensor.Shape{1, 1, 2, 4}, 1, 9, 3, 2, 4, 0, 8, 5)
	grad := raw(t, tensor.Shape{1, 1, 1, 2}, 1.5, -2)

	dx := b.MaxPool2DBackward(input, grad, []int{1, 6}, 2, 2)
	assert.Equal(t, []float32{0, 1.5, 0, 0, 0, 0, -2, 0}, dx.AsFloat32())

	assert.Panics(t, func() { b.MaxPool2DBackward(input, grad, []int{1}, 2, 2) })
}
