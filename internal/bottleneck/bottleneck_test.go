package bottleneck

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bottlenet-ml/bottlenet/internal/autodiff"
	"github.com/bottlenet-ml/bottlenet/internal/backend/cpu"
	"github.com/bottlenet-ml/bottlenet/internal/codec"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var _ autodiff.Function = (*Op)(nil)

func rawOf(t *testing.T, shape tensor.Shape, data []float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func filled(t *testing.T, shape tensor.Shape, v float32) *tensor.RawTensor {
	t.Helper()
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = v
	}
	return rawOf(t, shape, data)
}

func randomRaw(shape tensor.Shape, seed uint64, scale float32) *tensor.RawTensor {
	rng := tensor.NewRNG(seed)
	r := tensor.MustNewRaw(shape, tensor.Float32, tensor.CPU)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = float32(rng.NormFloat64()) * scale
	}
	return r
}

// checkerboard returns a 28x28 board of 7x7 cells.
func checkerboard() []float32 {
	out := make([]float32, 28*28)
	for y := 0; y < 28; y++ {
		for x := 0; x < 28; x++ {
			if (x/7+y/7)%2 == 0 {
				out[y*28+x] = 1
			}
		}
	}
	return out
}

// rampImage returns a 28x28 diagonal gradient from 0 to 1.
func rampImage() []float32 {
	out := make([]float32, 28*28)
	for y := 0; y < 28; y++ {
		for x := 0; x < 28; x++ {
			out[y*28+x] = float32(x+y) / 54
		}
	}
	return out
}

func mse(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum / float64(len(a))
}

func correlation(a, b []float32) float64 {
	var ma, mb float64
	for i := range a {
		ma += float64(a[i])
		mb += float64(b[i])
	}
	ma /= float64(len(a))
	mb /= float64(len(b))

	var cov, va, vb float64
	for i := range a {
		da, db := float64(a[i])-ma, float64(b[i])-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	return cov / math.Sqrt(va*vb)
}

func TestForward_PreservesShape(t *testing.T) {
	op := Default()
	for _, shape := range []tensor.Shape{
		{1, 1, 28, 28},
		{2, 3, 5, 7},
		{4, 32, 12, 12},
		{1, 1, 1, 1},
	} {
		out, err := op.Forward(randomRaw(shape, 1, 0.3))
		require.NoError(t, err, "shape %v", shape)
		assert.Equal(t, shape, out.Shape())
		assert.Equal(t, tensor.Float32, out.DType())
	}
}

func TestForward_OutputClampedToUnitRange(t *testing.T) {
	x := randomRaw(tensor.Shape{2, 4, 8, 8}, 7, 3)
	var below, above bool
	for _, v := range x.AsFloat32() {
		below = below || v < 0
		above = above || v > 1
	}
	require.True(t, below && above, "input must exercise both sides of [0, 1]")

	out, err := Default().Forward(x)
	require.NoError(t, err)
	for i, v := range out.AsFloat32() {
		require.GreaterOrEqual(t, v, float32(0), "value %d", i)
		require.LessOrEqual(t, v, float32(1), "value %d", i)
	}
}

func TestForward_SaturatesFarOutOfRangeInputs(t *testing.T) {
	x := filled(t, tensor.Shape{1, 1, 8, 8}, -5)
	copy(x.AsFloat32()[32:], filled(t, tensor.Shape{32}, 9).AsFloat32())

	out, err := Default().Forward(x)
	require.NoError(t, err)
	got := out.AsFloat32()
	assert.InDelta(t, 0, got[0], 0.05)
	assert.InDelta(t, 1, got[63], 0.05)
}

func TestForward_DoesNotModifyInput(t *testing.T) {
	x := randomRaw(tensor.Shape{1, 2, 6, 6}, 3, 1)
	before := append([]float32(nil), x.AsFloat32()...)

	out, err := Default().Forward(x)
	require.NoError(t, err)
	assert.Equal(t, before, x.AsFloat32())
	assert.NotSame(t, &x.Data()[0], &out.Data()[0])
}

func TestBackward_IsIdentity(t *testing.T) {
	op := Default()
	for _, shape := range []tensor.Shape{{1, 1, 28, 28}, {3, 2, 4, 5}} {
		g := randomRaw(shape, 9, 100)
		g.AsFloat32()[0] = float32(math.Inf(1))
		g.AsFloat32()[1] = -0

		got, err := op.Backward(g)
		require.NoError(t, err)
		assert.Equal(t, g.Shape(), got.Shape())
		assert.Equal(t, g.AsFloat32(), got.AsFloat32())

		got.AsFloat32()[2]++
		assert.NotEqual(t, g.AsFloat32()[2], got.AsFloat32()[2], "gradient must be a copy")
	}
}

func TestForward_RejectsNon4D(t *testing.T) {
	op := Default()
	for _, shape := range []tensor.Shape{{28, 28}, {1, 28, 28}, {1, 1, 1, 28, 28}, {784}} {
		_, err := op.Forward(filled(t, shape, 0.5))
		require.Error(t, err, "shape %v", shape)
		assert.ErrorIs(t, err, ErrShape)
		assert.Contains(t, err.Error(), "4D")
	}
}

func TestForward_RejectsOversizedLayout(t *testing.T) {
	x := tensor.MustNewRaw(tensor.Shape{1, 1, 300, 300}, tensor.Float32, tensor.CPU)
	_, err := Default().Forward(x)
	require.ErrorIs(t, err, ErrShape)
	assert.Contains(t, err.Error(), "90000")
}

func TestForward_RejectsInt32(t *testing.T) {
	x := tensor.MustNewRaw(tensor.Shape{1, 1, 2, 2}, tensor.Int32, tensor.CPU)
	_, err := Default().Forward(x)
	assert.ErrorIs(t, err, ErrShape)
}

func TestForward_UniformHalf(t *testing.T) {
	out, err := Default().Forward(filled(t, tensor.Shape{1, 1, 28, 28}, 0.5))
	require.NoError(t, err)
	for i, v := range out.AsFloat32() {
		require.InDelta(t, 0.5, v, 0.05, "pixel %d", i)
	}
}

func TestForward_BatchKeepsCoarseStructure(t *testing.T) {
	board, ramp := checkerboard(), rampImage()
	x := rawOf(t, tensor.Shape{2, 1, 28, 28}, append(append([]float32(nil), board...), ramp...))

	out, err := Default().Forward(x)
	require.NoError(t, err)
	got := out.AsFloat32()
	gotBoard, gotRamp := got[:784], got[784:]

	assert.Greater(t, correlation(board, gotBoard), 0.95)
	assert.Greater(t, correlation(ramp, gotRamp), 0.95)
	assert.Less(t, mse(board, gotBoard), 0.01)
	assert.Less(t, mse(ramp, gotRamp), 0.01)

	// samples stay distinguishable from each other
	assert.Less(t, mse(board, gotBoard), mse(board, gotRamp))
	assert.Less(t, mse(ramp, gotRamp), mse(ramp, gotBoard))

	assert.NotEqual(t, x.AsFloat32(), got, "the round trip is lossy")
}

func TestForward_RepeatedPassesDriftIsBounded(t *testing.T) {
	data := rampImage()
	for i := range data {
		data[i] = 0.5 + 0.4*float32(math.Sin(float64(i)/9))*data[i]
	}
	x := rawOf(t, tensor.Shape{1, 1, 28, 28}, data)
	op := Default()

	cur := x
	var errs []float64
	var steps []float64
	for range 6 {
		next, err := op.Forward(cur)
		require.NoError(t, err)
		errs = append(errs, mse(data, next.AsFloat32()))
		steps = append(steps, mse(cur.AsFloat32(), next.AsFloat32()))
		cur = next
	}

	assert.Positive(t, errs[0], "a single pass is not exact")
	for k := 1; k < len(errs); k++ {
		// fidelity never improves beyond rounding noise
		assert.GreaterOrEqual(t, errs[k], errs[0]*0.9, "pass %d", k+1)
		// each recompression moves the tensor no more than the first one did
		assert.LessOrEqual(t, steps[k], steps[0]*1.1, "pass %d", k+1)
	}
	for k, e := range errs {
		assert.Less(t, e, 1e-3, "drift after pass %d", k+1)
	}
}

func TestForward_ConcurrentCallsAreIndependent(t *testing.T) {
	op := Default()
	inputs := make([]*tensor.RawTensor, 8)
	want := make([][]float32, len(inputs))
	for i := range inputs {
		inputs[i] = randomRaw(tensor.Shape{2, 3, 6, 6}, uint64(i), 0.4)
		out, err := op.Forward(inputs[i])
		require.NoError(t, err)
		want[i] = out.AsFloat32()
	}

	got := make([][]float32, len(inputs))
	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := op.Forward(inputs[i])
			if err == nil {
				got[i] = out.AsFloat32()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, want, got)
}

func TestRangeMinMax_PreservesMagnitude(t *testing.T) {
	x := randomRaw(tensor.Shape{2, 2, 7, 7}, 21, 2)
	lo, hi := x.AsFloat32()[0], x.AsFloat32()[0]
	for _, v := range x.AsFloat32() {
		lo, hi = min(lo, v), max(hi, v)
	}

	op := New(Options{Range: RangeMinMax})
	out, err := op.Forward(x)
	require.NoError(t, err)

	span := float64(hi - lo)
	for i, v := range out.AsFloat32() {
		require.GreaterOrEqual(t, v, lo-1e-5, "value %d", i)
		require.LessOrEqual(t, v, hi+1e-5, "value %d", i)
	}
	assert.Less(t, math.Sqrt(mse(x.AsFloat32(), out.AsFloat32())), 0.05*span)

	clamped, err := Default().Forward(x)
	require.NoError(t, err)
	assert.Less(t, mse(x.AsFloat32(), out.AsFloat32()), mse(x.AsFloat32(), clamped.AsFloat32()))
}

func TestRangeMinMax_ConstantInput(t *testing.T) {
	out, err := New(Options{Range: RangeMinMax}).Forward(filled(t, tensor.Shape{1, 2, 4, 4}, -3))
	require.NoError(t, err)
	for _, v := range out.AsFloat32() {
		assert.Equal(t, float32(-3), v)
	}
}

func TestRangeMinMax_IgnoresNonFiniteWhenFitting(t *testing.T) {
	inf := float32(math.Inf(1))
	x := rawOf(t, tensor.Shape{1, 1, 2, 3}, []float32{0.2, 0.4, 0.6, inf, -inf, float32(math.NaN())})

	for _, c := range []codec.Codec{codec.JPEG{Quality: 90}, codec.PNG{}} {
		out, err := New(Options{Codec: c, Range: RangeMinMax}).Forward(x)
		require.NoError(t, err)
		for i, v := range out.AsFloat32() {
			require.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0), "value %d is %v", i, v)
			assert.InDelta(t, 0.4, v, 0.2+1e-5, "value %d", i)
		}
	}

	// PNG is lossless past quantization, so the saturation points are exact.
	out, err := New(Options{Codec: codec.PNG{}, Range: RangeMinMax}).Forward(x)
	require.NoError(t, err)
	got := out.AsFloat32()
	assert.InDelta(t, 0.6, got[3], 1e-3, "+Inf saturates at the max")
	assert.InDelta(t, 0.2, got[4], 1e-3, "-Inf saturates at the min")
	assert.InDelta(t, 0.2, got[5], 1e-3, "NaN quantizes to the min")
}

func TestPNG_OnlyQuantizes(t *testing.T) {
	x := randomRaw(tensor.Shape{1, 3, 5, 5}, 4, 0.3)
	res, err := New(Options{Codec: codec.PNG{}}).RoundTrip(x)
	require.NoError(t, err)
	assert.Positive(t, res.EncodedBytes)

	for i, v := range x.AsFloat32() {
		assert.Equal(t, codec.Dequantize(codec.Quantize(v)), res.Output.AsFloat32()[i])
	}
}

func TestName(t *testing.T) {
	assert.Equal(t, "bottleneck(jpeg/q90,clamp)", Default().Name())
	assert.Equal(t, "bottleneck(png,minmax)", New(Options{Codec: codec.PNG{}, Range: RangeMinMax}).Name())
}

func TestParseRange(t *testing.T) {
	for in, want := range map[string]Range{"": RangeClamp, "clamp": RangeClamp, "minmax": RangeMinMax} {
		got, err := ParseRange(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if in != "" {
			assert.Equal(t, in, got.String())
		}
	}
	_, err := ParseRange("scale")
	assert.Error(t, err)
}

// TestGradientFlowsThroughBottleneck builds conv -> bottleneck -> weighted
// sum and checks that the conv output receives exactly the gradient that
// entered the bottleneck.
func TestGradientFlowsThroughBottleneck(t *testing.T) {
	b := autodiff.New(cpu.New())
	b.Tape().StartRecording()
	rng := tensor.NewRNG(42)

	x := tensor.Rand(tensor.Shape{2, 1, 6, 6}, rng, b)
	kernel := tensor.Randn(tensor.Shape{3, 1, 3, 3}, rng, b)
	weights := tensor.Randn(tensor.Shape{2, 3, 4, 4}, rng, b)

	h := tensor.New[float32](b.Conv2D(x.Raw(), kernel.Raw(), 1, 0), b)
	out, err := b.Apply(Default(), h.Raw())
	require.NoError(t, err)
	z := tensor.New[float32](out, b)
	y := z.Mul(weights)

	grads := autodiff.Backward(y, b)

	entering := grads[z.Raw()]
	reaching := grads[h.Raw()]
	require.NotNil(t, entering)
	require.NotNil(t, reaching)
	assert.Equal(t, weights.Data(), entering.AsFloat32())
	assert.Equal(t, entering.AsFloat32(), reaching.AsFloat32())

	dk := grads[kernel.Raw()]
	require.NotNil(t, dk)
	var nonzero bool
	for _, v := range dk.AsFloat32() {
		nonzero = nonzero || v != 0
	}
	assert.True(t, nonzero, "conv kernel must receive gradient")
}

func TestSweep(t *testing.T) {
	x := rawOf(t, tensor.Shape{2, 1, 28, 28}, append(checkerboard(), rampImage()...))

	points, err := Sweep(context.Background(), x, []int{90, 10, 50}, RangeClamp)
	require.NoError(t, err)
	require.Len(t, points, 3)

	byQ := map[int]SweepPoint{}
	for i, q := range []int{90, 10, 50} {
		assert.Equal(t, q, points[i].Quality)
		byQ[q] = points[i]
	}
	assert.Less(t, byQ[10].EncodedBytes, byQ[50].EncodedBytes)
	assert.Less(t, byQ[50].EncodedBytes, byQ[90].EncodedBytes)
	assert.Less(t, byQ[10].PSNR, byQ[90].PSNR)
	assert.InDelta(t, float64(byQ[90].EncodedBytes*8)/float64(2*784), byQ[90].BitsPerValue, 1e-9)
}

func TestSweep_Errors(t *testing.T) {
	x := filled(t, tensor.Shape{1, 1, 4, 4}, 0.5)

	_, err := Sweep(context.Background(), x, []int{0}, RangeClamp)
	assert.Error(t, err)

	_, err = Sweep(context.Background(), filled(t, tensor.Shape{4, 4}, 0.5), []int{90}, RangeClamp)
	assert.ErrorIs(t, err, ErrShape)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Sweep(ctx, x, []int{50, 90}, RangeClamp)
	assert.ErrorIs(t, err, context.Canceled)
}
