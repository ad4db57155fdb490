package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(rows, cols int, v float32) Plane {
	pix := make([]float32, rows*cols)
	for i := range pix {
		pix[i] = v
	}
	return Plane{Rows: rows, Cols: cols, Pix: pix}
}

func ramp(rows, cols int) Plane {
	pix := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			pix[r*cols+c] = float32(c) / float32(cols-1)
		}
	}
	return Plane{Rows: rows, Cols: cols, Pix: pix}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   float32
		want uint8
	}{
		{-3, 0},
		{0, 0},
		{0.5, 128},
		{1, 255},
		{7, 255},
		{float32(math.NaN()), 0},
		{float32(math.Inf(1)), 255},
		{float32(math.Inf(-1)), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quantize(tt.in), "Quantize(%v)", tt.in)
	}
	assert.InDelta(t, 128.0/255.0, Dequantize(128), 1e-7)
}

func TestNewPlane_Validates(t *testing.T) {
	_, err := NewPlane(2, 2, make([]float32, 4))
	require.NoError(t, err)

	_, err = NewPlane(2, 3, make([]float32, 4))
	assert.ErrorIs(t, err, ErrDimensions)

	_, err = NewPlane(0, 3, nil)
	assert.ErrorIs(t, err, ErrDimensions)

	_, err = NewPlane(1, MaxSide+1, make([]float32, MaxSide+1))
	assert.ErrorIs(t, err, ErrDimensions)
}

func TestJPEG_RoundTripUniform(t *testing.T) {
	j := JPEG{Quality: 90}
	data, err := j.Encode(uniform(28, 28, 0.5))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	got, err := j.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 28, got.Rows)
	assert.Equal(t, 28, got.Cols)
	for i, v := range got.Pix {
		require.InDelta(t, 0.5, v, 0.05, "pixel %d", i)
	}
}

func TestJPEG_DefaultQuality(t *testing.T) {
	assert.Equal(t, "jpeg/q90", JPEG{}.Name())
	assert.Equal(t, "jpeg/q40", JPEG{Quality: 40}.Name())

	_, err := NewJPEG(0)
	assert.Error(t, err)
	_, err = NewJPEG(101)
	assert.Error(t, err)
	j, err := NewJPEG(75)
	require.NoError(t, err)
	assert.Equal(t, 75, j.Quality)
}

func TestJPEG_NonSquarePlaneKeepsOrientation(t *testing.T) {
	j := JPEG{}
	in := ramp(16, 64)
	data, err := j.Encode(in)
	require.NoError(t, err)

	out, err := j.Decode(data)
	require.NoError(t, err)
	require.Equal(t, 16, out.Rows)
	require.Equal(t, 64, out.Cols)

	psnr, err := PSNR(in, out)
	require.NoError(t, err)
	assert.Greater(t, psnr, 30.0)
}

func TestJPEG_LowerQualityIsSmaller(t *testing.T) {
	in := ramp(64, 64)
	for i := range in.Pix {
		if (i/7)%2 == 0 {
			in.Pix[i] = 1 - in.Pix[i]
		}
	}

	hi, err := JPEG{Quality: 95}.Encode(in)
	require.NoError(t, err)
	lo, err := JPEG{Quality: 10}.Encode(in)
	require.NoError(t, err)
	assert.Less(t, len(lo), len(hi))
}

func TestJPEG_DecodeCorrupt(t *testing.T) {
	_, err := JPEG{}.Decode([]byte("not a jpeg"))
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = PNG{}.Decode(nil)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestPNG_LosesOnlyQuantization(t *testing.T) {
	in := ramp(5, 11)
	in.Pix[0] = -1
	in.Pix[1] = 2

	data, err := PNG{}.Encode(in)
	require.NoError(t, err)
	out, err := PNG{}.Decode(data)
	require.NoError(t, err)

	for i, v := range in.Pix {
		assert.Equal(t, Dequantize(Quantize(v)), out.Pix[i], "pixel %d", i)
	}
	assert.Equal(t, float32(0), out.Pix[0])
	assert.Equal(t, float32(1), out.Pix[1])
}

func TestDecode_NonGrayImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := PNG{}.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Rows)
	assert.Equal(t, 3, out.Cols)
	for _, v := range out.Pix {
		assert.Equal(t, float32(1), v)
	}
}

func TestMSEAndPSNR(t *testing.T) {
	a := uniform(2, 2, 0.5)
	b := uniform(2, 2, 0.6)

	mse, err := MSE(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, mse, 1e-6)

	psnr, err := PSNR(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 20, psnr, 1e-3)

	psnr, err = PSNR(a, a)
	require.NoError(t, err)
	assert.True(t, math.IsInf(psnr, 1))

	_, err = MSE(a, uniform(1, 4, 0))
	assert.ErrorIs(t, err, ErrDimensions)
}
