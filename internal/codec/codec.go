// Package codec turns float planes into compressed 8-bit grayscale images and
// back.
//
// A Plane is quantized by clamping every value to [0, 1] and rounding
// value*255 to the nearest byte; decoding divides by 255. Values outside
// [0, 1] therefore cannot survive a round trip.
package codec

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// MaxSide is the largest width or height a JPEG stream can describe.
const MaxSide = 65535

var (
	// ErrDimensions is returned when a plane cannot be represented as an image.
	ErrDimensions = errors.New("codec: invalid image dimensions")

	// ErrCorrupt is returned when decoding fails.
	ErrCorrupt = errors.New("codec: corrupt image data")
)

// Codec encodes planes to bytes and decodes them back.
//
// Implementations are stateless and safe for concurrent use.
type Codec interface {
	Name() string
	Encode(p Plane) ([]byte, error)
	Decode(data []byte) (Plane, error)
}

// Plane is a row-major single-channel image with float32 samples.
type Plane struct {
	Rows int
	Cols int
	Pix  []float32
}

// NewPlane wraps pix as a rows x cols plane.
func NewPlane(rows, cols int, pix []float32) (Plane, error) {
	p := Plane{Rows: rows, Cols: cols, Pix: pix}
	if err := p.validate(); err != nil {
		return Plane{}, err
	}
	return p, nil
}

func (p Plane) validate() error {
	if p.Rows <= 0 || p.Cols <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrDimensions, p.Rows, p.Cols)
	}
	if p.Rows > MaxSide || p.Cols > MaxSide {
		return fmt.Errorf("%w: %dx%d exceeds %d per side", ErrDimensions, p.Rows, p.Cols, MaxSide)
	}
	if len(p.Pix) != p.Rows*p.Cols {
		return fmt.Errorf("%w: %dx%d needs %d samples, got %d", ErrDimensions, p.Rows, p.Cols, p.Rows*p.Cols, len(p.Pix))
	}
	return nil
}

// Quantize maps v to the byte the codecs store: clamp to [0, 1], scale by
// 255 and round half away from zero. NaN maps to 0.
func Quantize(v float32) uint8 {
	switch {
	case !(v > 0): // also catches NaN
		return 0
	case v >= 1:
		return 255
	}
	return uint8(math.Round(float64(v) * 255))
}

// Dequantize maps a stored byte back to [0, 1].
func Dequantize(b uint8) float32 {
	return float32(b) / 255
}

// toGray quantizes p into an 8-bit image. Image x runs along columns, y along
// rows.
func toGray(p Plane) (*image.Gray, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, p.Cols, p.Rows))
	for r := 0; r < p.Rows; r++ {
		row := img.Pix[r*img.Stride : r*img.Stride+p.Cols]
		src := p.Pix[r*p.Cols : (r+1)*p.Cols]
		for c, v := range src {
			row[c] = Quantize(v)
		}
	}
	return img, nil
}

// fromImage converts any decoded image to a plane, reading luminance when the
// decoder did not return grayscale.
func fromImage(img image.Image) Plane {
	bounds := img.Bounds()
	p := Plane{
		Rows: bounds.Dy(),
		Cols: bounds.Dx(),
		Pix:  make([]float32, bounds.Dx()*bounds.Dy()),
	}

	if gray, ok := img.(*image.Gray); ok {
		for r := 0; r < p.Rows; r++ {
			row := gray.Pix[r*gray.Stride : r*gray.Stride+p.Cols]
			for c, b := range row {
				p.Pix[r*p.Cols+c] = Dequantize(b)
			}
		}
		return p
	}

	for r := 0; r < p.Rows; r++ {
		for c := 0; c < p.Cols; c++ {
			y := color.GrayModel.Convert(img.At(bounds.Min.X+c, bounds.Min.Y+r)).(color.Gray).Y
			p.Pix[r*p.Cols+c] = Dequantize(y)
		}
	}
	return p
}
