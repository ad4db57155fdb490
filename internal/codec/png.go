package codec

import (
	"bytes"
	"fmt"
	"image/png"
)

// PNG is a lossless codec. A PNG round trip loses only the 8-bit
// quantization, which makes it the reference for measuring what JPEG adds.
type PNG struct{}

// Name returns "png".
func (PNG) Name() string {
	return "png"
}

// Encode quantizes p and compresses it as a grayscale PNG.
func (PNG) Encode(p Plane) ([]byte, error) {
	img, err := toGray(p)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("codec: png encode %dx%d: %w", p.Rows, p.Cols, err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses a PNG into a plane with values in [0, 1].
func (PNG) Decode(data []byte) (Plane, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return Plane{}, fmt.Errorf("%w: png: %w", ErrCorrupt, err)
	}
	return fromImage(img), nil
}
