package codec

import (
	"bytes"
	"fmt"
	"image/jpeg"
)

// DefaultQuality is the JPEG quality used by the bottleneck.
const DefaultQuality = 90

// JPEG is a lossy baseline JPEG codec.
type JPEG struct {
	// Quality ranges from 1 to 100; zero means DefaultQuality.
	Quality int
}

// NewJPEG returns a JPEG codec, rejecting qualities outside 1..100.
func NewJPEG(quality int) (JPEG, error) {
	if quality < 1 || quality > 100 {
		return JPEG{}, fmt.Errorf("codec: jpeg quality %d out of range [1, 100]", quality)
	}
	return JPEG{Quality: quality}, nil
}

func (j JPEG) quality() int {
	if j.Quality == 0 {
		return DefaultQuality
	}
	return j.Quality
}

// Name returns "jpeg/q<quality>".
func (j JPEG) Name() string {
	return fmt.Sprintf("jpeg/q%d", j.quality())
}

// Encode quantizes p and compresses it as a grayscale JPEG.
func (j JPEG) Encode(p Plane) ([]byte, error) {
	img, err := toGray(p)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(p.Rows * p.Cols / 4)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: j.quality()}); err != nil {
		return nil, fmt.Errorf("codec: jpeg encode %dx%d: %w", p.Rows, p.Cols, err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses a JPEG into a plane with values in [0, 1].
func (j JPEG) Decode(data []byte) (Plane, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return Plane{}, fmt.Errorf("%w: jpeg: %w", ErrCorrupt, err)
	}
	return fromImage(img), nil
}
