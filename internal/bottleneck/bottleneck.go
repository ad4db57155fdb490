// Package bottleneck implements the lossy compression node placed inside a
// network's forward pass.
//
// Forward flattens an activation tensor (B, C, W, H) into a B*C by W*H
// grayscale plane, round-trips it through a lossy codec and reshapes the
// decoded [0, 1] values back to (B, C, W, H). Backward is the identity: the
// codec has no useful derivative, so the incoming gradient is passed to the
// preceding layer unchanged (a straight-through estimator).
//
// An Op holds only immutable configuration and may be applied concurrently.
package bottleneck

import (
	"errors"
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/codec"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// ErrShape reports an input that cannot be laid out as an image.
var ErrShape = errors.New("bottleneck: invalid activation shape")

// Options configures an Op. The zero value is JPEG at quality 90 with
// clamping.
type Options struct {
	Codec codec.Codec
	Range Range
}

// Op is the compression node. It satisfies autodiff.Function.
type Op struct {
	codec codec.Codec
	rng   Range
}

// New returns an Op for opts.
func New(opts Options) *Op {
	c := opts.Codec
	if c == nil {
		c = codec.JPEG{Quality: codec.DefaultQuality}
	}
	return &Op{codec: c, rng: opts.Range}
}

// Default returns the JPEG quality 90, clamping Op.
func Default() *Op {
	return New(Options{})
}

// Name identifies the node as "bottleneck(<codec>,<range>)".
func (op *Op) Name() string {
	return fmt.Sprintf("bottleneck(%s,%s)", op.codec.Name(), op.rng)
}

// Codec returns the configured codec.
func (op *Op) Codec() codec.Codec {
	return op.codec
}

// Range returns the configured range policy.
func (op *Op) Range() Range {
	return op.rng
}

// Result is the outcome of one round trip.
type Result struct {
	// Output has the input's shape.
	Output *tensor.RawTensor
	// EncodedBytes is the size of the compressed image.
	EncodedBytes int
}

// Forward compresses and decompresses x. The output is a new tensor of the
// same shape. With RangeClamp every value lies in [0, 1].
func (op *Op) Forward(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	res, err := op.RoundTrip(x)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// Backward returns a copy of grad. The copy keeps later gradient
// accumulation from aliasing the caller's tensor.
func (op *Op) Backward(grad *tensor.RawTensor) (*tensor.RawTensor, error) {
	if grad.DType() != tensor.Float32 {
		return nil, fmt.Errorf("%w: gradient dtype %s, want float32", ErrShape, grad.DType())
	}
	return grad.Copy(), nil
}

// RoundTrip runs the forward transform and reports the compressed size. The
// encoded buffer is dropped before returning.
func (op *Op) RoundTrip(x *tensor.RawTensor) (Result, error) {
	plane, err := toPlane(x)
	if err != nil {
		return Result{}, err
	}

	scale := op.rng.fit(plane.Pix)
	if scale.active {
		plane.Pix = scale.normalize(plane.Pix)
	}

	data, err := op.codec.Encode(plane)
	if err != nil {
		return Result{}, fmt.Errorf("bottleneck: encode %s: %w", op.codec.Name(), err)
	}
	decoded, err := op.codec.Decode(data)
	if err != nil {
		return Result{}, fmt.Errorf("bottleneck: decode %s: %w", op.codec.Name(), err)
	}
	if decoded.Rows != plane.Rows || decoded.Cols != plane.Cols {
		return Result{}, fmt.Errorf("bottleneck: %s decoded %dx%d from %dx%d",
			op.codec.Name(), decoded.Rows, decoded.Cols, plane.Rows, plane.Cols)
	}

	out := tensor.MustNewRaw(x.Shape(), tensor.Float32, x.Device())
	if scale.active {
		scale.restore(out.AsFloat32(), decoded.Pix)
	} else {
		copy(out.AsFloat32(), decoded.Pix)
	}
	return Result{Output: out, EncodedBytes: len(data)}, nil
}

// toPlane lays x out as rows = B*C, cols = W*H in the tensor's row-major
// order. The plane aliases x's buffer and must not be written.
func toPlane(x *tensor.RawTensor) (codec.Plane, error) {
	b, c, w, h, err := x.Shape().Dims4()
	if err != nil {
		return codec.Plane{}, fmt.Errorf("%w: %w", ErrShape, err)
	}
	if x.DType() != tensor.Float32 {
		return codec.Plane{}, fmt.Errorf("%w: dtype %s, want float32", ErrShape, x.DType())
	}

	rows, cols := b*c, w*h
	if rows > codec.MaxSide || cols > codec.MaxSide {
		return codec.Plane{}, fmt.Errorf("%w: %v lays out as %dx%d, limit is %d per side",
			ErrShape, x.Shape(), rows, cols, codec.MaxSide)
	}

	plane, err := codec.NewPlane(rows, cols, x.AsFloat32())
	if err != nil {
		return codec.Plane{}, fmt.Errorf("%w: %w", ErrShape, err)
	}
	return plane, nil
}
