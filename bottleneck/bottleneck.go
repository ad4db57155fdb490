// Package bottleneck provides the lossy compression node.
//
// Forward lays a (B, C, W, H) float32 tensor out as a (B*C) x (W*H)
// grayscale image, encodes it with the configured codec (JPEG quality 90
// by default), decodes it and reshapes the result back. Backward passes the
// upstream gradient through unchanged. An Op holds no per-call state and is
// safe for concurrent use.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y, err := backend.Apply(bottleneck.Default(), x.Raw())
package bottleneck

import (
	"context"

	"github.com/bottlenet-ml/bottlenet/internal/bottleneck"
	"github.com/bottlenet-ml/bottlenet/internal/codec"
	"github.com/bottlenet-ml/bottlenet/tensor"
)

// ErrShape reports an input that is not a 4-D float32 tensor.
var ErrShape = bottleneck.ErrShape

// Op is the compression node.
type Op = bottleneck.Op

// Options configures an Op.
type Options = bottleneck.Options

// Result is the outcome of one round trip.
type Result = bottleneck.Result

// SweepPoint is the cost and fidelity of one JPEG quality.
type SweepPoint = bottleneck.SweepPoint

// Range selects how activations are mapped into the codec's [0, 1] input.
type Range = bottleneck.Range

// Range policies.
const (
	// RangeClamp clamps values outside [0, 1] before quantizing.
	RangeClamp = bottleneck.RangeClamp
	// RangeMinMax rescales each call's tensor to [0, 1] and maps back.
	RangeMinMax = bottleneck.RangeMinMax
)

// Codec encodes and decodes 8-bit grayscale planes.
type Codec = codec.Codec

// JPEG is the lossy codec. Quality 0 means 90.
type JPEG = codec.JPEG

// PNG is the lossless reference codec.
type PNG = codec.PNG

// New returns an Op for opts; a nil Codec means JPEG quality 90.
func New(opts Options) *Op {
	return bottleneck.New(opts)
}

// Default returns the JPEG quality 90 Op with clamping.
func Default() *Op {
	return bottleneck.Default()
}

// NewJPEG returns a JPEG codec, rejecting qualities outside 1..100.
func NewJPEG(quality int) (JPEG, error) {
	return codec.NewJPEG(quality)
}

// ParseRange maps "clamp" or "minmax" to a Range.
func ParseRange(s string) (Range, error) {
	return bottleneck.ParseRange(s)
}

// Sweep round-trips x once per JPEG quality concurrently.
func Sweep(ctx context.Context, x *tensor.RawTensor, qualities []int, rng Range) ([]SweepPoint, error) {
	return bottleneck.Sweep(ctx, x, qualities, rng)
}
