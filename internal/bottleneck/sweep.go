package bottleneck

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bottlenet-ml/bottlenet/internal/codec"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// SweepPoint is the cost and fidelity of one JPEG quality setting.
type SweepPoint struct {
	Quality      int
	EncodedBytes int
	// BitsPerValue is EncodedBytes*8 divided by the number of activations.
	BitsPerValue float64
	MSE          float64
	PSNR         float64
}

// Sweep round-trips x once per quality, concurrently, and returns one point
// per quality in the order given. Fidelity is measured against x itself, so
// RangeClamp losses on out-of-range inputs are included.
func Sweep(ctx context.Context, x *tensor.RawTensor, qualities []int, rng Range) ([]SweepPoint, error) {
	ref, err := toPlane(x)
	if err != nil {
		return nil, err
	}

	ops := make([]*Op, len(qualities))
	for i, q := range qualities {
		c, err := codec.NewJPEG(q)
		if err != nil {
			return nil, fmt.Errorf("bottleneck: sweep: %w", err)
		}
		ops[i] = New(Options{Codec: c, Range: rng})
	}

	points := make([]SweepPoint, len(qualities))
	g, ctx := errgroup.WithContext(ctx)
	for i, op := range ops {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := op.RoundTrip(x)
			if err != nil {
				return fmt.Errorf("quality %d: %w", qualities[i], err)
			}
			got := codec.Plane{Rows: ref.Rows, Cols: ref.Cols, Pix: res.Output.AsFloat32()}
			mse, err := codec.MSE(ref, got)
			if err != nil {
				return err
			}
			psnr, err := codec.PSNR(ref, got)
			if err != nil {
				return err
			}
			points[i] = SweepPoint{
				Quality:      qualities[i],
				EncodedBytes: res.EncodedBytes,
				BitsPerValue: float64(res.EncodedBytes*8) / float64(len(ref.Pix)),
				MSE:          mse,
				PSNR:         psnr,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}
