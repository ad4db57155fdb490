package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bottlenet-ml/bottlenet/internal/bottleneck"
	"github.com/bottlenet-ml/bottlenet/internal/codec"
)

func newRoundTripCmd(a *app) *cobra.Command {
	var (
		samples int
		passes  int
		quality int
		out     string
	)

	cmd := &cobra.Command{
		Use:   "roundtrip",
		Short: "Push sample images through the bottleneck repeatedly and report drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passes < 1 {
				return fmt.Errorf("passes must be >= 1, got %d", passes)
			}
			bcfg := a.cfg.Bottleneck
			if quality != 0 {
				bcfg.Quality = quality
			}
			opts, err := bcfg.Options()
			if err != nil {
				return err
			}
			op := bottleneck.New(opts)

			images, err := sampleBatch(a.cfg, samples)
			if err != nil {
				return err
			}
			shape := images.Shape()
			rows, cols := shape[0]*shape[2], shape[3]
			ref := codec.Plane{Rows: rows, Cols: cols, Pix: images.Data()}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s on %v\n", op.Name(), shape)
			fmt.Fprintf(w, "%4s %8s %10s %12s\n", "pass", "bytes", "psnr(dB)", "mse(prev)")

			x := images.Raw()
			for pass := 1; pass <= passes; pass++ {
				res, err := op.RoundTrip(x)
				if err != nil {
					return err
				}
				prev := codec.Plane{Rows: rows, Cols: cols, Pix: x.AsFloat32()}
				got := codec.Plane{Rows: rows, Cols: cols, Pix: res.Output.AsFloat32()}

				psnr, err := codec.PSNR(ref, got)
				if err != nil {
					return err
				}
				drift, err := codec.MSE(prev, got)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%4d %8d %10.2f %12.3g\n", pass, res.EncodedBytes, psnr, drift)
				a.logger.Debug("Round trip", zap.Int("pass", pass), zap.Int("bytes", res.EncodedBytes), zap.Float64("psnr", psnr))
				x = res.Output
			}

			if out == "" {
				return nil
			}
			// Images are stacked vertically: one 28-row band per sample.
			encoded, err := codec.PNG{}.Encode(codec.Plane{Rows: rows, Cols: cols, Pix: x.AsFloat32()})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, encoded, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			a.logger.Info("Wrote decoded samples", zap.String("path", out))
			return nil
		},
	}

	cmd.Flags().IntVarP(&samples, "samples", "n", 8, "Number of test images")
	cmd.Flags().IntVarP(&passes, "passes", "p", 1, "Number of successive round trips")
	cmd.Flags().IntVarP(&quality, "quality", "q", 0, "Override bottleneck.quality (1-100)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the final images as a PNG strip")
	return cmd
}
