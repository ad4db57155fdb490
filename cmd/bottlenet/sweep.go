package main

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/bottlenet-ml/bottlenet/internal/bottleneck"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func newSweepCmd(a *app) *cobra.Command {
	var (
		samples   int
		qualities []int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Measure size and fidelity of the bottleneck across JPEG qualities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := bottleneck.ParseRange(a.cfg.Bottleneck.Range)
			if err != nil {
				return err
			}
			images, err := sampleBatch(a.cfg, samples)
			if err != nil {
				return err
			}

			points, err := bottleneck.Sweep(cmd.Context(), images.Raw(), qualities, rng)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSweep(points))
			return nil
		},
	}

	cmd.Flags().IntVarP(&samples, "samples", "n", 64, "Number of test images")
	cmd.Flags().IntSliceVarP(&qualities, "quality", "q", []int{10, 30, 50, 70, 90, 100}, "JPEG qualities to measure")
	return cmd
}

func renderSweep(points []bottleneck.SweepPoint) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("quality", "bytes", "bits/value", "mse", "psnr").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
		})

	for _, p := range points {
		psnr := "inf"
		if !math.IsInf(p.PSNR, 1) {
			psnr = fmt.Sprintf("%.2f dB", p.PSNR)
		}
		t.Row(
			fmt.Sprintf("%d", p.Quality),
			fmt.Sprintf("%d", p.EncodedBytes),
			fmt.Sprintf("%.3f", p.BitsPerValue),
			fmt.Sprintf("%.3g", p.MSE),
			psnr,
		)
	}
	return t.String()
}
