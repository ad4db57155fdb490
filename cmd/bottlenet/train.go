package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bottlenet-ml/bottlenet/internal/runlog"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
	"github.com/bottlenet-ml/bottlenet/internal/train"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		epochs       int
		synthetic    bool
		noBottleneck bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the classifier and report per-epoch metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("epochs") {
				cfg.Train.Epochs = epochs
			}
			if synthetic {
				cfg.Data.Synthetic = true
			}
			if noBottleneck {
				cfg.Bottleneck.Enabled = false
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			trainSet, testSet, err := train.LoadData(cfg.Data, tensor.NewRNG(cfg.Seed))
			if err != nil {
				return err
			}

			ledger, err := runlog.Open(cfg.RunLog.Path)
			if err != nil {
				return err
			}
			defer ledger.Close()

			tr, err := train.New(cfg, a.logger, ledger)
			if err != nil {
				return err
			}
			a.logger.Debug("Model", zap.Stringer("model", tr.Model()))

			res, err := tr.Fit(ctx, trainSet, testSet)
			if res != nil && len(res.Epochs) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), train.Report("run "+res.RunID, res.Epochs))
			}
			if err != nil && ctx.Err() != nil {
				return fmt.Errorf("training interrupted: %w", err)
			}
			return err
		},
	}

	cmd.Flags().IntVar(&epochs, "epochs", 0, "Override train.epochs")
	cmd.Flags().BoolVar(&synthetic, "synthetic", false, "Use generated stripe data instead of MNIST")
	cmd.Flags().BoolVar(&noBottleneck, "no-bottleneck", false, "Disable the codec layer (baseline run)")
	return cmd
}
