package train

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/bottlenet-ml/bottlenet/internal/autodiff"
	"github.com/bottlenet-ml/bottlenet/internal/backend/cpu"
	"github.com/bottlenet-ml/bottlenet/internal/bottleneck"
	"github.com/bottlenet-ml/bottlenet/internal/config"
	"github.com/bottlenet-ml/bottlenet/internal/data"
	"github.com/bottlenet-ml/bottlenet/internal/nn"
	"github.com/bottlenet-ml/bottlenet/internal/optim"
	"github.com/bottlenet-ml/bottlenet/internal/parallel"
	"github.com/bottlenet-ml/bottlenet/internal/runlog"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// Backend is the recording CPU backend the trainer runs on.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Result summarizes a finished Fit.
type Result struct {
	RunID  string
	Epochs []runlog.Epoch
}

// Final returns the last epoch, or the zero Epoch if none ran.
func (r *Result) Final() runlog.Epoch {
	if len(r.Epochs) == 0 {
		return runlog.Epoch{}
	}
	return r.Epochs[len(r.Epochs)-1]
}

// Trainer owns the model, optimizer and schedule for one run.
type Trainer struct {
	cfg     *config.Config
	logger  *zap.Logger
	ledger  *runlog.Ledger
	backend Backend
	model   *Model[Backend]
	loss    *nn.CrossEntropyLoss[Backend]
	opt     optim.Optimizer
	sched   *optim.StepLR
	shuffle *rand.Rand
}

// New builds a trainer from a validated configuration. Seed and device come
// from cfg; a nil ledger disables persistence.
func New(cfg *config.Config, logger *zap.Logger, ledger *runlog.Ledger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ledger == nil {
		ledger, _ = runlog.Open("")
	}

	opts, err := cfg.Bottleneck.Options()
	if err != nil {
		return nil, err
	}

	backend := autodiff.New(cpu.New(cpu.WithParallel(parallel.WithWorkers(cfg.Workers))))
	model := NewModel[Backend](bottleneck.New(opts), cfg.Bottleneck.Enabled, tensor.NewRNG(cfg.Seed), backend)

	opt, err := newOptimizer(cfg.Train, model.Parameters())
	if err != nil {
		return nil, err
	}
	sched, err := optim.NewStepLR(opt, cfg.Train.StepSize, float32(cfg.Train.Gamma))
	if err != nil {
		return nil, err
	}

	return &Trainer{
		cfg:     cfg,
		logger:  logger,
		ledger:  ledger,
		backend: backend,
		model:   model,
		loss:    nn.NewCrossEntropyLoss(backend),
		opt:     opt,
		sched:   sched,
		shuffle: tensor.NewRNG(cfg.Seed + 1),
	}, nil
}

func newOptimizer(cfg config.TrainConfig, params []*nn.Parameter[Backend]) (optim.Optimizer, error) {
	lr := float32(cfg.LR)
	switch cfg.Optimizer {
	case "adadelta":
		return optim.NewAdadelta(params, optim.AdadeltaConfig{LR: lr}), nil
	case "adam":
		return optim.NewAdam(params, optim.AdamConfig{LR: lr}), nil
	case "sgd":
		return optim.NewSGD(params, optim.SGDConfig{LR: lr, Momentum: float32(cfg.Momentum)}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
}

// Model returns the network being trained.
func (t *Trainer) Model() *Model[Backend] {
	return t.model
}

// Backend returns the recording backend.
func (t *Trainer) Backend() Backend {
	return t.backend
}

// Fit trains for the configured number of epochs, evaluating on testSet
// after each one. Cancelling ctx stops training between batches; the run is
// then recorded as canceled and ctx.Err() is returned.
func (t *Trainer) Fit(ctx context.Context, trainSet, testSet *data.Dataset) (*Result, error) {
	if trainSet.Len() == 0 || testSet.Len() == 0 {
		return nil, errors.New("train: empty dataset")
	}

	cfgText, err := yaml.Marshal(t.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	runID, err := t.ledger.StartRun(ctx, t.model.Bottleneck().String(), string(cfgText))
	if err != nil {
		return nil, err
	}

	log := t.logger.With(zap.String("run", runID))
	log.Info("Starting training",
		zap.Int("train", trainSet.Len()),
		zap.Int("test", testSet.Len()),
		zap.Int("params", nn.CountParameters(t.model.Parameters())),
		zap.Stringer("bottleneck", t.model.Bottleneck()),
		zap.Uint64("seed", t.cfg.Seed))

	res := &Result{RunID: runID}
	for epoch := 1; epoch <= t.cfg.Train.Epochs; epoch++ {
		rec, err := t.epoch(ctx, epoch, trainSet, testSet)
		if err != nil {
			t.finish(runID, err, log)
			return res, err
		}
		res.Epochs = append(res.Epochs, rec)

		if err := t.ledger.RecordEpoch(ctx, runID, rec); err != nil {
			log.Warn("Failed to record epoch", zap.Int("epoch", epoch), zap.Error(err))
		}
		log.Info("Epoch finished",
			zap.Int("epoch", epoch),
			zap.Float64("lr", rec.LR),
			zap.Float64("train_loss", rec.TrainLoss),
			zap.Float64("test_loss", rec.TestLoss),
			zap.Float64("test_accuracy", rec.TestAccuracy),
			zap.Duration("took", rec.Duration))

		t.sched.Step()
	}

	t.finish(runID, nil, log)
	return res, nil
}

func (t *Trainer) epoch(ctx context.Context, epoch int, trainSet, testSet *data.Dataset) (runlog.Epoch, error) {
	start := time.Now()
	lr := float64(t.opt.GetLR())

	trainLoss, err := t.trainEpoch(ctx, trainSet)
	if err != nil {
		return runlog.Epoch{}, fmt.Errorf("epoch %d: %w", epoch, err)
	}
	testLoss, acc, err := t.Evaluate(ctx, testSet)
	if err != nil {
		return runlog.Epoch{}, fmt.Errorf("epoch %d: %w", epoch, err)
	}

	return runlog.Epoch{
		Epoch:        epoch,
		LR:           lr,
		TrainLoss:    trainLoss,
		TestLoss:     testLoss,
		TestAccuracy: acc,
		Duration:     time.Since(start),
	}, nil
}

func (t *Trainer) trainEpoch(ctx context.Context, ds *data.Dataset) (float64, error) {
	tape := t.backend.Tape()
	tape.StartRecording()
	defer tape.Clear()
	t.model.SetTraining(true)

	var total float64
	for i, batch := range ds.Batches(t.cfg.Train.BatchSize, t.shuffle) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		t.opt.ZeroGrad()
		x, y := data.Batch(ds, batch, t.backend)
		logits, err := t.model.Forward(x)
		if err != nil {
			return 0, err
		}
		loss := t.loss.Forward(logits, y)

		grads := autodiff.Backward(loss, t.backend)
		t.opt.Step(grads)
		tape.Clear()

		lv := float64(loss.Item())
		total += lv * float64(len(batch))
		t.logger.Debug("Batch", zap.Int("batch", i), zap.Float64("loss", lv))
	}
	return total / float64(ds.Len()), nil
}

// Evaluate returns the mean loss and accuracy on ds with recording stopped
// and dropout disabled.
func (t *Trainer) Evaluate(ctx context.Context, ds *data.Dataset) (loss, accuracy float64, err error) {
	tape := t.backend.Tape()
	tape.StopRecording()
	t.model.SetTraining(false)

	var total float64
	correct := 0
	for _, batch := range ds.Batches(t.cfg.Train.TestBatchSize, nil) {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		x, y := data.Batch(ds, batch, t.backend)
		logits, err := t.model.Forward(x)
		if err != nil {
			return 0, 0, err
		}
		total += float64(t.loss.Forward(logits, y).Item()) * float64(len(batch))
		correct += nn.Correct(logits, y)
	}
	n := float64(ds.Len())
	return total / n, float64(correct) / n, nil
}

func (t *Trainer) finish(runID string, runErr error, log *zap.Logger) {
	status := runlog.StatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = runlog.StatusCanceled
		log.Warn("Training canceled", zap.Error(runErr))
	case runErr != nil:
		status = runlog.StatusFailed
		log.Error("Training failed", zap.Error(runErr))
	default:
		log.Info("Training complete")
	}

	if err := t.ledger.FinishRun(context.Background(), runID, status); err != nil {
		log.Warn("Failed to finish run", zap.Error(err))
	}
}
