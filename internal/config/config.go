// Package config holds the bottlenet run configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bottlenet-ml/bottlenet/internal/bottleneck"
	"github.com/bottlenet-ml/bottlenet/internal/codec"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// BottleneckChannels is the channel count of the activations the classifier
// hands to the bottleneck. Each sample becomes that many codec rows, so a
// batch may hold at most codec.MaxSide/BottleneckChannels samples.
const BottleneckChannels = 32

// Config is the full run configuration.
type Config struct {
	// Seed drives every random draw: init, dropout, shuffling, synthetic data.
	Seed uint64 `yaml:"seed"`

	// Device selects the compute device. Only "cpu" is available.
	Device string `yaml:"device"`

	// Workers bounds kernel parallelism; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`

	Train      TrainConfig      `yaml:"train"`
	Bottleneck BottleneckConfig `yaml:"bottleneck"`
	Data       DataConfig       `yaml:"data"`
	RunLog     RunLogConfig     `yaml:"runlog"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// TrainConfig configures the optimization loop.
type TrainConfig struct {
	Epochs        int     `yaml:"epochs"`
	BatchSize     int     `yaml:"batch_size"`
	TestBatchSize int     `yaml:"test_batch_size"`
	Optimizer     string  `yaml:"optimizer"` // adadelta, adam, sgd
	LR            float64 `yaml:"lr"`
	Momentum      float64 `yaml:"momentum"` // sgd only
	Gamma         float64 `yaml:"gamma"`
	StepSize      int     `yaml:"step_size"`
}

// BottleneckConfig configures the codec layer in the model.
type BottleneckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Codec   string `yaml:"codec"` // jpeg, png
	Quality int    `yaml:"quality"`
	Range   string `yaml:"range"` // clamp, minmax
}

// DataConfig selects the dataset.
type DataConfig struct {
	Dir           string `yaml:"dir"`
	Synthetic     bool   `yaml:"synthetic"`
	SyntheticSize int    `yaml:"synthetic_size"`
	TrainLimit    int    `yaml:"train_limit"`
	TestLimit     int    `yaml:"test_limit"`
}

// RunLogConfig locates the SQLite run ledger. An empty path disables it.
type RunLogConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Valid enumerations.
var (
	ValidOptimizers = []string{"adadelta", "adam", "sgd"}
	ValidCodecs     = []string{"jpeg", "png"}
	ValidLogLevels  = []string{"debug", "info", "warn", "error"}
	ValidLogFormats = []string{"json", "console"}
)

// DefaultConfig returns the classic MNIST recipe with the bottleneck on.
func DefaultConfig() *Config {
	return &Config{
		Seed:   1,
		Device: "cpu",
		Train: TrainConfig{
			Epochs:        14,
			BatchSize:     64,
			TestBatchSize: 1000,
			Optimizer:     "adadelta",
			LR:            1.0,
			Gamma:         0.7,
			StepSize:      1,
		},
		Bottleneck: BottleneckConfig{
			Enabled: true,
			Codec:   "jpeg",
			Quality: 90,
			Range:   bottleneck.RangeClamp.String(),
		},
		Data: DataConfig{
			Dir:           "data/mnist",
			SyntheticSize: 2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults and applies BOTTLENET_* environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("BOTTLENET_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("BOTTLENET_SEED: %w", err)
		}
		c.Seed = seed
	}
	if v := os.Getenv("BOTTLENET_DEVICE"); v != "" {
		c.Device = v
	}
	if v := os.Getenv("BOTTLENET_EPOCHS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BOTTLENET_EPOCHS: %w", err)
		}
		c.Train.Epochs = n
	}
	if v := os.Getenv("BOTTLENET_QUALITY"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BOTTLENET_QUALITY: %w", err)
		}
		c.Bottleneck.Quality = q
	}
	if v := os.Getenv("BOTTLENET_BOTTLENECK"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BOTTLENET_BOTTLENECK: %w", err)
		}
		c.Bottleneck.Enabled = on
	}
	if v := os.Getenv("BOTTLENET_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("BOTTLENET_RUNLOG"); v != "" {
		c.RunLog.Path = v
	}
	if v := os.Getenv("BOTTLENET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := tensor.ParseDevice(c.Device); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}

	t := c.Train
	if t.Epochs < 1 {
		return fmt.Errorf("train.epochs must be >= 1, got %d", t.Epochs)
	}
	if t.BatchSize < 1 || t.TestBatchSize < 1 {
		return fmt.Errorf("train batch sizes must be >= 1, got %d/%d", t.BatchSize, t.TestBatchSize)
	}
	if !slices.Contains(ValidOptimizers, t.Optimizer) {
		return fmt.Errorf("invalid optimizer: %s (valid: %v)", t.Optimizer, ValidOptimizers)
	}
	if t.LR <= 0 {
		return fmt.Errorf("train.lr must be positive, got %v", t.LR)
	}
	if t.Gamma <= 0 || t.Gamma > 1 {
		return fmt.Errorf("train.gamma must be in (0, 1], got %v", t.Gamma)
	}
	if t.StepSize < 1 {
		return fmt.Errorf("train.step_size must be >= 1, got %d", t.StepSize)
	}

	b := c.Bottleneck
	if b.Enabled {
		if limit := codec.MaxSide / BottleneckChannels; max(t.BatchSize, t.TestBatchSize) > limit {
			return fmt.Errorf("train batch sizes must be <= %d with the bottleneck enabled, got %d/%d",
				limit, t.BatchSize, t.TestBatchSize)
		}
	}
	if !slices.Contains(ValidCodecs, b.Codec) {
		return fmt.Errorf("invalid codec: %s (valid: %v)", b.Codec, ValidCodecs)
	}
	if b.Quality < 1 || b.Quality > 100 {
		return fmt.Errorf("bottleneck.quality must be in [1, 100], got %d", b.Quality)
	}
	if _, err := bottleneck.ParseRange(b.Range); err != nil {
		return err
	}

	if !c.Data.Synthetic && c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required unless data.synthetic is set")
	}
	if c.Data.Synthetic && c.Data.SyntheticSize < 10 {
		return fmt.Errorf("data.synthetic_size must be >= 10, got %d", c.Data.SyntheticSize)
	}

	if !slices.Contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if !slices.Contains(ValidLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidLogFormats)
	}
	return nil
}

// Options builds the bottleneck options described by b.
func (b BottleneckConfig) Options() (bottleneck.Options, error) {
	r, err := bottleneck.ParseRange(b.Range)
	if err != nil {
		return bottleneck.Options{}, err
	}

	switch b.Codec {
	case "jpeg":
		j, err := codec.NewJPEG(b.Quality)
		if err != nil {
			return bottleneck.Options{}, err
		}
		return bottleneck.Options{Codec: j, Range: r}, nil
	case "png":
		return bottleneck.Options{Codec: codec.PNG{}, Range: r}, nil
	default:
		return bottleneck.Options{}, fmt.Errorf("invalid codec: %s (valid: %v)", b.Codec, ValidCodecs)
	}
}
