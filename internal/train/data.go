package train

import (
	"fmt"
	"math/rand/v2"

	"github.com/bottlenet-ml/bottlenet/internal/config"
	"github.com/bottlenet-ml/bottlenet/internal/data"
)

// syntheticTestFraction is the share of synthetic samples held out.
const syntheticTestFraction = 0.2

// LoadData returns the train and test sets described by cfg. Synthetic
// data is generated and split with rng; MNIST is read from cfg.Dir.
func LoadData(cfg config.DataConfig, rng *rand.Rand) (trainSet, testSet *data.Dataset, err error) {
	if cfg.Synthetic {
		all := data.Synthetic(cfg.SyntheticSize, rng)
		trainSet, testSet, err = all.Split(1-syntheticTestFraction, rng)
		if err != nil {
			return nil, nil, err
		}
	} else {
		if trainSet, err = data.LoadMNIST(cfg.Dir, "train"); err != nil {
			return nil, nil, fmt.Errorf("load training set: %w", err)
		}
		if testSet, err = data.LoadMNIST(cfg.Dir, "t10k"); err != nil {
			return nil, nil, fmt.Errorf("load test set: %w", err)
		}
	}

	for _, ds := range []*data.Dataset{trainSet, testSet} {
		if rows, cols := ds.ImageSize(); rows != InputSide || cols != InputSide {
			return nil, nil, fmt.Errorf("dataset images are %dx%d, model expects %dx%d", rows, cols, InputSide, InputSide)
		}
	}
	return trainSet.Head(cfg.TrainLimit), testSet.Head(cfg.TestLimit), nil
}
