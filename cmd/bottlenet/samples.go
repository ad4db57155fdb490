package main

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/backend/cpu"
	"github.com/bottlenet-ml/bottlenet/internal/config"
	"github.com/bottlenet-ml/bottlenet/internal/data"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
	"github.com/bottlenet-ml/bottlenet/internal/train"
)

// sampleBatch returns the first n test images of the configured dataset as
// an (n, 1, 28, 28) tensor.
func sampleBatch(cfg *config.Config, n int) (*tensor.Tensor[float32, *cpu.CPUBackend], error) {
	if n < 1 {
		return nil, fmt.Errorf("samples must be >= 1, got %d", n)
	}

	_, testSet, err := train.LoadData(cfg.Data, tensor.NewRNG(cfg.Seed))
	if err != nil {
		return nil, err
	}
	testSet = testSet.Head(n)

	indices := make([]int, testSet.Len())
	for i := range indices {
		indices[i] = i
	}
	images, _ := data.Batch(testSet, indices, cpu.New())
	return images, nil
}
