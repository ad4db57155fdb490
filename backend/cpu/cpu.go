// Package cpu provides the pure Go float32 backend.
//
// Convolutions lower each sample to im2col and fan the batch out over a
// bounded errgroup; every other kernel runs on the calling goroutine. The
// backend holds no mutable state and is safe for concurrent use.
//
//	backend := cpu.New(cpu.WithWorkers(4))
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
package cpu

import (
	internalcpu "github.com/bottlenet-ml/bottlenet/internal/backend/cpu"
	"github.com/bottlenet-ml/bottlenet/internal/parallel"
	"github.com/bottlenet-ml/bottlenet/tensor"
)

// Backend is the CPU backend.
type Backend = internalcpu.CPUBackend

// Option configures a Backend.
type Option = internalcpu.Option

var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend.
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}

// WithWorkers bounds convolution fan-out to n goroutines. n <= 0 uses the
// CPU count; n == 1 runs sequentially.
func WithWorkers(n int) Option {
	return internalcpu.WithParallel(parallel.WithWorkers(n))
}
