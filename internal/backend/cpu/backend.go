// Package cpu implements the pure Go float32 backend.
package cpu

import (
	"fmt"

	"github.com/bottlenet-ml/bottlenet/internal/parallel"
	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// CPUBackend implements tensor operations on the CPU.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithParallel sets the fan-out used by convolution kernels.
func WithParallel(cfg parallel.Config) Option {
	return func(cpu *CPUBackend) {
		cpu.parallel = cfg
	}
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	cpu := &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(cpu)
	}
	return cpu
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float32) *tensor.RawTensor {
	requireFloat32("mulscalar", x)
	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	out := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		out[i] = v * s
	}
	return result
}

// binary applies op element-wise, broadcasting when shapes differ.
func (cpu *CPUBackend) binary(name string, a, b *tensor.RawTensor, op func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(name, a)
	requireFloat32(name, b)

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
	out := result.AsFloat32()
	aData := a.AsFloat32()
	bData := b.AsFloat32()

	if !needsBroadcast {
		for i := range out {
			out[i] = op(aData[i], bData[i])
		}
		return result
	}

	aIdx := broadcastIndex(a.Shape(), outShape)
	bIdx := broadcastIndex(b.Shape(), outShape)
	for i := range out {
		out[i] = op(aData[aIdx[i]], bData[bIdx[i]])
	}
	return result
}

// broadcastIndex maps every flat index of outShape to the flat index of the
// element of src that broadcasts onto it.
func broadcastIndex(src, outShape tensor.Shape) []int {
	n := outShape.NumElements()
	idx := make([]int, n)

	rank := len(outShape)
	padded := make(tensor.Shape, rank)
	for i := range padded {
		padded[i] = 1
	}
	copy(padded[rank-len(src):], src)
	srcStrides := padded.ComputeStrides()
	outStrides := outShape.ComputeStrides()

	for flat := 0; flat < n; flat++ {
		rem := flat
		off := 0
		for d := 0; d < rank; d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			if padded[d] != 1 {
				off += coord * srcStrides[d]
			}
		}
		idx[flat] = off
	}
	return idx
}

func requireFloat32(op string, xs ...*tensor.RawTensor) {
	for _, x := range xs {
		if x.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: unsupported dtype %s (only float32)", op, x.DType()))
		}
	}
}
