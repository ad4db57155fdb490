// Package tensor exposes bottlenet's generic tensors.
//
// Tensors are typed views over a shared RawTensor bound to a compute
// backend. Activations and parameters are float32; labels are int32.
//
//	backend := cpu.New()
//	x := tensor.Full[float32](tensor.Shape{1, 1, 28, 28}, 0.5, backend)
//	y := x.MulScalar(2)
package tensor

import (
	"math/rand/v2"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// Backend is the set of kernels a compute backend provides.
type Backend = tensor.Backend

// Tensor is a typed tensor bound to a backend.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// RawTensor is the untyped representation backends operate on.
type RawTensor = tensor.RawTensor

// DType constrains tensor element types to float32 and int32.
type DType = tensor.DType

// DataType is the runtime element type.
type DataType = tensor.DataType

// Device identifies where tensor memory lives.
type Device = tensor.Device

// Shape is a tensor's dimensions, outermost first.
type Shape = tensor.Shape

// Element types.
const (
	Float32 = tensor.Float32
	Int32   = tensor.Int32
)

// CPU is the only supported device.
const CPU = tensor.CPU

// ParseDevice maps a configuration string to a Device.
func ParseDevice(s string) (Device, error) {
	return tensor.ParseDevice(s)
}

// NewRaw allocates a zeroed RawTensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// New wraps raw for backend b.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T](raw, b)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor of zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones creates a tensor of ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Randn draws a float32 tensor from N(0, 1).
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[float32, B] {
	return tensor.Randn(shape, rng, b)
}

// Rand draws a float32 tensor uniformly from [0, 1).
func Rand[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[float32, B] {
	return tensor.Rand(shape, rng, b)
}

// NewRNG returns the deterministic generator for seed.
func NewRNG(seed uint64) *rand.Rand {
	return tensor.NewRNG(seed)
}

// BroadcastShapes returns the NumPy broadcast of a and b.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
