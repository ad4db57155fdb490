package data

import (
	"fmt"
	"math/rand/v2"

	"github.com/bottlenet-ml/bottlenet/internal/tensor"
)

// NumClasses is the number of digit classes.
const NumClasses = 10

// Dataset holds single-channel images and their labels in memory.
type Dataset struct {
	pix    []float32
	labels []int32
	rows   int
	cols   int
}

// NewDataset wraps pixels laid out image after image. Labels must lie in
// [0, NumClasses).
func NewDataset(pix []float32, labels []int32, rows, cols int) (*Dataset, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("data: invalid image size %dx%d", rows, cols)
	}
	if len(pix) != len(labels)*rows*cols {
		return nil, fmt.Errorf("data: %d pixels do not hold %d images of %dx%d", len(pix), len(labels), rows, cols)
	}
	for i, l := range labels {
		if l < 0 || l >= NumClasses {
			return nil, fmt.Errorf("data: label %d at index %d out of range [0, %d)", l, i, NumClasses)
		}
	}
	return &Dataset{pix: pix, labels: labels, rows: rows, cols: cols}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.labels) }

// ImageSize returns the height and width of every image.
func (d *Dataset) ImageSize() (rows, cols int) { return d.rows, d.cols }

// Label returns the label of sample i.
func (d *Dataset) Label(i int) int32 { return d.labels[i] }

// Image returns the pixels of sample i. The slice aliases the dataset.
func (d *Dataset) Image(i int) []float32 {
	n := d.rows * d.cols
	return d.pix[i*n : (i+1)*n]
}

// Head returns the first n samples (all of them if n <= 0 or n > Len).
func (d *Dataset) Head(n int) *Dataset {
	if n <= 0 || n > d.Len() {
		return d
	}
	size := d.rows * d.cols
	return &Dataset{pix: d.pix[:n*size], labels: d.labels[:n], rows: d.rows, cols: d.cols}
}

// Split shuffles the samples with rng and returns the first fraction as
// the training part and the remainder as the held-out part.
func (d *Dataset) Split(fraction float64, rng *rand.Rand) (train, test *Dataset, err error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("data: split fraction %v must be in (0, 1)", fraction)
	}
	perm := rng.Perm(d.Len())
	cut := int(float64(d.Len()) * fraction)
	if cut == 0 || cut == d.Len() {
		return nil, nil, fmt.Errorf("data: split of %d samples at %v leaves an empty part", d.Len(), fraction)
	}
	return d.gather(perm[:cut]), d.gather(perm[cut:]), nil
}

func (d *Dataset) gather(indices []int) *Dataset {
	size := d.rows * d.cols
	out := &Dataset{
		pix:    make([]float32, 0, len(indices)*size),
		labels: make([]int32, 0, len(indices)),
		rows:   d.rows,
		cols:   d.cols,
	}
	for _, i := range indices {
		out.pix = append(out.pix, d.Image(i)...)
		out.labels = append(out.labels, d.labels[i])
	}
	return out
}

// Batches partitions the sample indices into batches of at most size. With
// a non-nil rng the order is shuffled; nil keeps dataset order.
func (d *Dataset) Batches(size int, rng *rand.Rand) [][]int {
	if size <= 0 {
		size = d.Len()
	}
	var order []int
	if rng != nil {
		order = rng.Perm(d.Len())
	} else {
		order = make([]int, d.Len())
		for i := range order {
			order[i] = i
		}
	}

	batches := make([][]int, 0, (len(order)+size-1)/size)
	for start := 0; start < len(order); start += size {
		end := min(start+size, len(order))
		batches = append(batches, order[start:end])
	}
	return batches
}

// Batch builds the (N, 1, rows, cols) image tensor and the (N) label tensor
// for the given sample indices.
func Batch[B tensor.Backend](d *Dataset, indices []int, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[int32, B]) {
	size := d.rows * d.cols
	images := tensor.Zeros[float32, B](tensor.Shape{len(indices), 1, d.rows, d.cols}, backend)
	labels := tensor.Zeros[int32, B](tensor.Shape{len(indices)}, backend)

	pix, lab := images.Data(), labels.Data()
	for j, i := range indices {
		copy(pix[j*size:(j+1)*size], d.Image(i))
		lab[j] = d.labels[i]
	}
	return images, labels
}
