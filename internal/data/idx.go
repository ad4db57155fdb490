// Package data loads labeled 28x28 grayscale digit datasets: MNIST in IDX
// format, or a seeded synthetic stand-in when no files are available.
package data

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// IDX magic numbers.
const (
	imagesMagic = 2051
	labelsMagic = 2049
)

// ErrFormat reports a malformed IDX stream.
var ErrFormat = errors.New("data: malformed idx file")

// ReadImages reads an IDX3 image file and returns the pixels scaled to
// [0, 1], image after image.
func ReadImages(r io.Reader) (pix []float32, count, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("%w: images header: %w", ErrFormat, err)
	}
	if header[0] != imagesMagic {
		return nil, 0, 0, 0, fmt.Errorf("%w: images magic %d, want %d", ErrFormat, header[0], imagesMagic)
	}

	count, rows, cols = int(header[1]), int(header[2]), int(header[3])
	raw := make([]byte, count*rows*cols)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("%w: %d images of %dx%d: %w", ErrFormat, count, rows, cols, err)
	}

	pix = make([]float32, len(raw))
	for i, b := range raw {
		pix[i] = float32(b) / 255
	}
	return pix, count, rows, cols, nil
}

// ReadLabels reads an IDX1 label file.
func ReadLabels(r io.Reader) ([]int32, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: labels header: %w", ErrFormat, err)
	}
	if header[0] != labelsMagic {
		return nil, fmt.Errorf("%w: labels magic %d, want %d", ErrFormat, header[0], labelsMagic)
	}

	raw := make([]byte, header[1])
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: %d labels: %w", ErrFormat, header[1], err)
	}

	labels := make([]int32, len(raw))
	for i, b := range raw {
		labels[i] = int32(b)
	}
	return labels, nil
}

// LoadMNIST reads the "train" or "t10k" split from dir. Each file may be
// stored plain or gzipped (the upstream .gz name).
func LoadMNIST(dir, split string) (*Dataset, error) {
	if split != "train" && split != "t10k" {
		return nil, fmt.Errorf("data: unknown split %q (want train or t10k)", split)
	}

	var (
		pix              []float32
		count, rows, col int
	)
	err := withFile(filepath.Join(dir, split+"-images-idx3-ubyte"), func(r io.Reader) error {
		var err error
		pix, count, rows, col, err = ReadImages(r)
		return err
	})
	if err != nil {
		return nil, err
	}

	var labels []int32
	err = withFile(filepath.Join(dir, split+"-labels-idx1-ubyte"), func(r io.Reader) error {
		var err error
		labels, err = ReadLabels(r)
		return err
	})
	if err != nil {
		return nil, err
	}

	if count != len(labels) {
		return nil, fmt.Errorf("%w: %s has %d images but %d labels", ErrFormat, split, count, len(labels))
	}
	return NewDataset(pix, labels, rows, col)
}

// withFile opens path, or path+".gz" through a gzip reader, and passes the
// stream to fn.
func withFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	gz := false
	if errors.Is(err, fs.ErrNotExist) {
		f, err = os.Open(path + ".gz")
		gz = true
	}
	if err != nil {
		return fmt.Errorf("data: open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if gz {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("data: %s.gz: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	if err := fn(r); err != nil {
		return fmt.Errorf("data: %s: %w", filepath.Base(path), err)
	}
	return nil
}
