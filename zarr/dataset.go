package zarr

import (
	"context"
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Dataset is a batched sequential-read view over an Array's axis 0,
// supplementing the core region API with an ML-style "give me the next N
// rows" iterator (grounded on the teacher's zarr/dataset.go
// Dataset.NextBatch). It does not add any new persisted format or
// invariant: every batch is read through the same Array.ReadRegion the
// rest of the engine uses.
type Dataset struct {
	array        *Array
	currentIndex int
}

// NewDataset wraps array in a Dataset, starting at row 0 of axis 0.
func NewDataset(array *Array) *Dataset {
	return &Dataset{array: array}
}

// OpenDataset opens the array at store's root and wraps it in a Dataset.
func OpenDataset(ctx context.Context, store Store) (*Dataset, error) {
	array, err := Open(ctx, store)
	if err != nil {
		return nil, err
	}
	return NewDataset(array), nil
}

// NextBatch reads the next batchSize rows along axis 0 and returns them as
// a gomlx tensor shaped [actualBatchSize, shape[1], shape[2], ...]. It
// returns io.EOF once axis 0 is exhausted. Only float32, int32, and int64
// dtypes are supported by this convenience layer, matching the teacher's
// NextBatch.
func (d *Dataset) NextBatch(ctx context.Context, batchSize int) (*tensors.Tensor, error) {
	shape := d.array.Shape()
	if d.currentIndex >= shape[0] {
		return nil, io.EOF
	}

	start := d.currentIndex
	end := start + batchSize
	if end > shape[0] {
		end = shape[0]
	}

	batchShape := make([]int, len(shape))
	batchShape[0] = end - start
	copy(batchShape[1:], shape[1:])

	offset := make([]int, len(shape))
	offset[0] = start

	buf, err := d.array.ReadRegion(ctx, batchShape, offset)
	if err != nil {
		return nil, err
	}
	d.currentIndex = end

	tensor, err := decodeTensor(d.array.DType(), buf, batchShape)
	if err != nil {
		return nil, err
	}
	return tensor, nil
}

// Reset rewinds the dataset back to row 0 of axis 0.
func (d *Dataset) Reset() { d.currentIndex = 0 }

func decodeTensor(dt DType, buf []byte, shape []int) (*tensors.Tensor, error) {
	n := regionVolume(shape)
	elemSize := dt.ElemSize()

	switch dt.Kind {
	case Float32:
		data := make([]float32, n)
		for i := 0; i < n; i++ {
			data[i] = float32(dt.DecodeScalar(buf[i*elemSize : (i+1)*elemSize]))
		}
		return tensors.FromFlatDataAndDimensions(data, shape...), nil
	case Int32:
		data := make([]int32, n)
		for i := 0; i < n; i++ {
			data[i] = int32(dt.DecodeScalar(buf[i*elemSize : (i+1)*elemSize]))
		}
		return tensors.FromFlatDataAndDimensions(data, shape...), nil
	case Int64:
		data := make([]int64, n)
		for i := 0; i < n; i++ {
			data[i] = int64(dt.DecodeScalar(buf[i*elemSize : (i+1)*elemSize]))
		}
		return tensors.FromFlatDataAndDimensions(data, shape...), nil
	default:
		return nil, fmt.Errorf("%w: dataset batching unsupported for dtype %s", ErrBufferMismatch, dt.String())
	}
}
