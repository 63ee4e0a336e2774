package zarr

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// logger is the package-level structured logger used for the one
// diagnostic the spec calls out that is not an error condition: the
// layout-probe fallback when an existing array has no chunks at all to
// probe (design note §9, Open Question). Grounded on the pack's
// i5heu-ouroboros-db, which keeps a package-level *zap.Logger for exactly
// this kind of ambient diagnostic.
var logger = newLogger()

func newLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Config describes a new array at creation time (spec §3 "Array
// descriptor"). All fields become immutable once Create returns (I5).
type Config struct {
	Shape      []int
	Chunks     []int
	DType      string // numpy-style typestr, e.g. "<f4", ">i2"
	FillValue  float64
	Compressor *CompressorConfig
	// Nested sets the chunk-key layout hint explicitly. nil leaves the
	// header's dimension_separator absent, matching arrays created before
	// the hint existed; the layout is then treated as flat until probed
	// on a later Open (spec §3 "nested").
	Nested *bool
}

// Array is the top-level engine (spec §4.6, C5): it orchestrates the
// codec (C2), geometry (C3), and chunk-key formatter (C4) over a Store
// (C1), with per-chunk mutual exclusion on writes.
type Array struct {
	store  Store
	meta   *Metadata
	dtype  DType
	nested bool
	codec  *codec
	locks  *chunkLockTable
}

// Create creates a new array at store's root: it deletes any pre-existing
// blob there (spec §4.6.2), writes the .zarray header, and returns an
// Array ready for reads and writes. Chunks are lazily materialized on
// first write (spec "Lifecycle").
func Create(ctx context.Context, store Store, cfg Config) (*Array, error) {
	meta := &Metadata{
		ZarrFormat: 2,
		Shape:      cfg.Shape,
		Chunks:     cfg.Chunks,
		DType:      cfg.DType,
		Order:      "C",
		Compressor: cfg.Compressor,
	}
	fv := cfg.FillValue
	meta.FillValue = &fv
	if cfg.Nested != nil {
		meta.setNestedLayout(*cfg.Nested)
	}

	if err := meta.validate(); err != nil {
		return nil, err
	}

	if err := store.Delete(ctx, ""); err != nil {
		return nil, fmt.Errorf("%w: clearing array root: %v", ErrStoreError, err)
	}

	data, err := meta.encodeJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: encode header: %v", ErrOpenFailed, err)
	}
	w, err := store.NewWriter(ctx, ".zarray")
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: write header: %v", ErrStoreError, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: write header: %v", ErrStoreError, err)
	}

	nested := cfg.Nested != nil && *cfg.Nested
	return newArray(store, meta, nested)
}

// Open opens an existing array, reading and parsing its .zarray header
// (spec §4.6.1). If the header omits the layout hint, the chunk grid is
// probed to determine it (step 2); if the array has no chunks at all, the
// probe cannot determine anything and the engine falls back to flat,
// surfacing that as a warning (design note §9, Open Question) rather than
// silently.
func Open(ctx context.Context, store Store) (*Array, error) {
	r, err := store.NewReader(ctx, ".zarray")
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return nil, fmt.Errorf("%w: missing .zarray header", ErrOpenFailed)
		}
		return nil, err
	}
	meta, err := LoadMetadata(r)
	r.Close()
	if err != nil {
		return nil, err
	}

	var nested bool
	switch meta.nestedLayout() {
	case layoutNested:
		nested = true
	case layoutFlat:
		nested = false
	default:
		found, isNested, err := probeLayout(ctx, store, meta)
		if err != nil {
			return nil, err
		}
		if found {
			nested = isNested
		} else {
			logger.Warn("layout probe found no chunks; defaulting to flat chunk-key layout",
				zap.Ints("shape", meta.Shape), zap.Ints("chunks", meta.Chunks))
			nested = false
		}
	}

	return newArray(store, meta, nested)
}

func newArray(store Store, meta *Metadata, nested bool) (*Array, error) {
	dtype, err := ParseDType(meta.DType)
	if err != nil {
		return nil, err
	}
	comp, err := newCompressor(meta.Compressor)
	if err != nil {
		return nil, err
	}

	return &Array{
		store:  store,
		meta:   meta,
		dtype:  dtype,
		nested: nested,
		codec: &codec{
			store:      store,
			compressor: comp,
			dtype:      dtype,
			fill:       meta.fillValue(),
			chunkBytes: meta.chunkVolume() * dtype.ElemSize(),
		},
		locks: newChunkLockTable(),
	}, nil
}

// probeLayout walks the chunk grid (not the logical array, per design note
// §9) looking for the first chunk key that exists under either separator
// convention. It bounds iteration by ∏ ceil(shape[k]/chunks[k]).
func probeLayout(ctx context.Context, store Store, meta *Metadata) (found, nested bool, err error) {
	grid := meta.gridShape()
	idx := make([]int, len(grid))

	var walk func(dim int) (bool, bool, error)
	walk = func(dim int) (bool, bool, error) {
		if dim == len(grid) {
			flatKey := chunkKey(idx, false)
			if ok, err := store.Exists(ctx, flatKey); err != nil {
				return false, false, err
			} else if ok {
				return true, false, nil
			}
			nestedKey := chunkKey(idx, true)
			if ok, err := store.Exists(ctx, nestedKey); err != nil {
				return false, false, err
			} else if ok {
				return true, true, nil
			}
			return false, false, nil
		}
		for i := 0; i < grid[dim]; i++ {
			idx[dim] = i
			found, nested, err := walk(dim + 1)
			if err != nil || found {
				return found, nested, err
			}
		}
		return false, false, nil
	}

	return walk(0)
}

// Shape returns the array's logical shape. Safe to read without
// synchronization: immutable after Open/Create (I5).
func (a *Array) Shape() []int { return a.meta.Shape }

// Chunks returns the array's chunk shape.
func (a *Array) Chunks() []int { return a.meta.Chunks }

// DType returns the array's element dtype.
func (a *Array) DType() DType { return a.dtype }

// FillValue returns the array's fill value.
func (a *Array) FillValue() float64 { return a.meta.fillValue() }

// Nested reports the resolved chunk-key layout.
func (a *Array) Nested() bool { return a.nested }

func (a *Array) rank() int { return a.meta.rank() }

func validateRegion(rank int, shape []int, offset, regionShape []int) error {
	if len(regionShape) != rank || len(offset) != rank {
		return fmt.Errorf("%w: region rank %d/%d does not match array rank %d", ErrOutOfRange, len(regionShape), len(offset), rank)
	}
	for k := 0; k < rank; k++ {
		if offset[k] < 0 || regionShape[k] <= 0 || offset[k]+regionShape[k] > shape[k] {
			return fmt.Errorf("%w: dimension %d: offset=%d shape=%d exceeds array shape %d", ErrOutOfRange, k, offset[k], regionShape[k], shape[k])
		}
	}
	return nil
}

func regionVolume(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// WriteRegion writes buf, a flat element buffer of length
// ∏regionShape[k]·elemSize encoded in the array's dtype and byte order,
// into the region (regionOffset, regionShape) (spec §4.6.3). Touched
// chunks are visited in deterministic row-major order; each is guarded by
// its own per-chunk lock so writes to disjoint chunks proceed in parallel
// while writes to the same chunk serialize (spec §5).
func (a *Array) WriteRegion(ctx context.Context, buf []byte, regionShape, regionOffset []int) error {
	if err := validateRegion(a.rank(), a.meta.Shape, regionOffset, regionShape); err != nil {
		return err
	}
	elemSize := a.dtype.ElemSize()
	if len(buf) != regionVolume(regionShape)*elemSize {
		return fmt.Errorf("%w: buffer is %d bytes, expected %d", ErrBufferMismatch, len(buf), regionVolume(regionShape)*elemSize)
	}

	for _, idx := range touchedChunks(a.meta.Chunks, regionOffset, regionShape) {
		key := chunkKey(idx, a.nested)
		mu := a.locks.lockFor(key)
		mu.Lock()
		err := a.writeChunk(ctx, key, idx, buf, regionShape, regionOffset, elemSize)
		mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Array) writeChunk(ctx context.Context, key string, idx []int, buf []byte, regionShape, regionOffset []int, elemSize int) error {
	copyShape, chunkOffset, regionWinOffset, ok := chunkWindow(idx, a.meta.Chunks, a.meta.Shape, regionOffset, regionShape)
	if !ok {
		return nil
	}

	if isFastPath(regionShape, a.meta.Chunks, chunkOffset, regionWinOffset) {
		return a.codec.write(ctx, key, buf)
	}

	chunkData, err := a.codec.read(ctx, key)
	if err != nil {
		return err
	}
	copyNDBytes(chunkData, a.meta.Chunks, chunkOffset, buf, regionShape, regionWinOffset, copyShape, elemSize)
	return a.codec.write(ctx, key, chunkData)
}

// ReadRegion reads the region (regionOffset, regionShape) into a freshly
// allocated buffer and returns it (spec §4.6.4). Reads do not take the
// per-chunk lock (spec §5): a concurrent write may be observed either
// fully before or fully after, never torn, because the store's put is
// assumed atomic (spec §4.1).
func (a *Array) ReadRegion(ctx context.Context, regionShape, regionOffset []int) ([]byte, error) {
	if err := validateRegion(a.rank(), a.meta.Shape, regionOffset, regionShape); err != nil {
		return nil, err
	}
	elemSize := a.dtype.ElemSize()
	out := make([]byte, regionVolume(regionShape)*elemSize)

	for _, idx := range touchedChunks(a.meta.Chunks, regionOffset, regionShape) {
		key := chunkKey(idx, a.nested)
		copyShape, chunkOffset, regionWinOffset, ok := chunkWindow(idx, a.meta.Chunks, a.meta.Shape, regionOffset, regionShape)
		if !ok {
			continue
		}

		chunkData, err := a.codec.read(ctx, key)
		if err != nil {
			return nil, err
		}

		if isFastPath(regionShape, a.meta.Chunks, chunkOffset, regionWinOffset) {
			copy(out, chunkData)
			continue
		}
		copyNDBytes(out, regionShape, regionWinOffset, chunkData, a.meta.Chunks, chunkOffset, copyShape, elemSize)
	}
	return out, nil
}

// ReadAll reads the entire array (spec §4.6.5 "read() ... defaults offset
// to zero and region_shape to shape").
func (a *Array) ReadAll(ctx context.Context) ([]byte, error) {
	return a.ReadRegion(ctx, a.meta.Shape, make([]int, a.rank()))
}

// WriteFill materializes a buffer of regionShape filled with value (encoded
// per the array's dtype and byte order) and writes it at regionOffset
// (spec §4.6.5 "write(scalar, region_shape, offset)").
func (a *Array) WriteFill(ctx context.Context, value float64, regionShape, regionOffset []int) error {
	elem := a.dtype.EncodeScalar(value)
	buf := make([]byte, regionVolume(regionShape)*len(elem))
	for off := 0; off < len(buf); off += len(elem) {
		copy(buf[off:off+len(elem)], elem)
	}
	return a.WriteRegion(ctx, buf, regionShape, regionOffset)
}

// WriteFillAll fills the entire array with value (spec §4.6.5
// "write(scalar)").
func (a *Array) WriteFillAll(ctx context.Context, value float64) error {
	return a.WriteFill(ctx, value, a.meta.Shape, make([]int, a.rank()))
}
