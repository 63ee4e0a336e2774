package zarr

import "errors"

// Sentinel error kinds surfaced by the engine. Use errors.Is to check for
// a specific kind; wrapped context (key, dimension, ...) is added with
// fmt.Errorf("...: %w", ErrXxx) at the call site.
var (
	// ErrOpenFailed is returned when a header is missing, malformed, or
	// internally inconsistent (e.g. shape/chunks rank mismatch).
	ErrOpenFailed = errors.New("zarr: open failed")

	// ErrOutOfRange is returned when a region's offset+shape exceeds the
	// array's shape, or its rank does not match the array's rank.
	ErrOutOfRange = errors.New("zarr: region out of range")

	// ErrBufferMismatch is returned when a caller-supplied buffer's byte
	// length does not equal the product of the region shape times the
	// element size, and by Dataset.NextBatch for a dtype it does not
	// support. Buffers are raw bytes, so their element type is not checked.
	ErrBufferMismatch = errors.New("zarr: buffer mismatch")

	// ErrCorruptChunk is returned when a decompressed chunk's byte length
	// does not equal the expected chunk volume.
	ErrCorruptChunk = errors.New("zarr: corrupt chunk")

	// ErrStoreError wraps any I/O failure surfaced by the underlying Store.
	ErrStoreError = errors.New("zarr: store error")
)
