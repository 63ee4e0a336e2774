package zarr

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// ErrNotExist is returned by Store.NewReader when the key does not exist.
// BlobStore.NewReader translates gocloud.dev's gcerrors.NotFound into it.
var ErrNotExist = errors.New("zarr: key does not exist")

// Store is the key-value surface the engine consumes (spec §4.1, C1). It is
// an external collaborator: the engine never interprets key structure
// beyond what the chunk-key formatter produces, and never requires
// list_prefix on a hot path.
type Store interface {
	// NewReader opens key for reading. It returns ErrNotExist if key is
	// absent. The returned ReadCloser must be consumed once and closed.
	NewReader(ctx context.Context, key string) (io.ReadCloser, error)

	// NewWriter opens key for writing. The write is not observed by
	// concurrent readers until the returned WriteCloser is closed; the
	// underlying store is expected to make that transition atomic (spec
	// §4.1: "staged + rename" is an acceptable strategy for file-backed
	// stores).
	NewWriter(ctx context.Context, key string) (io.WriteCloser, error)

	// Delete removes key and, for hierarchical stores, anything stored
	// beneath it.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present, without reading its value.
	Exists(ctx context.Context, key string) (bool, error)
}

// BlobStore adapts a gocloud.dev/blob.Bucket to Store. This is the concrete
// Store used by Open/Create: callers open it from a bucket URL
// ("file:///tmp/array", "mem://", "s3://bucket/prefix", ...) with
// OpenBlobStore, the way the teacher's NewReader/NewDataset do via
// blob.OpenBucket, and pass it to Create/Open.
type BlobStore struct {
	bucket *blob.Bucket
}

// OpenBlobStore opens the gocloud.dev bucket at urlstr and wraps it as a
// Store. The caller owns the returned Store's lifetime and must Close it
// with BlobStore.Close, which closes the underlying *blob.Bucket.
func OpenBlobStore(ctx context.Context, urlstr string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("%w: open bucket %q: %v", ErrStoreError, urlstr, err)
	}
	return &BlobStore{bucket: bucket}, nil
}

func (s *BlobStore) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("%w: read %q: %v", ErrStoreError, key, err)
	}
	return r, nil
}

func (s *BlobStore) NewWriter(ctx context.Context, key string) (io.WriteCloser, error) {
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: write %q: %v", ErrStoreError, key, err)
	}
	return w, nil
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	prefix := key
	if key != "" && key[len(key)-1] != '/' {
		prefix = key + "/"
	}
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: list %q: %v", ErrStoreError, key, err)
		}
		if err := s.bucket.Delete(ctx, obj.Key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return fmt.Errorf("%w: delete %q: %v", ErrStoreError, obj.Key, err)
		}
	}
	if key == "" {
		return nil
	}
	if err := s.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("%w: delete %q: %v", ErrStoreError, key, err)
	}
	return nil
}

func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: exists %q: %v", ErrStoreError, key, err)
	}
	return ok, nil
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
