package zarr

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// codec is one instance per open array, parameterized by (compressor,
// dtype, chunks, fill_value, store) (spec §4.2, C2). Its input/output is
// always a full chunk buffer; it handles no geometry.
type codec struct {
	store      Store
	compressor Compressor
	dtype      DType
	fill       float64
	chunkBytes int // expected decompressed length: chunkVolume * elemSize
}

// read fetches the blob at key and decompresses it into a full chunk
// buffer. A missing key yields a freshly allocated buffer filled with the
// array's fill value (spec I4). A present key whose decompressed length
// does not match chunkBytes is ErrCorruptChunk.
func (c *codec) read(ctx context.Context, key string) ([]byte, error) {
	r, err := c.store.NewReader(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			buf := make([]byte, c.chunkBytes)
			c.dtype.FillChunk(buf, c.fill)
			return buf, nil
		}
		return nil, err
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrStoreError, key, err)
	}

	decoded, err := c.compressor.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress %q: %v", ErrCorruptChunk, key, err)
	}
	if len(decoded) != c.chunkBytes {
		return nil, fmt.Errorf("%w: chunk %q decoded to %d bytes, expected %d", ErrCorruptChunk, key, len(decoded), c.chunkBytes)
	}
	return decoded, nil
}

// write compresses buf (a full chunk buffer) and stores it at key.
func (c *codec) write(ctx context.Context, key string, buf []byte) error {
	if len(buf) != c.chunkBytes {
		return fmt.Errorf("%w: chunk %q buffer is %d bytes, expected %d", ErrCorruptChunk, key, len(buf), c.chunkBytes)
	}

	encoded, err := c.compressor.Encode(buf)
	if err != nil {
		return fmt.Errorf("%w: compress %q: %v", ErrStoreError, key, err)
	}

	w, err := c.store.NewWriter(ctx, key)
	if err != nil {
		return err
	}
	if _, err := w.Write(encoded); err != nil {
		w.Close()
		return fmt.Errorf("%w: write %q: %v", ErrStoreError, key, err)
	}
	return w.Close()
}
