package zarr

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

func openBlobStoreT(t *testing.T, urlstr string) *BlobStore {
	t.Helper()
	s, err := OpenBlobStore(context.Background(), urlstr)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fileStoreT(t *testing.T) *BlobStore {
	t.Helper()
	return openBlobStoreT(t, "file://"+t.TempDir())
}

func encodeInt32LE(vals []int32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func decodeInt32LE(buf []byte) []int32 {
	out := make([]int32, len(buf)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func encodeFloat32LE(vals []float32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeFloat32LE(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// Seed scenario 1 (spec §8): shape=[10] chunks=[3] int32 fill=-1; write
// [7,8,9] at offset=[4]; read full == [-1,-1,-1,-1,7,8,9,-1,-1,-1]; chunk
// keys 1 and 2 touched.
func TestSeedScenario1(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{
		Shape: []int{10}, Chunks: []int{3}, DType: "<i4", FillValue: -1,
	})
	require.NoError(t, err)

	require.NoError(t, arr.WriteRegion(ctx, encodeInt32LE([]int32{7, 8, 9}), []int{3}, []int{4}))

	out, err := arr.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int32{-1, -1, -1, -1, 7, 8, 9, -1, -1, -1}, decodeInt32LE(out))

	ok1, err := store.Exists(ctx, "1")
	require.NoError(t, err)
	ok2, err := store.Exists(ctx, "2")
	require.NoError(t, err)
	assert.True(t, ok1)
	assert.True(t, ok2)
	ok0, err := store.Exists(ctx, "0")
	require.NoError(t, err)
	assert.False(t, ok0)
}

// Seed scenario 2 (spec §8): shape=[4,4] chunks=[2,2] float32 fill=0
// compressor=none; write 2x2 block at offset=[1,1]; read full matches the
// documented layout; keys 0.0, 0.1, 1.0, 1.1 all exist.
func TestSeedScenario2(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{
		Shape: []int{4, 4}, Chunks: []int{2, 2}, DType: "<f4", FillValue: 0,
	})
	require.NoError(t, err)

	require.NoError(t, arr.WriteRegion(ctx, encodeFloat32LE([]float32{1, 0, 0, 1}), []int{2, 2}, []int{1, 1}))

	out, err := arr.ReadAll(ctx)
	require.NoError(t, err)
	expected := []float32{
		0, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 0,
	}
	assert.Equal(t, expected, decodeFloat32LE(out))

	for _, key := range []string{"0.0", "0.1", "1.0", "1.1"} {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "expected key %q to exist", key)
	}
}

// Seed scenario 3 (spec §8): shape=[5,5] chunks=[5,5]; a full write creates
// exactly one key, 0.0, via the fast path.
func TestSeedScenario3FastPathSingleKey(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{
		Shape: []int{5, 5}, Chunks: []int{5, 5}, DType: "<f4",
	})
	require.NoError(t, err)

	data := make([]float32, 25)
	for i := range data {
		data[i] = float32(i)
	}
	require.NoError(t, arr.WriteRegion(ctx, encodeFloat32LE(data), []int{5, 5}, []int{0, 0}))

	ok, err := store.Exists(ctx, "0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := arr.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, data, decodeFloat32LE(out))
}

// Seed scenario 4 (spec §8): nested=true; shape=[2,2] chunks=[1,1]; keys
// 0/0, 0/1, 1/0, 1/1 exist, flat-style keys do not.
func TestSeedScenario4NestedLayout(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	nested := true
	arr, err := Create(ctx, store, Config{
		Shape: []int{2, 2}, Chunks: []int{1, 1}, DType: "<i4", Nested: &nested,
	})
	require.NoError(t, err)

	require.NoError(t, arr.WriteRegion(ctx, encodeInt32LE([]int32{1, 2, 3, 4}), []int{2, 2}, []int{0, 0}))

	for _, key := range []string{"0/0", "0/1", "1/0", "1/1"} {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "expected nested key %q", key)
	}
	for _, key := range []string{"0.0", "0.1", "1.0", "1.1"} {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, "flat key %q must not exist under nested layout", key)
	}
}

// Seed scenario 5 (spec §8): a header lacking dimension_separator whose
// sole chunk is stored at "0/0" is probed and detected as nested.
func TestSeedScenario5LayoutProbeDetectsNested(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	meta := &Metadata{ZarrFormat: 2, Shape: []int{2, 2}, Chunks: []int{2, 2}, DType: "<i4", Order: "C"}
	data, err := meta.encodeJSON()
	require.NoError(t, err)
	w, err := store.NewWriter(ctx, ".zarray")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w, err = store.NewWriter(ctx, "0/0")
	require.NoError(t, err)
	_, err = w.Write(encodeInt32LE([]int32{1, 2, 3, 4}))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	arr, err := Open(ctx, store)
	require.NoError(t, err)
	assert.True(t, arr.Nested())

	out, err := arr.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4}, decodeInt32LE(out))
}

// Open-question fallback: a header lacking dimension_separator with zero
// chunks anywhere defaults to flat without error.
func TestLayoutProbeNoChunksDefaultsFlat(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	meta := &Metadata{ZarrFormat: 2, Shape: []int{4}, Chunks: []int{2}, DType: "<i4", Order: "C"}
	data, err := meta.encodeJSON()
	require.NoError(t, err)
	w, err := store.NewWriter(ctx, ".zarray")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	arr, err := Open(ctx, store)
	require.NoError(t, err)
	assert.False(t, arr.Nested())
}

// Seed scenario 6 (spec §8): shape=[1000] chunks=[100] compressor=zlib;
// write a ramp i -> i; read [250,750) == [250..749]; chunk keys 2..7
// touched.
func TestSeedScenario6Zlib(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{
		Shape: []int{1000}, Chunks: []int{100}, DType: "<i4",
		Compressor: &CompressorConfig{ID: "zlib"},
	})
	require.NoError(t, err)

	ramp := make([]int32, 1000)
	for i := range ramp {
		ramp[i] = int32(i)
	}
	require.NoError(t, arr.WriteRegion(ctx, encodeInt32LE(ramp), []int{1000}, []int{0}))

	out, err := arr.ReadRegion(ctx, []int{500}, []int{250})
	require.NoError(t, err)

	expected := make([]int32, 500)
	for i := range expected {
		expected[i] = int32(250 + i)
	}
	assert.Equal(t, expected, decodeInt32LE(out))

	for _, key := range []string{"2", "3", "4", "5", "6", "7"} {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "expected key %q", key)
	}
}

// Testable property: fill on miss — reading a newly created array returns
// every cell equal to fill_value.
func TestFillOnMiss(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{
		Shape: []int{6, 6}, Chunks: []int{3, 3}, DType: "<f4", FillValue: 9,
	})
	require.NoError(t, err)

	out, err := arr.ReadAll(ctx)
	require.NoError(t, err)
	for _, v := range decodeFloat32LE(out) {
		assert.Equal(t, float32(9), v)
	}
}

// Testable property: chunk independence — writing R2 leaves R1's cells
// (outside R2) unchanged when R1 and R2 touch disjoint chunks.
func TestChunkIndependence(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{
		Shape: []int{6}, Chunks: []int{3}, DType: "<i4", FillValue: 0,
	})
	require.NoError(t, err)

	require.NoError(t, arr.WriteRegion(ctx, encodeInt32LE([]int32{1, 2, 3}), []int{3}, []int{0}))
	require.NoError(t, arr.WriteRegion(ctx, encodeInt32LE([]int32{4, 5, 6}), []int{3}, []int{3}))

	out, err := arr.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, decodeInt32LE(out))
}

// Testable property: partial edge chunks never expose out-of-shape
// padding. shape[0]=7 with chunks[0]=3 leaves a 1-element final chunk.
func TestPartialEdgeChunk(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{
		Shape: []int{7}, Chunks: []int{3}, DType: "<i4", FillValue: -1,
	})
	require.NoError(t, err)

	require.NoError(t, arr.WriteRegion(ctx, encodeInt32LE([]int32{9}), []int{1}, []int{6}))

	out, err := arr.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int32{-1, -1, -1, -1, -1, -1, 9}, decodeInt32LE(out))
}

// Testable property: byte order — an array written big-endian reads back
// identical values regardless of host endianness, because the engine never
// converts to host-native representation.
func TestByteOrderRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{
		Shape: []int{4}, Chunks: []int{4}, DType: ">i4", FillValue: 0,
	})
	require.NoError(t, err)

	buf := make([]byte, 16)
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint32(buf[i*4:], uint32(i*10))
	}
	require.NoError(t, arr.WriteRegion(ctx, buf, []int{4}, []int{0}))

	out, err := arr.ReadAll(ctx)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Equal(t, uint32(i*10), binary.BigEndian.Uint32(out[i*4:]))
	}
}

// Write/read round trip across dtypes, matching the testable property in
// spec §8.
func TestWriteReadRoundTripDtypes(t *testing.T) {
	for _, dtype := range []string{"<i1", "<u1", "<i2", "<u2", "<i4", "<u4", "<i8", "<u8", "<f4", "<f8"} {
		t.Run(dtype, func(t *testing.T) {
			ctx := context.Background()
			store := fileStoreT(t)

			arr, err := Create(ctx, store, Config{
				Shape: []int{8}, Chunks: []int{4}, DType: dtype, FillValue: 0,
			})
			require.NoError(t, err)

			dt := arr.DType()
			elemSize := dt.ElemSize()
			buf := make([]byte, 8*elemSize)
			for i := 0; i < 8; i++ {
				elem := dt.EncodeScalar(float64(i))
				copy(buf[i*elemSize:], elem)
			}

			require.NoError(t, arr.WriteRegion(ctx, buf, []int{8}, []int{0}))
			out, err := arr.ReadAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, buf, out)
		})
	}
}

func TestOutOfRangeRejected(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{Shape: []int{4}, Chunks: []int{2}, DType: "<i4"})
	require.NoError(t, err)

	_, err = arr.ReadRegion(ctx, []int{2}, []int{3})
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestBufferMismatchRejected(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{Shape: []int{4}, Chunks: []int{2}, DType: "<i4"})
	require.NoError(t, err)

	err = arr.WriteRegion(ctx, make([]byte, 3), []int{2}, []int{0})
	require.ErrorIs(t, err, ErrBufferMismatch)
}

func TestCreateDeletesStaleChunks(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{Shape: []int{4}, Chunks: []int{2}, DType: "<i4"})
	require.NoError(t, err)
	require.NoError(t, arr.WriteRegion(ctx, encodeInt32LE([]int32{1, 2}), []int{2}, []int{0}))

	ok, err := store.Exists(ctx, "0")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = Create(ctx, store, Config{Shape: []int{4}, Chunks: []int{2}, DType: "<i4"})
	require.NoError(t, err)

	ok, err = store.Exists(ctx, "0")
	require.NoError(t, err)
	assert.False(t, ok, "Create must clear stale chunks from a prior array")
}

func TestWriteFillConvenience(t *testing.T) {
	ctx := context.Background()
	store := fileStoreT(t)

	arr, err := Create(ctx, store, Config{Shape: []int{4, 4}, Chunks: []int{2, 2}, DType: "<f4"})
	require.NoError(t, err)

	require.NoError(t, arr.WriteFillAll(ctx, 7))
	out, err := arr.ReadAll(ctx)
	require.NoError(t, err)
	for _, v := range decodeFloat32LE(out) {
		assert.Equal(t, float32(7), v)
	}

	require.NoError(t, arr.WriteFill(ctx, 0, []int{2, 2}, []int{1, 1}))
	out, err = arr.ReadAll(ctx)
	require.NoError(t, err)
	decoded := decodeFloat32LE(out)
	assert.Equal(t, float32(7), decoded[0])
	assert.Equal(t, float32(0), decoded[5])
}

func TestOpenMemStore(t *testing.T) {
	ctx := context.Background()
	store := openBlobStoreT(t, "mem://")

	arr, err := Create(ctx, store, Config{Shape: []int{3}, Chunks: []int{3}, DType: "<i4", FillValue: 5})
	require.NoError(t, err)
	out, err := arr.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int32{5, 5, 5}, decodeInt32LE(out))

	reopened, err := Open(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, reopened.Shape())
}
