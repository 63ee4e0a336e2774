package zarr

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	blosc "github.com/mrjoshuak/go-blosc"
	"github.com/klauspost/compress/zstd"
)

// Compressor is the codec plug-in capability (design note §9): encode turns
// a raw element buffer into a compressed blob, decode is its inverse. The
// engine treats compressors as opaque and never inspects their output.
type Compressor interface {
	ID() string
	Encode(raw []byte) ([]byte, error)
	Decode(blob []byte) ([]byte, error)
}

// CompressorConfig is the header's compressor parameter bag (spec §4.5,
// §6). Only id, cname, clevel and shuffle are kept: any other parameter in
// a header is dropped when the header is decoded and is not written back.
type CompressorConfig struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// identityCompressor is the "none" compressor: encode/decode return their
// input slice unchanged.
type identityCompressor struct{}

func (identityCompressor) ID() string                    { return "none" }
func (identityCompressor) Encode(raw []byte) ([]byte, error)  { return raw, nil }
func (identityCompressor) Decode(blob []byte) ([]byte, error) { return blob, nil }

// zlibCompressor wraps the stdlib compress/zlib package, the same codec the
// teacher uses for its "zlib"/"gzip" compressor id in reader.go.
type zlibCompressor struct{ level int }

func (zlibCompressor) ID() string { return "zlib" }

func (c zlibCompressor) Encode(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	level := c.level
	if level == 0 {
		level = zlib.DefaultCompression
	}
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCompressor) Decode(blob []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// zstdCompressor wraps github.com/klauspost/compress/zstd, the codec the
// teacher uses for its "zstd" compressor id in zarr/dataset.go.
type zstdCompressor struct{ level int }

func (zstdCompressor) ID() string { return "zstd" }

func (c zstdCompressor) Encode(raw []byte) ([]byte, error) {
	opts := []zstd.EOption{}
	if c.level > 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.level)))
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func (zstdCompressor) Decode(blob []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(blob, nil)
}

// bloscCompressor wraps github.com/mrjoshuak/go-blosc, the codec the
// teacher uses for its "blosc" compressor id in reader.go.
type bloscCompressor struct {
	cname   string
	clevel  int
	shuffle int
}

func (bloscCompressor) ID() string { return "blosc" }

func (c bloscCompressor) Encode(raw []byte) ([]byte, error) {
	level := c.clevel
	if level == 0 {
		level = 5
	}
	return blosc.Compress(raw, bloscCodec(c.cname), level, blosc.Shuffle(c.shuffle), 1)
}

// bloscCodec maps the header's cname string (spec §4.5) to the go-blosc
// Codec enum, defaulting to LZ4 as go-blosc itself does.
func bloscCodec(cname string) blosc.Codec {
	switch cname {
	case "lz4hc":
		return blosc.LZ4HC
	case "snappy":
		return blosc.Snappy
	case "zlib":
		return blosc.ZLIB
	case "zstd":
		return blosc.ZSTD
	default:
		return blosc.LZ4
	}
}

func (bloscCompressor) Decode(blob []byte) ([]byte, error) {
	return blosc.Decompress(blob)
}

// newCompressor looks up a Compressor by the header's CompressorConfig. A
// nil cfg selects the identity compressor. Unknown ids fail with
// ErrOpenFailed, per design note §9 "Registry lookup by codec id string at
// open time; unknown id ⇒ OpenFailed".
func newCompressor(cfg *CompressorConfig) (Compressor, error) {
	if cfg == nil {
		return identityCompressor{}, nil
	}
	switch cfg.ID {
	case "none", "":
		return identityCompressor{}, nil
	case "zlib", "gzip":
		return zlibCompressor{level: cfg.Clevel}, nil
	case "zstd":
		return zstdCompressor{level: cfg.Clevel}, nil
	case "blosc":
		return bloscCompressor{cname: cfg.Cname, clevel: cfg.Clevel, shuffle: cfg.Shuffle}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported compressor %q", ErrOpenFailed, cfg.ID)
	}
}
