package zarr

import (
	"fmt"
	"math"
)

// Kind is the tagged enumeration of primitive numeric kinds the store
// understands (spec §3 "dtype", design note §9 "Dtype dispatch"). Each
// variant fixes its element size in bytes and knows how to encode a fill
// scalar; the codec, geometry and array engine are generic over element
// size in bytes and never switch on Kind. Only the Dataset batching layer
// switches on Kind.
type Kind byte

const (
	Int8 Kind = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

// DType pairs a numeric Kind with the on-disk ByteOrder used to encode it.
type DType struct {
	Kind      Kind
	ByteOrder ByteOrder
}

// ElemSize returns the element size in bytes for dt.
func (dt DType) ElemSize() int {
	switch dt.Kind {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// String renders dt back into the numpy-style typestr used by the header
// (e.g. "<f4", ">i2"), the inverse of ParseDType.
func (dt DType) String() string {
	return fmt.Sprintf("%c%s", byte(dt.ByteOrder), dt.code())
}

func (dt DType) code() string {
	switch dt.Kind {
	case Int8:
		return "i1"
	case Uint8:
		return "u1"
	case Int16:
		return "i2"
	case Uint16:
		return "u2"
	case Int32:
		return "i4"
	case Uint32:
		return "u4"
	case Int64:
		return "i8"
	case Uint64:
		return "u8"
	case Float32:
		return "f4"
	case Float64:
		return "f8"
	default:
		return "?"
	}
}

// ParseDType parses a numpy-style typestr ("<f4", ">i2", ...) into a DType.
// The leading character fixes byte order ('<' little, '>' big); the
// remaining characters are a one-letter kind code ('i','u','f') followed by
// the element byte size.
func ParseDType(s string) (DType, error) {
	if len(s) < 3 {
		return DType{}, fmt.Errorf("%w: invalid dtype %q", ErrOpenFailed, s)
	}

	order, err := parseByteOrder(s[0])
	if err != nil {
		return DType{}, err
	}

	kind, err := parseKind(s[1], s[2:])
	if err != nil {
		return DType{}, err
	}

	return DType{Kind: kind, ByteOrder: order}, nil
}

func parseKind(letter byte, size string) (Kind, error) {
	switch letter {
	case 'i':
		switch size {
		case "1":
			return Int8, nil
		case "2":
			return Int16, nil
		case "4":
			return Int32, nil
		case "8":
			return Int64, nil
		}
	case 'u':
		switch size {
		case "1":
			return Uint8, nil
		case "2":
			return Uint16, nil
		case "4":
			return Uint32, nil
		case "8":
			return Uint64, nil
		}
	case 'f':
		switch size {
		case "4":
			return Float32, nil
		case "8":
			return Float64, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported dtype kind %q size %q", ErrOpenFailed, letter, size)
}

// EncodeScalar encodes v (interpreted per dt.Kind) into a freshly allocated
// ElemSize()-byte buffer using dt.ByteOrder. Used both to materialize the
// fill element for missing chunks (spec I4) and for the write(scalar)
// convenience form (spec §4.6.5).
func (dt DType) EncodeScalar(v float64) []byte {
	buf := make([]byte, dt.ElemSize())
	bo := dt.ByteOrder.binary()
	switch dt.Kind {
	case Int8:
		buf[0] = byte(int8(v))
	case Uint8:
		buf[0] = byte(uint8(v))
	case Int16:
		bo.PutUint16(buf, uint16(int16(v)))
	case Uint16:
		bo.PutUint16(buf, uint16(v))
	case Int32:
		bo.PutUint32(buf, uint32(int32(v)))
	case Uint32:
		bo.PutUint32(buf, uint32(v))
	case Int64:
		bo.PutUint64(buf, uint64(int64(v)))
	case Uint64:
		bo.PutUint64(buf, uint64(v))
	case Float32:
		bo.PutUint32(buf, math.Float32bits(float32(v)))
	case Float64:
		bo.PutUint64(buf, math.Float64bits(v))
	}
	return buf
}

// DecodeScalar decodes a single ElemSize()-byte element from buf as a
// float64, the inverse of EncodeScalar. Used for test assertions and the
// batched-read convenience layer.
func (dt DType) DecodeScalar(buf []byte) float64 {
	bo := dt.ByteOrder.binary()
	switch dt.Kind {
	case Int8:
		return float64(int8(buf[0]))
	case Uint8:
		return float64(uint8(buf[0]))
	case Int16:
		return float64(int16(bo.Uint16(buf)))
	case Uint16:
		return float64(bo.Uint16(buf))
	case Int32:
		return float64(int32(bo.Uint32(buf)))
	case Uint32:
		return float64(bo.Uint32(buf))
	case Int64:
		return float64(int64(bo.Uint64(buf)))
	case Uint64:
		return float64(bo.Uint64(buf))
	case Float32:
		return float64(math.Float32frombits(bo.Uint32(buf)))
	case Float64:
		return math.Float64frombits(bo.Uint64(buf))
	default:
		return 0
	}
}

// FillChunk fills every element of buf (a buffer of exactly n elements'
// worth of bytes) with the encoded fill scalar.
func (dt DType) FillChunk(buf []byte, fill float64) {
	elem := dt.EncodeScalar(fill)
	size := dt.ElemSize()
	for off := 0; off+size <= len(buf); off += size {
		copy(buf[off:off+size], elem)
	}
}
