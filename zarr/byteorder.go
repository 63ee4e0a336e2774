package zarr

import (
	"encoding/binary"
	"fmt"
)

// ByteOrder is the on-disk byte order for multi-byte elements (spec §3,
// "byte_order"). It is independent of the host machine's endianness: the
// engine never converts to or from host-native representation, it only
// ever produces and consumes bytes in the array's declared order.
type ByteOrder byte

const (
	LittleEndian ByteOrder = '<'
	BigEndian    ByteOrder = '>'
)

func (bo ByteOrder) String() string {
	switch bo {
	case LittleEndian:
		return "little"
	case BigEndian:
		return "big"
	default:
		return fmt.Sprintf("ByteOrder(%q)", byte(bo))
	}
}

// binary returns the stdlib encoding/binary.ByteOrder matching bo.
func (bo ByteOrder) binary() binary.ByteOrder {
	if bo == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func parseByteOrder(c byte) (ByteOrder, error) {
	switch ByteOrder(c) {
	case LittleEndian, BigEndian:
		return ByteOrder(c), nil
	default:
		return 0, fmt.Errorf("%w: unsupported byte order %q", ErrOpenFailed, c)
	}
}
