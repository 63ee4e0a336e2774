package zarr

import (
	"strconv"
	"strings"
)

// chunkKey formats a chunk index tuple into the store key used for that
// chunk (spec §3 "Chunk identity", §4.4 C4). nested selects the separator:
// "/" between dimension indices when true, "." when false. Decimal digits
// are unpadded, matching the teacher's ChunkKey.
func chunkKey(indices []int, nested bool) string {
	sep := "."
	if nested {
		sep = "/"
	}

	if len(indices) == 1 {
		return strconv.Itoa(indices[0])
	}

	var sb strings.Builder
	for i, idx := range indices {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}
