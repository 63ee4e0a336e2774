package zarr

// strides computes C-order (row-major) strides, in elements, for shape.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

// touchedChunks enumerates, in row-major order, the chunk index tuples
// whose span intersects [regionOffset, regionOffset+regionShape) (spec
// §4.3.A). minChunk/maxChunk bound the search per axis so the walk never
// visits a chunk outside the region.
func touchedChunks(chunks, regionOffset, regionShape []int) [][]int {
	r := len(regionOffset)
	minChunk := make([]int, r)
	maxChunk := make([]int, r)
	for i := 0; i < r; i++ {
		minChunk[i] = regionOffset[i] / chunks[i]
		maxChunk[i] = (regionOffset[i] + regionShape[i] - 1) / chunks[i]
	}

	var out [][]int
	cur := make([]int, r)
	var walk func(dim int)
	walk = func(dim int) {
		if dim == r {
			idx := make([]int, r)
			copy(idx, cur)
			out = append(out, idx)
			return
		}
		for i := minChunk[dim]; i <= maxChunk[dim]; i++ {
			cur[dim] = i
			walk(dim + 1)
		}
	}
	walk(0)
	return out
}

// chunkWindow computes the per-chunk copy window for chunk index tuple idx
// against region (regionOffset, regionShape) (spec §4.3.B, §4.3.D). shape is
// the array's logical shape, used to clip partial edge chunks so padding
// beyond shape[k] is never part of the copy (spec "Partial edge chunks").
//
// It returns the shape of the intersection to copy, the offset of that
// intersection within the chunk's own buffer, and its offset within the
// caller's region buffer. ok is false if the chunk does not actually
// intersect the region (not expected given touchedChunks, but checked for
// safety).
func chunkWindow(idx, chunks, shape, regionOffset, regionShape []int) (copyShape, chunkOffset, regionWindowOffset []int, ok bool) {
	r := len(idx)
	copyShape = make([]int, r)
	chunkOffset = make([]int, r)
	regionWindowOffset = make([]int, r)

	for k := 0; k < r; k++ {
		chunkStart := idx[k] * chunks[k]
		chunkEnd := chunkStart + chunks[k]
		if chunkEnd > shape[k] {
			chunkEnd = shape[k]
		}

		reqStart := regionOffset[k]
		reqEnd := regionOffset[k] + regionShape[k]

		intersectStart := max(chunkStart, reqStart)
		intersectEnd := min(chunkEnd, reqEnd)
		if intersectStart >= intersectEnd {
			return nil, nil, nil, false
		}

		copyShape[k] = intersectEnd - intersectStart
		chunkOffset[k] = intersectStart - chunkStart
		regionWindowOffset[k] = intersectStart - reqStart
	}
	return copyShape, chunkOffset, regionWindowOffset, true
}

// isFastPath reports whether the call's region, as a whole, exactly covers
// one chunk with no offset on either side (spec §4.3.C): region_shape ==
// chunks and anchor == 0. This must be checked against the region's own
// shape, not merely the per-chunk intersection — a multi-chunk write can
// have an individual chunk's intersection equal chunks[] at zero offset
// while the caller's buffer as a whole spans several chunks, in which case
// bypassing decode/merge would read or write the wrong bytes. When true,
// only one chunk is ever touched, so C5 may bypass decode/merge entirely.
func isFastPath(regionShape, chunks, chunkOffset, regionWindowOffset []int) bool {
	for k := range regionShape {
		if regionShape[k] != chunks[k] || chunkOffset[k] != 0 || regionWindowOffset[k] != 0 {
			return false
		}
	}
	return true
}

// copyNDBytes performs the R-dimensional memcpy between src and dst (spec
// §4.3.D): the inner dimension copies contiguously, outer dimensions
// advance by the byte stride implied by the element size and the buffers'
// own strides.
func copyNDBytes(
	dst []byte, dstShape, dstOffset []int,
	src []byte, srcShape, srcOffset []int,
	copyShape []int, elemSize int,
) {
	r := len(copyShape)
	if r == 0 {
		copy(dst[:elemSize], src[:elemSize])
		return
	}

	dstStrides := strides(dstShape)
	srcStrides := strides(srcShape)

	startDst := 0
	startSrc := 0
	for i := 0; i < r; i++ {
		startDst += dstOffset[i] * dstStrides[i]
		startSrc += srcOffset[i] * srcStrides[i]
	}

	var iterate func(dim, dstIdx, srcIdx int)
	iterate = func(dim, dstIdx, srcIdx int) {
		if dim == r-1 {
			n := copyShape[dim]
			if dstStrides[dim] == 1 && srcStrides[dim] == 1 {
				byteLen := n * elemSize
				dstStart := dstIdx * elemSize
				srcStart := srcIdx * elemSize
				copy(dst[dstStart:dstStart+byteLen], src[srcStart:srcStart+byteLen])
				return
			}
			for i := 0; i < n; i++ {
				dstStart := (dstIdx + i*dstStrides[dim]) * elemSize
				srcStart := (srcIdx + i*srcStrides[dim]) * elemSize
				copy(dst[dstStart:dstStart+elemSize], src[srcStart:srcStart+elemSize])
			}
			return
		}
		for i := 0; i < copyShape[dim]; i++ {
			iterate(dim+1, dstIdx+i*dstStrides[dim], srcIdx+i*srcStrides[dim])
		}
	}
	iterate(0, startDst, startSrc)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
