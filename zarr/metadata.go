package zarr

import (
	"encoding/json"
	"fmt"
	"io"
)

// layout is the tri-state chunk-key layout hint (spec §3 "nested").
type layout byte

const (
	layoutAbsent layout = iota
	layoutFlat
	layoutNested
)

// Metadata is the parsed/serialized .zarray header (spec §4.5, C6). Field
// names and JSON tags mirror the v2-compatible layout in spec §6.
type Metadata struct {
	ZarrFormat int               `json:"zarr_format"`
	Shape      []int             `json:"shape"`
	Chunks     []int             `json:"chunks"`
	DType      string            `json:"dtype"`
	FillValue  *float64          `json:"fill_value"`
	Compressor *CompressorConfig `json:"compressor"`
	Order      string            `json:"order"`
	Filters    json.RawMessage   `json:"filters,omitempty"`

	// DimensionSeparator is the optional layout hint ("/" or "."). Absent
	// (nil) means the array predates the hint and open-time probing (spec
	// §4.6.1 step 2) must determine the layout.
	DimensionSeparator *string `json:"dimension_separator,omitempty"`
}

// LoadMetadata reads and parses a .zarray document from r.
func LoadMetadata(r io.Reader) (*Metadata, error) {
	var meta Metadata
	if err := json.NewDecoder(r).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %v", ErrOpenFailed, err)
	}
	if err := meta.validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// validate checks the structural invariants a header must satisfy before
// the engine can trust it (spec I1, I5's "shape/chunks fixed at creation").
func (m *Metadata) validate() error {
	if m.ZarrFormat != 2 {
		return fmt.Errorf("%w: unsupported zarr_format %d, expected 2", ErrOpenFailed, m.ZarrFormat)
	}
	if len(m.Shape) == 0 {
		return fmt.Errorf("%w: rank must be >= 1", ErrOpenFailed)
	}
	if len(m.Shape) != len(m.Chunks) {
		return fmt.Errorf("%w: shape rank %d != chunks rank %d", ErrOpenFailed, len(m.Shape), len(m.Chunks))
	}
	for i, s := range m.Shape {
		if s <= 0 {
			return fmt.Errorf("%w: shape[%d] = %d must be positive", ErrOpenFailed, i, s)
		}
		if m.Chunks[i] <= 0 || m.Chunks[i] > s {
			return fmt.Errorf("%w: chunks[%d] = %d must be in (0, shape[%d]=%d]", ErrOpenFailed, i, m.Chunks[i], i, s)
		}
	}
	if _, err := ParseDType(m.DType); err != nil {
		return err
	}
	if m.Order != "" && m.Order != "C" {
		return fmt.Errorf("%w: unsupported order %q, only \"C\" is supported", ErrOpenFailed, m.Order)
	}
	return nil
}

func (m *Metadata) rank() int { return len(m.Shape) }

func (m *Metadata) fillValue() float64 {
	if m.FillValue == nil {
		return 0
	}
	return *m.FillValue
}

// nestedLayout interprets DimensionSeparator as the tri-state layout hint.
func (m *Metadata) nestedLayout() layout {
	if m.DimensionSeparator == nil {
		return layoutAbsent
	}
	switch *m.DimensionSeparator {
	case "/":
		return layoutNested
	case ".":
		return layoutFlat
	default:
		return layoutAbsent
	}
}

func (m *Metadata) setNestedLayout(n bool) {
	sep := "."
	if n {
		sep = "/"
	}
	m.DimensionSeparator = &sep
}

// gridShape returns, for each axis, the number of chunks covering it:
// ceil(shape[k] / chunks[k]).
func (m *Metadata) gridShape() []int {
	grid := make([]int, len(m.Shape))
	for i := range m.Shape {
		grid[i] = (m.Shape[i] + m.Chunks[i] - 1) / m.Chunks[i]
	}
	return grid
}

func (m *Metadata) chunkVolume() int {
	n := 1
	for _, c := range m.Chunks {
		n *= c
	}
	return n
}

// encodeJSON serializes m as the canonical .zarray document.
func (m *Metadata) encodeJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
