// Package odc implements the ODC observation frame format: a sequence of
// independent, self-describing frames, each carrying its own column schema
// and a compressed columnar payload. The package provides the frame encoder
// with row-splitting, a lazy forward scanner with column projection, and an
// aggregating reader that merges runs of schema-compatible frames.
package odc

import (
	"math"
	"strings"

	"github.com/thebaptiste/pyodc/pkg/errors"
)

// DataType identifies the binary encoding of one column. The numeric values
// are wire codes carried in every frame header and must never change.
type DataType uint8

const (
	// Ignore marks a column that carries no payload bytes.
	Ignore DataType = 0
	// Integer is a little-endian int32 cell.
	Integer DataType = 1
	// Real is a little-endian IEEE-754 float32 cell. Encoding a wider value
	// into Real intentionally discards precision.
	Real DataType = 2
	// String is a fixed-width, zero-padded byte cell. The width is declared
	// per column in the frame header.
	String DataType = 3
	// Bitfield is a little-endian uint32 flag word whose named sub-field
	// layout is declared per column in the frame header.
	Bitfield DataType = 4
	// Double is a little-endian IEEE-754 float64 cell.
	Double DataType = 5
)

// Missing-value sentinels. One fixed bit pattern per datatype; they are part
// of the format and not configurable.
const (
	// MissingInteger is the reserved integer missing value.
	MissingInteger int32 = math.MaxInt32
	// missingRealBits is a reserved quiet-NaN payload for Real cells.
	missingRealBits uint32 = 0x7FC00001
	// missingDoubleBits is a reserved quiet-NaN payload for Double cells.
	missingDoubleBits uint64 = 0x7FF8000000000001
	// missingBitfield is the reserved all-ones flag word.
	missingBitfield uint32 = 0xFFFFFFFF
)

func (dt DataType) String() string {
	switch dt {
	case Ignore:
		return "IGNORE"
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case String:
		return "STRING"
	case Bitfield:
		return "BITFIELD"
	case Double:
		return "DOUBLE"
	default:
		return "UNKNOWN"
	}
}

// ParseDataType parses a datatype name, case-insensitively.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToUpper(s) {
	case "IGNORE":
		return Ignore, nil
	case "INTEGER":
		return Integer, nil
	case "REAL":
		return Real, nil
	case "STRING":
		return String, nil
	case "BITFIELD":
		return Bitfield, nil
	case "DOUBLE":
		return Double, nil
	default:
		return 0, errors.Newf(errors.ErrorTypeConfig, "unknown datatype %q", s)
	}
}

// validDataType reports whether a wire code names a known datatype.
func validDataType(code uint8) bool {
	return code <= uint8(Double)
}
