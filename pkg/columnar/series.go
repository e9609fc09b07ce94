// Package columnar provides the in-memory columnar table model produced and
// consumed by the frame codec. A table is an ordered set of equally sized,
// null-aware typed series; the codec maps nulls to the format's per-datatype
// missing-value sentinels and back.
package columnar

import (
	"github.com/thebaptiste/pyodc/pkg/errors"
)

// Series is the base interface for all column types.
type Series interface {
	// Name returns the column name, unique within a table.
	Name() string
	// Len returns the number of rows.
	Len() int
	// IsNull reports whether the value at row i is missing.
	IsNull(i int) bool
	// Value returns the value at row i, or nil when missing.
	Value(i int) interface{}
	// Slice returns a view over rows [lo, hi).
	Slice(lo, hi int) Series
}

// normalizeMask validates an optional null mask against the row count and
// returns a mask aligned to it. A nil mask means no missing values.
func normalizeMask(n int, null []bool) ([]bool, *errors.Error) {
	if null == nil {
		return nil, nil
	}
	if len(null) != n {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"null mask length %d does not match %d values", len(null), n)
	}
	return null, nil
}

// IntSeries stores 64-bit integer values.
type IntSeries struct {
	name   string
	values []int64
	null   []bool
}

// NewIntSeries creates an integer series. The null mask is optional and, when
// present, must match the value count.
func NewIntSeries(name string, values []int64, null []bool) (*IntSeries, error) {
	mask, err := normalizeMask(len(values), null)
	if err != nil {
		return nil, err.WithColumn(name)
	}
	return &IntSeries{name: name, values: values, null: mask}, nil
}

func (s *IntSeries) Name() string { return s.name }
func (s *IntSeries) Len() int     { return len(s.values) }

func (s *IntSeries) IsNull(i int) bool {
	return s.null != nil && s.null[i]
}

func (s *IntSeries) Value(i int) interface{} {
	if s.IsNull(i) {
		return nil
	}
	return s.values[i]
}

// Int returns the raw value at row i; the result is unspecified for nulls.
func (s *IntSeries) Int(i int) int64 { return s.values[i] }

func (s *IntSeries) Slice(lo, hi int) Series {
	out := &IntSeries{name: s.name, values: s.values[lo:hi]}
	if s.null != nil {
		out.null = s.null[lo:hi]
	}
	return out
}

// FloatSeries stores 64-bit floating point values.
type FloatSeries struct {
	name   string
	values []float64
	null   []bool
}

// NewFloatSeries creates a floating point series.
func NewFloatSeries(name string, values []float64, null []bool) (*FloatSeries, error) {
	mask, err := normalizeMask(len(values), null)
	if err != nil {
		return nil, err.WithColumn(name)
	}
	return &FloatSeries{name: name, values: values, null: mask}, nil
}

func (s *FloatSeries) Name() string { return s.name }
func (s *FloatSeries) Len() int     { return len(s.values) }

func (s *FloatSeries) IsNull(i int) bool {
	return s.null != nil && s.null[i]
}

func (s *FloatSeries) Value(i int) interface{} {
	if s.IsNull(i) {
		return nil
	}
	return s.values[i]
}

// Float returns the raw value at row i; the result is unspecified for nulls.
func (s *FloatSeries) Float(i int) float64 { return s.values[i] }

func (s *FloatSeries) Slice(lo, hi int) Series {
	out := &FloatSeries{name: s.name, values: s.values[lo:hi]}
	if s.null != nil {
		out.null = s.null[lo:hi]
	}
	return out
}

// StringSeries stores string values. The format reserves the zero-length
// string as the missing marker, so an empty value and a null are the same
// thing; the constructor folds empty strings into the null mask.
type StringSeries struct {
	name   string
	values []string
	null   []bool
}

// NewStringSeries creates a string series.
func NewStringSeries(name string, values []string, null []bool) (*StringSeries, error) {
	mask, err := normalizeMask(len(values), null)
	if err != nil {
		return nil, err.WithColumn(name)
	}
	for i, v := range values {
		if v == "" {
			if mask == nil {
				mask = make([]bool, len(values))
			}
			mask[i] = true
		}
	}
	return &StringSeries{name: name, values: values, null: mask}, nil
}

func (s *StringSeries) Name() string { return s.name }
func (s *StringSeries) Len() int     { return len(s.values) }

func (s *StringSeries) IsNull(i int) bool {
	return s.null != nil && s.null[i]
}

func (s *StringSeries) Value(i int) interface{} {
	if s.IsNull(i) {
		return nil
	}
	return s.values[i]
}

// String returns the raw value at row i; the result is unspecified for nulls.
func (s *StringSeries) String(i int) string { return s.values[i] }

func (s *StringSeries) Slice(lo, hi int) Series {
	out := &StringSeries{name: s.name, values: s.values[lo:hi]}
	if s.null != nil {
		out.null = s.null[lo:hi]
	}
	return out
}

// BitfieldField describes one named sub-field packed into a bitfield word.
type BitfieldField struct {
	Name   string
	Offset uint8 // bit offset within the word, LSB first
	Size   uint8 // width in bits
}

// Extract returns the sub-field value from a packed word.
func (f BitfieldField) Extract(word uint32) uint32 {
	return (word >> f.Offset) & ((1 << f.Size) - 1)
}

// BitfieldSeries stores packed flag words. Multiple named sub-fields share
// one 32-bit word per row; the bit layout travels with the column schema.
type BitfieldSeries struct {
	name   string
	values []uint32
	fields []BitfieldField
	null   []bool
}

// NewBitfieldSeries creates a bitfield series with the given bit layout.
func NewBitfieldSeries(name string, values []uint32, fields []BitfieldField, null []bool) (*BitfieldSeries, error) {
	mask, err := normalizeMask(len(values), null)
	if err != nil {
		return nil, err.WithColumn(name)
	}
	used := 0
	for _, f := range fields {
		if f.Size == 0 || int(f.Offset)+int(f.Size) > 32 {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"bitfield sub-field %q does not fit a 32-bit word", f.Name).WithColumn(name)
		}
		used += int(f.Size)
	}
	if used > 32 {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"bitfield layout exceeds 32 bits").WithColumn(name)
	}
	return &BitfieldSeries{name: name, values: values, fields: fields, null: mask}, nil
}

func (s *BitfieldSeries) Name() string { return s.name }
func (s *BitfieldSeries) Len() int     { return len(s.values) }

func (s *BitfieldSeries) IsNull(i int) bool {
	return s.null != nil && s.null[i]
}

func (s *BitfieldSeries) Value(i int) interface{} {
	if s.IsNull(i) {
		return nil
	}
	return s.values[i]
}

// Word returns the packed word at row i; the result is unspecified for nulls.
func (s *BitfieldSeries) Word(i int) uint32 { return s.values[i] }

// Fields returns the bit layout table.
func (s *BitfieldSeries) Fields() []BitfieldField { return s.fields }

// Field extracts a named sub-field from row i.
func (s *BitfieldSeries) Field(i int, name string) (uint32, error) {
	for _, f := range s.fields {
		if f.Name == name {
			return f.Extract(s.values[i]), nil
		}
	}
	return 0, errors.Newf(errors.ErrorTypeKey, "unknown bitfield sub-field %q", name).WithColumn(s.name)
}

func (s *BitfieldSeries) Slice(lo, hi int) Series {
	out := &BitfieldSeries{name: s.name, values: s.values[lo:hi], fields: s.fields}
	if s.null != nil {
		out.null = s.null[lo:hi]
	}
	return out
}

// NullSeries is a typeless all-null column. It stands in for a projected
// column that is absent from a frame in contexts where absence is tolerated,
// and Concat widens it to whatever concrete type the column has elsewhere.
type NullSeries struct {
	name string
	rows int
}

// NewNullSeries creates an all-null column of the given length.
func NewNullSeries(name string, rows int) *NullSeries {
	return &NullSeries{name: name, rows: rows}
}

func (s *NullSeries) Name() string            { return s.name }
func (s *NullSeries) Len() int                { return s.rows }
func (s *NullSeries) IsNull(int) bool         { return true }
func (s *NullSeries) Value(int) interface{}   { return nil }
func (s *NullSeries) Slice(lo, hi int) Series { return &NullSeries{name: s.name, rows: hi - lo} }
