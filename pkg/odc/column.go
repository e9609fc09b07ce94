package odc

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/thebaptiste/pyodc/pkg/columnar"
	"github.com/thebaptiste/pyodc/pkg/errors"
)

// columnCodec holds the encode and decode halves for one datatype. Adding a
// datatype means adding one table entry and two functions; callers dispatch
// through the table and never change.
type columnCodec struct {
	encode func(buf *bytes.Buffer, s columnar.Series, desc ColumnDesc) error
	decode func(cells []byte, rows int, desc ColumnDesc) (columnar.Series, error)
}

var columnCodecs = map[DataType]columnCodec{
	Ignore:   {encodeIgnore, decodeIgnore},
	Integer:  {encodeInteger, decodeInteger},
	Real:     {encodeReal, decodeReal},
	String:   {encodeString, decodeString},
	Bitfield: {encodeBitfield, decodeBitfield},
	Double:   {encodeDouble, decodeDouble},
}

// encodeColumn appends the fixed-width cells of one column to buf.
func encodeColumn(buf *bytes.Buffer, s columnar.Series, desc ColumnDesc) error {
	codec, ok := columnCodecs[desc.Type]
	if !ok {
		return errors.Newf(errors.ErrorTypeInternal, "no codec for datatype %s", desc.Type).WithColumn(desc.Name)
	}
	return codec.encode(buf, s, desc)
}

// decodeColumn turns rows fixed-width cells back into a typed series.
func decodeColumn(cells []byte, rows int, desc ColumnDesc) (columnar.Series, error) {
	codec, ok := columnCodecs[desc.Type]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeInternal, "no codec for datatype %s", desc.Type).WithColumn(desc.Name)
	}
	if len(cells) != rows*desc.CellWidth() {
		return nil, errors.Newf(errors.ErrorTypeFormat,
			"column %q has %d payload bytes, want %d", desc.Name, len(cells), rows*desc.CellWidth()).
			WithColumn(desc.Name)
	}
	return codec.decode(cells, rows, desc)
}

// Value extraction helpers. Each translates one row of an arbitrary input
// series into the target domain, reporting a type error when the source
// cannot represent the declared datatype.

func intAt(s columnar.Series, i int, desc ColumnDesc) (int64, bool, error) {
	if s.IsNull(i) {
		return 0, true, nil
	}
	switch src := s.(type) {
	case *columnar.IntSeries:
		return src.Int(i), false, nil
	case *columnar.FloatSeries:
		v := src.Float(i)
		if math.IsNaN(v) {
			return 0, true, nil
		}
		if math.Trunc(v) != v {
			return 0, false, errors.Newf(errors.ErrorTypeType,
				"value %v is not integral", v).WithColumn(desc.Name)
		}
		return int64(v), false, nil
	default:
		return 0, false, errors.Newf(errors.ErrorTypeType,
			"cannot encode %T as %s", s, desc.Type).WithColumn(desc.Name)
	}
}

func floatAt(s columnar.Series, i int, desc ColumnDesc) (float64, bool, error) {
	if s.IsNull(i) {
		return 0, true, nil
	}
	switch src := s.(type) {
	case *columnar.FloatSeries:
		v := src.Float(i)
		// NaN and the missing sentinel share a bit-pattern family on the
		// wire, so NaN input is missing by definition.
		if math.IsNaN(v) {
			return 0, true, nil
		}
		return v, false, nil
	case *columnar.IntSeries:
		return float64(src.Int(i)), false, nil
	default:
		return 0, false, errors.Newf(errors.ErrorTypeType,
			"cannot encode %T as %s", s, desc.Type).WithColumn(desc.Name)
	}
}

// Ignore

func encodeIgnore(*bytes.Buffer, columnar.Series, ColumnDesc) error { return nil }

func decodeIgnore(_ []byte, rows int, desc ColumnDesc) (columnar.Series, error) {
	return columnar.NewNullSeries(desc.Name, rows), nil
}

// Integer

func encodeInteger(buf *bytes.Buffer, s columnar.Series, desc ColumnDesc) error {
	var cell [4]byte
	for i := 0; i < s.Len(); i++ {
		v, null, err := intAt(s, i, desc)
		if err != nil {
			return err
		}
		switch {
		case null:
			v = int64(MissingInteger)
		case v < math.MinInt32 || v >= math.MaxInt32:
			// MaxInt32 itself is the sentinel and cannot carry a value.
			return errors.Newf(errors.ErrorTypeType,
				"value %d does not fit INTEGER", v).WithColumn(desc.Name)
		}
		binary.LittleEndian.PutUint32(cell[:], uint32(int32(v)))
		buf.Write(cell[:])
	}
	return nil
}

func decodeInteger(cells []byte, rows int, desc ColumnDesc) (columnar.Series, error) {
	values := make([]int64, rows)
	var null []bool
	for i := 0; i < rows; i++ {
		v := int32(binary.LittleEndian.Uint32(cells[i*4:]))
		if v == MissingInteger {
			if null == nil {
				null = make([]bool, rows)
			}
			null[i] = true
			continue
		}
		values[i] = int64(v)
	}
	return columnar.NewIntSeries(desc.Name, values, null)
}

// Real

func encodeReal(buf *bytes.Buffer, s columnar.Series, desc ColumnDesc) error {
	var cell [4]byte
	for i := 0; i < s.Len(); i++ {
		v, null, err := floatAt(s, i, desc)
		if err != nil {
			return err
		}
		bits := missingRealBits
		if !null {
			if !math.IsInf(v, 0) && math.Abs(v) > math.MaxFloat32 {
				return errors.Newf(errors.ErrorTypeType,
					"value %v exceeds REAL range", v).WithColumn(desc.Name)
			}
			bits = math.Float32bits(float32(v))
		}
		binary.LittleEndian.PutUint32(cell[:], bits)
		buf.Write(cell[:])
	}
	return nil
}

func decodeReal(cells []byte, rows int, desc ColumnDesc) (columnar.Series, error) {
	values := make([]float64, rows)
	var null []bool
	for i := 0; i < rows; i++ {
		bits := binary.LittleEndian.Uint32(cells[i*4:])
		if bits == missingRealBits {
			if null == nil {
				null = make([]bool, rows)
			}
			null[i] = true
			continue
		}
		values[i] = float64(math.Float32frombits(bits))
	}
	return columnar.NewFloatSeries(desc.Name, values, null)
}

// Double

func encodeDouble(buf *bytes.Buffer, s columnar.Series, desc ColumnDesc) error {
	var cell [8]byte
	for i := 0; i < s.Len(); i++ {
		v, null, err := floatAt(s, i, desc)
		if err != nil {
			return err
		}
		bits := missingDoubleBits
		if !null {
			bits = math.Float64bits(v)
		}
		binary.LittleEndian.PutUint64(cell[:], bits)
		buf.Write(cell[:])
	}
	return nil
}

func decodeDouble(cells []byte, rows int, desc ColumnDesc) (columnar.Series, error) {
	values := make([]float64, rows)
	var null []bool
	for i := 0; i < rows; i++ {
		bits := binary.LittleEndian.Uint64(cells[i*8:])
		if bits == missingDoubleBits {
			if null == nil {
				null = make([]bool, rows)
			}
			null[i] = true
			continue
		}
		values[i] = math.Float64frombits(bits)
	}
	return columnar.NewFloatSeries(desc.Name, values, null)
}

// String

func encodeString(buf *bytes.Buffer, s columnar.Series, desc ColumnDesc) error {
	width := int(desc.Width)
	pad := make([]byte, width)
	for i := 0; i < s.Len(); i++ {
		if s.IsNull(i) {
			buf.Write(pad)
			continue
		}
		src, ok := s.(*columnar.StringSeries)
		if !ok {
			return errors.Newf(errors.ErrorTypeType,
				"cannot encode %T as STRING", s).WithColumn(desc.Name)
		}
		v := src.String(i)
		if len(v) > width {
			return errors.Newf(errors.ErrorTypeType,
				"value %q exceeds declared width %d", v, width).WithColumn(desc.Name)
		}
		buf.WriteString(v)
		buf.Write(pad[:width-len(v)])
	}
	return nil
}

func decodeString(cells []byte, rows int, desc ColumnDesc) (columnar.Series, error) {
	width := int(desc.Width)
	values := make([]string, rows)
	for i := 0; i < rows; i++ {
		cell := cells[i*width : (i+1)*width]
		values[i] = string(bytes.TrimRight(cell, "\x00"))
	}
	// Empty cells are the STRING missing sentinel; the constructor masks them.
	return columnar.NewStringSeries(desc.Name, values, nil)
}

// Bitfield

func encodeBitfield(buf *bytes.Buffer, s columnar.Series, desc ColumnDesc) error {
	var cell [4]byte
	for i := 0; i < s.Len(); i++ {
		word := missingBitfield
		if !s.IsNull(i) {
			src, ok := s.(*columnar.BitfieldSeries)
			if !ok {
				return errors.Newf(errors.ErrorTypeType,
					"cannot encode %T as BITFIELD", s).WithColumn(desc.Name)
			}
			word = src.Word(i)
			if word == missingBitfield {
				return errors.Newf(errors.ErrorTypeType,
					"flag word 0xFFFFFFFF is reserved for missing values").WithColumn(desc.Name)
			}
		}
		binary.LittleEndian.PutUint32(cell[:], word)
		buf.Write(cell[:])
	}
	return nil
}

func decodeBitfield(cells []byte, rows int, desc ColumnDesc) (columnar.Series, error) {
	values := make([]uint32, rows)
	var null []bool
	for i := 0; i < rows; i++ {
		word := binary.LittleEndian.Uint32(cells[i*4:])
		if word == missingBitfield {
			if null == nil {
				null = make([]bool, rows)
			}
			null[i] = true
			continue
		}
		values[i] = word
	}
	return columnar.NewBitfieldSeries(desc.Name, values, desc.Bits, null)
}
