package odc

import (
	"io"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/thebaptiste/pyodc/pkg/columnar"
	"github.com/thebaptiste/pyodc/pkg/compression"
	"github.com/thebaptiste/pyodc/pkg/errors"
	"github.com/thebaptiste/pyodc/pkg/logger"
	"github.com/thebaptiste/pyodc/pkg/pool"
)

// DefaultRowsPerFrame is the maximum physical frame row count when
// EncodeOptions does not set one.
const DefaultRowsPerFrame = 10000

// EncodeOptions configures one Encode call. The zero value (or nil) means
// auto-selected datatypes, DefaultRowsPerFrame and snappy payload
// compression.
type EncodeOptions struct {
	// Types forces a datatype per column name, overriding auto-selection.
	// A name not present in the table is a key error.
	Types map[string]DataType
	// RowsPerFrame caps the rows of each physical frame. Zero means
	// DefaultRowsPerFrame; negative values are a config error.
	RowsPerFrame int
	// Compression selects the payload algorithm. Empty means snappy.
	Compression compression.Algorithm
}

func (o *EncodeOptions) normalized() (*EncodeOptions, error) {
	out := EncodeOptions{
		RowsPerFrame: DefaultRowsPerFrame,
		Compression:  compression.Snappy,
	}
	if o != nil {
		out.Types = o.Types
		if o.RowsPerFrame < 0 {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"rows per frame must be positive, got %d", o.RowsPerFrame)
		}
		if o.RowsPerFrame > 0 {
			out.RowsPerFrame = o.RowsPerFrame
		}
		if o.Compression != "" {
			out.Compression = o.Compression
		}
	}
	return &out, nil
}

// Encode writes the table to w as a sequence of self-contained frames of at
// most RowsPerFrame rows each. A zero-row table still produces exactly one
// zero-row frame so the schema survives. Repeated calls against one open
// writer append further frames.
func Encode(t *columnar.Table, w io.Writer, opts *EncodeOptions) error {
	opts, err := opts.normalized()
	if err != nil {
		return err
	}

	types, err := resolveTypes(t, opts.Types)
	if err != nil {
		return err
	}

	codecID, err := compression.CodecID(opts.Compression)
	if err != nil {
		return err
	}
	comp, err := compression.NewCompressor(&compression.Config{
		Algorithm: opts.Compression,
		Level:     compression.Default,
	})
	if err != nil {
		return err
	}

	rows := t.NumRows()
	for lo := 0; ; lo += opts.RowsPerFrame {
		hi := lo + opts.RowsPerFrame
		if hi > rows {
			hi = rows
		}
		if err := encodeFrame(t, lo, hi, types, codecID, comp, w); err != nil {
			return err
		}
		if hi >= rows {
			break
		}
	}
	return nil
}

// EncodeFile encodes the table into a new file at path.
func EncodeFile(t *columnar.Table, path string, opts *EncodeOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "create output file")
	}
	if err := Encode(t, f, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "close output file")
	}
	return nil
}

// encodeFrame emits one header+payload unit for the row range [lo, hi).
// Frames are independent; no state crosses this call.
func encodeFrame(t *columnar.Table, lo, hi int, types []DataType, codecID uint8,
	comp compression.Compressor, w io.Writer) error {

	frameRows := hi - lo
	descs := make([]ColumnDesc, 0, t.NumColumns())
	for i, s := range t.Columns() {
		descs = append(descs, buildDesc(s, types[i], lo, hi))
	}

	raw := pool.GetBuffer()
	defer pool.PutBuffer(raw)

	for i, s := range t.Columns() {
		part := s
		if frameRows != s.Len() {
			part = s.Slice(lo, hi)
		}
		if err := encodeColumn(raw, part, descs[i]); err != nil {
			return err
		}
	}

	payload := raw.Bytes()
	if len(payload) > 0 {
		compressed, err := comp.Compress(payload)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "compress frame payload")
		}
		payload = compressed
	}

	h := &frameHeader{
		codec:      codecID,
		columns:    descs,
		rows:       uint32(frameRows),
		rawLen:     uint32(raw.Len()),
		payloadLen: uint32(len(payload)),
	}
	if err := writeHeader(w, h); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "write frame payload")
	}

	logger.Debug("encoded frame",
		zap.Int("rows", frameRows),
		zap.Int("columns", len(descs)),
		zap.Uint32("raw_bytes", h.rawLen),
		zap.Uint32("payload_bytes", h.payloadLen))
	return nil
}

// buildDesc assembles the schema entry of one column for one frame. String
// widths depend on the frame's actual values and so vary frame to frame.
func buildDesc(s columnar.Series, dt DataType, lo, hi int) ColumnDesc {
	desc := ColumnDesc{Name: s.Name(), Type: dt}
	switch dt {
	case String:
		width := 1
		if src, ok := s.(*columnar.StringSeries); ok {
			for i := lo; i < hi; i++ {
				if !src.IsNull(i) && len(src.String(i)) > width {
					width = len(src.String(i))
				}
			}
		}
		desc.Width = uint16(width)
	case Bitfield:
		if src, ok := s.(*columnar.BitfieldSeries); ok {
			desc.Bits = src.Fields()
		}
	}
	return desc
}

// resolveTypes picks one datatype per column: the forced override when the
// caller supplied one, otherwise the inference heuristics. All validation
// happens here, before any payload byte is produced.
func resolveTypes(t *columnar.Table, forced map[string]DataType) ([]DataType, error) {
	names := make(map[string]bool, t.NumColumns())
	for _, name := range t.Names() {
		names[name] = true
	}
	for name := range forced {
		if !names[name] {
			return nil, errors.Newf(errors.ErrorTypeKey,
				"forced type for unknown column %q", name).WithColumn(name)
		}
	}

	types := make([]DataType, t.NumColumns())
	for i, s := range t.Columns() {
		if dt, ok := forced[s.Name()]; ok {
			if err := checkForced(s, dt); err != nil {
				return nil, err
			}
			types[i] = dt
			continue
		}
		types[i] = inferType(s)
	}
	return types, nil
}

// checkForced rejects overrides the source column can never satisfy. Value
// level failures (overflow, non-integral) still surface during encoding.
func checkForced(s columnar.Series, dt DataType) error {
	if _, ok := s.(*columnar.NullSeries); ok {
		return nil // all-missing encodes under any datatype
	}
	compatible := false
	switch dt {
	case Ignore:
		compatible = true
	case Integer, Real, Double:
		switch s.(type) {
		case *columnar.IntSeries, *columnar.FloatSeries:
			compatible = true
		}
	case String:
		_, compatible = s.(*columnar.StringSeries)
	case Bitfield:
		_, compatible = s.(*columnar.BitfieldSeries)
	}
	if !compatible {
		return errors.Newf(errors.ErrorTypeType,
			"cannot force %s onto column %q", dt, s.Name()).WithColumn(s.Name())
	}
	return nil
}

// inferType applies the auto-selection heuristics: integer-valued numeric
// columns with no missing and no out-of-range values become INTEGER, other
// floating columns default to the lossy 4-byte REAL, wide integers fall back
// to DOUBLE. Callers needing forced precision use EncodeOptions.Types.
func inferType(s columnar.Series) DataType {
	switch src := s.(type) {
	case *columnar.IntSeries:
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				continue
			}
			if v := src.Int(i); v < math.MinInt32 || v >= math.MaxInt32 {
				return Double
			}
		}
		return Integer
	case *columnar.FloatSeries:
		for i := 0; i < src.Len(); i++ {
			if src.IsNull(i) {
				return Real
			}
			v := src.Float(i)
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Trunc(v) != v ||
				v < math.MinInt32 || v >= math.MaxInt32 {
				return Real
			}
		}
		return Integer
	case *columnar.StringSeries:
		return String
	case *columnar.BitfieldSeries:
		return Bitfield
	default:
		return Ignore
	}
}
