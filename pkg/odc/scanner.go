package odc

import (
	"io"

	"go.uber.org/zap"

	"github.com/thebaptiste/pyodc/pkg/columnar"
	"github.com/thebaptiste/pyodc/pkg/compression"
	"github.com/thebaptiste/pyodc/pkg/errors"
	"github.com/thebaptiste/pyodc/pkg/logger"
	"github.com/thebaptiste/pyodc/pkg/pool"
)

// Frame describes one physical frame: where it sits in the source, its
// schema and its row count. The payload itself is decoded into a table and
// never retained.
type Frame struct {
	// Offset is the byte position of the frame header in the source.
	Offset int64
	// Rows is the frame's row count.
	Rows int
	// Columns is the frame schema in file order.
	Columns []ColumnDesc
}

// HasColumn reports whether the schema contains the named column.
func (f *Frame) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ScanOptions configures a Scanner.
type ScanOptions struct {
	// Columns projects the decode to the named columns, in the given order.
	// Nil decodes every column; an empty non-nil slice decodes none, which
	// reads schemas without touching payload values.
	Columns []string
	// TolerateMissing substitutes an all-null column when a projected name
	// is absent from a frame's schema. When false the absence is a key
	// error. Aggregated reads tolerate, single-frame access does not.
	TolerateMissing bool
}

// Scanner is a lazy, forward-only pass over the physical frames of a byte
// source. It advances only inside Scan, so abandoning it at any point is
// safe; re-scanning means reopening the source from the start. A scanner
// must not share its source reader with anything else while active.
type Scanner struct {
	r      io.Reader
	opts   ScanOptions
	offset int64
	comps  map[uint8]compression.Compressor

	frame *Frame
	table *columnar.Table
	err   error
	done  bool
}

// NewScanner creates a scanner over r. Errors, including a malformed first
// frame, surface from Scan rather than here.
func NewScanner(r io.Reader, opts *ScanOptions) *Scanner {
	s := &Scanner{
		r:     r,
		comps: make(map[uint8]compression.Compressor),
	}
	if opts != nil {
		s.opts = *opts
	}
	return s
}

// Scan advances to the next physical frame. It returns false at the end of
// the source or on error; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.done || s.err != nil {
		return false
	}

	frameOffset := s.offset
	h, n, err := readHeader(s.r)
	if err == io.EOF {
		s.done = true
		return false
	}
	if err != nil {
		s.err = err
		return false
	}
	s.offset += n

	// payloadLen comes from the untrusted header; copying in bounded chunks
	// keeps the allocation proportional to the bytes actually present.
	payload := pool.GetBuffer()
	defer pool.PutBuffer(payload)
	if _, err := io.CopyN(payload, s.r, int64(h.payloadLen)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			s.err = errors.Wrap(err, errors.ErrorTypeFormat, "truncated frame payload")
		} else {
			s.err = errors.Wrap(err, errors.ErrorTypeIO, "read frame payload")
		}
		return false
	}
	s.offset += int64(h.payloadLen)

	s.frame = &Frame{
		Offset:  frameOffset,
		Rows:    int(h.rows),
		Columns: h.columns,
	}

	s.table, s.err = s.decodeFrame(h, payload.Bytes())
	if s.err != nil {
		return false
	}

	logger.Debug("scanned frame",
		zap.Int64("offset", frameOffset),
		zap.Int("rows", s.frame.Rows),
		zap.Int("columns", len(s.frame.Columns)))
	return true
}

// Frame returns the metadata of the current frame.
func (s *Scanner) Frame() *Frame { return s.frame }

// Table returns the decoded columns of the current frame, nil when the
// projection selects none.
func (s *Scanner) Table() *columnar.Table { return s.table }

// Err returns the first error encountered, nil after a clean end of source.
func (s *Scanner) Err() error { return s.err }

// Offset returns the byte position just past the last consumed frame.
func (s *Scanner) Offset() int64 { return s.offset }

// decodeFrame decompresses the payload and decodes the projected columns.
func (s *Scanner) decodeFrame(h *frameHeader, payload []byte) (*columnar.Table, error) {
	if s.opts.Columns != nil && len(s.opts.Columns) == 0 {
		return nil, nil // headers only
	}

	raw := payload
	if h.rawLen > 0 {
		comp, ok := s.comps[h.codec]
		if !ok {
			var err error
			if comp, err = compression.ForID(h.codec); err != nil {
				return nil, err
			}
			s.comps[h.codec] = comp
		}
		var err error
		if raw, err = comp.Decompress(payload); err != nil {
			return nil, err
		}
	}
	if len(raw) != int(h.rawLen) {
		return nil, errors.Newf(errors.ErrorTypeFormat,
			"payload decompressed to %d bytes, want %d", len(raw), h.rawLen)
	}

	// Column data sits back to back in schema order; the byte range of each
	// column follows from the schema alone, so unselected columns are
	// skipped without decoding.
	starts := make(map[string]int, len(h.columns))
	byName := make(map[string]ColumnDesc, len(h.columns))
	cursor := 0
	for _, desc := range h.columns {
		starts[desc.Name] = cursor
		byName[desc.Name] = desc
		cursor += desc.CellWidth() * int(h.rows)
	}

	targets := s.opts.Columns
	if targets == nil {
		targets = make([]string, 0, len(h.columns))
		for _, desc := range h.columns {
			targets = append(targets, desc.Name)
		}
	}

	series := make([]columnar.Series, 0, len(targets))
	for _, name := range targets {
		desc, ok := byName[name]
		if !ok {
			if s.opts.TolerateMissing {
				series = append(series, columnar.NewNullSeries(name, int(h.rows)))
				continue
			}
			return nil, errors.Newf(errors.ErrorTypeKey,
				"column %q not in frame schema", name).WithColumn(name)
		}
		start := starts[name]
		cells := raw[start : start+desc.CellWidth()*int(h.rows)]
		col, err := decodeColumn(cells, int(h.rows), desc)
		if err != nil {
			return nil, err
		}
		series = append(series, col)
	}
	return columnar.NewTable(series...)
}
