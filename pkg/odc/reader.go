package odc

import (
	"io"
	"os"

	"github.com/thebaptiste/pyodc/pkg/columnar"
	"github.com/thebaptiste/pyodc/pkg/errors"
)

// ReadOptions configures one read sequence. The zero value (or nil) means
// all columns, aggregation enabled and no row cap — matching the format's
// default reading behavior.
type ReadOptions struct {
	// Columns projects the decode to the named columns. Nil means all.
	Columns []string
	// DisableAggregation emits every physical frame as its own logical
	// frame. In this mode a projected column absent from a frame is a key
	// error rather than a null-filled column.
	DisableAggregation bool
	// MaxAggregatedRows caps the rows of one logical frame. Zero means
	// unbounded; the cap never splits a single physical frame.
	MaxAggregatedRows int
}

// Reader is the lazy logical-frame sequence over a byte source. Iteration is
// single-threaded and pull-based: nothing is read ahead of what Scan needs,
// and dropping the reader mid-stream is always safe.
type Reader struct {
	agg    *Aggregator
	closer io.Closer
}

// NewReader creates a reader over an open byte stream. The stream stays
// owned by the caller and must not be shared while the reader is live.
func NewReader(r io.Reader, opts *ReadOptions) *Reader {
	if opts == nil {
		opts = &ReadOptions{}
	}
	sc := NewScanner(r, &ScanOptions{
		Columns:         opts.Columns,
		TolerateMissing: !opts.DisableAggregation,
	})
	return &Reader{
		agg: NewAggregator(sc, opts.MaxAggregatedRows, !opts.DisableAggregation),
	}
}

// OpenReader creates a reader over a file. The caller must Close it.
func OpenReader(path string, opts *ReadOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "open source file")
	}
	r := NewReader(f, opts)
	r.closer = f
	return r, nil
}

// Scan advances to the next logical frame.
func (r *Reader) Scan() bool { return r.agg.Scan() }

// Table returns the current decoded logical table.
func (r *Reader) Table() *columnar.Table { return r.agg.Table() }

// Frame returns the current logical frame's metadata.
func (r *Reader) Frame() *LogicalFrame { return r.agg.Frame() }

// Err returns the first error encountered, nil after a clean end of source.
func (r *Reader) Err() error { return r.agg.Err() }

// Close releases the underlying file when the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadSingle eagerly reads the whole source and concatenates every logical
// table into one. Columns absent from some logical frames come back
// null-filled for those rows.
func ReadSingle(src io.Reader, opts *ReadOptions) (*columnar.Table, error) {
	if opts != nil && opts.Columns != nil && len(opts.Columns) == 0 {
		// A headers-only projection decodes no values and so has no table to
		// return; Inspect is the schema-only entry point.
		return nil, errors.New(errors.ErrorTypeConfig,
			"empty column projection cannot produce a table, use Inspect")
	}
	r := NewReader(src, opts)
	var tables []*columnar.Table
	for r.Scan() {
		tables = append(tables, r.Table())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, errors.New(errors.ErrorTypeFormat, "source contains no frames")
	}
	return columnar.Concat(tables...)
}

// ReadSingleFile is ReadSingle over a file path.
func ReadSingleFile(path string, opts *ReadOptions) (*columnar.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "open source file")
	}
	defer f.Close()
	return ReadSingle(f, opts)
}

// Inspect lists the source's frames with schema and row count but without
// decoding any payload values. With aggregated set, runs of compatible
// frames are pre-merged the same way a default read would group them.
func Inspect(src io.Reader, aggregated bool) ([]*LogicalFrame, error) {
	sc := NewScanner(src, &ScanOptions{Columns: []string{}})
	agg := NewAggregator(sc, 0, aggregated)

	var frames []*LogicalFrame
	for agg.Scan() {
		frames = append(frames, agg.Frame())
	}
	if err := agg.Err(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, errors.New(errors.ErrorTypeFormat, "source contains no frames")
	}
	return frames, nil
}

// InspectFile is Inspect over a file path.
func InspectFile(path string, aggregated bool) ([]*LogicalFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "open source file")
	}
	defer f.Close()
	return Inspect(f, aggregated)
}
