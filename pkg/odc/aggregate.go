package odc

import (
	"github.com/thebaptiste/pyodc/pkg/columnar"
)

// LogicalFrame is a read-time grouping of one or more physically consecutive,
// schema-compatible frames presented as a single decoded unit.
type LogicalFrame struct {
	// Offset is the byte position of the group's first physical frame.
	Offset int64
	// Rows is the summed row count of the constituents.
	Rows int
	// Columns is the logical schema: the first constituent's schema, in its
	// column order.
	Columns []ColumnDesc
	// Frames is the number of physical constituents.
	Frames int
}

// compatibleSchemas reports whether two frames may share a logical frame:
// the sets of column names must match exactly and each shared column's
// datatype must match exactly. Column order is irrelevant; the merged schema
// keeps the first frame's order. Compatibility is schema-based only.
func compatibleSchemas(a, b []ColumnDesc) bool {
	if len(a) != len(b) {
		return false
	}
	types := make(map[string]DataType, len(a))
	for _, c := range a {
		types[c.Name] = c.Type
	}
	for _, c := range b {
		dt, ok := types[c.Name]
		if !ok || dt != c.Type {
			return false
		}
	}
	return true
}

// Aggregator folds a scanner's physical frame sequence into logical frames.
// Each group is driven by an open/close cycle: the open group accumulates
// frames while they stay compatible and within the row cap; the first frame
// that does not fit closes the group and opens the next one. With
// aggregation disabled every physical frame closes its group immediately.
type Aggregator struct {
	sc      *Scanner
	maxRows int // 0 or negative means unbounded
	enabled bool

	// One frame of lookahead: the frame that closed the previous group and
	// opens the next.
	pendingFrame *Frame
	pendingTable *columnar.Table
	havePending  bool
	pendingErr   error

	cur      *LogicalFrame
	curTable *columnar.Table
	err      error
	done     bool
}

// NewAggregator wraps a scanner. maxRows caps the row count of one logical
// frame when positive; the first frame of a group is always accepted, so a
// single oversized frame passes through as its own group.
func NewAggregator(sc *Scanner, maxRows int, enabled bool) *Aggregator {
	return &Aggregator{sc: sc, maxRows: maxRows, enabled: enabled}
}

// Scan advances to the next logical frame.
func (a *Aggregator) Scan() bool {
	if a.err != nil {
		return false
	}
	if a.done {
		// The group before a failing frame has been emitted; the held
		// error (if any) surfaces now that iteration reaches the frame.
		a.err = a.takeErr()
		return false
	}

	first, firstTable, ok := a.next()
	if !ok {
		a.done = true
		a.err = a.takeErr()
		return false
	}

	group := []*Frame{first}
	tables := []*columnar.Table{firstTable}
	rows := first.Rows

	for a.enabled {
		f, t, ok := a.next()
		if !ok {
			a.done = true
			break
		}
		if !compatibleSchemas(first.Columns, f.Columns) ||
			(a.maxRows > 0 && rows+f.Rows > a.maxRows) {
			a.pendingFrame, a.pendingTable, a.havePending = f, t, true
			break
		}
		group = append(group, f)
		tables = append(tables, t)
		rows += f.Rows
	}

	a.cur = &LogicalFrame{
		Offset:  first.Offset,
		Rows:    rows,
		Columns: first.Columns,
		Frames:  len(group),
	}
	a.curTable, a.err = mergeTables(tables)
	if a.err != nil {
		return false
	}
	return true
}

// next yields the lookahead frame if one is stashed, otherwise pulls the
// scanner. A scanner failure is held back until the frames before it have
// been emitted, so errors surface exactly when iteration reaches them.
func (a *Aggregator) next() (*Frame, *columnar.Table, bool) {
	if a.havePending {
		a.havePending = false
		return a.pendingFrame, a.pendingTable, true
	}
	if a.pendingErr != nil {
		return nil, nil, false
	}
	if !a.sc.Scan() {
		a.pendingErr = a.sc.Err()
		return nil, nil, false
	}
	return a.sc.Frame(), a.sc.Table(), true
}

func (a *Aggregator) takeErr() error {
	err := a.pendingErr
	a.pendingErr = nil
	return err
}

// Frame returns the metadata of the current logical frame.
func (a *Aggregator) Frame() *LogicalFrame { return a.cur }

// Table returns the merged decoded table of the current logical frame, nil
// under a headers-only projection.
func (a *Aggregator) Table() *columnar.Table { return a.curTable }

// Err returns the first error encountered.
func (a *Aggregator) Err() error { return a.err }

// mergeTables concatenates the constituent tables of one group. Within a
// group the column sets are identical by construction; Concat aligns them by
// name and keeps the first table's column order.
func mergeTables(tables []*columnar.Table) (*columnar.Table, error) {
	for _, t := range tables {
		if t == nil {
			return nil, nil // headers-only scan
		}
	}
	return columnar.Concat(tables...)
}
