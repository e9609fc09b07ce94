package columnar

import (
	"github.com/thebaptiste/pyodc/pkg/errors"
)

// Table is an ordered collection of equally sized series with unique names.
// Tables are value containers only; they never reach back into the byte
// source they were decoded from.
type Table struct {
	series []Series
	byName map[string]int
}

// NewTable creates a table from the given series. All series must have the
// same length and distinct names.
func NewTable(series ...Series) (*Table, error) {
	t := &Table{
		series: series,
		byName: make(map[string]int, len(series)),
	}
	rows := -1
	for i, s := range series {
		if _, dup := t.byName[s.Name()]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "duplicate column name %q", s.Name())
		}
		t.byName[s.Name()] = i
		if rows == -1 {
			rows = s.Len()
		} else if s.Len() != rows {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"column %q has %d rows, expected %d", s.Name(), s.Len(), rows).WithColumn(s.Name())
		}
	}
	return t, nil
}

// NumRows returns the row count shared by all columns. An empty table has
// zero rows.
func (t *Table) NumRows() int {
	if len(t.series) == 0 {
		return 0
	}
	return t.series[0].Len()
}

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.series) }

// Columns returns the ordered series.
func (t *Table) Columns() []Series { return t.series }

// Names returns the ordered column names.
func (t *Table) Names() []string {
	names := make([]string, len(t.series))
	for i, s := range t.series {
		names[i] = s.Name()
	}
	return names
}

// Column returns the named series.
func (t *Table) Column(name string) (Series, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.series[i], true
}

// Slice returns a row-range view over the table.
func (t *Table) Slice(lo, hi int) *Table {
	series := make([]Series, len(t.series))
	for i, s := range t.series {
		series[i] = s.Slice(lo, hi)
	}
	out, _ := NewTable(series...)
	return out
}

// Select returns a table with only the named columns, in the given order.
func (t *Table) Select(names []string) (*Table, error) {
	series := make([]Series, 0, len(names))
	for _, name := range names {
		s, ok := t.Column(name)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeKey, "column %q not found", name).WithColumn(name)
		}
		series = append(series, s)
	}
	return NewTable(series...)
}

// Concat concatenates tables row-wise. The output column set is the union of
// the inputs' columns in first-appearance order; columns absent from a
// constituent table are null-filled for its rows. A NullSeries occurrence is
// typeless and adopts the concrete type the column has elsewhere. Columns
// that appear with two different concrete types are a type error.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return NewTable()
	}
	if len(tables) == 1 {
		return tables[0], nil
	}

	var order []string
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, name := range t.Names() {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}

	out := make([]Series, 0, len(order))
	for _, name := range order {
		s, err := concatColumn(name, tables)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return NewTable(out...)
}

func concatColumn(name string, tables []*Table) (Series, error) {
	total := 0
	var proto Series
	for _, t := range tables {
		total += t.NumRows()
		if proto == nil {
			if s, ok := t.Column(name); ok {
				if _, isNull := s.(*NullSeries); !isNull {
					proto = s
				}
			}
		}
	}
	if proto == nil {
		return NewNullSeries(name, total), nil
	}

	switch proto.(type) {
	case *IntSeries:
		values := make([]int64, 0, total)
		null := make([]bool, 0, total)
		for _, t := range tables {
			part, ok, err := typedPart[*IntSeries](name, t)
			if err != nil {
				return nil, err
			}
			if !ok {
				values = appendNulls(values, t.NumRows())
				null = appendMask(null, t.NumRows(), true)
				continue
			}
			for i := 0; i < part.Len(); i++ {
				values = append(values, part.values[i])
				null = append(null, part.IsNull(i))
			}
		}
		return NewIntSeries(name, values, null)

	case *FloatSeries:
		values := make([]float64, 0, total)
		null := make([]bool, 0, total)
		for _, t := range tables {
			part, ok, err := typedPart[*FloatSeries](name, t)
			if err != nil {
				return nil, err
			}
			if !ok {
				values = appendNulls(values, t.NumRows())
				null = appendMask(null, t.NumRows(), true)
				continue
			}
			for i := 0; i < part.Len(); i++ {
				values = append(values, part.values[i])
				null = append(null, part.IsNull(i))
			}
		}
		return NewFloatSeries(name, values, null)

	case *StringSeries:
		values := make([]string, 0, total)
		null := make([]bool, 0, total)
		for _, t := range tables {
			part, ok, err := typedPart[*StringSeries](name, t)
			if err != nil {
				return nil, err
			}
			if !ok {
				values = appendNulls(values, t.NumRows())
				null = appendMask(null, t.NumRows(), true)
				continue
			}
			for i := 0; i < part.Len(); i++ {
				values = append(values, part.values[i])
				null = append(null, part.IsNull(i))
			}
		}
		return NewStringSeries(name, values, null)

	case *BitfieldSeries:
		bf := proto.(*BitfieldSeries)
		values := make([]uint32, 0, total)
		null := make([]bool, 0, total)
		for _, t := range tables {
			part, ok, err := typedPart[*BitfieldSeries](name, t)
			if err != nil {
				return nil, err
			}
			if !ok {
				values = appendNulls(values, t.NumRows())
				null = appendMask(null, t.NumRows(), true)
				continue
			}
			for i := 0; i < part.Len(); i++ {
				values = append(values, part.values[i])
				null = append(null, part.IsNull(i))
			}
		}
		return NewBitfieldSeries(name, values, bf.fields, null)

	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unexpected series type %T", proto).WithColumn(name)
	}
}

// typedPart returns the named column of t as S. The second result is false
// when the column is absent or typeless; a column present with another
// concrete type is a type error.
func typedPart[S Series](name string, t *Table) (S, bool, error) {
	var zero S
	s, ok := t.Column(name)
	if !ok {
		return zero, false, nil
	}
	if _, isNull := s.(*NullSeries); isNull {
		return zero, false, nil
	}
	typed, ok := s.(S)
	if !ok {
		return zero, false, errors.Newf(errors.ErrorTypeType,
			"column %q changes type across concatenated tables", name).WithColumn(name)
	}
	return typed, true, nil
}

func appendNulls[T any](values []T, n int) []T {
	var zero T
	for i := 0; i < n; i++ {
		values = append(values, zero)
	}
	return values
}

func appendMask(mask []bool, n int, v bool) []bool {
	for i := 0; i < n; i++ {
		mask = append(mask, v)
	}
	return mask
}
