package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebaptiste/pyodc/pkg/errors"
)

func intCol(t *testing.T, name string, values ...int64) *IntSeries {
	t.Helper()
	s, err := NewIntSeries(name, values, nil)
	require.NoError(t, err)
	return s
}

func strCol(t *testing.T, name string, values ...string) *StringSeries {
	t.Helper()
	s, err := NewStringSeries(name, values, nil)
	require.NoError(t, err)
	return s
}

func TestNewTableValidation(t *testing.T) {
	_, err := NewTable(intCol(t, "a", 1, 2), intCol(t, "a", 3, 4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate column")

	_, err = NewTable(intCol(t, "a", 1, 2), intCol(t, "b", 1, 2, 3))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestTableSelect(t *testing.T) {
	tbl, err := NewTable(
		intCol(t, "a", 1, 2),
		intCol(t, "b", 3, 4),
		strCol(t, "c", "x", "y"),
	)
	require.NoError(t, err)

	sub, err := tbl.Select([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, sub.Names())

	_, err = tbl.Select([]string{"missing"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeKey))
}

func TestTableSlice(t *testing.T) {
	tbl, err := NewTable(intCol(t, "a", 10, 20, 30, 40))
	require.NoError(t, err)

	sub := tbl.Slice(1, 3)
	assert.Equal(t, 2, sub.NumRows())
	col, _ := sub.Column("a")
	assert.Equal(t, int64(20), col.Value(0))
	assert.Equal(t, int64(30), col.Value(1))
}

func TestConcatUnionNullFills(t *testing.T) {
	left, err := NewTable(intCol(t, "a", 1, 2), intCol(t, "b", 10, 20))
	require.NoError(t, err)
	right, err := NewTable(intCol(t, "a", 3), strCol(t, "c", "z"))
	require.NoError(t, err)

	got, err := Concat(left, right)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, got.Names(),
		"union in first-appearance order")
	require.Equal(t, 3, got.NumRows())

	b, _ := got.Column("b")
	assert.Equal(t, int64(10), b.Value(0))
	assert.True(t, b.IsNull(2))

	c, _ := got.Column("c")
	assert.True(t, c.IsNull(0))
	assert.Equal(t, "z", c.Value(2))
}

func TestConcatWidensNullSeries(t *testing.T) {
	left, err := NewTable(NewNullSeries("v", 2))
	require.NoError(t, err)
	right, err := NewTable(intCol(t, "v", 7))
	require.NoError(t, err)

	got, err := Concat(left, right)
	require.NoError(t, err)

	v, _ := got.Column("v")
	_, isInt := v.(*IntSeries)
	assert.True(t, isInt, "typeless column adopts the concrete type")
	assert.True(t, v.IsNull(0))
	assert.True(t, v.IsNull(1))
	assert.Equal(t, int64(7), v.Value(2))
}

func TestConcatAllNullStaysTypeless(t *testing.T) {
	left, err := NewTable(NewNullSeries("v", 1))
	require.NoError(t, err)
	right, err := NewTable(NewNullSeries("v", 2))
	require.NoError(t, err)

	got, err := Concat(left, right)
	require.NoError(t, err)

	v, _ := got.Column("v")
	_, isNull := v.(*NullSeries)
	assert.True(t, isNull)
	assert.Equal(t, 3, v.Len())
}

func TestConcatTypeConflict(t *testing.T) {
	left, err := NewTable(intCol(t, "v", 1))
	require.NoError(t, err)
	right, err := NewTable(strCol(t, "v", "one"))
	require.NoError(t, err)

	_, err = Concat(left, right)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeType))

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "v", e.Column())
}

func TestConcatSingleTablePassthrough(t *testing.T) {
	tbl, err := NewTable(intCol(t, "a", 1))
	require.NoError(t, err)

	got, err := Concat(tbl)
	require.NoError(t, err)
	assert.Same(t, tbl, got)
}
