package odc

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebaptiste/pyodc/pkg/errors"
	"github.com/thebaptiste/pyodc/pkg/testutil"
)

func TestFrameSplitting(t *testing.T) {
	cases := []struct {
		rows, perFrame int
		want           []int
	}{
		{10, 3, []int{3, 3, 3, 1}},
		{10, 10, []int{10}},
		{10, 5, []int{5, 5}}, // exact multiple, no trailing empty frame
		{1, 10000, []int{1}},
		{0, 3, []int{0}}, // zero rows still produce one frame
	}

	for _, tc := range cases {
		tbl := testutil.ObservationTable(t, tc.rows)
		buf := encodeToBuf(t, tbl, &EncodeOptions{RowsPerFrame: tc.perFrame})

		frames, err := Inspect(buf, false)
		require.NoError(t, err)

		got := make([]int, 0, len(frames))
		total := 0
		for _, f := range frames {
			got = append(got, f.Rows)
			total += f.Rows
		}
		assert.Equal(t, tc.want, got, "rows=%d perFrame=%d", tc.rows, tc.perFrame)
		assert.Equal(t, tc.rows, total)
	}
}

func TestEncodeValidatesOptionsEagerly(t *testing.T) {
	tbl := testutil.ObservationTable(t, 5)

	var buf bytes.Buffer
	err := Encode(tbl, &buf, &EncodeOptions{RowsPerFrame: -1})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Zero(t, buf.Len(), "nothing may be written before validation")

	err = Encode(tbl, &buf, &EncodeOptions{
		Types: map[string]DataType{"no_such_column": Integer},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeKey))
	assert.Zero(t, buf.Len())

	err = Encode(tbl, &buf, &EncodeOptions{Compression: "brotli"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestTypeInference(t *testing.T) {
	tbl := testutil.Table(t,
		testutil.IntColumn(t, "small_int", []int64{1, 2}, nil),
		testutil.IntColumn(t, "wide_int", []int64{1, math.MaxInt32}, nil),
		testutil.FloatColumn(t, "integral_float", []float64{1, 2}, nil),
		testutil.FloatColumn(t, "integral_with_null", []float64{1, 0}, []bool{false, true}),
		testutil.FloatColumn(t, "fractional", []float64{1.5, 2.5}, nil),
		testutil.StringColumn(t, "text", []string{"x", "y"}),
	)

	buf := encodeToBuf(t, tbl, nil)
	frames, err := Inspect(buf, false)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	types := make(map[string]DataType)
	for _, c := range frames[0].Columns {
		types[c.Name] = c.Type
	}
	assert.Equal(t, Integer, types["small_int"])
	assert.Equal(t, Double, types["wide_int"], "MaxInt32 collides with the missing sentinel")
	assert.Equal(t, Integer, types["integral_float"])
	assert.Equal(t, Real, types["integral_with_null"])
	assert.Equal(t, Real, types["fractional"])
	assert.Equal(t, String, types["text"])
}

func TestForcedTypeErrors(t *testing.T) {
	t.Run("string column forced to REAL", func(t *testing.T) {
		tbl := testutil.Table(t, testutil.StringColumn(t, "s", []string{"abc"}))
		err := Encode(tbl, &bytes.Buffer{}, &EncodeOptions{
			Types: map[string]DataType{"s": Real},
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeType))
	})

	t.Run("REAL overflow", func(t *testing.T) {
		tbl := testutil.Table(t, testutil.FloatColumn(t, "v", []float64{1e300}, nil))
		err := Encode(tbl, &bytes.Buffer{}, &EncodeOptions{
			Types: map[string]DataType{"v": Real},
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeType))

		var e *errors.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "v", e.Column())
	})

	t.Run("INTEGER forced onto fractional values", func(t *testing.T) {
		tbl := testutil.Table(t, testutil.FloatColumn(t, "v", []float64{1.5}, nil))
		err := Encode(tbl, &bytes.Buffer{}, &EncodeOptions{
			Types: map[string]DataType{"v": Integer},
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeType))
	})

	t.Run("INTEGER sentinel collision", func(t *testing.T) {
		tbl := testutil.Table(t, testutil.IntColumn(t, "v", []int64{math.MaxInt32}, nil))
		err := Encode(tbl, &bytes.Buffer{}, &EncodeOptions{
			Types: map[string]DataType{"v": Integer},
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeType))
	})
}

func TestForcedDoublePreservesPrecision(t *testing.T) {
	tbl := testutil.Table(t, testutil.FloatColumn(t, "v", []float64{math.Pi}, nil))

	buf := encodeToBuf(t, tbl, &EncodeOptions{Types: map[string]DataType{"v": Double}})
	got, err := ReadSingle(buf, nil)
	require.NoError(t, err)

	v, _ := got.Column("v")
	assert.Equal(t, math.Pi, v.Value(0))
}

func TestEncodeAppendsToOpenWriter(t *testing.T) {
	first := testutil.ObservationTable(t, 4)
	second := testutil.ObservationTable(t, 6)

	var buf bytes.Buffer
	require.NoError(t, Encode(first, &buf, nil))
	require.NoError(t, Encode(second, &buf, nil))

	frames, err := Inspect(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, 4, frames[0].Rows)
	assert.Equal(t, 6, frames[1].Rows)

	got, err := ReadSingle(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, got.NumRows())
}
