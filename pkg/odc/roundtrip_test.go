package odc

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thebaptiste/pyodc/pkg/columnar"
	"github.com/thebaptiste/pyodc/pkg/compression"
	"github.com/thebaptiste/pyodc/pkg/testutil"
)

func encodeToBuf(t *testing.T, tbl *columnar.Table, opts *EncodeOptions) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(tbl, &buf, opts))
	return &buf
}

// requireTableEqual compares two tables value by value. Nulls must line up
// exactly; values are compared through the Series.Value interface.
func requireTableEqual(t *testing.T, want, got *columnar.Table) {
	t.Helper()
	require.Equal(t, want.Names(), got.Names())
	require.Equal(t, want.NumRows(), got.NumRows())
	for _, name := range want.Names() {
		ws, _ := want.Column(name)
		gs, _ := got.Column(name)
		for i := 0; i < want.NumRows(); i++ {
			require.Equal(t, ws.Value(i), gs.Value(i), "column %q row %d", name, i)
		}
	}
}

func TestRoundTripObservationTable(t *testing.T) {
	tbl := testutil.ObservationTable(t, 25)

	buf := encodeToBuf(t, tbl, nil)
	got, err := ReadSingle(buf, nil)
	require.NoError(t, err)

	requireTableEqual(t, tbl, got)
}

func TestRoundTripMissingValues(t *testing.T) {
	tbl := testutil.Table(t,
		testutil.IntColumn(t, "count", []int64{1, 0, 3}, []bool{false, true, false}),
		testutil.FloatColumn(t, "depth", []float64{0.5, 1.5, 0}, []bool{false, false, true}),
		testutil.StringColumn(t, "site", []string{"alpha", "", "gamma"}),
	)

	buf := encodeToBuf(t, tbl, &EncodeOptions{
		Types: map[string]DataType{"depth": Double},
	})
	got, err := ReadSingle(buf, nil)
	require.NoError(t, err)

	count, _ := got.Column("count")
	require.True(t, count.IsNull(1))
	require.Equal(t, int64(1), count.Value(0))
	require.Equal(t, int64(3), count.Value(2))

	depth, _ := got.Column("depth")
	require.True(t, depth.IsNull(2))
	require.Equal(t, 0.5, depth.Value(0))
	require.Equal(t, 1.5, depth.Value(1))

	site, _ := got.Column("site")
	require.True(t, site.IsNull(1))
	require.Equal(t, "alpha", site.Value(0))
}

func TestRoundTripNaNBecomesMissing(t *testing.T) {
	tbl := testutil.Table(t,
		testutil.FloatColumn(t, "v", []float64{1.25, math.NaN(), 3.5}, nil),
	)

	buf := encodeToBuf(t, tbl, &EncodeOptions{Types: map[string]DataType{"v": Double}})
	got, err := ReadSingle(buf, nil)
	require.NoError(t, err)

	v, _ := got.Column("v")
	require.False(t, v.IsNull(0))
	require.True(t, v.IsNull(1))
	require.Equal(t, 3.5, v.Value(2))
}

func TestRoundTripRealRoundsToFloat32(t *testing.T) {
	values := []float64{270.15, 3.141592653589793, 1e-8}
	tbl := testutil.Table(t, testutil.FloatColumn(t, "temp", values, nil))

	buf := encodeToBuf(t, tbl, &EncodeOptions{Types: map[string]DataType{"temp": Real}})
	got, err := ReadSingle(buf, nil)
	require.NoError(t, err)

	temp, _ := got.Column("temp")
	for i, v := range values {
		require.Equal(t, float64(float32(v)), temp.Value(i), "row %d", i)
	}
}

func TestRoundTripDoubleIsExact(t *testing.T) {
	values := []float64{270.15, math.Pi, math.MaxFloat64, -math.SmallestNonzeroFloat64}
	tbl := testutil.Table(t, testutil.FloatColumn(t, "v", values, nil))

	buf := encodeToBuf(t, tbl, &EncodeOptions{Types: map[string]DataType{"v": Double}})
	got, err := ReadSingle(buf, nil)
	require.NoError(t, err)

	v, _ := got.Column("v")
	for i, want := range values {
		require.Equal(t, want, v.Value(i))
	}
}

func TestRoundTripBitfieldLayout(t *testing.T) {
	layout := []columnar.BitfieldField{
		{Name: "active", Offset: 0, Size: 1},
		{Name: "level", Offset: 1, Size: 3},
		{Name: "source", Offset: 4, Size: 4},
	}
	words := []uint32{0b10110101, 0b00000001, 0b11111111}
	tbl := testutil.Table(t, testutil.BitfieldColumn(t, "flags", words, layout))

	buf := encodeToBuf(t, tbl, nil)
	got, err := ReadSingle(buf, nil)
	require.NoError(t, err)

	flags, ok := got.Column("flags")
	require.True(t, ok)
	bf, ok := flags.(*columnar.BitfieldSeries)
	require.True(t, ok)
	require.Equal(t, layout, bf.Fields())

	active, err := bf.Field(0, "active")
	require.NoError(t, err)
	require.Equal(t, uint32(1), active)
	level, err := bf.Field(0, "level")
	require.NoError(t, err)
	require.Equal(t, uint32(0b010), level)
	source, err := bf.Field(0, "source")
	require.NoError(t, err)
	require.Equal(t, uint32(0b1011), source)
}

func TestRoundTripStringWidthsVaryPerFrame(t *testing.T) {
	tbl := testutil.Table(t,
		testutil.StringColumn(t, "s", []string{"a", "bb", "ccc", "dddd"}),
	)

	buf := encodeToBuf(t, tbl, &EncodeOptions{RowsPerFrame: 2})

	frames, err := Inspect(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, uint16(2), frames[0].Columns[0].Width)
	require.Equal(t, uint16(4), frames[1].Columns[0].Width)

	got, err := ReadSingle(buf, nil)
	require.NoError(t, err)
	requireTableEqual(t, tbl, got)
}

func TestRoundTripAllCompressionCodecs(t *testing.T) {
	tbl := testutil.ObservationTable(t, 50)

	for _, alg := range []compression.Algorithm{
		compression.None, compression.Snappy, compression.LZ4,
		compression.Zstd, compression.S2,
	} {
		t.Run(string(alg), func(t *testing.T) {
			buf := encodeToBuf(t, tbl, &EncodeOptions{Compression: alg})
			got, err := ReadSingle(buf, nil)
			require.NoError(t, err)
			requireTableEqual(t, tbl, got)
		})
	}
}

func TestRoundTripZeroRowTable(t *testing.T) {
	tbl := testutil.Table(t,
		testutil.IntColumn(t, "a", nil, nil),
		testutil.StringColumn(t, "b", nil),
	)

	buf := encodeToBuf(t, tbl, nil)

	frames, err := Inspect(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, 0, frames[0].Rows)
	require.Len(t, frames[0].Columns, 2)

	got, err := ReadSingle(buf, nil)
	require.NoError(t, err)
	require.Equal(t, 0, got.NumRows())
	require.Equal(t, []string{"a", "b"}, got.Names())
}
