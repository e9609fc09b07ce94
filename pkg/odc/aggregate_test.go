package odc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebaptiste/pyodc/pkg/columnar"
	"github.com/thebaptiste/pyodc/pkg/errors"
	"github.com/thebaptiste/pyodc/pkg/testutil"
)

func schemaA(t *testing.T, base int64) *columnar.Table {
	t.Helper()
	return testutil.Table(t,
		testutil.IntColumn(t, "a", []int64{base, base + 1}, nil),
		testutil.IntColumn(t, "b", []int64{base + 10, base + 11}, nil),
	)
}

func schemaB(t *testing.T) *columnar.Table {
	t.Helper()
	return testutil.Table(t,
		testutil.IntColumn(t, "a", []int64{1, 2}, nil),
		testutil.StringColumn(t, "c", []string{"x", "y"}),
	)
}

func TestAggregatorGroupsCompatibleRuns(t *testing.T) {
	// Frame schemas in stream order: A, A, B, A. Only the contiguous A run
	// merges; the trailing A is separated from it by B.
	var buf bytes.Buffer
	require.NoError(t, Encode(schemaA(t, 0), &buf, nil))
	require.NoError(t, Encode(schemaA(t, 2), &buf, nil))
	require.NoError(t, Encode(schemaB(t), &buf, nil))
	require.NoError(t, Encode(schemaA(t, 4), &buf, nil))

	agg := NewAggregator(NewScanner(&buf, nil), 0, true)

	var groups []*LogicalFrame
	for agg.Scan() {
		groups = append(groups, agg.Frame())
	}
	require.NoError(t, agg.Err())
	require.Len(t, groups, 3)

	assert.Equal(t, 2, groups[0].Frames)
	assert.Equal(t, 4, groups[0].Rows)
	assert.Equal(t, 1, groups[1].Frames)
	assert.Equal(t, 2, groups[1].Rows)
	assert.Equal(t, 1, groups[2].Frames)
	assert.Equal(t, 2, groups[2].Rows)
}

func TestAggregatorMergedValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(schemaA(t, 0), &buf, nil))
	require.NoError(t, Encode(schemaA(t, 2), &buf, nil))

	agg := NewAggregator(NewScanner(&buf, nil), 0, true)
	require.True(t, agg.Scan())
	require.NoError(t, agg.Err())

	got := agg.Table()
	require.Equal(t, 4, got.NumRows())
	col, ok := got.Column("a")
	require.True(t, ok)
	for i := 0; i < 4; i++ {
		assert.Equal(t, int64(i), col.Value(i))
	}
	assert.False(t, agg.Scan())
	require.NoError(t, agg.Err())
}

func TestAggregatorRowCap(t *testing.T) {
	// 10 rows split 3 per frame gives physical rows [3 3 3 1]. A cap of 6
	// closes the first group after two frames: logical rows [6 4].
	tbl := testutil.ObservationTable(t, 10)
	buf := encodeToBuf(t, tbl, &EncodeOptions{RowsPerFrame: 3})

	agg := NewAggregator(NewScanner(buf, nil), 6, true)

	var rows, frames []int
	for agg.Scan() {
		rows = append(rows, agg.Frame().Rows)
		frames = append(frames, agg.Frame().Frames)
	}
	require.NoError(t, agg.Err())
	assert.Equal(t, []int{6, 4}, rows)
	assert.Equal(t, []int{2, 2}, frames)
}

func TestAggregatorOversizedFrame(t *testing.T) {
	// The first frame of a group is always taken, so a frame bigger than the
	// cap still comes through as its own group.
	tbl := testutil.ObservationTable(t, 10)
	buf := encodeToBuf(t, tbl, &EncodeOptions{RowsPerFrame: 5})

	agg := NewAggregator(NewScanner(buf, nil), 3, true)

	var rows []int
	for agg.Scan() {
		rows = append(rows, agg.Frame().Rows)
	}
	require.NoError(t, agg.Err())
	assert.Equal(t, []int{5, 5}, rows)
}

func TestAggregatorDisabled(t *testing.T) {
	tbl := testutil.ObservationTable(t, 10)
	buf := encodeToBuf(t, tbl, &EncodeOptions{RowsPerFrame: 3})

	agg := NewAggregator(NewScanner(buf, nil), 0, false)

	var rows []int
	total := 0
	for agg.Scan() {
		require.Equal(t, 1, agg.Frame().Frames)
		rows = append(rows, agg.Frame().Rows)
		total += agg.Table().NumRows()
	}
	require.NoError(t, agg.Err())
	assert.Equal(t, []int{3, 3, 3, 1}, rows)
	assert.Equal(t, 10, total, "no row is lost or duplicated")
}

func TestAggregatorOrderIndependentCompatibility(t *testing.T) {
	// Same column set, different declaration order: still one group, and the
	// merged table keeps the first frame's column order.
	var buf bytes.Buffer
	first := testutil.Table(t,
		testutil.IntColumn(t, "a", []int64{1}, nil),
		testutil.IntColumn(t, "b", []int64{2}, nil),
	)
	second := testutil.Table(t,
		testutil.IntColumn(t, "b", []int64{4}, nil),
		testutil.IntColumn(t, "a", []int64{3}, nil),
	)
	require.NoError(t, Encode(first, &buf, nil))
	require.NoError(t, Encode(second, &buf, nil))

	agg := NewAggregator(NewScanner(&buf, nil), 0, true)
	require.True(t, agg.Scan())
	require.NoError(t, agg.Err())

	assert.Equal(t, 2, agg.Frame().Frames)
	got := agg.Table()
	assert.Equal(t, []string{"a", "b"}, got.Names())
	a, _ := got.Column("a")
	b, _ := got.Column("b")
	assert.Equal(t, int64(1), a.Value(0))
	assert.Equal(t, int64(3), a.Value(1))
	assert.Equal(t, int64(2), b.Value(0))
	assert.Equal(t, int64(4), b.Value(1))
}

func TestAggregatorSameNameDifferentTypeSplits(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(testutil.Table(t,
		testutil.IntColumn(t, "v", []int64{1}, nil)), &buf, nil))
	require.NoError(t, Encode(testutil.Table(t,
		testutil.StringColumn(t, "v", []string{"one"})), &buf, nil))

	agg := NewAggregator(NewScanner(&buf, nil), 0, true)
	count := 0
	for agg.Scan() {
		count++
		assert.Equal(t, 1, agg.Frame().Frames)
	}
	require.NoError(t, agg.Err())
	assert.Equal(t, 2, count)
}

func TestAggregatorErrorAfterCompleteGroups(t *testing.T) {
	// Two good frames, then corruption. The good group must come out before
	// the error surfaces.
	var buf bytes.Buffer
	require.NoError(t, Encode(schemaA(t, 0), &buf, nil))
	require.NoError(t, Encode(schemaA(t, 2), &buf, nil))
	buf.WriteString("trailing corruption")

	agg := NewAggregator(NewScanner(&buf, nil), 0, true)
	require.True(t, agg.Scan())
	require.NoError(t, agg.Err())
	assert.Equal(t, 4, agg.Frame().Rows)

	assert.False(t, agg.Scan())
	assert.True(t, errors.IsType(agg.Err(), errors.ErrorTypeFormat))
}
