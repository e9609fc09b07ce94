// Package testutil provides shared helpers for the codec test suites.
package testutil

import (
	"testing"

	"github.com/thebaptiste/pyodc/pkg/columnar"
)

// IntColumn builds an integer series or fails the test.
func IntColumn(t *testing.T, name string, values []int64, null []bool) *columnar.IntSeries {
	t.Helper()
	s, err := columnar.NewIntSeries(name, values, null)
	if err != nil {
		t.Fatalf("building int column %q: %v", name, err)
	}
	return s
}

// FloatColumn builds a float series or fails the test.
func FloatColumn(t *testing.T, name string, values []float64, null []bool) *columnar.FloatSeries {
	t.Helper()
	s, err := columnar.NewFloatSeries(name, values, null)
	if err != nil {
		t.Fatalf("building float column %q: %v", name, err)
	}
	return s
}

// StringColumn builds a string series or fails the test.
func StringColumn(t *testing.T, name string, values []string) *columnar.StringSeries {
	t.Helper()
	s, err := columnar.NewStringSeries(name, values, nil)
	if err != nil {
		t.Fatalf("building string column %q: %v", name, err)
	}
	return s
}

// BitfieldColumn builds a bitfield series or fails the test.
func BitfieldColumn(t *testing.T, name string, values []uint32, fields []columnar.BitfieldField) *columnar.BitfieldSeries {
	t.Helper()
	s, err := columnar.NewBitfieldSeries(name, values, fields, nil)
	if err != nil {
		t.Fatalf("building bitfield column %q: %v", name, err)
	}
	return s
}

// Table builds a table or fails the test.
func Table(t *testing.T, series ...columnar.Series) *columnar.Table {
	t.Helper()
	tbl, err := columnar.NewTable(series...)
	if err != nil {
		t.Fatalf("building table: %v", err)
	}
	return tbl
}

// ObservationTable builds an n-row table shaped like a typical observation
// batch: station id, pressure, temperature and a quality flag word.
func ObservationTable(t *testing.T, n int) *columnar.Table {
	t.Helper()

	ids := make([]int64, n)
	pressures := make([]float64, n)
	temps := make([]float64, n)
	stations := make([]string, n)
	flags := make([]uint32, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(1000 + i)
		pressures[i] = 1013.25 + float64(i)*0.5
		temps[i] = 270.5 + float64(i%40)
		stations[i] = []string{"KODIAK", "LERWICK", "AMUNDSEN"}[i%3]
		flags[i] = uint32(i % 4)
	}

	layout := []columnar.BitfieldField{
		{Name: "active", Offset: 0, Size: 1},
		{Name: "blacklisted", Offset: 1, Size: 1},
	}
	return Table(t,
		IntColumn(t, "seqno", ids, nil),
		FloatColumn(t, "pressure", pressures, nil),
		FloatColumn(t, "temperature", temps, nil),
		StringColumn(t, "station", stations),
		BitfieldColumn(t, "flags", flags, layout),
	)
}
