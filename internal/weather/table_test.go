package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableColumnsAndIndex(t *testing.T) {
	w := ResolveDayRange(DayRange{EndDate: day(2024, 6, 15), BeforeDays: 1}, time.UTC)
	tbl := tableOf(w,
		Observation{MeasurementTime: time.Date(2024, 6, 14, 22, 0, 0, 0, time.UTC), TempOut: 15, TempIn: 21, Humid: 60, Pressure: 1008},
		Observation{MeasurementTime: time.Date(2024, 6, 15, 1, 0, 0, 0, time.UTC), TempOut: 14, TempIn: 20, Humid: 62, Pressure: 1009},
		Observation{MeasurementTime: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC), TempOut: 19, TempIn: 22, Humid: 55, Pressure: 1011},
	)

	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, w, tbl.Window())

	humid, err := tbl.Column(ColHumid)
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 62, 55}, humid)

	_, err = tbl.Column("wind")
	assert.Error(t, err)

	idx := tbl.Index()
	assert.Equal(t, time.Date(2024, 6, 14, 22, 0, 0, 0, time.UTC), idx[0])
	assert.Equal(t, idx[0], tbl.FirstTime())
	assert.Equal(t, idx[2], tbl.LastTime())

	lo, hi, ok, err := tbl.Bounds(ColPressure)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1008.0, lo)
	assert.Equal(t, 1011.0, hi)
}

func TestTableDescendingAndRestrict(t *testing.T) {
	w := ResolveDayRange(DayRange{EndDate: day(2024, 6, 15), BeforeDays: 1}, time.UTC)
	tbl := tableOf(w,
		Observation{MeasurementTime: time.Date(2024, 6, 14, 22, 0, 0, 0, time.UTC), TempOut: 15},
		Observation{MeasurementTime: time.Date(2024, 6, 15, 1, 0, 0, 0, time.UTC), TempOut: 14},
		Observation{MeasurementTime: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC), TempOut: 19},
	)

	desc := tbl.Descending()
	assert.Equal(t, 19.0, desc.Row(0).TempOut)
	assert.Equal(t, 15.0, desc.Row(2).TempOut)
	assert.Equal(t, 15.0, tbl.Row(0).TempOut, "source table untouched")

	sub := tbl.Restrict(day(2024, 6, 15))
	require.Equal(t, 2, sub.Len())
	assert.True(t, sub.Window().SingleDay())
	assert.Equal(t, 14.0, *Summarize(sub).Min.Value)

	empty := tbl.Restrict(day(2024, 6, 16))
	assert.Equal(t, 0, empty.Len())
	assert.True(t, empty.FirstTime().IsZero())
}

func TestNewTableCopiesRows(t *testing.T) {
	rows := []Observation{{MeasurementTime: day(2024, 6, 15), TempOut: 1}}
	tbl := NewTable(ObservationSeries{Observations: rows})
	rows[0].TempOut = 99
	assert.Equal(t, 1.0, tbl.Row(0).TempOut)
}
