package weather

import (
	"fmt"
	"math"
	"time"
)

// Column names of the fixed observation schema.
const (
	ColMeasurementTime = "measurement_time"
	ColTempOut         = "temp_out"
	ColTempIn          = "temp_in"
	ColHumid           = "humid"
	ColPressure        = "pressure"
)

// Columns is the schema in storage order.
var Columns = []string{ColMeasurementTime, ColTempOut, ColTempIn, ColHumid, ColPressure}

// Table is an observation series indexed by measurement time. Row order is
// the storage order (ascending) unless the table came from Descending.
type Table struct {
	window TimeWindow
	rows   []Observation
}

// NewTable builds a table over a copy of the series rows.
func NewTable(series ObservationSeries) *Table {
	rows := make([]Observation, len(series.Observations))
	copy(rows, series.Observations)
	return &Table{window: series.Window, rows: rows}
}

// Window returns the window the rows were selected with.
func (t *Table) Window() TimeWindow {
	return t.window
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns the i-th observation.
func (t *Table) Row(i int) Observation {
	return t.rows[i]
}

// Index returns the measurement times in row order.
func (t *Table) Index() []time.Time {
	idx := make([]time.Time, len(t.rows))
	for i, r := range t.rows {
		idx[i] = r.MeasurementTime
	}
	return idx
}

// Column returns the values of a numeric column in row order.
func (t *Table) Column(name string) ([]float64, error) {
	pick, err := columnAccessor(name)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(t.rows))
	for i, r := range t.rows {
		values[i] = pick(r)
	}
	return values, nil
}

// Bounds returns the smallest and largest non-NaN value of a numeric column.
// ok is false when the column holds no usable value.
func (t *Table) Bounds(name string) (lo, hi float64, ok bool, err error) {
	values, err := t.Column(name)
	if err != nil {
		return 0, 0, false, err
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	return lo, hi, ok, nil
}

func columnAccessor(name string) (func(Observation) float64, error) {
	switch name {
	case ColTempOut:
		return func(o Observation) float64 { return o.TempOut }, nil
	case ColTempIn:
		return func(o Observation) float64 { return o.TempIn }, nil
	case ColHumid:
		return func(o Observation) float64 { return o.Humid }, nil
	case ColPressure:
		return func(o Observation) float64 { return o.Pressure }, nil
	default:
		return nil, fmt.Errorf("unknown numeric column %q", name)
	}
}

// Descending returns a copy with rows in reverse order.
func (t *Table) Descending() *Table {
	rows := make([]Observation, len(t.rows))
	for i, r := range t.rows {
		rows[len(t.rows)-1-i] = r
	}
	return &Table{window: t.window, rows: rows}
}

// Restrict returns the rows measured on the calendar day of day.
func (t *Table) Restrict(day time.Time) *Table {
	w := ResolveToday(day, day.Location())
	rows := make([]Observation, 0)
	for _, r := range t.rows {
		if w.Contains(r.MeasurementTime) {
			rows = append(rows, r)
		}
	}
	return &Table{window: w, rows: rows}
}

// FirstTime returns the earliest measurement time, or the zero time for an
// empty table.
func (t *Table) FirstTime() time.Time {
	var first time.Time
	for _, r := range t.rows {
		if first.IsZero() || r.MeasurementTime.Before(first) {
			first = r.MeasurementTime
		}
	}
	return first
}

// LastTime returns the latest measurement time, or the zero time for an
// empty table.
func (t *Table) LastTime() time.Time {
	var last time.Time
	for _, r := range t.rows {
		if r.MeasurementTime.After(last) {
			last = r.MeasurementTime
		}
	}
	return last
}
