package weather

import (
	"time"
)

// Observation is one sensor row. MeasurementTime is a wall-clock time in the
// reporting time zone; the device it belongs to is implied by the series.
type Observation struct {
	MeasurementTime time.Time `json:"measurement_time"`
	TempOut         float64   `json:"temp_out"`
	TempIn          float64   `json:"temp_in"`
	Humid           float64   `json:"humid"`
	Pressure        float64   `json:"pressure"`
}

// Device is a registered sensor. Its numeric id never leaves the store.
type Device struct {
	Name string `json:"name"`
}

// ObservationSeries is the result of one window query for one device.
// Observations is ordered by MeasurementTime ascending and is empty, not nil,
// when the window holds no rows.
type ObservationSeries struct {
	Device       string
	Window       TimeWindow
	Observations []Observation
}

// Len returns the number of rows in the series.
func (s ObservationSeries) Len() int {
	return len(s.Observations)
}

// IsEmpty reports whether the window matched no rows.
func (s ObservationSeries) IsEmpty() bool {
	return len(s.Observations) == 0
}

// ExtremumRecord is an extreme value and the time it was observed.
// Both fields are nil when there was nothing to measure.
type ExtremumRecord struct {
	AppearTime *time.Time
	Value      *float64
}

// TemperatureStat summarizes temp_out over a window.
type TemperatureStat struct {
	// MeasurementDay is the YYYY-MM-DD date of the minimum's record.
	MeasurementDay *string
	Average        *float64
	Min            ExtremumRecord
	Max            ExtremumRecord
}

// IsEmpty reports whether the stat was computed over zero rows.
func (s TemperatureStat) IsEmpty() bool {
	return s.Min.Value == nil
}

// DayStat is the statistics of a single calendar day.
type DayStat struct {
	Date     time.Time
	RecCount int
	Stat     TemperatureStat
}

// LatestReport is the newest observation of a device together with the
// statistics of its day and of the day before.
type LatestReport struct {
	Device      string
	Observation *Observation
	Today       DayStat
	Before      DayStat
}

// Comparison holds a month series and the same month one year earlier.
// Previous is empty, and was never queried, when Current is empty.
type Comparison struct {
	Current  ObservationSeries
	Previous ObservationSeries
}
