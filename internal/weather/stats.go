package weather

import (
	"math"
	"time"

	"github.com/i474232898/plot-weather/internal/dateutil"
)

// Summarize computes min, max and mean of temp_out over the table. When
// several rows share the extreme value the most recent one wins. NaN
// readings are skipped; a table without usable rows yields an empty stat.
func Summarize(t *Table) TemperatureStat {
	var (
		sum      float64
		n        int
		minValue = math.Inf(1)
		maxValue = math.Inf(-1)
	)

	for _, r := range t.rows {
		v := r.TempOut
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
		if v < minValue {
			minValue = v
		}
		if v > maxValue {
			maxValue = v
		}
	}

	if n == 0 {
		return TemperatureStat{}
	}

	// Second pass on exact values so the tie-break does not depend on row order.
	var minAt, maxAt time.Time
	for _, r := range t.rows {
		ts := r.MeasurementTime
		if r.TempOut == minValue && (minAt.IsZero() || ts.After(minAt)) {
			minAt = ts
		}
		if r.TempOut == maxValue && (maxAt.IsZero() || ts.After(maxAt)) {
			maxAt = ts
		}
	}

	avg := sum / float64(n)
	day := minAt.Format(dateutil.LayoutDate)

	return TemperatureStat{
		MeasurementDay: &day,
		Average:        &avg,
		Min:            ExtremumRecord{AppearTime: &minAt, Value: &minValue},
		Max:            ExtremumRecord{AppearTime: &maxAt, Value: &maxValue},
	}
}

// RoundOneDecimal rounds half away from zero to one decimal place.
func RoundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}

// FormatAppearTime renders HH:MM for a single-day window and the full date
// and time otherwise.
func FormatAppearTime(t time.Time, singleDay bool) string {
	if singleDay {
		return t.Format(dateutil.LayoutTimeHM)
	}
	return t.Format(dateutil.LayoutDateTimeHM)
}

// ExtremumView is the display form of an ExtremumRecord.
type ExtremumView struct {
	AppearTime *string  `json:"appear_time"`
	Temper     *float64 `json:"temper"`
}

// StatView is the display form of a TemperatureStat.
type StatView struct {
	Min             ExtremumView `json:"min"`
	Max             ExtremumView `json:"max"`
	Average         *float64     `json:"average_temper"`
	MeasurementDate *string      `json:"measurement_date"`
}

// View formats the stat for display. Values are rounded here and only here.
func (s TemperatureStat) View(singleDay bool) StatView {
	view := StatView{
		Min:             s.Min.view(singleDay),
		Max:             s.Max.view(singleDay),
		MeasurementDate: s.MeasurementDay,
	}
	if s.Average != nil {
		avg := RoundOneDecimal(*s.Average)
		view.Average = &avg
	}
	return view
}

func (r ExtremumRecord) view(singleDay bool) ExtremumView {
	var v ExtremumView
	if r.AppearTime != nil {
		at := FormatAppearTime(*r.AppearTime, singleDay)
		v.AppearTime = &at
	}
	if r.Value != nil {
		val := RoundOneDecimal(*r.Value)
		v.Temper = &val
	}
	return v
}
