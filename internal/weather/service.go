package weather

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/i474232898/plot-weather/internal/dateutil"
)

// Options configures a Service.
type Options struct {
	// Location is the reporting time zone all windows are built in.
	Location *time.Location
	Debug    bool
}

// Service builds query windows, runs them against the store and
// summarizes the results. It holds no per-request state.
type Service struct {
	store    Store
	registry DeviceRegistry
	loc      *time.Location
	debug    bool
}

// NewService creates a new Service.
func NewService(store Store, registry DeviceRegistry, opts Options) *Service {
	return &Service{
		store:    store,
		registry: registry,
		loc:      orUTC(opts.Location),
		debug:    opts.Debug,
	}
}

// Location returns the reporting time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) debugf(format string, args ...any) {
	if s.debug {
		log.Printf("DEBUG: "+format, args...)
	}
}

// Devices lists registered devices.
func (s *Service) Devices(ctx context.Context) ([]Device, error) {
	return s.registry.ListDevices(ctx)
}

// DeviceExists reports whether name is a registered device.
func (s *Service) DeviceExists(ctx context.Context, name string) (bool, error) {
	return s.registry.DeviceExists(ctx, name)
}

// FirstRegisteredDay returns the first day holding data, or nil.
func (s *Service) FirstRegisteredDay(ctx context.Context, device string) (*time.Time, error) {
	return s.store.FirstDate(ctx, device)
}

// LastRegisteredDay returns the last day holding data, or nil.
func (s *Service) LastRegisteredDay(ctx context.Context, device string) (*time.Time, error) {
	return s.store.LastDate(ctx, device)
}

// ResolveToday returns the day window for asOf, or for the device's last
// registered day when it has no data on or after asOf.
func (s *Service) ResolveToday(ctx context.Context, device string, asOf time.Time) (TimeWindow, error) {
	day := startOfDay(asOf.In(s.loc), s.loc)
	last, err := s.store.LastDate(ctx, device)
	if err != nil {
		return TimeWindow{}, err
	}
	if last != nil && startOfDay(*last, s.loc).Before(day) {
		s.debugf("%s has no data on %s, falling back to %s", device,
			day.Format(dateutil.LayoutDate), last.Format(dateutil.LayoutDate))
		day = startOfDay(*last, s.loc)
	}
	return ResolveToday(day, s.loc), nil
}

// FetchSeries runs one half-open window query.
func (s *Service) FetchSeries(ctx context.Context, device string, w TimeWindow) (ObservationSeries, error) {
	rows, err := s.store.Observations(ctx, device, w.From, w.To)
	if err != nil {
		return ObservationSeries{}, err
	}
	if rows == nil {
		rows = []Observation{}
	}
	s.debugf("%s %s: %d rows", device, w, len(rows))
	return ObservationSeries{Device: device, Window: w, Observations: rows}, nil
}

// TodaySeries fetches the day resolved by ResolveToday.
func (s *Service) TodaySeries(ctx context.Context, device string, asOf time.Time) (ObservationSeries, error) {
	w, err := s.ResolveToday(ctx, device, asOf)
	if err != nil {
		return ObservationSeries{}, err
	}
	return s.FetchSeries(ctx, device, w)
}

// DaySeries fetches exactly the calendar day of day, without fallback.
func (s *Service) DaySeries(ctx context.Context, device string, day time.Time) (ObservationSeries, error) {
	return s.FetchSeries(ctx, device, ResolveToday(day.In(s.loc), s.loc))
}

// MonthSeries fetches a YYYY-MM month.
func (s *Service) MonthSeries(ctx context.Context, device, yearMonth string) (ObservationSeries, error) {
	m, err := NewCalendarMonth(yearMonth)
	if err != nil {
		return ObservationSeries{}, err
	}
	return s.FetchSeries(ctx, device, ResolveCalendarMonth(m, s.loc))
}

// DayRangeSeries fetches endDate and the beforeDays days preceding it.
func (s *Service) DayRangeSeries(ctx context.Context, device, endDate string, beforeDays int) (ObservationSeries, error) {
	r, err := NewDayRange(endDate, beforeDays, s.loc)
	if err != nil {
		return ObservationSeries{}, err
	}
	return s.FetchSeries(ctx, device, ResolveDayRange(r, s.loc))
}

// CompareWithPreviousYear fetches a month and, only when it holds data, the
// same month one year earlier.
func (s *Service) CompareWithPreviousYear(ctx context.Context, device, yearMonth string) (Comparison, error) {
	p, err := NewPreviousYearMonth(yearMonth)
	if err != nil {
		return Comparison{}, err
	}

	current, err := s.FetchSeries(ctx, device, ResolveCalendarMonth(CalendarMonth{Year: p.Year, Month: p.Month}, s.loc))
	if err != nil {
		return Comparison{}, err
	}

	prevWindow := ResolvePreviousYearMonth(p, s.loc)
	if current.IsEmpty() {
		return Comparison{
			Current:  current,
			Previous: ObservationSeries{Device: device, Window: prevWindow, Observations: []Observation{}},
		}, nil
	}

	previous, err := s.FetchSeries(ctx, device, prevWindow)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Current: current, Previous: previous}, nil
}

// GroupByMonth returns the distinct YYYY-MM months holding data, newest first.
func (s *Service) GroupByMonth(ctx context.Context, device string) ([]string, error) {
	months, err := s.store.DistinctMonths(ctx, device)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(months))
	out := make([]string, 0, len(months))
	for _, m := range months {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// YearsWithPriorYearData returns the months m for which the same month one
// year earlier also holds data, newest first.
func (s *Service) YearsWithPriorYearData(ctx context.Context, device string) ([]string, error) {
	months, err := s.GroupByMonth(ctx, device)
	if err != nil {
		return nil, err
	}

	have := make(map[string]struct{}, len(months))
	for _, m := range months {
		have[m] = struct{}{}
	}

	out := make([]string, 0)
	for _, m := range months {
		prev, err := dateutil.PreviousYear(m)
		if err != nil {
			log.Printf("WARN: skipping malformed month %q for %s: %v", m, device, err)
			continue
		}
		if _, ok := have[prev]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// DailyStat summarizes temp_out over one calendar day.
func (s *Service) DailyStat(ctx context.Context, device string, day time.Time) (DayStat, error) {
	series, err := s.DaySeries(ctx, device, day)
	if err != nil {
		return DayStat{}, err
	}
	return DayStat{
		Date:     series.Window.From,
		RecCount: series.Len(),
		Stat:     Summarize(NewTable(series)),
	}, nil
}

// LatestWithStats returns the newest observation of a device with the
// statistics of its day and of the previous day. Observation is nil when
// the device has no data.
func (s *Service) LatestWithStats(ctx context.Context, device string) (LatestReport, error) {
	report := LatestReport{Device: device}

	obs, err := s.store.LastObservation(ctx, device)
	if err != nil {
		return LatestReport{}, err
	}
	if obs == nil {
		return report, nil
	}
	report.Observation = obs

	day := startOfDay(obs.MeasurementTime.In(s.loc), s.loc)
	if report.Today, err = s.DailyStat(ctx, device, day); err != nil {
		return LatestReport{}, err
	}
	if report.Before, err = s.DailyStat(ctx, device, day.AddDate(0, 0, -1)); err != nil {
		return LatestReport{}, err
	}
	return report, nil
}
