package weather_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/plot-weather/internal/store"
	"github.com/i474232898/plot-weather/internal/weather"
)

// countingStore records how many range queries reach the store.
type countingStore struct {
	*store.MemoryStore
	queries []weather.TimeWindow
	fail    error
}

func (c *countingStore) Observations(ctx context.Context, device string, from, to time.Time) ([]weather.Observation, error) {
	c.queries = append(c.queries, weather.TimeWindow{From: from, To: to})
	if c.fail != nil {
		return nil, c.fail
	}
	return c.MemoryStore.Observations(ctx, device, from, to)
}

func ts(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func obs(t time.Time, tempOut float64) weather.Observation {
	return weather.Observation{MeasurementTime: t, TempOut: tempOut, TempIn: 21, Humid: 55, Pressure: 1012}
}

func newService(t *testing.T, rows ...weather.Observation) (*weather.Service, *countingStore) {
	t.Helper()

	mem := store.NewMemoryStore(time.UTC)
	mem.AddDevice("esp_1")
	mem.AddDevice("esp_2")
	require.NoError(t, mem.Append("esp_1", rows...))

	cs := &countingStore{MemoryStore: mem}
	return weather.NewService(cs, mem, weather.Options{Location: time.UTC}), cs
}

func TestTodayScenario(t *testing.T) {
	svc, _ := newService(t,
		obs(ts(2024, 6, 15, 6, 0), 18.0),
		obs(ts(2024, 6, 15, 12, 0), 25.0),
		obs(ts(2024, 6, 15, 18, 0), 25.0),
	)
	ctx := context.Background()

	series, err := svc.TodaySeries(ctx, "esp_1", ts(2024, 6, 15, 20, 0))
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())
	assert.Equal(t, ts(2024, 6, 15, 0, 0), series.Window.From)
	assert.Equal(t, ts(2024, 6, 16, 0, 0), series.Window.To)

	stat := weather.Summarize(weather.NewTable(series))
	assert.Equal(t, 18.0, *stat.Min.Value)
	assert.Equal(t, ts(2024, 6, 15, 6, 0), *stat.Min.AppearTime)
	assert.Equal(t, 25.0, *stat.Max.Value)
	assert.Equal(t, ts(2024, 6, 15, 18, 0), *stat.Max.AppearTime)
	assert.InDelta(t, 22.666666, *stat.Average, 1e-5)
}

func TestResolveTodayFallsBackToLastDay(t *testing.T) {
	svc, _ := newService(t, obs(ts(2024, 6, 10, 8, 0), 20))
	ctx := context.Background()

	w, err := svc.ResolveToday(ctx, "esp_1", ts(2024, 6, 15, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, ts(2024, 6, 10, 0, 0), w.From)

	// A device with no data keeps the requested day.
	w, err = svc.ResolveToday(ctx, "esp_2", ts(2024, 6, 15, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, ts(2024, 6, 15, 0, 0), w.From)

	// Exact day queries never fall back.
	series, err := svc.DaySeries(ctx, "esp_1", ts(2024, 6, 15, 9, 0))
	require.NoError(t, err)
	assert.True(t, series.IsEmpty())
}

func TestEmptyWindowIsNotAnError(t *testing.T) {
	svc, _ := newService(t, obs(ts(2024, 6, 15, 6, 0), 18))

	series, err := svc.MonthSeries(context.Background(), "esp_1", "2023-01")
	require.NoError(t, err)
	assert.NotNil(t, series.Observations)
	assert.Equal(t, 0, series.Len())
	assert.True(t, weather.Summarize(weather.NewTable(series)).IsEmpty())
}

func TestFetchIsIdempotent(t *testing.T) {
	svc, _ := newService(t,
		obs(ts(2024, 3, 3, 0, 0), 1),
		obs(ts(2024, 3, 10, 23, 59), 2),
		obs(ts(2024, 3, 11, 0, 0), 3),
	)
	ctx := context.Background()

	first, err := svc.DayRangeSeries(ctx, "esp_1", "2024-03-10", 7)
	require.NoError(t, err)
	second, err := svc.DayRangeSeries(ctx, "esp_1", "2024-03-10", 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, first.Len())
}

func TestDayRangeRejectsBadLength(t *testing.T) {
	svc, cs := newService(t)

	_, err := svc.DayRangeSeries(context.Background(), "esp_1", "2024-03-10", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, weather.ErrInvalidWindow))
	assert.True(t, weather.IsClientError(err))
	assert.Empty(t, cs.queries)
}

func TestCompareSkipsPreviousYearWhenCurrentEmpty(t *testing.T) {
	svc, cs := newService(t, obs(ts(2023, 6, 10, 12, 0), 22))
	ctx := context.Background()

	cmp, err := svc.CompareWithPreviousYear(ctx, "esp_1", "2024-06")
	require.NoError(t, err)
	assert.True(t, cmp.Current.IsEmpty())
	assert.True(t, cmp.Previous.IsEmpty())
	assert.Len(t, cs.queries, 1)
	assert.Equal(t, ts(2024, 6, 1, 0, 0), cs.queries[0].From)
}

func TestCompareFetchesBothMonths(t *testing.T) {
	svc, cs := newService(t,
		obs(ts(2023, 6, 10, 12, 0), 22),
		obs(ts(2024, 6, 10, 12, 0), 24),
	)

	cmp, err := svc.CompareWithPreviousYear(context.Background(), "esp_1", "2024-06")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp.Current.Len())
	assert.Equal(t, 1, cmp.Previous.Len())
	require.Len(t, cs.queries, 2)
	assert.Equal(t, ts(2023, 6, 1, 0, 0), cs.queries[1].From)
	assert.Equal(t, ts(2023, 7, 1, 0, 0), cs.queries[1].To)
}

func TestGroupByMonthAndPriorYear(t *testing.T) {
	svc, _ := newService(t,
		obs(ts(2023, 5, 1, 0, 0), 1),
		obs(ts(2023, 6, 2, 0, 0), 1),
		obs(ts(2024, 5, 3, 0, 0), 1),
		obs(ts(2024, 5, 20, 0, 0), 1),
		obs(ts(2024, 7, 1, 0, 0), 1),
	)
	ctx := context.Background()

	months, err := svc.GroupByMonth(ctx, "esp_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-07", "2024-05", "2023-06", "2023-05"}, months)

	prior, err := svc.YearsWithPriorYearData(ctx, "esp_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-05"}, prior)
}

func TestPriorYearOnlyFromOlderData(t *testing.T) {
	// 2024-05 has no 2023-05 counterpart, so nothing qualifies even though
	// 2025-05 would name 2024-05 as its prior year.
	svc, _ := newService(t, obs(ts(2024, 5, 3, 0, 0), 1))

	prior, err := svc.YearsWithPriorYearData(context.Background(), "esp_1")
	require.NoError(t, err)
	assert.Empty(t, prior)
}

func TestLatestWithStats(t *testing.T) {
	svc, _ := newService(t,
		obs(ts(2024, 6, 14, 3, 0), 11),
		obs(ts(2024, 6, 14, 15, 0), 27),
		obs(ts(2024, 6, 15, 6, 0), 18),
		obs(ts(2024, 6, 15, 12, 0), 25),
	)
	ctx := context.Background()

	report, err := svc.LatestWithStats(ctx, "esp_1")
	require.NoError(t, err)
	require.NotNil(t, report.Observation)
	assert.Equal(t, ts(2024, 6, 15, 12, 0), report.Observation.MeasurementTime)
	assert.Equal(t, 2, report.Today.RecCount)
	assert.Equal(t, 18.0, *report.Today.Stat.Min.Value)
	assert.Equal(t, ts(2024, 6, 14, 0, 0), report.Before.Date)
	assert.Equal(t, 27.0, *report.Before.Stat.Max.Value)

	empty, err := svc.LatestWithStats(ctx, "esp_2")
	require.NoError(t, err)
	assert.Nil(t, empty.Observation)
}

func TestDataAccessErrorPassesThrough(t *testing.T) {
	svc, cs := newService(t)
	cs.fail = &weather.DataAccessError{Op: "observations", Err: errors.New("connection refused")}

	_, err := svc.MonthSeries(context.Background(), "esp_1", "2024-06")
	require.Error(t, err)
	assert.True(t, errors.Is(err, weather.ErrDataAccess))
	assert.False(t, weather.IsClientError(err))
	assert.Same(t, cs.fail, err)
}
