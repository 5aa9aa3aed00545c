package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/plot-weather/internal/weather"
)

func obsAt(t time.Time, tempOut float64) weather.Observation {
	return weather.Observation{MeasurementTime: t, TempOut: tempOut, TempIn: 20, Humid: 50, Pressure: 1010}
}

func TestMemoryStoreHalfOpenRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.UTC)
	s.AddDevice("esp_1")

	day := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append("esp_1",
		obsAt(day.Add(-time.Second), 1),
		obsAt(day, 2),
		obsAt(day.Add(23*time.Hour+59*time.Minute), 3),
		obsAt(day.AddDate(0, 0, 1), 4),
	))

	rows, err := s.Observations(ctx, "esp_1", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2.0, rows[0].TempOut)
	assert.Equal(t, 3.0, rows[1].TempOut)
}

func TestMemoryStoreKeepsRowsOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.UTC)
	s.AddDevice("esp_1")

	base := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append("esp_1", obsAt(base.Add(2*time.Hour), 3), obsAt(base, 1)))
	require.NoError(t, s.Append("esp_1", obsAt(base.Add(time.Hour), 2)))

	rows, err := s.Observations(ctx, "esp_1", base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, want := range []float64{1, 2, 3} {
		assert.Equal(t, want, rows[i].TempOut)
	}

	last, err := s.LastObservation(ctx, "esp_1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 3.0, last.TempOut)
}

func TestMemoryStoreUnknownDevice(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	require.ErrorIs(t, s.Append("nope", obsAt(time.Now(), 1)), ErrUnknownDevice)

	rows, err := s.Observations(ctx, "nope", time.Time{}, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	first, err := s.FirstDate(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, first)

	exists, err := s.DeviceExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreMonthsAndDates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.UTC)
	s.AddDevice("esp_2")
	s.AddDevice("esp_1")
	s.AddDevice("esp_2")

	require.NoError(t, s.Append("esp_1",
		obsAt(time.Date(2023, 5, 3, 10, 0, 0, 0, time.UTC), 1),
		obsAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), 1),
		obsAt(time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC), 1),
		obsAt(time.Date(2024, 6, 2, 23, 0, 0, 0, time.UTC), 1),
	))

	months, err := s.DistinctMonths(ctx, "esp_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06", "2024-05", "2023-05"}, months)

	first, err := s.FirstDate(ctx, "esp_1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 5, 3, 0, 0, 0, 0, time.UTC), *first)

	last, err := s.LastDate(ctx, "esp_1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), *last)

	devices, err := s.ListDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []weather.Device{{Name: "esp_2"}, {Name: "esp_1"}}, devices)
}
