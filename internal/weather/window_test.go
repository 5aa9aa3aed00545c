package weather

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/plot-weather/internal/dateutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDayRangeBounds(t *testing.T) {
	r, err := NewDayRange("2024-03-10", 7, time.UTC)
	require.NoError(t, err)

	w := ResolveDayRange(r, time.UTC)
	assert.Equal(t, day(2024, 3, 3), w.From)
	assert.Equal(t, day(2024, 3, 11), w.To)
	assert.Equal(t, 8, w.Days())
	assert.False(t, w.SingleDay())
}

func TestDayRangeCrossesMonthAndYear(t *testing.T) {
	r, err := NewDayRange("2024-01-02", 3, time.UTC)
	require.NoError(t, err)

	w := ResolveDayRange(r, time.UTC)
	assert.Equal(t, day(2023, 12, 30), w.From)
	assert.Equal(t, day(2024, 1, 3), w.To)
}

func TestDayRangeRejectsUnsupportedLength(t *testing.T) {
	for _, n := range []int{0, 4, 5, 6, 8, -1} {
		_, err := NewDayRange("2024-03-10", n, time.UTC)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidWindow), "before_days=%d", n)

		var iwp *InvalidWindowParameterError
		require.ErrorAs(t, err, &iwp)
		assert.Equal(t, "before_days", iwp.Param)
	}

	_, err := NewDayRange("2024-3-10", 7, time.UTC)
	var dfe *dateutil.DateFormatError
	require.ErrorAs(t, err, &dfe)
	assert.True(t, IsClientError(err))
}

func TestTodayBoundsAreOneCalendarDay(t *testing.T) {
	w := ResolveToday(time.Date(2024, 6, 15, 17, 45, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, day(2024, 6, 15), w.From)
	assert.Equal(t, day(2024, 6, 16), w.To)
	assert.True(t, w.SingleDay())
	assert.True(t, w.Contains(day(2024, 6, 15)))
	assert.False(t, w.Contains(day(2024, 6, 16)))
}

func TestTodayAcrossDSTChange(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	w := ResolveToday(time.Date(2024, 3, 10, 12, 0, 0, 0, ny), ny)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, ny), w.To)
	assert.Equal(t, 23*time.Hour, w.To.Sub(w.From))
	assert.Equal(t, 1, w.Days())
}

func TestCalendarMonthRollsOver(t *testing.T) {
	m, err := NewCalendarMonth("2023-12")
	require.NoError(t, err)

	w := ResolveCalendarMonth(m, time.UTC)
	assert.Equal(t, day(2023, 12, 1), w.From)
	assert.Equal(t, day(2024, 1, 1), w.To)

	feb, err := NewCalendarMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, 29, ResolveCalendarMonth(feb, time.UTC).Days())
}

func TestCalendarMonthValidation(t *testing.T) {
	_, err := NewCalendarMonth("2024-13")
	assert.True(t, errors.Is(err, ErrInvalidWindow))

	_, err = NewCalendarMonth("2024-00")
	assert.True(t, errors.Is(err, ErrInvalidWindow))

	_, err = NewCalendarMonth("202401")
	var dfe *dateutil.DateFormatError
	assert.ErrorAs(t, err, &dfe)
	assert.False(t, errors.Is(err, ErrDataAccess))
}

func TestPreviousYearMonth(t *testing.T) {
	p, err := NewPreviousYearMonth("2024-02")
	require.NoError(t, err)

	w := ResolvePreviousYearMonth(p, time.UTC)
	assert.Equal(t, day(2023, 2, 1), w.From)
	assert.Equal(t, day(2023, 3, 1), w.To)
	assert.Equal(t, "2023-02", p.String())
}

func TestResolveDispatch(t *testing.T) {
	windows := []Window{
		Today{Date: day(2024, 6, 15)},
		CalendarMonth{Year: 2024, Month: time.June},
		DayRange{EndDate: day(2024, 6, 15), BeforeDays: 2},
		PreviousYearMonth{Year: 2024, Month: time.June},
	}
	for _, win := range windows {
		w := Resolve(win, time.UTC)
		assert.True(t, w.From.Before(w.To), win.String())
		assert.Equal(t, 0, w.From.Hour())
	}
}
