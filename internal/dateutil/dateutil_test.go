package dateutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndOfMonth(t *testing.T) {
	cases := map[string]int{
		"2024-02": 29,
		"2023-02": 28,
		"2023-12": 31,
		"2023-04": 30,
		"2000-02": 29,
		"1900-02": 28,
	}
	for ym, want := range cases {
		got, err := EndOfMonth(ym)
		require.NoError(t, err, ym)
		assert.Equal(t, want, got, ym)
	}
}

func TestNextCalendarMonthTwelveTimesAdvancesOneYear(t *testing.T) {
	ym := "2023-05"
	for i := 0; i < 12; i++ {
		var err error
		ym, err = NextCalendarMonth(ym)
		require.NoError(t, err)
	}
	assert.Equal(t, "2024-05", ym)

	d := "2023-12-01"
	for i := 0; i < 12; i++ {
		var err error
		d, err = NextCalendarMonth(d)
		require.NoError(t, err)
	}
	assert.Equal(t, "2024-12-01", d)
}

func TestNextCalendarMonthKeepsShape(t *testing.T) {
	got, err := NextCalendarMonth("2023-12")
	require.NoError(t, err)
	assert.Equal(t, "2024-01", got)

	got, err = NextCalendarMonth("2023-12-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", got)

	got, err = NextCalendarMonth("2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", got)

	_, err = NextCalendarMonth("2024/01")
	var dfe *DateFormatError
	require.ErrorAs(t, err, &dfe)
}

func TestAddDays(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"2024-03-10", -7, "2024-03-03"},
		{"2024-03-01", -1, "2024-02-29"},
		{"2023-12-31", 1, "2024-01-01"},
		{"2024-01-01", 0, "2024-01-01"},
	}
	for _, tc := range cases {
		got, err := AddDays(tc.in, tc.n)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %+d", tc.in, tc.n)
	}
}

func TestPreviousYear(t *testing.T) {
	got, err := PreviousYear("2024-02")
	require.NoError(t, err)
	assert.Equal(t, "2023-02", got)

	got, err = PreviousYear("2000-01")
	require.NoError(t, err)
	assert.Equal(t, "1999-01", got)
}

func TestParseRejectsMalformedInput(t *testing.T) {
	bad := []string{"2024-3-1", "2023-02-30", "20240301", "", "2024-13-01", "2024-03-01T00:00"}
	for _, s := range bad {
		_, err := ParseDate(s, nil)
		var dfe *DateFormatError
		require.True(t, errors.As(err, &dfe), "expected DateFormatError for %q", s)
		assert.Equal(t, s, dfe.Input)
		assert.False(t, CheckDate(s))
	}

	_, err := ParseYearMonth("2024-13", nil)
	require.Error(t, err)
	assert.True(t, IsYearMonthShape("2024-13"))
	assert.False(t, IsYearMonthShape("2024-1"))
}

func TestParseDateUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	got, err := ParseDate("2024-06-15", tokyo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, tokyo), got)

	dt, err := ParseDateTime("2024-06-15 18:30", tokyo)
	require.NoError(t, err)
	assert.Equal(t, 18, dt.Hour())
	assert.Equal(t, 30, dt.Minute())
}

func TestCheckTime(t *testing.T) {
	assert.True(t, CheckTime("09:05", false))
	assert.True(t, CheckTime("23:59:59", true))
	assert.False(t, CheckTime("9:05", false))
	assert.False(t, CheckTime("24:00", false))
	assert.False(t, CheckTime("12:00", true))
}

func TestCompareAndDiff(t *testing.T) {
	c, err := CompareDates("2024-03-01", "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, GT, c)

	c, err = CompareDates("2024-03-02", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, LT, c)

	c, err = CompareDates("2024-03-02", "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, EQ, c)

	d, err := DiffInDays("2024-02-28", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2, d)
}

func TestWeekdayLabels(t *testing.T) {
	assert.Equal(t, "月", WeekdayName(0, LangJA))
	assert.Equal(t, "Sun", WeekdayName(6, LangEN))
	assert.Equal(t, "", WeekdayName(7, LangEN))

	// 2022-09-09 was a Friday.
	day := time.Date(2022, 9, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 4, WeekdayIndex(day))
	assert.Equal(t, "2022年09月09日 (金)", DateWithWeekday(day, LangJA))
	assert.Equal(t, "2022-09-09 (Fri)", DateWithWeekday(day, LangEN))

	label, err := DayLabel("2022-09-09", false, LangJA)
	require.NoError(t, err)
	assert.Equal(t, "9 (金)", label)

	label, err = DayLabel("2022-09-09", true, LangEN)
	require.NoError(t, err)
	assert.Equal(t, "9/09 (Fri)", label)
}
