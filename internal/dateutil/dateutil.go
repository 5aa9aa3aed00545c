// Package dateutil holds the calendar helpers used to build query windows
// and chart labels. All "N days before" arithmetic here is calendar-day
// arithmetic, never a fixed number of hours.
package dateutil

import (
	"fmt"
	"regexp"
	"time"
)

const (
	LayoutDate       = "2006-01-02"
	LayoutYearMonth  = "2006-01"
	LayoutDateTime   = "2006-01-02 15:04:05"
	LayoutDateTimeHM = "2006-01-02 15:04"
	LayoutTimeHM     = "15:04"
	LayoutTimeHMS    = "15:04:05"
	LayoutJPDate     = "2006年01月02日"
)

// Lang selects the weekday label set.
type Lang string

const (
	LangJA Lang = "ja"
	LangEN Lang = "en"
)

var weekdayNames = map[Lang][7]string{
	LangJA: {"月", "火", "水", "木", "金", "土", "日"},
	LangEN: {"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
}

// Comparison is the result of CompareDates.
type Comparison int

const (
	// LT means the second date is before the first one.
	LT Comparison = iota - 1
	// EQ means both dates are the same day.
	EQ
	// GT means the second date is after the first one.
	GT
)

func (c Comparison) String() string {
	switch c {
	case LT:
		return "LT"
	case EQ:
		return "EQ"
	default:
		return "GT"
	}
}

// DateFormatError reports a string that does not match the expected layout
// or names a non-existent calendar date.
type DateFormatError struct {
	Input  string
	Layout string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("invalid date %q: expected %s", e.Input, e.Layout)
}

var (
	datePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	yearMonthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// IsYearMonthShape reports whether s looks like YYYY-MM, regardless of
// whether the month number is valid.
func IsYearMonthShape(s string) bool {
	return yearMonthPattern.MatchString(s)
}

func parse(s, layout string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, &DateFormatError{Input: s, Layout: layout}
	}
	return t, nil
}

// ParseDate parses a YYYY-MM-DD string as midnight in loc (UTC when nil).
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if !datePattern.MatchString(s) {
		return time.Time{}, &DateFormatError{Input: s, Layout: LayoutDate}
	}
	return parse(s, LayoutDate, loc)
}

// ParseYearMonth parses a YYYY-MM string as the first day of that month.
func ParseYearMonth(s string, loc *time.Location) (time.Time, error) {
	if !yearMonthPattern.MatchString(s) {
		return time.Time{}, &DateFormatError{Input: s, Layout: LayoutYearMonth}
	}
	return parse(s, LayoutYearMonth, loc)
}

// ParseDateTime accepts "YYYY-MM-DD HH:MM:SS" and "YYYY-MM-DD HH:MM".
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := parse(s, LayoutDateTime, loc); err == nil {
		return t, nil
	}
	return parse(s, LayoutDateTimeHM, loc)
}

// CheckDate reports whether s is a valid YYYY-MM-DD calendar date.
func CheckDate(s string) bool {
	_, err := ParseDate(s, time.UTC)
	return err == nil
}

// CheckTime reports whether s is a valid HH:MM (or HH:MM:SS when
// withSeconds is set) time of day.
func CheckTime(s string, withSeconds bool) bool {
	layout := LayoutTimeHM
	if withSeconds {
		layout = LayoutTimeHMS
	}
	if len(s) != len(layout) {
		return false
	}
	_, err := time.Parse(layout, s)
	return err == nil
}

// AddDays shifts an ISO date by n calendar days (n may be negative).
func AddDays(isoDate string, n int) (string, error) {
	t, err := ParseDate(isoDate, time.UTC)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(LayoutDate), nil
}

// NextCalendarMonth rolls a YYYY-MM or YYYY-MM-DD string forward by one
// month, keeping its shape. December rolls to January of the next year.
// A day that does not exist in the next month is clamped to its last day.
func NextCalendarMonth(s string) (string, error) {
	switch {
	case yearMonthPattern.MatchString(s):
		t, err := parse(s, LayoutYearMonth, time.UTC)
		if err != nil {
			return "", err
		}
		return t.AddDate(0, 1, 0).Format(LayoutYearMonth), nil
	case datePattern.MatchString(s):
		t, err := parse(s, LayoutDate, time.UTC)
		if err != nil {
			return "", err
		}
		first := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		day := min(t.Day(), daysIn(first))
		return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC).Format(LayoutDate), nil
	default:
		return "", &DateFormatError{Input: s, Layout: LayoutYearMonth + " or " + LayoutDate}
	}
}

// PreviousYear returns the same month one year earlier.
func PreviousYear(yearMonth string) (string, error) {
	t, err := ParseYearMonth(yearMonth, time.UTC)
	if err != nil {
		return "", err
	}
	return t.AddDate(-1, 0, 0).Format(LayoutYearMonth), nil
}

// EndOfMonth returns the last day number of the month.
func EndOfMonth(yearMonth string) (int, error) {
	t, err := ParseYearMonth(yearMonth, time.UTC)
	if err != nil {
		return 0, err
	}
	return daysIn(t), nil
}

// daysIn expects the first day of a month.
func daysIn(first time.Time) int {
	return first.AddDate(0, 1, -1).Day()
}

// CompareDates compares two ISO dates: GT when b is after a.
func CompareDates(a, b string) (Comparison, error) {
	ta, err := ParseDate(a, time.UTC)
	if err != nil {
		return EQ, err
	}
	tb, err := ParseDate(b, time.UTC)
	if err != nil {
		return EQ, err
	}
	switch {
	case tb.After(ta):
		return GT, nil
	case tb.Before(ta):
		return LT, nil
	default:
		return EQ, nil
	}
}

// DiffInDays returns the number of calendar days from a to b.
func DiffInDays(a, b string) (int, error) {
	ta, err := ParseDate(a, time.UTC)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDate(b, time.UTC)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// WeekdayIndex maps t to 0 (Monday) .. 6 (Sunday).
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekdayName returns the label for a Monday-based weekday index, or ""
// when idx is out of range. Unknown languages fall back to English.
func WeekdayName(idx int, lang Lang) string {
	if idx < 0 || idx > 6 {
		return ""
	}
	names, ok := weekdayNames[lang]
	if !ok {
		names = weekdayNames[LangEN]
	}
	return names[idx]
}

// FormatJPDate renders t as 2006年01月02日.
func FormatJPDate(t time.Time) string {
	return t.Format(LayoutJPDate)
}

// DateWithWeekday renders t with its weekday, e.g. "2022年09月09日 (金)" or
// "2022-09-09 (Fri)".
func DateWithWeekday(t time.Time, lang Lang) string {
	date := t.Format(LayoutDate)
	if lang == LangJA {
		date = FormatJPDate(t)
	}
	return fmt.Sprintf("%s (%s)", date, WeekdayName(WeekdayIndex(t), lang))
}

// DayLabel builds a short axis label from an ISO date: "9 (金)" or, with
// withMonth, "9/09 (金)".
func DayLabel(isoDate string, withMonth bool, lang Lang) (string, error) {
	t, err := ParseDate(isoDate, time.UTC)
	if err != nil {
		return "", err
	}
	wd := WeekdayName(WeekdayIndex(t), lang)
	if withMonth {
		return fmt.Sprintf("%d/%02d (%s)", int(t.Month()), t.Day(), wd), nil
	}
	return fmt.Sprintf("%d (%s)", t.Day(), wd), nil
}
