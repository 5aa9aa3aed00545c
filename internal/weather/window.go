package weather

import (
	"fmt"
	"strconv"
	"time"

	"github.com/i474232898/plot-weather/internal/dateutil"
)

// AllowedBeforeDays lists the accepted lengths of a DayRange look-back.
var AllowedBeforeDays = []int{1, 2, 3, 7}

// Window identifies which period a query covers. The concrete variants are
// Today, CalendarMonth, DayRange and PreviousYearMonth.
type Window interface {
	window()
	String() string
}

// Today is a single calendar day.
type Today struct {
	Date time.Time
}

// CalendarMonth is a whole month.
type CalendarMonth struct {
	Year  int
	Month time.Month
}

// DayRange covers BeforeDays days before EndDate plus EndDate itself.
type DayRange struct {
	EndDate    time.Time
	BeforeDays int
}

// PreviousYearMonth is the month one year before Year/Month.
type PreviousYearMonth struct {
	Year  int
	Month time.Month
}

func (Today) window()             {}
func (CalendarMonth) window()     {}
func (DayRange) window()          {}
func (PreviousYearMonth) window() {}

func (w Today) String() string {
	return w.Date.Format(dateutil.LayoutDate)
}

func (w CalendarMonth) String() string {
	return w.YearMonth()
}

// YearMonth renders the month as YYYY-MM.
func (w CalendarMonth) YearMonth() string {
	return fmt.Sprintf("%04d-%02d", w.Year, int(w.Month))
}

func (w DayRange) String() string {
	return fmt.Sprintf("%s-%dd", w.EndDate.Format(dateutil.LayoutDate), w.BeforeDays)
}

func (w PreviousYearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", w.Year-1, int(w.Month))
}

// TimeWindow is a resolved half-open interval [From, To).
type TimeWindow struct {
	Kind Window
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// SingleDay reports whether the window is a Today window.
func (w TimeWindow) SingleDay() bool {
	_, ok := w.Kind.(Today)
	return ok
}

// Days returns the number of calendar days covered.
func (w TimeWindow) Days() int {
	from := time.Date(w.From.Year(), w.From.Month(), w.From.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(w.To.Year(), w.To.Month(), w.To.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.From.Format(dateutil.LayoutDateTime), w.To.Format(dateutil.LayoutDateTime))
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// startOfDay takes the calendar date of t and returns its midnight in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, orUTC(loc))
}

// NewCalendarMonth validates a YYYY-MM string.
func NewCalendarMonth(yearMonth string) (CalendarMonth, error) {
	if !dateutil.IsYearMonthShape(yearMonth) {
		return CalendarMonth{}, &dateutil.DateFormatError{Input: yearMonth, Layout: dateutil.LayoutYearMonth}
	}
	t, err := dateutil.ParseYearMonth(yearMonth, time.UTC)
	if err != nil {
		return CalendarMonth{}, &InvalidWindowParameterError{Param: "year_month", Value: yearMonth, Reason: "month must be 01-12"}
	}
	return CalendarMonth{Year: t.Year(), Month: t.Month()}, nil
}

// NewPreviousYearMonth validates a YYYY-MM string naming the current month.
func NewPreviousYearMonth(yearMonth string) (PreviousYearMonth, error) {
	m, err := NewCalendarMonth(yearMonth)
	if err != nil {
		return PreviousYearMonth{}, err
	}
	return PreviousYearMonth{Year: m.Year, Month: m.Month}, nil
}

// NewDayRange validates the end date and the look-back length.
func NewDayRange(endDate string, beforeDays int, loc *time.Location) (DayRange, error) {
	end, err := dateutil.ParseDate(endDate, orUTC(loc))
	if err != nil {
		return DayRange{}, err
	}
	if !isAllowedBeforeDays(beforeDays) {
		return DayRange{}, &InvalidWindowParameterError{
			Param:  "before_days",
			Value:  strconv.Itoa(beforeDays),
			Reason: fmt.Sprintf("must be one of %v", AllowedBeforeDays),
		}
	}
	return DayRange{EndDate: end, BeforeDays: beforeDays}, nil
}

func isAllowedBeforeDays(n int) bool {
	for _, v := range AllowedBeforeDays {
		if v == n {
			return true
		}
	}
	return false
}

// ResolveToday returns [date 00:00, date+1 00:00).
func ResolveToday(date time.Time, loc *time.Location) TimeWindow {
	from := startOfDay(date, loc)
	return TimeWindow{
		Kind: Today{Date: from},
		From: from,
		To:   from.AddDate(0, 0, 1),
	}
}

// ResolveCalendarMonth returns [YYYY-MM-01, first day of the next month).
func ResolveCalendarMonth(m CalendarMonth, loc *time.Location) TimeWindow {
	from := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, orUTC(loc))
	return TimeWindow{
		Kind: m,
		From: from,
		To:   from.AddDate(0, 1, 0),
	}
}

// ResolveDayRange returns [end-before 00:00, end+1 00:00).
func ResolveDayRange(r DayRange, loc *time.Location) TimeWindow {
	end := startOfDay(r.EndDate, loc)
	return TimeWindow{
		Kind: DayRange{EndDate: end, BeforeDays: r.BeforeDays},
		From: end.AddDate(0, 0, -r.BeforeDays),
		To:   end.AddDate(0, 0, 1),
	}
}

// ResolvePreviousYearMonth returns the calendar month one year earlier.
func ResolvePreviousYearMonth(p PreviousYearMonth, loc *time.Location) TimeWindow {
	w := ResolveCalendarMonth(CalendarMonth{Year: p.Year - 1, Month: p.Month}, loc)
	w.Kind = p
	return w
}

// Resolve dispatches on the window variant.
func Resolve(w Window, loc *time.Location) TimeWindow {
	switch v := w.(type) {
	case Today:
		return ResolveToday(v.Date, loc)
	case CalendarMonth:
		return ResolveCalendarMonth(v, loc)
	case DayRange:
		return ResolveDayRange(v, loc)
	case PreviousYearMonth:
		return ResolvePreviousYearMonth(v, loc)
	default:
		panic(fmt.Sprintf("weather: unknown window %T", w))
	}
}
