package timekeeping

import (
	"fmt"
	"time"
)

// payEpoch anchors the biweekly pay cycle: a Saturday that ends week 2 of a
// pay period. Every valid timesheet boundary is a whole number of fortnights
// from it.
var payEpoch = time.Date(2018, time.December, 29, 0, 0, 0, 0, time.UTC)

// WeekClock performs payroll week arithmetic in the company's civil timezone.
type WeekClock struct {
	loc *time.Location
}

// NewWeekClock loads the civil timezone used for week boundaries.
func NewWeekClock(tzName string) (*WeekClock, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("timekeeping: load timezone %q: %w", tzName, err)
	}
	return &WeekClock{loc: loc}, nil
}

// WeekEnding returns the Saturday 23:59:59.999 that closes the payroll week
// containing t.
func (w *WeekClock) WeekEnding(t time.Time) time.Time {
	local := t.In(w.loc)
	daysUntilSaturday := (int(time.Saturday) - int(local.Weekday()) + 7) % 7
	sat := local.AddDate(0, 0, daysUntilSaturday)
	return time.Date(sat.Year(), sat.Month(), sat.Day(), 23, 59, 59, 999000000, w.loc)
}

// IsWeekEnding reports whether t is exactly a payroll week boundary.
func (w *WeekClock) IsWeekEnding(t time.Time) bool {
	return t.Equal(w.WeekEnding(t))
}

// IsPayPeriodEnding reports whether t closes week 2 of a biweekly pay
// period. Only these Saturdays are valid timesheet boundaries.
func (w *WeekClock) IsPayPeriodEnding(t time.Time) bool {
	if !w.IsWeekEnding(t) {
		return false
	}
	local := t.In(w.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	days := int(day.Sub(payEpoch).Hours() / 24)
	return days%14 == 0
}

// SameDay reports whether a and b fall on the same civil date.
func (w *WeekClock) SameDay(a, b time.Time) bool {
	return w.DayKey(a) == w.DayKey(b)
}

// DayKey formats t's civil date, used to detect duplicate day entries.
func (w *WeekClock) DayKey(t time.Time) string {
	return t.In(w.loc).Format("2006-01-02")
}

// Location exposes the civil timezone for callers that need to build dates.
func (w *WeekClock) Location() *time.Location { return w.loc }
