/*
calendar.go - Work-day classification against a pluggable holiday calendar

PURPOSE:
  Counts the day categories of a date range: regular weekday (Sunday to
  Thursday), Friday, Saturday, holiday. The employer only owes daily pay
  for regular weekdays; the other buckets are tracked for the workbook.

CLASSIFICATION PRECEDENCE:
  holiday > Saturday > Friday > weekday.
  A date that is both a holiday and a Saturday counts only as a holiday.

HOLIDAY CALENDAR:
  Holiday dates vary by year and are supplied as configuration, not
  computed. The calendar is an interface so the fixed-list implementation
  can be swapped (see config package for the JSON-loaded calendar).
*/
package recon

import "time"

// =============================================================================
// HOLIDAY CALENDAR - Externally supplied configuration
// =============================================================================

// HolidayCalendar answers whether a given date is a holiday.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// FixedCalendar is a HolidayCalendar over an explicit list of dates.
type FixedCalendar map[string]struct{}

// NewFixedCalendar builds a calendar from explicit holiday dates.
func NewFixedCalendar(dates ...time.Time) FixedCalendar {
	c := make(FixedCalendar, len(dates))
	for _, d := range dates {
		c[FormatDate(d)] = struct{}{}
	}
	return c
}

func (c FixedCalendar) IsHoliday(date time.Time) bool {
	_, ok := c[FormatDate(date)]
	return ok
}

// EmptyCalendar is a no-op calendar for when holidays are not configured.
type EmptyCalendar struct{}

func (EmptyCalendar) IsHoliday(time.Time) bool { return false }

// =============================================================================
// CLASSIFICATION
// =============================================================================

// DayBreakdown is the per-category day count of a date range.
// Sum() always equals the inclusive day span of the classified range.
type DayBreakdown struct {
	Weekdays  int // Sunday-Thursday, not a holiday
	Fridays   int
	Saturdays int
	Holidays  int
}

// Sum returns the total number of classified days.
func (b DayBreakdown) Sum() int {
	return b.Weekdays + b.Fridays + b.Saturdays + b.Holidays
}

// ClassifyDays iterates each calendar day in [start, end] inclusive and
// buckets it by the precedence holiday > Saturday > Friday > weekday.
// Pure function; a reversed range yields the zero breakdown.
func ClassifyDays(start, end time.Time, cal HolidayCalendar) DayBreakdown {
	var b DayBreakdown
	if cal == nil {
		cal = EmptyCalendar{}
	}
	for d := dateOnly(start); !d.After(dateOnly(end)); d = d.AddDate(0, 0, 1) {
		switch {
		case cal.IsHoliday(d):
			b.Holidays++
		case d.Weekday() == time.Saturday:
			b.Saturdays++
		case d.Weekday() == time.Friday:
			b.Fridays++
		default:
			b.Weekdays++
		}
	}
	return b
}

// DaySpan returns the inclusive day count of [start, end].
func DaySpan(start, end time.Time) int {
	return int(dateOnly(end).Sub(dateOnly(start)).Hours()/24) + 1
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
