/*
segment.go - Attendance rows -> calendar-month-bounded service periods

PURPOSE:
  Converts a raw daily attendance export into candidate service periods.
  Two passes:

  1. RUN DETECTION: sort by (employee, date); a new run starts whenever the
     employee changes or the date is not exactly one day after the previous
     record for the same employee.
  2. MONTH SPLIT: any run crossing a calendar-month boundary is split into
     one sub-period per (year, month) it touches. A run confined to one
     month yields exactly one period, unchanged.

  The month-confinement invariant of ServicePeriod is guaranteed here, by
  construction - downstream code never re-validates it.

DEPARTMENT:
  A period's department is the first observed value of its run. If the
  source ever changed department mid-run, the first value would still win
  for the whole period - a documented simplification.
*/
package recon

import (
	"sort"
	"time"
)

// CandidatePeriod is a month-bounded segmentation output, not yet matched
// against the store.
type CandidatePeriod struct {
	Employee   string // normalized
	Department string
	Start      time.Time
	End        time.Time
	Days       int // inclusive span, within one calendar month
}

// rawRun is a maximal streak of consecutive attendance days for one
// employee, before month splitting.
type rawRun struct {
	employee   string
	department string
	start, end time.Time
}

// Segment converts one import's attendance records into an ordered sequence
// of candidate periods. Input order does not matter; output is ordered by
// (employee, start date).
func Segment(records []AttendanceRecord) []CandidatePeriod {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]AttendanceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Employee != sorted[j].Employee {
			return sorted[i].Employee < sorted[j].Employee
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var runs []rawRun
	cur := rawRun{
		employee:   sorted[0].Employee,
		department: sorted[0].Department,
		start:      dateOnly(sorted[0].Date),
		end:        dateOnly(sorted[0].Date),
	}
	for _, rec := range sorted[1:] {
		d := dateOnly(rec.Date)
		if rec.Employee == cur.employee && d.Equal(cur.end.AddDate(0, 0, 1)) {
			cur.end = d
			continue
		}
		if rec.Employee == cur.employee && d.Equal(cur.end) {
			// Duplicate day in the export; collapse silently.
			continue
		}
		runs = append(runs, cur)
		cur = rawRun{employee: rec.Employee, department: rec.Department, start: d, end: d}
	}
	runs = append(runs, cur)

	var periods []CandidatePeriod
	for _, run := range runs {
		for _, split := range splitByMonth(run.start, run.end) {
			periods = append(periods, CandidatePeriod{
				Employee:   run.employee,
				Department: run.department,
				Start:      split.start,
				End:        split.end,
				Days:       split.days,
			})
		}
	}
	return periods
}

type monthSplit struct {
	start, end time.Time
	days       int
}

// splitByMonth cuts [start, end] at calendar-month boundaries, producing
// one slice per (year, month) the range touches.
func splitByMonth(start, end time.Time) []monthSplit {
	var out []monthSplit
	cur := start
	for !cur.After(end) {
		monthEnd := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, 1, -1)
		sliceEnd := monthEnd
		if end.Before(monthEnd) {
			sliceEnd = end
		}
		out = append(out, monthSplit{
			start: cur,
			end:   sliceEnd,
			days:  DaySpan(cur, sliceEnd),
		})
		cur = sliceEnd.AddDate(0, 0, 1)
	}
	return out
}
