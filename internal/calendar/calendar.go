// Package calendar provides business-day arithmetic over a holiday set.
// All functions are pure; dates are compared at day granularity in UTC.
package calendar

import "time"

// HolidaySet holds non-weekend days on which markets are closed, keyed by
// ISO date (2006-01-02). An empty set is valid: arithmetic then degrades to
// weekend-only skipping, which keeps offsets usable for dates outside the
// loaded calendar period.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a set from the given days.
func NewHolidaySet(days ...time.Time) HolidaySet {
	set := make(HolidaySet, len(days))
	for _, day := range days {
		set[dayKey(day)] = struct{}{}
	}
	return set
}

// Contains reports whether day is a holiday.
func (s HolidaySet) Contains(day time.Time) bool {
	_, ok := s[dayKey(day)]
	return ok
}

// IsBusinessDay reports whether day is neither a weekend nor a holiday.
func IsBusinessDay(day time.Time, holidays HolidaySet) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !holidays.Contains(day)
}

// AddBusinessDays moves exactly n business days forward (n > 0) or backward
// (n < 0) from day, skipping weekends and holidays. n == 0 returns day
// unchanged, whether or not it is a business day; callers that need "last
// close" semantics use PriorBusinessDay instead.
func AddBusinessDays(day time.Time, n int, holidays HolidaySet) time.Time {
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	current := truncate(day)
	for remaining := n; remaining > 0; {
		current = current.AddDate(0, 0, step)
		if IsBusinessDay(current, holidays) {
			remaining--
		}
	}
	return current
}

// PriorBusinessDay returns day itself when it is a business day, otherwise
// the nearest preceding business day.
func PriorBusinessDay(day time.Time, holidays HolidaySet) time.Time {
	current := truncate(day)
	for !IsBusinessDay(current, holidays) {
		current = current.AddDate(0, 0, -1)
	}
	return current
}

// BusinessDaysBetween returns all business days in [start, end], ascending.
func BusinessDaysBetween(start, end time.Time, holidays HolidaySet) []time.Time {
	var days []time.Time
	for current := truncate(start); !current.After(truncate(end)); current = current.AddDate(0, 0, 1) {
		if IsBusinessDay(current, holidays) {
			days = append(days, current)
		}
	}
	return days
}

func truncate(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

func dayKey(day time.Time) string {
	return day.Format("2006-01-02")
}
