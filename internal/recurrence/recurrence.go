// Package recurrence computes the next occurrence date for recurring
// transactions.
package recurrence

import (
	"time"

	"github.com/asemenov/finledger/internal/domain"
)

// Next projects the next occurrence after start for the given interval.
// Month and year steps clamp to the last day of the target month
// (Jan 31 → Feb 28/29), matching how people expect monthly bills to roll.
// An unrecognized interval returns start unchanged; callers must treat an
// unchanged result as "no projection available", not as a valid next date.
func Next(start time.Time, interval domain.RecurringInterval) time.Time {
	switch interval {
	case domain.IntervalDaily:
		return start.AddDate(0, 0, 1)
	case domain.IntervalWeekly:
		return start.AddDate(0, 0, 7)
	case domain.IntervalMonthly:
		return addMonths(start, 1)
	case domain.IntervalYearly:
		return addMonths(start, 12)
	default:
		return start
	}
}

// addMonths steps months forward without the overflow normalization of
// time.AddDate, which would turn Jan 31 + 1 month into Mar 2/3.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	first := time.Date(y, m+time.Month(months), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
