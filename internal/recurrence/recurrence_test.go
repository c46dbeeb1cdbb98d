package recurrence

import (
	"testing"
	"time"

	"github.com/asemenov/finledger/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		interval domain.RecurringInterval
		want     time.Time
	}{
		{"daily", date(2026, 1, 2), domain.IntervalDaily, date(2026, 1, 3)},
		{"weekly", date(2026, 1, 2), domain.IntervalWeekly, date(2026, 1, 9)},
		{"monthly mid-month", date(2026, 1, 15), domain.IntervalMonthly, date(2026, 2, 15)},
		{"monthly jan 31 clamps to feb 28", date(2026, 1, 31), domain.IntervalMonthly, date(2026, 2, 28)},
		{"monthly jan 31 leap year clamps to feb 29", date(2028, 1, 31), domain.IntervalMonthly, date(2028, 2, 29)},
		{"monthly dec rolls into january", date(2026, 12, 31), domain.IntervalMonthly, date(2027, 1, 31)},
		{"yearly", date(2026, 6, 10), domain.IntervalYearly, date(2027, 6, 10)},
		{"yearly feb 29 clamps to feb 28", date(2028, 2, 29), domain.IntervalYearly, date(2029, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Next(tt.start, tt.interval)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%v, %s) = %v, want %v", tt.start, tt.interval, got, tt.want)
			}
		})
	}
}

func TestNext_UnrecognizedIntervalUnchanged(t *testing.T) {
	start := date(2026, 1, 2)
	got := Next(start, domain.RecurringInterval("FORTNIGHTLY"))
	if !got.Equal(start) {
		t.Errorf("Next() = %v, want input unchanged %v", got, start)
	}
}
