package billing

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts.UTC()
}

func TestPeriod(t *testing.T) {
	tests := []struct {
		name        string
		offsetHours int
		startAt     string
		wantEndAt   string
		wantGraceAt string
	}{
		{
			name:        "kst morning capture",
			offsetHours: 9,
			startAt:     "2026-03-01T00:00:00Z",
			wantEndAt:   "2026-03-31T00:00:00Z",
			// endAt is 09:00 KST on Mar 31; grace runs to 23:59:59 KST on Apr 1
			wantGraceAt: "2026-04-01T14:59:59Z",
		},
		{
			name:        "end crosses local midnight",
			offsetHours: 9,
			startAt:     "2026-03-01T20:00:00Z",
			wantEndAt:   "2026-03-31T20:00:00Z",
			// 20:00 UTC is already 05:00 KST the next day, pushing grace a day out
			wantGraceAt: "2026-04-02T14:59:59Z",
		},
		{
			name:        "utc offset zero",
			offsetHours: 0,
			startAt:     "2026-03-01T12:00:00Z",
			wantEndAt:   "2026-03-31T12:00:00Z",
			wantGraceAt: "2026-04-01T23:59:59Z",
		},
		{
			name:        "negative offset",
			offsetHours: -5,
			startAt:     "2026-06-10T03:00:00Z",
			wantEndAt:   "2026-07-10T03:00:00Z",
			// 03:00 UTC is 22:00 on Jul 9 local; grace day is Jul 10 local
			wantGraceAt: "2026-07-11T04:59:59Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := NewCalculator(tt.offsetHours)
			endAt, graceAt := calc.Period(mustParse(t, tt.startAt))

			if got, want := endAt, mustParse(t, tt.wantEndAt); !got.Equal(want) {
				t.Errorf("endAt = %s, want %s", got, want)
			}
			if got, want := graceAt, mustParse(t, tt.wantGraceAt); !got.Equal(want) {
				t.Errorf("endGraceAt = %s, want %s", got, want)
			}
		})
	}
}

func TestPeriodIsExactlyThirtyDays(t *testing.T) {
	calc := NewCalculator(9)
	startAt := mustParse(t, "2026-02-15T04:30:00Z")
	endAt, _ := calc.Period(startAt)

	if got := endAt.Sub(startAt); got != PeriodDays*24*time.Hour {
		t.Fatalf("period length = %s, want %s", got, PeriodDays*24*time.Hour)
	}
}

func TestNextScheduleAtStaysInWindow(t *testing.T) {
	calc := NewCalculator(9)
	endAt := mustParse(t, "2026-03-31T00:00:00Z")

	// 10:00-11:00 KST on Apr 1 is 01:00-02:00 UTC
	windowStart := mustParse(t, "2026-04-01T01:00:00Z")
	windowEnd := mustParse(t, "2026-04-01T02:00:00Z")

	for i := 0; i < 1000; i++ {
		got := calc.NextScheduleAt(endAt)
		if got.Before(windowStart) || !got.Before(windowEnd) {
			t.Fatalf("run %d: schedule %s outside [%s, %s)", i, got, windowStart, windowEnd)
		}
	}
}

func TestNextScheduleAtIsRandomized(t *testing.T) {
	calc := NewCalculator(9)
	endAt := mustParse(t, "2026-03-31T00:00:00Z")

	windowStart := mustParse(t, "2026-04-01T01:00:00Z")
	windowEnd := mustParse(t, "2026-04-01T02:00:00Z")

	seen := make(map[time.Time]struct{})
	earliest, latest := windowEnd, windowStart
	for i := 0; i < 1000; i++ {
		got := calc.NextScheduleAt(endAt)
		seen[got] = struct{}{}
		if got.Before(earliest) {
			earliest = got
		}
		if got.After(latest) {
			latest = got
		}
	}
	if len(seen) < 100 {
		t.Fatalf("expected varying schedule instants, got %d distinct values", len(seen))
	}

	// 1000 uniform draws over one hour land within minutes of both edges.
	if d := earliest.Sub(windowStart); d > 5*time.Minute {
		t.Fatalf("earliest schedule %s sits %s into the window", earliest, d)
	}
	if d := windowEnd.Sub(latest); d > 5*time.Minute {
		t.Fatalf("latest schedule %s stops %s short of the window end", latest, d)
	}
}
