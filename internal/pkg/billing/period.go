package billing

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/sumin-dev/Magpie/internal/pkg/env"
)

const (
	// PeriodDays is the length of one paid subscription cycle.
	PeriodDays = 30

	// Local-time window inside which the next recurring charge is placed.
	// Randomizing across the hour spreads gateway load.
	scheduleWindowHour = 10
	scheduleWindowSize = time.Hour
)

// Calculator derives subscription period boundaries and the next-charge
// scheduling instant. All civil-time rules ("23:59:59 of the following day",
// "between 10:00 and 11:00") are evaluated in a fixed-offset local zone and
// stored as UTC.
type Calculator struct {
	loc *time.Location
}

// NewCalculator creates a calculator for a fixed UTC offset in hours.
func NewCalculator(offsetHours int) *Calculator {
	return &Calculator{loc: time.FixedZone("local", offsetHours*3600)}
}

// NewCalculatorFromEnv reads BILLING_TZ_OFFSET_HOURS, defaulting to +9 (KST).
func NewCalculatorFromEnv() *Calculator {
	offset := 9
	if v := env.GetEnv("BILLING_TZ_OFFSET_HOURS", ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	return NewCalculator(offset)
}

// Period computes the paid period for a charge captured at startAt.
// endAt is exactly 30 days after startAt. endGraceAt is 23:59:59 local time
// of the day following endAt: the subscriber keeps access through the end of
// that day even if the renewal charge has not landed yet.
func (c *Calculator) Period(startAt time.Time) (endAt, endGraceAt time.Time) {
	endAt = startAt.Add(PeriodDays * 24 * time.Hour).UTC()

	local := endAt.In(c.loc).AddDate(0, 0, 1)
	endGraceAt = time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, c.loc).UTC()
	return endAt, endGraceAt
}

// NextScheduleAt picks a uniformly random instant within [10:00, 11:00) local
// time on the day after endAt. The exact instant is persisted so the schedule
// can later be matched against the gateway's own listing.
func (c *Calculator) NextScheduleAt(endAt time.Time) time.Time {
	local := endAt.In(c.loc).AddDate(0, 0, 1)
	windowStart := time.Date(local.Year(), local.Month(), local.Day(), scheduleWindowHour, 0, 0, 0, c.loc)
	return windowStart.Add(time.Duration(rand.Int63n(int64(scheduleWindowSize)))).UTC()
}
