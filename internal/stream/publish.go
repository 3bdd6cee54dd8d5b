package stream

import "time"

// publishHour is the hour of day (in the repository's operating
// timezone) at which a publish cycle runs on business days.
const publishHour = 20

// NextPublish returns the next scheduled publish instant after now: the
// next business day at the publish hour, weekends skipped. The current
// artifact of a paper can only change at a publish event, so this bounds
// how long an unversioned response may be cached. Deliberately
// conservative: holidays are not modeled, which only over-caches
// slightly, never under-estimates freshness risk.
func NextPublish(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), publishHour, 0, 0, 0, loc)
	if !t.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
