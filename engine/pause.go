package engine

import "time"

// weekendPause returns how long to sleep if now falls inside the weekly
// non-trading window, Friday 23:59 through Monday 00:01 (same location as
// now). Zero means trading hours.
func weekendPause(now time.Time) time.Duration {
	var days int
	switch now.Weekday() {
	case time.Friday:
		cut := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location())
		if now.Before(cut) {
			return 0
		}
		days = 3
	case time.Saturday:
		days = 2
	case time.Sunday:
		days = 1
	case time.Monday:
		open := time.Date(now.Year(), now.Month(), now.Day(), 0, 1, 0, 0, now.Location())
		if !now.Before(open) {
			return 0
		}
		days = 0
	default:
		return 0
	}

	d := now.AddDate(0, 0, days)
	open := time.Date(d.Year(), d.Month(), d.Day(), 0, 1, 0, 0, now.Location())
	return open.Sub(now)
}
