package worker

import "time"

// Default grace periods preventing double-runs across worker restarts.
const (
	DailyGracePeriod  = 20 * time.Hour
	WeeklyGracePeriod = 6 * 24 * time.Hour
)

// ShouldRunDaily reports whether a daily job scheduled at the given hour is
// due. The grace period prevents double-runs when the worker restarts within
// the scheduled hour.
func ShouldRunDaily(now time.Time, hour int, lastRun time.Time, gracePeriod time.Duration) bool {
	if now.Hour() != hour {
		return false
	}

	if lastRun.IsZero() {
		return true
	}

	return now.Sub(lastRun) >= gracePeriod
}

// ShouldRunWeekly reports whether a weekly job scheduled on the given weekday
// and hour is due.
func ShouldRunWeekly(now time.Time, day time.Weekday, hour int, lastRun time.Time, gracePeriod time.Duration) bool {
	if now.Weekday() != day || now.Hour() != hour {
		return false
	}

	if lastRun.IsZero() {
		return true
	}

	return now.Sub(lastRun) >= gracePeriod
}
