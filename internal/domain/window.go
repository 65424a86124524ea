package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock feeds the window calculations. Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the package time source. Pass nil to restore real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock, in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}

// DayStart truncates t to midnight of its UTC day.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DailyWindow is yesterday's UTC day as a half-open [start, end) interval.
// The daily pipeline ingests it; monitoring compares predictions against it.
func DailyWindow() (start, end time.Time) {
	today := DayStart(clock.Now())
	return today.AddDate(0, 0, -1), today
}

// ForecastWindow is tomorrow's UTC day as a half-open [start, end) interval.
func ForecastWindow() (start, end time.Time) {
	today := DayStart(clock.Now())
	return today.AddDate(0, 0, 1), today.AddDate(0, 0, 2)
}
