// Package session classifies wall-clock instants into trading sessions and
// computes the next session boundary for schedule planning.
package session

import (
	"fmt"
	"time"
)

// Session is a named trading period governing scan cadence.
type Session int

const (
	Closed Session = iota
	Premarket
	Regular
	AfterHours
	Weekend
)

func (s Session) String() string {
	switch s {
	case Premarket:
		return "premarket"
	case Regular:
		return "regular"
	case AfterHours:
		return "afterhours"
	case Weekend:
		return "weekend"
	default:
		return "closed"
	}
}

// Active reports whether the session is one the scanner should scan in.
func (s Session) Active() bool {
	return s == Premarket || s == Regular || s == AfterHours
}

// ClockTime is a time of day expressed as minutes since midnight.
type ClockTime int

// ParseClockTime parses an "HH:MM" string.
func ParseClockTime(s string) (ClockTime, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return ClockTime(hour*60 + minute), nil
}

func (t ClockTime) hour() int   { return int(t) / 60 }
func (t ClockTime) minute() int { return int(t) % 60 }

// Windows holds the configured session boundaries and enable flags.
// Boundaries are closed on the left and open on the right, so an instant at
// an exact transition belongs to exactly one session.
type Windows struct {
	Location         *time.Location
	PremarketStart   ClockTime
	PremarketEnd     ClockTime
	MarketOpen       ClockTime
	MarketClose      ClockTime
	AfterHoursEnd    ClockTime
	EnablePremarket  bool
	EnableAfterHours bool
	WeekendPause     bool
}

// Clock maps instants to trading sessions. All methods are pure.
type Clock struct {
	win Windows
}

// NewClock creates a session clock for the given windows.
func NewClock(win Windows) *Clock {
	if win.Location == nil {
		win.Location = time.UTC
	}
	return &Clock{win: win}
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Classify returns the trading session for the given instant. A configured
// non-trading day with weekend pause enabled overrides every time-of-day
// window; a window whose enable flag is off degrades to Closed.
func (c *Clock) Classify(now time.Time) Session {
	local := now.In(c.win.Location)
	if c.win.WeekendPause && isWeekend(local) {
		return Weekend
	}

	m := ClockTime(local.Hour()*60 + local.Minute())
	switch {
	case m >= c.win.PremarketStart && m < c.win.PremarketEnd:
		if !c.win.EnablePremarket {
			return Closed
		}
		return Premarket
	case m >= c.win.MarketOpen && m < c.win.MarketClose:
		return Regular
	case m >= c.win.MarketClose && m < c.win.AfterHoursEnd:
		if !c.win.EnableAfterHours {
			return Closed
		}
		return AfterHours
	default:
		return Closed
	}
}

// SessionDate returns the trading date of the instant in the market timezone,
// formatted as YYYY-MM-DD. Used as the dedup checkpoint key.
func (c *Clock) SessionDate(now time.Time) string {
	return now.In(c.win.Location).Format("2006-01-02")
}

// sessionStarts lists the day's enabled window openings in ascending order.
func (c *Clock) sessionStarts() []ClockTime {
	var starts []ClockTime
	if c.win.EnablePremarket {
		starts = append(starts, c.win.PremarketStart)
	}
	starts = append(starts, c.win.MarketOpen)
	if c.win.EnableAfterHours {
		starts = append(starts, c.win.MarketClose)
	}
	return starts
}

// NextSessionStart returns the earliest instant strictly after now at which
// an enabled trading session begins. Weekend days are skipped when weekend
// pause is on.
func (c *Clock) NextSessionStart(now time.Time) time.Time {
	local := now.In(c.win.Location)

	for day := 0; day <= 8; day++ {
		date := local.AddDate(0, 0, day)
		if c.win.WeekendPause && isWeekend(date) {
			continue
		}
		for _, start := range c.sessionStarts() {
			at := time.Date(date.Year(), date.Month(), date.Day(),
				start.hour(), start.minute(), 0, 0, c.win.Location)
			if at.After(local) {
				return at
			}
		}
	}

	// Unreachable with at least one enabled window per trading day.
	return local.Add(24 * time.Hour)
}
