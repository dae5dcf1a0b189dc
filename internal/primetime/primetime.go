// Package primetime decides whether a moment falls inside the daily window
// during which the host must never be suspended.
package primetime

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is an offset from local midnight
type TimeOfDay time.Duration

// ParseTimeOfDay parses a 24-hour "HH:MM" value
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM, 24-hour)", s)
	}
	return TimeOfDay(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

// Of returns the time of day of t in t's own location
func Of(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	d := time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
	return TimeOfDay(d)
}

// String renders the value as HH:MM
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// IsPrimeTime reports whether now falls in [start, end], both bounds inclusive.
// When start is after end the window wraps midnight.
func IsPrimeTime(now time.Time, start, end TimeOfDay) bool {
	tod := Of(now)
	if start <= end {
		return start <= tod && tod <= end
	}
	return tod >= start || tod <= end
}

// Window is a configured prime-time window
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// ParseWindow builds a Window from two "HH:MM" strings
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Window{}, fmt.Errorf("prime time start: %w", err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Window{}, fmt.Errorf("prime time end: %w", err)
	}
	return Window{Start: s, End: e}, nil
}

// Contains reports whether now is inside the window
func (w Window) Contains(now time.Time) bool {
	return IsPrimeTime(now, w.Start, w.End)
}

// Overnight reports whether the window wraps midnight
func (w Window) Overnight() bool {
	return w.Start > w.End
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}
