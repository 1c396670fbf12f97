package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, Invalid("time", fmt.Sprintf("%q is not HH:MM", s))
	}
	return Clock(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

// On returns the instant at which t falls on the given calendar date.
func (t TimeOfDay) On(date time.Time) time.Time {
	d := DateOf(date)
	return d.Add(time.Duration(t) * time.Minute)
}

// DateOf truncates t to its calendar date at 00:00 UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "2006-01-02" calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, Invalid("date", fmt.Sprintf("%q is not YYYY-MM-DD", s))
	}
	return t, nil
}

// NextOccurrence returns the first date on or after from that falls on weekday.
func NextOccurrence(weekday time.Weekday, from time.Time) time.Time {
	d := DateOf(from)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// Window is a bookable period within a day, [Start, End).
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// ParseWindows parses a comma separated list such as "09:00-12:00,13:00-16:00".
func ParseWindows(s string) ([]Window, error) {
	var out []Window
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		start, end, ok := strings.Cut(part, "-")
		if !ok {
			return nil, Invalid("window", fmt.Sprintf("%q is not HH:MM-HH:MM", part))
		}
		from, err := ParseTimeOfDay(strings.TrimSpace(start))
		if err != nil {
			return nil, err
		}
		to, err := ParseTimeOfDay(strings.TrimSpace(end))
		if err != nil {
			return nil, err
		}
		if from >= to {
			return nil, Invalid("window", fmt.Sprintf("%q must start before it ends", part))
		}
		out = append(out, Window{Start: from, End: to})
	}
	return out, nil
}
