package availability

import (
	"fmt"
	"time"
)

const (
	dayLayout   = "2006-01-02"
	clockLayout = "15:04"
)

// Day is a calendar date in the shop's time zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDay reads a YYYY-MM-DD date.
func ParseDay(value string) (Day, error) {
	t, err := time.Parse(dayLayout, value)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", value)
	}
	return DayOf(t), nil
}

// DayOf returns the date part of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Bounds returns the UTC instants where the day starts and the next one starts in loc.
func (d Day) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// At returns the UTC instant of the wall-clock time c on this day in loc.
func (d Day) At(c ClockTime, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc).UTC()
}

// ClockTime is a wall-clock hour and minute.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock reads an HH:MM time.
func ParseClock(value string) (ClockTime, error) {
	t, err := time.Parse(clockLayout, value)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time %q: want HH:MM", value)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ClockOf returns the wall-clock time of t in loc.
func ClockOf(t time.Time, loc *time.Location) ClockTime {
	local := t.In(loc)
	return ClockTime{Hour: local.Hour(), Minute: local.Minute()}
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}
