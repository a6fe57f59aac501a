// Package eventtime converts the feed's date-less checkpoint strings into
// absolute instants anchored to the event start date, and measures ages in
// the event timezone.
package eventtime

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // the event timezone must resolve on hosts without zoneinfo
)

// ErrUnparsableTime is returned for checkpoint strings in neither supported format.
var ErrUnparsableTime = errors.New("unparsable checkpoint time")

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// Resolver anchors checkpoint times to the event's start date and timezone.
type Resolver struct {
	loc    *time.Location
	start  time.Time // midnight of the start date in loc
	logger *slog.Logger
}

// NewResolver builds a Resolver for an event starting on startDate
// (YYYY-MM-DD) in the named IANA timezone.
func NewResolver(timezone, startDate string, logger *slog.Logger) (*Resolver, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load event timezone %q: %w", timezone, err)
	}
	day, err := time.ParseInLocation(time.DateOnly, startDate, loc)
	if err != nil {
		return nil, fmt.Errorf("parse event start date %q: %w", startDate, err)
	}
	return &Resolver{loc: loc, start: day, logger: logger}, nil
}

// Location returns the event timezone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Start returns midnight of the event start date in the event timezone.
func (r *Resolver) Start() time.Time { return r.start }

// Now returns the current instant expressed in the event timezone.
func (r *Resolver) Now() time.Time { return clock.Now().In(r.loc) }

// Parse resolves "<DayName> HH:MM" or "D/M HH:MM" into an absolute time.
//
// A day name refers to the first such weekday on or after the start date,
// so offsets are always 0–6 days. Calendar fields are combined with time.Date
// in the event location, which keeps wall-clock times correct across DST
// changes inside the event window.
func (r *Resolver) Parse(raw string) (time.Time, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableTime, raw)
	}
	hour, minute, ok := parseClock(fields[1])
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableTime, raw)
	}

	if day, month, ok := parseDayMonth(fields[0]); ok {
		t := time.Date(r.start.Year(), month, day, hour, minute, 0, 0, r.loc)
		// time.Date normalizes 31/2 into March; reject instead.
		if t.Day() != day || t.Month() != month {
			return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableTime, raw)
		}
		return t, nil
	}

	wd, ok := weekdays[strings.ToLower(fields[0])]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableTime, raw)
	}
	offset := (int(wd) - int(r.start.Weekday()) + 7) % 7
	return time.Date(r.start.Year(), r.start.Month(), r.start.Day()+offset, hour, minute, 0, 0, r.loc), nil
}

// HoursSince returns the non-negative number of hours between t and now.
// A t in the future is clamped to 0 and logged.
func (r *Resolver) HoursSince(t, now time.Time) float64 {
	return r.Since(t, now).Hours()
}

// Since is HoursSince as a duration.
func (r *Resolver) Since(t, now time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	d := now.Sub(t)
	if d < 0 {
		r.logger.Warn("checkpoint time is in the future, clamping age to zero",
			"time", t.In(r.loc).Format(time.RFC3339),
			"now", now.In(r.loc).Format(time.RFC3339),
		)
		return 0
	}
	return d
}

// parseClock parses "HH:MM" (single-digit hours allowed).
func parseClock(s string) (int, int, bool) {
	h, m, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, false
	}
	hour, errH := strconv.Atoi(h)
	minute, errM := strconv.Atoi(m)
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// parseDayMonth parses "D/M" with day-first ordering.
func parseDayMonth(s string) (int, time.Month, bool) {
	d, m, found := strings.Cut(s, "/")
	if !found {
		return 0, 0, false
	}
	day, errD := strconv.Atoi(d)
	month, errM := strconv.Atoi(m)
	if errD != nil || errM != nil || day < 1 || day > 31 || month < 1 || month > 12 {
		return 0, 0, false
	}
	return day, time.Month(month), true
}
