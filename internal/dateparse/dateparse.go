// Package dateparse turns booking slot expressions into instants.
//
// A slot is an optional day followed by a time of day:
//   - 2026-03-02T10:00:00Z, 2026-03-02T10:00 (RFC 3339, zone optional)
//   - 2026-03-02 10:00
//   - today 14:30, tomorrow 9am
//   - fri 10:00, next monday 8:15
//   - +2 16:00, in 3 days 11:00
//
// Days without a zone are interpreted in the reference time's location.
package dateparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrPast is returned for slots that are not in the future.
var ErrPast = errors.New("slot is in the past")

var (
	datePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	inDaysPattern  = regexp.MustCompile(`^in (\d+) days?$`)
	inWeeksPattern = regexp.MustCompile(`^in (\d+) weeks?$`)
	clockPattern   = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
)

// ParseSlot parses input relative to now. The result is always after now.
func ParseSlot(input string, now time.Time) (time.Time, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return time.Time{}, errors.New("empty slot")
	}

	t, err := parse(input, now)
	if err != nil {
		return time.Time{}, err
	}
	if !t.After(now) {
		return time.Time{}, fmt.Errorf("%s: %w", t.Format(time.RFC3339), ErrPast)
	}
	return t, nil
}

func parse(input string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(input)); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", strings.ToUpper(input), now.Location()); err == nil {
		return t, nil
	}

	day, clock := splitClock(input)
	if clock == "" {
		return time.Time{}, fmt.Errorf("%q: missing time of day (e.g. 10:00 or 2pm)", input)
	}
	hour, minute, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}

	date := now
	if day != "" {
		var ok bool
		if date, ok = parseDay(day, now); !ok {
			return time.Time{}, fmt.Errorf("%q: unrecognized day", day)
		}
	}

	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, now.Location()), nil
}

// splitClock separates a trailing time of day from the day expression.
// "tomorrow 9 am" and "tomorrow 9am" both split.
func splitClock(input string) (day, clock string) {
	fields := strings.Fields(input)
	for n := 2; n >= 1; n-- {
		if len(fields) < n {
			continue
		}
		tail := strings.Join(fields[len(fields)-n:], " ")
		if clockPattern.MatchString(tail) {
			return strings.Join(fields[:len(fields)-n], " "), tail
		}
	}
	return input, ""
}

func parseClock(s string) (hour, minute int, err error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("%q: invalid time of day", s)
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}

	switch m[3] {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("%q: hour must be 1-12 with am/pm", s)
		}
		if hour == 12 {
			hour = 0
		}
		if m[3] == "pm" {
			hour += 12
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%q: invalid time of day", s)
	}
	return hour, minute, nil
}

// parseDay resolves a day expression to a date on or after now.
func parseDay(input string, now time.Time) (time.Time, bool) {
	switch input {
	case "today":
		return now, true
	case "tomorrow", "tmr":
		return now.AddDate(0, 0, 1), true
	case "next week", "nextweek":
		return now.AddDate(0, 0, 7), true
	}

	if day, ok := parseWeekday(input); ok {
		next := strings.HasPrefix(input, "next ")
		return nextWeekday(now, day, next), true
	}

	if strings.HasPrefix(input, "+") {
		if days, err := strconv.Atoi(input[1:]); err == nil && days >= 0 {
			return now.AddDate(0, 0, days), true
		}
	}
	if match := inDaysPattern.FindStringSubmatch(input); match != nil {
		days, _ := strconv.Atoi(match[1])
		return now.AddDate(0, 0, days), true
	}
	if match := inWeeksPattern.FindStringSubmatch(input); match != nil {
		weeks, _ := strconv.Atoi(match[1])
		return now.AddDate(0, 0, weeks*7), true
	}

	if datePattern.MatchString(input) {
		t, err := time.ParseInLocation("2006-01-02", input, now.Location())
		return t, err == nil
	}
	return time.Time{}, false
}

func parseWeekday(input string) (time.Weekday, bool) {
	switch strings.TrimPrefix(input, "next ") {
	case "sunday", "sun":
		return time.Sunday, true
	case "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	}
	return 0, false
}

// nextWeekday returns the next occurrence of target. Today's weekday
// resolves to next week. "next <day>" skips the nearest occurrence unless
// that is already a week out.
func nextWeekday(now time.Time, target time.Weekday, forceNext bool) time.Time {
	daysUntil := int(target - now.Weekday())
	sameDay := daysUntil == 0
	if daysUntil <= 0 {
		daysUntil += 7
	}
	if forceNext && !sameDay {
		daysUntil += 7
	}
	return now.AddDate(0, 0, daysUntil)
}
