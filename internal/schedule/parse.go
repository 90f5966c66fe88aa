package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"weekchime/internal/config"
)

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// DayKeyFor maps a time to its weekday key ("mon".."sun").
func DayKeyFor(t time.Time) string {
	// time.Weekday has Sunday == 0; the snapshot is Monday-first.
	return config.DayKeys[(int(t.Weekday())+6)%7]
}

// fireTimeOn combines a calendar day with a slot's HH:MM wall-clock time.
// A malformed time string makes the slot ineligible rather than failing.
func fireTimeOn(day time.Time, slot *config.DaySlot) (time.Time, error) {
	hh, mm, err := parseHHMM(slot.Time)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, day.Location()), nil
}
