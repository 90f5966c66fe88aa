package schedule

import (
	"time"

	"weekchime/internal/config"
)

// IsHoliday reports whether the date is a configured holiday: the calendar
// must be enabled, and the date matched by the weekend auto-skip, a single
// date, or any inclusive range. Malformed range entries never match.
func IsHoliday(cfg *config.Config, day time.Time) bool {
	if cfg == nil || !cfg.HolidaysEnabled {
		return false
	}
	if cfg.AutoSkipWeekends {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return true
		}
	}
	ds := day.Format(DateLayout)
	for _, h := range cfg.Holidays {
		if h == ds {
			return true
		}
	}
	target, err := time.ParseInLocation(DateLayout, ds, day.Location())
	if err != nil {
		return false
	}
	for _, rng := range cfg.HolidayRanges {
		start, err := time.ParseInLocation(DateLayout, rng.Start, day.Location())
		if err != nil {
			continue
		}
		end, err := time.ParseInLocation(DateLayout, rng.End, day.Location())
		if err != nil {
			continue
		}
		if !target.Before(start) && !target.After(end) {
			return true
		}
	}
	return false
}

// The helpers below are config transforms: run them inside Store.Apply so
// the add/remove and the persist happen under one lock.

// AddHolidaySingle adds a single date; adding an existing date is a no-op.
func AddHolidaySingle(cfg *config.Config, date string) {
	for _, h := range cfg.Holidays {
		if h == date {
			return
		}
	}
	cfg.Holidays = append(cfg.Holidays, date)
}

// AddHolidayRange adds an inclusive range. A reversed pair is swapped
// before storing, so stored ranges always satisfy start <= end.
func AddHolidayRange(cfg *config.Config, start, end string) {
	if end < start {
		start, end = end, start
	}
	cfg.HolidayRanges = append(cfg.HolidayRanges, config.HolidayRange{Start: start, End: end})
}

// RemoveHolidaySingle removes a single date; no-op if absent.
func RemoveHolidaySingle(cfg *config.Config, date string) {
	out := cfg.Holidays[:0]
	for _, h := range cfg.Holidays {
		if h != date {
			out = append(out, h)
		}
	}
	cfg.Holidays = out
	if cfg.HolidayLabels != nil {
		delete(cfg.HolidayLabels, date)
	}
}

// RemoveHolidayRange removes ranges matching start and end exactly; no-op
// if none match.
func RemoveHolidayRange(cfg *config.Config, start, end string) {
	out := cfg.HolidayRanges[:0]
	for _, rng := range cfg.HolidayRanges {
		if rng.Start != start || rng.End != end {
			out = append(out, rng)
		}
	}
	cfg.HolidayRanges = out
}
