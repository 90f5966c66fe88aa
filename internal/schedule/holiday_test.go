package schedule

import (
	"testing"
	"time"

	"weekchime/internal/config"
)

func day(t *testing.T, date string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		t.Fatalf("bad test date %q: %v", date, err)
	}
	return d
}

func TestIsHoliday(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		date   string
		want   bool
	}{
		{
			name:   "calendar disabled ignores everything",
			mutate: func(c *config.Config) { c.HolidaysEnabled = false; c.Holidays = []string{"2024-01-04"} },
			date:   "2024-01-04",
			want:   false,
		},
		{
			name:   "single date match",
			mutate: func(c *config.Config) { c.Holidays = []string{"2024-01-04"} },
			date:   "2024-01-04",
			want:   true,
		},
		{
			name:   "single date no match",
			mutate: func(c *config.Config) { c.Holidays = []string{"2024-01-04"} },
			date:   "2024-01-05",
			want:   false,
		},
		{
			name:   "weekend auto-skip saturday",
			mutate: func(c *config.Config) { c.AutoSkipWeekends = true },
			date:   "2024-01-06",
			want:   true,
		},
		{
			name:   "weekend auto-skip leaves weekdays alone",
			mutate: func(c *config.Config) { c.AutoSkipWeekends = true },
			date:   "2024-01-05",
			want:   false,
		},
		{
			name: "range inclusive start",
			mutate: func(c *config.Config) {
				c.HolidayRanges = []config.HolidayRange{{Start: "2024-02-10", End: "2024-02-20"}}
			},
			date: "2024-02-10",
			want: true,
		},
		{
			name: "range inclusive end",
			mutate: func(c *config.Config) {
				c.HolidayRanges = []config.HolidayRange{{Start: "2024-02-10", End: "2024-02-20"}}
			},
			date: "2024-02-20",
			want: true,
		},
		{
			name: "range day after end",
			mutate: func(c *config.Config) {
				c.HolidayRanges = []config.HolidayRange{{Start: "2024-02-10", End: "2024-02-20"}}
			},
			date: "2024-02-21",
			want: false,
		},
		{
			name: "malformed range never matches",
			mutate: func(c *config.Config) {
				c.HolidayRanges = []config.HolidayRange{{Start: "not-a-date", End: "2024-02-20"}}
			},
			date: "2024-02-15",
			want: false,
		},
		{
			name: "reversed range never matches",
			mutate: func(c *config.Config) {
				c.HolidayRanges = []config.HolidayRange{{Start: "2024-02-20", End: "2024-02-10"}}
			},
			date: "2024-02-15",
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			tt.mutate(cfg)
			if got := IsHoliday(cfg, day(t, tt.date)); got != tt.want {
				t.Fatalf("IsHoliday(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestHolidayTransforms(t *testing.T) {
	t.Parallel()
	cfg := config.Default()

	AddHolidaySingle(cfg, "2024-03-01")
	AddHolidaySingle(cfg, "2024-03-01")
	if len(cfg.Holidays) != 1 {
		t.Fatalf("duplicate single added: %v", cfg.Holidays)
	}

	AddHolidayRange(cfg, "2024-04-20", "2024-04-10")
	if got := cfg.HolidayRanges[0]; got.Start != "2024-04-10" || got.End != "2024-04-20" {
		t.Fatalf("reversed range not swapped: %+v", got)
	}

	cfg.HolidayLabels = map[string]string{"2024-03-01": "anniversary"}
	RemoveHolidaySingle(cfg, "2024-03-01")
	if len(cfg.Holidays) != 0 {
		t.Fatalf("single not removed: %v", cfg.Holidays)
	}
	if _, ok := cfg.HolidayLabels["2024-03-01"]; ok {
		t.Fatal("label not removed with its date")
	}

	RemoveHolidayRange(cfg, "2024-04-10", "2024-04-20")
	if len(cfg.HolidayRanges) != 0 {
		t.Fatalf("range not removed: %v", cfg.HolidayRanges)
	}
	// Removing something absent is a no-op.
	RemoveHolidaySingle(cfg, "2024-03-01")
	RemoveHolidayRange(cfg, "2024-04-10", "2024-04-20")
}
