package config

import "encoding/json"

// DayKeys lists the seven weekday keys in schedule order (Monday first).
var DayKeys = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// DaySlot is one weekday's schedule configuration.
type DaySlot struct {
	Enabled bool `json:"enabled"`
	// Time is the local wall-clock fire time, "HH:MM".
	Time       string `json:"time"`
	AutoAssign bool   `json:"auto_assign"`
	// AudioPath is the manual audio reference; empty means unset.
	AudioPath          string `json:"audio_path"`
	AllowRemote        bool   `json:"allow_remote"`
	AllowLocalShutdown bool   `json:"allow_local_shutdown"`
	// LastRan is the calendar date ("2006-01-02") this slot last fired,
	// empty if it never fired. Guards against double-firing within one day.
	LastRan string `json:"last_ran"`
}

// UnmarshalJSON decodes over slot defaults so partially-specified day
// entries keep sane values for omitted fields.
func (d *DaySlot) UnmarshalJSON(b []byte) error {
	*d = DefaultDaySlot()
	type alias DaySlot
	return json.Unmarshal(b, (*alias)(d))
}

// HolidayRange is an inclusive date range, both ends "2006-01-02".
// End is not validated against Start at storage time; the schedule
// package treats reversed or malformed ranges as never matching.
type HolidayRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label,omitempty"`
}

// RemoteHost describes one machine to shut down after a firing.
type RemoteHost struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"password"`
	Method   string `json:"method"` // "ssh" or "winrm"
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the run-history persistence layer.
//
// Driver values: "file" (jsonl), "sqlite", "" or "none" (disabled).
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// Config is the persisted snapshot: the single source of truth, loaded at
// startup and rewritten wholesale after every mutation.
type Config struct {
	Playlist         []string `json:"playlist"`
	PlaylistRotation int      `json:"playlist_rotation"`

	HolidaysEnabled  bool              `json:"holidays_enabled"`
	AutoSkipWeekends bool              `json:"auto_skip_weekends"`
	Holidays         []string          `json:"holidays"`
	HolidayRanges    []HolidayRange    `json:"holiday_ranges"`
	HolidayLabels    map[string]string `json:"holiday_labels,omitempty"`

	EnableRemoteShutdown bool `json:"enable_remote_shutdown"`
	EnableLocalShutdown  bool `json:"enable_local_shutdown"`
	// ShutdownDelay is the local shutdown grace period in seconds.
	ShutdownDelay int `json:"shutdown_delay"`

	// Targets are process names terminated before playback.
	Targets     []string     `json:"targets"`
	RemoteHosts []RemoteHost `json:"remote_hosts"`

	Days map[string]*DaySlot `json:"days"`

	// PollSpec is the trigger-loop cadence: a cron spec or "@every" duration.
	PollSpec string `json:"poll_spec,omitempty"`

	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage,omitempty"`
}

// DefaultTargets matches the out-of-box kill list.
var DefaultTargets = []string{"chrome.exe", "msedge.exe", "vlc.exe", "YouTube Music.exe"}

func DefaultDaySlot() DaySlot {
	return DaySlot{
		Enabled:            true,
		Time:               "09:00",
		AutoAssign:         true,
		AllowRemote:        true,
		AllowLocalShutdown: true,
	}
}

// Default returns the out-of-box snapshot: weekdays enabled at 09:00,
// weekend slots present but disabled.
func Default() *Config {
	cfg := &Config{
		Playlist:             []string{},
		Holidays:             []string{},
		HolidayRanges:        []HolidayRange{},
		HolidaysEnabled:      true,
		EnableRemoteShutdown: true,
		EnableLocalShutdown:  true,
		ShutdownDelay:        5,
		Targets:              append([]string(nil), DefaultTargets...),
		RemoteHosts:          []RemoteHost{},
		Days:                 map[string]*DaySlot{},
		PollSpec:             "@every 15s",
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Storage: StorageConfig{Driver: "file", Path: "./weekchime_store"},
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills structural gaps after a load or transform: all seven day
// keys exist (weekend defaults disabled), slices are non-nil, and the
// rotation cursor is non-negative.
func (c *Config) Normalize() {
	if c.Days == nil {
		c.Days = map[string]*DaySlot{}
	}
	for _, key := range DayKeys {
		if c.Days[key] == nil {
			slot := DefaultDaySlot()
			if key == "sat" || key == "sun" {
				slot.Enabled = false
			}
			c.Days[key] = &slot
		}
	}
	if c.Playlist == nil {
		c.Playlist = []string{}
	}
	if c.Holidays == nil {
		c.Holidays = []string{}
	}
	if c.HolidayRanges == nil {
		c.HolidayRanges = []HolidayRange{}
	}
	if c.Targets == nil {
		c.Targets = append([]string(nil), DefaultTargets...)
	}
	if c.RemoteHosts == nil {
		c.RemoteHosts = []RemoteHost{}
	}
	if c.PlaylistRotation < 0 {
		c.PlaylistRotation = 0
	}
	if c.PollSpec == "" {
		c.PollSpec = "@every 15s"
	}
}

// Clone returns a deep copy. Store hands out and accepts only copies so no
// caller can mutate shared state outside the Apply lock.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Playlist = append([]string(nil), c.Playlist...)
	cp.Holidays = append([]string(nil), c.Holidays...)
	cp.HolidayRanges = append([]HolidayRange(nil), c.HolidayRanges...)
	cp.Targets = append([]string(nil), c.Targets...)
	cp.RemoteHosts = append([]RemoteHost(nil), c.RemoteHosts...)
	if c.HolidayLabels != nil {
		cp.HolidayLabels = make(map[string]string, len(c.HolidayLabels))
		for k, v := range c.HolidayLabels {
			cp.HolidayLabels[k] = v
		}
	}
	cp.Days = make(map[string]*DaySlot, len(c.Days))
	for k, v := range c.Days {
		if v == nil {
			continue
		}
		slot := *v
		cp.Days[k] = &slot
	}
	return &cp
}
