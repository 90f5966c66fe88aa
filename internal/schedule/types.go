package schedule

import "time"

// DateLayout is the calendar-date form used throughout the snapshot.
const DateLayout = "2006-01-02"

// TriggerWindow bounds how long after a slot's fire time the polling loop
// still recognizes it as due. A tick never triggers before the target and a
// missed window is never caught up.
const TriggerWindow = 30 * time.Second

// DefaultHorizonDays covers two full weeks twice over, guaranteeing at
// least one projected hit per enabled weekday.
const DefaultHorizonDays = 28

// UpcomingRun is one projected fire event. Derived, never persisted.
type UpcomingRun struct {
	When          time.Time `json:"when"`
	DayKey        string    `json:"day_key"`
	AudioRef      string    `json:"audio_ref,omitempty"`
	IsAuto        bool      `json:"is_auto"`
	RemoteAllowed bool      `json:"remote_allowed"`
	LocalAllowed  bool      `json:"local_allowed"`
}

// FireEvent is a committed firing decision handed to the trigger loop.
type FireEvent struct {
	When          time.Time
	DayKey        string
	AudioRef      string
	RemoteAllowed bool
	LocalAllowed  bool
}

// Clock abstracts time.Now so tests can pin "now" to a known weekday.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock returns a constant instant. Test helper.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
