package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunEntry records one firing decision and its dispatch outcome.
// Keep it compact and schema-stable.
type RunEntry struct {
	At       time.Time `json:"at"`
	DayKey   string    `json:"day_key"`
	AudioRef string    `json:"audio_ref,omitempty"`
	Remote   bool      `json:"remote"`
	Local    bool      `json:"local"`
	// Outcome is "fired", "dispatch_failed" or "skipped".
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
	TookMS  int64  `json:"took_ms"`
}
