package config

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"

	logx "weekchime/pkg/logx"
)

// Store owns the persisted snapshot and is the single mutual-exclusion
// boundary for mutations: read current config, apply an updater function,
// persist the whole file, then notify subscribers. No component mutates
// fields directly; everything goes through Apply.
type Store struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	// subsMu guards subscriber list and ensures we never send on a channel
	// that is concurrently being closed in Unsubscribe().
	subsMu sync.Mutex
	subs   []chan *Config

	log logx.Logger

	// lastHash tracks the last successfully committed snapshot content.
	// The file watcher uses it to skip reloads of our own writes.
	lastHash uint64
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) SetLogger(log logx.Logger) { s.log = log }

func (s *Store) Path() string { return s.path }

// Load reads the snapshot from disk and commits it.
//
// A missing or unparseable file is not an error: the store falls back to
// the default snapshot (logged, never fatal), per the recovery contract.
func (s *Store) Load() *Config {
	cfg, err := s.parse()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) && !s.log.IsZero() {
			s.log.Warn("config unreadable; using defaults", logx.String("path", s.path), logx.Err(err))
		}
		cfg = Default()
	}
	s.commit(cfg)
	return cfg.Clone()
}

func (s *Store) parse() (*Config, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(s.path, b)
	if err != nil {
		return nil, err
	}

	// Decode over defaults so omitted fields keep out-of-box values.
	// Unknown fields are ignored, never fatal.
	cfg := Default()
	if err := json.Unmarshal(jb, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Get returns a deep copy of the current snapshot. Safe for concurrent use;
// callers may read and discard freely.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Apply runs transform on a copy of the current snapshot under the store
// lock, persists the result, then publishes it to subscribers. It is safe
// to call synchronously from any goroutine, including config-change
// callbacks (the lock is held only for the read-modify-persist step, never
// while notifying).
func (s *Store) Apply(transform func(*Config)) (*Config, error) {
	out, _, err := s.UpdateIf(func(c *Config) bool {
		transform(c)
		return true
	})
	return out, err
}

// UpdateIf is the conditional form of Apply: transform may inspect the
// current snapshot and return false to abort, in which case nothing is
// persisted or published. Decisions that depend on current state (firing
// checks) go through here so re-validation and commit happen under a
// single lock hold.
func (s *Store) UpdateIf(transform func(*Config) bool) (*Config, bool, error) {
	s.mu.Lock()
	next := s.cfg.Clone()
	if next == nil {
		next = Default()
	}
	if !transform(next) {
		s.mu.Unlock()
		return nil, false, nil
	}
	next.Normalize()
	if err := s.writeLocked(next); err != nil {
		s.mu.Unlock()
		return nil, false, err
	}
	s.cfg = next
	s.lastHash = hashConfig(next)
	s.mu.Unlock()

	out := next.Clone()
	s.publish(out)
	return out, true, nil
}

// Save persists the current snapshot without modifying it (flush path).
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return nil
	}
	return s.writeLocked(s.cfg)
}

// Close flushes the snapshot one last time. Best effort.
func (s *Store) Close() error {
	return s.Save()
}

func (s *Store) commit(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.lastHash = hashConfig(cfg)
	s.mu.Unlock()
}

// writeLocked rewrites the whole file via temp-and-rename so a crash mid-write
// never leaves a truncated snapshot behind.
func (s *Store) writeLocked(cfg *Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	return ch
}

func (s *Store) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, sub := range s.subs {
		if sub == ch {
			// swap-remove (order doesn't matter)
			last := len(s.subs) - 1
			s.subs[i] = s.subs[last]
			s.subs[last] = nil
			s.subs = s.subs[:last]
			close(ch)
			return
		}
	}
}

func (s *Store) publish(cfg *Config) {
	// Hold subsMu while sending to avoid send-on-closed panics.
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		if ch == nil {
			continue
		}
		// Always try to deliver the latest snapshot.
		// If subscriber is slow and buffer is full, drop ONE oldest item then push the newest.
		select {
		case ch <- cfg:
			// delivered
		default:
			// drop oldest (if any)
			select {
			case <-ch:
			default:
			}
			// best-effort deliver latest
			select {
			case ch <- cfg:
			default:
				// still full; give up
				if !s.log.IsZero() {
					s.log.Debug(
						"config update dropped (subscriber slow)",
						logx.Int("queue_len", len(ch)),
						logx.Int("queue_cap", cap(ch)),
					)
				}
			}
		}
	}
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
