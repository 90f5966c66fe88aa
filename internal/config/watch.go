package config

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "weekchime/pkg/logx"
)

// Watch reloads the snapshot when the file changes on disk (e.g. a hand
// edit while the daemon runs). Our own Apply writes are recognized by
// content hash and skipped. Blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)

	// When fsnotify gets into a bad state (common on Windows + certain editors),
	// the watcher may stop delivering events or close its channels.
	// Self-heal by recreating the watcher with a small exponential backoff.
	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	// local RNG to avoid global contention (and to keep jitter deterministic per process).
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// debounce to avoid partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		if !s.log.IsZero() {
			s.log.Debug("config change detected; scheduling reload", logx.String("path", s.path))
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			cfg, err := s.parse()
			if err != nil || cfg == nil {
				if !s.log.IsZero() {
					s.log.Warn("config reload failed; keeping current snapshot", logx.String("path", s.path), logx.Err(err))
				}
				return
			}

			// Skip redundant reloads when content is unchanged (covers our own writes).
			h := hashConfig(cfg)
			s.mu.RLock()
			unchanged := h != 0 && h == s.lastHash
			s.mu.RUnlock()
			if unchanged {
				if !s.log.IsZero() {
					s.log.Debug("config unchanged; skipping publish", logx.String("path", s.path))
				}
				return
			}

			s.commit(cfg)
			s.publish(cfg.Clone())
			if !s.log.IsZero() {
				s.log.Info("config reloaded from disk", logx.String("path", s.path))
			}
		})
	}

	wait := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}
	nextBackoff := func() time.Duration {
		d := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff *= 2
			if backoff > restartBackoffMax {
				backoff = restartBackoffMax
			}
		}
		return d
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err != nil {
			if !s.log.IsZero() {
				s.log.Warn("config watch init failed", logx.Err(err), logx.String("dir", dir))
			}
			if !wait(nextBackoff()) {
				return nil
			}
			continue
		}

		if err := w.Add(dir); err != nil {
			_ = w.Close()
			if !s.log.IsZero() {
				s.log.Warn("config watch add failed", logx.Err(err), logx.String("dir", dir))
			}
			if !wait(nextBackoff()) {
				return nil
			}
			continue
		}

		// success; reset backoff so transient issues don't cause long restart delays
		backoff = restartBackoffBase
		if !s.log.IsZero() {
			s.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))
		}

		// inner loop: runs until watcher breaks, then outer loop recreates it.
		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				// Compare by basename (more robust across absolute/relative paths and OS quirks).
				if strings.EqualFold(filepath.Base(ev.Name), file) {
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
						debounce()
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				// Overflow means we may have missed events; reload once and keep going.
				// Avoid depending on a specific fsnotify error constant across versions.
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					if !s.log.IsZero() {
						s.log.Warn("config watch overflow; forcing reload", logx.Err(err), logx.String("dir", dir))
					}
					debounce()
					continue
				}
				if !s.log.IsZero() {
					s.log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
				}
				// Some fsnotify backends surface watcher closure via an error.
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
					break
				}
			}
		}

		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		// restart with a small jittered backoff to avoid tight restart loops.
		d := nextBackoff()
		if !s.log.IsZero() {
			s.log.Warn(
				"config watcher stopped; restarting",
				logx.String("dir", dir),
				logx.String("file", file),
				logx.Duration("backoff", d),
			)
		}
		if !wait(d) {
			return nil
		}
	}
}
