package schedule

import (
	"time"

	"golang.org/x/time/rate"

	"weekchime/internal/config"
	logx "weekchime/pkg/logx"
)

// Engine combines the holiday calendar, day table and playlist rotation
// into eligibility checks, projections and firing decisions. It holds no
// schedule state of its own; everything lives in the config store.
type Engine struct {
	store *config.Store
	clock Clock
	log   logx.Logger

	// The poll loop re-evaluates every few seconds, so a slot with a broken
	// time string would otherwise warn on every tick.
	warnLimit *rate.Limiter
}

func NewEngine(store *config.Store, clock Clock, log logx.Logger) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		store:     store,
		clock:     clock,
		log:       log,
		warnLimit: rate.NewLimiter(rate.Every(time.Minute), 1),
	}
}

// IsEligible reports whether the slot may fire on the given date: the day
// must be enabled, the date must not be a holiday, and the slot must not
// have fired on that date already.
func (e *Engine) IsEligible(cfg *config.Config, dayKey string, date time.Time) bool {
	slot := cfg.Days[dayKey]
	if slot == nil || !slot.Enabled {
		return false
	}
	if cfg.HolidaysEnabled && IsHoliday(cfg, date) {
		return false
	}
	if slot.LastRan != "" && slot.LastRan == date.Format(DateLayout) {
		return false
	}
	return true
}

// UpcomingRuns walks calendar days forward from now and projects up to
// limit eligible fire events within horizonDays. Audio is resolved with a
// simulated rotation: a local index starts at the live cursor and advances
// (locally only) each time an auto-assigned day consumes a playlist slot,
// so the preview shows exactly the tracks a real run sequence would play.
// Results are chronological; nothing is mutated.
func (e *Engine) UpcomingRuns(horizonDays, limit int) []UpcomingRun {
	cfg := e.store.Get()
	now := e.clock.Now()
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	var runs []UpcomingRun
	idx := cfg.PlaylistRotation
	n := len(cfg.Playlist)
	for offset := 0; offset < horizonDays; offset++ {
		if limit > 0 && len(runs) >= limit {
			break
		}
		day := now.AddDate(0, 0, offset)
		dayKey := DayKeyFor(day)
		if !e.IsEligible(cfg, dayKey, day) {
			continue
		}
		slot := cfg.Days[dayKey]
		when, err := fireTimeOn(day, slot)
		if err != nil {
			e.warnMalformed(dayKey, slot.Time, err)
			continue
		}
		if !when.After(now) {
			// A slot time already past today is not re-offered today.
			continue
		}
		ref := slot.AudioPath
		if slot.AutoAssign && n > 0 {
			ref = cfg.Playlist[mod(idx, n)]
			idx++
		}
		runs = append(runs, UpcomingRun{
			When:          when,
			DayKey:        dayKey,
			AudioRef:      ref,
			IsAuto:        slot.AutoAssign,
			RemoteAllowed: cfg.EnableRemoteShutdown && slot.AllowRemote,
			LocalAllowed:  cfg.EnableLocalShutdown && slot.AllowLocalShutdown,
		})
	}
	return runs
}

// NextRun returns the soonest projected run, if any.
func (e *Engine) NextRun() (UpcomingRun, bool) {
	runs := e.UpcomingRuns(DefaultHorizonDays, 1)
	if len(runs) == 0 {
		return UpcomingRun{}, false
	}
	return runs[0], true
}

// CheckAndFire evaluates today's slot against now. It returns a FireEvent
// when now falls inside the trigger window after the slot's fire time;
// otherwise nil. A window that was missed entirely (process asleep through
// it) is never caught up.
//
// On a positive decision the rotation-cursor advance (when a playlist slot
// was consumed) and the last-ran stamp are committed BEFORE the event is
// returned for dispatch. Mark-then-dispatch means a crash between commit
// and side effects skips that day rather than firing twice; we prefer a
// silent skip over a duplicate shutdown.
//
// The whole decision runs inside one Store.UpdateIf transform, so the
// eligibility check, the audio resolution and the commit see the same
// snapshot under the same lock hold. A concurrent reload or edit lands
// either fully before the decision (and is honored) or fully after it, and
// two racing ticks can never both fire for one date.
func (e *Engine) CheckAndFire(now time.Time) (*FireEvent, error) {
	dayKey := DayKeyFor(now)
	date := now.Format(DateLayout)

	var ev *FireEvent
	var badTime string
	var badTimeErr error
	_, fired, err := e.store.UpdateIf(func(c *config.Config) bool {
		if !e.IsEligible(c, dayKey, now) {
			return false
		}
		slot := c.Days[dayKey]
		target, terr := fireTimeOn(now, slot)
		if terr != nil {
			badTime, badTimeErr = slot.Time, terr
			return false
		}
		delta := now.Sub(target)
		if delta < 0 || delta > TriggerWindow {
			return false
		}

		ref, fromPlaylist := ResolveAudio(c, dayKey)
		ev = &FireEvent{
			When:          now,
			DayKey:        dayKey,
			AudioRef:      ref,
			RemoteAllowed: c.EnableRemoteShutdown && slot.AllowRemote,
			LocalAllowed:  c.EnableLocalShutdown && slot.AllowLocalShutdown,
		}
		if fromPlaylist {
			AdvanceCursor(c)
		}
		slot.LastRan = date
		return true
	})
	if badTimeErr != nil {
		e.warnMalformed(dayKey, badTime, badTimeErr)
	}
	if err != nil {
		// Without a durable commit the decision is not safe to act on.
		return nil, err
	}
	if !fired {
		return nil, nil
	}
	return ev, nil
}

// MarkFired stamps the slot's last-ran date so it cannot fire again on the
// same calendar date. CheckAndFire already does this as part of its commit;
// this entry point exists for forced runs driven from outside the loop.
func (e *Engine) MarkFired(dayKey string, date time.Time) error {
	ds := date.Format(DateLayout)
	_, err := e.store.Apply(func(c *config.Config) {
		if s := c.Days[dayKey]; s != nil {
			s.LastRan = ds
		}
	})
	return err
}

func (e *Engine) warnMalformed(dayKey, raw string, err error) {
	if e.log.IsZero() || !e.warnLimit.Allow() {
		return
	}
	e.log.Warn("slot has malformed fire time; treating as ineligible",
		logx.String("day", dayKey), logx.String("time", raw), logx.Err(err))
}
