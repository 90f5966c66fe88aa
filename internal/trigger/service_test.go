package trigger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"weekchime/internal/config"
	"weekchime/internal/eventbus"
	"weekchime/internal/schedule"
	"weekchime/internal/storage"
	logx "weekchime/pkg/logx"
)

type fakeTerminator struct {
	mu    sync.Mutex
	names []string
}

func (f *fakeTerminator) Terminate(_ context.Context, names []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append([]string(nil), names...)
}

// fakePlayer runs the finished callback synchronously so tests see the
// whole dispatch chain by the time tick returns.
type fakePlayer struct {
	mu   sync.Mutex
	refs []string
	err  error
}

func (f *fakePlayer) Play(_ context.Context, ref string, onFinished func(error)) {
	f.mu.Lock()
	f.refs = append(f.refs, ref)
	err := f.err
	f.mu.Unlock()
	onFinished(err)
}

type fakeShutdown struct {
	mu          sync.Mutex
	remoteCalls int
	localCalls  int
	localDelay  int
}

func (f *fakeShutdown) ShutdownRemote(_ context.Context, hosts []config.RemoteHost) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remoteCalls++
}

func (f *fakeShutdown) ShutdownLocal(_ context.Context, delaySeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localCalls++
	f.localDelay = delaySeconds
	return nil
}

type memRuns struct {
	mu      sync.Mutex
	entries []storage.RunEntry
}

func (m *memRuns) AppendRun(_ context.Context, e storage.RunEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRuns) RecentRuns(_ context.Context, limit int) ([]storage.RunEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.RunEntry(nil), m.entries...), nil
}

func (m *memRuns) Close() error { return nil }

type harness struct {
	svc    *Service
	store  *config.Store
	term   *fakeTerminator
	player *fakePlayer
	shut   *fakeShutdown
	runs   *memRuns
	events <-chan eventbus.Event
	unsub  func()
}

func newHarness(t *testing.T, at time.Time, mutate func(*config.Config)) *harness {
	t.Helper()
	store := config.NewStore(filepath.Join(t.TempDir(), "config.json"))
	store.Load()
	if mutate != nil {
		if _, err := store.Apply(mutate); err != nil {
			t.Fatalf("seed config: %v", err)
		}
	}

	clock := schedule.FixedClock{At: at}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	t.Cleanup(unsub)

	h := &harness{
		store:  store,
		term:   &fakeTerminator{},
		player: &fakePlayer{},
		shut:   &fakeShutdown{},
		runs:   &memRuns{},
		events: ch,
		unsub:  unsub,
	}
	h.svc = New(Deps{
		Store:  store,
		Engine: schedule.NewEngine(store, clock, logx.Nop()),
		Clock:  clock,
		Bus:    bus,
		Runs:   h.runs,
		Term:   h.term,
		Player: h.player,
		Shut:   h.shut,
		Logger: logx.Nop(),
	})
	return h
}

func (h *harness) nextEvent(t *testing.T, topic string) eventbus.Event {
	t.Helper()
	select {
	case ev := <-h.events:
		if ev.Topic != topic {
			t.Fatalf("event topic = %s, want %s", ev.Topic, topic)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("no %s event", topic)
		return eventbus.Event{}
	}
}

// Monday 2024-01-01, five seconds into the 09:00 trigger window.
var insideWindow = time.Date(2024, 1, 1, 9, 0, 5, 0, time.Local)

func TestTickDispatchChain(t *testing.T) {
	t.Parallel()
	h := newHarness(t, insideWindow, func(c *config.Config) {
		c.Playlist = []string{"chime.mp3"}
		c.Targets = []string{"vlc.exe"}
		c.RemoteHosts = []config.RemoteHost{{Host: "lab-1", Method: "ssh"}}
		c.ShutdownDelay = 7
	})

	h.svc.tick(context.Background())

	ev := h.nextEvent(t, "run.fired")
	fired, ok := ev.Data.(schedule.FireEvent)
	if !ok {
		t.Fatalf("run.fired data = %T", ev.Data)
	}
	if fired.DayKey != "mon" || fired.AudioRef != "chime.mp3" {
		t.Fatalf("fired = %+v", fired)
	}

	if len(h.term.names) != 1 || h.term.names[0] != "vlc.exe" {
		t.Fatalf("terminated = %v", h.term.names)
	}
	if len(h.player.refs) != 1 || h.player.refs[0] != "chime.mp3" {
		t.Fatalf("played = %v", h.player.refs)
	}
	if h.shut.remoteCalls != 1 {
		t.Fatalf("remote shutdowns = %d, want 1", h.shut.remoteCalls)
	}
	if h.shut.localCalls != 1 || h.shut.localDelay != 7 {
		t.Fatalf("local shutdown calls=%d delay=%d", h.shut.localCalls, h.shut.localDelay)
	}

	if len(h.runs.entries) != 1 {
		t.Fatalf("run log entries = %d, want 1", len(h.runs.entries))
	}
	entry := h.runs.entries[0]
	if entry.Outcome != "fired" || entry.DayKey != "mon" || entry.AudioRef != "chime.mp3" {
		t.Fatalf("entry = %+v", entry)
	}

	// Commit happened: the slot is stamped and the cursor advanced.
	cfg := h.store.Get()
	if cfg.Days["mon"].LastRan != "2024-01-01" || cfg.PlaylistRotation != 0 {
		// Single-track playlist wraps 0 -> 0.
		t.Fatalf("post-fire snapshot: last_ran=%q cursor=%d", cfg.Days["mon"].LastRan, cfg.PlaylistRotation)
	}
}

func TestTickOutsideWindowPublishesNextRun(t *testing.T) {
	t.Parallel()
	h := newHarness(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local), nil)

	h.svc.tick(context.Background())

	ev := h.nextEvent(t, "run.next")
	next, ok := ev.Data.(schedule.UpcomingRun)
	if !ok {
		t.Fatalf("run.next data = %T", ev.Data)
	}
	if next.DayKey != "mon" || next.When.Format(schedule.DateLayout) != "2024-01-01" {
		t.Fatalf("next = %+v", next)
	}
	if len(h.player.refs) != 0 || h.shut.localCalls != 0 {
		t.Fatal("nothing should dispatch outside the window")
	}
}

func TestTickShutdownGates(t *testing.T) {
	t.Parallel()
	h := newHarness(t, insideWindow, func(c *config.Config) {
		c.EnableLocalShutdown = false
		c.EnableRemoteShutdown = false
	})

	h.svc.tick(context.Background())
	h.nextEvent(t, "run.fired")

	if h.shut.remoteCalls != 0 || h.shut.localCalls != 0 {
		t.Fatalf("shutdown ran despite gates: remote=%d local=%d", h.shut.remoteCalls, h.shut.localCalls)
	}
}

func TestTickRecordsPlaybackFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, insideWindow, func(c *config.Config) {
		c.Playlist = []string{"missing.mp3"}
	})
	h.player.err = errors.New("ffplay exited 1")

	h.svc.tick(context.Background())

	if len(h.runs.entries) != 1 {
		t.Fatalf("run log entries = %d, want 1", len(h.runs.entries))
	}
	entry := h.runs.entries[0]
	if entry.Outcome != "dispatch_failed" || entry.Error == "" {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	h := newHarness(t, insideWindow, func(c *config.Config) {
		// Keep the real cron idle for the duration of the test.
		c.PollSpec = "@every 1h"
	})

	ctx := context.Background()
	h.svc.Start(ctx)
	h.svc.Start(ctx) // second start is a no-op

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	h.svc.Stop(stopCtx)
	h.svc.Stop(stopCtx) // second stop is a no-op
}

func TestPollSpecChangeRacingStop(t *testing.T) {
	t.Parallel()
	// A cadence change arriving while Stop tears the loop down must never
	// start a fresh cron past the stop.
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		h := newHarness(t, insideWindow, func(c *config.Config) {
			c.PollSpec = "@every 1h"
		})
		h.svc.Start(ctx)

		next := h.store.Get()
		next.PollSpec = "@every 2h"

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.svc.applyConfig(next)
		}()
		go func() {
			defer wg.Done()
			h.svc.Stop(ctx)
		}()
		wg.Wait()

		h.svc.mu.Lock()
		leaked := h.svc.c
		h.svc.mu.Unlock()
		if leaked != nil {
			t.Fatal("cron restarted after stop")
		}
	}
}

func TestPollSpecChangeRestartsCron(t *testing.T) {
	t.Parallel()
	h := newHarness(t, insideWindow, func(c *config.Config) {
		c.PollSpec = "@every 1h"
	})
	ctx := context.Background()
	h.svc.Start(ctx)
	defer h.svc.Stop(ctx)

	next := h.store.Get()
	next.PollSpec = "@every 2h"
	h.svc.applyConfig(next)

	h.svc.mu.Lock()
	spec, c := h.svc.spec, h.svc.c
	h.svc.mu.Unlock()
	if spec != "@every 2h" {
		t.Fatalf("spec = %q, want @every 2h", spec)
	}
	if c == nil {
		t.Fatal("cron gone after cadence change")
	}
}

func TestPollSpecFallback(t *testing.T) {
	t.Parallel()
	h := newHarness(t, insideWindow, func(c *config.Config) {
		c.PollSpec = "not a cron spec"
	})

	ctx := context.Background()
	h.svc.Start(ctx)
	defer h.svc.Stop(ctx)

	h.svc.mu.Lock()
	spec := h.svc.spec
	h.svc.mu.Unlock()
	if spec != defaultPollSpec {
		t.Fatalf("spec = %q, want fallback %q", spec, defaultPollSpec)
	}
}
