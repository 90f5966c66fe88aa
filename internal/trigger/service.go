package trigger

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"weekchime/internal/actions"
	"weekchime/internal/config"
	"weekchime/internal/eventbus"
	"weekchime/internal/schedule"
	"weekchime/internal/storage"
	logx "weekchime/pkg/logx"
)

const defaultPollSpec = "@every 15s"

// Service owns the poll loop. The cadence comes from the snapshot's
// poll_spec (cron or "@every" form) and follows config reloads.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	store  *config.Store
	engine *schedule.Engine
	clock  schedule.Clock
	bus    eventbus.Bus
	runs   storage.Store

	term   actions.Terminator
	player actions.Player
	shut   actions.Shutdowner

	parser cron.Parser
	c      *cron.Cron
	spec   string

	runCtx    context.Context
	runCancel context.CancelFunc
	cfgCh     chan *config.Config
	wg        sync.WaitGroup
}

type Deps struct {
	Store  *config.Store
	Engine *schedule.Engine
	Clock  schedule.Clock
	Bus    eventbus.Bus
	Runs   storage.Store
	Term   actions.Terminator
	Player actions.Player
	Shut   actions.Shutdowner
	Logger logx.Logger
}

func New(d Deps) *Service {
	clock := d.Clock
	if clock == nil {
		clock = schedule.SystemClock{}
	}
	return &Service{
		log:    d.Logger,
		store:  d.Store,
		engine: d.Engine,
		clock:  clock,
		bus:    d.Bus,
		runs:   d.Runs,
		term:   d.Term,
		player: d.Player,
		shut:   d.Shut,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	spec := defaultPollSpec
	if cfg := s.store.Get(); cfg != nil && strings.TrimSpace(cfg.PollSpec) != "" {
		spec = strings.TrimSpace(cfg.PollSpec)
	}
	s.startCronLocked(spec)

	// Follow snapshot updates: a poll_spec edit restarts the cron entry and
	// any schedule edit shifts the projected next run.
	s.cfgCh = s.store.Subscribe(4)
	runCtx := s.runCtx
	cfgCh := s.cfgCh
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-cfgCh:
				if !ok {
					return
				}
				s.applyConfig(cfg)
			}
		}
	}()

	s.log.Info("trigger loop started", logx.String("spec", spec))
}

func (s *Service) startCronLocked(spec string) {
	sched, err := s.parser.Parse(spec)
	if err != nil {
		s.log.Warn("invalid poll_spec; falling back",
			logx.String("spec", spec), logx.String("fallback", defaultPollSpec), logx.Err(err))
		spec = defaultPollSpec
		sched, _ = s.parser.Parse(spec)
	}
	s.spec = spec
	runCtx := s.runCtx
	s.c = cron.New(cron.WithParser(s.parser))
	s.c.Schedule(sched, cron.FuncJob(func() { s.tick(runCtx) }))
	s.c.Start()
}

func (s *Service) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	spec := strings.TrimSpace(cfg.PollSpec)
	if spec == "" {
		spec = defaultPollSpec
	}
	s.mu.Lock()
	if s.c != nil && spec != s.spec {
		old := s.c
		s.mu.Unlock()
		<-old.Stop().Done()
		s.mu.Lock()
		// Stop may have run while we waited; starting a fresh cron past it
		// would leak one. Only restart if ours is still the live entry.
		if s.c == old {
			s.startCronLocked(spec)
			s.log.Info("poll cadence updated", logx.String("spec", spec))
		}
	}
	s.mu.Unlock()

	s.publishNextRun()
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	cfgCh := s.cfgCh
	s.c = nil
	s.runCancel = nil
	s.cfgCh = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	if cancel != nil {
		cancel()
	}
	if cfgCh != nil {
		s.store.Unsubscribe(cfgCh)
	}

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("trigger loop stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		// stop continues in background
	}
}

// tick is one poll: Idle -> Evaluate -> [no match] | [Fire -> dispatch].
func (s *Service) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in trigger tick", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	if ctx.Err() != nil {
		return
	}

	now := s.clock.Now()
	ev, err := s.engine.CheckAndFire(now)
	if err != nil {
		s.log.Error("firing decision could not be committed; skipping", logx.Err(err))
		return
	}
	if ev == nil {
		s.publishNextRun()
		return
	}
	s.dispatch(ctx, ev)
}

func (s *Service) dispatch(ctx context.Context, ev *schedule.FireEvent) {
	start := s.clock.Now()
	s.log.Info("schedule fired",
		logx.String("day", ev.DayKey),
		logx.String("audio", ev.AudioRef),
		logx.Bool("remote", ev.RemoteAllowed),
		logx.Bool("local", ev.LocalAllowed))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Topic: "run.fired", Data: *ev})
	}

	cfg := s.store.Get()
	s.term.Terminate(ctx, cfg.Targets)

	// Playback is fire-and-forget; the shutdown follow-up chains off the
	// finished callback so the loop itself never blocks on audio.
	s.player.Play(ctx, ev.AudioRef, func(perr error) {
		if ev.RemoteAllowed {
			s.shut.ShutdownRemote(ctx, cfg.RemoteHosts)
		}
		if ev.LocalAllowed {
			if err := s.shut.ShutdownLocal(ctx, cfg.ShutdownDelay); err != nil && !s.log.IsZero() {
				s.log.Warn("local shutdown failed", logx.Err(err))
			}
		}
		s.record(ctx, ev, start, perr)
	})
}

func (s *Service) record(ctx context.Context, ev *schedule.FireEvent, start time.Time, perr error) {
	if s.runs == nil {
		return
	}
	entry := storage.RunEntry{
		At:       ev.When,
		DayKey:   ev.DayKey,
		AudioRef: ev.AudioRef,
		Remote:   ev.RemoteAllowed,
		Local:    ev.LocalAllowed,
		Outcome:  "fired",
		TookMS:   s.clock.Now().Sub(start).Milliseconds(),
	}
	if perr != nil {
		entry.Outcome = "dispatch_failed"
		entry.Error = perr.Error()
	}
	if err := s.runs.AppendRun(ctx, entry); err != nil && !s.log.IsZero() {
		s.log.Warn("run log append failed", logx.Err(err))
	}
}

func (s *Service) publishNextRun() {
	if s.bus == nil {
		return
	}
	if next, ok := s.engine.NextRun(); ok {
		s.bus.Publish(eventbus.Event{Topic: "run.next", Data: next})
		return
	}
	s.bus.Publish(eventbus.Event{Topic: "run.next", Data: nil})
}
