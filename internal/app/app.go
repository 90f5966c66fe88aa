// Package app wires the daemon together: config store, logging service,
// run-history storage, schedule engine and trigger loop.
package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"weekchime/internal/actions"
	"weekchime/internal/config"
	"weekchime/internal/eventbus"
	"weekchime/internal/schedule"
	"weekchime/internal/storage"
	"weekchime/internal/trigger"
	logx "weekchime/pkg/logx"
)

type App struct {
	store *config.Store
	logs  *logx.Service
	log   logx.Logger
	bus   eventbus.Bus
	runs  storage.Store

	engine *schedule.Engine
	trig   *trigger.Service

	cfgCh       chan *config.Config
	watchCancel context.CancelFunc
	wg          sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	store := config.NewStore(cfgPath)
	store.SetLogger(logx.NewConsole("info"))
	cfg := store.Load()

	logSvc, log := logx.New(loggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	store.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))

	bus := eventbus.New()

	runs, err := storage.Open(storageConfig(cfg), logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		// The run log is nice-to-have; the schedule must keep working without it.
		log.Warn("run-history storage unavailable", logx.Err(err))
		runs = nil
	}

	engine := schedule.NewEngine(store, schedule.SystemClock{}, logSvc.Logger().With(logx.String("comp", "schedule")))

	actLog := logSvc.Logger().With(logx.String("comp", "actions"))
	trig := trigger.New(trigger.Deps{
		Store:  store,
		Engine: engine,
		Bus:    bus,
		Runs:   runs,
		Term:   actions.NewProcessTerminator(actLog),
		Player: actions.NewExecPlayer(actLog),
		Shut:   actions.NewSystemShutdown(actLog),
		Logger: logSvc.Logger().With(logx.String("comp", "trigger")),
	})

	return &App{
		store:  store,
		logs:   logSvc,
		log:    log,
		bus:    bus,
		runs:   runs,
		engine: engine,
		trig:   trig,
	}, nil
}

// Engine exposes the resolution engine for read-only projections
// ("next run" displays, previews).
func (a *App) Engine() *schedule.Engine { return a.engine }

// Store exposes the config store; all mutations go through Store.Apply.
func (a *App) Store() *config.Store { return a.store }

// Bus exposes the event bus for observers (run.fired, run.next, ...).
func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel

	// Reload on external file edits.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.store.Watch(watchCtx)
	}()

	// Follow logging-config changes across reloads and edits.
	a.cfgCh = a.store.Subscribe(4)
	cfgCh := a.cfgCh
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-watchCtx.Done():
				return
			case cfg, ok := <-cfgCh:
				if !ok {
					return
				}
				if cfg == nil {
					continue
				}
				a.logs.Apply(loggingConfig(cfg))
				a.bus.Publish(eventbus.Event{Topic: "config.updated", Data: cfg})
			}
		}
	}()

	a.trig.Start(ctx)
	if next, ok := a.engine.NextRun(); ok {
		a.log.Info("next scheduled run",
			logx.Time("when", next.When),
			logx.String("day", next.DayKey),
			logx.String("audio", next.AudioRef))
	} else {
		a.log.Info("no runs scheduled; enable a weekday slot")
	}
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.trig.Stop(ctx)
	if a.watchCancel != nil {
		a.watchCancel()
	}
	if a.cfgCh != nil {
		a.store.Unsubscribe(a.cfgCh)
		a.cfgCh = nil
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if a.runs != nil {
		_ = a.runs.Close()
	}
	_ = a.store.Close()
	_ = a.logs.Close()
	return nil
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func storageConfig(cfg *config.Config) storage.Config {
	busy := time.Duration(0)
	if raw := strings.TrimSpace(cfg.Storage.BusyTimeout); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			busy = d
		}
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}
