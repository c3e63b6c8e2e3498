// Package app wires configuration, storage, the Telegram adapter, the
// registration manager, the resolver and the notify cycle into one
// start/stoppable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zapbot/internal/bot"
	"zapbot/internal/config"
	"zapbot/internal/notify"
	"zapbot/internal/register"
	"zapbot/internal/resolver"
	rtsup "zapbot/internal/runtime/supervisor"
	"zapbot/internal/schedule"
	"zapbot/internal/storage"
	"zapbot/internal/transport"
	"zapbot/internal/transport/telegram"
	"zapbot/pkg/logx"
)

const updateQueueSize = 256

type App struct {
	log    logx.Logger
	logSvc *logx.Service

	cfgMgr   *config.Manager
	settings config.Settings

	store   storage.Store
	adapter *telegram.Adapter
	router  *bot.Router
	notify  *notify.Service

	sup     *rtsup.Supervisor
	updates chan transport.Update
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	settings, err := cfg.Resolve()
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if settings.SourceLooksLikeAddressList() {
		log.Warn("schedule.source_url points at the street-address listing, " +
			"not the hourly outage schedule page; interval extraction will find nothing")
	}

	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	storePath := cfg.Storage.Path
	if storePath == "" {
		storePath = "./zap_bot.db"
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        storePath,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	fetcher := schedule.NewFetcher(settings.SourceURL, settings.FetchTimeout)
	reg := register.New(store, log.With(logx.String("comp", "register")))
	res := resolver.New(fetcher, log.With(logx.String("comp", "resolver")))
	router := bot.New(adapter, reg, res, settings, log.With(logx.String("comp", "bot")))

	cycle := notify.NewCycle(settings, fetcher, store, adapter, log.With(logx.String("comp", "notify")))
	notifySvc := notify.NewService(cycle, settings.PollInterval, settings.Location, log.With(logx.String("comp", "notify")))

	return &App{
		log:      log,
		logSvc:   logSvc,
		cfgMgr:   mgr,
		settings: settings,
		store:    store,
		adapter:  adapter,
		router:   router,
		notify:   notifySvc,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log.With(logx.String("comp", "app"))))
	a.updates = make(chan transport.Update, updateQueueSize)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return fmt.Errorf("start telegram: %w", err)
	}

	a.sup.Go("bot.router", func(ctx context.Context) error {
		return a.router.Run(ctx, a.updates)
	})

	if err := a.notify.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("start notify: %w", err)
	}

	a.sup.Go("config.watch", a.cfgMgr.Watch)
	a.sup.Go0("config.apply", a.applyReloads)

	a.log.Info("started",
		logx.String("source_url", a.settings.SourceURL),
		logx.Duration("poll_interval", a.settings.PollInterval),
		logx.Duration("notify_ahead", a.settings.NotifyAhead),
		logx.String("tz", a.settings.Location.String()))
	return nil
}

// applyReloads consumes config updates: logging changes apply live, engine
// changes only take effect after a restart (the cycle, fetcher and adapter
// are built once from immutable settings).
func (a *App) applyReloads(ctx context.Context) {
	ch := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok || cfg == nil {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			if ns, err := cfg.Resolve(); err != nil {
				a.log.Warn("reloaded config has invalid schedule section", logx.Err(err))
			} else if ns != a.settings {
				a.log.Warn("schedule settings changed; restart to apply")
			}
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	if err := a.notify.Stop(ctx); err != nil {
		a.log.Warn("notify stop", logx.Err(err))
	}
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("telegram stop", logx.Err(err))
	}
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			a.log.Warn("supervisor stop", logx.Err(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close", logx.Err(err))
	}
	a.log.Info("stopped")
	return a.logSvc.Close()
}
