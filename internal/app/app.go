package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quiethours/internal/contact"
	"quiethours/internal/eventbus"
	"quiethours/internal/lifecycle"
	"quiethours/internal/mail"
	"quiethours/internal/observability/pprof"
	"quiethours/internal/reminder"
	"quiethours/internal/storage"
	"quiethours/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	blocks *lifecycle.Service
	rem    *reminder.Service
	pprof  *pprof.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage is mandatory: every subsystem reads and writes through it.
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	blocks := lifecycle.New(store, log.With(logx.String("comp", "blocks")), bus)

	// Reminder pipeline mapping.
	remCfg, err := mapReminderConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := reminder.ValidateSchedule(remCfg.Schedule); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("reminder.schedule: %w", err)
	}

	mailCfg, err := mapMailConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	var sender mail.Sender
	if smtp, err := mail.NewSMTPSender(mailCfg, log.With(logx.String("comp", "mail"))); err != nil {
		// A broken mail section only blocks startup when reminders need it.
		if remCfg.Enabled {
			_ = store.Close()
			return nil, err
		}
		log.Warn("mail transport not configured; reminders would fail if enabled", logx.Err(err))
		sender = mail.Disabled(err.Error())
	} else {
		sender = smtp
	}

	resolver := contact.NewStoreResolver(store)

	remSvc := reminder.New(remCfg, store, resolver, sender,
		log.With(logx.String("comp", "reminder")), bus)

	// pprof service mapping (optional)
	pprofCfg, err := mapPprofConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	pprofSvc := pprof.New(pprofCfg, log.With(logx.String("comp", "pprof")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		blocks:  blocks,
		rem:     remSvc,
		pprof:   pprofSvc,
	}, nil
}

// Blocks exposes the block lifecycle manager (used by the CLI surface).
func (a *App) Blocks() *lifecycle.Service { return a.blocks }

// Reminders exposes the reminder service (used for one-shot runs).
func (a *App) Reminders() *reminder.Service { return a.rem }

// Store exposes the persistence layer (used for owner contact upkeep).
func (a *App) Store() storage.Store { return a.store }

// Close releases resources without a Start/Stop cycle. One-shot commands use
// this; the daemon path goes through Stop.
func (a *App) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	if a.logs != nil {
		a.logs.Close()
	}
	return err
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(func(c context.Context, cfg *Config) error {
			rc, err := mapReminderConfig(cfg)
			if err != nil {
				return err
			}
			if err := reminder.ValidateSchedule(rc.Schedule); err != nil {
				return fmt.Errorf("reminder.schedule: %w", err)
			}
			if _, err := mapMailConfig(cfg); err != nil {
				return err
			}
			if _, err := mapPprofConfig(cfg); err != nil {
				return err
			}
			if _, err := mapStorageConfig(cfg); err != nil {
				return err
			}
			return nil
		})
	}

	if a.rem != nil && a.rem.Enabled() {
		a.rem.Start(a.sup.Context())
	}
	if a.pprof != nil && a.pprof.Enabled() {
		a.pprof.Start(a.sup.Context())
	}

	// Optional: log events for observability/debug (components can also subscribe themselves).
	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					// Keep this debug-level; block churn can be frequent.
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		// Track last applied config to generate a safe diff summary for logx.
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections, attrs := SummarizeConfigChange(lastApplied, newCfg)
				if len(sections) > 0 {
					fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
					a.log.Debug("config change summary", fields...)
				} else {
					a.log.Debug("config reload received, but no effective changes detected")
				}
				lastApplied = newCfg

				for _, s := range sections {
					if s == "storage" || s == "mail" {
						a.log.Warn("storage/mail config changed; restart required for changes to take effect",
							logx.String("section", s))
					}
				}

				// apply logging updates
				a.logs.Apply(mapLogConfig(newCfg))

				// apply reminder updates (live)
				if a.rem != nil {
					prevEnabled := a.rem.Enabled()
					rc, err := mapReminderConfig(newCfg)
					if err != nil {
						a.log.Warn("invalid reminder config; keeping previous", logx.Any("err", err))
					} else {
						a.rem.Apply(c, rc)
						if prevEnabled && !rc.Enabled {
							a.log.Info("reminders disabled via config")
							stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
							a.rem.Stop(stopCtx)
							cancel()
						} else if !prevEnabled && rc.Enabled {
							a.log.Info("reminders enabled via config")
							a.rem.Start(c)
						}
					}
				}

				// apply pprof updates (live)
				if a.pprof != nil {
					ppc, err := mapPprofConfig(newCfg)
					if err != nil {
						a.log.Warn("invalid pprof config; keeping previous", logx.Any("err", err))
					} else {
						a.pprof.Reconfigure(c, ppc)
					}
				}

				if len(sections) > 0 {
					fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
					a.log.Info("config reloaded", fields...)
				} else {
					a.log.Info("config reloaded (no changes)")
				}
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// Contract: fn MUST honor stepCtx and return promptly. If it doesn't, log a leak signal.
			elapsed := time.Since(start)
			a.log.Warn(
				"stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Duration("elapsed", elapsed),
			)
			// Leak logging: observe when/if the step eventually finishes.
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.String("err", err.Error()), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Stop the reminder trigger first so no new sweeps start against a closing store.
	step("reminder", 3*time.Second, func(c context.Context) error { a.rem.Stop(c); return nil })
	step("pprof", 1*time.Second, func(c context.Context) error {
		if a.pprof != nil {
			a.pprof.Stop(c)
		}
		return nil
	})
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (config watch/reload, event log, etc.)
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
