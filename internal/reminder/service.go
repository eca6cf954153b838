package reminder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"quiethours/internal/contact"
	"quiethours/internal/eventbus"
	"quiethours/internal/mail"
	"quiethours/internal/storage"
	logx "quiethours/pkg/logx"
)

// Service owns the periodic trigger: each cron tick runs the scan+dispatch
// pipeline once. Runs may overlap in time; the store-level conditional update
// keeps that safe, so nothing here tries to exclude concurrent runs.
type Service struct {
	mu  sync.Mutex
	cfg Config

	store    storage.Store
	resolver contact.Resolver
	sender   mail.Sender
	log      logx.Logger
	bus      eventbus.Bus

	parser cron.Parser
	c      *cron.Cron

	now func() time.Time
}

// scheduleParser accepts both 5-field and 6-field (with seconds) cron specs.
var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether spec parses as a cron expression.
// Empty spec is fine; it falls back to the every-minute default.
func ValidateSchedule(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	_, err := scheduleParser.Parse(spec)
	return err
}

func New(cfg Config, store storage.Store, resolver contact.Resolver, sender mail.Sender, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		store:    store,
		resolver: resolver,
		sender:   sender,
		log:      log,
		bus:      bus,
		parser:   scheduleParser,
		now:      time.Now,
	}
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps the pipeline config. A schedule change restarts the trigger if
// it is running; lead/window/worker changes take effect on the next run.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	oldSchedule := s.cfg.Schedule
	s.cfg = cfg
	running := s.c != nil
	s.mu.Unlock()

	if running && oldSchedule != cfg.Schedule {
		s.Stop(ctx)
		s.Start(ctx)
	}
}

// Start begins cron triggering. Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return
	}
	cfg := s.cfg
	c := cron.New(cron.WithParser(s.parser))
	s.c = c
	s.mu.Unlock()

	_, err := c.AddFunc(cfg.Schedule, func() {
		if _, err := s.Run(ctx, s.now()); err != nil {
			// Fatal for this invocation only; the next tick retries the scan.
			s.log.Error("reminder run failed", logx.Err(err))
		}
	})
	if err != nil {
		s.log.Error("invalid reminder schedule", logx.String("spec", cfg.Schedule), logx.Err(err))
		s.mu.Lock()
		s.c = nil
		s.mu.Unlock()
		return
	}

	c.Start()
	s.log.Info("service started",
		logx.String("schedule", cfg.Schedule),
		logx.Duration("lead", cfg.Lead),
		logx.Duration("window", cfg.Window))
}

// Stop halts the trigger and waits for in-flight runs up to ctx's deadline.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// best-effort
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Run executes one scan+dispatch invocation at the given instant.
// A store failure while scanning is returned as an error; dispatch failures
// are per-candidate and live in the report.
func (s *Service) Run(ctx context.Context, now time.Time) (RunReport, error) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	scanner := NewScanner(s.store, cfg.Lead, cfg.Window)
	candidates, from, to, err := scanner.Candidates(ctx, now)
	if err != nil {
		return RunReport{}, fmt.Errorf("reminder scan [%s, %s): %w",
			from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}

	dispatcher := NewDispatcher(cfg, s.store, s.resolver, s.sender, s.log, s.bus)
	rep := dispatcher.Dispatch(ctx, candidates)
	rep.From, rep.To = from, to

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: "reminder.run", Data: eventbus.RunEvent{
			Processed: rep.Processed, Sent: rep.Sent, Failed: rep.Failed, Took: rep.Took,
		}})
	}
	if rep.Processed == 0 {
		s.log.Debug("no blocks due", logx.Time("from", from), logx.Time("to", to))
	} else {
		s.log.Info("reminder run",
			logx.Time("from", from),
			logx.Time("to", to),
			logx.Int("processed", rep.Processed),
			logx.Int("sent", rep.Sent),
			logx.Int("skipped", rep.Skipped),
			logx.Int("failed", rep.Failed),
			logx.Duration("took", rep.Took))
	}
	return rep, nil
}
