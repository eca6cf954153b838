package reminder

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"quiethours/internal/block"
	"quiethours/internal/contact"
	"quiethours/internal/eventbus"
	"quiethours/internal/mail"
	"quiethours/internal/storage"
	logx "quiethours/pkg/logx"
)

// Dispatcher sends one notification per candidate and records the send with a
// store-level conditional update. Per-candidate ordering is strict: the send
// completes (success or failure observed) before the mark is attempted.
// Across candidates there is no ordering at all; a bounded worker pool fans
// them out.
type Dispatcher struct {
	store    storage.Store
	resolver contact.Resolver
	sender   mail.Sender
	log      logx.Logger
	bus      eventbus.Bus

	lead        time.Duration
	workers     int
	sendTimeout time.Duration
	limiter     *rate.Limiter
}

func NewDispatcher(cfg Config, store storage.Store, resolver contact.Resolver, sender mail.Sender, log logx.Logger, bus eventbus.Bus) *Dispatcher {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		store:       store,
		resolver:    resolver,
		sender:      sender,
		log:         log,
		bus:         bus,
		lead:        cfg.Lead,
		workers:     cfg.Workers,
		sendTimeout: cfg.SendTimeout,
		// Burst equal to the rate so a small batch isn't needlessly staggered.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

type outcome struct {
	sent    bool
	skipped bool
	failure *DispatchError
}

// Dispatch processes the candidate set. One failure never aborts the batch;
// every candidate gets its attempt and the report carries the failure list.
func (d *Dispatcher) Dispatch(ctx context.Context, candidates []block.Block) RunReport {
	started := time.Now()
	rep := RunReport{Started: started, Processed: len(candidates)}
	if len(candidates) == 0 {
		rep.Took = time.Since(started)
		return rep
	}

	workers := d.workers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	jobs := make(chan block.Block)
	results := make(chan outcome, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				results <- d.dispatchOne(ctx, b)
			}
		}()
	}

	for _, b := range candidates {
		jobs <- b
	}
	close(jobs)
	wg.Wait()
	close(results)

	for o := range results {
		switch {
		case o.sent:
			rep.Sent++
		case o.skipped:
			rep.Skipped++
		default:
			rep.Failed++
			rep.Failures = append(rep.Failures, o.failure)
		}
	}
	rep.Took = time.Since(started)
	return rep
}

func (d *Dispatcher) dispatchOne(ctx context.Context, b block.Block) outcome {
	cctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	fail := func(stage string, err error) outcome {
		de := &DispatchError{BlockID: b.ID, OwnerID: b.OwnerID, Stage: stage, Err: err}
		d.log.Warn("reminder failed",
			logx.String("block", b.ID),
			logx.String("owner", b.OwnerID),
			logx.String("stage", stage),
			logx.Err(err))
		if d.bus != nil {
			d.bus.Publish(eventbus.Event{Type: "reminder.failed", Data: eventbus.ReminderEvent{
				BlockID: b.ID, OwnerID: b.OwnerID, Error: err.Error(),
			}})
		}
		return outcome{failure: de}
	}

	// Re-read before sending: a concurrent or just-finished run may have
	// already notified this block. This is only a fast path; the conditional
	// update below is what actually guarantees a single winner.
	cur, err := d.store.GetBlock(cctx, b.ID, b.OwnerID)
	if err != nil {
		return fail("recheck", err)
	}
	if cur.ReminderSent {
		d.log.Debug("reminder already sent; skipping", logx.String("block", b.ID))
		return outcome{skipped: true}
	}

	addr, err := d.resolver.Resolve(cctx, b.OwnerID)
	if err != nil {
		return fail("resolve", err)
	}

	msg, err := mail.RenderReminder(b, d.lead)
	if err != nil {
		return fail("render", err)
	}
	msg.To = addr

	if err := d.limiter.Wait(cctx); err != nil {
		return fail("send", err)
	}
	if err := d.sender.Send(cctx, msg); err != nil {
		return fail("send", err)
	}

	// Send succeeded; commit the transition only if nobody else already has.
	// The store applies the check and the write as one statement, so two
	// overlapping runs can both send at most once each but only one marks.
	applied, err := d.store.MarkReminderSent(cctx, b.ID)
	if err != nil {
		// The notification went out but the mark failed; the block stays
		// PENDING and a later run will send again. Accepted at-least-once.
		return fail("mark", err)
	}
	if !applied {
		d.log.Debug("reminder already marked by concurrent run", logx.String("block", b.ID))
		return outcome{skipped: true}
	}

	d.log.Info("reminder sent",
		logx.String("block", b.ID),
		logx.String("owner", b.OwnerID),
		logx.Time("start", b.StartTime))
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{Type: "reminder.sent", Data: eventbus.ReminderEvent{
			BlockID: b.ID, OwnerID: b.OwnerID,
		}})
	}
	return outcome{sent: true}
}
