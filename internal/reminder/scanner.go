package reminder

import (
	"context"
	"time"

	"quiethours/internal/block"
	"quiethours/internal/storage"
)

// Scanner computes the due window for an invocation and selects candidates.
// Selection is deliberately loose: a block picked up by two overlapping runs
// is harmless because the dispatcher's conditional update arbitrates.
type Scanner struct {
	store  storage.Store
	lead   time.Duration
	window time.Duration
}

func NewScanner(store storage.Store, lead, window time.Duration) *Scanner {
	return &Scanner{store: store, lead: lead, window: window}
}

// WindowAt returns the half-open band [now+lead, now+lead+window).
func (s *Scanner) WindowAt(now time.Time) (from, to time.Time) {
	from = now.Add(s.lead)
	return from, from.Add(s.window)
}

// Candidates returns blocks starting inside the window that have not been
// notified yet, ordered by start time. A store failure here is fatal for the
// invocation (there is no partial batch to salvage).
func (s *Scanner) Candidates(ctx context.Context, now time.Time) ([]block.Block, time.Time, time.Time, error) {
	from, to := s.WindowAt(now)
	due, err := s.store.DueBlocks(ctx, from, to)
	if err != nil {
		return nil, from, to, err
	}
	return due, from, to, nil
}
