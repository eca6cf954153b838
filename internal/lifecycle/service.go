// Package lifecycle enforces the study-block invariants on every user-driven
// write: field validation, the future-start rule, duration bounds, overlap
// rejection, immutability of ended blocks, and the no-delete-while-active
// guard. All failures are returned synchronously; nothing here retries.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiethours/internal/block"
	"quiethours/internal/eventbus"
	"quiethours/internal/storage"
	logx "quiethours/pkg/logx"
)

type Service struct {
	store storage.Store
	log   logx.Logger
	bus   eventbus.Bus

	// now is the clock; swapped in tests.
	now func() time.Time

	// Per-owner write serialization. The store re-checks overlap inside its
	// transaction anyway; this lock just keeps the fast-path check meaningful
	// under concurrent creates from the same owner.
	lmu        sync.Mutex
	ownerLocks map[string]*sync.Mutex
}

func New(store storage.Store, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:      store,
		log:        log,
		bus:        bus,
		now:        time.Now,
		ownerLocks: map[string]*sync.Mutex{},
	}
}

func (s *Service) ownerLock(ownerID string) *sync.Mutex {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	mu := s.ownerLocks[ownerID]
	if mu == nil {
		mu = &sync.Mutex{}
		s.ownerLocks[ownerID] = mu
	}
	return mu
}

// CreateInput carries the user-supplied fields for a new block.
// Subject and Priority are raw strings validated at this boundary.
type CreateInput struct {
	OwnerID     string
	Title       string
	Description string
	Subject     string
	Priority    string
	StartTime   time.Time
	EndTime     time.Time
}

func (s *Service) Create(ctx context.Context, in CreateInput) (block.View, error) {
	now := s.now()

	if in.OwnerID == "" {
		return block.View{}, &block.ValidationError{Field: "ownerId", Reason: "required"}
	}
	title, err := block.ValidateTitle(in.Title)
	if err != nil {
		return block.View{}, err
	}
	desc, err := block.ValidateDescription(in.Description)
	if err != nil {
		return block.View{}, err
	}
	subject, err := block.ParseSubject(in.Subject)
	if err != nil {
		return block.View{}, err
	}
	priority, err := block.ParsePriority(in.Priority)
	if err != nil {
		return block.View{}, err
	}
	if err := block.ValidateWindow(in.StartTime, in.EndTime, now, true); err != nil {
		return block.View{}, err
	}

	mu := s.ownerLock(in.OwnerID)
	mu.Lock()
	defer mu.Unlock()

	// Fast path; the store re-checks under its write transaction.
	if hit, err := s.store.FindOverlapping(ctx, in.OwnerID, in.StartTime, in.EndTime, ""); err != nil {
		return block.View{}, err
	} else if hit != nil {
		return block.View{}, &block.ConflictError{With: *hit}
	}

	b := block.Block{
		ID:          uuid.NewString(),
		OwnerID:     in.OwnerID,
		Title:       title,
		Description: desc,
		Subject:     subject,
		Priority:    priority,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
	}
	if err := s.store.CreateBlock(ctx, b); err != nil {
		return block.View{}, err
	}

	// Re-read for store-assigned bookkeeping timestamps.
	stored, err := s.store.GetBlock(ctx, b.ID, b.OwnerID)
	if err != nil {
		return block.View{}, err
	}

	s.log.Info("block created",
		logx.String("block", stored.ID),
		logx.String("owner", stored.OwnerID),
		logx.Time("start", stored.StartTime),
		logx.Duration("duration", stored.Duration()))
	s.publish("block.created", stored)
	return stored.ViewAt(now), nil
}

// Patch holds a partial update; nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Subject     *string
	Priority    *string
	StartTime   *time.Time
	EndTime     *time.Time
}

func (p Patch) movesWindow() bool { return p.StartTime != nil || p.EndTime != nil }

func (s *Service) Update(ctx context.Context, id, ownerID string, p Patch) (block.View, error) {
	now := s.now()

	b, err := s.store.GetBlock(ctx, id, ownerID)
	if err != nil {
		return block.View{}, err
	}
	if b.Ended(now) {
		return block.View{}, &block.ImmutableError{ID: b.ID, EndedAt: b.EndTime}
	}

	if p.Title != nil {
		t, err := block.ValidateTitle(*p.Title)
		if err != nil {
			return block.View{}, err
		}
		b.Title = t
	}
	if p.Description != nil {
		d, err := block.ValidateDescription(*p.Description)
		if err != nil {
			return block.View{}, err
		}
		b.Description = d
	}
	if p.Subject != nil {
		sub, err := block.ParseSubject(*p.Subject)
		if err != nil {
			return block.View{}, err
		}
		b.Subject = sub
	}
	if p.Priority != nil {
		pr, err := block.ParsePriority(*p.Priority)
		if err != nil {
			return block.View{}, err
		}
		b.Priority = pr
	}

	if p.movesWindow() {
		if p.StartTime != nil {
			b.StartTime = *p.StartTime
		}
		if p.EndTime != nil {
			b.EndTime = *p.EndTime
		}
		// Rescheduling must land in the future only when the start moves;
		// stretching the end of a running block is allowed.
		requireFuture := p.StartTime != nil
		if err := block.ValidateWindow(b.StartTime, b.EndTime, now, requireFuture); err != nil {
			return block.View{}, err
		}

		mu := s.ownerLock(ownerID)
		mu.Lock()
		defer mu.Unlock()

		if hit, err := s.store.FindOverlapping(ctx, ownerID, b.StartTime, b.EndTime, b.ID); err != nil {
			return block.View{}, err
		} else if hit != nil {
			return block.View{}, &block.ConflictError{With: *hit}
		}
	}

	if err := s.store.UpdateBlock(ctx, b); err != nil {
		return block.View{}, err
	}
	stored, err := s.store.GetBlock(ctx, id, ownerID)
	if err != nil {
		return block.View{}, err
	}

	s.log.Info("block updated", logx.String("block", id), logx.String("owner", ownerID))
	s.publish("block.updated", stored)
	return stored.ViewAt(now), nil
}

// DeleteResult reports whether a removed block was already over or still
// ahead. User feedback only, not a contract.
type DeleteResult string

const (
	DeletedPast   DeleteResult = "past"
	DeletedFuture DeleteResult = "future"
)

func (s *Service) Delete(ctx context.Context, id, ownerID string) (DeleteResult, error) {
	now := s.now()

	b, err := s.store.GetBlock(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	if b.IsActive(now) {
		return "", &block.ActiveBlockError{ID: b.ID, StartTime: b.StartTime, EndTime: b.EndTime}
	}

	if err := s.store.DeleteBlock(ctx, id, ownerID); err != nil {
		return "", err
	}

	res := DeletedFuture
	if b.Ended(now) {
		res = DeletedPast
	}
	s.log.Info("block deleted", logx.String("block", id), logx.String("owner", ownerID), logx.String("was", string(res)))
	s.publish("block.deleted", b)
	return res, nil
}

func (s *Service) Get(ctx context.Context, id, ownerID string) (block.View, error) {
	b, err := s.store.GetBlock(ctx, id, ownerID)
	if err != nil {
		return block.View{}, err
	}
	return b.ViewAt(s.now()), nil
}

func (s *Service) List(ctx context.Context, ownerID string, q storage.ListQuery) ([]block.View, int, error) {
	now := s.now()
	if q.Now.IsZero() {
		q.Now = now
	}
	blocks, total, err := s.store.ListBlocks(ctx, ownerID, q)
	if err != nil {
		return nil, 0, err
	}
	views := make([]block.View, 0, len(blocks))
	for _, b := range blocks {
		views = append(views, b.ViewAt(now))
	}
	return views, total, nil
}

func (s *Service) publish(typ string, b block.Block) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: eventbus.BlockEvent{
		ID:      b.ID,
		OwnerID: b.OwnerID,
		Start:   b.StartTime,
		End:     b.EndTime,
	}})
}
