package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiethours/internal/block"
)

var ErrNoContact = errors.New("owner has no contact address")

// Config configures storage.
//
// Driver values:
//   - "sqlite" (default when empty): SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// StoreError wraps an underlying persistence failure. It is fatal for the
// operation in progress; callers do not retry internally.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// ListFilter narrows ListBlocks by the block's relation to the current time.
type ListFilter string

const (
	FilterAll      ListFilter = ""
	FilterUpcoming ListFilter = "upcoming"
	FilterPast     ListFilter = "past"
	FilterActive   ListFilter = "active"
)

// ListQuery selects and pages an owner's blocks.
// Now is the reference instant for Filter; the zero value means time.Now().
type ListQuery struct {
	Filter ListFilter
	Now    time.Time
	Limit  int
	Offset int
	Desc   bool
}

// Store is the interval store consumed by the lifecycle manager and the
// reminder pipeline. All mutating calls are owner-scoped where an OwnerID is
// present, so one user can never touch another's blocks.
type Store interface {
	// CreateBlock persists a new block. It re-checks the overlap predicate
	// inside the insert transaction and returns *block.ConflictError if a
	// concurrent write got there first.
	CreateBlock(ctx context.Context, b block.Block) error

	// UpdateBlock persists b over the stored row with the same ID and owner,
	// re-checking overlap (excluding b itself) inside the transaction.
	// Returns *block.NotFoundError if no such row exists.
	UpdateBlock(ctx context.Context, b block.Block) error

	// DeleteBlock removes the block. Returns *block.NotFoundError if absent.
	DeleteBlock(ctx context.Context, id, ownerID string) error

	GetBlock(ctx context.Context, id, ownerID string) (block.Block, error)

	// ListBlocks returns one page of the owner's blocks ordered by start time,
	// plus the total row count for the query.
	ListBlocks(ctx context.Context, ownerID string, q ListQuery) ([]block.Block, int, error)

	// FindOverlapping returns the first stored block of ownerID conflicting
	// with [start,end), skipping excludeID when non-empty. Nil when clear.
	FindOverlapping(ctx context.Context, ownerID string, start, end time.Time, excludeID string) (*block.Block, error)

	// DueBlocks returns blocks with StartTime in [from,to) and
	// ReminderSent=false, ordered by start time ascending.
	DueBlocks(ctx context.Context, from, to time.Time) ([]block.Block, error)

	// MarkReminderSent flips ReminderSent false->true as a single conditional
	// write. Reports whether the update applied; false means another run
	// already claimed the block.
	MarkReminderSent(ctx context.Context, id string) (bool, error)

	// UpsertOwner records or replaces an owner's contact address.
	UpsertOwner(ctx context.Context, ownerID, email string) error

	// ContactAddress resolves an owner's address. Returns ErrNoContact when
	// the owner is unknown or has no address on file.
	ContactAddress(ctx context.Context, ownerID string) (string, error)

	Close() error
}
