package block

import (
	"fmt"
	"time"
)

// ValidationError reports a malformed or out-of-range field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports an interval collision. It carries the colliding
// block's identity and window so callers can show the user what they hit.
type ConflictError struct {
	With Block
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time slot overlaps existing block %s (%q, %s - %s)",
		e.With.ID, e.With.Title,
		e.With.StartTime.Format(time.RFC3339), e.With.EndTime.Format(time.RFC3339))
}

// NotFoundError reports a missing block, or one not owned by the caller.
// Ownership mismatches are deliberately indistinguishable from absence.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("block %s not found", e.ID) }

// ImmutableError reports an edit attempted on a block whose end time has
// already passed.
type ImmutableError struct {
	ID      string
	EndedAt time.Time
}

func (e *ImmutableError) Error() string {
	return fmt.Sprintf("block %s ended at %s and can no longer be edited", e.ID, e.EndedAt.Format(time.RFC3339))
}

// ActiveBlockError reports a delete attempted while the block is in progress.
type ActiveBlockError struct {
	ID        string
	StartTime time.Time
	EndTime   time.Time
}

func (e *ActiveBlockError) Error() string {
	return fmt.Sprintf("block %s is currently active and cannot be deleted", e.ID)
}
