// Package block holds the study-block domain model: the Block record, its
// closed Subject/Priority enums, field validation, and the interval overlap
// predicate. Everything here is pure; persistence and clocks live elsewhere.
package block

import (
	"fmt"
	"strings"
	"time"
)

// Duration bounds for a single block.
const (
	MinDuration = 15 * time.Minute
	MaxDuration = 8 * time.Hour
)

// Field length limits (after trimming).
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 1000
)

// Subject is a closed enumeration; invalid values are rejected at the model
// boundary so downstream code never sees a free-form string.
type Subject string

const (
	SubjectMathematics     Subject = "Mathematics"
	SubjectPhysics         Subject = "Physics"
	SubjectComputerScience Subject = "Computer Science"
	SubjectLiterature      Subject = "Literature"
	SubjectChemistry       Subject = "Chemistry"
	SubjectBiology         Subject = "Biology"
	SubjectHistory         Subject = "History"
	SubjectOther           Subject = "Other"
)

var subjects = map[Subject]struct{}{
	SubjectMathematics:     {},
	SubjectPhysics:         {},
	SubjectComputerScience: {},
	SubjectLiterature:      {},
	SubjectChemistry:       {},
	SubjectBiology:         {},
	SubjectHistory:         {},
	SubjectOther:           {},
}

// ParseSubject validates a raw subject string. An empty string maps to
// SubjectOther (the historical default).
func ParseSubject(raw string) (Subject, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return SubjectOther, nil
	}
	if _, ok := subjects[Subject(s)]; !ok {
		return "", &ValidationError{Field: "subject", Reason: fmt.Sprintf("unknown subject %q", s)}
	}
	return Subject(s), nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a raw priority string. An empty string maps to
// PriorityMedium (the historical default).
func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	case "":
		return PriorityMedium, nil
	default:
		return "", &ValidationError{Field: "priority", Reason: "must be low, medium or high"}
	}
}

// Block is a user's reserved study interval.
//
// Interval semantics are half-open: [StartTime, EndTime). Two blocks that
// share only a boundary instant do not conflict.
type Block struct {
	ID      string
	OwnerID string

	Title       string
	Description string
	Subject     Subject
	Priority    Priority

	StartTime time.Time
	EndTime   time.Time

	// ReminderSent is monotone: false -> true once, set only by the reminder
	// dispatcher through the store's conditional update.
	ReminderSent bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *Block) Duration() time.Duration { return b.EndTime.Sub(b.StartTime) }

// IsActive reports whether now falls inside [StartTime, EndTime].
// The closed upper bound matches the delete guard: a block is protected from
// deletion up to and including its end instant.
func (b *Block) IsActive(now time.Time) bool {
	return !now.Before(b.StartTime) && !now.After(b.EndTime)
}

func (b *Block) IsUpcoming(now time.Time) bool { return now.Before(b.StartTime) }

// Ended reports whether the block's end instant has passed. Ended blocks are
// immutable except for deletion.
func (b *Block) Ended(now time.Time) bool { return b.EndTime.Before(now) }

// View is a read model: the stored block plus fields derived from the current
// wall clock. Derived fields are never persisted.
type View struct {
	Block
	IsActive        bool
	IsUpcoming      bool
	DurationMinutes int
}

func (b Block) ViewAt(now time.Time) View {
	return View{
		Block:           b,
		IsActive:        b.IsActive(now),
		IsUpcoming:      b.IsUpcoming(now),
		DurationMinutes: int(b.Duration().Round(time.Minute) / time.Minute),
	}
}

// ValidateTitle trims and bounds-checks a title. Returns the trimmed value.
func ValidateTitle(raw string) (string, error) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return "", &ValidationError{Field: "title", Reason: "required"}
	}
	if len(t) > MaxTitleLen {
		return "", &ValidationError{Field: "title", Reason: "too long"}
	}
	return t, nil
}

// ValidateDescription trims and bounds-checks an optional description.
func ValidateDescription(raw string) (string, error) {
	d := strings.TrimSpace(raw)
	if len(d) > MaxDescriptionLen {
		return "", &ValidationError{Field: "description", Reason: "too long"}
	}
	return d, nil
}

// ValidateWindow checks interval ordering and duration bounds.
// When requireFuture is set (create path), StartTime must be strictly after now.
func ValidateWindow(start, end, now time.Time, requireFuture bool) error {
	if start.IsZero() || end.IsZero() {
		return &ValidationError{Field: "startTime", Reason: "start and end times are required"}
	}
	if !end.After(start) {
		return &ValidationError{Field: "endTime", Reason: "end time must be after start time"}
	}
	if requireFuture && !start.After(now) {
		return &ValidationError{Field: "startTime", Reason: "start time must be in the future"}
	}
	d := end.Sub(start)
	if d < MinDuration {
		return &ValidationError{Field: "endTime", Reason: "block must be at least 15 minutes long"}
	}
	if d > MaxDuration {
		return &ValidationError{Field: "endTime", Reason: "block cannot exceed 8 hours"}
	}
	return nil
}
