package reminder

import (
	"fmt"
	"time"
)

// Config controls the reminder pipeline.
//
// Lead is how far before a block's start its reminder becomes due; Window is
// the width of the band scanned per invocation. Window must be at least the
// trigger period or blocks can fall between two scans. Defaults: lead 10m,
// window 1m, trigger every minute.
type Config struct {
	Enabled bool

	// Schedule is a cron spec for the trigger (robfig/cron, 5 or 6 fields).
	Schedule string

	Lead   time.Duration
	Window time.Duration

	// Workers caps concurrent sends within one run.
	Workers int

	// SendTimeout bounds contact resolution + send + mark per candidate.
	SendTimeout time.Duration

	// RatePerSec throttles outbound sends across the whole run.
	RatePerSec int
}

func (c Config) withDefaults() Config {
	if c.Schedule == "" {
		c.Schedule = "* * * * *"
	}
	if c.Lead <= 0 {
		c.Lead = 10 * time.Minute
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	return c
}

// DispatchError is a per-candidate failure: contact resolution, rendering or
// the send itself. It never aborts the batch; the block stays unmarked so a
// later run retries it.
type DispatchError struct {
	BlockID string
	OwnerID string
	Stage   string // "recheck", "resolve", "render", "send", "mark"
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s (block %s): %v", e.Stage, e.BlockID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// RunReport summarizes one pipeline invocation.
//
// Processed = Sent + Skipped + Failed. Skipped counts candidates whose
// conditional update did not apply because a concurrent run won the race.
type RunReport struct {
	Started time.Time
	From    time.Time
	To      time.Time

	Processed int
	Sent      int
	Skipped   int
	Failed    int

	Failures []*DispatchError

	Took time.Duration
}
