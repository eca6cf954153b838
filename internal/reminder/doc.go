// Package reminder is the notification pipeline: a cron-triggered scan over
// the due window [now+lead, now+lead+window) followed by a fan-out dispatch
// that sends one message per block and commits each send with a store-level
// conditional update.
//
// Delivery is at-least-once; the conditional update makes the outcome
// effectively-once per block under concurrent or retried runs. A block whose
// sends keep failing stays PENDING and is retried while its start remains
// inside a future scan window; after that it is silently missed (surfaced
// only in run reports).
package reminder
