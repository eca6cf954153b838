package block

import (
	"errors"
	"testing"
	"time"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return ts
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name           string
		s1, e1, s2, e2 string
		want           bool
	}{
		{"disjoint", "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z", "2026-09-01T12:00:00Z", "2026-09-01T13:00:00Z", false},
		{"back to back", "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z", "2026-09-01T11:00:00Z", "2026-09-01T12:00:00Z", false},
		{"back to back reversed", "2026-09-01T11:00:00Z", "2026-09-01T12:00:00Z", "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z", false},
		{"one minute overlap", "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z", "2026-09-01T10:59:00Z", "2026-09-01T11:30:00Z", true},
		{"contained", "2026-09-01T10:00:00Z", "2026-09-01T12:00:00Z", "2026-09-01T10:30:00Z", "2026-09-01T11:00:00Z", true},
		{"contains", "2026-09-01T10:30:00Z", "2026-09-01T11:00:00Z", "2026-09-01T10:00:00Z", "2026-09-01T12:00:00Z", true},
		{"identical", "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z", "2026-09-01T10:00:00Z", "2026-09-01T11:00:00Z", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Overlaps(at(t, tc.s1), at(t, tc.e1), at(t, tc.s2), at(t, tc.e2))
			if got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidateWindow(t *testing.T) {
	now := at(t, "2026-09-01T09:00:00Z")
	start := at(t, "2026-09-01T10:00:00Z")

	cases := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr bool
	}{
		{"exactly 15 minutes", start, start.Add(15 * time.Minute), false},
		{"10 minutes rejected", start, start.Add(10 * time.Minute), true},
		{"14m59s rejected", start, start.Add(15*time.Minute - time.Second), true},
		{"exactly 480 minutes", start, start.Add(480 * time.Minute), false},
		{"481 minutes rejected", start, start.Add(481 * time.Minute), true},
		{"end before start", start, start.Add(-time.Hour), true},
		{"end equals start", start, start, true},
		{"zero times", time.Time{}, time.Time{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWindow(tc.start, tc.end, now, true)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateWindow err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected *ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestValidateWindowFutureRule(t *testing.T) {
	now := at(t, "2026-09-01T10:00:00Z")
	past := now.Add(-time.Hour)

	if err := ValidateWindow(past, past.Add(time.Hour), now, true); err == nil {
		t.Fatal("expected past start to be rejected on create")
	}
	// Start exactly at now is not strictly in the future.
	if err := ValidateWindow(now, now.Add(time.Hour), now, true); err == nil {
		t.Fatal("expected start == now to be rejected on create")
	}
	// The future rule only applies on create; updates keep the original start.
	if err := ValidateWindow(past, past.Add(time.Hour), now, false); err != nil {
		t.Fatalf("unexpected error without future rule: %v", err)
	}
}

func TestParseSubject(t *testing.T) {
	if s, err := ParseSubject(""); err != nil || s != SubjectOther {
		t.Fatalf("empty subject: got %q, %v", s, err)
	}
	if s, err := ParseSubject("Computer Science"); err != nil || s != SubjectComputerScience {
		t.Fatalf("known subject: got %q, %v", s, err)
	}
	if _, err := ParseSubject("Alchemy"); err == nil {
		t.Fatal("expected unknown subject to be rejected")
	}
}

func TestParsePriority(t *testing.T) {
	if p, err := ParsePriority(""); err != nil || p != PriorityMedium {
		t.Fatalf("empty priority: got %q, %v", p, err)
	}
	if p, err := ParsePriority("HIGH"); err != nil || p != PriorityHigh {
		t.Fatalf("case-folded priority: got %q, %v", p, err)
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Fatal("expected unknown priority to be rejected")
	}
}

func TestValidateTitle(t *testing.T) {
	if _, err := ValidateTitle("   "); err == nil {
		t.Fatal("expected whitespace-only title to be rejected")
	}
	got, err := ValidateTitle("  calculus review  ")
	if err != nil || got != "calculus review" {
		t.Fatalf("got %q, %v", got, err)
	}
	long := make([]byte, MaxTitleLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := ValidateTitle(string(long)); err == nil {
		t.Fatal("expected over-long title to be rejected")
	}
}

func TestDerivedView(t *testing.T) {
	b := Block{
		StartTime: at(t, "2026-09-01T10:00:00Z"),
		EndTime:   at(t, "2026-09-01T11:30:00Z"),
	}

	before := at(t, "2026-09-01T09:00:00Z")
	during := at(t, "2026-09-01T10:30:00Z")
	after := at(t, "2026-09-01T12:00:00Z")

	v := b.ViewAt(before)
	if v.IsActive || !v.IsUpcoming || v.DurationMinutes != 90 {
		t.Fatalf("before: %+v", v)
	}
	v = b.ViewAt(during)
	if !v.IsActive || v.IsUpcoming {
		t.Fatalf("during: %+v", v)
	}
	v = b.ViewAt(after)
	if v.IsActive || v.IsUpcoming {
		t.Fatalf("after: %+v", v)
	}

	// Endpoints count as active (delete guard is inclusive on both ends).
	if !b.IsActive(b.StartTime) || !b.IsActive(b.EndTime) {
		t.Fatal("expected boundary instants to be active")
	}
	if b.Ended(b.EndTime) {
		t.Fatal("block does not count as ended at its own end instant")
	}
}
