package mail

import (
	"strings"
	"testing"
	"time"

	"quiethours/internal/block"
)

func TestRenderReminder(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	b := block.Block{
		Title:       "linear algebra",
		Description: "chapters 4-5",
		Subject:     block.SubjectMathematics,
		Priority:    block.PriorityHigh,
		StartTime:   start,
		EndTime:     start.Add(90 * time.Minute),
	}

	m, err := RenderReminder(b, 10*time.Minute)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if m.Subject != `Study Time: "linear algebra" starts in 10 minutes` {
		t.Fatalf("subject: %q", m.Subject)
	}
	for _, want := range []string{"linear algebra", "chapters 4-5", "Mathematics", "high", "90 min"} {
		if !strings.Contains(m.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, m.Body)
		}
	}
}

func TestRenderReminderOmitsEmptyDescription(t *testing.T) {
	b := block.Block{
		Title:     "quiet reading",
		Subject:   block.SubjectOther,
		Priority:  block.PriorityLow,
		StartTime: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC),
	}
	m, err := RenderReminder(b, time.Minute)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(m.Body, "\n\n\n") {
		t.Fatalf("body has stray blank lines:\n%q", m.Body)
	}
	if !strings.Contains(m.Subject, "1 minute") {
		t.Fatalf("subject: %q", m.Subject)
	}
}

func TestFormatLead(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Minute, "10 minutes"},
		{time.Minute, "1 minute"},
		{20 * time.Second, "under a minute"},
	}
	for _, tc := range cases {
		if got := formatLead(tc.d); got != tc.want {
			t.Fatalf("formatLead(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
