package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quiethours/internal/block"
	"quiethours/internal/contact"
	"quiethours/internal/mail"
	"quiethours/internal/storage"
	"quiethours/pkg/logx"
)

type fakeResolver struct {
	addrs map[string]string
}

func (r *fakeResolver) Resolve(_ context.Context, ownerID string) (string, error) {
	addr, ok := r.addrs[ownerID]
	if !ok {
		return "", contact.ErrNotFound
	}
	return addr, nil
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []mail.Message
	failTo map[string]error
}

func (s *fakeSender) Send(_ context.Context, m mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failTo[m.To]; err != nil {
		return err
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeSender) setFailure(to string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTo == nil {
		s.failTo = map[string]error{}
	}
	if err == nil {
		delete(s.failTo, to)
	} else {
		s.failTo[to] = err
	}
}

func testStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "qh.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedBlock(t *testing.T, st storage.Store, id, owner string, start time.Time) block.Block {
	t.Helper()
	b := block.Block{
		ID:        id,
		OwnerID:   owner,
		Title:     "session " + id,
		Subject:   block.SubjectOther,
		Priority:  block.PriorityMedium,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}
	if err := st.CreateBlock(context.Background(), b); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return b
}

func newTestService(t *testing.T, st storage.Store, resolver contact.Resolver, sender mail.Sender) *Service {
	t.Helper()
	return New(Config{
		Enabled: true,
		Lead:    10 * time.Minute,
		Window:  time.Minute,
		Workers: 2,
	}, st, resolver, sender, logx.Nop(), nil)
}

func TestRunSelectsExactWindow(t *testing.T) {
	st := testStore(t)
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	seedBlock(t, st, "lower-edge", "u1", now.Add(10*time.Minute))
	seedBlock(t, st, "inside", "u2", now.Add(10*time.Minute+30*time.Second))
	seedBlock(t, st, "upper-edge", "u3", now.Add(11*time.Minute))
	seedBlock(t, st, "past-upper", "u4", now.Add(11*time.Minute+time.Millisecond))
	seedBlock(t, st, "too-soon", "u5", now.Add(9*time.Minute+59*time.Second))

	resolver := &fakeResolver{addrs: map[string]string{
		"u1": "u1@example.com", "u2": "u2@example.com", "u3": "u3@example.com",
		"u4": "u4@example.com", "u5": "u5@example.com",
	}}
	sender := &fakeSender{}
	svc := newTestService(t, st, resolver, sender)

	rep, err := svc.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Processed != 2 || rep.Sent != 2 || rep.Failed != 0 {
		t.Fatalf("report: %+v", rep)
	}
	if sender.count() != 2 {
		t.Fatalf("expected 2 sends, got %d", sender.count())
	}

	for id, want := range map[string]bool{
		"lower-edge": true, "inside": true,
		"upper-edge": false, "past-upper": false, "too-soon": false,
	} {
		got, err := st.GetBlock(context.Background(), id, ownerOf(id))
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.ReminderSent != want {
			t.Fatalf("%s: reminderSent=%v, want %v", id, got.ReminderSent, want)
		}
	}
}

func ownerOf(id string) string {
	switch id {
	case "lower-edge":
		return "u1"
	case "inside":
		return "u2"
	case "upper-edge":
		return "u3"
	case "past-upper":
		return "u4"
	default:
		return "u5"
	}
}

func TestSecondRunSendsNothing(t *testing.T) {
	st := testStore(t)
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	seedBlock(t, st, "a", "u1", now.Add(10*time.Minute))

	resolver := &fakeResolver{addrs: map[string]string{"u1": "u1@example.com"}}
	sender := &fakeSender{}
	svc := newTestService(t, st, resolver, sender)
	ctx := context.Background()

	rep, err := svc.Run(ctx, now)
	if err != nil || rep.Sent != 1 {
		t.Fatalf("first run: %+v %v", rep, err)
	}
	rep, err = svc.Run(ctx, now)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if rep.Processed != 0 || rep.Sent != 0 {
		t.Fatalf("second run must find nothing: %+v", rep)
	}
	if sender.count() != 1 {
		t.Fatalf("expected exactly 1 send, got %d", sender.count())
	}
}

func TestDispatcherSkipsAlreadyMarkedCandidate(t *testing.T) {
	st := testStore(t)
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	b := seedBlock(t, st, "a", "u1", now.Add(10*time.Minute))

	resolver := &fakeResolver{addrs: map[string]string{"u1": "u1@example.com"}}
	sender := &fakeSender{}
	d := NewDispatcher(Config{Workers: 1}, st, resolver, sender, logx.Nop(), nil)
	ctx := context.Background()

	// Simulate a faster concurrent run having already claimed the block
	// between scan and dispatch.
	if applied, err := st.MarkReminderSent(ctx, b.ID); err != nil || !applied {
		t.Fatalf("pre-mark: applied=%v err=%v", applied, err)
	}

	rep := d.Dispatch(ctx, []block.Block{b})
	if rep.Skipped != 1 || rep.Sent != 0 || rep.Failed != 0 {
		t.Fatalf("report: %+v", rep)
	}
	if sender.count() != 0 {
		t.Fatalf("stale candidate must not be re-sent, got %d sends", sender.count())
	}
}

func TestFailedSendRetriesNextRun(t *testing.T) {
	st := testStore(t)
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	seedBlock(t, st, "flaky", "u1", now.Add(10*time.Minute))
	seedBlock(t, st, "healthy", "u2", now.Add(10*time.Minute+20*time.Second))

	resolver := &fakeResolver{addrs: map[string]string{"u1": "u1@example.com", "u2": "u2@example.com"}}
	sender := &fakeSender{}
	sender.setFailure("u1@example.com", errors.New("smtp 451 try again"))

	svc := newTestService(t, st, resolver, sender)
	ctx := context.Background()

	rep, err := svc.Run(ctx, now)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if rep.Sent != 1 || rep.Failed != 1 {
		t.Fatalf("first run report: %+v", rep)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].BlockID != "flaky" || rep.Failures[0].Stage != "send" {
		t.Fatalf("failure list: %+v", rep.Failures)
	}

	// The healthy candidate transitioned independently.
	if got, _ := st.GetBlock(ctx, "healthy", "u2"); !got.ReminderSent {
		t.Fatal("healthy block must be marked despite sibling failure")
	}
	if got, _ := st.GetBlock(ctx, "flaky", "u1"); got.ReminderSent {
		t.Fatal("failed block must stay unmarked for retry")
	}

	// Transport recovers; next invocation picks the block up again.
	sender.setFailure("u1@example.com", nil)
	rep, err = svc.Run(ctx, now)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if rep.Processed != 1 || rep.Sent != 1 {
		t.Fatalf("second run report: %+v", rep)
	}
	if got, _ := st.GetBlock(ctx, "flaky", "u1"); !got.ReminderSent {
		t.Fatal("retried block must end NOTIFIED")
	}
}

func TestUnresolvableContactIsPerCandidateFailure(t *testing.T) {
	st := testStore(t)
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	seedBlock(t, st, "ghost", "nobody", now.Add(10*time.Minute))
	seedBlock(t, st, "ok", "u1", now.Add(10*time.Minute+10*time.Second))

	resolver := &fakeResolver{addrs: map[string]string{"u1": "u1@example.com"}}
	sender := &fakeSender{}
	svc := newTestService(t, st, resolver, sender)

	rep, err := svc.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Sent != 1 || rep.Failed != 1 {
		t.Fatalf("report: %+v", rep)
	}
	f := rep.Failures[0]
	if f.BlockID != "ghost" || f.Stage != "resolve" || !errors.Is(f, contact.ErrNotFound) {
		t.Fatalf("failure: %+v", f)
	}
}

func TestScannerWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	sc := NewScanner(nil, 10*time.Minute, time.Minute)
	from, to := sc.WindowAt(now)
	if !from.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("from = %v", from)
	}
	if !to.Equal(now.Add(11 * time.Minute)) {
		t.Fatalf("to = %v", to)
	}
}
