package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"quiethours/internal/block"
	logx "quiethours/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "quiethours.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func mkBlock(id, owner string, start time.Time, d time.Duration) block.Block {
	return block.Block{
		ID:        id,
		OwnerID:   owner,
		Title:     "session " + id,
		Subject:   block.SubjectOther,
		Priority:  block.PriorityMedium,
		StartTime: start,
		EndTime:   start.Add(d),
	}
}

func TestCreateRejectsOverlapInTransaction(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	if err := st.CreateBlock(ctx, mkBlock("a", "u1", base, time.Hour)); err != nil {
		t.Fatalf("create a: %v", err)
	}

	// One-minute overlap is rejected even without a prior application-level check.
	err := st.CreateBlock(ctx, mkBlock("b", "u1", base.Add(59*time.Minute), time.Hour))
	var ce *block.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.With.ID != "a" {
		t.Fatalf("conflict should carry the colliding block, got %q", ce.With.ID)
	}

	// Touching boundary is not a conflict.
	if err := st.CreateBlock(ctx, mkBlock("c", "u1", base.Add(time.Hour), time.Hour)); err != nil {
		t.Fatalf("back-to-back create: %v", err)
	}

	// Same window, different owner: no conflict.
	if err := st.CreateBlock(ctx, mkBlock("d", "u2", base, time.Hour)); err != nil {
		t.Fatalf("other owner create: %v", err)
	}
}

func TestUpdateExcludesSelfFromOverlap(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	b := mkBlock("a", "u1", base, time.Hour)
	if err := st.CreateBlock(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Shifting a block within its own old window must not self-conflict.
	b.StartTime = base.Add(15 * time.Minute)
	b.EndTime = base.Add(75 * time.Minute)
	if err := st.UpdateBlock(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := st.GetBlock(ctx, "a", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.StartTime.Equal(b.StartTime) || !got.EndTime.Equal(b.EndTime) {
		t.Fatalf("window not persisted: %+v", got)
	}

	// Updating a row that doesn't exist (or belongs to someone else) is NotFound.
	other := mkBlock("a", "u2", base.Add(3*time.Hour), time.Hour)
	var nf *block.NotFoundError
	if err := st.UpdateBlock(ctx, other); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestOwnerScopedDelete(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	if err := st.CreateBlock(ctx, mkBlock("a", "u1", base, time.Hour)); err != nil {
		t.Fatalf("create: %v", err)
	}

	var nf *block.NotFoundError
	if err := st.DeleteBlock(ctx, "a", "u2"); !errors.As(err, &nf) {
		t.Fatalf("cross-owner delete should be NotFound, got %v", err)
	}
	if err := st.DeleteBlock(ctx, "a", "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteBlock(ctx, "a", "u1"); !errors.As(err, &nf) {
		t.Fatalf("second delete should be NotFound, got %v", err)
	}
}

func TestDueBlocksWindow(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	from := now.Add(10 * time.Minute)
	to := now.Add(11 * time.Minute)

	inWindow := mkBlock("in", "u1", from, time.Hour)
	atUpperEdge := mkBlock("edge", "u4", to, time.Hour)
	justPast := mkBlock("past", "u2", to.Add(time.Millisecond), time.Hour)
	before := mkBlock("before", "u3", now.Add(9*time.Minute+59*time.Second), time.Hour)

	for _, b := range []block.Block{inWindow, atUpperEdge, justPast, before} {
		if err := st.CreateBlock(ctx, b); err != nil {
			t.Fatalf("create %s: %v", b.ID, err)
		}
	}

	due, err := st.DueBlocks(ctx, from, to)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].ID != "in" {
		t.Fatalf("expected exactly [in], got %+v", due)
	}

	// Anything already marked is never due again.
	if applied, err := st.MarkReminderSent(ctx, "in"); err != nil || !applied {
		t.Fatalf("mark: applied=%v err=%v", applied, err)
	}
	due, err = st.DueBlocks(ctx, from, to)
	if err != nil {
		t.Fatalf("due after mark: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no due blocks after mark, got %+v", due)
	}
}

func TestMarkReminderSentAppliesOnce(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	b := mkBlock("a", "u1", time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), time.Hour)
	if err := st.CreateBlock(ctx, b); err != nil {
		t.Fatalf("create: %v", err)
	}

	applied, err := st.MarkReminderSent(ctx, "a")
	if err != nil || !applied {
		t.Fatalf("first mark: applied=%v err=%v", applied, err)
	}
	applied, err = st.MarkReminderSent(ctx, "a")
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if applied {
		t.Fatal("conditional update must not apply twice")
	}

	got, err := st.GetBlock(ctx, "a", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.ReminderSent {
		t.Fatal("reminder_sent must stay true")
	}
}

func TestListFiltersAndPagination(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	past := mkBlock("past", "u1", now.Add(-3*time.Hour), time.Hour)
	active := mkBlock("active", "u1", now.Add(-30*time.Minute), time.Hour)
	up1 := mkBlock("up1", "u1", now.Add(time.Hour), time.Hour)
	up2 := mkBlock("up2", "u1", now.Add(3*time.Hour), time.Hour)

	for _, b := range []block.Block{past, active, up1, up2} {
		if err := st.CreateBlock(ctx, b); err != nil {
			t.Fatalf("create %s: %v", b.ID, err)
		}
	}

	got, total, err := st.ListBlocks(ctx, "u1", ListQuery{Filter: FilterUpcoming, Now: now})
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if total != 2 || len(got) != 2 || got[0].ID != "up1" || got[1].ID != "up2" {
		t.Fatalf("upcoming: total=%d got=%+v", total, got)
	}

	got, total, err = st.ListBlocks(ctx, "u1", ListQuery{Filter: FilterActive, Now: now})
	if err != nil || total != 1 || len(got) != 1 || got[0].ID != "active" {
		t.Fatalf("active: total=%d got=%+v err=%v", total, got, err)
	}

	got, total, err = st.ListBlocks(ctx, "u1", ListQuery{Filter: FilterPast, Now: now})
	if err != nil || total != 1 || len(got) != 1 || got[0].ID != "past" {
		t.Fatalf("past: total=%d got=%+v err=%v", total, got, err)
	}

	got, total, err = st.ListBlocks(ctx, "u1", ListQuery{Now: now, Limit: 2, Offset: 2})
	if err != nil || total != 4 || len(got) != 2 || got[0].ID != "up1" {
		t.Fatalf("page 2: total=%d got=%+v err=%v", total, got, err)
	}
}

func TestContactResolution(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.ContactAddress(ctx, "ghost"); !errors.Is(err, ErrNoContact) {
		t.Fatalf("expected ErrNoContact, got %v", err)
	}

	if err := st.UpsertOwner(ctx, "u1", "u1@example.com"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	addr, err := st.ContactAddress(ctx, "u1")
	if err != nil || addr != "u1@example.com" {
		t.Fatalf("resolve: %q %v", addr, err)
	}

	if err := st.UpsertOwner(ctx, "u1", "new@example.com"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	addr, err = st.ContactAddress(ctx, "u1")
	if err != nil || addr != "new@example.com" {
		t.Fatalf("resolve after upsert: %q %v", addr, err)
	}
}
