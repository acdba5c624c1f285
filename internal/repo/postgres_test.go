package repo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/LeventeLantos/reminder-calls/internal/lifecycle"
	"github.com/LeventeLantos/reminder-calls/internal/model"
)

// openPostgresTestRepo connects to the database named by
// REMINDERS_TEST_POSTGRES_URL and empties the reminders table. The test is
// skipped when the variable is unset.
func openPostgresTestRepo(t *testing.T) *SQLReminderRepo {
	t.Helper()

	url := os.Getenv("REMINDERS_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("REMINDERS_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	db, err := OpenPostgres(ctx, url)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	r := NewPostgresReminderRepo(db)
	r.now = func() time.Time { return baseTime }
	if err := r.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := r.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	t.Cleanup(func() { _ = r.DeleteAll(context.Background()) })
	return r
}

func TestPostgres_AttemptLifecycle(t *testing.T) {
	r := openPostgresTestRepo(t)
	ctx := context.Background()
	p := lifecycle.RetryPolicy{MaxAttempts: 2}

	due := mustCreate(t, r, "pg-due", baseTime.Add(-time.Minute))
	mustCreate(t, r, "pg-later", baseTime.Add(time.Hour))

	got, err := r.QueryDue(ctx, baseTime)
	if err != nil {
		t.Fatalf("QueryDue: %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("expected only %s due, got %v", due.ID, ids(got))
	}
	if got[0].ScheduledTimeUTC.Location() != time.UTC || !got[0].ScheduledTimeUTC.Equal(due.ScheduledTimeUTC) {
		t.Fatalf("scheduled time did not round-trip: %v", got[0].ScheduledTimeUTC)
	}

	failed := lifecycle.Transition(got[0], lifecycle.Failed("busy"), p, baseTime)
	if err := r.ApplyAttempt(ctx, due.ID, failed); err != nil {
		t.Fatalf("ApplyAttempt(failure): %v", err)
	}
	if err := r.ApplyAttempt(ctx, due.ID, failed); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on a stale retry count, got %v", err)
	}

	retried := mustGetRow(t, r, due.ID)
	if retried.Status != model.Scheduled || retried.RetryCount != 1 || retried.CallSID != nil {
		t.Fatalf("unexpected row after failed attempt: %+v", retried)
	}

	done := lifecycle.Transition(retried, lifecycle.Succeeded("call-pg"), p, baseTime.Add(time.Minute))
	if err := r.ApplyAttempt(ctx, due.ID, done); err != nil {
		t.Fatalf("ApplyAttempt(success): %v", err)
	}

	final := mustGetRow(t, r, due.ID)
	if final.Status != model.Completed || final.RetryCount != 2 {
		t.Fatalf("expected completed after two attempts, got %+v", final)
	}
	if final.CallSID == nil || *final.CallSID != "call-pg" || final.FailureReason != nil {
		t.Fatalf("unexpected attempt fields: sid=%v reason=%v", final.CallSID, final.FailureReason)
	}
	if final.LastRunAt == nil || !final.LastRunAt.Equal(baseTime.Add(time.Minute)) {
		t.Fatalf("unexpected last_run_at %v", final.LastRunAt)
	}

	title := "late"
	if _, err := r.UpdateEditable(ctx, due.ID, ReminderPatch{Title: &title}); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}

	if err := r.Delete(ctx, "pg-later"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := r.ApplyAttempt(ctx, "pg-later", failed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgres_ListSearchAndPaging(t *testing.T) {
	r := openPostgresTestRepo(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		mustCreate(t, r, id, baseTime.Add(time.Duration(i)*time.Hour))
	}

	page, err := r.List(ctx, ListFilter{Search: "MESSAGE B", Page: 1, PerPage: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != "b" {
		t.Fatalf("unexpected search result: total=%d items=%v", page.Total, ids(page.Items))
	}

	page, err = r.List(ctx, ListFilter{Sort: Ascending, Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 1 || page.Items[0].ID != "c" {
		t.Fatalf("unexpected second page: total=%d items=%v", page.Total, ids(page.Items))
	}
}

func mustGetRow(t *testing.T, r *SQLReminderRepo, id string) model.Reminder {
	t.Helper()

	m, err := r.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return m
}
