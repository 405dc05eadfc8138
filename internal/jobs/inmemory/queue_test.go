package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clearspend/reconciler/internal/jobs"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	var handled atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		handled.Add(1)
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	job := &jobs.ReconcileUserJob{UserID: "user-1"}
	if err := q.PublishReconcileUser(context.Background(), job); err != nil {
		t.Fatalf("PublishReconcileUser() error: %v", err)
	}
	if job.JobID == "" {
		t.Error("expected job ID to be generated")
	}

	waitFor(t, 2*time.Second, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	})

	if handled.Load() != 1 {
		t.Errorf("handler called %d times, want 1", handled.Load())
	}
}

func TestQueueRetriesFailedJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient failure")
		}
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	job := &jobs.ReconcileUserJob{UserID: "user-1", MaxRetries: 2}
	if err := q.PublishReconcileUser(context.Background(), job); err != nil {
		t.Fatalf("PublishReconcileUser() error: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		saved, err := store.GetJob(context.Background(), job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	})

	if attempts.Load() != 2 {
		t.Errorf("handler called %d times, want 2", attempts.Load())
	}
	saved, _ := store.GetJob(context.Background(), job.JobID)
	if saved.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", saved.RetryCount)
	}
}

func TestQueueRejectsPublishAfterClose(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	err := q.PublishReconcileUser(context.Background(), &jobs.ReconcileUserJob{UserID: "user-1"})
	if err == nil {
		t.Error("expected error publishing to closed queue")
	}
}

func TestStoreFiltersByUserAndStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seed := []*jobs.ReconcileUserJob{
		{JobID: "j1", UserID: "user-1", Status: jobs.JobStatusCompleted},
		{JobID: "j2", UserID: "user-1", Status: jobs.JobStatusFailed},
		{JobID: "j3", UserID: "user-2", Status: jobs.JobStatusCompleted},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob(%s) error: %v", j.JobID, err)
		}
	}

	got, err := store.ListJobs(ctx, jobs.JobFilter{UserID: "user-1", Status: jobs.JobStatusCompleted})
	if err != nil {
		t.Fatalf("ListJobs() error: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "j1" {
		t.Errorf("ListJobs() = %+v, want only j1", got)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.ReconcileUserJob{JobID: "j1", UserID: "user-1", Status: jobs.JobStatusPending}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error: %v", err)
	}

	got, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob() error: %v", err)
	}
	got.Status = jobs.JobStatusFailed

	again, _ := store.GetJob(ctx, "j1")
	if again.Status != jobs.JobStatusPending {
		t.Errorf("stored job mutated through returned copy: %v", again.Status)
	}
}
