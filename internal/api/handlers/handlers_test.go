package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clearspend/reconciler/internal/domain"
	"github.com/clearspend/reconciler/internal/jobs"
	"github.com/clearspend/reconciler/internal/reconcile"
)

type fakePublisher struct {
	published []*jobs.ReconcileUserJob
	err       error
}

func (p *fakePublisher) PublishReconcileUser(ctx context.Context, job *jobs.ReconcileUserJob) error {
	if p.err != nil {
		return p.err
	}
	if job.JobID == "" {
		job.JobID = "job-1"
	}
	job.Status = jobs.JobStatusPending
	p.published = append(p.published, job)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeTxStore struct {
	txs []*domain.EnrichedTransaction
	err error
}

func (s *fakeTxStore) ListTransactionsByUser(ctx context.Context, userID string) ([]*domain.EnrichedTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.txs, nil
}

func (s *fakeTxStore) ApplyReconciliationUpdate(ctx context.Context, transactionID string, update domain.ReconciliationUpdate) error {
	return nil
}

func TestEnqueueReconciliation(t *testing.T) {
	pub := &fakePublisher{}
	h := NewReconciliationHandler(reconcile.NewUserGuard(), pub, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(`{"user_id":"user-1"}`))
	rec := httptest.NewRecorder()
	h.EnqueueReconciliation(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if len(pub.published) != 1 || pub.published[0].UserID != "user-1" {
		t.Errorf("published jobs = %+v, want one for user-1", pub.published)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["job_id"] == "" {
		t.Error("response missing job_id")
	}
}

func TestEnqueueReconciliationRequiresUserID(t *testing.T) {
	h := NewReconciliationHandler(reconcile.NewUserGuard(), &fakePublisher{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.EnqueueReconciliation(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestEnqueueReconciliationConflictWhileRunning(t *testing.T) {
	guard := reconcile.NewUserGuard()
	guard.TryAcquire("user-1")
	defer guard.Release("user-1")

	h := NewReconciliationHandler(guard, &fakePublisher{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(`{"user_id":"user-1"}`))
	rec := httptest.NewRecorder()
	h.EnqueueReconciliation(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestEnqueueReconciliationPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("queue is closed")}
	h := NewReconciliationHandler(reconcile.NewUserGuard(), pub, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(`{"user_id":"user-1"}`))
	rec := httptest.NewRecorder()
	h.EnqueueReconciliation(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestListTransactions(t *testing.T) {
	store := &fakeTxStore{txs: []*domain.EnrichedTransaction{
		{
			ID:              "tx-1",
			UserID:          "user-1",
			AmountCents:     5000,
			EntryType:       domain.EntryOutgoing,
			TransactionDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			TransactionType: domain.TypeRegular,
		},
	}}
	h := NewTransactionsHandler(store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.ListTransactions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got []*domain.EnrichedTransaction
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tx-1" {
		t.Errorf("response = %+v, want tx-1", got)
	}
}

func TestListTransactionsRequiresUserID(t *testing.T) {
	h := NewTransactionsHandler(&fakeTxStore{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec := httptest.NewRecorder()
	h.ListTransactions(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestListTransactionsEmptyIsArray(t *testing.T) {
	h := NewTransactionsHandler(&fakeTxStore{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/transactions?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.ListTransactions(rec, req)

	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestGetSummaryExcludesReconciled(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeTxStore{txs: []*domain.EnrichedTransaction{
		{ID: "tx-1", UserID: "user-1", AmountCents: 100000, EntryType: domain.EntryIncoming, TransactionDate: date, TransactionType: domain.TypeRegular},
		{ID: "tx-2", UserID: "user-1", AmountCents: 40000, EntryType: domain.EntryOutgoing, TransactionDate: date, TransactionType: domain.TypeTransfer, ExcludeFromAnalysis: true},
	}}
	h := NewSummaryHandler(store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/summary?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.GetSummary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		IncomeCents   int64 `json:"income_cents"`
		ExpenseCents  int64 `json:"expense_cents"`
		ExcludedCount int   `json:"excluded_count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.IncomeCents != 100000 || got.ExpenseCents != 0 || got.ExcludedCount != 1 {
		t.Errorf("summary = %+v, want income 100000, expense 0, excluded 1", got)
	}
}

func TestJobsHandler(t *testing.T) {
	store := newFakeJobStore()
	_ = store.SaveJob(context.Background(), &jobs.ReconcileUserJob{JobID: "j1", UserID: "user-1", Status: jobs.JobStatusCompleted})

	h := NewJobsHandler(store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.ListJobs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ListJobs status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil), "j1")
	if rec.Code != http.StatusOK {
		t.Errorf("GetJob status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil), "missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GetJob(missing) status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

type fakeJobStore struct {
	jobs map[string]*jobs.ReconcileUserJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*jobs.ReconcileUserJob)}
}

func (s *fakeJobStore) SaveJob(ctx context.Context, job *jobs.ReconcileUserJob) error {
	s.jobs[job.JobID] = job
	return nil
}

func (s *fakeJobStore) GetJob(ctx context.Context, jobID string) (*jobs.ReconcileUserJob, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.New("job not found")
	}
	return job, nil
}

func (s *fakeJobStore) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ReconcileUserJob, error) {
	var out []*jobs.ReconcileUserJob
	for _, j := range s.jobs {
		if filter.UserID != "" && j.UserID != filter.UserID {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *fakeJobStore) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	j, ok := s.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	j.Status = status
	return nil
}
