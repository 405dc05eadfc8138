package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunRecorder persists run bookkeeping: one row per reconciliation run with
// its final counts. Implemented by the BigQuery reconciliation_runs
// repository; nil disables recording.
type RunRecorder interface {
	StartReconciliationRun(ctx context.Context, userID string) (string, error)
	MarkReconciliationRunSucceeded(ctx context.Context, runID string, result Result) error
	MarkReconciliationRunFailed(ctx context.Context, runID string, runErr error)
}

// ReportArchiver stores a run report after a successful run. Implemented by
// the GCS archiver; nil disables archiving.
type ReportArchiver interface {
	ArchiveRunReport(ctx context.Context, report RunReport) error
}

// RunReport is the archived record of one completed run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	UserID     string    `json:"user_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Result     Result    `json:"result"`
}

// Runner wraps the engine with per-user serialization, run bookkeeping and
// report archiving. It is what the worker and the API invoke; the engine
// itself stays a plain library call.
type Runner struct {
	engine   *Engine
	guard    *UserGuard
	recorder RunRecorder
	archiver ReportArchiver
	log      zerolog.Logger
}

// NewRunner creates a runner. recorder and archiver may be nil.
func NewRunner(engine *Engine, guard *UserGuard, recorder RunRecorder, archiver ReportArchiver, log zerolog.Logger) *Runner {
	return &Runner{
		engine:   engine,
		guard:    guard,
		recorder: recorder,
		archiver: archiver,
		log:      log,
	}
}

// Run executes one reconciliation run for the user. Returns ErrRunInProgress
// when another run for the same user is in flight.
func (r *Runner) Run(ctx context.Context, userID string) (Result, error) {
	if !r.guard.TryAcquire(userID) {
		return Result{}, ErrRunInProgress
	}
	defer r.guard.Release(userID)

	startedAt := time.Now().UTC()

	var runID string
	if r.recorder != nil {
		id, err := r.recorder.StartReconciliationRun(ctx, userID)
		if err != nil {
			// Bookkeeping must not block reconciliation itself.
			r.log.Warn().Err(err).Str("user_id", userID).Msg("Could not record run start")
		} else {
			runID = id
		}
	}

	result, err := r.engine.Reconcile(ctx, userID)
	if err != nil {
		if r.recorder != nil && runID != "" {
			r.recorder.MarkReconciliationRunFailed(ctx, runID, err)
		}
		return Result{}, err
	}

	if r.recorder != nil && runID != "" {
		if err := r.recorder.MarkReconciliationRunSucceeded(ctx, runID, result); err != nil {
			r.log.Warn().Err(err).Str("run_id", runID).Msg("Could not record run success")
		}
	}

	if r.archiver != nil {
		report := RunReport{
			RunID:      runID,
			UserID:     userID,
			StartedAt:  startedAt,
			FinishedAt: time.Now().UTC(),
			Result:     result,
		}
		if err := r.archiver.ArchiveRunReport(ctx, report); err != nil {
			r.log.Warn().Err(err).Str("run_id", runID).Msg("Could not archive run report")
		}
	}

	return result, nil
}
