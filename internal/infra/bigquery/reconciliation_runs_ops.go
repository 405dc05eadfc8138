package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/clearspend/reconciler/internal/logger"
	"github.com/clearspend/reconciler/internal/reconcile"
)

const reconciliationRunsTable = "reconciliation_runs"

// StartReconciliationRun inserts a new reconciliation_runs row with
// status=RUNNING and returns the generated run_id, using a one-off client
// against the default project and dataset.
func StartReconciliationRun(ctx context.Context, userID string) (string, error) {
	client, err := bigquery.NewClient(ctx, defaultProjectID)
	if err != nil {
		return "", fmt.Errorf("StartReconciliationRun: bigquery client: %w", err)
	}
	defer client.Close()

	return StartReconciliationRunWithClient(ctx, client, defaultDatasetID, userID)
}

// StartReconciliationRunWithClient inserts a new reconciliation_runs row with
// status=RUNNING and returns the generated run_id using the provided BigQuery
// client.
func StartReconciliationRunWithClient(ctx context.Context, client *bigquery.Client, datasetID, userID string) (string, error) {
	runID := uuid.NewString()
	started := time.Now()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			user_id,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@user_id,
			@started_ts,
			@status
		)
	`, datasetID, reconciliationRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "user_id", Value: userID},
		{Name: "started_ts", Value: started},
		{Name: "status", Value: "RUNNING"},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("StartReconciliationRun: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("StartReconciliationRun: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("StartReconciliationRun: job error: %w", err)
	}

	return runID, nil
}

// MarkReconciliationRunFailed sets status=FAILED, finished_ts and
// error_message, using a one-off client against the default project and
// dataset.
func MarkReconciliationRunFailed(ctx context.Context, runID string, runErr error) {
	log := logger.FromContext(ctx)

	client, err := bigquery.NewClient(ctx, defaultProjectID)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkReconciliationRunFailed: bigquery client error")
		return
	}
	defer client.Close()

	MarkReconciliationRunFailedWithClient(ctx, client, defaultDatasetID, runID, runErr)
}

// MarkReconciliationRunFailedWithClient sets status=FAILED, finished_ts and
// error_message using the provided BigQuery client.
func MarkReconciliationRunFailedWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, runErr error) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		const maxLen = 2000
		if len(errMsg) > maxLen {
			errMsg = errMsg[:maxLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE run_id = @run_id
	`, datasetID, reconciliationRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "FAILED"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "run_id", Value: runID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkReconciliationRunFailed: running update query")
		return
	}

	status, err := job.Wait(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkReconciliationRunFailed: waiting for job")
		return
	}
	if err := status.Err(); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkReconciliationRunFailed: job completed with error")
	}
}

// MarkReconciliationRunSucceeded sets status=SUCCESS, finished_ts and the run
// counts, clears error_message, using a one-off client against the default
// project and dataset.
func MarkReconciliationRunSucceeded(ctx context.Context, runID string, result reconcile.Result) error {
	client, err := bigquery.NewClient(ctx, defaultProjectID)
	if err != nil {
		return fmt.Errorf("MarkReconciliationRunSucceeded: bigquery client: %w", err)
	}
	defer client.Close()

	return MarkReconciliationRunSucceededWithClient(ctx, client, defaultDatasetID, runID, result)
}

// MarkReconciliationRunSucceededWithClient sets status=SUCCESS, finished_ts
// and the run counts using the provided BigQuery client.
func MarkReconciliationRunSucceededWithClient(ctx context.Context, client *bigquery.Client, datasetID, runID string, result reconcile.Result) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    transfers_detected = @transfers_detected,
		    refunds_detected = @refunds_detected,
		    bounced_payments_detected = @bounced_payments_detected,
		    transactions_updated = @transactions_updated,
		    update_failures = @update_failures
		WHERE run_id = @run_id
	`, datasetID, reconciliationRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "SUCCESS"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "transfers_detected", Value: int64(result.TransfersDetected)},
		{Name: "refunds_detected", Value: int64(result.RefundsDetected)},
		{Name: "bounced_payments_detected", Value: int64(result.BouncedPaymentsDetected)},
		{Name: "transactions_updated", Value: int64(result.TransactionsUpdated)},
		{Name: "update_failures", Value: int64(result.UpdateFailures)},
		{Name: "run_id", Value: runID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("MarkReconciliationRunSucceeded: running update query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("MarkReconciliationRunSucceeded: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("MarkReconciliationRunSucceeded: job error: %w", err)
	}

	return nil
}
