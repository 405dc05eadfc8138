package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/clearspend/reconciler/internal/bigquery"
	"github.com/clearspend/reconciler/internal/domain"
	"github.com/clearspend/reconciler/internal/reconcile"
)

// BigQueryTransactionRepository is the concrete implementation of the engine's
// TransactionStore and RunRecorder that interacts with BigQuery. It holds a
// shared BigQuery client to avoid creating a new connection for each operation.
type BigQueryTransactionRepository struct {
	client    *bigquery.Client
	datasetID string
}

// Compile-time checks that the repository satisfies the engine's interfaces.
var (
	_ reconcile.TransactionStore = (*BigQueryTransactionRepository)(nil)
	_ reconcile.RunRecorder      = (*BigQueryTransactionRepository)(nil)
)

// NewBigQueryTransactionRepository creates a new instance of
// BigQueryTransactionRepository with a shared BigQuery client. Empty projectID
// or datasetID fall back to the built-in defaults.
func NewBigQueryTransactionRepository(ctx context.Context, projectID, datasetID string) (*BigQueryTransactionRepository, error) {
	if projectID == "" {
		projectID = defaultProjectID
	}
	if datasetID == "" {
		datasetID = defaultDatasetID
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryTransactionRepository: creating client: %w", err)
	}
	return &BigQueryTransactionRepository{
		client:    client,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryTransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListTransactionsByUser delegates to the existing ListTransactionsByUser function with the shared client.
func (r *BigQueryTransactionRepository) ListTransactionsByUser(ctx context.Context, userID string) ([]*domain.EnrichedTransaction, error) {
	return ListTransactionsByUserWithClient(ctx, r.client, r.datasetID, userID)
}

// ApplyReconciliationUpdate delegates to the existing ApplyReconciliationUpdate function with the shared client.
func (r *BigQueryTransactionRepository) ApplyReconciliationUpdate(ctx context.Context, transactionID string, update domain.ReconciliationUpdate) error {
	return ApplyReconciliationUpdateWithClient(ctx, r.client, r.datasetID, transactionID, update)
}

// InsertTransactions delegates to the existing InsertTransactions function with the shared client.
func (r *BigQueryTransactionRepository) InsertTransactions(ctx context.Context, rows []*bq.TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.datasetID, rows)
}

// StartReconciliationRun delegates to the existing StartReconciliationRun function with the shared client.
func (r *BigQueryTransactionRepository) StartReconciliationRun(ctx context.Context, userID string) (string, error) {
	return StartReconciliationRunWithClient(ctx, r.client, r.datasetID, userID)
}

// MarkReconciliationRunFailed delegates to the existing MarkReconciliationRunFailed function with the shared client.
func (r *BigQueryTransactionRepository) MarkReconciliationRunFailed(ctx context.Context, runID string, runErr error) {
	MarkReconciliationRunFailedWithClient(ctx, r.client, r.datasetID, runID, runErr)
}

// MarkReconciliationRunSucceeded delegates to the existing MarkReconciliationRunSucceeded function with the shared client.
func (r *BigQueryTransactionRepository) MarkReconciliationRunSucceeded(ctx context.Context, runID string, result reconcile.Result) error {
	return MarkReconciliationRunSucceededWithClient(ctx, r.client, r.datasetID, runID, result)
}
