package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	bq "github.com/clearspend/reconciler/internal/bigquery"
	"github.com/clearspend/reconciler/internal/domain"
)

const (
	defaultProjectID  = "clearspend-prod-382017"
	defaultDatasetID  = "clearspend"
	transactionsTable = "transactions"
)

// InsertTransactions inserts a batch of TransactionRow using a one-off client
// against the default project and dataset.
func InsertTransactions(ctx context.Context, rows []*bq.TransactionRow) error {
	client, err := bigquery.NewClient(ctx, defaultProjectID)
	if err != nil {
		return fmt.Errorf("InsertTransactions: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertTransactionsWithClient(ctx, client, defaultDatasetID, rows)
}

// InsertTransactionsWithClient inserts a batch of TransactionRow into the
// dataset's transactions table using the provided BigQuery client.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, rows []*bq.TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	table := client.Dataset(datasetID).Table(transactionsTable)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// ListTransactionsByUser returns every transaction for the user in stable
// storage order (transaction_date, then insertion order), using a one-off
// client against the default project and dataset.
func ListTransactionsByUser(ctx context.Context, userID string) ([]*domain.EnrichedTransaction, error) {
	client, err := bigquery.NewClient(ctx, defaultProjectID)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByUser: bigquery client: %w", err)
	}
	defer client.Close()

	return ListTransactionsByUserWithClient(ctx, client, defaultDatasetID, userID)
}

// ListTransactionsByUserWithClient returns every transaction for the user
// using the provided BigQuery client.
func ListTransactionsByUserWithClient(ctx context.Context, client *bigquery.Client, datasetID, userID string) ([]*domain.EnrichedTransaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.user_id,
			t.account_id,
			t.amount_cents,
			t.entry_type,
			t.transaction_date,
			t.original_description,
			t.merchant_clean_name,
			t.transaction_type,
			t.linked_transaction_id,
			t.exclude_from_analysis,
			t.created_ts,
			t.updated_ts
		FROM %s.%s t
		WHERE t.user_id = @user_id
		ORDER BY t.transaction_date, t.created_ts
	`, datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByUser: query read: %w", err)
	}

	var txs []*domain.EnrichedTransaction
	for {
		var r bq.TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactionsByUser: iter next: %w", err)
		}
		txs = append(txs, r.ToDomain())
	}

	return txs, nil
}

// ApplyReconciliationUpdate applies a partial classification update to one
// transaction by id, using a one-off client against the default project and
// dataset.
func ApplyReconciliationUpdate(ctx context.Context, transactionID string, update domain.ReconciliationUpdate) error {
	client, err := bigquery.NewClient(ctx, defaultProjectID)
	if err != nil {
		return fmt.Errorf("ApplyReconciliationUpdate: bigquery client: %w", err)
	}
	defer client.Close()

	return ApplyReconciliationUpdateWithClient(ctx, client, defaultDatasetID, transactionID, update)
}

// ApplyReconciliationUpdateWithClient applies a partial classification update
// using the provided BigQuery client. Only the fields set in the update are
// written; updated_ts is always bumped.
func ApplyReconciliationUpdateWithClient(ctx context.Context, client *bigquery.Client, datasetID, transactionID string, update domain.ReconciliationUpdate) error {
	setClauses := []string{"updated_ts = @updated_ts"}
	params := []bigquery.QueryParameter{
		{Name: "updated_ts", Value: time.Now()},
		{Name: "transaction_id", Value: transactionID},
	}

	if update.TransactionType != nil {
		setClauses = append(setClauses, "transaction_type = @transaction_type")
		params = append(params, bigquery.QueryParameter{Name: "transaction_type", Value: string(*update.TransactionType)})
	}
	if update.LinkedTransactionID != nil {
		setClauses = append(setClauses, "linked_transaction_id = @linked_transaction_id")
		params = append(params, bigquery.QueryParameter{Name: "linked_transaction_id", Value: *update.LinkedTransactionID})
	}
	if update.ExcludeFromAnalysis != nil {
		setClauses = append(setClauses, "exclude_from_analysis = @exclude_from_analysis")
		params = append(params, bigquery.QueryParameter{Name: "exclude_from_analysis", Value: *update.ExcludeFromAnalysis})
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET %s
		WHERE transaction_id = @transaction_id
	`, datasetID, transactionsTable, strings.Join(setClauses, ",\n		    ")))
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("ApplyReconciliationUpdate: running update query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("ApplyReconciliationUpdate: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("ApplyReconciliationUpdate: job error: %w", err)
	}

	return nil
}
