package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/clearspend/reconciler/internal/domain"
)

// TransactionRow represents an enriched transaction record in BigQuery.
// The enrichment pipeline owns the descriptive fields; reconciliation only
// touches transaction_type, linked_transaction_id and exclude_from_analysis.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	UserID    string `bigquery:"user_id"`    // REQUIRED
	AccountID string `bigquery:"account_id"` // NULLABLE

	AmountCents int64  `bigquery:"amount_cents"` // REQUIRED, magnitude in minor units
	EntryType   string `bigquery:"entry_type"`   // REQUIRED: incoming | outgoing

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	OriginalDescription string              `bigquery:"original_description"` // REQUIRED
	MerchantCleanName   bigquery.NullString `bigquery:"merchant_clean_name"`  // NULLABLE

	TransactionType     string              `bigquery:"transaction_type"`      // REQUIRED, defaults to regular
	LinkedTransactionID bigquery.NullString `bigquery:"linked_transaction_id"` // NULLABLE
	ExcludeFromAnalysis bool                `bigquery:"exclude_from_analysis"` // REQUIRED

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// ToDomain maps a storage row to the engine's domain record.
func (r *TransactionRow) ToDomain() *domain.EnrichedTransaction {
	tx := &domain.EnrichedTransaction{
		ID:                  r.TransactionID,
		UserID:              r.UserID,
		AmountCents:         r.AmountCents,
		EntryType:           domain.EntryType(r.EntryType),
		TransactionDate:     r.TransactionDate.In(time.UTC),
		OriginalDescription: r.OriginalDescription,
		TransactionType:     domain.TransactionType(r.TransactionType),
		ExcludeFromAnalysis: r.ExcludeFromAnalysis,
	}
	if r.MerchantCleanName.Valid {
		tx.MerchantCleanName = r.MerchantCleanName.StringVal
	}
	if r.LinkedTransactionID.Valid {
		linked := r.LinkedTransactionID.StringVal
		tx.LinkedTransactionID = &linked
	}
	return tx
}

// RowFromDomain maps a domain record to a storage row.
func RowFromDomain(tx *domain.EnrichedTransaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID:       tx.ID,
		UserID:              tx.UserID,
		AmountCents:         tx.AmountCents,
		EntryType:           string(tx.EntryType),
		TransactionDate:     civil.DateOf(tx.TransactionDate),
		OriginalDescription: tx.OriginalDescription,
		TransactionType:     string(tx.TransactionType),
		ExcludeFromAnalysis: tx.ExcludeFromAnalysis,
		CreatedTS:           time.Now(),
	}
	if tx.MerchantCleanName != "" {
		row.MerchantCleanName = bigquery.NullString{StringVal: tx.MerchantCleanName, Valid: true}
	}
	if tx.LinkedTransactionID != nil {
		row.LinkedTransactionID = bigquery.NullString{StringVal: *tx.LinkedTransactionID, Valid: true}
	}
	return row
}

// ReconciliationRunRow represents one reconciliation run record in BigQuery.
type ReconciliationRunRow struct {
	RunID  string `bigquery:"run_id"`
	UserID string `bigquery:"user_id"`

	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	Status       string `bigquery:"status"` // RUNNING | SUCCESS | FAILED
	ErrorMessage string `bigquery:"error_message"`

	TransfersDetected       bigquery.NullInt64 `bigquery:"transfers_detected"`
	RefundsDetected         bigquery.NullInt64 `bigquery:"refunds_detected"`
	BouncedPaymentsDetected bigquery.NullInt64 `bigquery:"bounced_payments_detected"`
	TransactionsUpdated     bigquery.NullInt64 `bigquery:"transactions_updated"`
	UpdateFailures          bigquery.NullInt64 `bigquery:"update_failures"`
}
