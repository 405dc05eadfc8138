package domain

import (
	"time"
)

// EntryType is the direction of a transaction relative to the user's account.
type EntryType string

const (
	EntryIncoming EntryType = "incoming"
	EntryOutgoing EntryType = "outgoing"
)

// TransactionType is the reconciliation classification of a transaction.
// Every transaction starts as TypeRegular; the reconciliation engine is the
// only component (besides user-correction endpoints) that moves it to one of
// the other states.
type TransactionType string

const (
	TypeRegular        TransactionType = "regular"
	TypeTransfer       TransactionType = "transfer"
	TypeRefund         TransactionType = "refund"
	TypeReversal       TransactionType = "reversal"
	TypeBouncedPayment TransactionType = "bounced_payment"
)

// EnrichedTransaction is one bank transaction after the external enrichment
// step has run. The record is owned by storage; reconciliation only reads it
// and updates the classification fields (TransactionType,
// LinkedTransactionID, ExcludeFromAnalysis).
type EnrichedTransaction struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// AmountCents is the magnitude in minor units; direction is carried by
	// EntryType, so AmountCents is never negative.
	AmountCents int64     `json:"amount_cents"`
	EntryType   EntryType `json:"entry_type"`

	// TransactionDate is a calendar date; the time component is always
	// midnight UTC.
	TransactionDate time.Time `json:"transaction_date"`

	OriginalDescription string `json:"original_description"`

	// MerchantCleanName is the enrichment-supplied normalized merchant name.
	// Empty when enrichment could not resolve a merchant.
	MerchantCleanName string `json:"merchant_clean_name,omitempty"`

	TransactionType     TransactionType `json:"transaction_type"`
	LinkedTransactionID *string         `json:"linked_transaction_id,omitempty"`
	ExcludeFromAnalysis bool            `json:"exclude_from_analysis"`
}

// DisplayText returns the text used for keyword and merchant checks:
// the clean merchant name when enrichment supplied one, otherwise the raw
// bank description.
func (t *EnrichedTransaction) DisplayText() string {
	if t.MerchantCleanName != "" {
		return t.MerchantCleanName
	}
	return t.OriginalDescription
}

// Unprocessed reports whether the transaction is still eligible for
// reconciliation matching.
func (t *EnrichedTransaction) Unprocessed() bool {
	return t.TransactionType == TypeRegular && !t.ExcludeFromAnalysis
}

// ReconciliationUpdate is the partial update the engine applies to one
// transaction. Nil fields are left untouched by storage.
type ReconciliationUpdate struct {
	TransactionType     *TransactionType `json:"transaction_type,omitempty"`
	LinkedTransactionID *string          `json:"linked_transaction_id,omitempty"`
	ExcludeFromAnalysis *bool            `json:"exclude_from_analysis,omitempty"`
}
