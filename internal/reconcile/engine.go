package reconcile

import (
	"context"
	"fmt"

	"github.com/clearspend/reconciler/internal/domain"
	"github.com/rs/zerolog"
)

// TransactionStore is the narrow storage surface the engine needs: the
// fetch-all, mutate-via-id protocol. Implemented by the BigQuery repository
// in production and by an in-memory fake in tests.
type TransactionStore interface {
	// ListTransactionsByUser returns every enriched transaction for the
	// user, in stable storage order.
	ListTransactionsByUser(ctx context.Context, userID string) ([]*domain.EnrichedTransaction, error)

	// ApplyReconciliationUpdate applies a partial classification update to
	// one transaction by id.
	ApplyReconciliationUpdate(ctx context.Context, transactionID string, update domain.ReconciliationUpdate) error
}

// Result aggregates what one reconciliation run detected and wrote.
// Reversals are counted under RefundsDetected.
type Result struct {
	TransfersDetected       int `json:"transfers_detected"`
	RefundsDetected         int `json:"refunds_detected"`
	BouncedPaymentsDetected int `json:"bounced_payments_detected"`
	TransactionsUpdated     int `json:"transactions_updated"`

	// UpdateFailures counts storage writes that failed and were skipped.
	// Zero means the run was fully reconciled; non-zero means partial.
	UpdateFailures int `json:"update_failures,omitempty"`
}

// Engine detects internal transfers, refunds, reversals and bounced direct
// debits in a user's enriched transaction history and excludes them from
// budget analysis. Matching is greedy first-match in storage order; a
// transaction classified by one pass is never reconsidered by a later one.
//
// The engine is synchronous and holds no state between runs. Concurrent runs
// for the same user are not safe against each other; callers serialize per
// user (see UserGuard).
type Engine struct {
	store TransactionStore
	cfg   Config
	log   zerolog.Logger
}

// NewEngine creates an engine with the given store and matching config.
func NewEngine(store TransactionStore, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{store: store, cfg: cfg, log: log}
}

// runState is the in-memory snapshot one run scans against. Matched ids go
// into processed rather than being re-queried from storage.
type runState struct {
	incoming  []*domain.EnrichedTransaction
	outgoing  []*domain.EnrichedTransaction
	processed map[string]bool
	result    Result
}

// Reconcile loads every transaction for the user, runs the four detection
// passes in order, persists one update per affected transaction and returns
// the aggregate counts. Already-classified transactions are skipped, so
// re-running on unchanged data is a no-op.
//
// A failed write is logged and counted in Result.UpdateFailures; it does not
// abort the run.
func (e *Engine) Reconcile(ctx context.Context, userID string) (Result, error) {
	txs, err := e.store.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile %s: listing transactions: %w", userID, err)
	}
	if len(txs) == 0 {
		return Result{}, nil
	}

	s := &runState{processed: make(map[string]bool, len(txs))}
	for _, tx := range txs {
		if !tx.Unprocessed() {
			s.processed[tx.ID] = true
			continue
		}
		switch tx.EntryType {
		case domain.EntryIncoming:
			s.incoming = append(s.incoming, tx)
		case domain.EntryOutgoing:
			s.outgoing = append(s.outgoing, tx)
		}
	}

	e.detectTransfers(ctx, s)
	e.detectRefunds(ctx, s)
	e.detectMarketplaceRefunds(ctx, s)
	e.detectBouncedPayments(ctx, s)

	e.log.Info().
		Str("user_id", userID).
		Int("transfers", s.result.TransfersDetected).
		Int("refunds", s.result.RefundsDetected).
		Int("bounced", s.result.BouncedPaymentsDetected).
		Int("updated", s.result.TransactionsUpdated).
		Int("update_failures", s.result.UpdateFailures).
		Msg("Reconciliation run finished")

	return s.result, nil
}

// detectTransfers pairs incoming and outgoing transactions with exactly equal
// amounts no more than TransferWindowDays apart. Both sides become transfers,
// linked to each other and excluded from analysis.
func (e *Engine) detectTransfers(ctx context.Context, s *runState) {
	for _, in := range s.incoming {
		if s.processed[in.ID] {
			continue
		}
		// A returned direct debit looks exactly like a transfer here
		// (equal amount, days apart); pass 4 owns anything carrying a
		// bounce keyword.
		if containsAnyKeyword(in.DisplayText(), e.cfg.BounceKeywords) {
			continue
		}
		for _, out := range s.outgoing {
			if s.processed[out.ID] {
				continue
			}
			if out.AmountCents != in.AmountCents {
				continue
			}
			if absDayDiff(in.TransactionDate, out.TransactionDate) > e.cfg.TransferWindowDays {
				continue
			}

			s.processed[in.ID] = true
			s.processed[out.ID] = true
			e.apply(ctx, s, in.ID, classification(domain.TypeTransfer, &out.ID))
			e.apply(ctx, s, out.ID, classification(domain.TypeTransfer, &in.ID))
			s.result.TransfersDetected++
			break
		}
	}
}

// detectRefunds reclassifies incoming transactions whose text carries a
// refund keyword. The original purchase, when found, stays typed regular but
// is excluded from analysis; refunds with no findable original are still
// reclassified with a nil link.
func (e *Engine) detectRefunds(ctx context.Context, s *runState) {
	for _, in := range s.incoming {
		if s.processed[in.ID] {
			continue
		}
		text := in.DisplayText()
		if !containsAnyKeyword(text, e.cfg.RefundKeywords) {
			continue
		}

		original := e.findRefundOriginal(s, in)

		txType := domain.TypeRefund
		if containsKeyword(text, e.cfg.ReversalKeyword) {
			txType = domain.TypeReversal
		}

		var link *string
		if original != nil {
			link = &original.ID
		}

		s.processed[in.ID] = true
		e.apply(ctx, s, in.ID, classification(txType, link))
		if original != nil {
			// The original keeps its regular type; only the exclusion
			// flag flips.
			s.processed[original.ID] = true
			e.apply(ctx, s, original.ID, exclusionOnly())
		}
		s.result.RefundsDetected++
	}
}

// findRefundOriginal scans unprocessed outgoing transactions for the first
// plausible original purchase: strictly earlier, within the refund window,
// amount within tolerance and same merchant.
func (e *Engine) findRefundOriginal(s *runState, in *domain.EnrichedTransaction) *domain.EnrichedTransaction {
	for _, out := range s.outgoing {
		if s.processed[out.ID] {
			continue
		}
		if !out.TransactionDate.Before(in.TransactionDate) {
			continue
		}
		if absDayDiff(in.TransactionDate, out.TransactionDate) > e.cfg.RefundWindowDays {
			continue
		}
		if !amountsWithinPercent(in.AmountCents, out.AmountCents, e.cfg.RefundTolerancePercent) {
			continue
		}
		if !merchantsMatch(in, out) {
			continue
		}
		return out
	}
	return nil
}

// detectMarketplaceRefunds handles credit-backs from marketplace merchants,
// which often arrive without any refund keyword. Both sides must be
// recognized marketplace merchants; the match conditions are otherwise the
// same as the refund pass. Unlike that pass, nothing is reclassified unless
// a pair is found.
func (e *Engine) detectMarketplaceRefunds(ctx context.Context, s *runState) {
	for _, in := range s.incoming {
		if s.processed[in.ID] {
			continue
		}
		if !containsAnyKeyword(in.DisplayText(), e.cfg.MarketplaceMerchants) {
			continue
		}

		for _, out := range s.outgoing {
			if s.processed[out.ID] {
				continue
			}
			if !containsAnyKeyword(out.DisplayText(), e.cfg.MarketplaceMerchants) {
				continue
			}
			if !out.TransactionDate.Before(in.TransactionDate) {
				continue
			}
			if absDayDiff(in.TransactionDate, out.TransactionDate) > e.cfg.RefundWindowDays {
				continue
			}
			if !amountsWithinPercent(in.AmountCents, out.AmountCents, e.cfg.RefundTolerancePercent) {
				continue
			}
			if !merchantsMatch(in, out) {
				continue
			}

			s.processed[in.ID] = true
			s.processed[out.ID] = true
			e.apply(ctx, s, in.ID, classification(domain.TypeRefund, &out.ID))
			e.apply(ctx, s, out.ID, exclusionWithLink(&in.ID))
			s.result.RefundsDetected++
			break
		}
	}
}

// detectBouncedPayments reclassifies returned direct debits. The bounce
// return side is always reclassified once a bounce keyword matches, even
// when the original payment cannot be found; a found original becomes a
// bounced_payment too and is linked back.
func (e *Engine) detectBouncedPayments(ctx context.Context, s *runState) {
	for _, in := range s.incoming {
		if s.processed[in.ID] {
			continue
		}
		if !containsAnyKeyword(in.DisplayText(), e.cfg.BounceKeywords) {
			continue
		}

		var original *domain.EnrichedTransaction
		for _, out := range s.outgoing {
			if s.processed[out.ID] {
				continue
			}
			if out.AmountCents != in.AmountCents {
				continue
			}
			if !out.TransactionDate.Before(in.TransactionDate) {
				continue
			}
			if absDayDiff(in.TransactionDate, out.TransactionDate) > e.cfg.BounceWindowDays {
				continue
			}
			original = out
			break
		}

		var link *string
		if original != nil {
			link = &original.ID
		}

		s.processed[in.ID] = true
		e.apply(ctx, s, in.ID, classification(domain.TypeBouncedPayment, link))
		if original != nil {
			s.processed[original.ID] = true
			e.apply(ctx, s, original.ID, classification(domain.TypeBouncedPayment, &in.ID))
		}
		s.result.BouncedPaymentsDetected++
	}
}

// apply persists one update. Failures are isolated: logged, counted, and the
// run moves on to the remaining pairs.
func (e *Engine) apply(ctx context.Context, s *runState, transactionID string, update domain.ReconciliationUpdate) {
	if err := e.store.ApplyReconciliationUpdate(ctx, transactionID, update); err != nil {
		e.log.Warn().
			Err(err).
			Str("transaction_id", transactionID).
			Msg("Reconciliation update failed, continuing run")
		s.result.UpdateFailures++
		return
	}
	s.result.TransactionsUpdated++
}

// classification builds the update for a transaction that gets a terminal
// type: type, link and exclusion flip together.
func classification(txType domain.TransactionType, linkedID *string) domain.ReconciliationUpdate {
	exclude := true
	return domain.ReconciliationUpdate{
		TransactionType:     &txType,
		LinkedTransactionID: linkedID,
		ExcludeFromAnalysis: &exclude,
	}
}

// exclusionOnly builds the update for a refund original: excluded from
// totals but structurally unchanged.
func exclusionOnly() domain.ReconciliationUpdate {
	exclude := true
	return domain.ReconciliationUpdate{ExcludeFromAnalysis: &exclude}
}

// exclusionWithLink is exclusionOnly plus the back-link used by the
// marketplace pass.
func exclusionWithLink(linkedID *string) domain.ReconciliationUpdate {
	exclude := true
	return domain.ReconciliationUpdate{
		LinkedTransactionID: linkedID,
		ExcludeFromAnalysis: &exclude,
	}
}
