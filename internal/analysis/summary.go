// Package analysis builds budget summaries from reconciled transactions.
// It is the downstream consumer the reconciliation engine exists for:
// transactions flagged exclude_from_analysis never reach the totals, so
// transfers, refunds and bounced payments do not distort income or spend.
package analysis

import (
	"fmt"
	"time"

	"github.com/clearspend/reconciler/internal/domain"
)

// BudgetSummary is the income/expense aggregate for one user.
type BudgetSummary struct {
	UserID string `json:"user_id"`

	IncomeCents  int64 `json:"income_cents"`
	ExpenseCents int64 `json:"expense_cents"`
	NetCents     int64 `json:"net_cents"`

	TransactionCount int `json:"transaction_count"`
	ExcludedCount    int `json:"excluded_count"`

	ByMonth []MonthTotals `json:"by_month,omitempty"`
}

// MonthTotals is the income/expense aggregate for one calendar month.
type MonthTotals struct {
	Month        string `json:"month"` // YYYY-MM
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
}

// BuildSummary aggregates a user's transactions into budget totals,
// skipping everything reconciliation excluded.
func BuildSummary(userID string, txs []*domain.EnrichedTransaction) BudgetSummary {
	summary := BudgetSummary{UserID: userID}
	months := make(map[string]*MonthTotals)
	var order []string

	for _, tx := range txs {
		summary.TransactionCount++
		if tx.ExcludeFromAnalysis {
			summary.ExcludedCount++
			continue
		}

		key := monthKey(tx.TransactionDate)
		mt, ok := months[key]
		if !ok {
			mt = &MonthTotals{Month: key}
			months[key] = mt
			order = append(order, key)
		}

		switch tx.EntryType {
		case domain.EntryIncoming:
			summary.IncomeCents += tx.AmountCents
			mt.IncomeCents += tx.AmountCents
		case domain.EntryOutgoing:
			summary.ExpenseCents += tx.AmountCents
			mt.ExpenseCents += tx.AmountCents
		}
	}

	summary.NetCents = summary.IncomeCents - summary.ExpenseCents
	for _, key := range order {
		summary.ByMonth = append(summary.ByMonth, *months[key])
	}
	return summary
}

func monthKey(d time.Time) string {
	return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
}
