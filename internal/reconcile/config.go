package reconcile

// Config holds the matching parameters and string tables used by the engine.
// The keyword and merchant lists are data, not code, so locale- or
// market-specific variants can be supplied without touching the matching
// logic. All keyword checks are case-insensitive substring matches.
type Config struct {
	// TransferWindowDays is the maximum date gap for an internal transfer
	// pair. Amounts must match exactly.
	TransferWindowDays int

	// RefundWindowDays is how far back a refund or reversal may look for
	// its original purchase.
	RefundWindowDays int

	// RefundTolerancePercent is the allowed amount difference between a
	// refund and its original purchase, relative to the larger of the two.
	RefundTolerancePercent int

	// BounceWindowDays is how far back a bounced direct debit return may
	// look for the payment it reverses. Amounts must match exactly.
	BounceWindowDays int

	// RefundKeywords flag an incoming transaction as a potential refund or
	// reversal.
	RefundKeywords []string

	// ReversalKeyword distinguishes a reversal from a plain refund.
	ReversalKeyword string

	// BounceKeywords flag an incoming transaction as a returned direct
	// debit or bounced payment.
	BounceKeywords []string

	// MarketplaceMerchants are merchants whose credit-backs routinely lack
	// refund keywords; pass 3 matches on merchant alone.
	MarketplaceMerchants []string
}

// DefaultConfig returns the UK-market defaults.
func DefaultConfig() Config {
	return Config{
		TransferWindowDays:     2,
		RefundWindowDays:       90,
		RefundTolerancePercent: 10,
		BounceWindowDays:       7,
		RefundKeywords: []string{
			"REFUND",
			"RETURN",
			"DD RET",
			"REV",
			"RETURNED",
			"CREDIT MEMO",
			"CHARGEBACK",
			"REVERSAL",
		},
		ReversalKeyword: "REVERSAL",
		BounceKeywords: []string{
			"DIRECT DEBIT RETURNED",
			"DD RETURNED",
			"UNPAID DIRECT DEBIT",
			"RETURNED PAYMENT",
			"PAYMENT RETURNED",
			"BOUNCED",
			"DISHONOURED",
			"INSUFFICIENT FUNDS",
		},
		MarketplaceMerchants: []string{
			"VINTED",
			"EBAY",
			"DEPOP",
			"POSHMARK",
			"MERCARI",
			"ETSY",
		},
	}
}
