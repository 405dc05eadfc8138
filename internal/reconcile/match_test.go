package reconcile

import (
	"testing"
	"time"

	"github.com/clearspend/reconciler/internal/domain"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"AMAZON REFUND", "amazonrefund"},
		{"Card Payment *1234 / ACME", "cardpayment1234acme"},
		{"  ", ""},
		{"£15.00 VINTED", "1500vinted"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeText(tt.input); got != tt.want {
				t.Errorf("normalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFuzzyTextMatch(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"one contains the other's prefix", "AMAZON", "AMAZON REFUND", true},
		{"long strings share a 10 char prefix", "MEGASTORE ONLINE LTD", "MEGASTORE ONLINE REFUND", true},
		{"unrelated", "COUNCIL TAX", "NETFLIX.COM", false},
		{"too short after normalization", "ACME", "ACME", false},
		{"five chars exactly", "TESCO", "TESCO STORES", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fuzzyTextMatch(tt.a, tt.b); got != tt.want {
				t.Errorf("fuzzyTextMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAmountsWithinPercent(t *testing.T) {
	tests := []struct {
		name string
		a    int64
		b    int64
		pct  int
		want bool
	}{
		{"equal", 1500, 1500, 10, true},
		{"within tolerance", 1500, 1450, 10, true},
		{"exactly at tolerance", 10000, 9000, 10, true},
		{"just past tolerance", 10000, 8999, 10, false},
		{"order independent", 1450, 1500, 10, true},
		{"zero tolerance requires equality", 1500, 1499, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := amountsWithinPercent(tt.a, tt.b, tt.pct); got != tt.want {
				t.Errorf("amountsWithinPercent(%d, %d, %d) = %v, want %v", tt.a, tt.b, tt.pct, got, tt.want)
			}
		})
	}
}

func TestContainsAnyKeyword(t *testing.T) {
	keywords := DefaultConfig().RefundKeywords

	tests := []struct {
		text string
		want bool
	}{
		{"AMAZON REFUND", true},
		{"amazon refund", true},
		{"Dd Ret 0042", true},
		{"CHARGEBACK PENDING", true},
		{"GROCERIES", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := containsAnyKeyword(tt.text, keywords); got != tt.want {
				t.Errorf("containsAnyKeyword(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestMerchantsMatch(t *testing.T) {
	mk := func(desc, merchant string) *domain.EnrichedTransaction {
		return &domain.EnrichedTransaction{
			OriginalDescription: desc,
			MerchantCleanName:   merchant,
		}
	}

	tests := []struct {
		name string
		a    *domain.EnrichedTransaction
		b    *domain.EnrichedTransaction
		want bool
	}{
		{"clean names equal ignoring case", mk("x", "Amazon"), mk("y", "AMAZON"), true},
		{"clean names differ", mk("AMAZON UK", "Amazon"), mk("AMAZON UK", "eBay"), false},
		{"fuzzy fallback when one side unnamed", mk("AMAZON UK RETAIL", ""), mk("z", "Amazon UK"), true},
		{"fuzzy fallback fails on unrelated text", mk("COUNCIL TAX", ""), mk("NETFLIX.COM", ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := merchantsMatch(tt.a, tt.b); got != tt.want {
				t.Errorf("merchantsMatch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDayDiff(t *testing.T) {
	d := func(day int) time.Time {
		return time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC)
	}

	if got := dayDiff(d(10), d(3)); got != 7 {
		t.Errorf("dayDiff = %d, want 7", got)
	}
	if got := dayDiff(d(3), d(10)); got != -7 {
		t.Errorf("dayDiff = %d, want -7", got)
	}
	if got := absDayDiff(d(3), d(10)); got != 7 {
		t.Errorf("absDayDiff = %d, want 7", got)
	}
}
