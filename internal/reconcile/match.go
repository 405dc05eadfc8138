package reconcile

import (
	"strings"
	"time"

	"github.com/clearspend/reconciler/internal/domain"
)

// fuzzyPrefixLen is how much of a normalized description the other side must
// contain for a fuzzy merchant match.
const fuzzyPrefixLen = 10

// minNormalizedLen is the shortest normalized description the fuzzy check
// will consider; anything shorter matches too much.
const minNormalizedLen = 5

// containsAnyKeyword reports whether text contains any of the keywords,
// case-insensitively.
func containsAnyKeyword(text string, keywords []string) bool {
	upper := strings.ToUpper(text)
	for _, kw := range keywords {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}

// containsKeyword reports whether text contains the keyword, case-insensitively.
func containsKeyword(text, keyword string) bool {
	return strings.Contains(strings.ToUpper(text), strings.ToUpper(keyword))
}

// dayDiff returns the number of whole days from b to a. Negative when a is
// earlier than b. Transaction dates carry no time component, so the division
// is exact.
func dayDiff(a, b time.Time) int {
	return int(a.Sub(b) / (24 * time.Hour))
}

// absDayDiff returns the absolute calendar-day distance between two dates.
func absDayDiff(a, b time.Time) int {
	d := dayDiff(a, b)
	if d < 0 {
		return -d
	}
	return d
}

// amountsWithinPercent reports whether two magnitudes are within pct percent
// of each other, relative to the larger of the two. Integer arithmetic: the
// check is |a-b| * 100 <= pct * max(a,b).
func amountsWithinPercent(a, b int64, pct int) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	larger := a
	if b > larger {
		larger = b
	}
	return diff*100 <= int64(pct)*larger
}

// normalizeText lowercases and strips every non-alphanumeric rune.
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// fuzzyTextMatch is the fallback merchant check used when at least one side
// has no clean merchant name. Both normalized descriptions must be at least
// minNormalizedLen long, and one must contain the first fuzzyPrefixLen
// characters of the other.
func fuzzyTextMatch(a, b string) bool {
	na := normalizeText(a)
	nb := normalizeText(b)
	if len(na) < minNormalizedLen || len(nb) < minNormalizedLen {
		return false
	}
	return strings.Contains(na, prefixOf(nb)) || strings.Contains(nb, prefixOf(na))
}

func prefixOf(s string) string {
	if len(s) > fuzzyPrefixLen {
		return s[:fuzzyPrefixLen]
	}
	return s
}

// merchantsMatch decides whether two transactions plausibly involve the same
// merchant. When both sides carry a clean merchant name the names must be
// equal (case-insensitive); otherwise the fuzzy text check runs on the
// display texts.
func merchantsMatch(a, b *domain.EnrichedTransaction) bool {
	if a.MerchantCleanName != "" && b.MerchantCleanName != "" {
		return strings.EqualFold(a.MerchantCleanName, b.MerchantCleanName)
	}
	return fuzzyTextMatch(a.DisplayText(), b.DisplayText())
}
