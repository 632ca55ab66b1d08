package dedup

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
)

// DuplicateThreshold is the similarity score at or above which a receipt is
// flagged as a likely re-submission
const DuplicateThreshold = 0.7

// Fingerprint is the derived comparison key for duplicate detection. It is
// recomputed for every comparison and never persisted.
type Fingerprint struct {
	Store     string
	Total     float64
	Date      string
	ItemCount int
	ItemsHash string
}

// NewFingerprint derives a fingerprint from a structured receipt
func NewFingerprint(r *domain.StructuredReceipt) Fingerprint {
	parts := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		parts = append(parts, fmt.Sprintf("%s:%.2f", strings.ToLower(strings.TrimSpace(item.Name)), item.Price))
	}
	sort.Strings(parts)

	return Fingerprint{
		Store:     strings.ToLower(strings.TrimSpace(r.Store)),
		Total:     r.Total,
		Date:      r.Date,
		ItemCount: len(r.Items),
		ItemsHash: strings.Join(parts, "|"),
	}
}

// Score computes the additive similarity between two fingerprints, capped at
// 1.0. The scoring is deliberately not symmetric in all components; the only
// guarantee is that the result lies in [0,1].
func Score(a, b Fingerprint) float64 {
	score := 0.0

	// total bands are mutually exclusive: only the tighter one applies
	diff := math.Abs(a.Total - b.Total)
	switch {
	case diff <= 0.01:
		score += 0.5
	case diff <= 1.00:
		score += 0.3
	}

	if a.Store != "" && a.Store == b.Store {
		score += 0.2
	} else if a.Store != "" && b.Store != "" &&
		(strings.Contains(a.Store, b.Store) || strings.Contains(b.Store, a.Store)) {
		score += 0.1
	}

	// same calendar day; skipped silently when either date fails to parse
	if dayA, okA := parseDay(a.Date); okA {
		if dayB, okB := parseDay(b.Date); okB && dayA.Equal(dayB) {
			score += 0.2
		}
	}

	if a.ItemCount > 0 && b.ItemCount > 0 {
		if a.ItemsHash == b.ItemsHash {
			score += 0.3
		} else if a.ItemCount == b.ItemCount {
			score += 0.1
		} else if abs(a.ItemCount-b.ItemCount) <= 2 {
			score += 0.05
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// CheckResult reports the outcome of a duplicate check
type CheckResult struct {
	IsDuplicate bool                      `json:"is_duplicate"`
	Score       float64                   `json:"score"`
	Match       *domain.StructuredReceipt `json:"match,omitempty"`
}

// Check compares a receipt against the full history and keeps the best match.
// O(n) per check; history sizes are user-local and bounded, so no indexing.
func Check(receipt *domain.StructuredReceipt, history []*domain.StructuredReceipt) *CheckResult {
	result := &CheckResult{}
	fp := NewFingerprint(receipt)

	for _, past := range history {
		score := Score(fp, NewFingerprint(past))
		if score > result.Score {
			result.Score = score
			result.Match = past
		}
	}

	result.IsDuplicate = result.Score >= DuplicateThreshold
	return result
}

// dayFormats are tried in order when normalizing a date for the calendar-day
// comparison
var dayFormats = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"1-2-2006",
	"01.02.2006",
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

func parseDay(date string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFormats {
		if t, err := time.Parse(layout, date); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
