package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
)

// Extractor turns raw OCR text into a best-effort structured receipt. It is a
// strategy interface so the regex heuristics can be swapped for an ML-based
// extractor without touching the orchestrator contract.
type Extractor interface {
	Extract(text string) *domain.StructuredReceipt
}

// DateFormat is the layout used for the fallback "today" date
const DateFormat = "01/02/2006"

// maxItemTotalRatio rejects candidate items priced above total * ratio,
// guarding against subtotal and tax lines being captured as items
const maxItemTotalRatio = 1.2

var (
	totalPattern      = regexp.MustCompile(`(?i)(?:total|amount|sum|balance|due)[^0-9$-]{0,12}\$?(\d+\.\d{2})`)
	moneyPattern      = regexp.MustCompile(`\$?(\d+\.\d{2})`)
	numericDate       = regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b`)
	monthNameDate     = regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:,)?\s+\d{2,4}\b`)
	dayFirstDate      = regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{2,4}\b`)
	isoDate           = regexp.MustCompile(`\b\d{4}-\d{1,2}-\d{1,2}\b`)
	itemLinePattern   = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 .,'&/()\-]{1,40}?)\s+\$?(\d+\.\d{2})\s*$`)
	digitLeadPattern  = regexp.MustCompile(`^\d`)
	priceFragment     = regexp.MustCompile(`^\$?\d+\.\d{2}$`)
)

// knownStores is the fixed list of retail chains matched case-insensitively
// when picking the store line
var knownStores = []string{
	"walmart", "target", "costco", "kroger", "safeway", "walgreens",
	"cvs", "7-eleven", "home depot", "lowe's", "best buy", "trader joe",
	"whole foods", "aldi", "publix", "dollar general", "rite aid",
	"starbucks", "mcdonald",
}

// genericLines are header lines that are never a store name
var genericLines = []string{
	"receipt", "thank you", "thanks", "welcome", "invoice", "customer copy",
}

// itemStoplist rejects candidate items whose name is really a summary line
var itemStoplist = []string{
	"total", "subtotal", "tax", "change", "balance", "cash", "credit", "card",
}

// RegexExtractor is the heuristic, regex-based Extractor implementation. All
// of its functions are total: any input string, including empty or
// adversarial text, produces a well-formed receipt.
type RegexExtractor struct {
	now func() time.Time
}

// NewRegexExtractor creates a new regex-based extractor
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{now: time.Now}
}

// Extract derives structured fields from raw OCR text. It never fails: fields
// that cannot be extracted fall back to sentinel values.
func (e *RegexExtractor) Extract(text string) *domain.StructuredReceipt {
	total := extractTotal(text)
	return &domain.StructuredReceipt{
		Text:         text,
		Total:        total,
		Date:         e.extractDate(text),
		Store:        extractStore(text),
		Items:        extractItems(text, total),
		AdvancedData: extractAdvancedData(text),
	}
}

// extractTotal looks for a labeled total first, then falls back to the
// largest monetary substring anywhere in the text
func extractTotal(text string) float64 {
	if m := totalPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v
		}
	}

	max := 0.0
	for _, m := range moneyPattern.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > max {
			max = v
		}
	}
	return max
}

// extractDate tries the date patterns in order and returns the first match
// verbatim; with no match the current date is used (visible to callers as
// "today", not as an error)
func (e *RegexExtractor) extractDate(text string) string {
	for _, pattern := range []*regexp.Regexp{numericDate, monthNameDate, dayFirstDate, isoDate} {
		if m := pattern.FindString(text); m != "" {
			return m
		}
	}
	return e.now().Format(DateFormat)
}

// extractStore picks the merchant line: a known chain match wins, then the
// first plausible header line, then the first non-empty line verbatim
func extractStore(text string) string {
	lines := splitLines(text)
	if len(lines) == 0 {
		return domain.UnknownStore
	}

	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, chain := range knownStores {
			if strings.Contains(lower, chain) {
				return line
			}
		}
	}

	for _, line := range lines {
		if plausibleStoreLine(line) {
			return line
		}
	}

	return lines[0]
}

func plausibleStoreLine(line string) bool {
	if len(line) <= 3 {
		return false
	}
	if digitLeadPattern.MatchString(line) {
		return false
	}
	if priceFragment.MatchString(line) || numericDate.MatchString(line) {
		return false
	}
	lower := strings.ToLower(line)
	for _, generic := range genericLines {
		if strings.Contains(lower, generic) {
			return false
		}
	}
	return true
}

// extractItems scans for "<text> <price>" lines, dropping summary lines and
// implausible prices
func extractItems(text string, total float64) []domain.ReceiptItem {
	items := make([]domain.ReceiptItem, 0)
	for _, line := range splitLines(text) {
		m := itemLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		name := strings.TrimSpace(m[1])
		price, err := strconv.ParseFloat(m[2], 64)
		if err != nil || price <= 0 {
			continue
		}
		if total > 0 && price > total*maxItemTotalRatio {
			continue
		}
		if stoplisted(name) {
			continue
		}

		items = append(items, domain.ReceiptItem{Name: name, Price: price})
	}
	return items
}

func stoplisted(name string) bool {
	lower := strings.ToLower(name)
	for _, word := range itemStoplist {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
