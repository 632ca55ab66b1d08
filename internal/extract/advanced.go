package extract

import (
	"regexp"
	"strings"
)

// Advanced data keys. Each field is searched independently; absence of a
// match simply omits the key.
const (
	KeyReceiptID     = "receipt_id"
	KeyCashier       = "cashier"
	KeyPaymentMethod = "payment_method"
	KeyTax           = "tax"
	KeySubtotal      = "subtotal"
	KeyDiscount      = "discount"
	KeyLoyaltyCode   = "loyalty_code"
)

var (
	receiptIDPattern = regexp.MustCompile(`(?i)(?:receipt|trans(?:action)?|invoice|ref)\s*(?:no|num|number|id)?\s*[:#]{1,2}\s*([A-Za-z0-9-]{3,24})`)
	cashierPattern   = regexp.MustCompile(`(?i)(?:cashier|served by|operator)\s*:?\s+([A-Za-z][A-Za-z .'-]{1,30})`)
	paymentPattern   = regexp.MustCompile(`(?i)\b(visa|mastercard|amex|american express|discover|debit|credit|cash)\b`)
	taxPattern       = regexp.MustCompile(`(?i)\btax\s*:?\s*\$?(\d+\.\d{2})`)
	subtotalPattern  = regexp.MustCompile(`(?i)\bsub\s*-?\s*total\s*:?\s*\$?(\d+\.\d{2})`)
	discountPattern  = regexp.MustCompile(`(?i)\b(?:discount|savings|coupon)s?\s*:?\s*-?\$?(\d+\.\d{2})`)
	loyaltyPattern   = regexp.MustCompile(`(?i)\b(?:loyalty|member(?:ship)?|rewards?)\s*(?:no|num|number|id|code)?\s*[:#]{1,2}\s*([A-Za-z0-9-]{4,24})`)
)

// extractAdvancedData pulls secondary receipt fields via independent labeled
// pattern searches. Best-effort: each field is optional.
func extractAdvancedData(text string) map[string]string {
	data := make(map[string]string)

	if m := receiptIDPattern.FindStringSubmatch(text); m != nil {
		data[KeyReceiptID] = m[1]
	}
	if m := cashierPattern.FindStringSubmatch(text); m != nil {
		data[KeyCashier] = strings.TrimSpace(m[1])
	}
	if m := paymentPattern.FindStringSubmatch(text); m != nil {
		data[KeyPaymentMethod] = strings.ToLower(m[1])
	}
	if m := taxPattern.FindStringSubmatch(text); m != nil {
		data[KeyTax] = m[1]
	}
	if m := subtotalPattern.FindStringSubmatch(text); m != nil {
		data[KeySubtotal] = m[1]
	}
	if m := discountPattern.FindStringSubmatch(text); m != nil {
		data[KeyDiscount] = m[1]
	}
	if m := loyaltyPattern.FindStringSubmatch(text); m != nil {
		data[KeyLoyaltyCode] = m[1]
	}

	return data
}
