package domain

import (
	"math"
	"time"
)

// UnknownStore is the sentinel merchant name used when extraction finds nothing better.
const UnknownStore = "Unknown Store"

// ImageQuality buckets the OCR confidence into a coarse tier for UI callers
type ImageQuality string

const (
	ImageQualityLow    ImageQuality = "low"
	ImageQualityMedium ImageQuality = "medium"
	ImageQualityHigh   ImageQuality = "high"
)

// QualityForConfidence maps a 0-100 confidence score onto a quality tier.
// Thresholds are configurable; callers pass the medium and high cutoffs.
func QualityForConfidence(confidence, mediumThreshold, highThreshold float64) ImageQuality {
	switch {
	case confidence >= highThreshold:
		return ImageQualityHigh
	case confidence >= mediumThreshold:
		return ImageQualityMedium
	default:
		return ImageQualityLow
	}
}

// OCRResult is the output of one recognition pass. It is produced once per
// image and consumed by the structured extractor.
type OCRResult struct {
	Text             string       `json:"text"`
	Confidence       float64      `json:"confidence"`
	ImageQuality     ImageQuality `json:"image_quality"`
	ErrorDetails     string       `json:"error_details,omitempty"`
	ProcessingTimeMS int64        `json:"processing_time_ms"`
}

// ReceiptItem represents a single line item on a receipt
type ReceiptItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// StructuredReceipt is the best-effort structured view of raw OCR text.
// Total, Store and Date fall back to sentinel values when extraction fails;
// AdvancedData carries secondary fields (receipt id, cashier, tax, ...) that
// were present in the text.
type StructuredReceipt struct {
	Text         string            `json:"text"`
	Total        float64           `json:"total"`
	Date         string            `json:"date"`
	Store        string            `json:"store"`
	Items        []ReceiptItem     `json:"items"`
	AdvancedData map[string]string `json:"advanced_data,omitempty"`
}

// PointsTransaction records points earned for a processed receipt
type PointsTransaction struct {
	ID        string    `json:"id"`
	ReceiptID string    `json:"receipt_id"`
	Store     string    `json:"store"`
	Total     float64   `json:"total"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// PointsForTotal computes the raw point value for a receipt total: one point
// per whole currency unit. Reward multipliers and promotions are applied by
// the backend, not here.
func PointsForTotal(total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(total))
}
