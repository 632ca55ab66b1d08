package model

import (
	"fmt"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/dedup"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/service"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/store"
)

// ReceiptItemResponse represents a single receipt line item
type ReceiptItemResponse struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

// ReceiptResponse represents the extracted receipt fields
type ReceiptResponse struct {
	Store        string                `json:"store"`
	Date         string                `json:"date"`
	Total        string                `json:"total"`
	Items        []ReceiptItemResponse `json:"items"`
	AdvancedData map[string]string     `json:"advancedData,omitempty"`
}

// DuplicateResponse represents the duplicate check outcome
type DuplicateResponse struct {
	IsDuplicate bool    `json:"isDuplicate"`
	Score       float64 `json:"score"`
}

// OCRResponse represents the recognition metadata of a processed image
type OCRResponse struct {
	Confidence       float64 `json:"confidence"`
	ImageQuality     string  `json:"imageQuality"`
	ErrorDetails     string  `json:"errorDetails,omitempty"`
	ProcessingTimeMS int64   `json:"processingTimeMs"`
}

// ProcessResultResponse is the response for a processed receipt
type ProcessResultResponse struct {
	Status       string             `json:"status"`
	Reason       string             `json:"reason,omitempty"`
	PointsEarned int                `json:"pointsEarned"`
	Receipt      *ReceiptResponse   `json:"receipt,omitempty"`
	Duplicate    *DuplicateResponse `json:"duplicate,omitempty"`
	OCR          *OCRResponse       `json:"ocr,omitempty"`
}

// PendingReceiptResponse describes one queued offline record. Image bytes are
// never returned over the API.
type PendingReceiptResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Encrypted bool   `json:"encrypted"`
	Decrypted bool   `json:"decrypted"`
	Method    string `json:"method,omitempty"`
}

// ErrorDetail provides field-level error information
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// FromProcessResult converts a service result into its API representation
func FromProcessResult(result *service.ProcessResult) *ProcessResultResponse {
	resp := &ProcessResultResponse{
		Status:       string(result.Status),
		Reason:       result.Reason,
		PointsEarned: result.PointsEarned,
	}
	if result.Receipt != nil {
		resp.Receipt = fromReceipt(result.Receipt)
	}
	if result.Duplicate != nil {
		resp.Duplicate = fromDuplicate(result.Duplicate)
	}
	if result.OCR != nil {
		resp.OCR = &OCRResponse{
			Confidence:       result.OCR.Confidence,
			ImageQuality:     string(result.OCR.ImageQuality),
			ErrorDetails:     result.OCR.ErrorDetails,
			ProcessingTimeMS: result.OCR.ProcessingTimeMS,
		}
	}
	return resp
}

// FromPendingReceipts converts queued records into their API representation
func FromPendingReceipts(pending []store.PendingReceipt) []PendingReceiptResponse {
	out := make([]PendingReceiptResponse, 0, len(pending))
	for _, p := range pending {
		out = append(out, PendingReceiptResponse{
			ID:        p.Record.ID,
			Timestamp: p.Record.Timestamp,
			Encrypted: p.Record.Encrypted(),
			Decrypted: p.Decrypted,
			Method:    p.Record.Metadata.Method,
		})
	}
	return out
}

func fromReceipt(r *domain.StructuredReceipt) *ReceiptResponse {
	items := make([]ReceiptItemResponse, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, ReceiptItemResponse{
			Name:  item.Name,
			Price: fmt.Sprintf("%.2f", item.Price),
		})
	}
	return &ReceiptResponse{
		Store:        r.Store,
		Date:         r.Date,
		Total:        fmt.Sprintf("%.2f", r.Total),
		Items:        items,
		AdvancedData: r.AdvancedData,
	}
}

func fromDuplicate(d *dedup.CheckResult) *DuplicateResponse {
	return &DuplicateResponse{
		IsDuplicate: d.IsDuplicate,
		Score:       d.Score,
	}
}
