package repository

import (
	"context"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
)

// ReceiptSink is the opaque remote receipt store. The engine does not know
// its wire format beyond "submit a structured receipt, get points back".
type ReceiptSink interface {
	// SubmitReceipt sends a processed receipt to the backend and returns the
	// points earned for it
	SubmitReceipt(ctx context.Context, receipt *domain.StructuredReceipt) (int, error)
}

// PointsLedger is the opaque points transaction store
type PointsLedger interface {
	// RecordTransaction records a points transaction with the backend
	RecordTransaction(ctx context.Context, tx *domain.PointsTransaction) error
}
