package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/dedup"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/extract"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/ocr"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/repository"
)

// ProcessStatus tags which layer of the fallback chain produced a result.
// Every fallback decision is logged; nothing is swallowed silently.
type ProcessStatus string

const (
	// StatusOK: full pipeline ran — OCR, extraction, duplicate check
	StatusOK ProcessStatus = "ok"
	// StatusDegraded: a fallback layer produced the receipt (OCR disabled,
	// OCR failure, or remote submission failure); Reason says which
	StatusDegraded ProcessStatus = "degraded"
	// StatusFailed: the input itself was unusable
	StatusFailed ProcessStatus = "failed"
)

// ProcessResult is the unified outcome of one processReceipt call
type ProcessResult struct {
	Status       ProcessStatus             `json:"status"`
	Receipt      *domain.StructuredReceipt `json:"receipt,omitempty"`
	OCR          *domain.OCRResult         `json:"ocr,omitempty"`
	Duplicate    *dedup.CheckResult        `json:"duplicate,omitempty"`
	PointsEarned int                       `json:"points_earned"`
	Reason       string                    `json:"reason,omitempty"`
}

// ImageProcessor is the OCR capability the orchestrator drives. In production
// this is the worker pool.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, imageData string, opts ocr.ProcessOptions) (*domain.OCRResult, error)
}

// ScanOptions are the per-request processing knobs callers pass alongside an
// image. HighQuality raises the engine's recognition parameters for that
// request only.
type ScanOptions struct {
	EnableOCR   bool
	HighQuality bool
}

// ProcessorService composes the OCR pool, structured extractor and duplicate
// detector into a single processReceipt entry point for UI callers
type ProcessorService struct {
	pool      ImageProcessor
	extractor extract.Extractor
	sink      repository.ReceiptSink // may be nil: local-only mode
	ledger    repository.PointsLedger
	opts      ocr.ProcessOptions
	log       zerolog.Logger

	mu      sync.Mutex
	history []*domain.StructuredReceipt
	last    *ProcessResult
}

// NewProcessorService creates a new receipt processing orchestrator. All
// collaborators are injected; the service holds no global state.
func NewProcessorService(pool ImageProcessor, extractor extract.Extractor, sink repository.ReceiptSink, opts ocr.ProcessOptions, log zerolog.Logger) *ProcessorService {
	return &ProcessorService{
		pool:      pool,
		extractor: extractor,
		sink:      sink,
		opts:      opts,
		log:       log,
	}
}

// SetLedger attaches a points transaction ledger. Ledger writes are
// best-effort: a failed write never degrades the processing result.
func (s *ProcessorService) SetLedger(ledger repository.PointsLedger) {
	s.ledger = ledger
}

// ProcessReceipt runs an image through the full pipeline. OCR is best-effort:
// when it is disabled or fails, the caller gets a degraded placeholder
// receipt instead of an error. The result is also stored in the
// most-recent-result slot for UI readback.
func (s *ProcessorService) ProcessReceipt(ctx context.Context, imageData string, opts ScanOptions) *ProcessResult {
	result := s.process(ctx, imageData, opts)

	s.mu.Lock()
	s.last = result
	if result.Receipt != nil && result.Status != StatusFailed {
		s.history = append(s.history, result.Receipt)
	}
	s.mu.Unlock()

	return result
}

func (s *ProcessorService) process(ctx context.Context, imageData string, opts ScanOptions) *ProcessResult {
	if !opts.EnableOCR {
		s.log.Info().Msg("ocr disabled by caller, returning placeholder receipt")
		return &ProcessResult{
			Status:  StatusDegraded,
			Reason:  "ocr disabled",
			Receipt: s.placeholderReceipt(),
		}
	}

	ocrOpts := s.opts
	if opts.HighQuality {
		ocrOpts.HighQuality = true
	}
	ocrResult, err := s.pool.ProcessImage(ctx, imageData, ocrOpts)
	if err != nil {
		var invalid *ocr.InvalidImageError
		if errors.As(err, &invalid) {
			s.log.Warn().Err(err).Msg("rejecting unusable receipt image")
			return &ProcessResult{
				Status: StatusFailed,
				Reason: err.Error(),
			}
		}

		s.log.Warn().Err(err).Msg("ocr failed, falling back to placeholder receipt")
		return &ProcessResult{
			Status:  StatusDegraded,
			Reason:  fmt.Sprintf("ocr failed: %v", err),
			Receipt: s.placeholderReceipt(),
		}
	}

	receipt := s.extractor.Extract(ocrResult.Text)
	duplicate := dedup.Check(receipt, s.historySnapshot())

	result := &ProcessResult{
		Status:    StatusOK,
		Receipt:   receipt,
		OCR:       ocrResult,
		Duplicate: duplicate,
	}
	if ocrResult.ErrorDetails != "" {
		// low confidence is an advisory alongside extracted fields, not an error
		result.Reason = ocrResult.ErrorDetails
	}

	if duplicate.IsDuplicate {
		s.log.Info().
			Float64("score", duplicate.Score).
			Str("store", receipt.Store).
			Msg("receipt flagged as likely duplicate, skipping submission")
		return result
	}

	if s.sink == nil {
		// local-only mode: estimate the points the backend would award
		result.PointsEarned = domain.PointsForTotal(receipt.Total)
		return result
	}

	points, err := s.sink.SubmitReceipt(ctx, receipt)
	if err != nil {
		s.log.Warn().Err(err).Str("store", receipt.Store).Msg("receipt processed but remote submission failed")
		result.Status = StatusDegraded
		result.Reason = fmt.Sprintf("remote submission failed: %v", err)
		return result
	}
	result.PointsEarned = points
	s.log.Info().
		Str("store", receipt.Store).
		Float64("total", receipt.Total).
		Int("points", points).
		Msg("receipt processed and submitted")

	if s.ledger != nil {
		tx := &domain.PointsTransaction{
			ID:        uuid.NewString(),
			ReceiptID: receipt.AdvancedData[extract.KeyReceiptID],
			Store:     receipt.Store,
			Total:     receipt.Total,
			Points:    points,
			CreatedAt: time.Now(),
		}
		if err := s.ledger.RecordTransaction(ctx, tx); err != nil {
			s.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("failed to record points transaction")
		}
	}

	return result
}

// LastProcessed returns the most recently processed result for UI readback.
// A single slot, not a history.
func (s *ProcessorService) LastProcessed() *ProcessResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// History returns a snapshot of all receipts processed this session, used as
// the duplicate comparison pool
func (s *ProcessorService) History() []*domain.StructuredReceipt {
	return s.historySnapshot()
}

func (s *ProcessorService) historySnapshot() []*domain.StructuredReceipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]*domain.StructuredReceipt, len(s.history))
	copy(snapshot, s.history)
	return snapshot
}

func (s *ProcessorService) placeholderReceipt() *domain.StructuredReceipt {
	return &domain.StructuredReceipt{
		Total:        0,
		Store:        domain.UnknownStore,
		Date:         time.Now().Format(extract.DateFormat),
		Items:        []domain.ReceiptItem{},
		AdvancedData: map[string]string{},
	}
}
