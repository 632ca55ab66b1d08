package syncer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/service"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/store"
)

// Notifier reports connectivity state changes. True means online.
type Notifier interface {
	Online() <-chan bool
}

// OfflineQueue is the durable queue the coordinator drains
type OfflineQueue interface {
	GetPendingReceipts(ctx context.Context) ([]store.PendingReceipt, error)
	RemoveReceipt(ctx context.Context, id string) error
}

// Processor runs a queued image through the receipt pipeline
type Processor interface {
	ProcessReceipt(ctx context.Context, imageData string, opts service.ScanOptions) *service.ProcessResult
}

// Coordinator drains the offline queue through the orchestrator whenever
// connectivity comes back. Records are processed sequentially, in arrival
// order, to bound pressure on the OCR pool; a failed record stays queued for
// the next sync and never aborts the rest of the batch.
type Coordinator struct {
	queue     OfflineQueue
	processor Processor
	notifier  Notifier
	log       zerolog.Logger
}

// New creates a sync coordinator
func New(queue OfflineQueue, processor Processor, notifier Notifier, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		queue:     queue,
		processor: processor,
		notifier:  notifier,
		log:       log,
	}
}

// Run watches the connectivity signal and triggers a drain on every
// offline-to-online transition. It blocks until the context is cancelled or
// the notifier channel closes.
func (c *Coordinator) Run(ctx context.Context) {
	online := false
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-c.notifier.Online():
			if !ok {
				return
			}
			wasOffline := !online
			online = state
			if state && wasOffline {
				c.log.Info().Msg("connectivity restored, draining offline queue")
				if err := c.SyncNow(ctx); err != nil {
					c.log.Error().Err(err).Msg("offline queue drain failed")
				}
			}
		}
	}
}

// SyncNow drains the offline queue once. It returns an error only when the
// queue itself cannot be listed; per-record failures are logged and the
// records left queued.
func (c *Coordinator) SyncNow(ctx context.Context) error {
	pending, err := c.queue.GetPendingReceipts(ctx)
	if err != nil {
		return fmt.Errorf("syncer: listing pending receipts: %w", err)
	}

	synced, skipped := 0, 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !p.Decrypted {
			// undecryptable records stay queued; see the session key notes in
			// the store package
			c.log.Warn().Str("record_id", p.Record.ID).Msg("skipping undecryptable offline record")
			skipped++
			continue
		}

		result := c.processor.ProcessReceipt(ctx, string(p.Image), service.ScanOptions{EnableOCR: true})
		if result.Status != service.StatusOK {
			c.log.Warn().
				Str("record_id", p.Record.ID).
				Str("status", string(result.Status)).
				Str("reason", result.Reason).
				Msg("queued receipt did not process cleanly, leaving it queued")
			skipped++
			continue
		}

		if err := c.queue.RemoveReceipt(ctx, p.Record.ID); err != nil {
			c.log.Warn().Err(err).Str("record_id", p.Record.ID).Msg("failed to remove synced record")
			skipped++
			continue
		}
		synced++
	}

	c.log.Info().
		Int("pending", len(pending)).
		Int("synced", synced).
		Int("skipped", skipped).
		Msg("offline queue drain complete")
	return nil
}
