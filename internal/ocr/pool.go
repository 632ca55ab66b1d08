package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
)

// Pool defaults
const (
	DefaultMaxEngines    = 2
	DefaultTimeout       = 30 * time.Second
	DefaultMinConfidence = 30.0

	defaultMediumQualityThreshold = 60.0
	defaultHighQualityThreshold   = 85.0
)

// PoolConfig holds configuration for the OCR worker pool
type PoolConfig struct {
	MaxEngines             int
	MediumQualityThreshold float64
	HighQualityThreshold   float64
}

// ProcessOptions control a single recognition task
type ProcessOptions struct {
	Timeout       time.Duration // default 30s
	MinConfidence float64       // 0-100, default 30
	HighQuality   bool
}

// Stats exposes pool counters for diagnostics and tests. It is observational
// only and must not be used for control flow.
type Stats struct {
	TotalEngines     int  `json:"total_engines"`
	AvailableWorkers int  `json:"available_workers"`
	QueuedTasks      int  `json:"queued_tasks"`
	Initialized      bool `json:"initialized"`
}

// Pool bounds the number of concurrent OCR engine instances and queues excess
// tasks in FIFO order. Every submitted task eventually runs on exactly one
// instance or fails explicitly; instances are always returned to the idle set,
// including on recognition failure and timeout.
type Pool struct {
	factory EngineFactory
	cfg     PoolConfig
	log     zerolog.Logger

	mu          sync.Mutex
	initialized bool
	terminated  bool
	total       int
	idle        []Engine
	waiters     []chan Engine
}

// NewPool creates an OCR worker pool. The pool is constructed explicitly and
// passed to its callers; there is no package-level instance.
func NewPool(factory EngineFactory, cfg PoolConfig, log zerolog.Logger) *Pool {
	if cfg.MaxEngines <= 0 {
		cfg.MaxEngines = DefaultMaxEngines
	}
	if cfg.MediumQualityThreshold <= 0 {
		cfg.MediumQualityThreshold = defaultMediumQualityThreshold
	}
	if cfg.HighQualityThreshold <= 0 {
		cfg.HighQualityThreshold = defaultHighQualityThreshold
	}
	return &Pool{
		factory: factory,
		cfg:     cfg,
		log:     log,
	}
}

// Initialize lazily creates up to MaxEngines engine instances. It is
// idempotent. Individual engine failures are logged and tolerated; the pool
// fails only when no engine at all could be created.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated {
		return ErrPoolTerminated
	}
	if p.initialized {
		return nil
	}

	created := 0
	var lastErr error
	for i := 0; i < p.cfg.MaxEngines; i++ {
		engine, err := p.factory(ctx)
		if err != nil {
			lastErr = err
			p.log.Warn().Err(err).Int("engine_index", i).Msg("ocr engine failed to initialize, continuing with fewer instances")
			continue
		}
		p.idle = append(p.idle, engine)
		created++
	}

	if created == 0 {
		return &PoolInitializationError{Attempted: p.cfg.MaxEngines, Err: lastErr}
	}

	p.total = created
	p.initialized = true
	p.log.Info().Int("engines", created).Int("requested", p.cfg.MaxEngines).Msg("ocr pool initialized")
	return nil
}

// ProcessImage runs OCR on a data-URI image payload. Invalid input fails
// immediately without consuming an engine instance. Low confidence does not
// fail the task: the result comes back tagged with a quality tier and a
// non-fatal ErrorDetails string for downstream callers to act on.
func (p *Pool) ProcessImage(ctx context.Context, imageData string, opts ProcessOptions) (*domain.OCRResult, error) {
	if !strings.HasPrefix(imageData, "data:image") {
		return nil, &InvalidImageError{Reason: "expected a data:image base64 URI"}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}

	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}

	engine, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}

	params := EngineParams{
		Whitelist:   ReceiptWhitelist,
		PageSegMode: PageSegSingleBlock,
	}
	if opts.HighQuality {
		params.DPI = HighQualityDPI
		params.MinLineSize = HighQualityMinLineSize
	}

	recCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type recognition struct {
		out *RecognitionOutput
		err error
	}
	done := make(chan recognition, 1)
	start := time.Now()

	go func() {
		// The instance goes back to the pool whenever recognition returns,
		// regardless of how the submitting task ended.
		defer p.release(engine)

		if err := engine.Configure(params); err != nil {
			done <- recognition{err: err}
			return
		}
		out, err := engine.Recognize(recCtx, imageData)
		done <- recognition{out: out, err: err}
	}()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	select {
	case rec := <-done:
		if rec.err != nil {
			return nil, fmt.Errorf("ocr: recognition failed: %w", rec.err)
		}
		return p.buildResult(rec.out, opts, time.Since(start)), nil
	case <-timer.C:
		cancel() // engine notices and the goroutine releases the instance
		return nil, &TimeoutError{Timeout: opts.Timeout}
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

func (p *Pool) buildResult(out *RecognitionOutput, opts ProcessOptions, elapsed time.Duration) *domain.OCRResult {
	result := &domain.OCRResult{
		Text:             out.Text,
		Confidence:       out.Confidence,
		ImageQuality:     domain.QualityForConfidence(out.Confidence, p.cfg.MediumQualityThreshold, p.cfg.HighQualityThreshold),
		ProcessingTimeMS: elapsed.Milliseconds(),
	}
	if out.Confidence < opts.MinConfidence {
		result.ErrorDetails = fmt.Sprintf("confidence %.1f below requested minimum %.1f", out.Confidence, opts.MinConfidence)
	}
	return result
}

// acquire hands out an idle engine or joins the FIFO waiter queue
func (p *Pool) acquire(ctx context.Context) (Engine, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		engine := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return engine, nil
	}

	waiter := make(chan Engine, 1)
	p.waiters = append(p.waiters, waiter)
	p.mu.Unlock()

	select {
	case engine, ok := <-waiter:
		if !ok {
			return nil, ErrPoolTerminated
		}
		return engine, nil
	case <-ctx.Done():
		if !p.removeWaiter(waiter) {
			// the waiter was already popped: either release committed an
			// engine handoff or Terminate closed the channel. The send goes
			// into the buffer, so receiving here cannot block.
			if engine, ok := <-waiter; ok {
				p.release(engine)
			}
		}
		return nil, ctx.Err()
	}
}

// release returns an instance to the pool, handing it straight to the oldest
// waiter when one is queued
func (p *Pool) release(engine Engine) {
	p.mu.Lock()
	if !p.initialized {
		// terminated while the task was in flight
		p.mu.Unlock()
		if err := engine.Close(); err != nil {
			p.log.Warn().Err(err).Msg("failed to close ocr engine after terminate")
		}
		return
	}
	if len(p.waiters) > 0 {
		waiter := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		waiter <- engine
		return
	}
	p.idle = append(p.idle, engine)
	p.mu.Unlock()
}

// removeWaiter reports whether the waiter was still queued. A false return
// means someone else already popped it and owns a pending send or close.
func (p *Pool) removeWaiter(waiter chan Engine) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == waiter {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Terminate rejects all queued tasks, releases every engine instance and
// permanently shuts down the pool. Safe to call multiple times; tasks
// submitted afterwards fail with ErrPoolTerminated.
func (p *Pool) Terminate() {
	p.mu.Lock()
	waiters := p.waiters
	idle := p.idle
	p.waiters = nil
	p.idle = nil
	p.total = 0
	wasInitialized := p.initialized
	p.initialized = false
	p.terminated = true
	p.mu.Unlock()

	for _, waiter := range waiters {
		close(waiter)
	}
	for _, engine := range idle {
		if err := engine.Close(); err != nil {
			p.log.Warn().Err(err).Msg("failed to close ocr engine")
		}
	}
	if wasInitialized {
		p.log.Info().Int("rejected_tasks", len(waiters)).Msg("ocr pool terminated")
	}
}

// Stats returns a snapshot of the pool counters
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		TotalEngines:     p.total,
		AvailableWorkers: len(p.idle),
		QueuedTasks:      len(p.waiters),
		Initialized:      p.initialized,
	}
}
