package ocr

import "context"

// Recognition parameter defaults. The whitelist keeps the engine on the
// character set that actually appears on printed receipts, and single-block
// segmentation matches the one-column layout of register tape.
const (
	ReceiptWhitelist   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789.,$/-:#%& "
	PageSegSingleBlock = "single_block"

	// DPI and minimum line size used for the high quality path
	HighQualityDPI         = 300
	HighQualityMinLineSize = 3
)

// EngineParams configures an engine instance for one recognition pass
type EngineParams struct {
	Whitelist   string
	PageSegMode string
	DPI         int // 0 means engine default
	MinLineSize int // 0 means engine default
}

// RecognitionOutput is the raw engine result before quality tagging
type RecognitionOutput struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0-100
}

// Engine is the external recognition capability the pool manages. Instances
// are expensive to create and not safe for concurrent use; the pool
// guarantees each instance runs at most one task at a time.
type Engine interface {
	// Configure applies recognition parameters for the next pass
	Configure(params EngineParams) error

	// Recognize runs OCR on a data-URI image payload. Implementations must
	// honor context cancellation so timed-out tasks release their instance.
	Recognize(ctx context.Context, imageData string) (*RecognitionOutput, error)

	// Close releases the instance's resources
	Close() error
}

// EngineFactory creates a ready-to-use engine instance
type EngineFactory func(ctx context.Context) (Engine, error)
