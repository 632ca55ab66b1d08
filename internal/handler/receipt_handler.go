package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/imageutil"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/model"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/ocr"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/service"
	"github.com/ridwanfathin/receipt-rewards-engine/internal/store"
)

// ReceiptProcessor runs a receipt image through the processing pipeline
type ReceiptProcessor interface {
	ProcessReceipt(ctx context.Context, imageData string, opts service.ScanOptions) *service.ProcessResult
	LastProcessed() *service.ProcessResult
}

// OfflineQueue is the durable capture store behind the capture endpoints
type OfflineQueue interface {
	SaveReceipt(ctx context.Context, imageData []byte, metadata domain.CaptureMetadata) (*domain.OfflineReceiptRecord, error)
	GetPendingReceipts(ctx context.Context) ([]store.PendingReceipt, error)
	RemoveReceipt(ctx context.Context, id string) error
	SavePreference(ctx context.Context, key string, value interface{}) error
	GetPreference(ctx context.Context, key string, out interface{}) (bool, error)
}

// SyncTrigger drains the offline queue on demand
type SyncTrigger interface {
	SyncNow(ctx context.Context) error
}

// ConnectivityReporter receives connectivity transitions from clients
type ConnectivityReporter interface {
	Report(online bool)
}

// EngineStats exposes OCR pool counters
type EngineStats interface {
	Stats() ocr.Stats
}

// ReceiptHandler handles HTTP requests for receipt-related operations
type ReceiptHandler struct {
	processor    ReceiptProcessor
	queue        OfflineQueue
	sync         SyncTrigger
	connectivity ConnectivityReporter
	engines      EngineStats
	resize       *imageutil.ResizeConfig
	log          zerolog.Logger
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(processor ReceiptProcessor, queue OfflineQueue, sync SyncTrigger, connectivity ConnectivityReporter, engines EngineStats, log zerolog.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		processor:    processor,
		queue:        queue,
		sync:         sync,
		connectivity: connectivity,
		engines:      engines,
		resize:       imageutil.DefaultResizeConfig(),
		log:          log,
	}
}

// ScanReceipt handles the POST /receipts/scan endpoint
// @Summary Scan a receipt image
// @Description Upload a receipt image, run OCR and extraction, and earn points
// @Tags receipts
// @Accept multipart/form-data
// @Produce json
// @Param receiptImage formData file true "Receipt image file"
// @Param enableOCR query bool false "Run OCR (default true)"
// @Param highQuality query bool false "Keep full image resolution and raise recognition parameters (default false)"
// @Success 200 {object} model.ProcessResultResponse "Processing result"
// @Failure 400 {object} model.ErrorResponse "Bad request"
// @Failure 422 {object} model.ErrorResponse "Unusable image"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /v1/receipts/scan [post]
func (h *ReceiptHandler) ScanReceipt(c *gin.Context) {
	enableOCR, err := getQueryBool(c, "enableOCR", true)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	highQuality, err := getQueryBool(c, "highQuality", false)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	imageData, err := h.readImageDataURI(c, highQuality)
	if err != nil {
		respondBadRequest(c, err.Error(), newErrorDetail("receiptImage", "Receipt image is required"))
		return
	}

	result := h.processor.ProcessReceipt(c.Request.Context(), imageData, service.ScanOptions{
		EnableOCR:   enableOCR,
		HighQuality: highQuality,
	})
	if result.Status == service.StatusFailed {
		respondUnprocessableEntity(c, result.Reason)
		return
	}

	respondOK(c, model.FromProcessResult(result))
}

// CaptureReceipt handles the POST /receipts/capture endpoint
// @Summary Capture a receipt for later processing
// @Description Encrypt and queue a receipt image locally, to be synced when online
// @Tags receipts
// @Accept multipart/form-data
// @Produce json
// @Param receiptImage formData file true "Receipt image file"
// @Param method formData string false "Capture method (camera, upload)"
// @Success 201 {object} model.PendingReceiptResponse "Receipt queued"
// @Failure 400 {object} model.ErrorResponse "Bad request"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /v1/receipts/capture [post]
func (h *ReceiptHandler) CaptureReceipt(c *gin.Context) {
	imageData, err := h.readImageDataURI(c, false)
	if err != nil {
		respondBadRequest(c, err.Error(), newErrorDetail("receiptImage", "Receipt image is required"))
		return
	}

	metadata := domain.CaptureMetadata{
		Method:     c.PostForm("method"),
		DeviceInfo: c.Request.UserAgent(),
	}

	record, err := h.queue.SaveReceipt(c.Request.Context(), []byte(imageData), metadata)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to queue captured receipt")
		respondInternalServerError(c, "Failed to store receipt")
		return
	}

	respondCreated(c, model.PendingReceiptResponse{
		ID:        record.ID,
		Timestamp: record.Timestamp,
		Encrypted: record.Encrypted(),
		Decrypted: true,
		Method:    record.Metadata.Method,
	})
}

// GetPendingReceipts handles the GET /receipts/pending endpoint
// @Summary List queued offline receipts
// @Tags receipts
// @Produce json
// @Success 200 {array} model.PendingReceiptResponse "Queued receipts"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /v1/receipts/pending [get]
func (h *ReceiptHandler) GetPendingReceipts(c *gin.Context) {
	pending, err := h.queue.GetPendingReceipts(c.Request.Context())
	if err != nil {
		respondInternalServerError(c, fmt.Sprintf("Failed to list pending receipts: %v", err))
		return
	}
	respondOK(c, model.FromPendingReceipts(pending))
}

// RemovePendingReceipt handles the DELETE /receipts/pending/{receiptId} endpoint
// @Summary Remove a queued receipt
// @Tags receipts
// @Param receiptId path string true "Receipt ID"
// @Success 204 "Receipt removed"
// @Failure 400 {object} model.ErrorResponse "Invalid receipt ID"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /v1/receipts/pending/{receiptId} [delete]
func (h *ReceiptHandler) RemovePendingReceipt(c *gin.Context) {
	receiptID, err := getPathParam(c, "receiptId")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if err := h.queue.RemoveReceipt(c.Request.Context(), receiptID); err != nil {
		respondInternalServerError(c, fmt.Sprintf("Failed to remove receipt: %v", err))
		return
	}
	respondNoContent(c)
}

// GetLastProcessed handles the GET /receipts/last endpoint
// @Summary Get the most recently processed result
// @Tags receipts
// @Produce json
// @Success 200 {object} model.ProcessResultResponse "Most recent result"
// @Failure 404 {object} model.ErrorResponse "Nothing processed yet"
// @Router /v1/receipts/last [get]
func (h *ReceiptHandler) GetLastProcessed(c *gin.Context) {
	last := h.processor.LastProcessed()
	if last == nil {
		respondNotFound(c, "No receipt processed yet")
		return
	}
	respondOK(c, model.FromProcessResult(last))
}

// TriggerSync handles the POST /sync endpoint
// @Summary Drain the offline queue now
// @Tags sync
// @Produce json
// @Success 200 {object} map[string]string "Sync completed"
// @Failure 500 {object} model.ErrorResponse "Sync failed"
// @Router /v1/sync [post]
func (h *ReceiptHandler) TriggerSync(c *gin.Context) {
	if err := h.sync.SyncNow(c.Request.Context()); err != nil {
		respondInternalServerError(c, fmt.Sprintf("Sync failed: %v", err))
		return
	}
	respondOK(c, gin.H{"status": "completed"})
}

type connectivityInput struct {
	Online *bool `json:"online"`
}

// ReportConnectivity handles the POST /connectivity endpoint
// @Summary Report a connectivity change
// @Description An offline-to-online transition triggers a background sync
// @Tags sync
// @Accept json
// @Produce json
// @Param state body connectivityInput true "Connectivity state"
// @Success 202 {object} map[string]bool "State accepted"
// @Failure 400 {object} model.ErrorResponse "Invalid input"
// @Router /v1/connectivity [post]
func (h *ReceiptHandler) ReportConnectivity(c *gin.Context) {
	var input connectivityInput
	if err := bindJSON(c, &input); err != nil {
		respondBadRequest(c, ErrInvalidInput)
		return
	}
	if input.Online == nil {
		respondBadRequest(c, ErrInvalidInput, newErrorDetail("online", "online is required"))
		return
	}

	h.connectivity.Report(*input.Online)
	c.JSON(202, gin.H{"online": *input.Online})
}

// GetOCRStats handles the GET /ocr/stats endpoint
// @Summary Get OCR pool diagnostics
// @Tags ocr
// @Produce json
// @Success 200 {object} ocr.Stats "Pool counters"
// @Router /v1/ocr/stats [get]
func (h *ReceiptHandler) GetOCRStats(c *gin.Context) {
	respondOK(c, h.engines.Stats())
}

// GetPreference handles the GET /preferences/{key} endpoint
func (h *ReceiptHandler) GetPreference(c *gin.Context) {
	key, err := getPathParam(c, "key")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var value json.RawMessage
	found, err := h.queue.GetPreference(c.Request.Context(), key, &value)
	if err != nil {
		respondInternalServerError(c, fmt.Sprintf("Failed to read preference: %v", err))
		return
	}
	if !found {
		respondNotFound(c, fmt.Sprintf("Preference not found: %s", key))
		return
	}
	respondOK(c, gin.H{"key": key, "value": value})
}

// PutPreference handles the PUT /preferences/{key} endpoint
func (h *ReceiptHandler) PutPreference(c *gin.Context) {
	key, err := getPathParam(c, "key")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var value json.RawMessage
	if err := bindJSON(c, &value); err != nil {
		respondBadRequest(c, ErrInvalidInput)
		return
	}

	if err := h.queue.SavePreference(c.Request.Context(), key, value); err != nil {
		respondInternalServerError(c, fmt.Sprintf("Failed to save preference: %v", err))
		return
	}
	respondOK(c, gin.H{"key": key, "value": value})
}

// readImageDataURI pulls the uploaded image out of the multipart form,
// downscales oversized captures and returns it as a data: URI, the format the
// OCR pipeline and the offline store both consume. High-quality requests keep
// the full resolution for the engine.
func (h *ReceiptHandler) readImageDataURI(c *gin.Context, highQuality bool) (string, error) {
	file, _, err := getFormFile(c, "receiptImage")
	if err != nil {
		return "", err
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read receiptImage: %v", err)
	}
	if len(fileBytes) == 0 {
		return "", fmt.Errorf("receiptImage is empty")
	}

	if !highQuality {
		fileBytes = imageutil.Downscale(fileBytes, h.resize)
	}
	mime := imageutil.DetectImageMime(fileBytes)
	return imageutil.BuildDataURI(mime, fileBytes), nil
}

// RegisterRoutes registers the API routes for the receipt handler
func (h *ReceiptHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/v1")

	receipts := api.Group("/receipts")
	{
		receipts.POST("/scan", h.ScanReceipt)
		receipts.POST("/capture", h.CaptureReceipt)
		receipts.GET("/pending", h.GetPendingReceipts)
		receipts.DELETE("/pending/:receiptId", h.RemovePendingReceipt)
		receipts.GET("/last", h.GetLastProcessed)
	}

	api.POST("/sync", h.TriggerSync)
	api.POST("/connectivity", h.ReportConnectivity)
	api.GET("/ocr/stats", h.GetOCRStats)

	preferences := api.Group("/preferences")
	{
		preferences.GET("/:key", h.GetPreference)
		preferences.PUT("/:key", h.PutPreference)
	}
}
