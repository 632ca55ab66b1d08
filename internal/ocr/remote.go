package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteEngine talks to a tesseract-server style recognizer over HTTP. The
// pool treats it like any other engine instance; one RemoteEngine carries the
// parameter set of the task it is currently assigned to.
type RemoteEngine struct {
	baseURL    string
	httpClient *http.Client
	params     EngineParams
}

// RemoteEngineConfig holds configuration for the remote recognizer
type RemoteEngineConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewRemoteEngine creates a new remote recognizer client
func NewRemoteEngine(config *RemoteEngineConfig) *RemoteEngine {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &RemoteEngine{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RemoteEngineFactory returns an EngineFactory that creates remote engine
// instances, verifying the recognizer is reachable before handing one out
func RemoteEngineFactory(config *RemoteEngineConfig) EngineFactory {
	return func(ctx context.Context) (Engine, error) {
		engine := NewRemoteEngine(config)
		if err := engine.healthCheck(ctx); err != nil {
			return nil, err
		}
		return engine, nil
	}
}

// Configure stores the recognition parameters for the next pass
func (e *RemoteEngine) Configure(params EngineParams) error {
	e.params = params
	return nil
}

// Recognize sends the image to the recognizer and returns text plus confidence
func (e *RemoteEngine) Recognize(ctx context.Context, imageData string) (*RecognitionOutput, error) {
	payload := map[string]interface{}{
		"image":         imageData,
		"whitelist":     e.params.Whitelist,
		"page_seg_mode": e.params.PageSegMode,
	}
	if e.params.DPI > 0 {
		payload["dpi"] = e.params.DPI
	}
	if e.params.MinLineSize > 0 {
		payload["min_line_size"] = e.params.MinLineSize
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recognition payload: %w", err)
	}

	url := fmt.Sprintf("%s/recognize", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send recognition request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read recognition response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recognizer error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var output RecognitionOutput
	if err := json.Unmarshal(respBody, &output); err != nil {
		return nil, fmt.Errorf("failed to parse recognition response: %w", err)
	}

	return &output, nil
}

// Close releases the instance. The remote engine holds no local resources.
func (e *RemoteEngine) Close() error {
	return nil
}

// healthCheck verifies the recognizer endpoint is reachable
func (e *RemoteEngine) healthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", e.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}
