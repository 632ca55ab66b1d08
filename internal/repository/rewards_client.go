package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ridwanfathin/receipt-rewards-engine/internal/domain"
)

// RewardsClientError represents an error from the rewards backend
type RewardsClientError struct {
	Op  string // Operation that caused the error
	Err error  // Original error
}

// Error implements the error interface
func (e *RewardsClientError) Error() string {
	if e.Err == nil {
		return "rewards client error: " + e.Op
	}
	return "rewards client error: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *RewardsClientError) Unwrap() error {
	return e.Err
}

// RewardsClient submits processed receipts and point transactions to the
// rewards backend over HTTP. It implements ReceiptSink and PointsLedger.
type RewardsClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// RewardsConfig holds configuration for the rewards client
type RewardsConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewRewardsClient creates a new rewards backend client
func NewRewardsClient(config *RewardsConfig) *RewardsClient {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RewardsClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type submitResponse struct {
	PointsEarned int `json:"points_earned"`
}

// SubmitReceipt sends a structured receipt to the backend and returns the
// points earned
func (c *RewardsClient) SubmitReceipt(ctx context.Context, receipt *domain.StructuredReceipt) (int, error) {
	var result submitResponse
	if err := c.post(ctx, "/v1/receipts", receipt, &result); err != nil {
		return 0, &RewardsClientError{Op: "submit_receipt", Err: err}
	}
	return result.PointsEarned, nil
}

// RecordTransaction records a points transaction with the backend
func (c *RewardsClient) RecordTransaction(ctx context.Context, tx *domain.PointsTransaction) error {
	if err := c.post(ctx, "/v1/points/transactions", tx, nil); err != nil {
		return &RewardsClientError{Op: "record_transaction", Err: err}
	}
	return nil
}

// HealthCheck checks if the rewards backend is reachable
func (c *RewardsClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
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

func (c *RewardsClient) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("backend error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
