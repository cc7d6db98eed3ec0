package lab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clinicops/receivables/internal/core/domain"
	"github.com/clinicops/receivables/internal/retry"
)

// Client sends lab orders to a third-party lab.
type Client interface {
	Send(ctx context.Context, order *domain.LabOrder) error
}

// Config holds lab endpoint configuration.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// HTTPClient implements Client over a JSON HTTP endpoint.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP-based lab client.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type orderRequest struct {
	OrderID     string `json:"order_id"`
	PatientID   string `json:"patient_id"`
	LabName     string `json:"lab_name"`
	Description string `json:"description"`
}

// Send posts the order to the lab endpoint. Connectivity and 5xx
// failures are marked transient so the caller's retry wrapper picks
// them up; 4xx responses are logic errors and must not be retried.
func (c *HTTPClient) Send(ctx context.Context, order *domain.LabOrder) error {
	body, err := json.Marshal(orderRequest{
		OrderID:     order.ID,
		PatientID:   order.PatientID,
		LabName:     order.LabName,
		Description: order.Description,
	})
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.NewNetworkError(fmt.Errorf("send order: %w", err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return retry.NewNetworkError(fmt.Errorf("lab endpoint returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusRequestTimeout:
		return retry.NewTimeoutError(fmt.Errorf("lab endpoint returned %d", resp.StatusCode))
	default:
		return retry.NewLogicError(fmt.Errorf("lab endpoint rejected order: %d", resp.StatusCode))
	}
}
