// Package upload sends sleep datasets to a SleepBuddy server.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/sleepbuddy/internal/models"
)

// IngestResult is the server's answer to an ingest request.
type IngestResult struct {
	RecordsReceived int64 `json:"records_received"`
	RecordsInserted int64 `json:"records_inserted"`
}

// Client sends data to the SleepBuddy server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	baseDelay  time.Duration
}

// NewClient creates a new HTTP client for the SleepBuddy server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseDelay: time.Second,
	}
}

// SendDataset POSTs a dataset to the server's ingest endpoint.
// Retries up to 3 times with exponential backoff on network errors and 5xx
// responses. Client errors are returned immediately.
func (c *Client) SendDataset(ctx context.Context, ds models.FitDataset) (*IngestResult, error) {
	data, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("marshaling dataset: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.baseDelay << uint(attempt-1)):
			}
		}

		result, retry, err := c.post(ctx, data)
		if err == nil {
			return result, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func (c *Client) post(ctx context.Context, data []byte) (*IngestResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/ingest/", bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ingest failed (status %d): %s", resp.StatusCode, body)
		return nil, resp.StatusCode >= 500, err
	}

	var result IngestResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, false, fmt.Errorf("decoding ingest response: %w", err)
	}
	return &result, false, nil
}
