package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// Client is the HTTP implementation of Bridge.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a bridge client. timeout bounds every Submit call
// end to end; the execution layer is slow by nature and a hung order must not
// stall the signal cycle.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Submit places an order with the execution layer and waits for the fill
// acknowledgement.
func (c *Client) Submit(ctx context.Context, order Order) (Fill, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.doRequest(ctx, http.MethodPost, "/orders", order)
	if err != nil {
		return Fill{}, fmt.Errorf("bridge: submit order %s: %w", order.TradeID, err)
	}

	var fill Fill
	if err := json.Unmarshal(body, &fill); err != nil {
		return Fill{}, fmt.Errorf("bridge: decode fill: %w", err)
	}
	return fill, nil
}

// Settlements returns market resolutions the execution layer has observed
// since the last poll.
func (c *Client) Settlements(ctx context.Context) ([]Settlement, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/settlements", nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: poll settlements: %w", err)
	}

	var resp struct {
		Settlements []Settlement `json:"settlements"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("bridge: decode settlements: %w", err)
	}
	return resp.Settlements, nil
}

// doRequest builds, sends, and reads an HTTP request against the bridge API.
// Deadline expiry maps to domain.ErrExecutionTimeout, any non-2xx response to
// domain.ErrExecutionFailed.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, domain.ErrExecutionTimeout
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExecutionFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrExecutionFailed, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

var _ Bridge = (*Client)(nil)
