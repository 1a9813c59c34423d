package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a running bridge.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for baseURL with a short default timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// SetPhase posts a phase name to /phase.
func (c *Client) SetPhase(ctx context.Context, phase string) error {
	return c.post(ctx, "/phase", PhaseRequest{Phase: phase})
}

// Emit posts a named signal to /signals.
func (c *Client) Emit(ctx context.Context, name string) error {
	return c.post(ctx, "/signals", SignalRequest{Name: name})
}

// Scene fetches the current scene summary.
func (c *Client) Scene(ctx context.Context) (SceneSummary, error) {
	var summary SceneSummary
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/scene", nil)
	if err != nil {
		return summary, fmt.Errorf("bridge: build request: %w", err)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return summary, fmt.Errorf("bridge: get /scene: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return summary, err
	}
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return summary, fmt.Errorf("bridge: decode scene: %w", err)
	}
	return summary, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bridge: encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("bridge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("bridge: post %s: %w", path, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusAccepted)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	var body errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return fmt.Errorf("bridge: %s: %s", resp.Status, body.Error)
	}
	return fmt.Errorf("bridge: unexpected status %s", resp.Status)
}
