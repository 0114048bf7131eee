// Package explorer submits completed measurements to the explorer collector.
package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gt-tallinn/node-client/domain"
	"github.com/gt-tallinn/node-client/domain/measurement"
)

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 512

var _ domain.Sender = (*Client)(nil)

// StatusError is returned when the explorer answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("explorer responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("explorer responded with status %d: %s", e.StatusCode, e.Body)
}

// Client posts measurement payloads to <explorerUri>/add.
type Client struct {
	addURL string
	client *http.Client
}

// NewClient returns a Client posting to addURL. The given http.Client's
// transport is wrapped with OpenTelemetry instrumentation; base is not modified.
func NewClient(addURL string, base *http.Client) *Client {
	client := &http.Client{}
	if base != nil {
		*client = *base
	}
	client.Transport = otelhttp.NewTransport(client.Transport)

	return &Client{
		addURL: addURL,
		client: client,
	}
}

// Add submits one payload. Any 2xx response is success.
func (c *Client) Add(ctx context.Context, payload measurement.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", c.addURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(excerpt))}
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
