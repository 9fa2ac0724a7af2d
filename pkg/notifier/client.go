package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/httpclient"
)

// Message is one notification addressed to a single recipient
type Message struct {
	RecipientID string         `json:"recipientId"`
	Channel     string         `json:"channel"`
	TemplateID  string         `json:"templateId"`
	Payload     map[string]any `json:"payload"`
}

// Sender delivers notifications
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client posts messages to the notification service
type Client struct {
	baseURL    string
	httpClient httpclient.Client
}

// NewClient creates a new notification client
func NewClient(baseURL string, httpClient httpclient.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Send delivers msg. Any non-2xx answer is a failure.
func (c *Client) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.UpstreamError("notifications", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // best effort for logging
		return apperrors.UpstreamError("notifications",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	return nil
}

// LogSender drops messages after logging them; used when no notification service is configured
type LogSender struct {
	Log func(msg Message)
}

// Send implements Sender
func (s LogSender) Send(_ context.Context, msg Message) error {
	if s.Log != nil {
		s.Log(msg)
	}
	return nil
}
