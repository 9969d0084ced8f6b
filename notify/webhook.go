package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WebhookChannel posts the raw message as JSON to a caller-supplied
// endpoint, for integrations none of the built-in channels cover.
type WebhookChannel struct {
	URL    string
	Client *http.Client
}

func (c *WebhookChannel) Kind() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, msg Message) error {
	payload := map[string]string{
		"title":   msg.Title,
		"price":   msg.Price,
		"link":    msg.Link,
		"reason":  msg.Reason,
		"keyword": msg.Keyword,
		"image":   msg.Image,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
