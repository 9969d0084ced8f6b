package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// BarkChannel pushes alerts to a Bark server (iOS push gateway). PushURL
// is the full device endpoint, e.g. https://api.day.app/<device_key>.
type BarkChannel struct {
	PushURL string
	Client  *http.Client
}

func (c *BarkChannel) Kind() string { return "bark" }

func (c *BarkChannel) Send(ctx context.Context, msg Message) error {
	payload := map[string]string{
		"title": msg.Reason,
		"body":  fmt.Sprintf("%s\n%s", msg.Title, msg.Price),
		"url":   msg.Link,
		"group": msg.Keyword,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bark: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PushURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bark: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("bark: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bark: unexpected status %d", resp.StatusCode)
	}
	return nil
}
