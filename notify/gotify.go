package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// GotifyChannel pushes alerts to a Gotify server. PushURL is the full
// message endpoint including the app token, e.g.
// https://gotify.example.com/message?token=<app_token>.
type GotifyChannel struct {
	PushURL string
	Client  *http.Client
}

func (c *GotifyChannel) Kind() string { return "gotify" }

func (c *GotifyChannel) Send(ctx context.Context, msg Message) error {
	payload := map[string]any{
		"title":    msg.Reason,
		"message":  fmt.Sprintf("%s\n价格: %s\n关键词: %s\n%s", msg.Title, msg.Price, msg.Keyword, msg.Link),
		"priority": 5,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gotify: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PushURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gotify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("gotify: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gotify: unexpected status %d", resp.StatusCode)
	}
	return nil
}
