package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// NtfyChannel publishes alerts to an ntfy topic. TopicURL is the full
// topic endpoint, e.g. https://ntfy.sh/my-goofish-alerts.
type NtfyChannel struct {
	TopicURL string
	Client   *http.Client
}

func (c *NtfyChannel) Kind() string { return "ntfy" }

func (c *NtfyChannel) Send(ctx context.Context, msg Message) error {
	body := fmt.Sprintf("%s\nPrice: %s\nKeyword: %s", msg.Title, msg.Price, msg.Keyword)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TopicURL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("ntfy: build request: %w", err)
	}
	req.Header.Set("Title", msg.Reason)
	req.Header.Set("Click", msg.Link)
	if msg.Image != "" {
		req.Header.Set("Attach", msg.Image)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy: unexpected status %d", resp.StatusCode)
	}
	return nil
}
