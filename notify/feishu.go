package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// FeishuChannel posts alerts to a Feishu (Lark) group bot webhook.
type FeishuChannel struct {
	BotURL string
	Client *http.Client
}

func (c *FeishuChannel) Kind() string { return "feishu" }

func (c *FeishuChannel) Send(ctx context.Context, msg Message) error {
	text := fmt.Sprintf("%s\n%s\n价格: %s\n关键词: %s\n%s",
		msg.Reason, msg.Title, msg.Price, msg.Keyword, msg.Link)

	payload := map[string]any{
		"msg_type": "text",
		"content": map[string]string{
			"text": text,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("feishu: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BotURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("feishu: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("feishu: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feishu: unexpected status %d", resp.StatusCode)
	}
	return nil
}
