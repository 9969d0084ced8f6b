package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DingTalkChannel posts alerts to a DingTalk group bot webhook.
type DingTalkChannel struct {
	BotURL string
	Client *http.Client
}

func (c *DingTalkChannel) Kind() string { return "dingtalk" }

// Send delivers a markdown card to the bot webhook.
func (c *DingTalkChannel) Send(ctx context.Context, msg Message) error {
	text := fmt.Sprintf("#### %s\n- 价格: %s\n- 关键词: %s\n- %s\n\n[查看商品](%s)",
		msg.Title, msg.Price, msg.Keyword, msg.Reason, msg.Link)

	payload := map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": msg.Reason,
			"text":  text,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dingtalk: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BotURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dingtalk: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("dingtalk: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dingtalk: unexpected status %d", resp.StatusCode)
	}
	return nil
}
