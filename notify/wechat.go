package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WeChatChannel posts alerts to a WeChat Work group bot webhook.
type WeChatChannel struct {
	BotURL string
	Client *http.Client
}

func (c *WeChatChannel) Kind() string { return "wechat" }

// Send delivers a markdown card to the bot webhook.
func (c *WeChatChannel) Send(ctx context.Context, msg Message) error {
	content := fmt.Sprintf("**%s**\n> 价格: %s\n> 关键词: %s\n> %s\n[查看商品](%s)",
		msg.Title, msg.Price, msg.Keyword, msg.Reason, msg.Link)

	payload := map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"content": content,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("wechat: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BotURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("wechat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("wechat: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wechat: unexpected status %d", resp.StatusCode)
	}
	return nil
}
