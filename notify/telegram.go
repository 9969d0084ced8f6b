package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// telegramAPIBase is overridable so tests can point the channel at a
// local server.
var telegramAPIBase = "https://api.telegram.org"

// TelegramChannel sends alerts through a Telegram bot to one chat.
type TelegramChannel struct {
	BotToken string
	ChatID   string
	Client   *http.Client
}

func (c *TelegramChannel) Kind() string { return "telegram" }

func (c *TelegramChannel) Send(ctx context.Context, msg Message) error {
	text := fmt.Sprintf("%s\n%s\n价格: %s\n关键词: %s\n%s",
		msg.Reason, msg.Title, msg.Price, msg.Keyword, msg.Link)

	payload := map[string]any{
		"chat_id":                  c.ChatID,
		"text":                     text,
		"disable_web_page_preview": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, c.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}
	return nil
}
