// Package notify fans new-listing alerts out to the configured channels.
// Channels are independent: one endpoint timing out or rejecting a payload
// never blocks delivery to the others.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"goofish-watcher/config"
	"goofish-watcher/utils"
)

// maxTitleRunes bounds the listing title inside outgoing payloads so no
// channel rejects the message over length limits.
const maxTitleRunes = 60

// Message is the channel-independent content of one alert.
type Message struct {
	Title   string
	Price   string
	Link    string
	Reason  string
	Keyword string
	Image   string
}

// Channel is one configured delivery endpoint.
type Channel interface {
	Kind() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher delivers a message to every configured channel concurrently
// and reports how many accepted it. Zero configured channels is a valid
// setup; Dispatch then does nothing and "succeeds".
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	logger   *utils.Logger
}

// NewDispatcher builds a dispatcher over the given channels.
func NewDispatcher(channels []Channel, timeout time.Duration, logger *utils.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{channels: channels, timeout: timeout, logger: logger}
}

// ChannelCount returns the number of configured channels.
func (d *Dispatcher) ChannelCount() int {
	return len(d.channels)
}

// Dispatch sends msg to every channel and returns the number delivered.
// Each send gets its own timeout so one slow endpoint cannot starve its
// siblings; failures are logged and swallowed here because by the time we
// dispatch, the listing is already persisted and marked seen.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) int {
	if len(d.channels) == 0 {
		return 0
	}

	msg.Title = utils.TruncateRunes(msg.Title, maxTitleRunes)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)

	for _, ch := range d.channels {
		ch := ch
		wg.Add(1)
		go func() {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			if err := ch.Send(sendCtx, msg); err != nil {
				d.logger.Warn("[notify] %s delivery failed: %v", ch.Kind(), err)
				return
			}

			mu.Lock()
			delivered++
			mu.Unlock()
			d.logger.Debug("[notify] %s delivered: %s", ch.Kind(), msg.Title)
		}()
	}

	wg.Wait()
	return delivered
}

// ChannelsFromConfig instantiates a Channel per configured endpoint.
func ChannelsFromConfig(cfg config.NotifyConfig, client *http.Client) []Channel {
	if client == nil {
		client = &http.Client{}
	}

	var channels []Channel
	if cfg.WeChatBotURL != "" {
		channels = append(channels, &WeChatChannel{BotURL: cfg.WeChatBotURL, Client: client})
	}
	if cfg.DingTalkBotURL != "" {
		channels = append(channels, &DingTalkChannel{BotURL: cfg.DingTalkBotURL, Client: client})
	}
	if cfg.FeishuBotURL != "" {
		channels = append(channels, &FeishuChannel{BotURL: cfg.FeishuBotURL, Client: client})
	}
	if cfg.BarkURL != "" {
		channels = append(channels, &BarkChannel{PushURL: cfg.BarkURL, Client: client})
	}
	if cfg.NtfyTopicURL != "" {
		channels = append(channels, &NtfyChannel{TopicURL: cfg.NtfyTopicURL, Client: client})
	}
	if cfg.GotifyURL != "" {
		channels = append(channels, &GotifyChannel{PushURL: cfg.GotifyURL, Client: client})
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		channels = append(channels, &TelegramChannel{
			BotToken: cfg.TelegramBotToken,
			ChatID:   cfg.TelegramChatID,
			Client:   client,
		})
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, &WebhookChannel{URL: cfg.WebhookURL, Client: client})
	}
	return channels
}
