package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"goofish-watcher/models"
)

// Config holds all application configuration loaded from environment variables.
// Per-run crawl parameters (keyword, pages, filters) come from the caller,
// not from here; see models.CrawlRequest.
type Config struct {
	StateFile    string // previously captured browser session (storage state JSON)
	JSONLDir     string // per-keyword output stores
	SeenStateDir string // per-keyword seen-key files
	TasksFile    string // task definitions written by the admin surface

	Headless  bool
	ChromeBin string

	MaxConcurrency   int // detail-lookup workers
	MaxRetries       int
	RateLimitMs      int
	PageTimeoutSec   int
	DetailTimeoutSec int

	DetailAPIBase string

	// PostgresDSN enables the optional mirror sink when non-empty.
	PostgresDSN string

	Notify NotifyConfig
}

// NotifyConfig maps channel kinds to their endpoints. Any subset may be
// configured; an empty config means dispatch is a no-op.
type NotifyConfig struct {
	WeChatBotURL   string
	DingTalkBotURL string
	FeishuBotURL   string
	BarkURL        string
	NtfyTopicURL   string
	GotifyURL      string

	// Telegram needs both the bot token and the destination chat.
	TelegramBotToken string
	TelegramChatID   string

	// WebhookURL receives the raw message as JSON for custom integrations.
	WebhookURL string

	TimeoutSec int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		StateFile:    getEnv("XIANYU_STATE_FILE", "xianyu_state.json"),
		JSONLDir:     getEnv("JSONL_OUTPUT_DIR", "jsonl"),
		SeenStateDir: getEnv("SEEN_STATE_DIR", "state"),
		TasksFile:    getEnv("TASKS_FILE", "tasks.json"),

		Headless:  getEnvBool("RUN_HEADLESS", true),
		ChromeBin: getEnv("CHROME_BIN", ""),

		MaxConcurrency:   getEnvInt("MAX_CONCURRENCY", 3),
		MaxRetries:       getEnvInt("MAX_RETRIES", 2),
		RateLimitMs:      getEnvInt("RATE_LIMIT_MS", 1500),
		PageTimeoutSec:   getEnvInt("PAGE_TIMEOUT_SEC", 30),
		DetailTimeoutSec: getEnvInt("DETAIL_TIMEOUT_SEC", 15),

		DetailAPIBase: getEnv("DETAIL_API_BASE", "https://www.goofish.com/api"),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		Notify: NotifyConfig{
			WeChatBotURL:     getEnv("WX_BOT_URL", ""),
			DingTalkBotURL:   getEnv("DINGTALK_BOT_URL", ""),
			FeishuBotURL:     getEnv("FEISHU_BOT_URL", ""),
			BarkURL:          getEnv("BARK_URL", ""),
			NtfyTopicURL:     getEnv("NTFY_TOPIC_URL", ""),
			GotifyURL:        getEnv("GOTIFY_URL", ""),
			TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
			WebhookURL:       getEnv("WEBHOOK_URL", ""),
			TimeoutSec:       getEnvInt("NOTIFY_TIMEOUT_SEC", 10),
		},
	}
}

// taskEntry mirrors one element of the tasks file maintained by the admin
// surface. Only fields the pipeline consumes are decoded.
type taskEntry struct {
	ID           string `json:"id"`
	TaskName     string `json:"task_name"`
	Keyword      string `json:"keyword"`
	MaxPages     int    `json:"max_pages"`
	PersonalOnly bool   `json:"personal_only"`
	MinPrice     string `json:"min_price"`
	MaxPrice     string `json:"max_price"`
	Enabled      *bool  `json:"enabled"` // absent means enabled
	AutoPush     bool   `json:"auto_push"`
}

// LoadTask reads the tasks file and builds a CrawlRequest for the task with
// the given id.
func LoadTask(path, id string) (*models.CrawlRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read tasks file %q: %w", path, err)
	}

	var tasks []taskEntry
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("config: parse tasks file %q: %w", path, err)
	}

	for _, t := range tasks {
		if t.ID != id {
			continue
		}
		if t.Enabled != nil && !*t.Enabled {
			return nil, fmt.Errorf("config: task %q is disabled", id)
		}
		pages := t.MaxPages
		if pages < 1 {
			pages = 1
		}
		name := t.TaskName
		if name == "" {
			name = "Task_" + t.Keyword
		}
		return &models.CrawlRequest{
			Keyword:      t.Keyword,
			MaxPages:     pages,
			PersonalOnly: t.PersonalOnly,
			MinPrice:     t.MinPrice,
			MaxPrice:     t.MaxPrice,
			TaskName:     name,
			AutoPush:     t.AutoPush,
		}, nil
	}

	return nil, fmt.Errorf("config: no task with id %q in %s", id, path)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
