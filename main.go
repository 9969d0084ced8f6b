package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goofish-watcher/config"
	"goofish-watcher/models"
	"goofish-watcher/notify"
	"goofish-watcher/scraper/goofish"
	"goofish-watcher/services"
	"goofish-watcher/storage"
	"goofish-watcher/utils"
)

func main() {
	var (
		taskID       = flag.String("task-id", "", "load the crawl parameters for this task id from the tasks file")
		keyword      = flag.String("keyword", "", "search keyword")
		pages        = flag.Int("pages", 1, "number of result pages to crawl")
		personalOnly = flag.Bool("personal-only", false, "keep only individual (non-merchant) sellers")
		minPrice     = flag.String("min-price", "", "minimum price, inclusive")
		maxPrice     = flag.String("max-price", "", "maximum price, inclusive")
		debugLimit   = flag.Int("debug", 0, "stop after this many accepted listings (0 = unlimited)")
		taskName     = flag.String("task-name", "", "display name for this run")
		noPush       = flag.Bool("no-push", false, "persist new listings without notifying any channel")
	)
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()

	req, err := buildRequest(cfg, *taskID, *keyword, *pages, *personalOnly, *minPrice, *maxPrice, *debugLimit, *taskName)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	if *noPush {
		req.AutoPush = false
	}
	if *debugLimit > 0 {
		req.DebugLimit = *debugLimit
	}
	if err := req.Validate(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	logger.Info("=== goofish-watcher starting ===")
	logger.Info("Task %q — keyword: %q | pages: %d | personal-only: %v | price: [%s, %s] | debug: %d",
		req.TaskName, req.Keyword, req.MaxPages, req.PersonalOnly,
		orUnbounded(req.MinPrice), orUnbounded(req.MaxPrice), req.DebugLimit)

	filter, err := services.NewFilter(req)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	seen, err := storage.LoadSeenKeys(cfg.SeenStateDir, req.Keyword)
	if err != nil {
		// Fail-open: an unreadable store costs re-notifications, not the run.
		logger.Warn("Seen-key state unreadable, starting from an empty set: %v", err)
	}
	logger.Info("Loaded %d previously seen keys", seen.Len())

	jsonlWriter, err := storage.NewJSONLWriter(cfg.JSONLDir, req.Keyword)
	if err != nil {
		logger.Error("Failed to open output store: %v", err)
		os.Exit(1)
	}
	defer jsonlWriter.Close()

	sinks := []storage.RecordAppender{jsonlWriter}
	if cfg.PostgresDSN != "" {
		pgWriter, err := storage.NewPostgresWriter(cfg.PostgresDSN)
		if err != nil {
			logger.Warn("Postgres mirror disabled: %v", err)
		} else {
			defer pgWriter.Close()
			sinks = append(sinks, pgWriter)
		}
	}

	channels := notify.ChannelsFromConfig(cfg.Notify, &http.Client{})
	dispatcher := notify.NewDispatcher(channels,
		time.Duration(cfg.Notify.TimeoutSec)*time.Second, logger)
	if len(channels) == 0 {
		logger.Info("No notification channels configured — running store-only")
	} else {
		logger.Info("Notification channels: %d configured", len(channels))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scraper := goofish.New(cfg, req, logger, filter, seen, sinks, dispatcher)
	processed, runErr := scraper.Run(ctx)

	scraper.Report().Print()
	fmt.Printf("Processed %d new listings. Data saved to: %s\n", processed, jsonlWriter.Path())

	if runErr != nil {
		if errors.Is(runErr, goofish.ErrSessionExpired) {
			logger.Error("Run failed: session expired — refresh %s and retry", cfg.StateFile)
		} else {
			logger.Error("Run failed: %v", runErr)
		}
		os.Exit(1)
	}
}

// buildRequest resolves the crawl parameters from either the tasks file or
// the command line, mirroring the supervisor's invocation contract.
func buildRequest(cfg *config.Config, taskID, keyword string, pages int, personalOnly bool, minPrice, maxPrice string, debugLimit int, taskName string) (*models.CrawlRequest, error) {
	if taskID != "" {
		return config.LoadTask(cfg.TasksFile, taskID)
	}

	if keyword == "" {
		return nil, fmt.Errorf("either -keyword or -task-id is required")
	}
	name := taskName
	if name == "" {
		name = "Task_" + keyword
	}
	return &models.CrawlRequest{
		Keyword:      keyword,
		MaxPages:     pages,
		PersonalOnly: personalOnly,
		MinPrice:     minPrice,
		MaxPrice:     maxPrice,
		DebugLimit:   debugLimit,
		TaskName:     name,
		AutoPush:     true,
	}, nil
}

func orUnbounded(s string) string {
	if s == "" {
		return "∞"
	}
	return s
}
