package goofish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"goofish-watcher/config"
	"goofish-watcher/models"
	"goofish-watcher/notify"
	"goofish-watcher/services"
	"goofish-watcher/storage"
	"goofish-watcher/utils"
)

const (
	searchURLFormat  = "https://www.goofish.com/search?q=%s"
	searchAPIPattern = "mtop.taobao.idlemtopsearch.pc.search"
	detailAPIPattern = "mtop.taobao.idle.pc.detail"

	// The arrow advancing the result list. Upstream renames its hashed
	// classes regularly; the stable fragment is the pagination block name.
	nextPageSelector = `[class*="search-pagination-arrow-right"]`
)

// Scraper drives one crawl run for a single keyword: paginate the search
// UI, capture the underlying search responses, and push every new listing
// through normalize → filter → dedup → enrich → persist → notify.
//
// One Scraper owns one browser session. Concurrent runs need their own
// Scraper each; sharing would corrupt the tab's pagination state.
type Scraper struct {
	cfg        *config.Config
	req        *models.CrawlRequest
	logger     *utils.Logger
	filter     *services.Filter
	seen       *storage.SeenKeyStore
	sinks      []storage.RecordAppender
	dispatcher *notify.Dispatcher

	interceptor *Interceptor
	enricher    *Enricher
	retry       *utils.RetryConfig
	runSeen     *utils.KeySet
	report      *services.RunReport

	processed int
}

// New creates a ready-to-use Scraper for the given request.
func New(
	cfg *config.Config,
	req *models.CrawlRequest,
	logger *utils.Logger,
	filter *services.Filter,
	seen *storage.SeenKeyStore,
	sinks []storage.RecordAppender,
	dispatcher *notify.Dispatcher,
) *Scraper {
	pool := utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs)
	client := &http.Client{Timeout: time.Duration(cfg.DetailTimeoutSec) * time.Second}

	return &Scraper{
		cfg:         cfg,
		req:         req,
		logger:      logger,
		filter:      filter,
		seen:        seen,
		sinks:       sinks,
		dispatcher:  dispatcher,
		interceptor: NewInterceptor(logger, searchAPIPattern, detailAPIPattern),
		enricher:    NewEnricher(cfg.DetailAPIBase, client, pool, logger),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		runSeen: utils.NewKeySet(),
		report:  &services.RunReport{Keyword: req.Keyword},
	}
}

// Report returns the per-stage counters for the run.
func (s *Scraper) Report() *services.RunReport {
	return s.report
}

// Run executes the crawl and returns the number of newly processed
// listings. The count is valid even when err is non-nil: everything
// counted was persisted and key-flushed before the failure.
func (s *Scraper) Run(ctx context.Context) (int, error) {
	s.logger.Info("[goofish] Starting crawl — keyword %q, up to %d pages", s.req.Keyword, s.req.MaxPages)

	chromeBin := findChromeBinary(s.cfg.ChromeBin)
	if chromeBin != "" {
		s.logger.Debug("[goofish] Using browser binary: %s", chromeBin)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()

	s.interceptor.Attach(tabCtx)

	cookies, n, err := loadSessionCookies(s.cfg.StateFile)
	if err != nil {
		s.logger.Warn("[goofish] Session state unusable, crawling anonymously: %v", err)
	} else if n == 0 {
		s.logger.Warn("[goofish] No session state at %s, crawling anonymously", s.cfg.StateFile)
	} else {
		s.logger.Info("[goofish] Restored %d session cookies", n)
	}

	if err := chromedp.Run(tabCtx, network.Enable(), restoreSessionAction(cookies)); err != nil {
		return 0, fmt.Errorf("goofish: browser startup: %w", err)
	}

	for page := 1; page <= s.req.MaxPages; page++ {
		// Cancellation is honoured at page boundaries so a page already
		// being processed always finishes and flushes.
		if ctx.Err() != nil {
			s.logger.Warn("[goofish] Run cancelled after page %d", page-1)
			return s.processed, ctx.Err()
		}

		var payload []byte
		fetchErr := s.retry.Do(fmt.Sprintf("fetch-page-%d", page), func() error {
			var err error
			payload, err = s.fetchPage(tabCtx, page)
			return err
		})
		if fetchErr != nil {
			s.logger.Warn("[goofish] Page %d skipped: %v", page, fetchErr)
			s.report.PagesFailed++
			continue
		}
		s.report.PagesVisited++

		accepted, total, err := s.processPage(ctx, payload)
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				s.logger.Error("[goofish] Session expired — aborting run")
				return s.processed, err
			}
			s.logger.Warn("[goofish] Page %d payload unusable: %v", page, err)
			continue
		}

		s.logger.Info("[goofish] Page %d — %d items, %d new (total new: %d)",
			page, total, accepted, s.processed)

		if s.req.DebugLimit > 0 && s.processed >= s.req.DebugLimit {
			s.logger.Info("[goofish] Debug limit %d reached — stopping", s.req.DebugLimit)
			break
		}
		if total == 0 {
			s.logger.Info("[goofish] Page %d returned no listings — end of results", page)
			break
		}

		if page < s.req.MaxPages {
			time.Sleep(time.Duration(s.cfg.RateLimitMs) * time.Millisecond)
		}
	}

	if err := s.seen.Flush(); err != nil {
		s.logger.Error("[goofish] Final seen-key flush failed: %v", err)
	}

	s.logger.Info("[goofish] Crawl complete — %d new listings processed", s.processed)
	return s.processed, nil
}

// fetchPage triggers the page interaction and waits for the matching
// search response. Page 1 navigates; later pages click the next arrow so
// the upstream cursor state advances the way a user would.
func (s *Scraper) fetchPage(tabCtx context.Context, page int) ([]byte, error) {
	s.interceptor.ResetPage()

	runCtx, cancel := context.WithTimeout(tabCtx, time.Duration(s.cfg.PageTimeoutSec)*time.Second)
	defer cancel()

	var action chromedp.Action
	if page == 1 {
		action = chromedp.Navigate(fmt.Sprintf(searchURLFormat, url.QueryEscape(s.req.Keyword)))
	} else {
		action = chromedp.Click(nextPageSelector, chromedp.ByQuery)
	}

	if err := chromedp.Run(runCtx, action); err != nil {
		return nil, fmt.Errorf("page %d interaction: %w", page, err)
	}

	return s.interceptor.WaitSearch(runCtx, time.Duration(s.cfg.PageTimeoutSec)*time.Second)
}

// processPage runs the captured payload through the full per-page
// pipeline. Returns how many listings were newly accepted and how many
// raw items the page carried.
func (s *Scraper) processPage(ctx context.Context, payload []byte) (int, int, error) {
	entries, err := parseSearchPayload(payload)
	if err != nil {
		return 0, 0, err
	}
	s.report.RawItems += len(entries)

	if drained := s.interceptor.DrainDetails(); len(drained) > 0 {
		s.logger.Debug("[goofish] %d detail responses captured during page interaction", len(drained))
	}

	var (
		fresh []*models.Listing
		keys  []string
	)
	for _, entry := range entries {
		l, ok := normalizeItem(entry)
		if !ok {
			s.report.Dropped++
			continue
		}
		if !s.filter.Accept(l) {
			s.report.FilteredOut++
			continue
		}

		key, err := utils.LinkUniqueKey(l.Link)
		if err != nil {
			s.report.Dropped++
			s.logger.Debug("[goofish] Dropping listing with bad link: %v", err)
			continue
		}
		if s.seen.Contains(key) || !s.runSeen.Add(key) {
			s.report.Duplicates++
			continue
		}

		fresh = append(fresh, l)
		keys = append(keys, key)

		if s.req.DebugLimit > 0 && s.processed+len(fresh) >= s.req.DebugLimit {
			break
		}
	}

	s.report.EnrichErrors += s.enricher.EnrichAll(ctx, fresh)

	crawlTime := time.Now().Format("2006-01-02 15:04:05")
	for i, l := range fresh {
		rec := models.NewPersistedRecord(l, s.req.Keyword, crawlTime)
		if err := s.persist(rec); err != nil {
			// Not persisted, so not recorded as seen either: the next run
			// gets another chance at this listing.
			s.logger.Error("[goofish] Persist failed for %s: %v", l.ID, err)
			continue
		}

		s.seen.Record(keys[i])
		s.processed++
		s.report.NewListings++

		s.notifyListing(ctx, l)
	}

	// Flush once per page: a crash can lose at most the page in flight,
	// never a previously flushed key.
	if err := s.seen.Flush(); err != nil {
		s.logger.Error("[goofish] Seen-key flush failed: %v", err)
	}

	return len(fresh), len(entries), nil
}

func (s *Scraper) persist(rec *models.PersistedRecord) error {
	if len(s.sinks) == 0 {
		return fmt.Errorf("no output sink configured")
	}
	if err := s.sinks[0].Append(rec); err != nil {
		return err
	}
	for _, sink := range s.sinks[1:] {
		if err := sink.Append(rec); err != nil {
			s.logger.Warn("[goofish] Mirror sink append failed for %s: %v", rec.Product.ID, err)
		}
	}
	return nil
}

func (s *Scraper) notifyListing(ctx context.Context, l *models.Listing) {
	if !s.req.AutoPush || s.dispatcher == nil || s.dispatcher.ChannelCount() == 0 {
		return
	}

	img := ""
	if len(l.Images) > 0 {
		img = l.Images[0]
	}
	delivered := s.dispatcher.Dispatch(ctx, notify.Message{
		Title:   l.Title,
		Price:   l.Price,
		Link:    l.Link,
		Reason:  "New listing found",
		Keyword: s.req.Keyword,
		Image:   img,
	})
	if delivered > 0 {
		s.report.Notified++
	}
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the
// configured one.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
