package goofish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"goofish-watcher/config"
	"goofish-watcher/models"
	"goofish-watcher/notify"
	"goofish-watcher/services"
	"goofish-watcher/storage"
	"goofish-watcher/utils"
)

// memSink collects persisted records in memory.
type memSink struct {
	mu      sync.Mutex
	records []*models.PersistedRecord
	failing bool
}

func (m *memSink) Append(rec *models.PersistedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("sink unavailable")
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memSink) Close() error { return nil }

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type stubChannel struct {
	kind string
	err  error
	sent int
}

func (c *stubChannel) Kind() string { return c.kind }

func (c *stubChannel) Send(ctx context.Context, msg notify.Message) error {
	c.sent++
	return c.err
}

func newTestScraper(t *testing.T, req *models.CrawlRequest, sink storage.RecordAppender, channels []notify.Channel) *Scraper {
	t.Helper()

	cfg := &config.Config{
		SeenStateDir:     t.TempDir(),
		MaxConcurrency:   2,
		MaxRetries:       1,
		DetailTimeoutSec: 5,
	}
	logger := utils.NewLogger()

	filter, err := services.NewFilter(req)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	seen, err := storage.LoadSeenKeys(cfg.SeenStateDir, req.Keyword)
	if err != nil {
		t.Fatalf("LoadSeenKeys: %v", err)
	}

	var dispatcher *notify.Dispatcher
	if len(channels) > 0 {
		dispatcher = notify.NewDispatcher(channels, time.Second, logger)
	}

	return New(cfg, req, logger, filter, seen, []storage.RecordAppender{sink}, dispatcher)
}

func TestProcessPageAcceptsNewListings(t *testing.T) {
	sink := &memSink{}
	s := newTestScraper(t, &models.CrawlRequest{Keyword: "switch", MaxPages: 1}, sink, nil)

	accepted, total, err := s.processPage(context.Background(), searchPayload(
		searchItemJSON("101", "二手 Switch", "1288", "个人闲置"),
		searchItemJSON("102", "全新 Switch 主机", "2100", "严选"),
	))
	if err != nil {
		t.Fatalf("processPage: %v", err)
	}
	if accepted != 2 || total != 2 {
		t.Fatalf("accepted=%d total=%d; want 2, 2", accepted, total)
	}
	if sink.count() != 2 {
		t.Errorf("persisted %d records; want 2", sink.count())
	}
	if s.report.NewListings != 2 {
		t.Errorf("report.NewListings = %d; want 2", s.report.NewListings)
	}

	rec := sink.records[0]
	if rec.Keyword != "switch" {
		t.Errorf("record keyword = %q; want switch", rec.Keyword)
	}
	if rec.CrawlTime == "" {
		t.Error("record missing crawl time")
	}
}

func TestProcessPageDedupWithinRun(t *testing.T) {
	sink := &memSink{}
	s := newTestScraper(t, &models.CrawlRequest{Keyword: "switch", MaxPages: 2}, sink, nil)

	payload := searchPayload(searchItemJSON("101", "二手 Switch", "1288", "个人闲置"))

	if _, _, err := s.processPage(context.Background(), payload); err != nil {
		t.Fatalf("first page: %v", err)
	}
	accepted, _, err := s.processPage(context.Background(), payload)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if accepted != 0 {
		t.Errorf("repeat listing accepted %d times; want 0", accepted)
	}
	if s.report.Duplicates != 1 {
		t.Errorf("report.Duplicates = %d; want 1", s.report.Duplicates)
	}
	if sink.count() != 1 {
		t.Errorf("persisted %d records; want 1", sink.count())
	}
}

func TestProcessPageDedupAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	req := &models.CrawlRequest{Keyword: "switch", MaxPages: 1}
	payload := searchPayload(searchItemJSON("101", "二手 Switch", "1288", "个人闲置"))

	run := func() int {
		sink := &memSink{}
		s := newTestScraper(t, req, sink, nil)
		s.cfg.SeenStateDir = dir

		seen, err := storage.LoadSeenKeys(dir, req.Keyword)
		if err != nil {
			t.Fatalf("LoadSeenKeys: %v", err)
		}
		s.seen = seen

		accepted, _, err := s.processPage(context.Background(), payload)
		if err != nil {
			t.Fatalf("processPage: %v", err)
		}
		return accepted
	}

	if got := run(); got != 1 {
		t.Fatalf("first run accepted %d; want 1", got)
	}
	if got := run(); got != 0 {
		t.Errorf("second run accepted %d; want 0 (key persisted between runs)", got)
	}
}

func TestProcessPageDebugLimit(t *testing.T) {
	sink := &memSink{}
	req := &models.CrawlRequest{Keyword: "switch", MaxPages: 1, DebugLimit: 2}
	s := newTestScraper(t, req, sink, nil)

	accepted, _, err := s.processPage(context.Background(), searchPayload(
		searchItemJSON("101", "Switch A", "100", "个人闲置"),
		searchItemJSON("102", "Switch B", "200", "个人闲置"),
		searchItemJSON("103", "Switch C", "300", "个人闲置"),
		searchItemJSON("104", "Switch D", "400", "个人闲置"),
		searchItemJSON("105", "Switch E", "500", "个人闲置"),
	))
	if err != nil {
		t.Fatalf("processPage: %v", err)
	}
	if accepted != 2 {
		t.Errorf("accepted %d listings; want 2 at the debug limit", accepted)
	}
	if sink.count() != 2 {
		t.Errorf("persisted %d records; want 2", sink.count())
	}
}

func TestProcessPageSessionExpired(t *testing.T) {
	sink := &memSink{}
	s := newTestScraper(t, &models.CrawlRequest{Keyword: "switch", MaxPages: 1}, sink, nil)

	payload := []byte(`{"ret":["FAIL_SYS_SESSION_EXPIRED::Session过期"],"data":{}}`)
	_, _, err := s.processPage(context.Background(), payload)
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("error = %v; want ErrSessionExpired", err)
	}
	if sink.count() != 0 {
		t.Errorf("expired session persisted %d records; want 0", sink.count())
	}
}

func TestProcessPageFilterApplied(t *testing.T) {
	sink := &memSink{}
	req := &models.CrawlRequest{Keyword: "switch", MaxPages: 1, PersonalOnly: true}
	s := newTestScraper(t, req, sink, nil)

	accepted, _, err := s.processPage(context.Background(), searchPayload(
		searchItemJSON("101", "个人 Switch", "1288", "个人闲置"),
		searchItemJSON("102", "商家 Switch", "2100", "严选"),
	))
	if err != nil {
		t.Fatalf("processPage: %v", err)
	}
	if accepted != 1 {
		t.Errorf("accepted %d; want 1 after personal-only filtering", accepted)
	}
	if s.report.FilteredOut != 1 {
		t.Errorf("report.FilteredOut = %d; want 1", s.report.FilteredOut)
	}
}

func TestProcessPagePersistsDespiteNotifyFailure(t *testing.T) {
	sink := &memSink{}
	ch := &stubChannel{kind: "stub", err: errors.New("webhook down")}
	req := &models.CrawlRequest{Keyword: "switch", MaxPages: 1, AutoPush: true}
	s := newTestScraper(t, req, sink, []notify.Channel{ch})

	accepted, _, err := s.processPage(context.Background(), searchPayload(
		searchItemJSON("101", "二手 Switch", "1288", "个人闲置"),
	))
	if err != nil {
		t.Fatalf("processPage: %v", err)
	}
	if accepted != 1 || sink.count() != 1 {
		t.Fatalf("accepted=%d persisted=%d; want 1, 1", accepted, sink.count())
	}
	if ch.sent != 1 {
		t.Errorf("channel attempted %d sends; want 1", ch.sent)
	}
	if s.report.Notified != 0 {
		t.Errorf("report.Notified = %d; want 0 when every channel fails", s.report.Notified)
	}
}

func TestProcessPageNotifiesOnSuccess(t *testing.T) {
	sink := &memSink{}
	ch := &stubChannel{kind: "stub"}
	req := &models.CrawlRequest{Keyword: "switch", MaxPages: 1, AutoPush: true}
	s := newTestScraper(t, req, sink, []notify.Channel{ch})

	if _, _, err := s.processPage(context.Background(), searchPayload(
		searchItemJSON("101", "二手 Switch", "1288", "个人闲置"),
	)); err != nil {
		t.Fatalf("processPage: %v", err)
	}
	if s.report.Notified != 1 {
		t.Errorf("report.Notified = %d; want 1", s.report.Notified)
	}
}

func TestProcessPageNoPushSkipsChannels(t *testing.T) {
	sink := &memSink{}
	ch := &stubChannel{kind: "stub"}
	req := &models.CrawlRequest{Keyword: "switch", MaxPages: 1, AutoPush: false}
	s := newTestScraper(t, req, sink, []notify.Channel{ch})

	if _, _, err := s.processPage(context.Background(), searchPayload(
		searchItemJSON("101", "二手 Switch", "1288", "个人闲置"),
	)); err != nil {
		t.Fatalf("processPage: %v", err)
	}
	if ch.sent != 0 {
		t.Errorf("channel received %d sends with push disabled; want 0", ch.sent)
	}
}

func TestFindChromeBinaryPrefersConfigured(t *testing.T) {
	if got := findChromeBinary("/opt/custom/chrome"); got != "/opt/custom/chrome" {
		t.Errorf("findChromeBinary = %q; want the configured binary", got)
	}
}

func TestProcessPagePersistFailureLeavesListingUnseen(t *testing.T) {
	sink := &memSink{failing: true}
	s := newTestScraper(t, &models.CrawlRequest{Keyword: "switch", MaxPages: 1}, sink, nil)

	payload := searchPayload(searchItemJSON("101", "二手 Switch", "1288", "个人闲置"))
	if _, _, err := s.processPage(context.Background(), payload); err != nil {
		t.Fatalf("processPage: %v", err)
	}
	if s.processed != 0 {
		t.Errorf("processed = %d after persist failure; want 0", s.processed)
	}

	key, err := utils.LinkUniqueKey("https://www.goofish.com/item?id=101")
	if err != nil {
		t.Fatalf("LinkUniqueKey: %v", err)
	}
	if s.seen.Contains(key) {
		t.Error("key recorded as seen even though persist failed")
	}
}
