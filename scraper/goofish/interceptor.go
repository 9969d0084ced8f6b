package goofish

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"goofish-watcher/utils"
)

// Capture categories. The search response drives pagination; detail
// responses are collected opportunistically when page interaction happens
// to trigger them.
type captureCategory int

const (
	categorySearch captureCategory = iota
	categoryDetail
)

// Interceptor observes the tab's network traffic and captures the JSON
// bodies of responses whose request URL matches a known endpoint pattern.
// For the search category the first match per page wins; detail matches
// are all retained until drained.
type Interceptor struct {
	logger   *utils.Logger
	patterns map[captureCategory][]string

	mu      sync.Mutex
	pending map[network.RequestID]pendingCapture
	// gen counts page interactions. Bodies fetched for an earlier
	// generation are dropped so a late capture from the previous page
	// cannot satisfy the next page's wait.
	gen uint64

	searchCh chan []byte
	details  [][]byte
}

type pendingCapture struct {
	cat captureCategory
	gen uint64
}

// NewInterceptor builds an interceptor for the standard goofish endpoints.
func NewInterceptor(logger *utils.Logger, searchPattern, detailPattern string) *Interceptor {
	return &Interceptor{
		logger: logger,
		patterns: map[captureCategory][]string{
			categorySearch: {searchPattern},
			categoryDetail: {detailPattern},
		},
		pending:  make(map[network.RequestID]pendingCapture),
		searchCh: make(chan []byte, 1),
	}
}

// Attach registers the CDP event listener on the tab context. Response
// bodies are only retrievable once loading finishes, so matching happens
// on ResponseReceived and the fetch on LoadingFinished.
func (ic *Interceptor) Attach(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *network.EventResponseReceived:
			cat, ok := ic.match(ev.Response.URL)
			if !ok {
				return
			}
			ic.mu.Lock()
			ic.pending[ev.RequestID] = pendingCapture{cat: cat, gen: ic.gen}
			ic.mu.Unlock()

		case *network.EventLoadingFinished:
			ic.mu.Lock()
			pc, ok := ic.pending[ev.RequestID]
			if ok {
				delete(ic.pending, ev.RequestID)
			}
			ic.mu.Unlock()
			if !ok {
				return
			}
			// The body fetch must not run inside the event handler: it
			// issues its own CDP command on the same connection.
			go ic.capture(ctx, ev.RequestID, pc)
		}
	})
}

func (ic *Interceptor) match(url string) (captureCategory, bool) {
	for cat, patterns := range ic.patterns {
		for _, p := range patterns {
			if p != "" && strings.Contains(url, p) {
				return cat, true
			}
		}
	}
	return 0, false
}

func (ic *Interceptor) capture(ctx context.Context, id network.RequestID, pc pendingCapture) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return
	}
	body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(ctx, c.Target))
	if err != nil {
		ic.logger.Debug("[intercept] body fetch failed for %s: %v", id, err)
		return
	}
	ic.handleBody(pc, body)
}

// handleBody routes a captured body to its category buffer. Split from
// capture so payload handling is testable without a browser.
func (ic *Interceptor) handleBody(pc pendingCapture, body []byte) {
	if !json.Valid(body) {
		ic.logger.Debug("[intercept] skipping non-JSON response (%d bytes)", len(body))
		return
	}

	// The staleness check and the deposit share one critical section, so
	// a ResetPage between them cannot let a previous page's body through.
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if pc.gen != ic.gen {
		ic.logger.Debug("[intercept] dropping body from a previous page interaction")
		return
	}

	switch pc.cat {
	case categorySearch:
		select {
		case ic.searchCh <- body:
		default:
			// A search body for this page was already captured.
		}
	case categoryDetail:
		ic.details = append(ic.details, body)
	}
}

// ResetPage clears leftover state before a new page interaction so a late
// body from the previous page cannot satisfy the next wait. Advancing the
// generation also invalidates capture goroutines already in flight.
func (ic *Interceptor) ResetPage() {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	ic.gen++
	ic.pending = make(map[network.RequestID]pendingCapture)

	// Deposits happen under the same lock, so draining here removes any
	// body the previous page managed to capture.
	select {
	case <-ic.searchCh:
	default:
	}
}

// WaitSearch blocks until a search response body is captured or the
// window elapses.
func (ic *Interceptor) WaitSearch(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case body := <-ic.searchCh:
		return body, nil
	case <-timer.C:
		return nil, ErrFetchTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DrainDetails returns and clears every detail body captured so far.
func (ic *Interceptor) DrainDetails() [][]byte {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	out := ic.details
	ic.details = nil
	return out
}
