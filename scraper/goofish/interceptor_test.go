package goofish

import (
	"context"
	"testing"
	"time"

	"goofish-watcher/utils"
)

func newTestInterceptor() *Interceptor {
	return NewInterceptor(utils.NewLogger(), searchAPIPattern, detailAPIPattern)
}

// currentCapture tags a body with the interceptor's live generation, the
// way a capture started after the most recent ResetPage would be.
func (ic *Interceptor) currentCapture(cat captureCategory) pendingCapture {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return pendingCapture{cat: cat, gen: ic.gen}
}

func TestInterceptorMatch(t *testing.T) {
	ic := newTestInterceptor()

	tests := []struct {
		url     string
		wantCat captureCategory
		wantOK  bool
	}{
		{"https://h5api.m.goofish.com/h5/mtop.taobao.idlemtopsearch.pc.search/1.0/?jsv=2.7", categorySearch, true},
		{"https://h5api.m.goofish.com/h5/mtop.taobao.idle.pc.detail/1.0/", categoryDetail, true},
		{"https://img.alicdn.com/pic.jpg", 0, false},
	}

	for _, tt := range tests {
		cat, ok := ic.match(tt.url)
		if ok != tt.wantOK || (ok && cat != tt.wantCat) {
			t.Errorf("match(%q) = (%v, %v); want (%v, %v)", tt.url, cat, ok, tt.wantCat, tt.wantOK)
		}
	}
}

func TestInterceptorFirstSearchMatchWins(t *testing.T) {
	ic := newTestInterceptor()
	ic.handleBody(ic.currentCapture(categorySearch), []byte(`{"page":1}`))
	ic.handleBody(ic.currentCapture(categorySearch), []byte(`{"page":"late"}`))

	body, err := ic.WaitSearch(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitSearch: %v", err)
	}
	if string(body) != `{"page":1}` {
		t.Errorf("got %s; want the first captured body", body)
	}
}

func TestInterceptorSkipsNonJSON(t *testing.T) {
	ic := newTestInterceptor()
	ic.handleBody(ic.currentCapture(categorySearch), []byte(`<html>not json</html>`))

	if _, err := ic.WaitSearch(context.Background(), 20*time.Millisecond); err != ErrFetchTimeout {
		t.Errorf("WaitSearch after non-JSON body = %v; want ErrFetchTimeout", err)
	}
}

func TestInterceptorResetPage(t *testing.T) {
	ic := newTestInterceptor()
	ic.handleBody(ic.currentCapture(categorySearch), []byte(`{"stale":true}`))
	ic.ResetPage()

	if _, err := ic.WaitSearch(context.Background(), 20*time.Millisecond); err != ErrFetchTimeout {
		t.Errorf("stale body survived ResetPage: err = %v", err)
	}
}

func TestInterceptorDropsBodyFromPreviousPage(t *testing.T) {
	ic := newTestInterceptor()

	// A capture that matched before the page advanced delivers its body
	// only after the reset. It must not satisfy the new page's wait.
	late := ic.currentCapture(categorySearch)
	ic.ResetPage()
	ic.handleBody(late, []byte(`{"page":"previous"}`))

	if _, err := ic.WaitSearch(context.Background(), 20*time.Millisecond); err != ErrFetchTimeout {
		t.Errorf("body from a previous page satisfied the wait: err = %v", err)
	}

	ic.handleBody(ic.currentCapture(categorySearch), []byte(`{"page":"current"}`))
	body, err := ic.WaitSearch(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("WaitSearch: %v", err)
	}
	if string(body) != `{"page":"current"}` {
		t.Errorf("got %s; want the current page's body", body)
	}
}

func TestInterceptorDrainDetails(t *testing.T) {
	ic := newTestInterceptor()
	ic.handleBody(ic.currentCapture(categoryDetail), []byte(`{"a":1}`))
	ic.handleBody(ic.currentCapture(categoryDetail), []byte(`{"b":2}`))

	if got := ic.DrainDetails(); len(got) != 2 {
		t.Errorf("DrainDetails = %d bodies; want 2", len(got))
	}
	if got := ic.DrainDetails(); len(got) != 0 {
		t.Errorf("second drain = %d bodies; want 0", len(got))
	}
}

func TestInterceptorWaitHonoursContext(t *testing.T) {
	ic := newTestInterceptor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ic.WaitSearch(ctx, time.Second); err != context.Canceled {
		t.Errorf("WaitSearch on cancelled ctx = %v; want context.Canceled", err)
	}
}
