package goofish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"goofish-watcher/models"
	"goofish-watcher/utils"
)

// Enricher issues per-listing detail lookups to attach seller metadata the
// search payload does not carry. Lookups run on a bounded worker pool;
// they are independent network calls keyed by item id, so completion order
// does not matter.
type Enricher struct {
	base   string
	client *http.Client
	pool   *utils.WorkerPool
	logger *utils.Logger

	failures int64
}

// NewEnricher builds an enricher over the detail endpoint base URL. An
// empty base disables lookups entirely.
func NewEnricher(base string, client *http.Client, pool *utils.WorkerPool, logger *utils.Logger) *Enricher {
	return &Enricher{
		base:   strings.TrimRight(base, "/"),
		client: client,
		pool:   pool,
		logger: logger,
	}
}

// detailEnvelope tolerates both wrapped ({"item": {...}}) and bare detail
// payloads.
type detailEnvelope struct {
	Item *detailInfo `json:"item"`
	detailInfo
}

type detailInfo struct {
	Seller struct {
		Nickname    string `json:"nickname"`
		RegisterDay *int   `json:"registerDay"`
		CreditLevel string `json:"creditLevel"`
		Kind        string `json:"type"`
	} `json:"seller"`
	Images []string `json:"images"`
}

// EnrichAll looks up details for every listing and waits for completion.
// A failed lookup never drops a listing: it is flagged incomplete and kept
// with whatever the search payload provided. Returns the failure count.
func (e *Enricher) EnrichAll(ctx context.Context, listings []*models.Listing) int {
	if e.base == "" || len(listings) == 0 {
		return 0
	}

	atomic.StoreInt64(&e.failures, 0)
	for _, listing := range listings {
		l := listing
		e.pool.Submit(func() {
			if err := e.enrich(ctx, l); err != nil {
				l.EnrichmentIncomplete = true
				atomic.AddInt64(&e.failures, 1)
				e.logger.Warn("[enrich] detail lookup failed for %s: %v", l.ID, err)
			}
		})
	}
	e.pool.Wait()
	return int(atomic.LoadInt64(&e.failures))
}

func (e *Enricher) enrich(ctx context.Context, l *models.Listing) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.base+"/item/"+l.ID, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var env detailEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("parse detail payload: %w", err)
	}
	info := env.detailInfo
	if env.Item != nil {
		info = *env.Item
	}

	mergeDetail(l, &info)
	return nil
}

// mergeDetail fills gaps in the listing from the detail payload. Fields
// the normalizer already populated are never overwritten.
func mergeDetail(l *models.Listing, d *detailInfo) {
	if l.SellerNickname == "" {
		l.SellerNickname = d.Seller.Nickname
	}
	if l.SellerCredit == "" {
		l.SellerCredit = d.Seller.CreditLevel
	}
	if l.SellerType == models.SellerUnknown {
		switch d.Seller.Kind {
		case "individual":
			l.SellerType = models.SellerIndividual
		case "merchant":
			l.SellerType = models.SellerMerchant
		}
	}
	if l.RegistrationDays < 0 && d.Seller.RegisterDay != nil && *d.Seller.RegisterDay >= 0 {
		l.RegistrationDays = *d.Seller.RegisterDay
		l.RegistrationText = utils.FormatRegistrationDays(*d.Seller.RegisterDay)
	}
	if len(l.Images) == 0 {
		l.Images = d.Images
	}
}
