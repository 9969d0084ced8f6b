package models

import "fmt"

// SellerType classifies the account behind a listing.
type SellerType string

const (
	SellerIndividual SellerType = "individual"
	SellerMerchant   SellerType = "merchant"
	SellerUnknown    SellerType = "unknown"
)

// Listing is one normalized product record extracted from the search payload.
// The normalizer builds it; the enricher only fills fields that are still empty.
type Listing struct {
	ID             string
	Title          string
	Price          string // upstream decimal string, no locale formatting
	Link           string
	Images         []string
	SellerNickname string
	SellerType     SellerType

	// RegistrationDays is -1 until the detail lookup reports it.
	RegistrationDays int
	RegistrationText string
	SellerCredit     string

	// EnrichmentIncomplete marks listings whose detail lookup failed.
	// They are persisted anyway, with whatever the search payload gave us.
	EnrichmentIncomplete bool
}

// CrawlRequest carries the caller-supplied parameters for one pipeline run.
type CrawlRequest struct {
	Keyword      string
	MaxPages     int
	PersonalOnly bool
	MinPrice     string
	MaxPrice     string
	DebugLimit   int // 0 = unlimited
	TaskName     string
	AutoPush     bool
}

// Validate checks the parameters the supervisor contract requires.
func (r *CrawlRequest) Validate() error {
	if r.Keyword == "" {
		return fmt.Errorf("crawl request: keyword must not be empty")
	}
	if r.MaxPages < 1 {
		return fmt.Errorf("crawl request: max pages must be >= 1, got %d", r.MaxPages)
	}
	if r.DebugLimit < 0 {
		return fmt.Errorf("crawl request: debug limit must not be negative, got %d", r.DebugLimit)
	}
	return nil
}

// ProductInfo is the product half of a persisted record.
type ProductInfo struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Price  string   `json:"price"`
	Link   string   `json:"link"`
	Images []string `json:"images"`
}

// SellerInfo is the seller half of a persisted record.
type SellerInfo struct {
	Nickname         string     `json:"nickname"`
	Type             SellerType `json:"type"`
	RegistrationDays *int       `json:"registrationDays,omitempty"`
	RegistrationText string     `json:"registrationText,omitempty"`
	Credit           string     `json:"credit,omitempty"`
}

// PersistedRecord is the on-disk form of a listing: one JSON object per
// line of the per-keyword output store. Never mutated once written.
type PersistedRecord struct {
	CrawlTime            string      `json:"crawl_time"`
	Keyword              string      `json:"search_keyword"`
	Product              ProductInfo `json:"product_info"`
	Seller               SellerInfo  `json:"seller_info"`
	EnrichmentIncomplete bool        `json:"enrichment_incomplete,omitempty"`
}

// NewPersistedRecord builds the durable form of a listing.
func NewPersistedRecord(l *Listing, keyword, crawlTime string) *PersistedRecord {
	rec := &PersistedRecord{
		CrawlTime: crawlTime,
		Keyword:   keyword,
		Product: ProductInfo{
			ID:     l.ID,
			Title:  l.Title,
			Price:  l.Price,
			Link:   l.Link,
			Images: l.Images,
		},
		Seller: SellerInfo{
			Nickname:         l.SellerNickname,
			Type:             l.SellerType,
			RegistrationText: l.RegistrationText,
			Credit:           l.SellerCredit,
		},
		EnrichmentIncomplete: l.EnrichmentIncomplete,
	}
	if l.RegistrationDays >= 0 {
		days := l.RegistrationDays
		rec.Seller.RegistrationDays = &days
	}
	return rec
}
