package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"goofish-watcher/models"
)

// priceRegexp captures the first decimal value in an upstream price string.
var priceRegexp = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// Filter applies the personal-seller and price-range predicates over
// normalized listings. It is pure: accepting one listing never depends on
// another, so results are order-independent.
type Filter struct {
	personalOnly bool
	minPrice     *float64
	maxPrice     *float64
}

// NewFilter builds a Filter from the request. Price bounds are parsed once
// here; a bound that does not parse as a number is a caller error.
func NewFilter(req *models.CrawlRequest) (*Filter, error) {
	f := &Filter{personalOnly: req.PersonalOnly}

	if req.MinPrice != "" {
		v, ok := ParsePrice(req.MinPrice)
		if !ok {
			return nil, fmt.Errorf("filter: invalid min price %q", req.MinPrice)
		}
		f.minPrice = &v
	}
	if req.MaxPrice != "" {
		v, ok := ParsePrice(req.MaxPrice)
		if !ok {
			return nil, fmt.Errorf("filter: invalid max price %q", req.MaxPrice)
		}
		f.maxPrice = &v
	}

	return f, nil
}

// Accept reports whether the listing passes every configured predicate.
// Bounds are inclusive. A listing whose price does not parse is rejected
// while any price bound is active and accepted otherwise.
func (f *Filter) Accept(l *models.Listing) bool {
	if f.personalOnly && l.SellerType != models.SellerIndividual {
		return false
	}

	if f.minPrice == nil && f.maxPrice == nil {
		return true
	}

	price, ok := ParsePrice(l.Price)
	if !ok {
		return false
	}
	if f.minPrice != nil && price < *f.minPrice {
		return false
	}
	if f.maxPrice != nil && price > *f.maxPrice {
		return false
	}
	return true
}

// ParsePrice extracts a numeric value from an upstream price string.
// Examples:
//
//	"1288"      → 1288
//	"¥1,288.50" → 1288.5
//	"议价"       → not a price
func ParsePrice(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	match := priceRegexp.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
