package utils

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrInvalidLink is returned when a listing link cannot be reduced to a
// stable unique key (unparsable URL or no item identifier).
var ErrInvalidLink = errors.New("invalid listing link")

// LinkUniqueKey derives the deduplication key for a listing link.
// Upstream links carry volatile tracking parameters (spm, tracelog, ut_sk
// and friends) that change between sessions; only the item id identifies
// the listing. The key keeps scheme, host, path and the id parameter:
//
//	https://www.goofish.com/item?id=123456&spm=a21ybx → https://www.goofish.com/item?id=123456
//
// The function is pure and idempotent: feeding a key back in returns the
// same key.
func LinkUniqueKey(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidLink, link, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q: not an absolute URL", ErrInvalidLink, link)
	}

	id := u.Query().Get("id")
	if id == "" {
		return "", fmt.Errorf("%w: %q: missing id parameter", ErrInvalidLink, link)
	}

	kept := url.Values{}
	kept.Set("id", id)
	canonical := url.URL{
		Scheme:   u.Scheme,
		Host:     u.Host,
		Path:     u.Path,
		RawQuery: kept.Encode(),
	}
	return canonical.String(), nil
}
