package goofish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// storageState mirrors the session file captured by a prior interactive
// login (Playwright storage-state layout). Only cookies are restored;
// localStorage origins are ignored because the search flow does not need
// them.
type storageState struct {
	Cookies []stateCookie `json:"cookies"`
}

type stateCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// loadSessionCookies reads the session file and converts its cookies to
// CDP cookie params. A missing file yields (nil, 0, nil): the crawl runs
// anonymously, which the caller warns about but tolerates.
func loadSessionCookies(path string) ([]*network.CookieParam, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("session: read %q: %w", path, err)
	}

	var state storageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, 0, fmt.Errorf("session: parse %q: %w", path, err)
	}

	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: mapSameSite(c.SameSite),
		}
		// Expires < 0 marks a session cookie; leave Expires unset then.
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params, len(params), nil
}

func mapSameSite(raw string) network.CookieSameSite {
	switch raw {
	case "Strict":
		return network.CookieSameSiteStrict
	case "None":
		return network.CookieSameSiteNone
	case "Lax":
		return network.CookieSameSiteLax
	default:
		return ""
	}
}

// restoreSessionAction returns a chromedp action installing the cookies
// into the browser context before first navigation.
func restoreSessionAction(cookies []*network.CookieParam) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if len(cookies) == 0 {
			return nil
		}
		return network.SetCookies(cookies).Do(ctx)
	})
}
