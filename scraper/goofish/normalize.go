package goofish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"goofish-watcher/models"
)

// searchEnvelope is the outer shape of the search API response. Everything
// below data is decoded leniently: upstream reshuffles the inner payload
// often enough that a strict schema would break on every deploy.
type searchEnvelope struct {
	API  string   `json:"api"`
	Ret  []string `json:"ret"`
	Data struct {
		ResultList []resultEntry `json:"resultList"`
	} `json:"data"`
}

type resultEntry struct {
	Data struct {
		Item struct {
			Main struct {
				ExContent  exContent `json:"exContent"`
				ClickParam struct {
					Args struct {
						ItemID string `json:"item_id"`
					} `json:"args"`
				} `json:"clickParam"`
			} `json:"main"`
		} `json:"item"`
	} `json:"data"`
}

type exContent struct {
	Title        string          `json:"title"`
	Area         string          `json:"area"`
	UserNickName string          `json:"userNickName"`
	PicURL       string          `json:"picUrl"`
	Price        []pricePart     `json:"price"`
	DetailParams detailParams    `json:"detailParams"`
	FishTags     json.RawMessage `json:"fishTags"`
}

type pricePart struct {
	Text string `json:"text"`
}

type detailParams struct {
	ItemID    string `json:"itemId"`
	SoldPrice string `json:"soldPrice"`
	Title     string `json:"title"`
}

// parseSearchPayload decodes one captured search response body into its
// raw result entries. A session rejection in the mtop envelope surfaces as
// ErrSessionExpired; any other malformed body as ErrUpstreamParse.
func parseSearchPayload(raw []byte) ([]resultEntry, error) {
	var env searchEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamParse, err)
	}

	for _, ret := range env.Ret {
		if strings.HasPrefix(ret, "SUCCESS") {
			continue
		}
		if strings.Contains(ret, "SESSION_EXPIRED") || strings.Contains(ret, "ILLEGAL_ACCESS") {
			return nil, fmt.Errorf("%w: %s", ErrSessionExpired, ret)
		}
		return nil, fmt.Errorf("%w: upstream ret %q", ErrUpstreamParse, ret)
	}

	return env.Data.ResultList, nil
}

// normalizeItem converts one raw result entry into a Listing. The second
// return value is false when a required field (item id) is missing or
// unusable; such items are skipped, never fatal.
func normalizeItem(entry resultEntry) (*models.Listing, bool) {
	main := entry.Data.Item.Main
	ex := main.ExContent

	id := ex.DetailParams.ItemID
	if id == "" {
		id = main.ClickParam.Args.ItemID
	}
	if id == "" {
		return nil, false
	}

	title := ex.Title
	if title == "" {
		title = ex.DetailParams.Title
	}

	return &models.Listing{
		ID:               id,
		Title:            title,
		Price:            normalizePrice(ex),
		Link:             "https://www.goofish.com/item?id=" + id,
		Images:           normalizeImages(ex.PicURL),
		SellerNickname:   ex.UserNickName,
		SellerType:       sellerTypeFromTags(ex.FishTags),
		RegistrationDays: -1,
	}, true
}

// normalizePrice prefers the machine-readable soldPrice and falls back to
// joining the display parts. The result stays a plain decimal string:
// currency glyphs and grouping separators are stripped, nothing passes
// through a float.
func normalizePrice(ex exContent) string {
	if ex.DetailParams.SoldPrice != "" {
		return ex.DetailParams.SoldPrice
	}

	var b strings.Builder
	for _, part := range ex.Price {
		for _, r := range part.Text {
			if (r >= '0' && r <= '9') || r == '.' {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func normalizeImages(picURL string) []string {
	if picURL == "" {
		return nil
	}
	if strings.HasPrefix(picURL, "//") {
		picURL = "https:" + picURL
	}
	return []string{picURL}
}

// sellerTypeFromTags classifies the seller from the rendered tag block.
// The tag structure is deeply nested and unstable, but the tag texts that
// matter are distinctive enough to match on bytes.
func sellerTypeFromTags(tags json.RawMessage) models.SellerType {
	if len(tags) == 0 {
		return models.SellerUnknown
	}
	if bytes.Contains(tags, []byte("个人闲置")) {
		return models.SellerIndividual
	}
	if bytes.Contains(tags, []byte("严选")) || bytes.Contains(tags, []byte("小商家")) {
		return models.SellerMerchant
	}
	return models.SellerUnknown
}
