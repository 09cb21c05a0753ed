package scraper

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/pagestate"
)

type walmartNextData struct {
	Props struct {
		PageProps struct {
			InitialData struct {
				SearchResult struct {
					ItemStacks []struct {
						Items []walmartProduct `json:"items"`
					} `json:"itemStacks"`
				} `json:"searchResult"`
			} `json:"initialData"`
		} `json:"pageProps"`
	} `json:"props"`
}

type walmartProduct struct {
	USItemID     string `json:"usItemId"`
	Name         string `json:"name"`
	Brand        string `json:"brand"`
	UPC          string `json:"upc"`
	CanonicalURL string `json:"canonicalUrl"`
	Category     struct {
		Path string `json:"path"`
	} `json:"category"`
	PriceInfo struct {
		CurrentPrice struct {
			Price float64 `json:"price"`
		} `json:"currentPrice"`
		WasPrice struct {
			Price float64 `json:"price"`
		} `json:"wasPrice"`
	} `json:"priceInfo"`
	Badges struct {
		Flags []struct {
			Text string `json:"text"`
		} `json:"flags"`
	} `json:"badges"`
}

func (s *Service) parseWalmartInventory(html, storeID, deal string) ([]Item, error) {
	items, blobErr := parseWalmartNextData(html, storeID, deal)
	if blobErr == nil {
		return items, nil
	}

	s.logger.Debug("walmart state blob unusable, falling back to DOM",
		slog.String("store_id", storeID),
		slog.String("error", blobErr.Error()))

	items, domErr := parseWalmartDOM(html, storeID, deal)
	if domErr != nil {
		return nil, &errs.ParseError{
			What: "walmart inventory",
			Err:  fmt.Errorf("blob: %v; dom: %v", blobErr, domErr),
		}
	}
	return items, nil
}

func parseWalmartNextData(html, storeID, deal string) ([]Item, error) {
	raw, err := pagestate.ExtractScript(html, "__NEXT_DATA__")
	if err != nil {
		return nil, err
	}

	var data walmartNextData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &errs.ParseError{What: "walmart __NEXT_DATA__", Err: err}
	}

	var items []Item
	for _, stack := range data.Props.PageProps.InitialData.SearchResult.ItemStacks {
		for _, p := range stack.Items {
			item := Item{
				Retailer:      "walmart",
				StoreID:       storeID,
				ProductID:     p.USItemID,
				Name:          p.Name,
				Brand:         p.Brand,
				Category:      lastCategorySegment(p.Category.Path),
				UPC:           p.UPC,
				CurrentPrice:  p.PriceInfo.CurrentPrice.Price,
				OriginalPrice: p.PriceInfo.WasPrice.Price,
				DealType:      walmartDealType(p, deal),
				ProductURL:    absoluteWalmartURL(p.CanonicalURL),
			}
			if finishItem(&item) {
				items = append(items, item)
			}
		}
	}
	if len(items) == 0 {
		return nil, &errs.ParseError{What: "walmart __NEXT_DATA__", Err: fmt.Errorf("no items in payload")}
	}
	return items, nil
}

// walmartDealType prefers the product's own badge over the listing
// the product was found under.
func walmartDealType(p walmartProduct, deal string) string {
	for _, flag := range p.Badges.Flags {
		switch strings.ToLower(flag.Text) {
		case "rollback":
			return DealRollback
		case "clearance":
			return DealClearance
		case "reduced price", "price drop":
			return DealMarkdown
		}
	}
	return deal
}

// parseWalmartDOM reads product tiles directly. Selectors track the
// current walmart.com search grid: tiles carry data-item-id, the
// visually hidden w_iUH7 span holds the full price text.
func parseWalmartDOM(html, storeID, deal string) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &errs.ParseError{What: "walmart dom", Err: err}
	}

	var items []Item
	doc.Find("[data-item-id]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("data-item-id")

		name := strings.TrimSpace(sel.Find(`[data-automation-id="product-title"]`).First().Text())
		if name == "" {
			name = strings.TrimSpace(sel.Find("span[class*='line-clamp']").First().Text())
		}

		priceText := sel.Find(`[data-automation-id="product-price"] .w_iUH7`).First().Text()
		if priceText == "" {
			priceText = sel.Find(`[data-automation-id="product-price"]`).First().Text()
		}
		current, _ := ParsePrice(priceText)

		wasText := sel.Find(`[data-automation-id="product-price"] .w_CRwy`).First().Text()
		if wasText == "" {
			wasText = sel.Find("div[class*='strike'], s, del").First().Text()
		}
		original, _ := ParsePrice(wasText)

		href, _ := sel.Find("a").First().Attr("href")

		item := Item{
			Retailer:      "walmart",
			StoreID:       storeID,
			ProductID:     id,
			Name:          name,
			CurrentPrice:  current,
			OriginalPrice: original,
			DealType:      deal,
			ProductURL:    absoluteWalmartURL(href),
		}
		if finishItem(&item) {
			items = append(items, item)
		}
	})

	if len(items) == 0 {
		return nil, fmt.Errorf("no product tiles found")
	}
	return items, nil
}

func lastCategorySegment(path string) string {
	if path == "" {
		return ""
	}
	segments := strings.Split(path, "/")
	return strings.TrimSpace(segments[len(segments)-1])
}

func absoluteWalmartURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return "https://www.walmart.com" + u
}
