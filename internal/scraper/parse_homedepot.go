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

type homeDepotInitialState struct {
	SearchModel struct {
		Products []homeDepotProduct `json:"products"`
	} `json:"searchModel"`
	Products []homeDepotProduct `json:"products"`
}

type homeDepotProduct struct {
	ItemID       string `json:"itemId"`
	ProductLabel string `json:"productLabel"`
	Identifiers  struct {
		ItemID       string `json:"itemId"`
		ProductLabel string `json:"productLabel"`
		BrandName    string `json:"brandName"`
		UPC          string `json:"upc"`
		CanonicalURL string `json:"canonicalUrl"`
	} `json:"identifiers"`
	Pricing struct {
		Value         float64 `json:"value"`
		OriginalPrice float64 `json:"original"`
	} `json:"pricing"`
	Info struct {
		CategoryHierarchy []string `json:"categoryHierarchy"`
	} `json:"info"`
}

func (s *Service) parseHomeDepotInventory(html, storeID, deal string) ([]Item, error) {
	items, blobErr := parseHomeDepotState(html, storeID, deal)
	if blobErr == nil {
		return items, nil
	}

	s.logger.Debug("homedepot state blob unusable, falling back to DOM",
		slog.String("store_id", storeID),
		slog.String("error", blobErr.Error()))

	items, domErr := parseHomeDepotDOM(html, storeID, deal)
	if domErr != nil {
		return nil, &errs.ParseError{
			What: "homedepot inventory",
			Err:  fmt.Errorf("blob: %v; dom: %v", blobErr, domErr),
		}
	}
	return items, nil
}

func parseHomeDepotState(html, storeID, deal string) ([]Item, error) {
	raw, err := pagestate.ExtractAssigned(html, "__INITIAL_STATE__")
	if err != nil {
		return nil, err
	}

	var state homeDepotInitialState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, &errs.ParseError{What: "homedepot __INITIAL_STATE__", Err: err}
	}

	source := state.SearchModel.Products
	if len(source) == 0 {
		source = state.Products
	}

	var items []Item
	for _, p := range source {
		id := p.ItemID
		if id == "" {
			id = p.Identifiers.ItemID
		}
		name := p.ProductLabel
		if name == "" {
			name = p.Identifiers.ProductLabel
		}
		category := ""
		if n := len(p.Info.CategoryHierarchy); n > 0 {
			category = p.Info.CategoryHierarchy[n-1]
		}
		item := Item{
			Retailer:      "homedepot",
			StoreID:       storeID,
			ProductID:     id,
			Name:          name,
			Brand:         p.Identifiers.BrandName,
			Category:      category,
			UPC:           p.Identifiers.UPC,
			CurrentPrice:  p.Pricing.Value,
			OriginalPrice: p.Pricing.OriginalPrice,
			DealType:      deal,
			ProductURL:    absoluteHomeDepotURL(p.Identifiers.CanonicalURL),
		}
		if finishItem(&item) {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, &errs.ParseError{What: "homedepot __INITIAL_STATE__", Err: fmt.Errorf("no products in payload")}
	}
	return items, nil
}

func parseHomeDepotDOM(html, storeID, deal string) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &errs.ParseError{What: "homedepot dom", Err: err}
	}

	var items []Item
	doc.Find(`[data-testid="product-pod"], .product-pod`).Each(func(_ int, sel *goquery.Selection) {
		id, ok := sel.Attr("data-itemid")
		if !ok {
			id, _ = sel.Attr("data-product-id")
		}

		name := strings.TrimSpace(sel.Find(".product-pod__title, [data-testid='product-header']").First().Text())
		current, _ := ParsePrice(sel.Find(".price-format__main-price, .price").First().Text())
		original, _ := ParsePrice(sel.Find(".price-format__was-price, .u__strike").First().Text())
		href, _ := sel.Find("a").First().Attr("href")

		item := Item{
			Retailer:      "homedepot",
			StoreID:       storeID,
			ProductID:     id,
			Name:          name,
			CurrentPrice:  current,
			OriginalPrice: original,
			DealType:      deal,
			ProductURL:    absoluteHomeDepotURL(href),
		}
		if finishItem(&item) {
			items = append(items, item)
		}
	})

	if len(items) == 0 {
		return nil, fmt.Errorf("no product pods found")
	}
	return items, nil
}

func absoluteHomeDepotURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return "https://www.homedepot.com" + u
}
