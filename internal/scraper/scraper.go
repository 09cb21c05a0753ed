// Package scraper extracts discounted in-store inventory from
// retailer listing pages. Extraction prefers the JSON state embedded
// in the page and falls back to DOM parsing only when the blob is
// missing or unreadable; the blob survives retailer CSS churn far
// longer than selectors do.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/fetch"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/locator"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/metrics"
)

// Deal classifications attached to scraped items.
const (
	DealClearance  = "clearance"
	DealRollback   = "rollback"
	DealSpecialBuy = "special_buy"
	DealMarkdown   = "markdown"
)

// Item is one discounted product observed in one store.
type Item struct {
	Retailer        string  `json:"retailer"`
	StoreID         string  `json:"store_id"`
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	Brand           string  `json:"brand"`
	Category        string  `json:"category"`
	UPC             string  `json:"upc"`
	CurrentPrice    float64 `json:"current_price"`
	OriginalPrice   float64 `json:"original_price"`
	DiscountPercent float64 `json:"discount_percent"`
	DealType        string  `json:"deal_type"`
	ProductURL      string  `json:"product_url"`
}

// Service scrapes one store at a time across that retailer's deal
// listings. A failed item extraction is skipped and counted, never
// fatal; a failed deal listing is logged and the remaining listings
// still run. Only when every listing fails does ScrapeStore return an
// error.
type Service struct {
	fetcher fetch.Fetcher
	logger  *slog.Logger
}

func NewService(fetcher fetch.Fetcher, logger *slog.Logger) *Service {
	return &Service{fetcher: fetcher, logger: logger}
}

// dealPass is one listing fetch scoped to a store and a deal
// classification.
type dealPass struct {
	deal string
	req  fetch.Request
}

// ScrapeStore fetches every deal listing the retailer supports and
// returns each item that yields an ID, a name and a positive current
// price. The same product may appear under more than one
// classification; callers resolve that through keyed upserts.
func (s *Service) ScrapeStore(ctx context.Context, store locator.Store) ([]Item, error) {
	passes, err := dealPasses(store)
	if err != nil {
		return nil, err
	}

	var items []Item
	var lastErr error
	for _, pass := range passes {
		batch, err := s.scrapeDeal(ctx, store, pass)
		if err != nil {
			lastErr = err
			s.logger.Warn("deal listing failed",
				slog.String("retailer", store.Retailer),
				slog.String("store_id", store.StoreID),
				slog.String("deal", pass.deal),
				slog.String("error", err.Error()))
			continue
		}
		items = append(items, batch...)
	}
	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}

	for _, item := range items {
		metrics.ItemsScrapedTotal.WithLabelValues(store.Retailer, item.DealType).Inc()
	}
	s.logger.Info("store scraped",
		slog.String("retailer", store.Retailer),
		slog.String("store_id", store.StoreID),
		slog.Int("items", len(items)))
	return items, nil
}

func (s *Service) scrapeDeal(ctx context.Context, store locator.Store, pass dealPass) ([]Item, error) {
	result, err := s.fetcher.Fetch(ctx, pass.req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s listing: %w", store.Retailer, pass.deal, err)
	}
	switch store.Retailer {
	case locator.RetailerWalmart:
		return s.parseWalmartInventory(result.HTML, store.StoreID, pass.deal)
	default:
		return s.parseHomeDepotInventory(result.HTML, store.StoreID, pass.deal)
	}
}

func dealPasses(store locator.Store) ([]dealPass, error) {
	switch store.Retailer {
	case locator.RetailerWalmart:
		return []dealPass{
			{deal: DealClearance, req: walmartListingRequest(store.StoreID, "clearance")},
			{deal: DealRollback, req: walmartListingRequest(store.StoreID, "rollback")},
		}, nil
	case locator.RetailerHomeDepot:
		return []dealPass{
			{deal: DealClearance, req: homeDepotListingRequest(store.StoreID, "/b/Clearance/N-5yc1vZ1z11ao")},
			{deal: DealSpecialBuy, req: homeDepotListingRequest(store.StoreID, "/b/Special-Buys/N-5yc1vZ1z11ap")},
		}, nil
	default:
		return nil, &errs.ConfigurationError{Field: "retailer", Reason: fmt.Sprintf("unsupported retailer %q", store.Retailer)}
	}
}

// finishItem fills derived fields and rejects unusable rows.
func finishItem(item *Item) bool {
	if item.ProductID == "" || item.Name == "" || item.CurrentPrice <= 0 {
		return false
	}
	if item.UPC != "" {
		item.UPC = CleanUPC(item.UPC)
	}
	// A claimed original at or below the current price is noise.
	if item.OriginalPrice <= item.CurrentPrice {
		item.OriginalPrice = 0
		item.DiscountPercent = 0
	} else {
		item.DiscountPercent = round1((item.OriginalPrice - item.CurrentPrice) / item.OriginalPrice * 100)
	}
	return true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func walmartListingRequest(storeID, query string) fetch.Request {
	q := url.Values{}
	q.Set("q", query)
	q.Set("stores", storeID)
	return fetch.Request{
		URL:          "https://www.walmart.com/search?" + q.Encode(),
		Kind:         "walmart_inventory",
		WaitSelector: `[data-item-id]`,
		Scroll:       true,
	}
}

func homeDepotListingRequest(storeID, path string) fetch.Request {
	return fetch.Request{
		URL:          "https://www.homedepot.com" + path + "?NCNI-5&storeSelection=" + url.QueryEscape(storeID),
		Kind:         "homedepot_inventory",
		WaitSelector: `[data-testid="product-pod"]`,
		Scroll:       true,
	}
}
