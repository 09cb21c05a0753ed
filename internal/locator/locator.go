// Package locator discovers physical retail stores around a ZIP
// code. Retailer store finders render their results from a state
// blob embedded in the page, so the locator fetches the rendered
// page and decodes that blob instead of scraping the DOM.
package locator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/fetch"
)

// Supported retailers.
const (
	RetailerWalmart   = "walmart"
	RetailerHomeDepot = "homedepot"
)

// Store is one physical location returned by a retailer store finder.
type Store struct {
	Retailer      string  `json:"retailer"`
	StoreID       string  `json:"store_id"`
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	Zip           string  `json:"zip"`
	Phone         string  `json:"phone"`
	DistanceMiles float64 `json:"distance_miles"`
}

// Service resolves stores for one retailer at a time. Failures are
// scoped to the retailer that produced them; the orchestrator decides
// how to aggregate.
type Service struct {
	fetcher fetch.Fetcher
	logger  *slog.Logger
}

func NewService(fetcher fetch.Fetcher, logger *slog.Logger) *Service {
	return &Service{fetcher: fetcher, logger: logger}
}

// FindStores fetches the retailer's store finder for the ZIP code and
// returns stores within the radius (miles). Stores the finder reports
// without a distance are kept; only a known distance beyond the
// radius excludes a store.
func (s *Service) FindStores(ctx context.Context, retailer, zip string, radius float64) ([]Store, error) {
	var req fetch.Request
	switch retailer {
	case RetailerWalmart:
		req = fetch.Request{
			URL:  walmartStoreFinderURL(zip),
			Kind: "walmart_stores",
		}
	case RetailerHomeDepot:
		req = fetch.Request{
			URL:  homeDepotStoreFinderURL(zip),
			Kind: "homedepot_stores",
		}
	default:
		return nil, &errs.ConfigurationError{Field: "retailer", Reason: fmt.Sprintf("unsupported retailer %q", retailer)}
	}

	result, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s store finder: %w", retailer, err)
	}

	var stores []Store
	switch retailer {
	case RetailerWalmart:
		stores, err = parseWalmartStores(result.HTML)
	case RetailerHomeDepot:
		stores, err = parseHomeDepotStores(result.HTML)
	}
	if err != nil {
		return nil, err
	}

	filtered := filterByRadius(stores, radius)
	s.logger.Info("stores located",
		slog.String("retailer", retailer),
		slog.String("zip", zip),
		slog.Float64("radius_miles", radius),
		slog.Int("found", len(stores)),
		slog.Int("within_radius", len(filtered)))
	return filtered, nil
}

func filterByRadius(stores []Store, radius float64) []Store {
	if radius <= 0 {
		return stores
	}
	out := make([]Store, 0, len(stores))
	for _, st := range stores {
		if st.DistanceMiles > 0 && st.DistanceMiles > radius {
			continue
		}
		out = append(out, st)
	}
	return out
}

func walmartStoreFinderURL(zip string) string {
	return "https://www.walmart.com/store-finder?location=" + url.QueryEscape(zip) + "&distance=50"
}

func homeDepotStoreFinderURL(zip string) string {
	return "https://www.homedepot.com/l/search/" + url.PathEscape(strings.TrimSpace(zip))
}
