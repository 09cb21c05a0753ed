// Package marketplace resolves current resale prices for a product
// across selling venues. eBay is queried through its Browse API;
// Amazon has no public price API, so its search results are scraped
// through the shared browser service. Lookups fan out concurrently
// and one venue failing never hides another venue's prices.
package marketplace

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/metrics"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/ratelimit"
)

// Listing is one live offer on a marketplace. BuyBox marks Amazon's
// buy-box placement; the flag survives any resorting of the listings.
type Listing struct {
	Marketplace  string  `json:"marketplace"`
	ItemID       string  `json:"item_id"`
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	Shipping     float64 `json:"shipping"`
	TotalPrice   float64 `json:"total_price"`
	Condition    string  `json:"condition"`
	SellerRating float64 `json:"seller_rating,omitempty"`
	BuyBox       bool    `json:"buy_box,omitempty"`
	URL          string  `json:"url"`
}

// Query identifies the product to price. A UPC query is precise;
// name queries are fuzzy and capped tighter.
type Query struct {
	UPC  string
	Name string
}

// Quote is one marketplace's answer: its listings sorted by total
// price, or the error that kept it from answering.
type Quote struct {
	Marketplace string
	Listings    []Listing
	Err         error
}

// BestPrice returns the cheapest listing by total price.
func (q Quote) BestPrice() (Listing, bool) {
	for _, l := range q.Listings {
		if l.TotalPrice > 0 {
			return l, true
		}
	}
	return Listing{}, false
}

// Client is one marketplace integration.
type Client interface {
	Name() string
	Search(ctx context.Context, query Query) ([]Listing, error)
}

// Engine fans a query out to every registered client. Each lookup is
// gated by that marketplace's shared rate limiter.
type Engine struct {
	clients  []Client
	limiters map[string]*ratelimit.RateLimiter
	logger   *slog.Logger
}

func NewEngine(logger *slog.Logger, clients ...Client) *Engine {
	return &Engine{
		clients:  clients,
		limiters: make(map[string]*ratelimit.RateLimiter),
		logger:   logger,
	}
}

// SetLimiter installs a rate limiter for one marketplace. Lookups
// without a limiter run ungated.
func (e *Engine) SetLimiter(marketplace string, limiter *ratelimit.RateLimiter) {
	e.limiters[marketplace] = limiter
}

// Compare queries every marketplace concurrently and returns one
// quote per marketplace, listings sorted by total price ascending.
// Venue failures land in their quote's Err; Compare itself never
// fails.
func (e *Engine) Compare(ctx context.Context, query Query) map[string]Quote {
	results := make(map[string]Quote, len(e.clients))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, client := range e.clients {
		wg.Add(1)
		go func(c Client) {
			defer wg.Done()
			name := c.Name()

			quote := Quote{Marketplace: name}
			if err := e.limiters[name].Acquire(ctx); err != nil {
				quote.Err = err
			} else {
				listings, err := c.Search(ctx, query)
				if err != nil {
					quote.Err = err
				} else {
					sort.Slice(listings, func(i, j int) bool {
						return listings[i].TotalPrice < listings[j].TotalPrice
					})
					quote.Listings = listings
				}
			}

			outcome := "success"
			if quote.Err != nil {
				outcome = "error"
				e.logger.Warn("marketplace lookup failed",
					slog.String("marketplace", name),
					slog.String("upc", query.UPC),
					slog.String("error", quote.Err.Error()))
			} else if len(quote.Listings) == 0 {
				outcome = "no_results"
			}
			metrics.MarketplaceLookupsTotal.WithLabelValues(name, outcome).Inc()

			mu.Lock()
			results[name] = quote
			mu.Unlock()
		}(client)
	}

	wg.Wait()
	return results
}
