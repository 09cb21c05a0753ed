package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/config"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/fetch"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/scraper"
)

// AmazonClient prices a product by scraping amazon.com search
// results through the shared browser service.
type AmazonClient struct {
	fetcher fetch.Fetcher
	cfg     config.MarketplaceConfig
	logger  *slog.Logger
}

func NewAmazonClient(fetcher fetch.Fetcher, cfg config.MarketplaceConfig, logger *slog.Logger) *AmazonClient {
	return &AmazonClient{fetcher: fetcher, cfg: cfg, logger: logger}
}

func (c *AmazonClient) Name() string { return "amazon" }

func (c *AmazonClient) Search(ctx context.Context, query Query) ([]Listing, error) {
	q := query.UPC
	limit := c.cfg.UPCResultLimit
	if q == "" {
		q = query.Name
		limit = c.cfg.NameResultLimit
	}
	if q == "" {
		return nil, &errs.ConfigurationError{Field: "query", Reason: "neither UPC nor name provided"}
	}
	if limit <= 0 {
		limit = 5
	}

	searchBase := c.cfg.AmazonSearchURL
	if searchBase == "" {
		searchBase = "https://www.amazon.com/s"
	}

	result, err := c.fetcher.Fetch(ctx, fetch.Request{
		URL:          searchBase + "?k=" + url.QueryEscape(q),
		Kind:         "amazon_search",
		WaitSelector: `div.s-search-result`,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch amazon search: %w", err)
	}

	listings, err := parseAmazonSearch(result.HTML, limit)
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// parseAmazonSearch reads the result grid in page order. The first
// organic result is the buy-box placement, which is the realistic
// sell price, so it carries the BuyBox flag for callers that want
// "the" Amazon price rather than the cheapest offer.
func parseAmazonSearch(html string, limit int) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &errs.ParseError{What: "amazon search results", Err: err}
	}

	var listings []Listing
	doc.Find("div.s-search-result[data-asin]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		asin, _ := sel.Attr("data-asin")
		if asin == "" {
			return true
		}
		// Sponsored placements are ads, not market prices.
		if sel.Find("span:contains('Sponsored')").Length() > 0 {
			return true
		}

		title := strings.TrimSpace(sel.Find("h2 span").First().Text())
		if title == "" {
			title = strings.TrimSpace(sel.Find("h2").First().Text())
		}

		priceText := sel.Find(".a-price .a-offscreen").First().Text()
		if priceText == "" {
			whole := strings.TrimSpace(sel.Find(".a-price-whole").First().Text())
			frac := strings.TrimSpace(sel.Find(".a-price-fraction").First().Text())
			if whole != "" {
				priceText = whole + frac
			}
		}
		price, perr := scraper.ParsePrice(priceText)
		if perr != nil || price <= 0 {
			return true
		}

		listings = append(listings, Listing{
			Marketplace: "amazon",
			ItemID:      asin,
			Title:       title,
			Price:       price,
			Shipping:    0,
			TotalPrice:  price,
			Condition:   "New",
			BuyBox:      len(listings) == 0,
			URL:         "https://www.amazon.com/dp/" + asin,
		})
		return len(listings) < limit
	})

	if len(listings) == 0 {
		return nil, &errs.ParseError{What: "amazon search results", Err: fmt.Errorf("no priced results")}
	}
	return listings, nil
}

// SellEstimate is the buy-box price. The flagged listing wins even
// after the engine resorts by total price; a set with no flag falls
// back to its first listing.
func SellEstimate(listings []Listing) (float64, bool) {
	for _, l := range listings {
		if l.BuyBox {
			return l.Price, true
		}
	}
	if len(listings) == 0 {
		return 0, false
	}
	return listings[0].Price, true
}
