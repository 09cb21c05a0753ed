package marketplace

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/config"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
)

const tokenExpirySlack = 60 * time.Second

// EBayClient queries the eBay Browse API using the client-credentials
// OAuth flow. The access token is cached until shortly before expiry.
type EBayClient struct {
	httpClient *http.Client
	cfg        config.MarketplaceConfig
	logger     *slog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewEBayClient(cfg config.MarketplaceConfig, logger *slog.Logger) *EBayClient {
	return &EBayClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cfg:        cfg,
		logger:     logger,
	}
}

func (c *EBayClient) Name() string { return "ebay" }

// Search runs an item-summary search. UPC queries search the exact
// code with the wider limit; name queries are capped tighter because
// fuzzy matches degrade fast.
func (c *EBayClient) Search(ctx context.Context, query Query) ([]Listing, error) {
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

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("filter", "buyingOptions:{FIXED_PRICE}")

	endpoint := strings.TrimRight(c.cfg.EBayEndpoint, "/") + "/buy/browse/v1/item_summary/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build ebay request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", "EBAY_US")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errs.NetworkError{Op: "ebay search", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &errs.NetworkError{Op: "ebay search read", Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked server-side; drop the cache so
		// the next call re-authenticates.
		c.mu.Lock()
		c.accessToken = ""
		c.mu.Unlock()
		return nil, &errs.NetworkError{Op: "ebay search", Err: fmt.Errorf("unauthorized")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.NetworkError{Op: "ebay search", Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))}
	}

	var payload struct {
		ItemSummaries []struct {
			ItemID string `json:"itemId"`
			Title  string `json:"title"`
			Price  struct {
				Value string `json:"value"`
			} `json:"price"`
			Condition       string `json:"condition"`
			ItemWebURL      string `json:"itemWebUrl"`
			Seller          struct {
				FeedbackPercentage string `json:"feedbackPercentage"`
			} `json:"seller"`
			ShippingOptions []struct {
				ShippingCost struct {
					Value string `json:"value"`
				} `json:"shippingCost"`
			} `json:"shippingOptions"`
		} `json:"itemSummaries"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &errs.ParseError{What: "ebay item summaries", Err: err}
	}

	listings := make([]Listing, 0, len(payload.ItemSummaries))
	for _, item := range payload.ItemSummaries {
		price, err := strconv.ParseFloat(item.Price.Value, 64)
		if err != nil || price <= 0 {
			continue
		}
		shipping := 0.0
		if len(item.ShippingOptions) > 0 {
			shipping, _ = strconv.ParseFloat(item.ShippingOptions[0].ShippingCost.Value, 64)
		}
		rating, _ := strconv.ParseFloat(item.Seller.FeedbackPercentage, 64)
		listings = append(listings, Listing{
			Marketplace:  "ebay",
			ItemID:       item.ItemID,
			Title:        item.Title,
			Price:        price,
			Shipping:     shipping,
			TotalPrice:   price + shipping,
			Condition:    item.Condition,
			SellerRating: rating,
			URL:          item.ItemWebURL,
		})
	}
	return listings, nil
}

// token returns a cached application token, fetching a fresh one via
// the client-credentials grant when missing or near expiry.
func (c *EBayClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpirySlack)) {
		return c.accessToken, nil
	}

	if c.cfg.EBayClientID == "" || c.cfg.EBayClientSecret == "" {
		return "", &errs.ConfigurationError{Field: "ebay_client_id", Reason: "ebay credentials not configured"}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "https://api.ebay.com/oauth/api_scope")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EBayTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build ebay token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.EBayClientID + ":" + c.cfg.EBayClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &errs.NetworkError{Op: "ebay oauth", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &errs.NetworkError{Op: "ebay oauth read", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &errs.NetworkError{Op: "ebay oauth", Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", &errs.ParseError{What: "ebay oauth response", Err: err}
	}
	if tok.AccessToken == "" {
		return "", &errs.ParseError{What: "ebay oauth response", Err: fmt.Errorf("empty access token")}
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.logger.Debug("ebay token refreshed", slog.Time("expires", c.tokenExpiry))
	return c.accessToken, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
