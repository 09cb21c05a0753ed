// Package notify delivers opportunity alerts. An alert fires when a
// search finds a resale spread scoring at or above the configured
// threshold; delivery failures are logged and never fail the search.
package notify

import "context"

// Opportunity carries the fields an alert renders.
type Opportunity struct {
	ItemName       string
	Retailer       string
	StoreID        string
	Marketplace    string
	BuyPrice       float64
	SellPrice      float64
	NetProfit      float64
	Score          float64
	Recommendation string
	ProductURL     string
}

// Notifier delivers one opportunity alert.
type Notifier interface {
	NotifyOpportunity(ctx context.Context, opp Opportunity) error
}
