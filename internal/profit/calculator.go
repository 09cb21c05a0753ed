// Package profit computes arbitrage economics. Everything here is
// pure arithmetic over caller-supplied inputs; the calculator never
// touches the network or the database.
package profit

import (
	"math"
	"sort"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/config"
)

// Marketplace tags understood by the fee model.
const (
	MarketplaceAmazon = "amazon"
	MarketplaceEBay   = "ebay"
)

// Analysis is the full profit breakdown for one buy/sell pairing.
type Analysis struct {
	BuyPrice       float64 `json:"buy_price"`
	SalesTaxRate   float64 `json:"sales_tax_rate"`
	SalesTaxAmount float64 `json:"sales_tax_amount"`
	TotalBuyCost   float64 `json:"total_buy_cost"`

	SellPrice   float64 `json:"sell_price"`
	Marketplace string  `json:"marketplace"`

	PlatformFees          float64 `json:"platform_fees"`
	PaymentProcessingFees float64 `json:"payment_processing_fees"`
	FulfillmentFees       float64 `json:"fulfillment_fees"`
	TotalFees             float64 `json:"total_fees"`

	EstimatedShipping float64 `json:"estimated_shipping"`

	GrossRevenue float64 `json:"gross_revenue"`
	NetProfit    float64 `json:"net_profit"`
	ProfitMargin float64 `json:"profit_margin"`
	ROIPercent   float64 `json:"roi_percent"`

	IsProfitable     bool    `json:"is_profitable"`
	OpportunityScore float64 `json:"opportunity_score"`
	Recommendation   string  `json:"recommendation"`

	FeeBreakdown map[string]float64 `json:"fee_breakdown"`
}

// Calculator applies the configured fee model and thresholds.
type Calculator struct {
	salesTaxRate    float64
	shippingCost    float64
	minProfitAmount float64
	minProfitMargin float64 // decimal, 0.20 = 20%

	amazonFeePercent float64
	ebayFeePercent   float64
	paymentFeeRate   float64
	paymentFeeFixed  float64
	categoryRates    map[string]float64
}

// NewCalculator builds a calculator from the profit configuration.
func NewCalculator(cfg config.ProfitConfig) *Calculator {
	return &Calculator{
		salesTaxRate:     cfg.SalesTaxRate,
		shippingCost:     cfg.ShippingEstimate,
		minProfitAmount:  cfg.MinProfitAmount,
		minProfitMargin:  cfg.MinProfitMargin,
		amazonFeePercent: cfg.AmazonFeePercent,
		ebayFeePercent:   cfg.EBayFeePercent,
		paymentFeeRate:   cfg.PaymentFeeRate,
		paymentFeeFixed:  cfg.PaymentFeeFixed,
		categoryRates:    cfg.CategoryRates,
	}
}

// WithThresholds returns a copy using caller-supplied minimums. Used
// when a search request overrides the configured defaults.
func (c *Calculator) WithThresholds(minAmount, minMargin float64) *Calculator {
	clone := *c
	clone.minProfitAmount = minAmount
	clone.minProfitMargin = minMargin
	return &clone
}

// BuyCost returns the landed cost of acquiring the item.
func (c *Calculator) BuyCost(itemPrice float64) (taxAmount, totalCost float64) {
	taxAmount = round2(itemPrice * c.salesTaxRate)
	totalCost = round2(itemPrice + itemPrice*c.salesTaxRate)
	return taxAmount, totalCost
}

// AmazonFees itemizes Amazon selling fees for a sale price: the
// category referral fee, an FBA tier fee and, for media categories,
// the fixed closing fee.
func (c *Calculator) AmazonFees(sellPrice float64, category string) map[string]float64 {
	referralRate, ok := c.categoryRates[category]
	if !ok {
		referralRate = c.amazonFeePercent
	}
	referralFee := sellPrice * referralRate
	fbaFee := fbaTierFee(sellPrice)

	closingFee := 0.0
	switch category {
	case "Books", "Music", "DVD":
		closingFee = 1.80
	}

	return map[string]float64{
		"referral_fee":    round2(referralFee),
		"fulfillment_fee": round2(fbaFee),
		"closing_fee":     round2(closingFee),
		"total_fees":      round2(referralFee + fbaFee + closingFee),
	}
}

// EBayFees itemizes eBay selling fees: the final-value fee plus the
// payment-processing fee. Insertion fees are treated as zero.
func (c *Calculator) EBayFees(sellPrice float64) map[string]float64 {
	finalValueFee := sellPrice * c.ebayFeePercent
	paymentFee := sellPrice*c.paymentFeeRate + c.paymentFeeFixed

	return map[string]float64{
		"final_value_fee":        round2(finalValueFee),
		"payment_processing_fee": round2(paymentFee),
		"insertion_fee":          0,
		"total_fees":             round2(finalValueFee + paymentFee),
	}
}

// Analyze produces the complete profit analysis for selling the item
// on the given marketplace. includeShipping=false zeroes the
// shipping estimate (seller-paid shipping already in the sale price).
func (c *Calculator) Analyze(buyPrice, sellPrice float64, marketplace, category string, includeShipping bool) Analysis {
	taxAmount, totalBuyCost := c.BuyCost(buyPrice)

	var fees map[string]float64
	if marketplace == MarketplaceAmazon {
		fees = c.AmazonFees(sellPrice, category)
	} else {
		fees = c.EBayFees(sellPrice)
	}
	totalFees := fees["total_fees"]

	shipping := 0.0
	if includeShipping {
		shipping = c.shippingCost
	}

	netProfit := sellPrice - totalBuyCost - totalFees - shipping

	profitMargin := 0.0
	if sellPrice > 0 {
		profitMargin = netProfit / sellPrice * 100
	}
	roiPercent := 0.0
	if totalBuyCost > 0 {
		roiPercent = netProfit / totalBuyCost * 100
	}

	isProfitable := netProfit >= c.minProfitAmount && profitMargin >= c.minProfitMargin*100

	return Analysis{
		BuyPrice:              buyPrice,
		SalesTaxRate:          c.salesTaxRate,
		SalesTaxAmount:        taxAmount,
		TotalBuyCost:          totalBuyCost,
		SellPrice:             sellPrice,
		Marketplace:           marketplace,
		PlatformFees:          coalesce(fees, "referral_fee", "final_value_fee"),
		PaymentProcessingFees: fees["payment_processing_fee"],
		FulfillmentFees:       fees["fulfillment_fee"],
		TotalFees:             totalFees,
		EstimatedShipping:     shipping,
		GrossRevenue:          sellPrice,
		NetProfit:             round2(netProfit),
		ProfitMargin:          round2(profitMargin),
		ROIPercent:            round2(roiPercent),
		IsProfitable:          isProfitable,
		OpportunityScore:      round2(Score(netProfit, profitMargin, roiPercent)),
		Recommendation:        recommend(isProfitable, netProfit, profitMargin, roiPercent),
		FeeBreakdown:          fees,
	}
}

// Candidate names one marketplace sell price for FindBestMarketplace.
type Candidate struct {
	Marketplace string
	SellPrice   float64
}

// CompareMarketplaces analyzes each candidate with a positive price.
func (c *Calculator) CompareMarketplaces(buyPrice float64, category string, candidates []Candidate) map[string]Analysis {
	results := make(map[string]Analysis, len(candidates))
	for _, cand := range candidates {
		if cand.SellPrice <= 0 {
			continue
		}
		results[cand.Marketplace] = c.Analyze(buyPrice, cand.SellPrice, cand.Marketplace, category, true)
	}
	return results
}

// FindBestMarketplace picks the highest-net-profit profitable
// analysis, or, when nothing clears the thresholds, the one with the
// maximal (least negative) net profit. The least-bad fallback is a
// deliberate contract: callers always get a ranking, never an error,
// as long as one candidate priced.
func (c *Calculator) FindBestMarketplace(buyPrice float64, category string, candidates []Candidate) (Analysis, bool) {
	comparisons := c.CompareMarketplaces(buyPrice, category, candidates)
	if len(comparisons) == 0 {
		return Analysis{}, false
	}

	var best Analysis
	var bestProfitable Analysis
	haveBest := false
	haveProfitable := false

	for _, a := range comparisons {
		if !haveBest || a.NetProfit > best.NetProfit {
			best = a
			haveBest = true
		}
		if a.IsProfitable && (!haveProfitable || a.NetProfit > bestProfitable.NetProfit) {
			bestProfitable = a
			haveProfitable = true
		}
	}
	if haveProfitable {
		return bestProfitable, true
	}
	return best, true
}

// BatchAnalyze analyzes many items, keeps those meeting the
// thresholds and returns them ordered by opportunity score.
func (c *Calculator) BatchAnalyze(items []BatchItem) []Analysis {
	results := make([]Analysis, 0, len(items))
	for _, item := range items {
		a := c.Analyze(item.BuyPrice, item.SellPrice, item.Marketplace, item.Category, true)
		if a.NetProfit >= c.minProfitAmount && a.ProfitMargin >= c.minProfitMargin*100 {
			results = append(results, a)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].OpportunityScore > results[j].OpportunityScore
	})
	return results
}

// BatchItem is one BatchAnalyze input.
type BatchItem struct {
	BuyPrice    float64
	SellPrice   float64
	Marketplace string
	Category    string
}

// Score blends absolute profit, margin and ROI into a 0-100 rank.
// Each component is capped so one dimension cannot dominate: profit
// earns up to 40 points at $20+, margin up to 30 at 60%+, ROI up to
// 30 at 90%+.
func Score(netProfit, profitMargin, roiPercent float64) float64 {
	profitScore := math.Min(netProfit/0.5, 40)
	marginScore := math.Min(profitMargin/2, 30)
	roiScore := math.Min(roiPercent/3, 30)

	total := profitScore + marginScore + roiScore
	if total < 0 {
		return 0
	}
	return math.Min(total, 100)
}

func recommend(isProfitable bool, netProfit, profitMargin, roiPercent float64) string {
	if !isProfitable {
		if netProfit < 0 {
			return "AVOID: Negative profit potential"
		}
		if profitMargin < 10 {
			return "LOW MARGIN: Insufficient profit margin"
		}
		return "BELOW THRESHOLD: Doesn't meet minimum criteria"
	}

	switch {
	case netProfit > 20 && roiPercent > 50:
		return "EXCELLENT: High profit and ROI opportunity"
	case netProfit > 10 && roiPercent > 30:
		return "GOOD: Solid profit potential"
	case roiPercent > 50:
		return "PROMISING: High ROI, monitor closely"
	default:
		return "ACCEPTABLE: Meets minimum criteria"
	}
}

// fbaTierFee estimates the FBA fulfillment fee from the sale-price
// tier. Real fees depend on size and weight; the tier table is a
// serviceable stand-in for ranking purposes.
func fbaTierFee(sellPrice float64) float64 {
	switch {
	case sellPrice < 10:
		return 3.22
	case sellPrice < 20:
		return 4.50
	case sellPrice < 50:
		return 5.50
	case sellPrice < 100:
		return 6.50
	default:
		return 8.00
	}
}

func coalesce(fees map[string]float64, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := fees[k]; ok && v != 0 {
			return v
		}
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
