package profit

import (
	"math"
	"testing"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/config"
)

func testCalculator() *Calculator {
	return NewCalculator(config.Default().Profit)
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.005 {
		t.Errorf("%s = %.4f, want %.2f", name, got, want)
	}
}

func TestAnalyzeAmazonBreakdown(t *testing.T) {
	c := testCalculator()
	a := c.Analyze(10, 25, MarketplaceAmazon, "Other", true)

	approx(t, "sales_tax_amount", a.SalesTaxAmount, 0.80)
	approx(t, "total_buy_cost", a.TotalBuyCost, 10.80)
	approx(t, "referral_fee", a.FeeBreakdown["referral_fee"], 3.75)
	approx(t, "fulfillment_fee", a.FeeBreakdown["fulfillment_fee"], 5.50)
	approx(t, "total_fees", a.TotalFees, 9.25)
	approx(t, "estimated_shipping", a.EstimatedShipping, 5.00)
	approx(t, "net_profit", a.NetProfit, -0.05)

	if a.IsProfitable {
		t.Error("a 2.5x markup that nets negative must not be profitable")
	}
	if a.Recommendation != "AVOID: Negative profit potential" {
		t.Errorf("recommendation = %q", a.Recommendation)
	}
	if a.OpportunityScore != 0 {
		t.Errorf("score = %v, want 0 for negative profit", a.OpportunityScore)
	}
}

func TestAnalyzeAmazonCategoryFees(t *testing.T) {
	c := testCalculator()

	clothing := c.AmazonFees(100, "Clothing")
	approx(t, "clothing referral", clothing["referral_fee"], 17.00)

	books := c.AmazonFees(100, "Books")
	approx(t, "books referral", books["referral_fee"], 15.00)
	approx(t, "books closing", books["closing_fee"], 1.80)

	other := c.AmazonFees(100, "Garden Tools")
	approx(t, "unknown category referral", other["referral_fee"], 15.00)
	approx(t, "unknown category closing", other["closing_fee"], 0)
}

func TestFBATiers(t *testing.T) {
	tiers := []struct {
		price float64
		fee   float64
	}{
		{9.99, 3.22},
		{10.00, 4.50},
		{19.99, 4.50},
		{20.00, 5.50},
		{49.99, 5.50},
		{50.00, 6.50},
		{99.99, 6.50},
		{100.00, 8.00},
	}
	for _, tc := range tiers {
		if got := fbaTierFee(tc.price); got != tc.fee {
			t.Errorf("fbaTierFee(%.2f) = %.2f, want %.2f", tc.price, got, tc.fee)
		}
	}
}

func TestAnalyzeEBayBreakdown(t *testing.T) {
	c := testCalculator()
	a := c.Analyze(10, 40, MarketplaceEBay, "Other", true)

	approx(t, "final_value_fee", a.FeeBreakdown["final_value_fee"], 5.20)
	approx(t, "payment_fee", a.FeeBreakdown["payment_processing_fee"], 1.46)
	approx(t, "total_fees", a.TotalFees, 6.66)
	// 40 - 10.80 - 6.66 - 5.00
	approx(t, "net_profit", a.NetProfit, 17.54)
	if !a.IsProfitable {
		t.Error("expected a profitable result")
	}
}

func TestProfitabilityGates(t *testing.T) {
	c := testCalculator()

	// Positive but thin absolute profit stays below the $5 gate.
	a := c.Analyze(5, 18, MarketplaceEBay, "Other", true)
	if a.NetProfit <= 0 {
		t.Fatalf("fixture broke: net = %v", a.NetProfit)
	}
	if a.IsProfitable {
		t.Errorf("net %.2f below minimum amount must not be profitable", a.NetProfit)
	}

	// Raised margin gate flips a result that passed the default.
	strict := c.WithThresholds(1, 0.60)
	b := strict.Analyze(10, 40, MarketplaceEBay, "Other", true)
	if b.IsProfitable {
		t.Errorf("margin %.1f%% should fail a 60%% gate", b.ProfitMargin)
	}
}

func TestScoreClampAndMonotonicity(t *testing.T) {
	if got := Score(-3, -10, -20); got != 0 {
		t.Errorf("negative inputs: score = %v, want 0", got)
	}
	if got := Score(100, 100, 100); got != 100 {
		t.Errorf("huge inputs: score = %v, want 100", got)
	}
	approx(t, "component caps", Score(20, 60, 90), 100)
	approx(t, "half scale", Score(10, 30, 45), 50)

	prev := -1.0
	for net := 0.0; net <= 30; net += 0.5 {
		s := Score(net, 20, 20)
		if s < prev {
			t.Fatalf("score not monotonic in profit: %.2f at net=%.1f after %.2f", s, net, prev)
		}
		prev = s
	}
}

func TestRecommendationLadder(t *testing.T) {
	cases := []struct {
		profitable bool
		net        float64
		margin     float64
		roi        float64
		want       string
	}{
		{false, -1, -5, -8, "AVOID: Negative profit potential"},
		{false, 2, 6, 15, "LOW MARGIN: Insufficient profit margin"},
		{false, 3, 15, 10, "BELOW THRESHOLD: Doesn't meet minimum criteria"},
		{true, 25, 40, 60, "EXCELLENT: High profit and ROI opportunity"},
		{true, 12, 30, 35, "GOOD: Solid profit potential"},
		{true, 6, 25, 55, "PROMISING: High ROI, monitor closely"},
		{true, 6, 25, 20, "ACCEPTABLE: Meets minimum criteria"},
	}
	for _, tc := range cases {
		if got := recommend(tc.profitable, tc.net, tc.margin, tc.roi); got != tc.want {
			t.Errorf("recommend(%v, %v, %v, %v) = %q, want %q",
				tc.profitable, tc.net, tc.margin, tc.roi, got, tc.want)
		}
	}
}

func TestFindBestMarketplacePrefersProfitable(t *testing.T) {
	c := testCalculator()
	best, ok := c.FindBestMarketplace(10, "Other", []Candidate{
		{Marketplace: MarketplaceAmazon, SellPrice: 45},
		{Marketplace: MarketplaceEBay, SellPrice: 45},
	})
	if !ok {
		t.Fatal("expected a result")
	}
	if best.Marketplace != MarketplaceEBay {
		t.Errorf("best = %s, want ebay (lower fees at equal price)", best.Marketplace)
	}
	if !best.IsProfitable {
		t.Error("best at 4.5x markup should be profitable")
	}
}

func TestFindBestMarketplaceLeastBadFallback(t *testing.T) {
	c := testCalculator()
	best, ok := c.FindBestMarketplace(20, "Other", []Candidate{
		{Marketplace: MarketplaceAmazon, SellPrice: 22},
		{Marketplace: MarketplaceEBay, SellPrice: 24},
	})
	if !ok {
		t.Fatal("expected a result even with no profitable candidate")
	}
	if best.IsProfitable {
		t.Fatalf("fixture broke: %+v should not be profitable", best)
	}
	if best.Marketplace != MarketplaceEBay {
		t.Errorf("fallback = %s, want the least negative net (ebay)", best.Marketplace)
	}
}

func TestFindBestMarketplaceNoCandidates(t *testing.T) {
	c := testCalculator()
	if _, ok := c.FindBestMarketplace(10, "Other", []Candidate{
		{Marketplace: MarketplaceAmazon, SellPrice: 0},
	}); ok {
		t.Error("zero-priced candidates should yield no result")
	}
}

func TestBatchAnalyzeOrdersByScore(t *testing.T) {
	c := testCalculator()
	results := c.BatchAnalyze([]BatchItem{
		{BuyPrice: 10, SellPrice: 60, Marketplace: MarketplaceEBay, Category: "Other"},
		{BuyPrice: 10, SellPrice: 12, Marketplace: MarketplaceEBay, Category: "Other"},
		{BuyPrice: 10, SellPrice: 35, Marketplace: MarketplaceEBay, Category: "Other"},
	})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (the losing item filtered)", len(results))
	}
	if results[0].OpportunityScore < results[1].OpportunityScore {
		t.Error("results not ordered by score descending")
	}
}
