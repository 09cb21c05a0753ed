package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/fetch"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/locator"
)

const walmartNextDataHTML = `<html><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"initialData":{"searchResult":{"itemStacks":[{"items":[
{"usItemId":"553412398","name":"LEGO Star Wars Set","brand":"LEGO","upc":"0673419340533","canonicalUrl":"/ip/lego-set/553412398","category":{"path":"Toys/Building Sets"},"priceInfo":{"currentPrice":{"price":24.99},"wasPrice":{"price":49.99}},"badges":{"flags":[{"text":"Clearance"}]}},
{"usItemId":"881230157","name":"Instant Pot Duo","brand":"Instant Pot","upc":"","canonicalUrl":"/ip/instant-pot/881230157","category":{"path":"Home/Kitchen Appliances"},"priceInfo":{"currentPrice":{"price":49.00},"wasPrice":{"price":49.00}},"badges":{"flags":[{"text":"Rollback"}]}},
{"usItemId":"","name":"Broken row","priceInfo":{"currentPrice":{"price":9.99}}}
]}]}}}}}</script>
</body></html>`

const walmartDOMHTML = `<html><body>
<div data-item-id="771501622">
  <a href="/ip/cordless-drill/771501622"><span data-automation-id="product-title">20V Cordless Drill</span></a>
  <div data-automation-id="product-price">
    <span class="w_iUH7">current price $59.00</span>
    <span class="w_CRwy">was $89.00</span>
  </div>
</div>
</body></html>`

const homeDepotStateHTML = `<html><script>
window.__INITIAL_STATE__ = {"searchModel":{"products":[
{"itemId":"205835503","productLabel":"Ryobi ONE+ Drill Kit","identifiers":{"brandName":"Ryobi","upc":"033287193141","canonicalUrl":"/p/ryobi-drill/205835503"},"pricing":{"value":79.00,"original":129.00},"info":{"categoryHierarchy":["Tools","Power Tools","Drills"]}},
{"itemId":"311744313","productLabel":"Zero Price Item","identifiers":{},"pricing":{"value":0},"info":{}}
]}};
</script></html>`

// fakeFetcher serves pages keyed by a URL fragment; an unmapped URL
// fails like a dead network would.
type fakeFetcher struct {
	pages map[string]string
	err   error
	reqs  []fetch.Request
}

func (f *fakeFetcher) Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	for frag, html := range f.pages {
		if strings.Contains(req.URL, frag) {
			return &fetch.Result{HTML: html, FinalURL: req.URL}, nil
		}
	}
	return nil, &errs.NetworkError{Op: "fetch", Err: fmt.Errorf("no page mapped for %s", req.URL)}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func walmartStore(id string) locator.Store {
	return locator.Store{Retailer: locator.RetailerWalmart, StoreID: id}
}

func TestScrapeWalmartFromNextData(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{"q=clearance": walmartNextDataHTML}}
	svc := NewService(f, testLogger())

	// The rollback listing is unmapped and fails; the clearance pass
	// alone must still produce results.
	items, err := svc.ScrapeStore(context.Background(), walmartStore("2280"))
	if err != nil {
		t.Fatalf("ScrapeStore: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (row without id dropped)", len(items))
	}

	lego := items[0]
	if lego.ProductID != "553412398" || lego.StoreID != "2280" {
		t.Errorf("item = %+v", lego)
	}
	if lego.UPC != "673419340533" {
		t.Errorf("EAN-13 not normalized: %q", lego.UPC)
	}
	if lego.DiscountPercent != 50.0 {
		t.Errorf("discount = %v, want 50.0", lego.DiscountPercent)
	}
	if lego.DealType != DealClearance {
		t.Errorf("deal type = %q", lego.DealType)
	}
	if lego.Category != "Building Sets" {
		t.Errorf("category = %q", lego.Category)
	}
	if lego.ProductURL != "https://www.walmart.com/ip/lego-set/553412398" {
		t.Errorf("url = %q", lego.ProductURL)
	}

	pot := items[1]
	if pot.OriginalPrice != 0 || pot.DiscountPercent != 0 {
		t.Errorf("equal was-price should clear the discount: %+v", pot)
	}
	if pot.DealType != DealRollback {
		t.Errorf("deal type = %q", pot.DealType)
	}

	if len(f.reqs) != 2 {
		t.Fatalf("got %d fetches, want one per deal listing", len(f.reqs))
	}
	if !f.reqs[0].Scroll || f.reqs[0].Kind != "walmart_inventory" {
		t.Errorf("fetch request = %+v", f.reqs[0])
	}
}

func TestScrapeWalmartMergesDealListings(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"q=clearance": walmartNextDataHTML,
		"q=rollback":  walmartDOMHTML,
	}}
	svc := NewService(f, testLogger())

	items, err := svc.ScrapeStore(context.Background(), walmartStore("2280"))
	if err != nil {
		t.Fatalf("ScrapeStore: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3 across both listings", len(items))
	}
	drill := items[2]
	if drill.ProductID != "771501622" {
		t.Fatalf("rollback listing item = %+v", drill)
	}
	if drill.DealType != DealRollback {
		t.Errorf("unbadged item should take the listing's classification, got %q", drill.DealType)
	}
}

func TestScrapeWalmartDOMFallback(t *testing.T) {
	svc := NewService(&fakeFetcher{pages: map[string]string{"q=clearance": walmartDOMHTML}}, testLogger())

	items, err := svc.ScrapeStore(context.Background(), walmartStore("3520"))
	if err != nil {
		t.Fatalf("ScrapeStore: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	drill := items[0]
	if drill.ProductID != "771501622" || drill.Name != "20V Cordless Drill" {
		t.Errorf("item = %+v", drill)
	}
	if drill.CurrentPrice != 59.00 || drill.OriginalPrice != 89.00 {
		t.Errorf("prices = %v / %v", drill.CurrentPrice, drill.OriginalPrice)
	}
}

func TestScrapeHomeDepotFromState(t *testing.T) {
	svc := NewService(&fakeFetcher{pages: map[string]string{"/b/Clearance/": homeDepotStateHTML}}, testLogger())

	items, err := svc.ScrapeStore(context.Background(), locator.Store{
		Retailer: locator.RetailerHomeDepot,
		StoreID:  "0404",
	})
	if err != nil {
		t.Fatalf("ScrapeStore: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (zero-priced row dropped)", len(items))
	}
	ryobi := items[0]
	if ryobi.ProductID != "205835503" || ryobi.Brand != "Ryobi" {
		t.Errorf("item = %+v", ryobi)
	}
	if ryobi.Category != "Drills" {
		t.Errorf("category = %q", ryobi.Category)
	}
	if ryobi.DiscountPercent != 38.8 {
		t.Errorf("discount = %v, want 38.8", ryobi.DiscountPercent)
	}
}

func TestScrapeStoreUnparseablePage(t *testing.T) {
	maintenance := "<html><body>maintenance</body></html>"
	svc := NewService(&fakeFetcher{pages: map[string]string{
		"q=clearance": maintenance,
		"q=rollback":  maintenance,
	}}, testLogger())
	_, err := svc.ScrapeStore(context.Background(), walmartStore("2280"))
	if !errs.IsParse(err) {
		t.Errorf("want parse error, got %v", err)
	}
}

func TestScrapeStoreFetchErrorPropagates(t *testing.T) {
	blocked := &errs.BlockedError{URL: "x", Marker: "px-captcha"}
	svc := NewService(&fakeFetcher{err: blocked}, testLogger())
	_, err := svc.ScrapeStore(context.Background(), walmartStore("2280"))
	if !errs.IsBlocked(err) {
		t.Errorf("want blocked error, got %v", err)
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"$24.99", 24.99, false},
		{"Now $24.99", 24.99, false},
		{"current price $1,299.00", 1299.00, false},
		{"$24.99 - $34.99", 24.99, false},
		{"59", 59, false},
		{"", 0, true},
		{"call for price", 0, true},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParsePrice(%q): want error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePrice(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCleanUPC(t *testing.T) {
	cases := []struct{ in, want string }{
		{"036000291452", "036000291452"},
		{"0036000291452", "036000291452"},
		{"00036000291452", "036000291452"},
		{"UPC: 036000291452", "036000291452"},
		{"4902505163081", "4902505163081"},
		{"12345", "12345"},
	}
	for _, tc := range cases {
		if got := CleanUPC(tc.in); got != tc.want {
			t.Errorf("CleanUPC(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidUPCA(t *testing.T) {
	if !ValidUPCA("036000291452") {
		t.Error("known-good UPC-A rejected")
	}
	if ValidUPCA("036000291453") {
		t.Error("bad check digit accepted")
	}
	if ValidUPCA("12345") {
		t.Error("short code accepted")
	}
}

func TestExtractUPC(t *testing.T) {
	got := ExtractUPC("SKU 999999999999 UPC 036000291452 in stock")
	if got != "036000291452" {
		t.Errorf("ExtractUPC = %q, want the checksum-valid code", got)
	}
	if got := ExtractUPC("no codes here"); got != "" {
		t.Errorf("ExtractUPC on plain text = %q", got)
	}
}
