package search

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/config"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/locator"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/marketplace"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/model"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/queue"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/profit"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/scraper"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeLocator struct {
	stores map[string][]locator.Store
	errs   map[string]error
}

func (f *fakeLocator) FindStores(ctx context.Context, retailer, zip string, radius float64) ([]locator.Store, error) {
	if err := f.errs[retailer]; err != nil {
		return nil, err
	}
	return f.stores[retailer], nil
}

type fakeScraper struct {
	items map[string][]scraper.Item
	errs  map[string]error
}

func (f *fakeScraper) ScrapeStore(ctx context.Context, st locator.Store) ([]scraper.Item, error) {
	if err := f.errs[st.StoreID]; err != nil {
		return nil, err
	}
	return f.items[st.StoreID], nil
}

type fakeComparer struct {
	mu     sync.Mutex
	quotes map[string]marketplace.Quote
	calls  int
}

func (f *fakeComparer) Compare(ctx context.Context, q marketplace.Query) map[string]marketplace.Quote {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.quotes
}

func (f *fakeComparer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRepo struct {
	mu            sync.Mutex
	nextID        uint
	stores        []model.Store
	items         []model.InventoryItem
	comparisons   []model.PriceComparison
	opportunities []model.Opportunity
	records       map[string]*model.SearchRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, records: make(map[string]*model.SearchRecord)}
}

func (f *fakeRepo) UpsertStores(ctx context.Context, stores []model.Store) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores = append(f.stores, stores...)
	return nil
}

func (f *fakeRepo) UpsertInventoryItems(ctx context.Context, items []model.InventoryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range items {
		items[i].ID = f.nextID
		f.nextID++
	}
	f.items = append(f.items, items...)
	return nil
}

func (f *fakeRepo) SaveComparisons(ctx context.Context, comps []model.PriceComparison) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comparisons = append(f.comparisons, comps...)
	return nil
}

func (f *fakeRepo) UpsertOpportunity(ctx context.Context, opp *model.Opportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opportunities = append(f.opportunities, *opp)
	return nil
}

func (f *fakeRepo) CreateSearchRecord(ctx context.Context, rec *model.SearchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.SearchID] = rec
	return nil
}

func (f *fakeRepo) UpdateSearchRecord(ctx context.Context, rec *model.SearchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.SearchID] = rec
	return nil
}

func testOrchestrator(t *testing.T, loc Locator, scr Scraper, cmp Comparer, repo Repo) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	pool := queue.NewPool(testLogger(), 4, 32)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool.Start(ctx)
	t.Cleanup(pool.Shutdown)

	return NewOrchestrator(cfg, testLogger(), loc, scr, cmp,
		profit.NewCalculator(cfg.Profit), repo, nil, pool)
}

func waitTerminal(t *testing.T, o *Orchestrator, id string) State {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		st, ok := o.Registry().Get(id)
		if ok && terminal(st.Status) {
			return st
		}
		time.Sleep(20 * time.Millisecond)
	}
	st, _ := o.Registry().Get(id)
	t.Fatalf("search %s never reached a terminal state, stuck at %q", id, st.Status)
	return State{}
}

func profitableQuotes() map[string]marketplace.Quote {
	return map[string]marketplace.Quote{
		"amazon": {Marketplace: "amazon", Listings: []marketplace.Listing{
			{Marketplace: "amazon", ItemID: "B01", Title: "LEGO Set", Price: 79.99, TotalPrice: 79.99},
		}},
		"ebay": {Marketplace: "ebay", Listings: []marketplace.Listing{
			{Marketplace: "ebay", ItemID: "e1", Title: "LEGO Set", Price: 52.00, Shipping: 5.00, TotalPrice: 57.00},
		}},
	}
}

func TestSearchHappyPath(t *testing.T) {
	loc := &fakeLocator{stores: map[string][]locator.Store{
		"walmart": {{Retailer: "walmart", StoreID: "2280", Name: "Secaucus"}},
	}}
	scr := &fakeScraper{items: map[string][]scraper.Item{
		"2280": {{
			Retailer: "walmart", StoreID: "2280", ProductID: "553412398",
			Name: "LEGO Star Wars Set", UPC: "673419340533",
			CurrentPrice: 24.99, OriginalPrice: 49.99, DealType: "clearance",
		}},
	}}
	repo := newFakeRepo()
	o := testOrchestrator(t, loc, scr, &fakeComparer{quotes: profitableQuotes()}, repo)

	id, err := o.Start(context.Background(), Params{Zip: "07094", Retailers: []string{"walmart"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st := waitTerminal(t, o, id)
	if st.Status != StatusCompleted {
		t.Fatalf("status = %q, errors = %v", st.Status, st.Errors)
	}
	if st.StoresFound != 1 || st.StoresScraped != 1 || st.ItemsFound != 1 || st.ItemsAnalyzed != 1 {
		t.Errorf("counters = %+v", st)
	}
	if st.OpportunitiesFound != 1 {
		t.Fatalf("opportunities = %d, want 1", st.OpportunitiesFound)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.opportunities) != 1 {
		t.Fatalf("persisted %d opportunities", len(repo.opportunities))
	}
	opp := repo.opportunities[0]
	// Amazon buy box 79.99 nets more than ebay 57.00 despite fees.
	if opp.Marketplace != "amazon" {
		t.Errorf("best marketplace = %q", opp.Marketplace)
	}
	if opp.NetProfit <= 0 {
		t.Errorf("net profit = %v", opp.NetProfit)
	}
	if len(repo.comparisons) != 2 {
		t.Errorf("persisted %d comparisons, want 2", len(repo.comparisons))
	}
	rec := repo.records[id]
	if rec == nil || rec.Status != StatusCompleted || rec.OpportunitiesHit != 1 {
		t.Errorf("search record = %+v", rec)
	}
}

func TestSearchStoreFailureIsIsolated(t *testing.T) {
	loc := &fakeLocator{stores: map[string][]locator.Store{
		"walmart": {
			{Retailer: "walmart", StoreID: "2280"},
			{Retailer: "walmart", StoreID: "3520"},
		},
	}}
	scr := &fakeScraper{
		items: map[string][]scraper.Item{
			"3520": {{
				Retailer: "walmart", StoreID: "3520", ProductID: "p1",
				Name: "Drill", CurrentPrice: 20,
			}},
		},
		errs: map[string]error{
			"2280": &errs.BlockedError{URL: "x", Marker: "px-captcha"},
		},
	}
	repo := newFakeRepo()
	o := testOrchestrator(t, loc, scr, &fakeComparer{quotes: profitableQuotes()}, repo)

	id, err := o.Start(context.Background(), Params{Zip: "07094", Retailers: []string{"walmart"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st := waitTerminal(t, o, id)
	if st.Status != StatusCompleted {
		t.Fatalf("one bad store must not fail the search: %q", st.Status)
	}
	if st.StoresFailed != 1 || st.StoresScraped != 1 {
		t.Errorf("failed=%d scraped=%d, want 1/1", st.StoresFailed, st.StoresScraped)
	}
	if len(st.Errors) == 0 {
		t.Error("the blocked store should leave an error note")
	}
}

func TestSearchRetailerFailureIsIsolated(t *testing.T) {
	loc := &fakeLocator{
		stores: map[string][]locator.Store{
			"walmart": {{Retailer: "walmart", StoreID: "2280"}},
		},
		errs: map[string]error{
			"homedepot": errors.New("store finder unreachable"),
		},
	}
	scr := &fakeScraper{items: map[string][]scraper.Item{}}
	repo := newFakeRepo()
	o := testOrchestrator(t, loc, scr, &fakeComparer{quotes: map[string]marketplace.Quote{}}, repo)

	id, err := o.Start(context.Background(), Params{Zip: "07094", Retailers: []string{"walmart", "homedepot"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st := waitTerminal(t, o, id)
	if st.Status != StatusCompleted {
		t.Fatalf("status = %q", st.Status)
	}
	if st.StoresFound != 1 {
		t.Errorf("stores found = %d", st.StoresFound)
	}
}

func TestSearchFailsWhenNothingLocates(t *testing.T) {
	loc := &fakeLocator{errs: map[string]error{
		"walmart":   errors.New("down"),
		"homedepot": errors.New("down"),
	}}
	repo := newFakeRepo()
	o := testOrchestrator(t, loc, &fakeScraper{}, &fakeComparer{}, repo)

	id, err := o.Start(context.Background(), Params{Zip: "07094"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st := waitTerminal(t, o, id)
	if st.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", st.Status)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if rec := repo.records[id]; rec == nil || rec.Status != StatusFailed {
		t.Errorf("search record = %+v", rec)
	}
}

func TestSearchCompletesWhenAreaHasNoStores(t *testing.T) {
	// Every locator answers, each with zero stores in radius.
	loc := &fakeLocator{stores: map[string][]locator.Store{}}
	repo := newFakeRepo()
	o := testOrchestrator(t, loc, &fakeScraper{}, &fakeComparer{}, repo)

	id, err := o.Start(context.Background(), Params{Zip: "99723", Retailers: []string{"walmart", "homedepot"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st := waitTerminal(t, o, id)
	if st.Status != StatusCompleted {
		t.Fatalf("an empty area is a result, not a fault: status = %q, errors = %v", st.Status, st.Errors)
	}
	if st.StoresFound != 0 || st.ItemsFound != 0 || st.OpportunitiesFound != 0 {
		t.Errorf("counters = %+v, want all zero", st)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if rec := repo.records[id]; rec == nil || rec.Status != StatusCompleted {
		t.Errorf("search record = %+v", rec)
	}
}

func TestSearchMarketplaceFailureIsIsolated(t *testing.T) {
	quotes := map[string]marketplace.Quote{
		"amazon": {Marketplace: "amazon", Err: errors.New("blocked")},
		"ebay": {Marketplace: "ebay", Listings: []marketplace.Listing{
			{Marketplace: "ebay", ItemID: "e1", Price: 80, TotalPrice: 80},
		}},
	}
	loc := &fakeLocator{stores: map[string][]locator.Store{
		"walmart": {{Retailer: "walmart", StoreID: "2280"}},
	}}
	scr := &fakeScraper{items: map[string][]scraper.Item{
		"2280": {{Retailer: "walmart", StoreID: "2280", ProductID: "p1", Name: "Item", UPC: "036000291452", CurrentPrice: 20}},
	}}
	repo := newFakeRepo()
	o := testOrchestrator(t, loc, scr, &fakeComparer{quotes: quotes}, repo)

	id, err := o.Start(context.Background(), Params{Zip: "07094", Retailers: []string{"walmart"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st := waitTerminal(t, o, id)
	if st.Status != StatusCompleted {
		t.Fatalf("status = %q", st.Status)
	}
	if st.OpportunitiesFound != 1 {
		t.Errorf("ebay alone should still produce the opportunity, got %d", st.OpportunitiesFound)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.opportunities) != 1 || repo.opportunities[0].Marketplace != "ebay" {
		t.Errorf("opportunities = %+v", repo.opportunities)
	}
}

func TestSearchSkipsItemsWithoutUPC(t *testing.T) {
	loc := &fakeLocator{stores: map[string][]locator.Store{
		"walmart": {{Retailer: "walmart", StoreID: "2280"}},
	}}
	scr := &fakeScraper{items: map[string][]scraper.Item{
		"2280": {{Retailer: "walmart", StoreID: "2280", ProductID: "p1", Name: "No Code Item", CurrentPrice: 20}},
	}}
	repo := newFakeRepo()
	cmp := &fakeComparer{quotes: profitableQuotes()}
	o := testOrchestrator(t, loc, scr, cmp, repo)

	id, err := o.Start(context.Background(), Params{Zip: "07094", Retailers: []string{"walmart"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st := waitTerminal(t, o, id)
	if st.Status != StatusCompleted {
		t.Fatalf("status = %q", st.Status)
	}
	if st.ItemsFound != 1 {
		t.Errorf("items found = %d, the row should still be persisted", st.ItemsFound)
	}
	if st.ItemsAnalyzed != 0 || st.OpportunitiesFound != 0 {
		t.Errorf("analyzed=%d opportunities=%d, want 0/0", st.ItemsAnalyzed, st.OpportunitiesFound)
	}
	if cmp.callCount() != 0 {
		t.Errorf("marketplace lookup ran %d times for a code-less item", cmp.callCount())
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.items) != 1 {
		t.Errorf("persisted %d inventory rows, want 1", len(repo.items))
	}
}

func TestStartValidation(t *testing.T) {
	repo := newFakeRepo()
	o := testOrchestrator(t, &fakeLocator{}, &fakeScraper{}, &fakeComparer{}, repo)

	cases := []Params{
		{},                                     // missing zip
		{Zip: "07094", RadiusMiles: 500},       // beyond max radius
		{Zip: "07094", Retailers: []string{"target"}}, // unsupported
	}
	for i, params := range cases {
		if _, err := o.Start(context.Background(), params); !errs.IsConfiguration(err) {
			t.Errorf("case %d: want configuration error, got %v", i, err)
		}
	}
}

func TestRegistryTerminalStatusSticky(t *testing.T) {
	r := NewRegistry()
	r.create("s1", Params{Zip: "07094"})
	r.setStatus("s1", StatusFailed)
	r.setPhase("s1", PhaseScraping)

	st, _ := r.Get("s1")
	if st.Status != StatusFailed {
		t.Errorf("terminal status was overwritten: %q", st.Status)
	}
	if st.Finished.IsZero() {
		t.Error("finished timestamp not set")
	}
}

func TestRegistryPhaseReportsRunning(t *testing.T) {
	r := NewRegistry()
	r.create("s1", Params{Zip: "07094"})

	r.setPhase("s1", PhaseLocating)
	st, _ := r.Get("s1")
	if st.Status != StatusRunning || st.Phase != PhaseLocating {
		t.Errorf("status/phase = %q/%q, want running/locating", st.Status, st.Phase)
	}

	r.setStatus("s1", StatusCompleted)
	st, _ = r.Get("s1")
	if st.Status != StatusCompleted || st.Phase != "" {
		t.Errorf("terminal state should clear the phase: %q/%q", st.Status, st.Phase)
	}
}
