package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/config"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/locator"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/marketplace"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/model"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/dedup"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/metrics"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/notify"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/queue"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/profit"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/scraper"
)

// Locator finds stores for one retailer.
type Locator interface {
	FindStores(ctx context.Context, retailer, zip string, radius float64) ([]locator.Store, error)
}

// Scraper extracts discounted inventory from one store.
type Scraper interface {
	ScrapeStore(ctx context.Context, store locator.Store) ([]scraper.Item, error)
}

// Comparer prices one product across marketplaces.
type Comparer interface {
	Compare(ctx context.Context, query marketplace.Query) map[string]marketplace.Quote
}

// Repo is the persistence surface the pipeline writes through.
type Repo interface {
	UpsertStores(ctx context.Context, stores []model.Store) error
	UpsertInventoryItems(ctx context.Context, items []model.InventoryItem) error
	SaveComparisons(ctx context.Context, comps []model.PriceComparison) error
	UpsertOpportunity(ctx context.Context, opp *model.Opportunity) error
	CreateSearchRecord(ctx context.Context, rec *model.SearchRecord) error
	UpdateSearchRecord(ctx context.Context, rec *model.SearchRecord) error
}

// topComparisonsKept bounds how many quotes per item are persisted.
const topComparisonsKept = 3

// Orchestrator coordinates one search end to end. Failures are
// contained at the narrowest scope that can absorb them: a retailer
// that will not locate, a store that will not scrape or an item that
// will not price each cost only their own subtree. Only faults in
// the orchestrator's own bookkeeping fail the search.
type Orchestrator struct {
	cfg      *config.Config
	logger   *slog.Logger
	locator  Locator
	scraper  Scraper
	comparer Comparer
	calc     *profit.Calculator
	repo     Repo
	dedup    *dedup.Deduplicator
	pool     *queue.Pool
	registry *Registry
	notifier notify.Notifier
}

func NewOrchestrator(
	cfg *config.Config,
	logger *slog.Logger,
	loc Locator,
	scr Scraper,
	cmp Comparer,
	calc *profit.Calculator,
	repo Repo,
	dd *dedup.Deduplicator,
	pool *queue.Pool,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		locator:  loc,
		scraper:  scr,
		comparer: cmp,
		calc:     calc,
		repo:     repo,
		dedup:    dd,
		pool:     pool,
		registry: NewRegistry(),
	}
}

// SetNotifier installs an alert sink for high-scoring opportunities.
func (o *Orchestrator) SetNotifier(n notify.Notifier) {
	o.notifier = n
}

// Registry exposes search state lookups to the API layer.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Status returns a snapshot of one search.
func (o *Orchestrator) Status(id string) (State, bool) {
	return o.registry.Get(id)
}

// List returns snapshots of all known searches.
func (o *Orchestrator) List() []State {
	return o.registry.List()
}

// Start validates params, registers the search and runs the pipeline
// in the background. The returned ID is immediately queryable.
func (o *Orchestrator) Start(ctx context.Context, params Params) (string, error) {
	if err := o.normalize(&params); err != nil {
		return "", err
	}

	id := uuid.NewString()
	o.registry.create(id, params)

	now := time.Now()
	rec := &model.SearchRecord{
		SearchID:          id,
		Zip:               params.Zip,
		Radius:            params.RadiusMiles,
		Status:            StatusPending,
		StartedAt:         &now,
		RetailersSearched: strings.Join(params.Retailers, ","),
	}
	if err := o.repo.CreateSearchRecord(ctx, rec); err != nil {
		return "", err
	}

	go o.run(context.WithoutCancel(ctx), id, params, rec)
	return id, nil
}

func (o *Orchestrator) normalize(params *Params) error {
	if params.Zip == "" {
		return &errs.ConfigurationError{Field: "zip", Reason: "zip code is required"}
	}
	if params.RadiusMiles <= 0 {
		params.RadiusMiles = float64(o.cfg.Search.DefaultRadius)
	}
	if params.RadiusMiles > float64(o.cfg.Search.MaxRadius) {
		return &errs.ConfigurationError{
			Field:  "radius_miles",
			Reason: fmt.Sprintf("radius %.0f exceeds maximum %d", params.RadiusMiles, o.cfg.Search.MaxRadius),
		}
	}
	if len(params.Retailers) == 0 {
		params.Retailers = o.cfg.Search.Retailers
	}
	for _, r := range params.Retailers {
		if r != locator.RetailerWalmart && r != locator.RetailerHomeDepot {
			return &errs.ConfigurationError{Field: "retailers", Reason: fmt.Sprintf("unsupported retailer %q", r)}
		}
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, id string, params Params, rec *model.SearchRecord) {
	start := time.Now()
	log := o.logger.With(slog.String("search_id", id), slog.String("zip", params.Zip))
	log.Info("search started",
		slog.Float64("radius_miles", params.RadiusMiles),
		slog.Any("retailers", params.Retailers))

	calc := o.calc
	if params.MinProfit > 0 || params.MinMargin > 0 {
		minAmount := o.cfg.Profit.MinProfitAmount
		minMargin := o.cfg.Profit.MinProfitMargin
		if params.MinProfit > 0 {
			minAmount = params.MinProfit
		}
		if params.MinMargin > 0 {
			minMargin = params.MinMargin
		}
		calc = o.calc.WithThresholds(minAmount, minMargin)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("search panicked", slog.Any("panic", r))
			o.fail(ctx, id, rec, fmt.Sprintf("panic: %v", r))
		}
	}()

	// Phase 1: locate.
	o.registry.setPhase(id, PhaseLocating)
	stores, failedRetailers := o.locateStores(ctx, id, params, log)
	if len(stores) == 0 && failedRetailers == len(params.Retailers) {
		o.fail(ctx, id, rec, "store lookup failed for every retailer")
		metrics.SearchDuration.WithLabelValues(StatusFailed).Observe(time.Since(start).Seconds())
		return
	}
	// Locators that answered with nothing mean the area has no stores
	// in radius: an empty result, not a fault.
	o.registry.add(id, func(s *State) { s.StoresFound = len(stores) })

	if err := o.persistStores(ctx, stores); err != nil {
		// Orchestrator-level fault: nothing downstream can be recorded
		// without store rows.
		o.fail(ctx, id, rec, "persist stores: "+err.Error())
		metrics.SearchDuration.WithLabelValues(StatusFailed).Observe(time.Since(start).Seconds())
		return
	}

	// Phase 2+3: scrape each store and price its items. Store jobs
	// run on the shared worker pool; one search waits for its own
	// jobs only.
	o.registry.setPhase(id, PhaseScraping)
	var wg sync.WaitGroup
	for _, st := range stores {
		st := st
		wg.Add(1)
		job := func(jobCtx context.Context) error {
			defer wg.Done()
			o.processStore(jobCtx, id, st, calc, log)
			return nil
		}
		if err := o.pool.Enqueue(ctx, job); err != nil {
			wg.Done()
			o.registry.add(id, func(s *State) { s.StoresFailed++ })
			o.registry.recordError(id, fmt.Sprintf("%s store %s: enqueue: %v", st.Retailer, st.StoreID, err))
		}
	}

	o.registry.setPhase(id, PhaseAnalyzing)
	wg.Wait()

	// Finalize. The record is persisted before the registry flips to
	// completed so a caller who sees the terminal status never reads a
	// stale row.
	st, _ := o.registry.Get(id)
	duration := time.Since(start)

	rec.Status = StatusCompleted
	rec.StoresFound = st.StoresFound
	rec.StoresScraped = st.StoresScraped
	rec.StoresFailed = st.StoresFailed
	rec.ItemsFound = st.ItemsFound
	rec.ItemsAnalyzed = st.ItemsAnalyzed
	rec.OpportunitiesHit = st.OpportunitiesFound
	rec.FailureDetail = strings.Join(st.Errors, "; ")
	now := time.Now()
	rec.CompletedAt = &now
	rec.DurationSeconds = duration.Seconds()
	if err := o.repo.UpdateSearchRecord(ctx, rec); err != nil {
		log.Error("update search record failed", slog.String("error", err.Error()))
	}
	o.registry.setStatus(id, StatusCompleted)

	metrics.SearchDuration.WithLabelValues(StatusCompleted).Observe(duration.Seconds())
	log.Info("search completed",
		slog.Int("stores_found", st.StoresFound),
		slog.Int("stores_scraped", st.StoresScraped),
		slog.Int("stores_failed", st.StoresFailed),
		slog.Int("items_found", st.ItemsFound),
		slog.Int("opportunities", st.OpportunitiesFound),
		slog.Duration("duration", duration))
}

// locateStores queries every requested retailer. A retailer that
// fails contributes an error note and zero stores, nothing more; the
// failure count lets the caller tell "no retailer answered" apart
// from "the area has no stores".
func (o *Orchestrator) locateStores(ctx context.Context, id string, params Params, log *slog.Logger) ([]locator.Store, int) {
	var stores []locator.Store
	failed := 0
	for _, retailer := range params.Retailers {
		found, err := o.locator.FindStores(ctx, retailer, params.Zip, params.RadiusMiles)
		if err != nil {
			failed++
			log.Warn("store location failed",
				slog.String("retailer", retailer),
				slog.String("error", err.Error()))
			o.registry.recordError(id, fmt.Sprintf("%s locator: %v", retailer, err))
			continue
		}
		stores = append(stores, found...)
	}
	return stores, failed
}

func (o *Orchestrator) persistStores(ctx context.Context, stores []locator.Store) error {
	rows := make([]model.Store, 0, len(stores))
	for _, st := range stores {
		rows = append(rows, model.Store{
			Retailer:      st.Retailer,
			StoreID:       st.StoreID,
			Name:          st.Name,
			Address:       st.Address,
			City:          st.City,
			State:         st.State,
			Zip:           st.Zip,
			Phone:         st.Phone,
			DistanceMiles: st.DistanceMiles,
		})
	}
	return o.repo.UpsertStores(ctx, rows)
}

// processStore scrapes one store and analyzes everything it yields.
// Any failure here is charged to this store alone.
func (o *Orchestrator) processStore(ctx context.Context, id string, st locator.Store, calc *profit.Calculator, log *slog.Logger) {
	items, err := o.scraper.ScrapeStore(ctx, st)
	if err != nil {
		log.Warn("store scrape failed",
			slog.String("retailer", st.Retailer),
			slog.String("store_id", st.StoreID),
			slog.String("error", err.Error()))
		o.registry.add(id, func(s *State) { s.StoresFailed++ })
		o.registry.recordError(id, fmt.Sprintf("%s store %s: %v", st.Retailer, st.StoreID, err))
		return
	}

	rows := make([]model.InventoryItem, 0, len(items))
	for _, item := range items {
		rows = append(rows, model.InventoryItem{
			Retailer:        item.Retailer,
			StoreID:         item.StoreID,
			ProductID:       item.ProductID,
			Name:            item.Name,
			Brand:           item.Brand,
			Category:        item.Category,
			UPC:             item.UPC,
			CurrentPrice:    item.CurrentPrice,
			OriginalPrice:   item.OriginalPrice,
			DiscountPercent: item.DiscountPercent,
			DealType:        item.DealType,
			ProductURL:      item.ProductURL,
			Active:          true,
		})
	}
	if err := o.repo.UpsertInventoryItems(ctx, rows); err != nil {
		log.Error("persist inventory failed",
			slog.String("store_id", st.StoreID),
			slog.String("error", err.Error()))
		o.registry.add(id, func(s *State) { s.StoresFailed++ })
		o.registry.recordError(id, fmt.Sprintf("%s store %s: persist: %v", st.Retailer, st.StoreID, err))
		return
	}

	o.registry.add(id, func(s *State) {
		s.StoresScraped++
		s.ItemsFound += len(rows)
	})

	for i := range rows {
		o.analyzeItem(ctx, id, &rows[i], calc, log)
	}
}

// analyzeItem prices one inventory row across marketplaces and
// records the spread. An item that cannot price is skipped silently
// at warn level; the rest of the store continues.
func (o *Orchestrator) analyzeItem(ctx context.Context, id string, item *model.InventoryItem, calc *profit.Calculator, log *slog.Logger) {
	// Without a product code there is no safe marketplace match; the
	// row stays persisted as an inventory observation only.
	if item.UPC == "" {
		return
	}

	seen, err := o.dedup.Seen(ctx, item.StoreID, item.ProductID, item.CurrentPrice)
	if err != nil {
		log.Debug("dedup check failed, analyzing anyway", slog.String("error", err.Error()))
	} else if seen {
		return
	}

	query := marketplace.Query{UPC: item.UPC, Name: item.Name}
	quotes := o.comparer.Compare(ctx, query)

	var comps []model.PriceComparison
	var candidates []profit.Candidate
	for _, quote := range quotes {
		if quote.Err != nil {
			o.registry.recordError(id, fmt.Sprintf("%s lookup for %s: %v", quote.Marketplace, item.ProductID, quote.Err))
			continue
		}

		kept := quote.Listings
		if len(kept) > topComparisonsKept {
			kept = kept[:topComparisonsKept]
		}
		for _, l := range kept {
			comps = append(comps, model.PriceComparison{
				InventoryItemID: item.ID,
				Marketplace:     l.Marketplace,
				ListingID:       l.ItemID,
				Title:           l.Title,
				Price:           l.Price,
				Shipping:        l.Shipping,
				TotalPrice:      l.TotalPrice,
				Condition:       l.Condition,
				ListingURL:      l.URL,
			})
		}

		if sell, ok := sellPrice(quote); ok {
			candidates = append(candidates, profit.Candidate{
				Marketplace: quote.Marketplace,
				SellPrice:   sell,
			})
		}
	}

	if err := o.repo.SaveComparisons(ctx, comps); err != nil {
		log.Warn("persist comparisons failed",
			slog.String("product_id", item.ProductID),
			slog.String("error", err.Error()))
	}

	o.registry.add(id, func(s *State) { s.ItemsAnalyzed++ })

	best, ok := calc.FindBestMarketplace(item.CurrentPrice, item.Category, candidates)
	if !ok || !best.IsProfitable {
		return
	}

	opp := &model.Opportunity{
		InventoryItemID:  item.ID,
		Marketplace:      best.Marketplace,
		BuyPrice:         best.BuyPrice,
		SellPrice:        best.SellPrice,
		TotalBuyCost:     best.TotalBuyCost,
		TotalFees:        best.TotalFees,
		NetProfit:        best.NetProfit,
		ProfitMargin:     best.ProfitMargin,
		ROIPercent:       best.ROIPercent,
		OpportunityScore: best.OpportunityScore,
		Recommendation:   best.Recommendation,
	}
	if err := o.repo.UpsertOpportunity(ctx, opp); err != nil {
		log.Warn("persist opportunity failed",
			slog.String("product_id", item.ProductID),
			slog.String("error", err.Error()))
		return
	}

	o.registry.add(id, func(s *State) { s.OpportunitiesFound++ })
	metrics.OpportunitiesFoundTotal.Inc()

	if o.notifier != nil && best.OpportunityScore >= o.cfg.Email.AlertMinScore {
		alert := notify.Opportunity{
			ItemName:       item.Name,
			Retailer:       item.Retailer,
			StoreID:        item.StoreID,
			Marketplace:    best.Marketplace,
			BuyPrice:       best.BuyPrice,
			SellPrice:      best.SellPrice,
			NetProfit:      best.NetProfit,
			Score:          best.OpportunityScore,
			Recommendation: best.Recommendation,
			ProductURL:     item.ProductURL,
		}
		go func() {
			if err := o.notifier.NotifyOpportunity(ctx, alert); err != nil {
				log.Warn("opportunity alert failed", slog.String("error", err.Error()))
			}
		}()
	}

	log.Info("opportunity found",
		slog.String("product_id", item.ProductID),
		slog.String("name", item.Name),
		slog.String("marketplace", best.Marketplace),
		slog.Float64("net_profit", best.NetProfit),
		slog.Float64("score", best.OpportunityScore))
}

// sellPrice picks the realistic sale price per venue: Amazon's
// buy-box placement (first organic result), the cheapest competing
// total elsewhere.
func sellPrice(quote marketplace.Quote) (float64, bool) {
	if quote.Marketplace == "amazon" {
		return marketplace.SellEstimate(quote.Listings)
	}
	if best, ok := quote.BestPrice(); ok {
		return best.TotalPrice, true
	}
	return 0, false
}

func (o *Orchestrator) fail(ctx context.Context, id string, rec *model.SearchRecord, reason string) {
	o.registry.recordError(id, reason)

	st, _ := o.registry.Get(id)
	rec.Status = StatusFailed
	rec.FailureDetail = strings.Join(st.Errors, "; ")
	now := time.Now()
	rec.CompletedAt = &now
	if err := o.repo.UpdateSearchRecord(ctx, rec); err != nil {
		o.logger.Error("update failed search record", slog.String("error", err.Error()))
	}
	o.registry.setStatus(id, StatusFailed)
}
