// Package store is the MySQL persistence layer. Writes use natural
// key upserts throughout: every scrape re-observes mostly known rows
// and the database, not the pipeline, resolves which observation is
// current.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/model"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&model.Store{},
		&model.InventoryItem{},
		&model.PriceComparison{},
		&model.Opportunity{},
		&model.SearchRecord{},
	)
}

// UpsertStores writes stores by (retailer, store_id), refreshing the
// mutable columns, and backfills database IDs into the slice.
func (r *Repository) UpsertStores(ctx context.Context, stores []model.Store) error {
	if len(stores) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "retailer"}, {Name: "store_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "address", "city", "state", "zip", "phone", "distance_miles", "updated_at",
		}),
	}).Create(&stores).Error
	if err != nil {
		return fmt.Errorf("upsert stores: %w", err)
	}

	for i := range stores {
		if stores[i].ID != 0 {
			continue
		}
		var existing model.Store
		if err := r.db.WithContext(ctx).
			Where("retailer = ? AND store_id = ?", stores[i].Retailer, stores[i].StoreID).
			First(&existing).Error; err == nil {
			stores[i].ID = existing.ID
		}
	}
	return nil
}

// UpsertInventoryItems writes observations by (store_id, product_id)
// and backfills IDs. An item seen again at a new price keeps one row
// with the latest prices.
func (r *Repository) UpsertInventoryItems(ctx context.Context, items []model.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "brand", "category", "upc",
			"current_price", "original_price", "discount_percent",
			"deal_type", "product_url", "active", "updated_at",
		}),
	}).Create(&items).Error
	if err != nil {
		return fmt.Errorf("upsert inventory items: %w", err)
	}

	for i := range items {
		if items[i].ID != 0 {
			continue
		}
		var existing model.InventoryItem
		if err := r.db.WithContext(ctx).
			Where("store_id = ? AND product_id = ?", items[i].StoreID, items[i].ProductID).
			First(&existing).Error; err == nil {
			items[i].ID = existing.ID
		}
	}
	return nil
}

// SaveComparisons records marketplace quotes for an item, replacing
// an existing quote for the same listing.
func (r *Repository) SaveComparisons(ctx context.Context, comps []model.PriceComparison) error {
	if len(comps) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "inventory_item_id"}, {Name: "marketplace"}, {Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "price", "shipping", "total_price", "condition", "listing_url",
		}),
	}).Create(&comps).Error
	if err != nil {
		return fmt.Errorf("save comparisons: %w", err)
	}
	return nil
}

// BestComparison returns the cheapest stored quote for an item.
func (r *Repository) BestComparison(ctx context.Context, itemID uint) (*model.PriceComparison, error) {
	var comp model.PriceComparison
	err := r.db.WithContext(ctx).
		Where("inventory_item_id = ? AND total_price > 0", itemID).
		Order("total_price ASC").
		First(&comp).Error
	if err != nil {
		return nil, err
	}
	return &comp, nil
}

// UpsertOpportunity writes the item's single opportunity row,
// refreshing the marketplace and economics on re-analysis.
func (r *Repository) UpsertOpportunity(ctx context.Context, opp *model.Opportunity) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "inventory_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"marketplace", "buy_price", "sell_price", "total_buy_cost", "total_fees",
			"net_profit", "profit_margin", "roi_percent",
			"opportunity_score", "recommendation", "updated_at",
		}),
	}).Create(opp).Error
	if err != nil {
		return fmt.Errorf("upsert opportunity: %w", err)
	}
	return nil
}

// ListOpportunities returns live opportunities, best score first.
// Zero-valued thresholds filter nothing.
func (r *Repository) ListOpportunities(ctx context.Context, minProfit, minMargin, minScore float64, limit int) ([]model.Opportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Where("dismissed = ?", false)
	if minProfit > 0 {
		q = q.Where("net_profit >= ?", minProfit)
	}
	if minMargin > 0 {
		q = q.Where("profit_margin >= ?", minMargin)
	}
	if minScore > 0 {
		q = q.Where("opportunity_score >= ?", minScore)
	}
	var opps []model.Opportunity
	err := q.
		Order("opportunity_score DESC").
		Limit(limit).
		Find(&opps).Error
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	return opps, nil
}

// DismissOpportunity hides an opportunity from listings.
func (r *Repository) DismissOpportunity(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).
		Model(&model.Opportunity{}).
		Where("id = ?", id).
		Update("dismissed", true)
	if res.Error != nil {
		return fmt.Errorf("dismiss opportunity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListStores returns known stores, optionally filtered by retailer.
func (r *Repository) ListStores(ctx context.Context, retailer string) ([]model.Store, error) {
	q := r.db.WithContext(ctx).Order("retailer, store_id")
	if retailer != "" {
		q = q.Where("retailer = ?", retailer)
	}
	var stores []model.Store
	if err := q.Find(&stores).Error; err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}

// ListInventory returns active inventory, optionally scoped to one
// store.
func (r *Repository) ListInventory(ctx context.Context, storeID string, limit int) ([]model.InventoryItem, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Where("active = ?", true).Order("updated_at DESC").Limit(limit)
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}
	var items []model.InventoryItem
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// DeactivateStaleItems marks items not re-observed within maxAge as
// inactive. Clearance stock churns fast; a listing nobody has seen
// in days is gone.
func (r *Repository) DeactivateStaleItems(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := r.db.WithContext(ctx).
		Model(&model.InventoryItem{}).
		Where("active = ? AND updated_at < ?", true, cutoff).
		Update("active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate stale items: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		r.logger.Info("stale inventory deactivated", slog.Int64("rows", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

// CreateSearchRecord persists a new search run.
func (r *Repository) CreateSearchRecord(ctx context.Context, rec *model.SearchRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create search record: %w", err)
	}
	return nil
}

// UpdateSearchRecord saves the current counters and status.
func (r *Repository) UpdateSearchRecord(ctx context.Context, rec *model.SearchRecord) error {
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("update search record: %w", err)
	}
	return nil
}

// GetSearchRecord loads a search run by its external UUID.
func (r *Repository) GetSearchRecord(ctx context.Context, searchID string) (*model.SearchRecord, error) {
	var rec model.SearchRecord
	err := r.db.WithContext(ctx).Where("search_id = ?", searchID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
