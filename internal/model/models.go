package model

import (
	"time"
)

// Store is a physical retail location discovered by a search.
// (Retailer, StoreID) is the natural key: the same store reappears
// across searches and must upsert, not duplicate.
type Store struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Retailer string `gorm:"type:varchar(32);not null;uniqueIndex:idx_retailer_store"`
	StoreID  string `gorm:"type:varchar(32);not null;uniqueIndex:idx_retailer_store"`
	Name     string
	Address  string
	City     string `gorm:"type:varchar(64)"`
	State    string `gorm:"type:varchar(8)"`
	Zip      string `gorm:"type:varchar(16)"`
	Phone    string `gorm:"type:varchar(32)"`

	DistanceMiles float64
}

// InventoryItem is one discounted product observed in one store.
// Re-observing the same (store, product) updates prices in place.
type InventoryItem struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time // first observed
	UpdatedAt time.Time // last observed

	Retailer  string `gorm:"type:varchar(32);not null"`
	StoreID   string `gorm:"type:varchar(32);not null;uniqueIndex:idx_store_product"`
	ProductID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_store_product"`

	Name     string
	Brand    string `gorm:"type:varchar(128)"`
	Category string `gorm:"type:varchar(128)"`
	UPC      string `gorm:"type:varchar(14);index"`

	CurrentPrice    float64
	OriginalPrice   float64
	DiscountPercent float64
	DealType        string `gorm:"type:varchar(16)"`
	ProductURL      string

	Active bool `gorm:"default:true;index"` // false once the listing goes stale
}

// PriceComparison is one marketplace quote for an inventory item at
// lookup time. Kept per (item, marketplace, listing) so the top
// quotes of a search survive for later inspection.
type PriceComparison struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time

	InventoryItemID uint   `gorm:"not null;uniqueIndex:idx_item_listing"`
	Marketplace     string `gorm:"type:varchar(16);not null;uniqueIndex:idx_item_listing"`
	ListingID       string `gorm:"type:varchar(64);not null;uniqueIndex:idx_item_listing"`

	Title      string
	Price      float64
	Shipping   float64
	TotalPrice float64
	Condition  string `gorm:"type:varchar(32)"`
	ListingURL string
}

// Opportunity is a priced arbitrage candidate: buy the inventory
// item, sell on the named marketplace. One row per item, holding the
// best marketplace and refreshed whenever the item is re-analyzed.
type Opportunity struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	InventoryItemID uint   `gorm:"not null;uniqueIndex"`
	Marketplace     string `gorm:"type:varchar(16);not null"`

	BuyPrice         float64
	SellPrice        float64
	TotalBuyCost     float64
	TotalFees        float64
	NetProfit        float64
	ProfitMargin     float64
	ROIPercent       float64
	OpportunityScore float64 `gorm:"index"`
	Recommendation   string

	Dismissed bool `gorm:"default:false;index"`
}

// SearchRecord tracks one end-to-end discovery run.
type SearchRecord struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	SearchID string `gorm:"type:varchar(36);uniqueIndex;not null"` // external UUID
	Zip      string `gorm:"type:varchar(16);not null"`
	Radius   float64
	Status   string `gorm:"type:varchar(16);default:pending"`

	StoresFound       int
	StoresScraped     int
	StoresFailed      int
	ItemsFound        int
	ItemsAnalyzed     int
	OpportunitiesHit  int
	FailureDetail     string
	StartedAt         *time.Time
	CompletedAt       *time.Time
	DurationSeconds   float64
	RetailersSearched string // comma separated
}
