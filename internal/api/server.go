// Package api exposes the HTTP surface: starting searches, polling
// their progress and browsing the stores, inventory and opportunities
// they produced.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/api/middleware"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/config"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/marketplace"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/model"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/profit"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/search"
)

// SearchService starts searches and exposes their live state.
type SearchService interface {
	Start(ctx context.Context, params search.Params) (string, error)
	Status(id string) (search.State, bool)
	List() []search.State
}

// Repository is the read/dismiss surface the handlers need.
type Repository interface {
	ListStores(ctx context.Context, retailer string) ([]model.Store, error)
	ListInventory(ctx context.Context, storeID string, limit int) ([]model.InventoryItem, error)
	ListOpportunities(ctx context.Context, minProfit, minMargin, minScore float64, limit int) ([]model.Opportunity, error)
	DismissOpportunity(ctx context.Context, id uint) error
	GetSearchRecord(ctx context.Context, searchID string) (*model.SearchRecord, error)
}

// Comparer answers ad-hoc price checks.
type Comparer interface {
	Compare(ctx context.Context, query marketplace.Query) map[string]marketplace.Quote
}

type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *gorm.DB
	rdb      *redis.Client
	router   *gin.Engine
	searches SearchService
	repo     Repository
	comparer Comparer
	calc     *profit.Calculator
}

func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	db *gorm.DB,
	rdb *redis.Client,
	searches SearchService,
	repo Repository,
	comparer Comparer,
	calc *profit.Calculator,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		rdb:      rdb,
		router:   r,
		searches: searches,
		repo:     repo,
		comparer: comparer,
		calc:     calc,
	}
	s.registerRoutes()
	return s
}

// Run starts the HTTP listener on the configured address.
func (s *Server) Run() error {
	s.logger.Info("api server listening", slog.String("addr", s.cfg.App.HTTPAddr))
	return s.router.Run(s.cfg.App.HTTPAddr)
}

// Router returns the HTTP handler, for embedding in an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases the database and cache connections.
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else if closeErr := sqlDB.Close(); closeErr != nil && firstErr == nil {
			firstErr = closeErr
		}
	}
	return firstErr
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	v1 := s.router.Group("/api/v1")
	v1.POST("/search", s.handleStartSearch)
	v1.GET("/search", s.handleListSearches)
	v1.GET("/search/:id/status", s.handleSearchStatus)
	v1.GET("/stores", s.handleListStores)
	v1.GET("/inventory", s.handleListInventory)
	v1.GET("/opportunities", s.handleListOpportunities)
	v1.DELETE("/opportunities/:id", s.handleDismissOpportunity)
	v1.POST("/calculate-profit", s.handleCalculateProfit)
	v1.GET("/check-price", s.handleCheckPrice)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStartSearch kicks off a background search run.
//
// POST /api/v1/search
func (s *Server) handleStartSearch(c *gin.Context) {
	var params search.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.searches.Start(c.Request.Context(), params)
	if err != nil {
		if errs.IsConfiguration(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("start search failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "start search failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"search_id": id,
		"status":    search.StatusPending,
	})
}

// handleSearchStatus reports the live state of one search, falling
// back to the persisted record once it has aged out of memory.
//
// GET /api/v1/search/:id/status
func (s *Server) handleSearchStatus(c *gin.Context) {
	id := c.Param("id")

	if st, ok := s.searches.Status(id); ok {
		c.JSON(http.StatusOK, st)
		return
	}

	rec, err := s.repo.GetSearchRecord(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "search not found"})
			return
		}
		s.logger.Error("load search record failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load search failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleListSearches returns every search known in memory.
//
// GET /api/v1/search
func (s *Server) handleListSearches(c *gin.Context) {
	c.JSON(http.StatusOK, s.searches.List())
}

// handleListStores returns discovered stores.
//
// GET /api/v1/stores?retailer=walmart
func (s *Server) handleListStores(c *gin.Context) {
	stores, err := s.repo.ListStores(c.Request.Context(), c.Query("retailer"))
	if err != nil {
		s.logger.Error("list stores failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list stores failed"})
		return
	}
	if stores == nil {
		stores = []model.Store{}
	}
	c.JSON(http.StatusOK, stores)
}

// handleListInventory returns active discounted inventory.
//
// GET /api/v1/inventory?store_id=2280&limit=50
func (s *Server) handleListInventory(c *gin.Context) {
	limit := parseQueryInt(c, "limit", 100)
	items, err := s.repo.ListInventory(c.Request.Context(), c.Query("store_id"), limit)
	if err != nil {
		s.logger.Error("list inventory failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list inventory failed"})
		return
	}
	if items == nil {
		items = []model.InventoryItem{}
	}
	c.JSON(http.StatusOK, items)
}

// handleListOpportunities returns live opportunities, best first.
//
// GET /api/v1/opportunities?min_profit=5&min_margin=20&min_score=50&limit=20
func (s *Server) handleListOpportunities(c *gin.Context) {
	minProfit := parseQueryFloat(c, "min_profit", 0)
	minMargin := parseQueryFloat(c, "min_margin", 0)
	minScore := parseQueryFloat(c, "min_score", 0)
	limit := parseQueryInt(c, "limit", 50)

	opps, err := s.repo.ListOpportunities(c.Request.Context(), minProfit, minMargin, minScore, limit)
	if err != nil {
		s.logger.Error("list opportunities failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list opportunities failed"})
		return
	}
	if opps == nil {
		opps = []model.Opportunity{}
	}
	c.JSON(http.StatusOK, opps)
}

// handleDismissOpportunity hides an opportunity from listings.
//
// DELETE /api/v1/opportunities/:id
func (s *Server) handleDismissOpportunity(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid opportunity id"})
		return
	}

	if err := s.repo.DismissOpportunity(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "opportunity not found"})
			return
		}
		s.logger.Error("dismiss opportunity failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dismiss failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"dismissed": id})
}

type calculateProfitRequest struct {
	BuyPrice        float64 `json:"buy_price" binding:"required"`
	SellPrice       float64 `json:"sell_price" binding:"required"`
	Marketplace     string  `json:"marketplace"`
	Category        string  `json:"category"`
	ExcludeShipping bool    `json:"exclude_shipping"`
}

// handleCalculateProfit runs the fee model on a single pairing.
//
// POST /api/v1/calculate-profit
func (s *Server) handleCalculateProfit(c *gin.Context) {
	var req calculateProfitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.BuyPrice <= 0 || req.SellPrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prices must be positive"})
		return
	}
	mkt := req.Marketplace
	if mkt == "" {
		mkt = profit.MarketplaceAmazon
	}
	if mkt != profit.MarketplaceAmazon && mkt != profit.MarketplaceEBay {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported marketplace"})
		return
	}

	analysis := s.calc.Analyze(req.BuyPrice, req.SellPrice, mkt, req.Category, !req.ExcludeShipping)
	c.JSON(http.StatusOK, analysis)
}

type priceCheckQuote struct {
	Listings []marketplace.Listing `json:"listings"`
	Error    string                `json:"error,omitempty"`
}

// handleCheckPrice looks one product up across marketplaces without
// running a full search.
//
// GET /api/v1/check-price?upc=...&name=...
func (s *Server) handleCheckPrice(c *gin.Context) {
	upc := c.Query("upc")
	name := c.Query("name")
	if upc == "" && name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upc or name is required"})
		return
	}

	quotes := s.comparer.Compare(c.Request.Context(), marketplace.Query{UPC: upc, Name: name})

	out := make(map[string]priceCheckQuote, len(quotes))
	for name, quote := range quotes {
		pq := priceCheckQuote{Listings: quote.Listings}
		if pq.Listings == nil {
			pq.Listings = []marketplace.Listing{}
		}
		if quote.Err != nil {
			pq.Error = quote.Err.Error()
		}
		out[name] = pq
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	iv, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return iv
}

func parseQueryFloat(c *gin.Context, key string, def float64) float64 {
	val := c.Query(key)
	if val == "" {
		return def
	}
	fv, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return fv
}
