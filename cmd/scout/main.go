package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/api"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/config"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/fetch"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/locator"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/marketplace"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/dedup"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/logger"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/metrics"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/notify"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/queue"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/ratelimit"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/profit"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/scraper"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/search"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)
	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		appLogger.Error("connect mysql failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	repo := store.NewRepository(db, appLogger)
	if err := repo.AutoMigrate(); err != nil {
		appLogger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Error("connect redis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fetchSvc, err := fetch.NewService(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("init browser failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	loc := locator.NewService(fetchSvc, appLogger)
	scr := scraper.NewService(fetchSvc, appLogger)

	engine := marketplace.NewEngine(appLogger,
		marketplace.NewAmazonClient(fetchSvc, cfg.Marketplace, appLogger),
		marketplace.NewEBayClient(cfg.Marketplace, appLogger),
	)
	for _, name := range []string{profit.MarketplaceAmazon, profit.MarketplaceEBay} {
		engine.SetLimiter(name, ratelimit.NewRedisRateLimiter(
			rdb, appLogger, ratelimit.KeyFor(name),
			cfg.Marketplace.RequestsPerSec, cfg.Marketplace.Burst))
	}

	var deduper *dedup.Deduplicator
	if cfg.Scraper.DedupWindow > 0 {
		deduper = dedup.NewDeduplicator(rdb, cfg.Scraper.DedupWindow)
	}

	pool := queue.NewPool(appLogger, cfg.Search.WorkerPoolSize, cfg.Search.QueueCapacity)
	pool.Start(ctx)

	calc := profit.NewCalculator(cfg.Profit)
	orchestrator := search.NewOrchestrator(cfg, appLogger, loc, scr, engine, calc, repo, deduper, pool)
	if cfg.Email.SMTPHost != "" {
		orchestrator.SetNotifier(notify.NewEmailNotifier(cfg.Email, appLogger))
	}

	if cfg.Search.StaleItemAge > 0 {
		go sweepStaleInventory(ctx, repo, cfg.Search.StaleItemAge, appLogger)
	}

	srv := api.NewServer(cfg, appLogger, db, rdb, orchestrator, repo, engine, calc)
	httpServer := &http.Server{
		Addr:    cfg.App.HTTPAddr,
		Handler: srv.Router(),
	}

	go func() {
		appLogger.Info("api server listening", slog.String("addr", cfg.App.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server run failed", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	if err := pool.ShutdownWithTimeout(25 * time.Second); err != nil {
		appLogger.Error("pool shutdown failed", slog.String("error", err.Error()))
	}
	if err := fetchSvc.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("browser shutdown failed", slog.String("error", err.Error()))
	}
	if err := srv.Close(); err != nil {
		appLogger.Error("close resources failed", slog.String("error", err.Error()))
	}
	appLogger.Info("stopped gracefully")
}

// sweepStaleInventory periodically deactivates inventory rows that no
// scrape has re-observed within maxAge.
func sweepStaleInventory(ctx context.Context, repo *store.Repository, maxAge time.Duration, logger *slog.Logger) {
	interval := maxAge / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := repo.DeactivateStaleItems(ctx, maxAge); err != nil {
				logger.Warn("stale inventory sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
