// Package fetch drives a headless Chrome instance through go-rod and
// returns rendered HTML for retailer and marketplace pages. It owns
// identity rotation, pacing, resource blocking and bot-challenge
// detection; callers get back HTML or a classified error.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/config"
)

const (
	browserInitTimeout    = 30 * time.Second
	browserHealthInterval = 30 * time.Second
	browserHealthTimeout  = 5 * time.Second
	pageCreateTimeout     = 10 * time.Second
	stealthScriptTimeout  = 5 * time.Second
	loadWaitTimeout       = 30 * time.Second
	idleWaitTimeout       = 15 * time.Second
	selectorWaitTimeout   = 10 * time.Second
	scrollWaitInterval    = 500 * time.Millisecond
)

// Service owns one rod.Browser and paces every page it opens.
// Concurrency is bounded by a semaphore sized from the browser
// configuration, so callers can fan out freely.
type Service struct {
	browser *rod.Browser
	logger  *slog.Logger
	cfg     *config.Config
	sem     chan struct{}
	mu      sync.RWMutex

	bgCtx    context.Context
	bgCancel context.CancelFunc

	stats fetchStats
}

type fetchStats struct {
	TotalFetches   atomic.Int64
	TotalSucceeded atomic.Int64
	TotalFailed    atomic.Int64
	TotalBlocked   atomic.Int64
	TotalRetries   atomic.Int64
}

// Stats is a point-in-time snapshot of the service counters.
type Stats struct {
	TotalFetches   int64
	TotalSucceeded int64
	TotalFailed    int64
	TotalBlocked   int64
	TotalRetries   int64
}

// NewService launches the browser and returns a ready service. A
// background goroutine restarts the browser if it stops responding.
func NewService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	initCtx, cancel := context.WithTimeout(ctx, browserInitTimeout)
	defer cancel()

	browser, err := startBrowser(initCtx, cfg, logger)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Browser.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Service{
		browser:  browser,
		logger:   logger,
		cfg:      cfg,
		sem:      make(chan struct{}, concurrency),
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}

	go s.healthCheckLoop(bgCtx)

	logger.Info("fetch service initialized",
		slog.Int("max_concurrent_pages", concurrency),
		slog.Duration("page_timeout", cfg.Browser.PageTimeout))
	return s, nil
}

// startBrowser launches Chrome with flags tuned for container
// environments. When no binary is configured the default one is
// downloaded on first use.
func startBrowser(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*rod.Browser, error) {
	bin := cfg.Browser.BinPath
	if bin == "" {
		logger.Info("no browser binary specified, downloading default...")
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, fmt.Errorf("download browser: %w", err)
		}
		bin = path
	}

	l := launcher.New().
		Headless(cfg.Browser.Headless).
		Bin(bin).
		NoSandbox(true).
		Set("disable-dev-shm-usage", "true").
		Set("disable-gpu", "true").
		Set("disable-software-rasterizer", "true").
		Set("disable-blink-features", "AutomationControlled").
		Set("remote-allow-origins", "*").
		Set("disk-cache-size", "1").
		Set("media-cache-size", "1").
		Set("disable-application-cache", "true").
		Set("js-flags", "--max_old_space_size=512")

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().Context(ctx).ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	logger.Info("browser started", slog.String("bin", bin), slog.Bool("headless", cfg.Browser.Headless))
	return browser, nil
}

func (s *Service) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(browserHealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.checkBrowserHealth(ctx) {
				s.logger.Warn("browser health check failed, restarting browser instance")
				if err := s.restartBrowser(ctx); err != nil {
					s.logger.Error("failed to restart browser", slog.String("error", err.Error()))
				} else {
					s.logger.Info("browser instance restarted")
				}
			}
		}
	}
}

// checkBrowserHealth opens a blank page and evaluates trivial JS.
func (s *Service) checkBrowserHealth(ctx context.Context) bool {
	s.mu.RLock()
	browser := s.browser
	s.mu.RUnlock()
	if browser == nil {
		return false
	}

	healthCtx, cancel := context.WithTimeout(ctx, browserHealthTimeout)
	defer cancel()

	page, err := browser.Context(healthCtx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return false
	}
	defer func() {
		if page != nil {
			_ = page.Close()
		}
	}()

	_, err = page.Eval("() => document.title")
	return err == nil
}

func (s *Service) restartBrowser(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Warn("close old browser failed", slog.String("error", err.Error()))
		}
		s.browser = nil
	}

	initCtx, cancel := context.WithTimeout(ctx, browserInitTimeout)
	defer cancel()
	newBrowser, err := startBrowser(initCtx, s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("start new browser: %w", err)
	}
	s.browser = newBrowser
	return nil
}

func (s *Service) currentBrowser() *rod.Browser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.browser
}

// Stats returns the fetch counters.
func (s *Service) Stats() Stats {
	return Stats{
		TotalFetches:   s.stats.TotalFetches.Load(),
		TotalSucceeded: s.stats.TotalSucceeded.Load(),
		TotalFailed:    s.stats.TotalFailed.Load(),
		TotalBlocked:   s.stats.TotalBlocked.Load(),
		TotalRetries:   s.stats.TotalRetries.Load(),
	}
}

// Shutdown stops the health check and closes the browser.
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down fetch service...")

	if s.bgCancel != nil {
		s.bgCancel()
	}

	s.mu.Lock()
	browser := s.browser
	s.browser = nil
	s.mu.Unlock()
	if browser != nil {
		if err := browser.Close(); err != nil {
			s.logger.Error("close browser failed", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("fetch service shutdown completed",
		slog.Int64("total_fetches", s.stats.TotalFetches.Load()),
		slog.Int64("total_succeeded", s.stats.TotalSucceeded.Load()),
		slog.Int64("total_failed", s.stats.TotalFailed.Load()),
		slog.Int64("total_blocked", s.stats.TotalBlocked.Load()))
	return nil
}
