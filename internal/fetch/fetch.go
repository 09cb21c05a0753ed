package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/pkg/metrics"
)

// Request describes one page to render.
type Request struct {
	URL string
	// Kind labels the target for metrics and logs, e.g. "walmart_inventory".
	Kind string
	// WaitSelector, when set, delays HTML capture until the selector
	// appears (or its timeout elapses; capture proceeds either way).
	WaitSelector string
	// Scroll triggers the configured number of scroll passes to let
	// lazy-loaded listings populate.
	Scroll bool
}

// Result is a rendered page.
type Result struct {
	HTML     string
	FinalURL string
	Title    string
	Duration time.Duration
}

// Fetcher is the page-rendering seam used by the locator, scraper
// and marketplace packages.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// High-bandwidth resources and tracking endpoints are blocked on
// every page. Keeps fetches fast and avoids feeding analytics
// beacons from an automated session.
var blockedURLPatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
	"*.avif", "*.bmp", "*.tif", "*.tiff",
	"*.woff", "*.woff2", "*.ttf", "*.eot", "*.otf",
	"*.mp4", "*.webm", "*.m4v", "*.mov", "*.avi",
	"*.mp3", "*.aac", "*.m4a", "*.ogg", "*.wav",

	"*google-analytics*",
	"*googletagmanager*",
	"*doubleclick*",
	"*criteo*",
	"*facebook*",
	"*twitter*",
	"*tiktok*",
	"*sentry*",
	"*quantummetric*",
	"*adobedtm*",
	"*demdex*",
}

// Fetch renders the page, retrying timeouts and network faults with
// exponential backoff. A detected bot challenge returns immediately:
// retrying a block with the same browser only deepens it.
func (s *Service) Fetch(ctx context.Context, req Request) (*Result, error) {
	maxRetries := s.cfg.Scraper.MaxRetries
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			s.stats.TotalRetries.Add(1)
			delay := backoffDelay(s.cfg.Scraper.RetryDelay, attempt)
			s.logger.Warn("retrying fetch",
				slog.String("kind", req.Kind),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
				slog.String("error", lastErr.Error()))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch cancelled during backoff: %w", ctx.Err())
			}
		}

		result, err := s.fetchOnce(ctx, req)
		if err == nil {
			s.stats.TotalSucceeded.Add(1)
			metrics.FetchesTotal.WithLabelValues(req.Kind, "success").Inc()
			return result, nil
		}
		lastErr = err

		if errs.IsBlocked(err) {
			s.stats.TotalBlocked.Add(1)
			metrics.FetchesTotal.WithLabelValues(req.Kind, "blocked").Inc()
			return nil, err
		}
		if !errs.Retryable(err) {
			break
		}
	}

	s.stats.TotalFailed.Add(1)
	metrics.FetchesTotal.WithLabelValues(req.Kind, errs.Classify(lastErr)).Inc()
	return nil, lastErr
}

// backoffDelay grows the retry delay exponentially: base, 2x, 4x...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > time.Minute {
			return time.Minute
		}
	}
	return d
}

func (s *Service) fetchOnce(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	s.stats.TotalFetches.Add(1)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, &errs.TimeoutError{Op: "acquire page slot", Err: ctx.Err()}
	}
	defer func() { <-s.sem }()

	// Human-ish pacing before every page open.
	if err := s.randomDelay(ctx); err != nil {
		return nil, err
	}

	browser := s.currentBrowser()
	if browser == nil {
		return nil, &errs.NetworkError{Op: "browser", Err: fmt.Errorf("not initialized")}
	}

	identity := s.pickIdentity()

	// The page inherits the full request context. The short creation
	// timeout lives only in the select below so a stuck browser does
	// not wedge the caller.
	type pageResult struct {
		page *rod.Page
		err  error
	}
	pageResultCh := make(chan pageResult, 1)
	go func() {
		page, pageErr := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: ""})
		select {
		case pageResultCh <- pageResult{page: page, err: pageErr}:
		default:
			if page != nil {
				_ = page.Close()
			}
			s.logger.Warn("page creation completed after timeout, cleaned up",
				slog.String("kind", req.Kind))
		}
	}()

	pageCreateTimer := time.NewTimer(pageCreateTimeout)
	defer pageCreateTimer.Stop()

	var basePage *rod.Page
	select {
	case result := <-pageResultCh:
		if result.err != nil {
			return nil, &errs.NetworkError{Op: "create page", Err: result.err}
		}
		basePage = result.page
	case <-pageCreateTimer.C:
		return nil, &errs.TimeoutError{Op: "create page", Err: fmt.Errorf("after %v", pageCreateTimeout)}
	case <-ctx.Done():
		return nil, &errs.TimeoutError{Op: "create page", Err: ctx.Err()}
	}

	metrics.ActivePages.Inc()
	defer func() {
		metrics.ActivePages.Dec()
		_ = basePage.Close()
	}()

	stealthTimer := time.NewTimer(stealthScriptTimeout)
	defer stealthTimer.Stop()
	stealthDone := make(chan error, 1)
	go func() {
		_, evalErr := basePage.EvalOnNewDocument(stealth.JS)
		stealthDone <- evalErr
	}()

	select {
	case err := <-stealthDone:
		if err != nil {
			return nil, &errs.NetworkError{Op: "apply stealth script", Err: err}
		}
	case <-stealthTimer.C:
		return nil, &errs.TimeoutError{Op: "apply stealth script", Err: fmt.Errorf("after %v", stealthScriptTimeout)}
	case <-ctx.Done():
		return nil, &errs.TimeoutError{Op: "apply stealth script", Err: ctx.Err()}
	}

	if err := (proto.NetworkSetBlockedURLs{Urls: blockedURLPatterns}).Call(basePage); err != nil {
		s.logger.Warn("set blocked urls failed", slog.String("error", err.Error()))
	}

	page := basePage.Timeout(s.cfg.Browser.PageTimeout)
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      identity.UserAgent,
		AcceptLanguage: identity.AcceptLanguage,
	}); err != nil {
		s.logger.Warn("set user agent failed", slog.String("error", err.Error()))
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             identity.Width,
		Height:            identity.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		s.logger.Warn("set viewport failed", slog.String("error", err.Error()))
	}

	s.logger.Debug("loading page",
		slog.String("kind", req.Kind),
		slog.String("url", req.URL))

	navigateCtx, navigateCancel := context.WithTimeout(ctx, s.cfg.Browser.PageTimeout)
	defer navigateCancel()

	navigateErrCh := make(chan error, 1)
	go func() {
		navigateErrCh <- page.Navigate(req.URL)
	}()

	select {
	case navErr := <-navigateErrCh:
		if navErr != nil {
			return nil, &errs.NetworkError{Op: "navigate", Err: navErr}
		}
	case <-navigateCtx.Done():
		return nil, &errs.TimeoutError{Op: "navigate", Err: navigateCtx.Err()}
	}

	loadCtx, loadCancel := context.WithTimeout(ctx, loadWaitTimeout)
	if err := page.Context(loadCtx).WaitLoad(); err != nil {
		s.logger.Warn("WaitLoad failed, continuing anyway",
			slog.String("kind", req.Kind),
			slog.String("error", err.Error()))
	}
	loadCancel()

	s.waitNetworkIdle(ctx, page, req.Kind)

	if req.WaitSelector != "" {
		s.waitSelector(ctx, page, req.WaitSelector, req.Kind)
	}

	if req.Scroll {
		s.scrollPage(ctx, page)
	}

	info, infoErr := page.Info()
	title := ""
	finalURL := req.URL
	if infoErr == nil {
		title = info.Title
		finalURL = info.URL
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &errs.NetworkError{Op: "capture html", Err: err}
	}

	if marker, blocked := DetectBlock(title, html); blocked {
		metrics.BlockDetectionsTotal.WithLabelValues(marker).Inc()
		s.logger.Warn("bot challenge detected",
			slog.String("kind", req.Kind),
			slog.String("url", req.URL),
			slog.String("marker", marker))
		return nil, &errs.BlockedError{URL: req.URL, Marker: marker}
	}

	duration := time.Since(start)
	metrics.FetchDuration.WithLabelValues(req.Kind).Observe(duration.Seconds())
	s.logger.Info("page fetched",
		slog.String("kind", req.Kind),
		slog.String("url", finalURL),
		slog.Duration("duration", duration))

	// Trailing pause keeps consecutive fetches from firing back to back.
	_ = s.randomDelay(ctx)

	return &Result{
		HTML:     html,
		FinalURL: finalURL,
		Title:    title,
		Duration: duration,
	}, nil
}

func (s *Service) waitNetworkIdle(ctx context.Context, page *rod.Page, kind string) {
	waitIdle := page.WaitRequestIdle(1*time.Second, nil, nil, nil)
	idleCtx, idleCancel := context.WithTimeout(ctx, idleWaitTimeout)
	defer idleCancel()
	idleDone := make(chan struct{})
	go func() {
		waitIdle()
		close(idleDone)
	}()
	select {
	case <-idleDone:
		s.logger.Debug("network idle reached", slog.String("kind", kind))
	case <-idleCtx.Done():
		s.logger.Debug("WaitRequestIdle timeout, continuing", slog.String("kind", kind))
	}
}

func (s *Service) waitSelector(ctx context.Context, page *rod.Page, selector, kind string) {
	selCtx, selCancel := context.WithTimeout(ctx, selectorWaitTimeout)
	defer selCancel()
	if _, err := page.Context(selCtx).Element(selector); err != nil {
		s.logger.Debug("wait selector not found, continuing",
			slog.String("kind", kind),
			slog.String("selector", selector))
	}
}

// scrollPage performs the configured number of incremental scrolls
// with randomized distance, pausing between passes so lazy loaders
// fire.
func (s *Service) scrollPage(ctx context.Context, page *rod.Page) {
	passes := s.cfg.Scraper.ScrollPasses
	min := s.cfg.Scraper.ScrollMinPixels
	max := s.cfg.Scraper.ScrollMaxPixels
	if max <= min {
		max = min + 1
	}

	for i := 0; i < passes; i++ {
		pixels := min + rand.Intn(max-min)
		_, _ = page.Eval(fmt.Sprintf(`() => window.scrollBy(0, %d)`, pixels))

		select {
		case <-time.After(scrollWaitInterval + time.Duration(rand.Int63n(int64(scrollWaitInterval)))):
		case <-ctx.Done():
			return
		}
	}
}

// randomDelay sleeps a uniform duration in [MinDelay, MaxDelay].
func (s *Service) randomDelay(ctx context.Context) error {
	min := s.cfg.Scraper.MinDelay
	max := s.cfg.Scraper.MaxDelay
	if min <= 0 && max <= 0 {
		return nil
	}
	if max <= min {
		max = min + time.Millisecond
	}
	delay := min + time.Duration(rand.Int63n(int64(max-min)))

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return &errs.TimeoutError{Op: "pre-fetch delay", Err: ctx.Err()}
	}
}
