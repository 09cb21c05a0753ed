package fetch

import (
	"math/rand"
	"strings"
)

// Identity is one browser persona: user agent, language and viewport.
type Identity struct {
	UserAgent      string
	AcceptLanguage string
	Width          int
	Height         int
}

var viewports = []struct{ w, h int }{
	{1920, 1080},
	{1920, 1080},
	{1680, 1050},
	{1536, 864},
	{1440, 900},
}

// pickIdentity pairs a random configured user agent with a random
// common desktop viewport.
func (s *Service) pickIdentity() Identity {
	uas := s.cfg.Scraper.UserAgents
	ua := ""
	if len(uas) > 0 {
		ua = uas[rand.Intn(len(uas))]
	}

	w := s.cfg.Browser.ViewportWidth
	h := s.cfg.Browser.ViewportHeight
	if w <= 0 || h <= 0 {
		vp := viewports[rand.Intn(len(viewports))]
		w, h = vp.w, vp.h
	}

	return Identity{
		UserAgent:      ua,
		AcceptLanguage: "en-US,en;q=0.9",
		Width:          w,
		Height:         h,
	}
}

// Challenge pages announce themselves in the title well before the
// body finishes rendering; body markers are the fallback.
var (
	blockedTitleMarkers = []string{
		"access denied",
		"attention required",
		"robot or human",
		"are you a robot",
		"robot check",
		"pardon our interruption",
	}
	// Specific markers first so the reported marker names the vendor
	// when one matches; the bare "captcha" catches the rest.
	blockedBodyMarkers = []string{
		"verify you are human",
		"are you a robot",
		"robot or human?",
		"robot check",
		"unusual traffic from your computer",
		"press & hold",
		"px-captcha",
		"cf-challenge",
		"challenge-form",
		"request blocked",
		"captcha",
	}
)

// DetectBlock scans the page title and HTML for bot-challenge
// markers, case-insensitively. It returns the first matching marker.
func DetectBlock(title, html string) (string, bool) {
	lowerTitle := strings.ToLower(title)
	for _, m := range blockedTitleMarkers {
		if strings.Contains(lowerTitle, m) {
			return m, true
		}
	}

	lowerHTML := strings.ToLower(html)
	for _, m := range blockedBodyMarkers {
		if strings.Contains(lowerHTML, m) {
			return m, true
		}
	}
	return "", false
}
