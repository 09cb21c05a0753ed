package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var priceRe = regexp.MustCompile(`\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

// ParsePrice pulls the first dollar amount out of arbitrary price
// text. Listing pages wrap prices in labels ("Now $24.99", "current
// price $24.99") and ranges ("$24.99 - $34.99"); the first amount is
// the one that matters in every observed variant.
func ParsePrice(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("empty price text")
	}

	match := priceRe.FindStringSubmatch(text)
	if match == nil {
		return 0, fmt.Errorf("no price in %q", text)
	}

	cleaned := strings.ReplaceAll(match[1], ",", "")
	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", cleaned, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("negative price %v", val)
	}
	return val, nil
}
