package scraper

import (
	"regexp"
	"strings"
)

// Barcode digit runs found in product metadata. 12 = UPC-A,
// 13 = EAN-13, 14 = GTIN-14.
var upcRe = regexp.MustCompile(`\b[0-9]{12,14}\b`)

// CleanUPC normalizes a scraped barcode to UPC-A where possible.
// EAN-13 and GTIN-14 values that merely zero-pad a UPC-A lose the
// padding; anything else is returned digits-only as-is.
func CleanUPC(raw string) string {
	digits := keepDigits(raw)
	switch len(digits) {
	case 12:
		return digits
	case 13:
		if strings.HasPrefix(digits, "0") {
			return digits[1:]
		}
		return digits
	case 14:
		if strings.HasPrefix(digits, "00") {
			return digits[2:]
		}
		return digits
	default:
		return digits
	}
}

// ValidUPCA reports whether a 12-digit code passes the UPC-A check
// digit. Odd positions (1-indexed) weigh 3.
func ValidUPCA(code string) bool {
	if len(code) != 12 {
		return false
	}
	sum := 0
	for i := 0; i < 11; i++ {
		d := int(code[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if i%2 == 0 {
			sum += d * 3
		} else {
			sum += d
		}
	}
	check := (10 - sum%10) % 10
	return int(code[11]-'0') == check
}

// ExtractUPC scans free text (titles, spec tables, URLs) for the
// first plausible barcode and returns it cleaned. Valid check digits
// win over digit runs that merely have the right length.
func ExtractUPC(text string) string {
	matches := upcRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}

	fallback := ""
	for _, m := range matches {
		cleaned := CleanUPC(m)
		if len(cleaned) == 12 && ValidUPCA(cleaned) {
			return cleaned
		}
		if fallback == "" {
			fallback = cleaned
		}
	}
	return fallback
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
