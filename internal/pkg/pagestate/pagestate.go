// Package pagestate extracts JSON state objects embedded in rendered
// HTML, e.g. window.__INITIAL_STATE__ assignments or the Next.js
// __NEXT_DATA__ script payload.
package pagestate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
)

// ExtractAssigned finds `marker` in the HTML (typically a global like
// "__INITIAL_STATE__"), skips to the first "{" after it, and returns
// the balanced JSON object that starts there. A regexp cannot do this
// because the object nests arbitrarily and contains brace characters
// inside string values.
func ExtractAssigned(html, marker string) (json.RawMessage, error) {
	idx := strings.Index(html, marker)
	if idx < 0 {
		return nil, &errs.ParseError{What: marker, Err: fmt.Errorf("marker not found")}
	}

	start := strings.IndexByte(html[idx:], '{')
	if start < 0 {
		return nil, &errs.ParseError{What: marker, Err: fmt.Errorf("no object after marker")}
	}
	start += idx

	obj, err := balancedObject(html[start:])
	if err != nil {
		return nil, &errs.ParseError{What: marker, Err: err}
	}
	if !json.Valid([]byte(obj)) {
		return nil, &errs.ParseError{What: marker, Err: fmt.Errorf("extracted object is not valid JSON")}
	}
	return json.RawMessage(obj), nil
}

// ExtractScript returns the JSON body of a <script> tag selected by
// id, e.g. "__NEXT_DATA__".
func ExtractScript(html, scriptID string) (json.RawMessage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &errs.ParseError{What: scriptID, Err: err}
	}

	text := strings.TrimSpace(doc.Find("script#" + scriptID).First().Text())
	if text == "" {
		return nil, &errs.ParseError{What: scriptID, Err: fmt.Errorf("script tag not found or empty")}
	}
	if !json.Valid([]byte(text)) {
		return nil, &errs.ParseError{What: scriptID, Err: fmt.Errorf("script body is not valid JSON")}
	}
	return json.RawMessage(text), nil
}

// balancedObject returns the prefix of s forming one complete JSON
// object, tracking string literals and escapes so braces inside
// values do not unbalance the count.
func balancedObject(s string) (string, error) {
	if len(s) == 0 || s[0] != '{' {
		return "", fmt.Errorf("input does not start with an object")
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated object")
}
