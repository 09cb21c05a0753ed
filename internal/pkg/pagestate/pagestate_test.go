package pagestate

import (
	"encoding/json"
	"testing"

	"github.com/jasyn807-crypto/Retail-Arbitrage-Scout/internal/errs"
)

func TestExtractAssigned(t *testing.T) {
	html := `<html><script>window.__INITIAL_STATE__ = {"storeFinder":{"stores":[{"id":"0404","name":"Midtown"}]},"note":"has } brace in string"};</script></html>`

	raw, err := ExtractAssigned(html, "__INITIAL_STATE__")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	var state struct {
		StoreFinder struct {
			Stores []struct {
				ID string `json:"id"`
			} `json:"stores"`
		} `json:"storeFinder"`
		Note string `json:"note"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(state.StoreFinder.Stores) != 1 || state.StoreFinder.Stores[0].ID != "0404" {
		t.Errorf("stores = %+v", state.StoreFinder.Stores)
	}
	if state.Note != "has } brace in string" {
		t.Errorf("brace inside string broke extraction: %q", state.Note)
	}
}

func TestExtractAssignedEscapedQuote(t *testing.T) {
	html := `var __STATE__ = {"title":"say \"hi\" {now}","n":1};`
	raw, err := ExtractAssigned(html, "__STATE__")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var v struct {
		Title string `json:"title"`
		N     int    `json:"n"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.N != 1 {
		t.Errorf("n = %d", v.N)
	}
}

func TestExtractAssignedMissingMarker(t *testing.T) {
	_, err := ExtractAssigned("<html></html>", "__INITIAL_STATE__")
	if !errs.IsParse(err) {
		t.Errorf("want parse error, got %v", err)
	}
}

func TestExtractAssignedTruncated(t *testing.T) {
	_, err := ExtractAssigned(`window.__STATE__ = {"open": {"never`, "__STATE__")
	if !errs.IsParse(err) {
		t.Errorf("want parse error for truncated object, got %v", err)
	}
}

func TestExtractScript(t *testing.T) {
	html := `<html><body><script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"count":3}}}</script></body></html>`
	raw, err := ExtractScript(html, "__NEXT_DATA__")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var v struct {
		Props struct {
			PageProps struct {
				Count int `json:"count"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Props.PageProps.Count != 3 {
		t.Errorf("count = %d", v.Props.PageProps.Count)
	}
}

func TestExtractScriptMissing(t *testing.T) {
	_, err := ExtractScript("<html><script id=\"other\">{}</script></html>", "__NEXT_DATA__")
	if !errs.IsParse(err) {
		t.Errorf("want parse error, got %v", err)
	}
}
