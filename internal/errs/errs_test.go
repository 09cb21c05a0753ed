package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyTypedErrors(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&BlockedError{URL: "https://example.com", Marker: "captcha"}, "blocked"},
		{&TimeoutError{Op: "navigate", Err: errors.New("deadline")}, "timeout"},
		{&NetworkError{Op: "dial", Err: errors.New("refused")}, "network"},
		{&ParseError{What: "item grid"}, "parse"},
		{&ConfigurationError{Field: "radius", Reason: "out of range"}, "config"},
		{nil, "none"},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestClassifyWrappedErrors(t *testing.T) {
	inner := &TimeoutError{Op: "wait load", Err: errors.New("deadline exceeded")}
	wrapped := fmt.Errorf("fetch store page: %w", inner)

	if !IsTimeout(wrapped) {
		t.Error("expected IsTimeout to see through wrapping")
	}
	if got := Classify(wrapped); got != "timeout" {
		t.Errorf("Classify = %q, want timeout", got)
	}
}

func TestClassifyKeywordFallback(t *testing.T) {
	cases := []struct {
		msg  string
		want string
	}{
		{"net: connection refused", "network"},
		{"context deadline exceeded", "timeout"},
		{"page contains CAPTCHA challenge", "blocked"},
		{"json unmarshal failed", "parse"},
		{"something odd", "unknown"},
	}
	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(&BlockedError{URL: "u"}) {
		t.Error("blocked errors must not be retryable")
	}
	if Retryable(&ParseError{What: "blob"}) {
		t.Error("parse errors must not be retryable")
	}
	if !Retryable(&TimeoutError{Op: "navigate"}) {
		t.Error("timeouts should be retryable")
	}
	if !Retryable(&NetworkError{Op: "dial"}) {
		t.Error("network errors should be retryable")
	}
}
