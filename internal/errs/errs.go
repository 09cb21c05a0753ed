// Package errs defines the error taxonomy shared by the fetch client,
// scrapers, marketplace clients and the orchestrator. Classification
// drives retry decisions and metric labels, so every outbound-facing
// component converts raw failures into one of these types at the edge.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// BlockedError means a bot-challenge interstitial was detected. The
// source is unusable for this attempt; callers must not retry in-call.
type BlockedError struct {
	URL    string
	Marker string
}

func (e *BlockedError) Error() string {
	if e.Marker != "" {
		return fmt.Sprintf("blocked: challenge marker %q at %s", e.Marker, e.URL)
	}
	return fmt.Sprintf("blocked: challenge detected at %s", e.URL)
}

// TimeoutError means a bounded wait was exceeded. Transient, retryable.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// NetworkError covers connection-level failures. Transient, retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means a scraped payload did not match the expected
// structure. The offending page or item is dropped; siblings continue.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("parse %s: structure mismatch", e.What)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid option or threshold. It fails
// the call immediately and is never silently defaulted.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Retryable reports whether a failed fetch may be attempted again.
// Blocked sources and structural mismatches never benefit from a
// retry; only transient transport failures do.
func Retryable(err error) bool {
	return IsTimeout(err) || IsNetwork(err)
}

// Classify maps an error to a short label for logs and metrics.
// Typed errors are matched first; untyped errors fall back to keyword
// matching so failures surfaced by third-party layers still land in a
// usable bucket.
func Classify(err error) string {
	if err == nil {
		return "none"
	}
	switch {
	case IsBlocked(err):
		return "blocked"
	case IsTimeout(err):
		return "timeout"
	case IsNetwork(err):
		return "network"
	case IsParse(err):
		return "parse"
	case IsConfiguration(err):
		return "config"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "captcha"),
		strings.Contains(msg, "challenge"),
		strings.Contains(msg, "blocked"),
		strings.Contains(msg, "forbidden"):
		return "blocked"
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "refused"),
		strings.Contains(msg, "reset by peer"):
		return "network"
	case strings.Contains(msg, "parse"),
		strings.Contains(msg, "unmarshal"),
		strings.Contains(msg, "unexpected end"):
		return "parse"
	}
	return "unknown"
}
