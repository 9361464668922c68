// Package errors provides severity-aware error types.
package errors

import (
	"errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// KaupaError is a structured error with context.
type KaupaError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	EntityID    string   `json:"entity_id,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

func (e *KaupaError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("[%s] %s: %s (entity: %s)", e.Severity, e.Code, e.Message, e.EntityID)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

// Error codes
const (
	ErrCodeParseFailed   = "PARSE_FAILED"
	ErrCodeLookupFailed  = "LOOKUP_FAILED"
	ErrCodeRuleNotFound  = "RULE_NOT_FOUND"
	ErrCodeOrderNotFound = "ORDER_NOT_FOUND"
	ErrCodeSinkFailed    = "SINK_FAILED"
)

// LookupError wraps a failure at the rule/order/offer store boundary.
// The engines map it to their documented fail-open defaults (0 fee,
// nil hint, empty stale result) instead of letting it propagate, which
// keeps the fallback decision visible at each call site.
type LookupError struct {
	Entity string // "delivery_rule", "order", "offers"
	Key    string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s %q: %v", e.Entity, e.Key, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// NewLookupError wraps err as a store-boundary lookup failure.
func NewLookupError(entity, key string, err error) *LookupError {
	return &LookupError{Entity: entity, Key: key, Err: err}
}

// IsLookup reports whether err is (or wraps) a LookupError.
func IsLookup(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}
