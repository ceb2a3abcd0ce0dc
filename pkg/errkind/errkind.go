// Package errkind classifies MixSeek failures into the kinds the round
// controller uses to decide whether an error fails a round, fails a team,
// or is retryable. Errors carry a Kind plus a wrapped cause; callers
// classify with Of and errors.Is/As.
package errkind

import (
	"context"
	"errors"
	"fmt"
)

// Kind tags an error with its failure class.
type Kind int

const (
	// Unknown is the zero value for unclassified errors.
	Unknown Kind = iota
	// Configuration covers missing required fields, invalid values, and
	// unresolvable config references. Surfaced at startup.
	Configuration
	// Authentication covers missing or rejected provider credentials.
	// Never retried.
	Authentication
	// ProviderTransient covers 429/5xx/network/read-timeout provider
	// failures. Retried per policy.
	ProviderTransient
	// ProviderPermanent covers 4xx schema errors and unsupported
	// capabilities. Fails the current phase.
	ProviderPermanent
	// Evaluation covers malformed or out-of-range judge scores after
	// retries. Fails the round.
	Evaluation
	// Judgment covers continuation-judge failures. Fails the team.
	Judgment
	// StoreTransient covers retryable store read/write failures.
	StoreTransient
	// StorePermanent covers constraint violations and corruption.
	StorePermanent
	// Timeout means a deadline expired; it fails the scope the deadline
	// applied to (round or team).
	Timeout
	// Cancelled is propagated cancellation, the clean exit path.
	Cancelled
)

// String returns the kind's wire name as persisted in team statuses.
func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Authentication:
		return "authentication"
	case ProviderTransient:
		return "provider_transient"
	case ProviderPermanent:
		return "provider_permanent"
	case Evaluation:
		return "evaluation"
	case Judgment:
		return "judgment"
	case StoreTransient:
		return "store_transient"
	case StorePermanent:
		return "store_permanent"
	case Timeout:
		return "timeout"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a kind-tagged error with an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// New creates a kind-tagged error from a format string.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind and a message prefix. Returns nil if err is nil.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Of returns the kind of err. Context errors map to Timeout and
// Cancelled even when they arrive unwrapped from provider SDKs or the
// sql layer; an explicit *Error tag wins over the context mapping.
func Of(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	return Unknown
}

// IsTransient reports whether err should be retried under the provider
// or store retry policies.
func IsTransient(err error) bool {
	switch Of(err) {
	case ProviderTransient, StoreTransient:
		return true
	default:
		return false
	}
}

// FromStatus maps an HTTP status from a provider API to a kind.
// 401/403 are authentication, 408/429 and all 5xx are transient, the
// remaining 4xx are permanent.
func FromStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return Authentication
	case status == 408 || status == 429:
		return ProviderTransient
	case status >= 500:
		return ProviderTransient
	case status >= 400:
		return ProviderPermanent
	default:
		return Unknown
	}
}
