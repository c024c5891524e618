package llm

import (
	"errors"
	"net/http"
	"strings"
)

// FailureReason categorizes why a completion request failed, so the
// Conversation Driver can decide retry vs. abort (spec §4.5).
type FailureReason string

const (
	FailureRateLimit      FailureReason = "rate_limit"
	FailureOverloaded     FailureReason = "overloaded" // HTTP 529
	FailureServerError    FailureReason = "server_error"
	FailureTimeout        FailureReason = "timeout"
	FailureConnection     FailureReason = "connection" // reset/refused/broken pipe
	FailureAuth           FailureReason = "auth"
	FailureInvalidRequest FailureReason = "invalid_request"
	FailureUnknown        FailureReason = "unknown"
)

// IsRetryable reports whether the Conversation Driver should retry a
// request that failed for this reason (spec §4.5: "rate limit,
// overload, and transient network errors are retried; authentication
// and invalid-request errors are not").
func (r FailureReason) IsRetryable() bool {
	switch r {
	case FailureRateLimit, FailureOverloaded, FailureServerError, FailureTimeout, FailureConnection:
		return true
	default:
		return false
	}
}

// ProviderError is a classified LLM provider failure.
type ProviderError struct {
	Reason  FailureReason
	Model   string
	Status  int
	Message string
	Cause   error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError classifies cause into a ProviderError for model.
func NewProviderError(model string, cause error) *ProviderError {
	return &ProviderError{Model: model, Cause: cause, Reason: Classify(cause), Message: errMessage(cause)}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// WithStatus reclassifies the error using an HTTP status code, taking
// precedence over the string-based classification.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	if reason := classifyStatus(status); reason != FailureUnknown {
		e.Reason = reason
	}
	return e
}

// Classify inspects an error's text for known failure signatures. Real
// HTTP-layer errors should prefer WithStatus; this is the fallback for
// errors that only expose a message (e.g. from the SDK's own wrapping).
func Classify(err error) FailureReason {
	if err == nil {
		return FailureUnknown
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return FailureTimeout
	case strings.Contains(s, "429") || strings.Contains(s, "rate limit"):
		return FailureRateLimit
	case strings.Contains(s, "529") || strings.Contains(s, "overloaded"):
		return FailureOverloaded
	case strings.Contains(s, "connection reset") || strings.Contains(s, "connection refused") || strings.Contains(s, "broken pipe") || strings.Contains(s, "eof"):
		return FailureConnection
	case strings.Contains(s, "401") || strings.Contains(s, "403") || strings.Contains(s, "unauthorized") || strings.Contains(s, "authentication"):
		return FailureAuth
	case strings.Contains(s, "400") || strings.Contains(s, "invalid_request"):
		return FailureInvalidRequest
	case strings.Contains(s, "500") || strings.Contains(s, "502") || strings.Contains(s, "503") || strings.Contains(s, "504"):
		return FailureServerError
	default:
		return FailureUnknown
	}
}

func classifyStatus(status int) FailureReason {
	switch {
	case status == http.StatusTooManyRequests:
		return FailureRateLimit
	case status == 529:
		return FailureOverloaded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailureAuth
	case status == http.StatusBadRequest:
		return FailureInvalidRequest
	case status >= 500:
		return FailureServerError
	default:
		return FailureUnknown
	}
}

// IsRetryable checks err's classification (via ProviderError if present,
// else raw classification).
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason.IsRetryable()
	}
	return Classify(err).IsRetryable()
}
