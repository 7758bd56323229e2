package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies backend failures for the retry policy.
type ErrorKind int

const (
	KindFatal ErrorKind = iota
	KindTransient
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// LLMError is returned by every backend.
type LLMError struct {
	Backend    string
	StatusCode int
	Kind       ErrorKind
	Err        error
}

func (e *LLMError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Backend, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an *LLMError in err's chain, or KindFatal.
func KindOf(err error) ErrorKind {
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return KindFatal
}

// IsRetryable reports whether err is a rate-limit or transient backend error.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindRateLimited || k == KindTransient
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return KindTransient
	default:
		return KindFatal
	}
}

func newStatusError(backend string, status int, err error) *LLMError {
	return &LLMError{Backend: backend, StatusCode: status, Kind: KindForStatus(status), Err: err}
}
