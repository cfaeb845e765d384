package client

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrCancelled is returned when the context is cancelled mid-operation.
	ErrCancelled = errors.New("operation cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents non-retryable 4xx client errors. These are
	// caller-fixable data or permission problems and are never retried.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents transient server errors (5xx, 408, 409, 425).
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport errors (timeout, connection reset).
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassNone means the attempt succeeded.
	ErrorClassNone ErrorClass = ""
)

// CatalogError carries the status and classification of a failed catalog call.
type CatalogError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CatalogError) Unwrap() error {
	return e.Err
}

// Classify categorizes one attempt. A transport error is always network;
// otherwise the status code decides.
func Classify(statusCode int, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode == http.StatusTooEarly:
		return ErrorClassServer
	case statusCode >= 500:
		return ErrorClassServer
	case statusCode >= 400:
		return ErrorClassClient
	default:
		return ErrorClassNone
	}
}

// Retryable determines whether an error class is worth another attempt.
func Retryable(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// Client errors waste the remote error budget when retried.
		return false
	}
}

// ParseRetryAfter extracts the server's retry hint from a Retry-After
// header, either delta-seconds or an HTTP date. Returns 0 when absent or
// unparseable.
func ParseRetryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		d := time.Until(at)
		if d < 0 {
			return 0
		}
		return d
	}

	return 0
}
