package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrConnection is returned when the API could not be reached.
	ErrConnection = errors.New("seller API connection failed")

	// ErrBadResponse is returned for non-2xx responses.
	ErrBadResponse = errors.New("seller API bad response")

	// ErrParse is returned when a 2xx response body cannot be decoded or
	// lacks a required field.
	ErrParse = errors.New("seller API response parse failed")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassParse represents undecodable 2xx bodies.
	ErrorClassParse ErrorClass = "parse"
)

// APIError is a failed seller API call. It unwraps to ErrConnection,
// ErrBadResponse or ErrParse.
type APIError struct {
	Endpoint   string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s: %v", e.Endpoint, e.ErrorClass, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s error (status %d): %s: %v",
		e.Endpoint, e.ErrorClass, e.StatusCode, e.Message, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classOf returns the class of err, or "" when err is not an *APIError.
func classOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// classifyStatus maps a non-2xx HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx and parse failures repeat identically
		return false
	}
}
