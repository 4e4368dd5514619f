package client

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		contains []string
	}{
		{
			name: "bad response",
			err: &APIError{
				Endpoint:   EndpointCategoryTree,
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    `{"code":5,"message":"not found"}`,
				Err:        ErrBadResponse,
			},
			contains: []string{"/v2/category/tree", "client", "status 404", "not found"},
		},
		{
			name: "connection failure has no status",
			err: &APIError{
				Endpoint:   EndpointDictionaryValues,
				ErrorClass: ErrorClassNetwork,
				Message:    "dial tcp: connection refused",
				Err:        ErrConnection,
			},
			contains: []string{"network", "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, want it to contain %q", msg, want)
				}
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	sentinels := []error{ErrConnection, ErrBadResponse, ErrParse}

	for _, sentinel := range sentinels {
		err := fmt.Errorf("category info 1: %w", &APIError{Err: sentinel})
		if !errors.Is(err, sentinel) {
			t.Errorf("errors.Is(%v, %v) = false", err, sentinel)
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Errorf("errors.As failed for %v", err)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{400, ErrorClassClient},
		{403, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{502, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.want {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassParse, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := shouldRetry(tt.class); got != tt.want {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestClassOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &APIError{ErrorClass: ErrorClassServer, Err: ErrBadResponse})
	if got := classOf(wrapped); got != ErrorClassServer {
		t.Errorf("classOf(wrapped) = %q, want server", got)
	}
	if got := classOf(errors.New("plain")); got != "" {
		t.Errorf("classOf(plain) = %q, want empty", got)
	}
}
