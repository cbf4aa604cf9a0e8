// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package places

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{Provider: "google", Message: "nearby search request failed", Err: errors.New("boom")}
	assert.Equal(t, "google: nearby search request failed: boom", err.Error())

	err = &ProviderError{Message: "status OVER_QUERY_LIMIT"}
	assert.Equal(t, "status OVER_QUERY_LIMIT", err.Error())
}

func TestProviderErrorUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("category cafe: %w", &ProviderError{
		Type: ErrorTypeTimeout,
		Err:  context.DeadlineExceeded,
	})

	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))
	assert.True(t, IsTimeoutError(wrapped))
	assert.False(t, IsRateLimitError(wrapped))
}

func TestIsHelpersFallBackToMessage(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("HTTP 429 Too Many Requests")))
	assert.True(t, IsQuotaExceededError(errors.New("status OVER_QUERY_LIMIT")))
	assert.True(t, IsTimeoutError(errors.New("context deadline exceeded")))
	assert.False(t, IsQuotaExceededError(errors.New("connection refused")))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err      error
		expected ErrorType
	}{
		{ClassifyHTTPError("google", http.StatusTooManyRequests), ErrorTypeRateLimit},
		{ClassifyStatus("google", "OVER_QUERY_LIMIT", ""), ErrorTypeQuotaExceeded},
		{ClassifyStatus("google", "REQUEST_DENIED", ""), ErrorTypeDenied},
		{fmt.Errorf("page 2: %w", ClassifyHTTPError("overpass", http.StatusGatewayTimeout)), ErrorTypeTimeout},
		{errors.New("HTTP 429 Too Many Requests"), ErrorTypeRateLimit},
		{errors.New("context deadline exceeded"), ErrorTypeTimeout},
		{errors.New("connection refused"), ErrorTypeUnknown},
		{nil, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, KindOf(tt.err), "%v", tt.err)
	}
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		code     int
		expected ErrorType
	}{
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusForbidden, ErrorTypeDenied},
		{http.StatusUnauthorized, ErrorTypeDenied},
		{http.StatusBadRequest, ErrorTypeInvalidRequest},
		{http.StatusGatewayTimeout, ErrorTypeTimeout},
		{http.StatusBadGateway, ErrorTypeNetworkError},
		{http.StatusTeapot, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := ClassifyHTTPError("overpass", tt.code)
			assert.Equal(t, tt.expected, err.Type)
			assert.Equal(t, "overpass", err.Provider)
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	assert.Nil(t, ClassifyStatus("google", "OK", ""))
	assert.Nil(t, ClassifyStatus("google", "ZERO_RESULTS", ""))

	err := ClassifyStatus("google", "REQUEST_DENIED", "The provided API key is invalid.")
	require.NotNil(t, err)
	assert.Equal(t, ErrorTypeDenied, err.Type)
	assert.Equal(t, "google: status REQUEST_DENIED - The provided API key is invalid.", err.Error())
	assert.Equal(t, "denied", err.Type.String())
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-env")

	key, err := ResolveAPIKey(context.Background(), KeyOptions{Explicit: "from-config"})
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	key, err = ResolveAPIKey(context.Background(), KeyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	t.Setenv(APIKeyEnv, "")

	_, err = ResolveAPIKey(context.Background(), KeyOptions{DisableADC: true})
	assert.Error(t, err)
}
