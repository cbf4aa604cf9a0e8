// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package httputils

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// dummyRoundTripper is useful to simulate a response.
type dummyRoundTripper struct {
	response *http.Response
	calls    int
}

func (d *dummyRoundTripper) RoundTrip(_ *http.Request) (*http.Response, error) {
	d.calls++

	if d.response != nil {
		return d.response, nil
	}

	return nil, nil
}

func okResponse(body string) *http.Response {
	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

//////////////////////////////////
// Test LoggingRoundTripper

// TestLoggingRoundTripper verifies that the LoggingRoundTripper logs both the request and
// the response (including timing information).
func TestLoggingRoundTripper(t *testing.T) {
	var logBuffer bytes.Buffer

	lt := &LoggingRoundTripper{
		Transport: &dummyRoundTripper{response: okResponse("response body")},
		Writer:    &logBuffer,
		DumpBody:  true,
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/abc?location=1,2&key=SECRET", nil)
	require.NoError(t, err)
	req.Header.Set("X-Goog-Api-Key", "ANOTHER-SECRET")

	_, err = lt.RoundTrip(req)
	require.NoError(t, err)

	logContent := logBuffer.String()
	assert.Contains(t, logContent, "> GET /abc?location=1,2&key=REDACTED HTTP/1.1")
	assert.Contains(t, logContent, "< RESPONSE: [")
	assert.Contains(t, logContent, "response body")
	assert.NotContains(t, logContent, "SECRET")
}

func TestLoggingRoundTripperWithoutWriter(t *testing.T) {
	drt := &dummyRoundTripper{response: okResponse("")}
	lt := &LoggingRoundTripper{Transport: drt}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	_, err = lt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, 1, drt.calls)
}

func TestRedact(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"GET /json?key=abc&radius=3000 HTTP/1.1", "GET /json?key=REDACTED&radius=3000 HTTP/1.1"},
		{"GET /json?radius=3000&key=abc HTTP/1.1", "GET /json?radius=3000&key=REDACTED HTTP/1.1"},
		{"X-Goog-Api-Key: abc", "X-Goog-Api-Key: REDACTED"},
		{"Authorization: Bearer abc", "Authorization: REDACTED"},
		{"GET /json?monkey=1 HTTP/1.1", "GET /json?monkey=1 HTTP/1.1"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, Redact(tc.input))
		})
	}
}

//////////////////////////////////
// Test AppendRequestHeadersRoundTripper

// dummyHeadersRoundTripper is used to verify that the headers are added.
type dummyHeadersRoundTripper struct {
	lastRequest *http.Request
}

func (d *dummyHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	d.lastRequest = req

	return okResponse(""), nil
}

func TestAppendRequestHeadersRoundTripper(t *testing.T) {
	dummy := &dummyHeadersRoundTripper{}
	atr := &AppendRequestHeadersRoundTripper{
		Transport: dummy,
		Headers:   map[string]string{"X-Test-Header": "TestValue"},
	}

	req, err := http.NewRequest(http.MethodPost, "http://example.org", nil)
	require.NoError(t, err)
	require.Empty(t, req.Header.Get("X-Test-Header"))

	_, err = atr.RoundTrip(req)
	require.NoError(t, err)
	require.NotNil(t, dummy.lastRequest)
	assert.Equal(t, "TestValue", dummy.lastRequest.Header.Get("X-Test-Header"))
}

//////////////////////////////////
// Test RateLimitedRoundTripper

func TestRateLimitedRoundTripperSpacesRequests(t *testing.T) {
	const interval = 50 * time.Millisecond

	drt := &dummyRoundTripper{response: okResponse("")}
	rt := &RateLimitedRoundTripper{
		Transport: drt,
		Limiter:   rate.NewLimiter(rate.Every(interval), 1),
	}

	start := time.Now()

	for range 3 {
		req, err := http.NewRequest(http.MethodGet, "http://example.org", nil)
		require.NoError(t, err)

		_, err = rt.RoundTrip(req)
		require.NoError(t, err)
	}

	// first request is free, the next two wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 2*interval-5*time.Millisecond)
	assert.Equal(t, 3, drt.calls)
}

func TestRateLimitedRoundTripperHonoursContext(t *testing.T) {
	drt := &dummyRoundTripper{response: okResponse("")}
	rt := &RateLimitedRoundTripper{
		Transport: drt,
		Limiter:   rate.NewLimiter(rate.Every(time.Hour), 1),
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.org", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, "http://example.org", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 1, drt.calls)
}

func TestNewClientSetsUserAgent(t *testing.T) {
	var gotUA string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(&ClientOptions{UserAgent: "eaterymap/test"})

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "eaterymap/test", gotUA)
}
