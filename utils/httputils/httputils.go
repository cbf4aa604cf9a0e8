// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils provides utility functions for working with HTTP.
package httputils

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

/////////////////////////////////////////
/// RountTrippers

// secrets matched in dumped lines: the `key` query parameter used by the
// Google APIs and the api key headers.
var secretsRegex = regexp.MustCompile(`(?i)([?&]key=)[^&\s]+|((?:x-goog-api-key|authorization):\s*).+`)

// Redact masks API keys in a dumped HTTP line.
func Redact(line string) string {
	return secretsRegex.ReplaceAllStringFunc(line, func(m string) string {
		sub := secretsRegex.FindStringSubmatch(m)
		if sub[1] != "" {
			return sub[1] + "REDACTED"
		}

		return sub[2] + "REDACTED"
	})
}

// LoggingRoundTripper adds a very primitive logging to a http transaction.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Writer    io.Writer
	DumpBody  bool
}

// reduce the content the lines.
func abbreviate(lines []string, prefix rune) []string {
	const maxLines, maxChars = 2048, 512

	for i, line := range lines {
		if i < maxLines {
			lines[i] = fmt.Sprintf("%c %s", prefix, Redact(line))
		} else {
			break
		}
	}

	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines = append(lines, "…")
	}

	for i, line := range lines {
		if len(line) > maxChars {
			lines[i] = line[0:maxChars] + "…"
		}
	}

	return lines
}

func (t *LoggingRoundTripper) dumpRequest(req *http.Request) error {
	dump, err := httputil.DumpRequestOut(req, t.DumpBody)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines := abbreviate(strings.Split(string(dump), "\n"), '>')
	lines = append(lines, "")
	_, err = fmt.Fprint(t.Writer, strings.Join(lines, "\n"))

	return err
}

func (t *LoggingRoundTripper) dumpResponse(resp *http.Response, duration time.Duration) error {
	dump, err := httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines := abbreviate(strings.Split(string(dump), "\n"), '<')

	_, err = fmt.Fprintf(t.Writer, "< RESPONSE: [%v]\n", duration)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines = append(lines, "")
	_, err = fmt.Fprint(t.Writer, strings.Join(lines, "\n"))

	return err
}

// RoundTrip implements the http.RoundTripper interface.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Writer == nil {
		return t.Transport.RoundTrip(req)
	}

	if err := t.dumpRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := t.dumpResponse(resp, time.Since(start)); err != nil {
		return nil, err
	}

	return resp, nil
}

// AppendRequestHeadersRoundTripper adds headers to the request.
type AppendRequestHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *AppendRequestHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.Transport.RoundTrip(req)

	return resp, err
}

// RateLimitedRoundTripper holds every request until the limiter grants a token.
// A nil Limiter disables throttling.
type RateLimitedRoundTripper struct {
	Transport http.RoundTripper
	Limiter   *rate.Limiter
}

// RoundTrip implements the http.RoundTripper interface.
func (t *RateLimitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	return t.Transport.RoundTrip(req)
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	// UserAgent is the User-Agent header to use in HTTP requests
	UserAgent string

	// Timeout for the whole request
	Timeout time.Duration

	// Minimum interval between two requests. Zero disables throttling.
	MinInterval time.Duration

	// Trace receives a dump of requests and responses when not nil
	Trace io.Writer

	// Include bodies in the trace
	TraceBody bool
}

// NewClient builds an http.Client with the transport chain used for provider
// calls: headers -> throttling -> tracing -> transport.
func NewClient(options *ClientOptions) *http.Client {
	if options == nil {
		options = &ClientOptions{}
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		MaxConnsPerHost:       4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	var rt http.RoundTripper = &LoggingRoundTripper{
		Writer:    options.Trace,
		DumpBody:  options.TraceBody,
		Transport: transport,
	}

	if options.MinInterval > 0 {
		rt = &RateLimitedRoundTripper{
			Limiter:   rate.NewLimiter(rate.Every(options.MinInterval), 1),
			Transport: rt,
		}
	}

	userAgent := "eaterymap/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	rt = &AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: rt,
	}

	timeout := options.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}
