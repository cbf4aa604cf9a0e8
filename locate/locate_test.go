// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package locate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/jcodagnone/eaterymap/utils/httputils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var buenosAires = spatial.Point{Lat: -34.6037, Lng: -58.3816}

func TestResolveUsesFallbackOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		wantErr  error
	}{
		{"denied", Denied{}, ErrGeolocationDenied},
		{"unavailable", Unavailable{}, ErrGeolocationUnavailable},
		{"invalid fixed", Fixed{Lat: 123}, ErrGeolocationUnavailable},
		{"nil", nil, ErrGeolocationUnavailable},
		{"empty chain", Chain{}, ErrGeolocationUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			center, defaulted, err := Resolve(context.Background(), tt.provider, DefaultFallback)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, defaulted)
			assert.Equal(t, DefaultFallback, center)
		})
	}
}

func TestResolveFixed(t *testing.T) {
	center, defaulted, err := Resolve(context.Background(), Fixed(buenosAires), DefaultFallback)
	require.NoError(t, err)
	assert.False(t, defaulted)
	assert.Equal(t, buenosAires, center)
}

func TestChain(t *testing.T) {
	p, err := Chain{Denied{}, Fixed(buenosAires)}.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, buenosAires, p)

	_, err = Chain{Denied{}, Unavailable{}}.Locate(context.Background())
	assert.ErrorIs(t, err, ErrGeolocationDenied)
	assert.ErrorIs(t, err, ErrGeolocationUnavailable)
}

func TestIPLookup(t *testing.T) {
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","country":"Argentina","city":"Buenos Aires","lat":-34.6037,"lon":-58.3816}`))
	}))
	defer srv.Close()

	l := &IPLookup{
		Endpoint: srv.URL + "/json/",
		IP:       "200.40.30.1",
		Client:   httputils.NewClient(&httputils.ClientOptions{UserAgent: "eaterymap-test"}),
	}

	p, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, buenosAires, p)
	assert.Equal(t, "/json/200.40.30.1", path)
}

func TestIPLookupFailures(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
	}{
		{"fail status", http.StatusOK, `{"status":"fail","message":"private range"}`},
		{"http error", http.StatusTooManyRequests, ``},
		{"garbage", http.StatusOK, `<html>`},
		{"out of range", http.StatusOK, `{"status":"success","lat":95,"lon":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			center, defaulted, err := Resolve(context.Background(), &IPLookup{Endpoint: srv.URL}, DefaultFallback)
			assert.ErrorIs(t, err, ErrGeolocationUnavailable)
			assert.True(t, defaulted)
			assert.Equal(t, DefaultFallback, center)
		})
	}
}
