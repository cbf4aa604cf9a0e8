// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package places

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var montevideo = spatial.Point{Lat: -34.9011, Lng: -56.1645}

func ptr[T any](v T) *T { return &v }

func TestGoogleNearbySearch(t *testing.T) {
	var query map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}

		fmt.Fprint(w, `{
			"status": "OK",
			"next_page_token": "tok-2",
			"results": [
				{
					"place_id": "ChIJ1",
					"name": "Café Brasilero",
					"vicinity": "Ituzaingó 1447, Montevideo",
					"types": ["cafe", "food"],
					"geometry": {"location": {"lat": -34.9071, "lng": -56.2023}},
					"rating": 4.5,
					"user_ratings_total": 3120
				},
				{
					"place_id": "ChIJ2",
					"name": "Sin ubicación",
					"types": ["cafe"]
				}
			]
		}`)
	}))
	defer srv.Close()

	g := NewGoogleProvider("SECRET", srv.URL, srv.Client())

	page, err := g.NearbySearch(context.Background(), &Request{
		Center:   montevideo,
		Radius:   3000,
		Category: "cafe",
		Keyword:  "brasilero",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"location": "-34.901100,-56.164500",
		"radius":   "3000",
		"type":     "cafe",
		"keyword":  "brasilero",
		"key":      "SECRET",
	}, query)

	expected := &Page{
		Status:        StatusOK,
		NextPageToken: "tok-2",
		Places: []Place{
			{
				ID:          "ChIJ1",
				Name:        "Café Brasilero",
				Category:    "cafe",
				Secondary:   "Ituzaingó 1447, Montevideo",
				Position:    &spatial.Point{Lat: -34.9071, Lng: -56.2023},
				Rating:      ptr(4.5),
				RatingCount: ptr(3120),
				Provider:    GoogleProviderName,
			},
			{
				ID:       "ChIJ2",
				Name:     "Sin ubicación",
				Category: "cafe",
				Provider: GoogleProviderName,
			},
		},
	}

	if diff := cmp.Diff(expected, page); diff != "" {
		t.Errorf("page mismatch (-expected +got):\n%s", diff)
	}

	assert.True(t, page.HasMore())
	assert.False(t, page.Places[1].HasPosition())
}

func TestGoogleNearbySearchPageToken(t *testing.T) {
	var query url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()

		fmt.Fprint(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	g := NewGoogleProvider("SECRET", srv.URL, srv.Client())

	page, err := g.NearbySearch(context.Background(), &Request{
		Center:    montevideo,
		Radius:    3000,
		Category:  "restaurant",
		PageToken: "tok-2",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusZeroResults, page.Status)
	assert.False(t, page.HasMore())

	assert.Equal(t, "tok-2", query.Get("pagetoken"))
	assert.Empty(t, query.Get("location"))
	assert.Empty(t, query.Get("type"))
}

func TestGoogleNearbySearchErrors(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		expected ErrorType
	}{
		{"over query limit", http.StatusOK, `{"status":"OVER_QUERY_LIMIT"}`, ErrorTypeQuotaExceeded},
		{"denied", http.StatusOK, `{"status":"REQUEST_DENIED","error_message":"bad key"}`, ErrorTypeDenied},
		{"premature token", http.StatusOK, `{"status":"INVALID_REQUEST"}`, ErrorTypeInvalidRequest},
		{"unknown status", http.StatusOK, `{"status":"UNKNOWN_ERROR"}`, ErrorTypeUnknown},
		{"http 429", http.StatusTooManyRequests, ``, ErrorTypeRateLimit},
		{"http 503", http.StatusServiceUnavailable, ``, ErrorTypeNetworkError},
		{"garbage", http.StatusOK, `not json`, ErrorTypeMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			g := NewGoogleProvider("SECRET", srv.URL, srv.Client())

			_, err := g.NearbySearch(context.Background(), &Request{Center: montevideo, Radius: 3000, Category: "bar"})
			require.Error(t, err)

			var pErr *ProviderError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, tt.expected, pErr.Type)
			assert.Equal(t, GoogleProviderName, pErr.Provider)
		})
	}
}

func TestGoogleNearbySearchRequiresKey(t *testing.T) {
	g := NewGoogleProvider("", "http://127.0.0.1:0", nil)

	_, err := g.NearbySearch(context.Background(), &Request{Center: montevideo, Radius: 3000, Category: "bar"})

	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, ErrorTypeDenied, pErr.Type)
}

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, (&Request{Center: montevideo, Radius: 1, Keyword: "pizza"}).Validate())
	assert.Error(t, (*Request)(nil).Validate())
	assert.Error(t, (&Request{Center: montevideo, Radius: 0, Category: "bar"}).Validate())
	assert.Error(t, (&Request{Center: montevideo, Radius: 10}).Validate())
	assert.Error(t, (&Request{Center: spatial.Point{Lat: 100}, Radius: 10, Category: "bar"}).Validate())
}

func TestNewProvider(t *testing.T) {
	p, err := New(Options{Name: GoogleProviderName, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, GoogleProviderName, p.Name())

	p, err = New(Options{})
	require.NoError(t, err)
	assert.Equal(t, OverpassProviderName, p.Name())

	_, err = New(Options{Name: "yelp"})
	assert.Error(t, err)
}

func TestDefaultCategories(t *testing.T) {
	assert.Contains(t, DefaultCategories(GoogleProviderName), "meal_takeaway")
	assert.Contains(t, DefaultCategories(OverpassProviderName), "fast_food")
}
