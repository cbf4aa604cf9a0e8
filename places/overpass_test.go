// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package places

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOverpassQuery(t *testing.T) {
	q := BuildOverpassQuery(&Request{Center: montevideo, Radius: 3000, Category: "fast_food"})

	expected := `[out:json][timeout:25];
(
  node["amenity"="fast_food"](around:3000,-34.901100,-56.164500);
  way["amenity"="fast_food"](around:3000,-34.901100,-56.164500);
  relation["amenity"="fast_food"](around:3000,-34.901100,-56.164500);
);
out center;
`
	if diff := cmp.Diff(expected, q); diff != "" {
		t.Errorf("query mismatch (-expected +got):\n%s", diff)
	}
}

func TestBuildOverpassQuerySanitizesInput(t *testing.T) {
	q := BuildOverpassQuery(&Request{
		Center:   montevideo,
		Radius:   500,
		Category: `cafe"];out;`,
		Keyword:  "Chivitos (Marcos)",
	})

	assert.Contains(t, q, `["amenity"="cafeout"]`)
	assert.Contains(t, q, `["name"~"Chivitos Marcos",i]`)
	assert.NotContains(t, q, `"];out;`)
}

func TestBuildOverpassQueryEscapesKeywordRegex(t *testing.T) {
	q := BuildOverpassQuery(&Request{
		Center:   montevideo,
		Radius:   500,
		Category: "restaurant",
		Keyword:  "St. Louis",
	})

	assert.Contains(t, q, `["name"~"St\\. Louis",i]`)
	assert.NotContains(t, q, `"St\. Louis"`)
}

func TestOverpassNearbySearch(t *testing.T) {
	var data string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data = r.URL.Query().Get("data")

		fmt.Fprint(w, `{
			"elements": [
				{"type": "node", "id": 1, "lat": -34.905, "lon": -56.19,
				 "tags": {"amenity": "restaurant", "name": "El Palenque", "cuisine": "steak_house;regional",
				          "addr:street": "Pérez Castellano", "addr:housenumber": "1579"}},
				{"type": "way", "id": 2, "center": {"lat": -34.91, "lon": -56.17},
				 "tags": {"amenity": "restaurant", "name": "Mercado del Puerto"}},
				{"type": "node", "id": 3, "lat": -34.90, "lon": -56.18,
				 "tags": {"amenity": "restaurant"}},
				{"type": "relation", "id": 4,
				 "tags": {"amenity": "restaurant", "name": "Sin centro"}}
			]
		}`)
	}))
	defer srv.Close()

	o := NewOverpassProvider(srv.URL, srv.Client())

	page, err := o.NearbySearch(context.Background(), &Request{Center: montevideo, Radius: 3000, Category: "restaurant"})
	require.NoError(t, err)
	assert.Contains(t, data, `node["amenity"="restaurant"]`)

	expected := &Page{
		Status: StatusOK,
		Places: []Place{
			{
				ID:        "node/1",
				Name:      "El Palenque",
				Category:  "restaurant",
				Cuisine:   "steak_house, regional",
				Secondary: "Pérez Castellano 1579",
				Position:  &spatial.Point{Lat: -34.905, Lng: -56.19},
				Provider:  OverpassProviderName,
			},
			{
				ID:       "way/2",
				Name:     "Mercado del Puerto",
				Category: "restaurant",
				Position: &spatial.Point{Lat: -34.91, Lng: -56.17},
				Provider: OverpassProviderName,
			},
			{
				ID:       "relation/4",
				Name:     "Sin centro",
				Category: "restaurant",
				Provider: OverpassProviderName,
			},
		},
	}

	if diff := cmp.Diff(expected, page); diff != "" {
		t.Errorf("page mismatch (-expected +got):\n%s", diff)
	}

	assert.False(t, page.HasMore())
}

func TestOverpassZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"elements": []}`)
	}))
	defer srv.Close()

	page, err := NewOverpassProvider(srv.URL, srv.Client()).NearbySearch(
		context.Background(), &Request{Center: montevideo, Radius: 3000, Category: "pub"})
	require.NoError(t, err)
	assert.Equal(t, StatusZeroResults, page.Status)
	assert.Empty(t, page.Places)
}

func TestOverpassErrors(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		expected ErrorType
	}{
		{"too many requests", http.StatusTooManyRequests, "", ErrorTypeRateLimit},
		{"gateway timeout", http.StatusGatewayTimeout, "", ErrorTypeTimeout},
		{"remark", http.StatusOK, `{"remark": "runtime error: Query timed out", "elements": []}`, ErrorTypeTimeout},
		{"bad json", http.StatusOK, `<html>`, ErrorTypeMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewOverpassProvider(srv.URL, srv.Client()).NearbySearch(
				context.Background(), &Request{Center: montevideo, Radius: 3000, Category: "cafe"})

			var pErr *ProviderError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, tt.expected, pErr.Type)
		})
	}
}

func TestOverpassRejectsPageToken(t *testing.T) {
	_, err := NewOverpassProvider("http://127.0.0.1:0", nil).NearbySearch(
		context.Background(), &Request{Center: montevideo, Radius: 3000, Category: "cafe", PageToken: "x"})

	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, ErrorTypeInvalidRequest, pErr.Type)
}
