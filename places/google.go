// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jcodagnone/eaterymap/spatial"
)

const (
	// GoogleProviderName identifies the Google Places provider.
	GoogleProviderName = "google"

	// GoogleNearbySearchURL is the legacy Nearby Search endpoint.
	GoogleNearbySearchURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
)

// GoogleProvider queries the Google Places Nearby Search API.
type GoogleProvider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewGoogleProvider creates a Google Places provider. An empty endpoint
// selects GoogleNearbySearchURL.
func NewGoogleProvider(apiKey, endpoint string, httpClient *http.Client) *GoogleProvider {
	if endpoint == "" {
		endpoint = GoogleNearbySearchURL
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &GoogleProvider{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// Name implements Provider.
func (g *GoogleProvider) Name() string {
	return GoogleProviderName
}

type googleNearbyResponse struct {
	Results []struct {
		PlaceID  string   `json:"place_id"`
		Name     string   `json:"name"`
		Vicinity string   `json:"vicinity"`
		Types    []string `json:"types"`
		Geometry *struct {
			Location *struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		Rating           *float64 `json:"rating"`
		UserRatingsTotal *int     `json:"user_ratings_total"`
	} `json:"results"`
	Status        string `json:"status"` // OK, ZERO_RESULTS, OVER_QUERY_LIMIT, REQUEST_DENIED, INVALID_REQUEST
	ErrorMessage  string `json:"error_message"`
	NextPageToken string `json:"next_page_token"`
}

// NearbySearch implements Provider.
func (g *GoogleProvider) NearbySearch(ctx context.Context, req *Request) (*Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if g.apiKey == "" {
		return nil, &ProviderError{
			Type:     ErrorTypeDenied,
			Provider: GoogleProviderName,
			Message:  "missing API key",
		}
	}

	params := url.Values{}
	if req.PageToken != "" {
		// a page token carries the original query; only key and token are sent
		params.Set("pagetoken", req.PageToken)
	} else {
		params.Set("location", fmt.Sprintf("%f,%f", req.Center.Lat, req.Center.Lng))
		params.Set("radius", strconv.FormatFloat(req.Radius, 'f', 0, 64))

		if req.Category != "" {
			params.Set("type", req.Category)
		}

		if req.Keyword != "" {
			params.Set("keyword", req.Keyword)
		}
	}

	params.Set("key", g.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating nearby search request: %w", err)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		pErr := &ProviderError{
			Type:     ErrorTypeNetworkError,
			Provider: GoogleProviderName,
			Message:  "nearby search request failed",
			Err:      err,
		}
		if errors.Is(err, context.DeadlineExceeded) {
			pErr.Type = ErrorTypeTimeout
		}

		return nil, pErr
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(GoogleProviderName, resp.StatusCode)
	}

	var gResp googleNearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return nil, &ProviderError{
			Type:     ErrorTypeMalformedResponse,
			Provider: GoogleProviderName,
			Message:  "decoding response",
			Err:      err,
		}
	}

	if pErr := ClassifyStatus(GoogleProviderName, gResp.Status, gResp.ErrorMessage); pErr != nil {
		return nil, pErr
	}

	page := &Page{
		Status:        Status(gResp.Status),
		Places:        make([]Place, 0, len(gResp.Results)),
		NextPageToken: gResp.NextPageToken,
	}

	for _, r := range gResp.Results {
		place := Place{
			ID:          r.PlaceID,
			Name:        r.Name,
			Category:    req.Category,
			Secondary:   r.Vicinity,
			Rating:      r.Rating,
			RatingCount: r.UserRatingsTotal,
			Provider:    GoogleProviderName,
		}

		if r.Geometry != nil && r.Geometry.Location != nil {
			place.Position = &spatial.Point{
				Lat: r.Geometry.Location.Lat,
				Lng: r.Geometry.Location.Lng,
			}
		}

		if place.Category == "" && len(r.Types) > 0 {
			place.Category = r.Types[0]
		}

		page.Places = append(page.Places, place)
	}

	if len(page.Places) == 0 {
		page.Status = StatusZeroResults
	}

	return page, nil
}
