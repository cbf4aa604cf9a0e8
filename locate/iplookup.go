// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package locate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jcodagnone/eaterymap/spatial"
)

// IPLookupURL is the ip-api.com JSON endpoint.
const IPLookupURL = "http://ip-api.com/json/"

// IPLookup approximates a position from an IP address with an ip-api.com
// style service.
type IPLookup struct {
	Endpoint string
	IP       string // empty looks up the caller address
	Client   *http.Client
}

type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
}

// Locate implements Provider.
func (l *IPLookup) Locate(ctx context.Context) (spatial.Point, error) {
	endpoint := l.Endpoint
	if endpoint == "" {
		endpoint = IPLookupURL
	}

	endpoint = strings.TrimRight(endpoint, "/") + "/" + l.IP

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return spatial.Point{}, fmt.Errorf("%w: creating request: %w", ErrGeolocationUnavailable, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return spatial.Point{}, fmt.Errorf("%w: ip lookup: %w", ErrGeolocationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return spatial.Point{}, fmt.Errorf("%w: ip lookup status %d", ErrGeolocationUnavailable, resp.StatusCode)
	}

	var r ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return spatial.Point{}, fmt.Errorf("%w: decoding ip lookup: %w", ErrGeolocationUnavailable, err)
	}

	if r.Status != "success" {
		return spatial.Point{}, fmt.Errorf("%w: ip lookup %s: %s", ErrGeolocationUnavailable, r.Status, r.Message)
	}

	p := spatial.Point{Lat: r.Lat, Lng: r.Lon}
	if err := p.Validate(); err != nil {
		return spatial.Point{}, fmt.Errorf("%w: %w", ErrGeolocationUnavailable, err)
	}

	return p, nil
}
