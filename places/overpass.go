// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jcodagnone/eaterymap/spatial"
)

const (
	// OverpassProviderName identifies the OpenStreetMap Overpass provider.
	OverpassProviderName = "overpass"

	// OverpassURL is the public Overpass interpreter.
	OverpassURL = "https://overpass-api.de/api/interpreter"
)

// OverpassProvider queries OpenStreetMap data through an Overpass interpreter.
// Overpass answers a query in a single response, so pages never carry a
// continuation token.
type OverpassProvider struct {
	endpoint   string
	httpClient *http.Client
}

// NewOverpassProvider creates an Overpass provider. An empty endpoint selects OverpassURL.
func NewOverpassProvider(endpoint string, httpClient *http.Client) *OverpassProvider {
	if endpoint == "" {
		endpoint = OverpassURL
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OverpassProvider{endpoint: endpoint, httpClient: httpClient}
}

// Name implements Provider.
func (o *OverpassProvider) Name() string {
	return OverpassProviderName
}

type overpassResponse struct {
	Remark   string `json:"remark"`
	Elements []struct {
		Type   string   `json:"type"`
		ID     int64    `json:"id"`
		Lat    *float64 `json:"lat"`
		Lon    *float64 `json:"lon"`
		Center *struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"center"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// Overpass QL string literals are double quoted; anything outside this set is
// dropped from user input before it is interpolated.
var overpassUnsafe = regexp.MustCompile(`[^\p{L}\p{N} _\-'.&]`)

func overpassLiteral(s string) string {
	return overpassUnsafe.ReplaceAllString(strings.TrimSpace(s), "")
}

// overpassRegex quotes kw as a literal regular expression. Overpass unescapes
// string literals before compiling them, so every backslash is doubled.
func overpassRegex(kw string) string {
	return strings.ReplaceAll(regexp.QuoteMeta(kw), `\`, `\\`)
}

// BuildOverpassQuery renders the Overpass QL query for a request.
func BuildOverpassQuery(req *Request) string {
	filter := ""
	if req.Category != "" {
		filter += fmt.Sprintf(`["amenity"="%s"]`, overpassLiteral(req.Category))
	} else {
		filter += `["amenity"]`
	}

	if kw := overpassLiteral(req.Keyword); kw != "" {
		filter += fmt.Sprintf(`["name"~"%s",i]`, overpassRegex(kw))
	}

	around := fmt.Sprintf("(around:%s,%f,%f)",
		strconv.FormatFloat(req.Radius, 'f', 0, 64), req.Center.Lat, req.Center.Lng)

	var sb strings.Builder

	sb.WriteString("[out:json][timeout:25];\n(\n")

	for _, kind := range []string{"node", "way", "relation"} {
		fmt.Fprintf(&sb, "  %s%s%s;\n", kind, filter, around)
	}

	sb.WriteString(");\nout center;\n")

	return sb.String()
}

// NearbySearch implements Provider.
func (o *OverpassProvider) NearbySearch(ctx context.Context, req *Request) (*Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.PageToken != "" {
		return nil, &ProviderError{
			Type:     ErrorTypeInvalidRequest,
			Provider: OverpassProviderName,
			Message:  "overpass does not paginate",
		}
	}

	reqURL := o.endpoint + "?data=" + url.QueryEscape(BuildOverpassQuery(req))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating overpass request: %w", err)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		pErr := &ProviderError{
			Type:     ErrorTypeNetworkError,
			Provider: OverpassProviderName,
			Message:  "overpass request failed",
			Err:      err,
		}
		if errors.Is(err, context.DeadlineExceeded) {
			pErr.Type = ErrorTypeTimeout
		}

		return nil, pErr
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(OverpassProviderName, resp.StatusCode)
	}

	var oResp overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return nil, &ProviderError{
			Type:     ErrorTypeMalformedResponse,
			Provider: OverpassProviderName,
			Message:  "decoding response",
			Err:      err,
		}
	}

	// runtime errors (query timeout, out of memory) come back as a remark with 200
	if strings.Contains(strings.ToLower(oResp.Remark), "error") {
		return nil, &ProviderError{
			Type:     ErrorTypeTimeout,
			Provider: OverpassProviderName,
			Status:   "REMARK",
			Message:  oResp.Remark,
		}
	}

	page := &Page{
		Status: StatusOK,
		Places: make([]Place, 0, len(oResp.Elements)),
	}

	unnamed := 0

	for _, e := range oResp.Elements {
		name := e.Tags["name"]
		if name == "" {
			unnamed++

			continue
		}

		place := Place{
			ID:        fmt.Sprintf("%s/%d", e.Type, e.ID),
			Name:      name,
			Category:  e.Tags["amenity"],
			Cuisine:   strings.ReplaceAll(e.Tags["cuisine"], ";", ", "),
			Secondary: streetAddress(e.Tags),
			Provider:  OverpassProviderName,
		}

		switch {
		case e.Lat != nil && e.Lon != nil:
			place.Position = &spatial.Point{Lat: *e.Lat, Lng: *e.Lon}
		case e.Center != nil:
			place.Position = &spatial.Point{Lat: e.Center.Lat, Lng: e.Center.Lon}
		}

		page.Places = append(page.Places, place)
	}

	if unnamed > 0 {
		log.Printf("Overpass - %s: skipped %d unnamed elements", req.Category, unnamed)
	}

	if len(page.Places) == 0 {
		page.Status = StatusZeroResults
	}

	return page, nil
}

func streetAddress(tags map[string]string) string {
	street := tags["addr:street"]
	if street == "" {
		return ""
	}

	if n := tags["addr:housenumber"]; n != "" {
		return street + " " + n
	}

	return street
}
