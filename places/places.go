// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package places talks to third-party places services (Overpass, Google
// Places) and normalises their answers into Place records.
package places

import (
	"context"
	"errors"
	"strings"

	"github.com/jcodagnone/eaterymap/spatial"
)

// DefaultRadius is the search radius in meters used when none is configured.
const DefaultRadius = 3000

// Place is a single eatery as reported by a provider. It is never mutated
// after the provider returns it.
type Place struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Category    string         `json:"category,omitempty"`
	Cuisine     string         `json:"cuisine,omitempty"`
	Secondary   string         `json:"secondary,omitempty"` // vicinity, street address
	Position    *spatial.Point `json:"position,omitempty"`  // nil when the provider gave no usable location
	Rating      *float64       `json:"rating,omitempty"`
	RatingCount *int           `json:"rating_count,omitempty"`
	Provider    string         `json:"provider"`
}

// HasPosition reports whether the place can be drawn on a map.
func (p *Place) HasPosition() bool {
	return p.Position != nil && p.Position.Validate() == nil
}

// Request scopes a nearby search.
type Request struct {
	Center    spatial.Point
	Radius    float64
	Category  string
	Keyword   string // free text, optional
	PageToken string // continuation token from a previous Page
}

// Validate checks the request before it reaches the network.
func (r *Request) Validate() error {
	if r == nil {
		return errors.New("places: nil request")
	}

	if err := r.Center.Validate(); err != nil {
		return err
	}

	if r.Radius <= 0 {
		return errors.New("places: radius must be positive")
	}

	if strings.TrimSpace(r.Category) == "" && strings.TrimSpace(r.Keyword) == "" {
		return errors.New("places: category or keyword is required")
	}

	return nil
}

// Status is the outcome reported by the provider for one page.
type Status string

const (
	StatusOK          Status = "OK"
	StatusZeroResults Status = "ZERO_RESULTS"
)

// Page is one page of nearby search results.
type Page struct {
	Status        Status
	Places        []Place
	NextPageToken string // empty when there are no more results
}

// HasMore reports whether the provider offered a continuation token.
func (p *Page) HasMore() bool {
	return p != nil && strings.TrimSpace(p.NextPageToken) != ""
}

// Provider answers nearby searches. Implementations return a *ProviderError
// for any non-success status other than zero results.
type Provider interface {
	// Name identifies the provider in logs and stored records.
	Name() string

	// NearbySearch issues a single page request.
	NearbySearch(ctx context.Context, req *Request) (*Page, error)
}

// DefaultCategories returns the category list used when none is configured.
func DefaultCategories(provider string) []string {
	switch provider {
	case GoogleProviderName:
		return []string{"restaurant", "cafe", "bar", "bakery", "meal_takeaway"}
	default:
		return []string{"restaurant", "cafe", "fast_food", "bar", "pub", "food_court"}
	}
}
