// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package render turns places into map markers and keeps an in-memory model
// of the map a client draws: its view, the search circle, the markers and a
// single shared detail popup.
package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/jcodagnone/eaterymap/places"
	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/jcodagnone/eaterymap/utils/textutils"
)

// NotAvailable replaces popup fields the provider did not supply.
const NotAvailable = "not available"

// Animation played when a marker is added.
type Animation string

const (
	AnimationNone Animation = ""
	AnimationDrop Animation = "drop"
)

// Icon names used by markers.
const (
	IconEatery = "eatery"
	IconOrigin = "origin"
)

// Popup is the content shown by the shared detail popup.
type Popup struct {
	Name        string `json:"name"`
	Secondary   string `json:"secondary"`
	Rating      string `json:"rating"`
	RatingCount int    `json:"rating_count"`
}

// NewPopup builds popup content with the fallbacks for missing fields.
func NewPopup(p *places.Place) Popup {
	popup := Popup{
		Name:      p.Name,
		Secondary: secondaryText(p),
		Rating:    NotAvailable,
	}

	if p.Rating != nil {
		popup.Rating = strconv.FormatFloat(*p.Rating, 'f', 1, 64)
	}

	if p.RatingCount != nil {
		popup.RatingCount = *p.RatingCount
	}

	return popup
}

func secondaryText(p *places.Place) string {
	parts := make([]string, 0, 2)

	if s := strings.TrimSpace(p.Secondary); s != "" {
		parts = append(parts, s)
	}

	if c := strings.TrimSpace(p.Cuisine); c != "" {
		parts = append(parts, c)
	}

	if len(parts) == 0 {
		return NotAvailable
	}

	return strings.Join(parts, " · ")
}

// HTML renders the popup as escaped markup. Empty secondary or rating lines
// are left out; NewPopup always fills both.
func (p Popup) HTML() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<b>%s</b>", html.EscapeString(p.Name))

	if p.Secondary != "" {
		fmt.Fprintf(&sb, "<br><span class=\"secondary\">%s</span>", html.EscapeString(p.Secondary))
	}

	if p.Rating != "" {
		fmt.Fprintf(&sb, "<br><span class=\"rating\">Rating: %s (%s reviews)</span>",
			html.EscapeString(p.Rating), textutils.FormatInt(int64(p.RatingCount)))
	}

	return sb.String()
}

// Marker is a place drawn on the map.
type Marker struct {
	ID        string        `json:"id"`
	Position  spatial.Point `json:"position"`
	Title     string        `json:"title"`
	Category  string        `json:"category,omitempty"`
	Icon      string        `json:"icon"`
	Animation Animation     `json:"animation,omitempty"`
	Popup     Popup         `json:"popup"`
	Provider  string        `json:"provider,omitempty"`
}

// NewMarker creates the marker for a place. Places without a position have
// no marker.
func NewMarker(p *places.Place) (*Marker, error) {
	if p == nil || !p.HasPosition() {
		return nil, ErrNoPosition
	}

	if p.ID == "" {
		return nil, ErrNoID
	}

	title := p.Name
	if title == "" {
		title = textutils.Humanize(p.Category)
	}

	return &Marker{
		ID:        p.ID,
		Position:  *p.Position,
		Title:     title,
		Category:  p.Category,
		Icon:      IconEatery,
		Animation: AnimationDrop,
		Popup:     NewPopup(p),
		Provider:  p.Provider,
	}, nil
}
