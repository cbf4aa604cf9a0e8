// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"io"
)

// Geometry is a GeoJSON point. Coordinates are longitude first.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Feature is a GeoJSON feature for one marker.
type Feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection is a GeoJSON document.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection converts markers into GeoJSON features.
func NewFeatureCollection(markers []*Marker) *FeatureCollection {
	fc := &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(markers)),
	}

	for _, m := range markers {
		props := map[string]any{
			"name":         m.Popup.Name,
			"secondary":    m.Popup.Secondary,
			"rating":       m.Popup.Rating,
			"rating_count": m.Popup.RatingCount,
		}

		if m.Category != "" {
			props["category"] = m.Category
		}

		if m.Provider != "" {
			props["provider"] = m.Provider
		}

		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			ID:   m.ID,
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{m.Position.Lng, m.Position.Lat},
			},
			Properties: props,
		})
	}

	return fc
}

// WriteGeoJSON writes the markers as an indented FeatureCollection.
func WriteGeoJSON(w io.Writer, markers []*Marker) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(NewFeatureCollection(markers))
}
