// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/eaterymap/places"
	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var center = spatial.Point{Lat: -34.9011, Lng: -56.1645}

func eatery(id, name string, lat, lng float64) *places.Place {
	return &places.Place{ID: id, Name: name, Category: "restaurant", Position: &spatial.Point{Lat: lat, Lng: lng}}
}

func TestMapEvents(t *testing.T) {
	m := NewMap()

	var kinds []EventKind
	m.Subscribe(func(e Event) { kinds = append(kinds, e.Kind) })

	require.NoError(t, m.SetView(center, 0))
	m.AddCircle(spatial.Circle{Center: center, Radius: 3000}, DefaultCircleStyle)
	m.SetOrigin(center)

	r := NewRenderer(m)
	require.NoError(t, r.Render(eatery("a", "A", -34.90, -56.16)))

	_, err := m.Activate("a")
	require.NoError(t, err)
	m.Hide()
	m.Hide()

	want := []EventKind{EventView, EventCircle, EventOrigin, EventMarker, EventPopup, EventHide}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	v, ok := m.View()
	require.True(t, ok)
	assert.Equal(t, View{Center: center, Zoom: DefaultZoom}, v)

	a, ok := m.Area()
	require.True(t, ok)
	assert.Equal(t, 3000.0, a.Radius)

	assert.Error(t, m.SetView(spatial.Point{Lat: 100}, 10))
}

func TestRendererRejectsDuplicatesAndPositionless(t *testing.T) {
	m := NewMap()
	r := NewRenderer(m)

	require.NoError(t, r.Render(eatery("a", "A", -34.90, -56.16)))
	assert.ErrorIs(t, r.Render(eatery("a", "A again", -34.90, -56.16)), ErrDuplicateMarker)
	assert.ErrorIs(t, r.Render(&places.Place{ID: "b", Name: "B"}), ErrNoPosition)

	assert.Equal(t, 1, m.Len())
	_, ok := m.Marker("b")
	assert.False(t, ok)
}

func TestSharedPopup(t *testing.T) {
	m := NewMap()
	r := NewRenderer(m)

	require.NoError(t, r.Render(eatery("a", "Alpha", -34.90, -56.16)))
	require.NoError(t, r.Render(eatery("b", "Beta", -34.91, -56.17)))

	_, open := m.Popup()
	assert.False(t, open)

	pa, err := m.Activate("a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", pa.Content.Name)

	pb, err := m.Activate("b")
	require.NoError(t, err)

	cur, open := m.Popup()
	require.True(t, open)
	assert.Equal(t, pb, cur)
	assert.Equal(t, "b", cur.MarkerID)
	assert.Equal(t, spatial.Point{Lat: -34.91, Lng: -56.17}, cur.Anchor)
	assert.Contains(t, cur.HTML, "Beta")
	assert.NotContains(t, cur.HTML, "Alpha")

	_, err = m.Activate("zzz")
	assert.ErrorIs(t, err, ErrUnknownMarker)

	m.SetOrigin(center)
	po, err := m.Activate("origin")
	require.NoError(t, err)
	assert.Equal(t, "You are here", po.Content.Name)
	assert.Equal(t, "<b>You are here</b>", po.HTML)

	m.Hide()
	_, open = m.Popup()
	assert.False(t, open)
}

func TestMarkersKeepInsertionOrder(t *testing.T) {
	m := NewMap()
	r := NewRenderer(m)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Render(eatery(id, id, -34.9, -56.1)))
	}

	var ids []string
	for _, mk := range m.Markers() {
		ids = append(ids, mk.ID)
	}

	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestWriteGeoJSON(t *testing.T) {
	mk, err := NewMarker(&places.Place{
		ID:          "ChIJ1",
		Name:        "Es Mercat",
		Category:    "restaurant",
		Position:    &spatial.Point{Lat: -34.905, Lng: -56.21},
		Rating:      ptr(4.6),
		RatingCount: ptr(812),
		Provider:    "google",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, []*Marker{mk}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	want := map[string]any{
		"type": "FeatureCollection",
		"features": []any{
			map[string]any{
				"type": "Feature",
				"id":   "ChIJ1",
				"geometry": map[string]any{
					"type":        "Point",
					"coordinates": []any{-56.21, -34.905},
				},
				"properties": map[string]any{
					"name":         "Es Mercat",
					"secondary":    NotAvailable,
					"rating":       "4.6",
					"rating_count": 812.0,
					"category":     "restaurant",
					"provider":     "google",
				},
			},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("geojson mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteGeoJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, nil))
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, buf.String())
}
