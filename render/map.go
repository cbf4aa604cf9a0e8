// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jcodagnone/eaterymap/places"
	"github.com/jcodagnone/eaterymap/spatial"
)

// DefaultZoom is the zoom level of a freshly centered map.
const DefaultZoom = 14

var (
	// ErrNoPosition is returned for places that cannot be drawn.
	ErrNoPosition = errors.New("render: place has no position")
	// ErrNoID is returned for places without an identifier.
	ErrNoID = errors.New("render: place has no identifier")
	// ErrDuplicateMarker is returned when a marker id is already on the map.
	ErrDuplicateMarker = errors.New("render: marker already on the map")
	// ErrUnknownMarker is returned when activating a marker not on the map.
	ErrUnknownMarker = errors.New("render: unknown marker")
)

// View is the visible area of the map.
type View struct {
	Center spatial.Point `json:"center"`
	Zoom   int           `json:"zoom"`
}

// CircleStyle is the look of the search area overlay.
type CircleStyle struct {
	Color       string  `json:"color"`
	FillColor   string  `json:"fill_color"`
	FillOpacity float64 `json:"fill_opacity"`
}

// DefaultCircleStyle is a translucent blue disc.
var DefaultCircleStyle = CircleStyle{Color: "blue", FillColor: "#3388ff", FillOpacity: 0.1}

// Area is the search circle drawn on the map.
type Area struct {
	spatial.Circle
	Style CircleStyle `json:"style"`
}

// ActivePopup is the state of the shared detail popup.
type ActivePopup struct {
	MarkerID string        `json:"marker_id"`
	Anchor   spatial.Point `json:"anchor"`
	Content  Popup         `json:"content"`
	HTML     string        `json:"html"`
}

// EventKind names a map change.
type EventKind string

// OriginID identifies the "You are here" marker.
const OriginID = "origin"

const (
	EventView   EventKind = "view"
	EventCircle EventKind = "circle"
	EventOrigin EventKind = "origin"
	EventMarker EventKind = "marker"
	EventPopup  EventKind = "popup"
	EventHide   EventKind = "hide"
)

// Event describes one change applied to a Map. Only the field matching Kind
// is set.
type Event struct {
	Kind   EventKind    `json:"kind"`
	View   *View        `json:"view,omitempty"`
	Area   *Area        `json:"area,omitempty"`
	Marker *Marker      `json:"marker,omitempty"`
	Popup  *ActivePopup `json:"popup,omitempty"`
}

// Map is the rendering surface of one session. It owns at most one popup,
// shared by all markers.
type Map struct {
	mu        sync.Mutex
	view      *View
	area      *Area
	origin    *Marker
	markers   []*Marker
	byID      map[string]*Marker
	popup     *ActivePopup
	listeners []func(Event)
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{byID: make(map[string]*Marker)}
}

// Subscribe registers fn to receive every later change. Listeners run
// synchronously, in registration order, outside the map lock.
func (m *Map) Subscribe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, fn)
}

func (m *Map) emit(e Event) {
	m.mu.Lock()
	listeners := append([]func(Event){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(e)
	}
}

// SetView centers the map.
func (m *Map) SetView(center spatial.Point, zoom int) error {
	if err := center.Validate(); err != nil {
		return fmt.Errorf("setting view: %w", err)
	}

	if zoom <= 0 {
		zoom = DefaultZoom
	}

	v := View{Center: center, Zoom: zoom}

	m.mu.Lock()
	m.view = &v
	m.mu.Unlock()

	m.emit(Event{Kind: EventView, View: &v})

	return nil
}

// View returns the current view, if any.
func (m *Map) View() (View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.view == nil {
		return View{}, false
	}

	return *m.view, true
}

// AddCircle draws the search area, replacing any previous one.
func (m *Map) AddCircle(c spatial.Circle, style CircleStyle) {
	a := Area{Circle: c, Style: style}

	m.mu.Lock()
	m.area = &a
	m.mu.Unlock()

	m.emit(Event{Kind: EventCircle, Area: &a})
}

// Area returns the search circle, if any.
func (m *Map) Area() (Area, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.area == nil {
		return Area{}, false
	}

	return *m.area, true
}

// SetOrigin places the "You are here" marker.
func (m *Map) SetOrigin(p spatial.Point) {
	o := &Marker{
		ID:       OriginID,
		Position: p,
		Title:    "You are here",
		Icon:     IconOrigin,
		Popup:    Popup{Name: "You are here"},
	}

	m.mu.Lock()
	m.origin = o
	m.mu.Unlock()

	m.emit(Event{Kind: EventOrigin, Marker: o})
}

// Origin returns the "You are here" marker, if any.
func (m *Map) Origin() (*Marker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.origin, m.origin != nil
}

// AddMarker puts a marker on the map. Identifiers are unique per map.
func (m *Map) AddMarker(mk *Marker) error {
	m.mu.Lock()

	if _, ok := m.byID[mk.ID]; ok {
		m.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrDuplicateMarker, mk.ID)
	}

	m.byID[mk.ID] = mk
	m.markers = append(m.markers, mk)
	m.mu.Unlock()

	m.emit(Event{Kind: EventMarker, Marker: mk})

	return nil
}

// Markers returns the markers in the order they were added.
func (m *Map) Markers() []*Marker {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*Marker(nil), m.markers...)
}

// Marker returns the marker with the given id.
func (m *Map) Marker(id string) (*Marker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mk, ok := m.byID[id]

	return mk, ok
}

// Len returns the number of place markers.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.markers)
}

// Activate fills the shared popup with the marker content and anchors it
// there. Any previously open popup is replaced.
func (m *Map) Activate(id string) (ActivePopup, error) {
	m.mu.Lock()

	mk, ok := m.byID[id]
	if !ok && m.origin != nil && m.origin.ID == id {
		mk, ok = m.origin, true
	}

	if !ok {
		m.mu.Unlock()

		return ActivePopup{}, fmt.Errorf("%w: %s", ErrUnknownMarker, id)
	}

	p := &ActivePopup{
		MarkerID: mk.ID,
		Anchor:   mk.Position,
		Content:  mk.Popup,
		HTML:     mk.Popup.HTML(),
	}
	m.popup = p
	m.mu.Unlock()

	m.emit(Event{Kind: EventPopup, Popup: p})

	return *p, nil
}

// Hide closes the popup.
func (m *Map) Hide() {
	m.mu.Lock()
	open := m.popup != nil
	m.popup = nil
	m.mu.Unlock()

	if open {
		m.emit(Event{Kind: EventHide})
	}
}

// Popup returns the open popup, if any.
func (m *Map) Popup() (ActivePopup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.popup == nil {
		return ActivePopup{}, false
	}

	return *m.popup, true
}

// Renderer draws the places accepted by a search session on a Map.
type Renderer struct {
	m *Map
}

// NewRenderer returns a renderer drawing on m.
func NewRenderer(m *Map) *Renderer {
	return &Renderer{m: m}
}

// Map returns the surface the renderer draws on.
func (r *Renderer) Map() *Map {
	return r.m
}

// Render adds a marker for p. Places without a position are rejected.
func (r *Renderer) Render(p *places.Place) error {
	mk, err := NewMarker(p)
	if err != nil {
		return err
	}

	return r.m.AddMarker(mk)
}
