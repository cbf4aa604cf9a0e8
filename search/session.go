// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package search runs a search session: one nearby search per eatery
// category, pagination with a mandatory inter-page delay, and deduplication
// of places across categories and pages.
package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jcodagnone/eaterymap/places"
	"github.com/jcodagnone/eaterymap/spatial"
)

// Renderer draws a place accepted by the deduplication gate.
type Renderer interface {
	Render(p *places.Place) error
}

// Progress receives the phase transitions of a session.
type Progress interface {
	Searching(category string)
	Complete(found int)
	Failed(err error)
}

// Session holds the state of one location-to-results flow. A new location
// fetch starts a new Session; nothing is shared between sessions.
type Session struct {
	ID         string
	Client     string // key of the client that owns the session, may be empty
	Center     spatial.Point
	Radius     float64
	Categories []string
	Keyword    string
	Defaulted  bool // Center is the fallback coordinate
	StartedAt  time.Time

	Seen     *Seen
	Renderer Renderer
	Progress Progress

	found   atomic.Int64
	current atomic.Pointer[func() bool]
}

// NewSession creates a session with a fresh identifier and an empty Seen set.
func NewSession(client string, center spatial.Point, radius float64, categories []string) *Session {
	if radius <= 0 {
		radius = places.DefaultRadius
	}

	return &Session{
		ID:         uuid.New().String(),
		Client:     client,
		Center:     center,
		Radius:     radius,
		Categories: categories,
		StartedAt:  time.Now(),
		Seen:       NewSeen(),
	}
}

// Validate checks that the session can be run.
func (s *Session) Validate() error {
	if s == nil {
		return errors.New("search: nil session")
	}

	if err := s.Center.Validate(); err != nil {
		return err
	}

	if len(s.Categories) == 0 && s.Keyword == "" {
		return errors.New("search: no categories to search")
	}

	if s.Seen == nil {
		return errors.New("search: session has no seen set")
	}

	if s.Renderer == nil {
		return errors.New("search: session has no renderer")
	}

	return nil
}

// Found returns the number of unique places rendered so far.
func (s *Session) Found() int {
	return int(s.found.Load())
}

// IsCurrent reports whether the session is still the latest one for its
// client. Sessions not registered with a Tracker are always current.
func (s *Session) IsCurrent() bool {
	f := s.current.Load()
	if f == nil {
		return true
	}

	return (*f)()
}

// Tracker remembers the latest session per client. Beginning a session
// cancels the previous one of the same client, and its late results are
// rejected by the render gate through Session.IsCurrent.
type Tracker struct {
	mu     sync.Mutex
	active map[string]*trackedSession
}

type trackedSession struct {
	id     string
	cancel context.CancelFunc
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]*trackedSession)}
}

// Begin registers s as the current session of its client and returns a
// context that is cancelled when a newer session begins or End is called.
func (t *Tracker) Begin(ctx context.Context, s *Session) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	if prev, ok := t.active[s.Client]; ok {
		prev.cancel()
	}

	t.active[s.Client] = &trackedSession{id: s.ID, cancel: cancel}
	t.mu.Unlock()

	client, id := s.Client, s.ID
	isCurrent := func() bool { return t.Current(client, id) }
	s.current.Store(&isCurrent)

	return ctx, func() { t.End(s) }
}

// Current reports whether id is the latest session of client.
func (t *Tracker) Current(client, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.active[client]

	return ok && cur.id == id
}

// End cancels the session context and forgets it if it is still current.
func (t *Tracker) End(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.active[s.Client]
	if !ok || cur.id != s.ID {
		return
	}

	cur.cancel()
	delete(t.active, s.Client)
}

// Active returns the number of clients with a running session.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.active)
}
