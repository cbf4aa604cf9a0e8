// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package finder wires the pieces of a search session together: locating the
// client, the status line, the map, the category searches and the session
// history. It also serves them over HTTP.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jcodagnone/eaterymap/locate"
	"github.com/jcodagnone/eaterymap/places"
	"github.com/jcodagnone/eaterymap/render"
	"github.com/jcodagnone/eaterymap/search"
	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/jcodagnone/eaterymap/status"
	"github.com/jcodagnone/eaterymap/store"
)

// SearchInput describes one location-to-results request.
type SearchInput struct {
	Client     string         // owner key; a new search supersedes the previous one of the same client
	Position   *spatial.Point // client position, when the client could obtain it
	Denied     bool           // the client refused to share its position
	IP         string         // client address for the IP lookup
	Keyword    string
	Categories []string // empty selects the service defaults
	Radius     float64  // zero selects the service default
}

// Result is the outcome of Service.Search.
type Result struct {
	Session  *search.Session
	Summary  *search.Summary
	Map      *render.Map
	Reporter *status.Reporter
}

// Done is closed when the status line of the search hides.
func (r *Result) Done() <-chan struct{} {
	return r.Reporter.Done()
}

// Options configures a Service.
type Options struct {
	Provider   places.Provider
	Policy     search.Policy
	Categories []string
	Radius     float64
	Fallback   spatial.Point
	HideDelay  time.Duration

	// IPLookup, when set, is tried for clients that sent no position and did
	// not deny access.
	IPLookup *locate.IPLookup

	// Repository, when set, records sessions and rendered places.
	Repository store.Repository
}

// Service runs search sessions.
type Service struct {
	opts         Options
	orchestrator *search.Orchestrator
	tracker      *search.Tracker
	afterFunc    status.AfterFunc
}

// NewService creates a service.
func NewService(opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, errors.New("finder: no places provider")
	}

	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}

	if err := opts.Fallback.Validate(); err != nil {
		return nil, fmt.Errorf("finder: fallback: %w", err)
	}

	if len(opts.Categories) == 0 {
		opts.Categories = places.DefaultCategories(opts.Provider.Name())
	}

	if opts.Radius <= 0 {
		opts.Radius = places.DefaultRadius
	}

	return &Service{
		opts:         opts,
		orchestrator: search.NewOrchestrator(opts.Provider, opts.Policy),
		tracker:      search.NewTracker(),
	}, nil
}

// WithSleep replaces the wait between pages.
func (s *Service) WithSleep(sleep search.SleepFunc) *Service {
	s.orchestrator.WithSleep(sleep)

	return s
}

// WithAfterFunc replaces the timer hiding the status line.
func (s *Service) WithAfterFunc(f status.AfterFunc) *Service {
	s.afterFunc = f

	return s
}

// Provider returns the places provider.
func (s *Service) Provider() places.Provider {
	return s.opts.Provider
}

// Repository returns the session history, or nil.
func (s *Service) Repository() store.Repository {
	return s.opts.Repository
}

// Fallback returns the fallback coordinate.
func (s *Service) Fallback() spatial.Point {
	return s.opts.Fallback
}

func (s *Service) locator(in *SearchInput) locate.Provider {
	switch {
	case in.Position != nil:
		return locate.Fixed(*in.Position)
	case in.Denied:
		return locate.Denied{}
	case s.opts.IPLookup != nil:
		l := *s.opts.IPLookup
		l.IP = in.IP

		return locate.Chain{&l}
	default:
		return locate.Unavailable{}
	}
}

// Locate resolves the center for in.
func (s *Service) Locate(ctx context.Context, in *SearchInput) (spatial.Point, bool, error) {
	return locate.Resolve(ctx, s.locator(in), s.opts.Fallback)
}

// Search runs one session. Status messages go to display and map changes to
// onMap, both synchronously. The returned error is non-nil only when the
// session could not run or was superseded or cancelled; per-category
// provider failures are in the Summary.
func (s *Service) Search(ctx context.Context, in *SearchInput, display status.Display, onMap func(render.Event)) (*Result, error) {
	reporter := status.NewReporter(display, s.opts.HideDelay)
	if s.afterFunc != nil {
		reporter.WithAfterFunc(s.afterFunc)
	}

	m := render.NewMap()
	if onMap != nil {
		m.Subscribe(onMap)
	}

	res := &Result{Map: m, Reporter: reporter}

	reporter.Locating()

	center, defaulted, _ := s.Locate(ctx, in)
	if defaulted {
		reporter.LocationFailed(s.opts.Fallback)
	} else {
		reporter.LocationFound()
	}

	radius := in.Radius
	if radius <= 0 {
		radius = s.opts.Radius
	}

	categories := in.Categories
	if len(categories) == 0 && in.Keyword == "" {
		categories = s.opts.Categories
	}

	if err := m.SetView(center, render.DefaultZoom); err != nil {
		return res, err
	}

	m.AddCircle(spatial.Circle{Center: center, Radius: radius}, render.DefaultCircleStyle)
	m.SetOrigin(center)

	if _, err := m.Activate(render.OriginID); err != nil {
		return res, err
	}

	session := search.NewSession(in.Client, center, radius, categories)
	session.Keyword = in.Keyword
	session.Defaulted = defaulted
	session.Progress = reporter
	session.Renderer = render.NewRenderer(m)
	res.Session = session

	if repo := s.opts.Repository; repo != nil {
		session.Renderer = &recordingRenderer{next: session.Renderer, repo: repo, sessionID: session.ID}

		if err := repo.SaveSession(ctx, &store.Session{
			ID:         session.ID,
			Client:     session.Client,
			Center:     center,
			Radius:     radius,
			Categories: categories,
			Keyword:    in.Keyword,
			Provider:   s.opts.Provider.Name(),
			Defaulted:  defaulted,
			StartedAt:  session.StartedAt,
		}); err != nil {
			log.Printf("Finder - recording session %s: %v", session.ID, err)
		}
	}

	runCtx, end := s.tracker.Begin(ctx, session)
	defer end()

	summary, err := s.orchestrator.Run(runCtx, session)
	res.Summary = summary

	if repo := s.opts.Repository; repo != nil && summary != nil {
		failure := err
		if failure == nil {
			failure = summary.Err()
		}

		// the request context may be gone already
		if cErr := repo.CompleteSession(context.WithoutCancel(ctx), session.ID, summary.Unique, failure); cErr != nil {
			log.Printf("Finder - completing session %s: %v", session.ID, cErr)
		}
	}

	if err != nil {
		reporter.Close()

		return res, err
	}

	return res, nil
}

// recordingRenderer stores every place the next renderer accepted.
type recordingRenderer struct {
	next      search.Renderer
	repo      store.Repository
	sessionID string
}

func (r *recordingRenderer) Render(p *places.Place) error {
	if err := r.next.Render(p); err != nil {
		return err
	}

	if err := r.repo.SavePlace(context.Background(), r.sessionID, p); err != nil {
		log.Printf("Finder - recording place %s: %v", p.ID, err)
	}

	return nil
}
