// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jcodagnone/eaterymap/places"
	"golang.org/x/sync/errgroup"
)

// Mode selects how categories are scheduled.
type Mode string

const (
	// Sequential drains one category's pagination before starting the next.
	Sequential Mode = "sequential"
	// Concurrent searches all categories at once.
	Concurrent Mode = "concurrent"
)

// Policy controls pagination and scheduling.
type Policy struct {
	// PageDelay is the minimum wait before requesting a continuation page.
	PageDelay time.Duration

	// Mode schedules categories sequentially or concurrently.
	Mode Mode

	// MaxPages caps the pages requested per category; zero means no cap.
	MaxPages int

	// MaxConcurrency bounds in-flight categories in Concurrent mode; zero
	// means one goroutine per category.
	MaxConcurrency int
}

// DefaultPolicy is sequential, with the 2s delay Google requires before a
// next_page_token becomes valid and its 3 page limit.
func DefaultPolicy() Policy {
	return Policy{
		PageDelay: 2 * time.Second,
		Mode:      Sequential,
		MaxPages:  3,
	}
}

// Validate checks the policy values.
func (p Policy) Validate() error {
	if p.PageDelay < 0 {
		return errors.New("search: negative page delay")
	}

	if p.MaxPages < 0 || p.MaxConcurrency < 0 {
		return errors.New("search: negative page or concurrency limit")
	}

	switch p.Mode {
	case Sequential, Concurrent:
		return nil
	default:
		return fmt.Errorf("search: unknown mode %q", p.Mode)
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Orchestrator runs the category searches of a session against a provider.
type Orchestrator struct {
	provider places.Provider
	policy   Policy
	sleep    SleepFunc
}

// NewOrchestrator creates an orchestrator for provider with the given policy.
func NewOrchestrator(provider places.Provider, policy Policy) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		policy:   policy,
		sleep:    sleepContext,
	}
}

// WithSleep replaces the function used to wait between pages.
func (o *Orchestrator) WithSleep(sleep SleepFunc) *Orchestrator {
	o.sleep = sleep

	return o
}

// Policy returns the pagination policy.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Run searches every category of the session. Provider failures end the
// pagination of their category only and are recorded in the Summary; Run
// itself fails only for an invalid session or when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, s *Session) (*Summary, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	if err := o.policy.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	categories := s.Categories
	if len(categories) == 0 {
		// keyword-only search
		categories = []string{""}
	}

	summary := &Summary{
		SessionID:  s.ID,
		Provider:   o.provider.Name(),
		Categories: make([]*CategorySummary, len(categories)),
	}

	for i, c := range categories {
		summary.Categories[i] = &CategorySummary{Category: c}
	}

	var err error

	switch o.policy.Mode {
	case Concurrent:
		g, gctx := errgroup.WithContext(ctx)
		if o.policy.MaxConcurrency > 0 {
			g.SetLimit(o.policy.MaxConcurrency)
		}

		for _, cs := range summary.Categories {
			g.Go(func() error {
				return o.searchCategory(gctx, s, cs)
			})
		}

		err = g.Wait()
	default:
		for _, cs := range summary.Categories {
			if err = o.searchCategory(ctx, s, cs); err != nil {
				break
			}
		}
	}

	summary.Unique = s.Found()
	summary.Elapsed = time.Since(start)

	if err != nil {
		log.Printf("Search - session %s interrupted after %d places: %v", s.ID, summary.Unique, err)

		return summary, err
	}

	totals := summary.Totals()
	log.Printf(
		"Search - session %s complete - %d unique places from %d results across %d pages (%d duplicates, %d without position)",
		s.ID, summary.Unique, totals.Results, totals.Pages, totals.Duplicates, totals.Malformed,
	)

	if s.Progress != nil {
		if summary.Unique == 0 && summary.AllFailed() {
			s.Progress.Failed(summary.Err())
		} else {
			s.Progress.Complete(summary.Unique)
		}
	}

	return summary, nil
}

// searchCategory follows the pagination of one category. It returns an error
// only when ctx is done.
func (o *Orchestrator) searchCategory(ctx context.Context, s *Session, cs *CategorySummary) error {
	if s.Progress != nil {
		s.Progress.Searching(categoryLabel(cs.Category, s.Keyword))
	}

	token := ""

	for page := 1; o.policy.MaxPages == 0 || page <= o.policy.MaxPages; page++ {
		if page > 1 {
			if err := o.sleep(ctx, o.policy.PageDelay); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := o.provider.NearbySearch(ctx, &places.Request{
			Center:    s.Center,
			Radius:    s.Radius,
			Category:  cs.Category,
			Keyword:   s.Keyword,
			PageToken: token,
		})
		cs.Pages++

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			kind := places.KindOf(err)
			log.Printf("Search - %s page %d failed (%s): %v", categoryLabel(cs.Category, s.Keyword), page, kind, err)
			cs.Err, cs.ErrorKind = err, kind.String()

			return nil
		}

		for i := range res.Places {
			o.admit(s, &res.Places[i], cs)
		}

		log.Printf(
			"Search - %s page %d stats - %d new places from a total of %d results",
			categoryLabel(cs.Category, s.Keyword), page, cs.Unique, cs.Results,
		)

		if res.Status == places.StatusZeroResults || !res.HasMore() {
			return nil
		}

		token = res.NextPageToken
	}

	return nil
}

// admit is the deduplication gate in front of the renderer.
func (o *Orchestrator) admit(s *Session, p *places.Place, cs *CategorySummary) {
	cs.Results++

	if p.ID == "" || !p.HasPosition() {
		cs.Malformed++

		return
	}

	if !s.IsCurrent() {
		cs.Stale++

		return
	}

	if !s.Seen.Admit(p.ID) {
		cs.Duplicates++

		return
	}

	if err := s.Renderer.Render(p); err != nil {
		log.Printf("Search - rendering %s (%s): %v", p.ID, p.Name, err)

		cs.RenderErrors++

		return
	}

	s.found.Add(1)
	cs.Unique++
}

func categoryLabel(category, keyword string) string {
	switch {
	case category == "":
		return fmt.Sprintf("%q", keyword)
	case keyword != "":
		return fmt.Sprintf("%s %q", category, keyword)
	default:
		return category
	}
}
