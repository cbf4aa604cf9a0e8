// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"errors"
	"fmt"
	"time"
)

// CategorySummary tracks what happened while searching one category.
type CategorySummary struct {
	Category     string `json:"category"`
	Pages        int    `json:"pages"`         // requests issued
	Results      int    `json:"results"`       // places returned by the provider
	Unique       int    `json:"unique"`        // places rendered
	Duplicates   int    `json:"duplicates"`    // rejected by the seen set
	Malformed    int    `json:"malformed"`     // no identifier or position
	Stale        int    `json:"stale"`         // arrived after the session was superseded
	RenderErrors int    `json:"render_errors"` // renderer refused the place
	ErrorKind    string `json:"error,omitempty"` // places.ErrorType of Err
	Err          error  `json:"-"`
}

// Merge adds the counters of o into c.
func (c *CategorySummary) Merge(o *CategorySummary) *CategorySummary {
	c.Pages += o.Pages
	c.Results += o.Results
	c.Unique += o.Unique
	c.Duplicates += o.Duplicates
	c.Malformed += o.Malformed
	c.Stale += o.Stale
	c.RenderErrors += o.RenderErrors

	return c
}

// Summary is the outcome of a session run.
type Summary struct {
	SessionID  string             `json:"session_id"`
	Provider   string             `json:"provider"`
	Categories []*CategorySummary `json:"categories"`
	Unique     int                `json:"unique"`
	Elapsed    time.Duration      `json:"elapsed"`
}

// Totals merges the counters of every category.
func (s *Summary) Totals() *CategorySummary {
	total := &CategorySummary{}
	for _, c := range s.Categories {
		total.Merge(c)
	}

	return total
}

// Err joins the per-category errors, or returns nil when none failed.
func (s *Summary) Err() error {
	var errs []error

	for _, c := range s.Categories {
		if c.Err != nil {
			errs = append(errs, fmt.Errorf("category %s: %w", c.Category, c.Err))
		}
	}

	return errors.Join(errs...)
}

// AllFailed reports whether every category ended with an error.
func (s *Summary) AllFailed() bool {
	if len(s.Categories) == 0 {
		return false
	}

	for _, c := range s.Categories {
		if c.Err == nil {
			return false
		}
	}

	return true
}
