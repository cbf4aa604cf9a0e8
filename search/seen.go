// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package search

import "sync"

// Seen is the set of place identifiers already rendered in a session. It only
// grows, and is safe for concurrent use so categories searched in parallel
// can share it.
type Seen struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewSeen returns an empty set.
func NewSeen() *Seen {
	return &Seen{ids: make(map[string]struct{})}
}

// Admit inserts id and reports whether it was not present before. The check
// and the insert happen under one lock, so of two concurrent callers with the
// same id exactly one is admitted. Empty identifiers are never admitted.
func (s *Seen) Admit(id string) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}

	s.ids[id] = struct{}{}

	return true
}

// Contains reports whether id was admitted.
func (s *Seen) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.ids[id]

	return ok
}

// Len returns the number of admitted identifiers.
func (s *Seen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ids)
}
