// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package status drives the single status line of a session: a progress
// message per phase and the hiding of the line once the search is over.
package status

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/jcodagnone/eaterymap/utils/textutils"
)

// DefaultHideDelay is how long the final message stays visible.
const DefaultHideDelay = 6 * time.Second

// State is a phase of a session as seen by the status line.
type State int

const (
	Idle State = iota
	Locating
	LocationFailed
	LocationResolved
	Searching
	SearchComplete
	Failed
	Hidden
)

var stateNames = [...]string{
	Idle:             "idle",
	Locating:         "locating",
	LocationFailed:   "location_failed",
	LocationResolved: "location_resolved",
	Searching:        "searching",
	SearchComplete:   "search_complete",
	Failed:           "failed",
	Hidden:           "hidden",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}

	return stateNames[s]
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var transitions = map[State][]State{
	Idle:             {Locating, LocationResolved},
	Locating:         {LocationResolved, LocationFailed},
	LocationFailed:   {LocationResolved},
	LocationResolved: {Searching, SearchComplete, Failed},
	Searching:        {Searching, SearchComplete, Failed},
	SearchComplete:   {Hidden},
	Failed:           {Hidden},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

// Messages shown on the status line.
const (
	MsgLocating      = "Locating you…"
	MsgLocationFound = "Location found!"
	MsgSearchFailed  = "Could not fetch data for eating places."
)

// DefaultingMessage is shown when the fallback coordinate replaces the
// client location.
func DefaultingMessage(fallback spatial.Point) string {
	return fmt.Sprintf("Unable to retrieve your location. Defaulting to %.4f, %.4f.", fallback.Lat, fallback.Lng)
}

// SearchingMessage is shown while a category is being searched.
func SearchingMessage(category string) string {
	return fmt.Sprintf("Searching for %s…", textutils.Humanize(category))
}

// FoundMessage is shown once the search is over.
func FoundMessage(n int) string {
	return fmt.Sprintf("Found %s places.", textutils.FormatInt(int64(n)))
}

// Timer is a scheduled function that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Reporter owns the status line of one session.
type Reporter struct {
	mu        sync.Mutex
	display   Display
	hideDelay time.Duration
	afterFunc AfterFunc
	state     State
	text      string
	timer     Timer
	done      chan struct{}
}

// NewReporter returns a reporter writing to display. A non-positive
// hideDelay selects DefaultHideDelay.
func NewReporter(display Display, hideDelay time.Duration) *Reporter {
	if hideDelay <= 0 {
		hideDelay = DefaultHideDelay
	}

	return &Reporter{
		display:   display,
		hideDelay: hideDelay,
		afterFunc: realAfterFunc,
		done:      make(chan struct{}),
	}
}

// WithAfterFunc replaces the timer used to hide the status line.
func (r *Reporter) WithAfterFunc(f AfterFunc) *Reporter {
	r.afterFunc = f

	return r
}

// State returns the current phase.
func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Text returns the current message.
func (r *Reporter) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.text
}

// Done is closed when the status line hides.
func (r *Reporter) Done() <-chan struct{} {
	return r.done
}

// set moves to state `to` and shows text. Illegal transitions are logged and
// ignored.
func (r *Reporter) set(to State, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.state, to) {
		log.Printf("Status - ignoring transition %s -> %s", r.state, to)

		return false
	}

	r.state = to

	if text != "" {
		r.text = text
		r.display.SetText(text)
		r.display.SetVisible(true)
	}

	return true
}

// Locating reports that the client location is being acquired.
func (r *Reporter) Locating() {
	r.set(Locating, MsgLocating)
}

// LocationFound reports that the client location is known.
func (r *Reporter) LocationFound() {
	r.set(LocationResolved, MsgLocationFound)
}

// LocationFailed reports that the fallback coordinate is used instead of the
// client location.
func (r *Reporter) LocationFailed(fallback spatial.Point) {
	if r.set(LocationFailed, DefaultingMessage(fallback)) {
		// keep the defaulting message on screen
		r.set(LocationResolved, "")
	}
}

// Searching reports the category being searched.
func (r *Reporter) Searching(category string) {
	r.set(Searching, SearchingMessage(category))
}

// Complete reports the number of unique places found and schedules hiding.
func (r *Reporter) Complete(found int) {
	if r.set(SearchComplete, FoundMessage(found)) {
		r.scheduleHide()
	}
}

// Failed reports a search-wide failure and schedules hiding.
func (r *Reporter) Failed(err error) {
	if err != nil {
		log.Printf("Status - search failed: %v", err)
	}

	if r.set(Failed, MsgSearchFailed) {
		r.scheduleHide()
	}
}

func (r *Reporter) scheduleHide() {
	t := r.afterFunc(r.hideDelay, r.Hide)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Hidden {
		r.timer = t
	}
}

// Hide hides the status line now.
func (r *Reporter) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.state, Hidden) {
		return
	}

	r.state = Hidden
	r.display.SetVisible(false)

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	close(r.done)
}

// Close stops a pending hide without hiding the line.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
