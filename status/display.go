// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"log"
	"sync"
)

// Display is the surface holding the status line.
type Display interface {
	SetText(text string)
	SetVisible(visible bool)
}

// Memory keeps the status line in memory along with every message shown.
type Memory struct {
	mu      sync.Mutex
	text    string
	visible bool
	history []string
}

// SetText implements Display.
func (m *Memory) SetText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.text = text
	m.history = append(m.history, text)
}

// SetVisible implements Display.
func (m *Memory) SetVisible(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.visible = visible
}

// Text returns the current message.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.text
}

// Visible reports whether the line is shown.
func (m *Memory) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.visible
}

// History returns every message shown, oldest first.
func (m *Memory) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.history...)
}

// LogDisplay writes each new message to the standard logger.
type LogDisplay struct {
	Prefix string
}

// SetText implements Display.
func (d LogDisplay) SetText(text string) {
	log.Printf("%s%s", d.Prefix, text)
}

// SetVisible implements Display.
func (LogDisplay) SetVisible(bool) {}

// Multi fans out to several displays.
type Multi []Display

// SetText implements Display.
func (m Multi) SetText(text string) {
	for _, d := range m {
		d.SetText(text)
	}
}

// SetVisible implements Display.
func (m Multi) SetVisible(visible bool) {
	for _, d := range m {
		d.SetVisible(visible)
	}
}

// DisplayFunc adapts a pair of functions to Display.
type DisplayFunc struct {
	Text    func(text string)
	Visible func(visible bool)
}

// SetText implements Display.
func (f DisplayFunc) SetText(text string) {
	if f.Text != nil {
		f.Text(text)
	}
}

// SetVisible implements Display.
func (f DisplayFunc) SetVisible(visible bool) {
	if f.Visible != nil {
		f.Visible(visible)
	}
}
