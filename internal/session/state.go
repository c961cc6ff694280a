// Package session holds the state of one monitoring session: the anchor the
// operator pinned by clicking the surface and the last template preview.
package session

import (
	"sync"

	"blue-scan/internal/template"
	"blue-scan/internal/viewport"
)

// State is shared between the upload flow, the anchor resolver and the
// overlay renderer. It lives for the duration of one monitoring session.
type State struct {
	mu      sync.RWMutex
	pinned  viewport.Anchor
	preview *template.Preview
	capture *PinCapture
}

// New creates an empty session.
func New() *State {
	return &State{}
}

// Pin records a as the explicitly pinned anchor.
func (s *State) Pin(a viewport.Anchor) {
	s.mu.Lock()
	s.pinned = a
	s.mu.Unlock()
}

// PinnedAnchor returns the pinned anchor, or viewport.Unknown.
func (s *State) PinnedAnchor() viewport.Anchor {
	if s == nil {
		return viewport.Unknown
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinned
}

// ClearPin forgets the pinned anchor.
func (s *State) ClearPin() {
	s.Pin(viewport.Unknown)
}

// SetPreview replaces the template preview. nil clears it.
func (s *State) SetPreview(p *template.Preview) {
	s.mu.Lock()
	s.preview = p
	s.mu.Unlock()
}

// Preview returns the current template preview, if any.
func (s *State) Preview() *template.Preview {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preview
}

// Reset ends the session: the pin, the preview and any armed capture go away.
func (s *State) Reset() {
	s.CancelPin()
	s.mu.Lock()
	s.pinned = viewport.Unknown
	s.preview = nil
	s.mu.Unlock()
}
