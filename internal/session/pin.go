package session

import (
	"sync"

	"blue-scan/internal/viewport"
)

// ClickSource delivers clicks on the host surface in screen coordinates.
// OnClick returns a function that removes the handler.
type ClickSource interface {
	OnClick(handler func(screenX, screenY float64)) (cancel func())
}

// GeometryFunc returns the current host surface geometry.
type GeometryFunc func() (viewport.Geometry, bool)

// PinCapture is a one-shot subscription waiting for the click that pins
// the top-left anchor.
type PinCapture struct {
	once   sync.Once
	cancel func()
}

// Cancel removes the click handler. It is safe to call more than once.
func (c *PinCapture) Cancel() {
	if c == nil {
		return
	}
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
	})
}

// BeginPin arms a one-shot click capture on src. The first click is
// mapped back through the surface transform, converted with
// viewport.ProjectPoint, stored as the pinned anchor and passed to done.
// If the surface geometry is unavailable, done receives viewport.Unknown
// and nothing is pinned. Any capture already armed is cancelled first.
func (s *State) BeginPin(src ClickSource, geom GeometryFunc, done func(viewport.Anchor)) *PinCapture {
	s.CancelPin()

	capture := &PinCapture{}
	var fired sync.Once
	cancel := src.OnClick(func(screenX, screenY float64) {
		fired.Do(func() {
			capture.Cancel()
			s.clearCapture(capture)

			a := viewport.Unknown
			if g, ok := geom(); ok {
				if p, ok := g.SurfacePoint(screenX, screenY); ok {
					if x, y, ok := viewport.ProjectPoint(p.X, p.Y, g); ok {
						a = viewport.At(float64(x), float64(y))
						s.Pin(a)
					}
				}
			}
			if done != nil {
				done(a)
			}
		})
	})
	capture.cancel = cancel

	s.mu.Lock()
	s.capture = capture
	s.mu.Unlock()
	return capture
}

// CancelPin drops the armed capture, if any.
func (s *State) CancelPin() {
	s.mu.Lock()
	c := s.capture
	s.capture = nil
	s.mu.Unlock()
	c.Cancel()
}

// Pinning reports whether a capture is armed.
func (s *State) Pinning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capture != nil
}

func (s *State) clearCapture(c *PinCapture) {
	s.mu.Lock()
	if s.capture == c {
		s.capture = nil
	}
	s.mu.Unlock()
}
