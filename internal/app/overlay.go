package app

import (
	"context"
	"fmt"
	"log"

	"blue-scan/internal/anchor"
	"blue-scan/internal/directory"
	"blue-scan/internal/monitor"
	"blue-scan/internal/render"
	"blue-scan/internal/surface"
	"blue-scan/internal/viewport"
)

// Resolver returns an anchor resolver for the configured location
// parameters.
func (s *State) Resolver() *anchor.Resolver {
	return anchor.NewResolver(s.Config.LocationXParam, s.Config.LocationYParam)
}

// NewMonitor builds the overlay monitor from the configuration and attaches
// it to the state. Overlay layers come from tracker's factory.
func (s *State) NewMonitor(tracker *surface.Tracker, locator surface.Locator, pages anchor.PageSource) *monitor.Monitor {
	m := monitor.New(tracker, locator, s.Cache(), pages, s.Resolver(), s.Session,
		render.New(s.Config.Diagnostics),
		monitor.Options{
			Interval:     s.Config.TickInterval,
			FetchTimeout: s.Config.FetchTimeout,
			ListEvery:    s.Config.ListEvery,
			AttachPolicy: s.Config.AttachPolicy(),
		})
	s.AttachMonitor(m)
	return m
}

// AttachMonitor forwards the monitor's state changes and frames as events.
func (s *State) AttachMonitor(m *monitor.Monitor) {
	s.mu.Lock()
	s.monitor = m
	s.mu.Unlock()
	m.OnState(func(st monitor.State) { s.Emit(EventOverlayState, st) })
	m.OnFrame(func(f render.Frame) { s.Emit(EventFrameRendered, f) })
}

// Monitor returns the attached monitor, if any.
func (s *State) Monitor() *monitor.Monitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitor
}

// OverlayRunning reports whether the overlay loop is running.
func (s *State) OverlayRunning() bool {
	m := s.Monitor()
	return m != nil && m.Running()
}

// StartOverlay starts drawing outlines over the host surface.
func (s *State) StartOverlay(ctx context.Context) error {
	m := s.Monitor()
	if m == nil {
		return ErrNoMonitor
	}
	return m.Start(ctx)
}

// StopOverlay stops the overlay loop and removes the overlay.
func (s *State) StopOverlay() {
	if m := s.Monitor(); m != nil {
		m.Stop()
	}
}

// ToggleOverlay starts or stops the overlay and reports whether it is now
// running.
func (s *State) ToggleOverlay(ctx context.Context) (bool, error) {
	if s.OverlayRunning() {
		s.StopOverlay()
		return false, nil
	}
	if err := s.StartOverlay(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SetLocation records the current view location.
func (s *State) SetLocation(location string) {
	s.mu.Lock()
	s.Location = location
	s.mu.Unlock()
	s.Emit(EventLocationChanged, location)
}

// CurrentLocation returns the current view location.
func (s *State) CurrentLocation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Location
}

// Pin records a manually picked top-left anchor for this session.
func (s *State) Pin(a viewport.Anchor) {
	if !a.Known {
		s.Status("Pin failed: surface not available")
		return
	}
	s.Session.Pin(a)
	s.Emit(EventPinned, a)
	s.Status("Pinned TL %s", a)
}

// Goto moves the view to an artwork's top-left corner by rewriting the
// location's coordinate parameters, and copies "(x,y)" to the clipboard.
// A clipboard failure is logged, not returned.
func (s *State) Goto(id directory.ID) (string, error) {
	s.mu.RLock()
	a, ok := directory.Find(s.Artworks, id)
	location := s.Location
	copyText := s.copyText
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("artwork %s not listed", id)
	}

	url, err := s.Resolver().LocationFor(location, a.X, a.Y)
	if err != nil {
		return "", err
	}
	s.SetLocation(url)

	coords := fmt.Sprintf("(%g,%g)", a.X, a.Y)
	if copyText != nil {
		if err := copyText(coords); err != nil {
			log.Printf("App: clipboard unavailable: %v", err)
		}
	}
	s.Status("Go to %s", coords)
	return url, nil
}
