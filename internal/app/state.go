// Package app provides application lifecycle management, configuration, and events.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"blue-scan/internal/config"
	"blue-scan/internal/directory"
	"blue-scan/internal/monitor"
	"blue-scan/internal/session"
	"blue-scan/internal/template"

	"github.com/atotto/clipboard"
)

// State holds the application state: backend connection, artwork listing,
// the overlay session and its monitor.
type State struct {
	mu sync.RWMutex

	Config config.Config

	// Backend
	Backend string
	client  *directory.Client
	cache   *directory.Cache

	// Artworks as last listed, in backend order.
	Artworks []directory.Artwork

	// Overlay session (pinned anchor, template preview).
	Session *session.State
	monitor *monitor.Monitor

	// Location is the current view location; its x/y parameters are the
	// last-resort anchor.
	Location string

	copyText func(string) error

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventBackendChanged EventType = iota
	EventArtworksChanged
	EventPreviewChanged
	EventPinned
	EventLocationChanged
	EventOverlayState
	EventFrameRendered
	EventStatus
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// ErrNoMonitor is returned by overlay actions before AttachMonitor.
var ErrNoMonitor = errors.New("overlay monitor not configured")

// NewState creates a new application state.
func NewState(cfg config.Config) *State {
	s := &State{
		Config:    cfg,
		Session:   session.New(),
		copyText:  clipboard.WriteAll,
		listeners: make(map[EventType][]EventListener),
	}
	s.setBackend(directory.Normalize(cfg.BackendURL))
	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Status emits a user-facing status line.
func (s *State) Status(format string, args ...any) {
	s.Emit(EventStatus, fmt.Sprintf(format, args...))
}

// SetClipboard replaces the clipboard writer.
func (s *State) SetClipboard(fn func(string) error) {
	s.mu.Lock()
	s.copyText = fn
	s.mu.Unlock()
}

// Client returns the backend client.
func (s *State) Client() *directory.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Cache returns the stale-tolerant artwork cache for the current backend.
func (s *State) Cache() *directory.Cache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

// SetBackend switches to a backend URL.
func (s *State) SetBackend(url string) {
	s.setBackend(directory.Normalize(url))
	s.Emit(EventBackendChanged, s.BackendURL())
}

// BackendURL returns the current backend URL.
func (s *State) BackendURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Backend
}

func (s *State) setBackend(url string) {
	client := directory.NewClient(url, nil).WithTimeout(s.Config.FetchTimeout)
	s.mu.Lock()
	s.Backend = url
	s.client = client
	if s.cache == nil {
		s.cache = directory.NewCache(lister{s})
	}
	s.mu.Unlock()
}

// lister routes cache fetches to whichever backend is current.
type lister struct{ s *State }

func (l lister) List(ctx context.Context) ([]directory.Artwork, error) {
	return l.s.Client().List(ctx)
}

// ResolveBackend discovers a reachable backend, trying the configured URL,
// then remembered, then the local defaults. When nothing answers the first
// candidate is kept and directory.ErrNoBackend returned.
func (s *State) ResolveBackend(ctx context.Context, remembered string) (string, error) {
	candidates := directory.Candidates(s.Config.BackendURL, remembered)
	url, err := directory.Discover(ctx, nil, candidates, s.Config.HealthTimeout)
	if url != "" {
		s.SetBackend(url)
	}
	if err != nil {
		log.Printf("App: no backend answered, using %s", url)
	}
	return url, err
}

// Ping checks backend health.
func (s *State) Ping(ctx context.Context) error {
	if err := s.Client().Health(ctx); err != nil {
		s.Status("Ping failed: %v", err)
		return err
	}
	s.Status("Ping OK")
	return nil
}

// RefreshArtworks re-lists artworks. On failure the previous listing is
// kept and returned with the error.
func (s *State) RefreshArtworks(ctx context.Context) ([]directory.Artwork, error) {
	list, err := s.Cache().List(ctx)
	if err != nil {
		log.Printf("App: list artworks: %v", err)
		return list, err
	}
	s.mu.Lock()
	s.Artworks = list
	s.mu.Unlock()
	s.Emit(EventArtworksChanged, list)
	return list, nil
}

// CreateArtwork uploads a template anchored at (tlX, tlY). The template
// becomes the session's preview.
func (s *State) CreateArtwork(ctx context.Context, name string, tlX, tlY int, dataURL string) (directory.Artwork, error) {
	preview, err := template.NewPreview(dataURL, tlX, tlY)
	if err != nil {
		return directory.Artwork{}, fmt.Errorf("template: %w", err)
	}
	a, err := s.Client().PlaceTL(ctx, directory.PlaceRequest{Name: name, TLX: tlX, TLY: tlY, DataURL: dataURL})
	if err != nil {
		s.Status("Create failed: %v", err)
		return directory.Artwork{}, err
	}
	s.Session.SetPreview(preview)
	s.Emit(EventPreviewChanged, preview)
	s.Status("Created %q at (%d,%d), %dx%d", name, tlX, tlY, preview.NativeWidth, preview.NativeHeight)
	_, _ = s.RefreshArtworks(ctx)
	return a, nil
}

// DeleteArtwork removes an artwork and refreshes the listing.
func (s *State) DeleteArtwork(ctx context.Context, id directory.ID) error {
	if err := s.Client().Delete(ctx, id); err != nil {
		s.Status("Delete failed: %v", err)
		return err
	}
	_, _ = s.RefreshArtworks(ctx)
	return nil
}

// SetMode switches an artwork between build and protect.
func (s *State) SetMode(ctx context.Context, id directory.ID, mode directory.Mode) error {
	if _, err := s.Client().SetMode(ctx, id, mode); err != nil {
		s.Status("Mode change failed: %v", err)
		return err
	}
	s.Status("Mode=%s", mode)
	_, _ = s.RefreshArtworks(ctx)
	return nil
}

// Snapshot captures an artwork's baseline.
func (s *State) Snapshot(ctx context.Context, id directory.ID) error {
	if _, err := s.Client().Snapshot(ctx, id); err != nil {
		s.Status("Baseline failed: %v", err)
		return err
	}
	s.Status("Baseline OK")
	return nil
}

// Ground captures the ground under an artwork.
func (s *State) Ground(ctx context.Context, id directory.ID) error {
	if _, err := s.Client().GroundSnapshot(ctx, id); err != nil {
		s.Status("Ground snapshot failed: %v", err)
		return err
	}
	s.Status("Ground snapshot OK")
	return nil
}

// UpdateTemplate replaces an artwork's template.
func (s *State) UpdateTemplate(ctx context.Context, id directory.ID, dataURL string) error {
	if _, err := template.DecodeDataURL(dataURL); err != nil {
		return err
	}
	if _, err := s.Client().SetTemplate(ctx, id, dataURL); err != nil {
		s.Status("Template update failed: %v", err)
		return err
	}
	s.Status("Template updated")
	return nil
}

// StartBackendMonitor starts server-side monitoring.
func (s *State) StartBackendMonitor(ctx context.Context) error {
	st, err := s.Client().MonitorStart(ctx)
	if err != nil {
		s.Status("Start failed: %v", err)
		return err
	}
	s.Status("Monitoring (%s)", st.Status)
	return nil
}

// StopBackendMonitor stops server-side monitoring.
func (s *State) StopBackendMonitor(ctx context.Context) error {
	if _, err := s.Client().MonitorStop(ctx); err != nil {
		s.Status("Stop failed: %v", err)
		return err
	}
	s.Status("Stopped")
	return nil
}
