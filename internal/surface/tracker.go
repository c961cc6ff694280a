package surface

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"blue-scan/internal/viewport"
)

// Handle is an attached overlay.
type Handle struct {
	Layer    Layer
	Geometry viewport.Geometry
}

// Tracker owns one overlay layer and keeps it matched to a host surface.
type Tracker struct {
	mu       sync.Mutex
	newLayer LayerFactory
	host     Host
	handle   *Handle
	unhook   func()
	onResize func()
}

// NewTracker creates a tracker that builds its layers with newLayer.
func NewTracker(newLayer LayerFactory) *Tracker {
	return &Tracker{newLayer: newLayer}
}

// OnResize registers a callback invoked when an attached host reports a
// size change. Set it before Attach.
func (t *Tracker) OnResize(fn func()) {
	t.mu.Lock()
	t.onResize = fn
	t.mu.Unlock()
}

// Attach creates a transparent, pass-through layer over host and sizes it
// to the host's current geometry. Any previous attachment is released
// first. It fails with ErrSurfaceNotFound when host is nil or cannot be
// read; the caller is expected to retry.
func (t *Tracker) Attach(host Host) (*Handle, error) {
	if host == nil {
		return nil, ErrSurfaceNotFound
	}
	g, err := host.Geometry()
	if err != nil {
		return nil, fmt.Errorf("attach: %w", wrapNotFound(err))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.releaseLocked()

	layer := t.newLayer(LayerOptions{Transparent: true, PassThrough: true})
	hint := t.onResize
	apply(layer, g)

	t.host = host
	t.handle = &Handle{Layer: layer, Geometry: g}
	if n, ok := host.(ResizeNotifier); ok && hint != nil {
		t.unhook = n.OnResize(hint)
	}
	return t.handle, nil
}

// Resync re-reads the host geometry and applies it to the layer: bounding
// box, pixel buffer (display size times density) and transform. It returns
// the geometry observed so a caller can use one reading for a whole frame.
// When nothing is attached or the host is gone it does nothing and reports
// false; the overlay stays as it was until the next successful Attach.
func (t *Tracker) Resync() (viewport.Geometry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle == nil || t.host == nil {
		return viewport.Geometry{}, false
	}
	g, err := t.host.Geometry()
	if err != nil {
		return viewport.Geometry{}, false
	}
	apply(t.handle.Layer, g)
	t.handle.Geometry = g
	return g, true
}

// Attached reports whether a layer is currently attached.
func (t *Tracker) Attached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle != nil
}

// Detach releases the layer and the resize subscription. It is safe to call
// when nothing is attached.
func (t *Tracker) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked()
}

func (t *Tracker) releaseLocked() {
	if t.unhook != nil {
		t.unhook()
		t.unhook = nil
	}
	if t.handle != nil {
		t.handle.Layer.Release()
		t.handle = nil
	}
	t.host = nil
}

// BufferSize returns the overlay pixel buffer size for g: the display size
// multiplied by the pixel density, floored.
func BufferSize(g viewport.Geometry) (w, h int) {
	d := g.Density()
	w = int(math.Floor(g.DisplayWidth * d))
	h = int(math.Floor(g.DisplayHeight * d))
	return max(w, 0), max(h, 0)
}

func apply(layer Layer, g viewport.Geometry) {
	layer.Place(g.ScreenBounds())
	w, h := BufferSize(g)
	layer.Resize(w, h, g.Density())
	layer.SetTransform(g.Transform.Normalize())
}

func wrapNotFound(err error) error {
	if errors.Is(err, ErrSurfaceNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSurfaceNotFound, err)
}
