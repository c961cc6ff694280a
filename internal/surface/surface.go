// Package surface keeps an overlay layer geometrically congruent with the
// host surface it decorates.
package surface

import (
	"errors"

	"blue-scan/internal/viewport"
	"blue-scan/pkg/geometry"
)

// ErrSurfaceNotFound is returned when there is no host surface to track, or
// it disappeared.
var ErrSurfaceNotFound = errors.New("host surface not found")

// Host is the surface being overlaid.
type Host interface {
	// Geometry reads the surface's current on-screen geometry. It returns
	// ErrSurfaceNotFound once the surface is gone.
	Geometry() (viewport.Geometry, error)
}

// ResizeNotifier is implemented by hosts that can signal size changes.
// Notifications are a hint only; polling remains the backstop.
type ResizeNotifier interface {
	OnResize(func()) (cancel func())
}

// Locator finds the host surface.
type Locator interface {
	Locate() (Host, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func() (Host, error)

// Locate implements Locator.
func (f LocatorFunc) Locate() (Host, error) { return f() }

// Layer is the overlay's rendering layer as seen by the tracker.
type Layer interface {
	// Place moves the layer's bounding box (screen units).
	Place(bounds geometry.Rect)
	// Resize sets the pixel buffer size and the density it was derived with.
	Resize(width, height int, density float64)
	// SetTransform mirrors the host surface's 2D transform.
	SetTransform(t geometry.AffineTransform)
	// Release frees the layer. It is not used again afterwards.
	Release()
}

// LayerOptions describes how a layer must be created.
type LayerOptions struct {
	// Transparent layers show the host surface through unpainted pixels.
	Transparent bool
	// PassThrough layers never intercept input.
	PassThrough bool
}

// LayerFactory creates overlay layers.
type LayerFactory func(opts LayerOptions) Layer

// Largest returns the host with the largest pixel buffer among hosts that
// can currently report geometry.
func Largest(hosts []Host) (Host, error) {
	var best Host
	bestArea := -1
	for _, h := range hosts {
		if h == nil {
			continue
		}
		g, err := h.Geometry()
		if err != nil {
			continue
		}
		if area := g.BufferWidth * g.BufferHeight; area > bestArea {
			best, bestArea = h, area
		}
	}
	if best == nil {
		return nil, ErrSurfaceNotFound
	}
	return best, nil
}
