// Package viewport holds the world/local coordinate model shared by the
// overlay components and the projection between the two spaces.
package viewport

import (
	"fmt"

	"blue-scan/pkg/geometry"
)

// WorldRect is an artwork rectangle in backend pixel coordinates.
type WorldRect struct {
	ID string
	X  float64
	Y  float64
	W  float64
	H  float64
}

// Anchor is the world coordinate currently mapped to the host surface's
// local origin. The zero value is Unknown.
type Anchor struct {
	X     float64
	Y     float64
	Known bool
}

// Unknown is the absent anchor. Callers must not draw when they hold it.
var Unknown = Anchor{}

// At returns a known anchor.
func At(x, y float64) Anchor {
	return Anchor{X: x, Y: y, Known: true}
}

func (a Anchor) String() string {
	if !a.Known {
		return "unknown"
	}
	return fmt.Sprintf("(%g,%g)", a.X, a.Y)
}

// Geometry is one observation of the host surface.
type Geometry struct {
	ScreenLeft    float64
	ScreenTop     float64
	DisplayWidth  float64
	DisplayHeight float64
	BufferWidth   int
	BufferHeight  int
	PixelDensity  float64
	Transform     geometry.AffineTransform
}

// Density returns the pixel density, treating unset values as 1.
func (g Geometry) Density() float64 {
	if g.PixelDensity <= 0 {
		return 1
	}
	return g.PixelDensity
}

// Scale returns the display/buffer ratio per axis. ok is false while the
// surface has no pixel buffer yet.
func (g Geometry) Scale() (sx, sy float64, ok bool) {
	if g.BufferWidth <= 0 || g.BufferHeight <= 0 {
		return 0, 0, false
	}
	return g.DisplayWidth / float64(g.BufferWidth), g.DisplayHeight / float64(g.BufferHeight), true
}

// ScreenBounds returns the surface's on-screen bounding box.
func (g Geometry) ScreenBounds() geometry.Rect {
	return geometry.NewRect(g.ScreenLeft, g.ScreenTop, g.DisplayWidth, g.DisplayHeight)
}

// SurfacePoint converts a screen position into surface-local display
// units. The transform is taken about the surface's top-left corner and
// ScreenLeft/ScreenTop give the top-left of the transformed bounding box.
// ok is false when the transform cannot be inverted.
func (g Geometry) SurfacePoint(screenX, screenY float64) (geometry.Point2D, bool) {
	p := geometry.NewPoint2D(screenX, screenY).Sub(g.ScreenBounds().TopLeft())
	t := g.Transform.Normalize()
	if t.IsIdentity() {
		return p, true
	}

	// Translation moves the bounding box, which ScreenLeft/ScreenTop
	// already include.
	linear := t
	linear.TX, linear.TY = 0, 0
	inv, ok := linear.Inverse()
	if !ok {
		return geometry.Point2D{}, false
	}
	box := geometry.BoundingBox([]geometry.Point2D{
		linear.Apply(geometry.NewPoint2D(0, 0)),
		linear.Apply(geometry.NewPoint2D(g.DisplayWidth, 0)),
		linear.Apply(geometry.NewPoint2D(0, g.DisplayHeight)),
		linear.Apply(geometry.NewPoint2D(g.DisplayWidth, g.DisplayHeight)),
	})
	return inv.Apply(geometry.NewPoint2D(p.X+box.X, p.Y+box.Y)), true
}

// LocalRect is a rectangle in overlay-local pixels.
type LocalRect struct {
	X float64
	Y float64
	W float64
	H float64
}
