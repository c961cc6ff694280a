package viewport

import "math"

// Project maps a world rectangle onto the overlay. It reports false when the
// anchor is unknown or the surface has no pixel buffer; in that case nothing
// should be drawn for this tick. No rounding is applied.
func Project(r WorldRect, a Anchor, g Geometry) (LocalRect, bool) {
	if !a.Known {
		return LocalRect{}, false
	}
	sx, sy, ok := g.Scale()
	if !ok {
		return LocalRect{}, false
	}
	return LocalRect{
		X: (r.X - a.X) * sx,
		Y: (r.Y - a.Y) * sy,
		W: r.W * sx,
		H: r.H * sy,
	}, true
}

// ProjectPoint converts a click inside the surface (relative to its
// top-left corner, in display units) into buffer pixels. It maps through
// the screen/buffer ratio only: pinning establishes an anchor, so it must
// not consume one. ok is false until the surface has both a display size
// and a pixel buffer.
func ProjectPoint(localX, localY float64, g Geometry) (x, y int, ok bool) {
	if g.DisplayWidth <= 0 || g.DisplayHeight <= 0 {
		return 0, 0, false
	}
	if g.BufferWidth <= 0 || g.BufferHeight <= 0 {
		return 0, 0, false
	}
	x = int(math.Round(localX * float64(g.BufferWidth) / g.DisplayWidth))
	y = int(math.Round(localY * float64(g.BufferHeight) / g.DisplayHeight))
	return x, y, true
}
