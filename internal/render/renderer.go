// Package render paints projected artwork outlines and the template preview
// onto an overlay layer.
package render

import (
	"fmt"
	"image"
	"image/color"

	"blue-scan/internal/template"
	"blue-scan/internal/viewport"
	"blue-scan/pkg/colorutil"
)

// Stroke describes an outline.
type Stroke struct {
	Color color.Color
	Width float64
	Dash  []float64
}

// Canvas is the drawing surface of an overlay layer. Coordinates are
// overlay-local display units.
type Canvas interface {
	Clear()
	StrokeRect(r viewport.LocalRect, s Stroke)
	ShowPreview(img image.Image, r viewport.LocalRect)
	HidePreview()
	Annotate(text string)
}

// Suppression reasons reported in Frame.
const (
	ReasonAnchorUnknown   = "anchor unknown"
	ReasonSurfaceNotReady = "surface not rendered"
)

// Projected is one outline drawn in a frame.
type Projected struct {
	Index int
	ID    string
	Hue   int
	Local viewport.LocalRect
}

// Frame reports what one Render call drew.
type Frame struct {
	Anchor     viewport.Anchor
	ScaleX     float64
	ScaleY     float64
	Suppressed bool
	Reason     string
	Rects      []Projected
	Preview    *viewport.LocalRect
	Label      string
}

// Renderer draws frames. The zero value draws 2px dashed outlines without
// diagnostics.
type Renderer struct {
	LineWidth   float64
	Dash        []float64
	Diagnostics bool
}

// New returns a renderer with the default outline style.
func New(diagnostics bool) *Renderer {
	return &Renderer{LineWidth: 2, Dash: []float64{6, 4}, Diagnostics: diagnostics}
}

// Render clears c and redraws every rectangle from scratch. Nothing but an
// optional diagnostic label is drawn while the anchor is unknown or the
// surface has no pixel buffer. All rectangles use the single geometry g.
func (r *Renderer) Render(c Canvas, rects []viewport.WorldRect, a viewport.Anchor, g viewport.Geometry, preview *template.Preview) Frame {
	c.Clear()
	frame := Frame{Anchor: a}

	sx, sy, ok := g.Scale()
	switch {
	case !a.Known:
		frame.Suppressed, frame.Reason = true, ReasonAnchorUnknown
	case !ok:
		frame.Suppressed, frame.Reason = true, ReasonSurfaceNotReady
	}
	if frame.Suppressed {
		c.HidePreview()
		r.annotate(c, &frame, frame.Reason)
		return frame
	}
	frame.ScaleX, frame.ScaleY = sx, sy

	for i, wr := range rects {
		local, ok := viewport.Project(wr, a, g)
		if !ok {
			continue
		}
		c.StrokeRect(local, r.stroke(i))
		frame.Rects = append(frame.Rects, Projected{
			Index: i,
			ID:    wr.ID,
			Hue:   colorutil.ArtworkHue(i),
			Local: local,
		})
	}

	if preview.Usable() {
		if local, ok := viewport.Project(preview.Rect(), a, g); ok {
			c.ShowPreview(preview.Image, local)
			frame.Preview = &local
		} else {
			c.HidePreview()
		}
	} else {
		c.HidePreview()
	}

	r.annotate(c, &frame, fmt.Sprintf("anchor=(%g,%g) scale=%.3fx%.3f", a.X, a.Y, sx, sy))
	return frame
}

func (r *Renderer) stroke(i int) Stroke {
	width := r.LineWidth
	if width <= 0 {
		width = 2
	}
	dash := r.Dash
	if dash == nil {
		dash = []float64{6, 4}
	}
	return Stroke{Color: colorutil.ArtworkColor(i), Width: width, Dash: dash}
}

func (r *Renderer) annotate(c Canvas, f *Frame, text string) {
	if !r.Diagnostics {
		return
	}
	f.Label = text
	c.Annotate(text)
}
