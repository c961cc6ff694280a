// Package overlay provides an off-screen raster overlay layer. It satisfies
// both surface.Layer, so a tracker can keep it congruent with the host, and
// render.Canvas, so the renderer can paint into it.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"sync"

	"blue-scan/internal/render"
	"blue-scan/internal/surface"
	"blue-scan/internal/viewport"
	"blue-scan/pkg/colorutil"
	"blue-scan/pkg/geometry"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// PreviewOpacity is the alpha applied to the template preview.
const PreviewOpacity = 0.35

// Raster is an RGBA overlay buffer. Drawing coordinates are overlay-local
// display units; the buffer holds density pixels per unit.
type Raster struct {
	mu        sync.Mutex
	opts      surface.LayerOptions
	bounds    geometry.Rect
	density   float64
	transform geometry.AffineTransform
	buf       *image.RGBA
	dc        *gg.Context
	preview   *viewport.LocalRect
	label     string
	released  bool
	onChange  func()
}

// NewRaster creates an empty raster. It matches surface.LayerFactory when
// wrapped by Factory.
func NewRaster(opts surface.LayerOptions) *Raster {
	r := &Raster{opts: opts, density: 1, transform: geometry.Identity()}
	r.resizeLocked(0, 0)
	return r
}

// Factory returns a surface.LayerFactory producing rasters. Every created
// raster is also passed to created, if non-nil, so the caller can present it.
func Factory(created func(*Raster)) surface.LayerFactory {
	return func(opts surface.LayerOptions) surface.Layer {
		r := NewRaster(opts)
		if created != nil {
			created(r)
		}
		return r
	}
}

// OnChange registers a callback run after every drawing call.
func (r *Raster) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Place implements surface.Layer.
func (r *Raster) Place(bounds geometry.Rect) {
	r.mu.Lock()
	r.bounds = bounds
	r.mu.Unlock()
}

// Resize implements surface.Layer. The buffer is reallocated only when its
// size changes; reallocation clears it.
func (r *Raster) Resize(width, height int, density float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if density <= 0 {
		density = 1
	}
	r.density = density
	if r.released {
		return
	}
	b := r.buf.Bounds()
	if b.Dx() != width || b.Dy() != height {
		r.resizeLocked(width, height)
	}
}

// SetTransform implements surface.Layer.
func (r *Raster) SetTransform(t geometry.AffineTransform) {
	r.mu.Lock()
	r.transform = t.Normalize()
	r.mu.Unlock()
}

// Release implements surface.Layer. A released raster ignores drawing.
func (r *Raster) Release() {
	r.mu.Lock()
	r.released = true
	r.preview = nil
	r.label = ""
	r.resizeLocked(0, 0)
	r.mu.Unlock()
}

// Clear implements render.Canvas.
func (r *Raster) Clear() {
	r.draw(func() {
		draw.Draw(r.buf, r.buf.Bounds(), image.Transparent, image.Point{}, draw.Src)
		r.preview = nil
		r.label = ""
	})
}

// StrokeRect implements render.Canvas.
func (r *Raster) StrokeRect(lr viewport.LocalRect, s render.Stroke) {
	r.draw(func() {
		r.dc.Push()
		defer r.dc.Pop()
		r.dc.Scale(r.density, r.density)
		r.dc.SetColor(s.Color)
		r.dc.SetLineWidth(s.Width)
		r.dc.SetDash(s.Dash...)
		r.dc.DrawRectangle(lr.X, lr.Y, lr.W, lr.H)
		r.dc.Stroke()
	})
}

// ShowPreview implements render.Canvas. The image is scaled with nearest
// neighbour sampling so template pixels stay crisp, and blended at
// PreviewOpacity.
func (r *Raster) ShowPreview(img image.Image, lr viewport.LocalRect) {
	r.draw(func() {
		dst := r.pixelRect(lr)
		if dst.Empty() || img == nil || img.Bounds().Empty() {
			return
		}
		shown := lr
		r.preview = &shown

		// Only the part of the preview inside the buffer is scaled.
		vis := dst.Intersect(r.buf.Bounds())
		if vis.Empty() {
			return
		}
		sb := img.Bounds()
		sx := float64(dst.Dx()) / float64(sb.Dx())
		sy := float64(dst.Dy()) / float64(sb.Dy())
		s2d := f64.Aff3{
			sx, 0, float64(dst.Min.X-vis.Min.X) - sx*float64(sb.Min.X),
			0, sy, float64(dst.Min.Y-vis.Min.Y) - sy*float64(sb.Min.Y),
		}
		scaled := image.NewRGBA(image.Rect(0, 0, vis.Dx(), vis.Dy()))
		xdraw.NearestNeighbor.Transform(scaled, s2d, img, sb, xdraw.Src, nil)
		mask := image.NewUniform(color.Alpha{A: uint8(math.Round(PreviewOpacity * 255))})
		draw.DrawMask(r.buf, vis, scaled, image.Point{}, mask, image.Point{}, draw.Over)
	})
}

// HidePreview implements render.Canvas. The preview is painted into the
// buffer, so hiding it only drops the record; Clear erases the pixels.
func (r *Raster) HidePreview() {
	r.draw(func() { r.preview = nil })
}

// Annotate implements render.Canvas. The text is drawn top-left on a dark
// backing box.
func (r *Raster) Annotate(text string) {
	r.draw(func() {
		r.label = text
		if text == "" {
			return
		}
		r.dc.Push()
		defer r.dc.Pop()
		w, h := r.dc.MeasureString(text)
		r.dc.SetColor(colorutil.LabelBackground)
		r.dc.DrawRectangle(2, 2, w+8, h+8)
		r.dc.Fill()
		r.dc.SetColor(colorutil.White)
		r.dc.DrawStringAnchored(text, 6, 6, 0, 1)
	})
}

// Image returns a copy of the current buffer.
func (r *Raster) Image() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := image.NewRGBA(r.buf.Bounds())
	copy(out.Pix, r.buf.Pix)
	return out
}

// WritePNG encodes the current buffer as PNG.
func (r *Raster) WritePNG(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dc.EncodePNG(w)
}

// Bounds returns the layer's bounding box in screen units.
func (r *Raster) Bounds() geometry.Rect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bounds
}

// Density returns the pixels-per-unit the buffer was sized with.
func (r *Raster) Density() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.density
}

// Transform returns the mirrored host transform.
func (r *Raster) Transform() geometry.AffineTransform {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transform
}

// Options returns the options the raster was created with.
func (r *Raster) Options() surface.LayerOptions {
	return r.opts
}

// Label returns the last annotation drawn since Clear.
func (r *Raster) Label() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.label
}

// PreviewRect returns where the preview is shown, or nil when hidden.
func (r *Raster) PreviewRect() *viewport.LocalRect {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.preview == nil {
		return nil
	}
	p := *r.preview
	return &p
}

// Released reports whether Release was called.
func (r *Raster) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

func (r *Raster) draw(fn func()) {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	fn()
	cb := r.onChange
	r.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (r *Raster) resizeLocked(w, h int) {
	r.buf = image.NewRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	r.dc = gg.NewContextForRGBA(r.buf)
}

func (r *Raster) pixelRect(lr viewport.LocalRect) image.Rectangle {
	d := r.density
	x0 := int(math.Round(lr.X * d))
	y0 := int(math.Round(lr.Y * d))
	x1 := int(math.Round((lr.X + lr.W) * d))
	y1 := int(math.Round((lr.Y + lr.H) * d))
	return image.Rect(x0, y0, x1, y1)
}
