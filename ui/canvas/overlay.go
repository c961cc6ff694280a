package canvas

import (
	"image"
	"math"
	"sync"

	"blue-scan/internal/overlay"
	"blue-scan/internal/surface"
	"blue-scan/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// OverlayView presents the tracker's overlay raster on top of the map. It
// is a plain canvas object, so input falls through to the map beneath.
// The raster is drawn where the tracker placed it, through the host's
// transform.
type OverlayView struct {
	mu      sync.Mutex
	current *overlay.Raster
	raster  *fynecanvas.Raster
}

// NewOverlayView creates an empty overlay view.
func NewOverlayView() *OverlayView {
	v := &OverlayView{}
	v.raster = fynecanvas.NewRaster(v.draw)
	v.raster.ScaleMode = fynecanvas.ImageScaleSmooth
	return v
}

// Object returns the canvas object to stack above the map.
func (v *OverlayView) Object() fyne.CanvasObject {
	return v.raster
}

// Factory returns a layer factory whose rasters are shown by this view.
func (v *OverlayView) Factory() surface.LayerFactory {
	return overlay.Factory(v.attach)
}

func (v *OverlayView) attach(r *overlay.Raster) {
	v.mu.Lock()
	v.current = r
	v.mu.Unlock()
	r.OnChange(v.raster.Refresh)
	v.raster.Refresh()
}

func (v *OverlayView) draw(w, h int) image.Image {
	v.mu.Lock()
	r := v.current
	v.mu.Unlock()
	if r == nil || r.Released() {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	img := r.Image()
	density := r.Density()
	t := r.Transform().Normalize()
	dx, dy := v.offset(r.Bounds(), density)
	if dx == 0 && dy == 0 && t.IsIdentity() {
		return img
	}
	return placeLayer(img, w, h, dx, dy, density, t)
}

// offset returns how far, in pixels, the layer's placed bounds sit from
// this view's own position. It is zero until the view is on a canvas and
// the layer has been placed.
func (v *OverlayView) offset(bounds geometry.Rect, density float64) (dx, dy float64) {
	if bounds == (geometry.Rect{}) {
		return 0, 0
	}
	app := fyne.CurrentApp()
	if app == nil || app.Driver().CanvasForObject(v.raster) == nil {
		return 0, 0
	}
	pos := app.Driver().AbsolutePositionForObject(v.raster)
	dx = math.Round((bounds.X - float64(pos.X)) * density)
	dy = math.Round((bounds.Y - float64(pos.Y)) * density)
	return dx, dy
}

// placeLayer draws img into a w x h image, shifted by (dx, dy) pixels and
// mapped through t about the layer's top-left corner. The transform's
// translation is in display units and is scaled by density.
func placeLayer(img image.Image, w, h int, dx, dy, density float64, t geometry.AffineTransform) *image.RGBA {
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	t = t.Normalize()
	s2d := f64.Aff3{
		t.A, t.B, t.TX*density + dx,
		t.C, t.D, t.TY*density + dy,
	}
	xdraw.NearestNeighbor.Transform(out, s2d, img, img.Bounds(), xdraw.Src, nil)
	return out
}
