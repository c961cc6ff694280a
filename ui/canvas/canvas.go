// Package canvas provides the map view: a pannable, zoomable world image
// with a coordinate readout. It is the host surface the overlay tracks.
package canvas

import (
	"fmt"
	"image"
	"math"
	"sync"

	"blue-scan/internal/anchor"
	bsimage "blue-scan/internal/image"
	"blue-scan/internal/surface"
	"blue-scan/internal/viewport"
	"blue-scan/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

const (
	minZoom  = 0.1
	maxZoom  = 16.0
	zoomStep = 1.25
)

// MapCanvas shows the map composite with the world coordinate (AnchorX,
// AnchorY) at its top-left corner. Dragging pans, the wheel zooms around the
// pointer.
type MapCanvas struct {
	widget.BaseWidget

	mu        sync.RWMutex
	composite *bsimage.Composite
	anchorX   float64
	anchorY   float64
	zoom      float64
	size      fyne.Size
	pointer   fyne.Position
	hovering  bool

	raster  *fynecanvas.Raster
	readout *widget.Label

	handlerID      int
	resizeHandlers map[int]func()
	clickHandlers  map[int]func(x, y float64)

	// Callbacks
	onViewChange func(x, y float64)
	onZoomChange func(zoom float64)
}

var (
	_ surface.Host           = (*MapCanvas)(nil)
	_ surface.ResizeNotifier = (*MapCanvas)(nil)
	_ fyne.Draggable         = (*MapCanvas)(nil)
	_ fyne.Scrollable        = (*MapCanvas)(nil)
	_ fyne.Tappable          = (*MapCanvas)(nil)
	_ desktop.Hoverable      = (*MapCanvas)(nil)
)

// NewMapCanvas creates an empty map view.
func NewMapCanvas() *MapCanvas {
	mc := &MapCanvas{
		composite:      bsimage.NewComposite(),
		zoom:           1.0,
		resizeHandlers: make(map[int]func()),
		clickHandlers:  make(map[int]func(x, y float64)),
	}
	mc.raster = fynecanvas.NewRaster(mc.draw)
	mc.raster.ScaleMode = fynecanvas.ImageScalePixels
	mc.readout = widget.NewLabel("")
	mc.readout.TextStyle = fyne.TextStyle{Monospace: true}
	mc.ExtendBaseWidget(mc)
	mc.updateReadout()
	return mc
}

// Readout returns the coordinate readout label.
func (mc *MapCanvas) Readout() *widget.Label {
	return mc.readout
}

// SetLayers replaces the map layers.
func (mc *MapCanvas) SetLayers(layers ...*bsimage.Layer) {
	mc.mu.Lock()
	mc.composite.Layers = layers
	mc.mu.Unlock()
	mc.Refresh()
}

// Layers returns the current map layers.
func (mc *MapCanvas) Layers() []*bsimage.Layer {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.composite.Layers
}

// SetAnchor moves the view so (x, y) is at the top-left corner. It does not
// report a view change.
func (mc *MapCanvas) SetAnchor(x, y float64) {
	mc.mu.Lock()
	mc.anchorX, mc.anchorY = x, y
	mc.mu.Unlock()
	mc.updateReadout()
	mc.Refresh()
}

// Anchor returns the world coordinate at the top-left corner, in whole
// pixels as the readout shows it.
func (mc *MapCanvas) Anchor() (x, y int) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return int(math.Floor(mc.anchorX)), int(math.Floor(mc.anchorY))
}

// SetZoom sets display units per world pixel.
func (mc *MapCanvas) SetZoom(zoom float64) {
	mc.zoomAround(zoom, fyne.Position{})
}

// Zoom returns the zoom level.
func (mc *MapCanvas) Zoom() float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.zoom
}

// ZoomIn increases the zoom level.
func (mc *MapCanvas) ZoomIn() {
	mc.SetZoom(mc.Zoom() * zoomStep)
}

// ZoomOut decreases the zoom level.
func (mc *MapCanvas) ZoomOut() {
	mc.SetZoom(mc.Zoom() / zoomStep)
}

// OnViewChange sets a callback for user pans and zooms, with the new
// top-left world coordinate.
func (mc *MapCanvas) OnViewChange(callback func(x, y float64)) {
	mc.onViewChange = callback
}

// OnZoomChange sets a callback for zoom changes.
func (mc *MapCanvas) OnZoomChange(callback func(zoom float64)) {
	mc.onZoomChange = callback
}

// Geometry implements surface.Host. The buffer is the crop of world pixels
// on display, so the display/buffer ratio is the zoom.
func (mc *MapCanvas) Geometry() (viewport.Geometry, error) {
	app := fyne.CurrentApp()
	if app == nil {
		return viewport.Geometry{}, surface.ErrSurfaceNotFound
	}
	c := app.Driver().CanvasForObject(mc)
	if c == nil || !mc.Visible() {
		return viewport.Geometry{}, surface.ErrSurfaceNotFound
	}
	pos := app.Driver().AbsolutePositionForObject(mc)

	mc.mu.RLock()
	size, zoom := mc.size, mc.zoom
	mc.mu.RUnlock()
	return viewGeometry(pos, size, zoom, c.Scale()), nil
}

func viewGeometry(pos fyne.Position, size fyne.Size, zoom float64, scale float32) viewport.Geometry {
	w, h := viewCrop(size, zoom)
	return viewport.Geometry{
		ScreenLeft:    float64(pos.X),
		ScreenTop:     float64(pos.Y),
		DisplayWidth:  float64(size.Width),
		DisplayHeight: float64(size.Height),
		BufferWidth:   w,
		BufferHeight:  h,
		PixelDensity:  float64(scale),
		Transform:     geometry.Identity(),
	}
}

// viewCrop returns how many world pixels fit in size at zoom.
func viewCrop(size fyne.Size, zoom float64) (w, h int) {
	if zoom <= 0 {
		return 0, 0
	}
	return int(math.Floor(float64(size.Width) / zoom)), int(math.Floor(float64(size.Height) / zoom))
}

// OnResize implements surface.ResizeNotifier. Handlers run after layout
// and zoom changes.
func (mc *MapCanvas) OnResize(fn func()) func() {
	mc.mu.Lock()
	id := mc.handlerID
	mc.handlerID++
	mc.resizeHandlers[id] = fn
	mc.mu.Unlock()
	return func() {
		mc.mu.Lock()
		delete(mc.resizeHandlers, id)
		mc.mu.Unlock()
	}
}

// OnClick implements session.ClickSource with absolute canvas positions.
func (mc *MapCanvas) OnClick(fn func(x, y float64)) func() {
	mc.mu.Lock()
	id := mc.handlerID
	mc.handlerID++
	mc.clickHandlers[id] = fn
	mc.mu.Unlock()
	return func() {
		mc.mu.Lock()
		delete(mc.clickHandlers, id)
		mc.mu.Unlock()
	}
}

// ReadoutText returns the current readout: the top-left world coordinate
// and the world pixel under the pointer.
func (mc *MapCanvas) ReadoutText() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return readoutText(mc.anchorX, mc.anchorY, mc.zoom, mc.pointer)
}

func readoutText(ax, ay, zoom float64, pointer fyne.Position) string {
	tlX, tlY := math.Floor(ax), math.Floor(ay)
	pxX := tlX + math.Floor(float64(pointer.X)/zoom)
	pxY := tlY + math.Floor(float64(pointer.Y)/zoom)
	return fmt.Sprintf("TlX: %d TlY: %d PxX: %d PxY: %d", int(tlX), int(tlY), int(pxX), int(pxY))
}

// PageState returns the readout as a page fragment for anchor resolution.
func (mc *MapCanvas) PageState() anchor.PageState {
	return anchor.PageState{Fragments: []string{mc.ReadoutText()}}
}

func (mc *MapCanvas) updateReadout() {
	mc.readout.SetText(mc.ReadoutText())
}

// Dragged pans the map.
func (mc *MapCanvas) Dragged(ev *fyne.DragEvent) {
	mc.mu.Lock()
	mc.anchorX -= float64(ev.Dragged.DX) / mc.zoom
	mc.anchorY -= float64(ev.Dragged.DY) / mc.zoom
	mc.pointer = ev.Position
	mc.mu.Unlock()
	mc.viewChanged()
}

// DragEnd snaps the anchor to whole world pixels.
func (mc *MapCanvas) DragEnd() {
	mc.mu.Lock()
	mc.anchorX, mc.anchorY = math.Round(mc.anchorX), math.Round(mc.anchorY)
	mc.mu.Unlock()
	mc.viewChanged()
}

// Scrolled zooms around the pointer.
func (mc *MapCanvas) Scrolled(ev *fyne.ScrollEvent) {
	zoom := mc.Zoom()
	switch {
	case ev.Scrolled.DY > 0:
		mc.zoomAround(zoom*zoomStep, ev.Position)
	case ev.Scrolled.DY < 0:
		mc.zoomAround(zoom/zoomStep, ev.Position)
	}
}

// zoomAround keeps the world point under p fixed while zooming.
func (mc *MapCanvas) zoomAround(zoom float64, p fyne.Position) {
	zoom = math.Max(minZoom, math.Min(maxZoom, zoom))
	mc.mu.Lock()
	if zoom == mc.zoom {
		mc.mu.Unlock()
		return
	}
	wx := mc.anchorX + float64(p.X)/mc.zoom
	wy := mc.anchorY + float64(p.Y)/mc.zoom
	mc.zoom = zoom
	mc.anchorX = math.Round(wx - float64(p.X)/zoom)
	mc.anchorY = math.Round(wy - float64(p.Y)/zoom)
	mc.mu.Unlock()

	if mc.onZoomChange != nil {
		mc.onZoomChange(zoom)
	}
	mc.viewChanged()
	mc.notifyResize()
}

// Tapped forwards clicks to the registered click handlers.
func (mc *MapCanvas) Tapped(ev *fyne.PointEvent) {
	// Workaround for Fyne bug: reject clicks outside widget bounds
	size := mc.Size()
	if ev.Position.X < 0 || ev.Position.Y < 0 ||
		ev.Position.X > size.Width || ev.Position.Y > size.Height {
		return
	}

	mc.mu.RLock()
	handlers := make([]func(x, y float64), 0, len(mc.clickHandlers))
	for _, h := range mc.clickHandlers {
		handlers = append(handlers, h)
	}
	mc.mu.RUnlock()
	for _, h := range handlers {
		h(float64(ev.AbsolutePosition.X), float64(ev.AbsolutePosition.Y))
	}
}

// MouseIn implements desktop.Hoverable.
func (mc *MapCanvas) MouseIn(ev *desktop.MouseEvent) {
	mc.MouseMoved(ev)
}

// MouseMoved updates the readout's pointer coordinate.
func (mc *MapCanvas) MouseMoved(ev *desktop.MouseEvent) {
	mc.mu.Lock()
	mc.pointer = ev.Position
	mc.hovering = true
	mc.mu.Unlock()
	mc.updateReadout()
}

// MouseOut implements desktop.Hoverable.
func (mc *MapCanvas) MouseOut() {
	mc.mu.Lock()
	mc.hovering = false
	mc.mu.Unlock()
}

func (mc *MapCanvas) viewChanged() {
	mc.updateReadout()
	mc.Refresh()
	if mc.onViewChange != nil {
		x, y := mc.Anchor()
		mc.onViewChange(float64(x), float64(y))
	}
}

func (mc *MapCanvas) notifyResize() {
	mc.mu.RLock()
	handlers := make([]func(), 0, len(mc.resizeHandlers))
	for _, h := range mc.resizeHandlers {
		handlers = append(handlers, h)
	}
	mc.mu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

// draw is the raster drawing function; w and h are device pixels.
func (mc *MapCanvas) draw(w, h int) image.Image {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	x, y := int(math.Floor(mc.anchorX)), int(math.Floor(mc.anchorY))
	cw, ch := viewCrop(mc.size, mc.zoom)
	return renderView(mc.composite, x, y, cw, ch, w, h)
}

// Refresh refreshes the canvas display.
func (mc *MapCanvas) Refresh() {
	mc.raster.Refresh()
}

// CreateRenderer implements fyne.Widget.
func (mc *MapCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &mapCanvasRenderer{canvas: mc}
}

type mapCanvasRenderer struct {
	canvas *MapCanvas
}

func (r *mapCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
	r.canvas.mu.Lock()
	changed := r.canvas.size != size
	r.canvas.size = size
	r.canvas.mu.Unlock()
	if changed {
		r.canvas.notifyResize()
	}
}

func (r *mapCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *mapCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *mapCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster}
}

func (r *mapCanvasRenderer) Destroy() {}
