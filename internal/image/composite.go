package image

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"blue-scan/pkg/geometry"
)

// Composite stacks map layers in world coordinates. Later layers draw over
// earlier ones.
type Composite struct {
	Layers    []*Layer
	BackColor color.Color
}

// NewComposite creates an empty composite.
func NewComposite() *Composite {
	return &Composite{
		BackColor: color.RGBA{40, 40, 40, 255}, // Dark gray background
	}
}

// AddLayer adds a layer on top of the composite.
func (c *Composite) AddLayer(layer *Layer) {
	c.Layers = append(c.Layers, layer)
}

// Bounds returns the union of all visible layers' world bounds.
func (c *Composite) Bounds() geometry.RectInt {
	var u image.Rectangle
	for _, l := range c.Layers {
		if l == nil || !l.Visible || l.Image == nil {
			continue
		}
		u = u.Union(worldRect(l.WorldBounds()))
	}
	return geometry.RectInt{X: u.Min.X, Y: u.Min.Y, Width: u.Dx(), Height: u.Dy()}
}

// Render produces the view of the world rectangle view, one output pixel
// per world pixel.
func (c *Composite) Render(view geometry.RectInt) *image.RGBA {
	result := image.NewRGBA(image.Rect(0, 0, view.Width, view.Height))
	draw.Draw(result, result.Bounds(), &image.Uniform{c.BackColor}, image.Point{}, draw.Src)

	window := worldRect(view)
	for _, l := range c.Layers {
		if l == nil || l.Image == nil || !l.Visible {
			continue
		}
		c.compositeLayer(result, l, window)
	}
	return result
}

// compositeLayer draws the part of l that falls inside window.
func (c *Composite) compositeLayer(dst *image.RGBA, l *Layer, window image.Rectangle) {
	covered := worldRect(l.WorldBounds()).Intersect(window)
	if covered.Empty() {
		return
	}
	dr := covered.Sub(window.Min)
	sp := l.Image.Bounds().Min.Add(covered.Min.Sub(image.Pt(l.OriginX, l.OriginY)))

	if l.Opacity >= 1 {
		draw.Draw(dst, dr, l.Image, sp, draw.Over)
		return
	}
	alpha := uint8(math.Round(clamp(l.Opacity, 0, 1) * 255))
	draw.DrawMask(dst, dr, l.Image, sp, image.NewUniform(color.Alpha{A: alpha}), image.Point{}, draw.Over)
}

func worldRect(r geometry.RectInt) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
