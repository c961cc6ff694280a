package canvas

import (
	"image"
	"image/color"
	"image/draw"

	bsimage "blue-scan/internal/image"
	"blue-scan/pkg/geometry"

	xdraw "golang.org/x/image/draw"
)

// emptyColor fills the view when there is no map loaded.
var emptyColor = color.RGBA{40, 40, 40, 255}

// renderView renders the cropW x cropH world window at (x, y) and scales it
// to a w x h device-pixel image. Nearest-neighbour keeps map pixels sharp
// when zoomed in.
func renderView(c *bsimage.Composite, x, y, cropW, cropH, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if c == nil || len(c.Layers) == 0 || cropW <= 0 || cropH <= 0 {
		draw.Draw(dst, dst.Bounds(), &image.Uniform{emptyColor}, image.Point{}, draw.Src)
		return dst
	}

	crop := c.Render(geometry.RectInt{X: x, Y: y, Width: cropW, Height: cropH})
	if crop.Bounds().Dx() == w && crop.Bounds().Dy() == h {
		return crop
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), crop, crop.Bounds(), draw.Src, nil)
	return dst
}
