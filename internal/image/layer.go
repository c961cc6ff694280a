// Package image provides map image loading and view compositing for the
// desktop host surface.
package image

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"blue-scan/pkg/geometry"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Layer is one map image placed in world coordinates.
type Layer struct {
	Path    string      // Original file path
	Image   image.Image // Loaded image data
	OriginX int         // World x of the image's top-left pixel
	OriginY int         // World y of the image's top-left pixel
	Visible bool
	Opacity float64 // 0.0 - 1.0
}

// NewLayer creates a visible, opaque layer for img at the given origin.
func NewLayer(img image.Image, originX, originY int) *Layer {
	return &Layer{
		Image:   img,
		OriginX: originX,
		OriginY: originY,
		Visible: true,
		Opacity: 1.0,
	}
}

// Load loads a map image. The world origin is taken from a trailing
// "_X_Y" in the filename (map_1024_-512.png) and defaults to (0,0).
func Load(path string) (*Layer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	x, y, _ := OriginFromFilename(path)
	layer := NewLayer(img, x, y)
	layer.Path = path
	return layer, nil
}

var originPattern = regexp.MustCompile(`_(-?\d+)_(-?\d+)$`)

// OriginFromFilename parses the "_X_Y" suffix of a map file name.
func OriginFromFilename(path string) (x, y int, ok bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	m := originPattern.FindStringSubmatch(base)
	if m == nil {
		return 0, 0, false
	}
	x, errX := strconv.Atoi(m[1])
	y, errY := strconv.Atoi(m[2])
	if errX != nil || errY != nil {
		return 0, 0, false
	}
	return x, y, true
}

// Width returns the image width in pixels.
func (l *Layer) Width() int {
	if l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (l *Layer) Height() int {
	if l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dy()
}

// WorldBounds returns the area the layer covers in world coordinates.
func (l *Layer) WorldBounds() geometry.RectInt {
	return geometry.RectInt{X: l.OriginX, Y: l.OriginY, Width: l.Width(), Height: l.Height()}
}

// PixelAt returns the color at world coordinates (x, y), or transparent
// outside the layer.
func (l *Layer) PixelAt(x, y int) color.Color {
	if l.Image == nil {
		return color.Transparent
	}
	b := l.Image.Bounds()
	px, py := b.Min.X+x-l.OriginX, b.Min.Y+y-l.OriginY
	if !image.Pt(px, py).In(b) {
		return color.Transparent
	}
	return l.Image.At(px, py)
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".webp", ".tiff", ".tif"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// FileFilter returns a file filter string for use in file dialogs.
func FileFilter() string {
	return "Image Files (*.png, *.jpg, *.jpeg, *.webp, *.tiff, *.tif)"
}
