// Package colorutil provides shared color utilities for the overlay.
package colorutil

import (
	"image/color"
	"math"
)

// Common overlay colors used throughout the application.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	// LabelBackground sits behind diagnostic text.
	LabelBackground = color.NRGBA{R: 0, G: 0, B: 0, A: 190}
)

// hueStep spaces consecutive artworks far apart on the color wheel.
const hueStep = 57

// ArtworkHue returns the outline hue (degrees, 0-359) for the artwork at
// position index in the directory listing. It depends on index only.
func ArtworkHue(index int) int {
	h := (index * hueStep) % 360
	if h < 0 {
		h += 360
	}
	return h
}

// HSLA converts hue (degrees), saturation, lightness (0-1) and alpha (0-1)
// to a non-premultiplied color.
func HSLA(h, s, l, a float64) color.NRGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	s = clamp01(s)
	l = clamp01(l)

	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return color.NRGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: uint8(math.Round(clamp01(a) * 255)),
	}
}

// ArtworkColor returns the outline color for the artwork at index.
func ArtworkColor(index int) color.NRGBA {
	return HSLA(float64(ArtworkHue(index)), 0.9, 0.6, 0.95)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
