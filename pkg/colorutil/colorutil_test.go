package colorutil

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtworkHue(t *testing.T) {
	tests := []struct {
		index int
		want  int
	}{
		{0, 0},
		{1, 57},
		{2, 114},
		{6, 342},
		{7, 39},
		{360, 0},
		{-1, 303},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ArtworkHue(tt.index), "index %d", tt.index)
	}
}

func TestArtworkHueIsStableAcrossCalls(t *testing.T) {
	for i := 0; i < 50; i++ {
		first := ArtworkHue(i)
		for n := 0; n < 3; n++ {
			assert.Equal(t, first, ArtworkHue(i))
		}
		assert.Equal(t, (i*57)%360, first)
	}
}

func TestHSLAPrimaries(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 255, G: 0, B: 0, A: 255}, HSLA(0, 1, 0.5, 1))
	assert.Equal(t, color.NRGBA{R: 0, G: 255, B: 0, A: 255}, HSLA(120, 1, 0.5, 1))
	assert.Equal(t, color.NRGBA{R: 0, G: 0, B: 255, A: 255}, HSLA(240, 1, 0.5, 1))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 0}, HSLA(0, 0, 1, 0))
}

func TestArtworkColorMatchesOutlineStyle(t *testing.T) {
	c := ArtworkColor(0)
	// hsl(0 90% 60% / 0.95)
	assert.Equal(t, uint8(245), c.R)
	assert.Equal(t, uint8(61), c.G)
	assert.Equal(t, uint8(61), c.B)
	assert.Equal(t, uint8(242), c.A)
}
