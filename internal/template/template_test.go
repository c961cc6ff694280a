package template

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"blue-scan/internal/viewport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewPreviewReadsNativeSize(t *testing.T) {
	url, err := EncodeDataURL(pngBytes(t, 12, 7))
	require.NoError(t, err)
	assert.Contains(t, url, "data:image/png;base64,")

	p, err := NewPreview(url, 100, -20)
	require.NoError(t, err)
	assert.True(t, p.Usable())
	assert.Equal(t, 12, p.NativeWidth)
	assert.Equal(t, 7, p.NativeHeight)
	assert.Equal(t, viewport.WorldRect{ID: "preview", X: 100, Y: -20, W: 12, H: 7}, p.Rect())
}

func TestDecodeDataURLRejectsNonImages(t *testing.T) {
	for _, in := range []string{
		"",
		"https://example.com/a.png",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png,raw",
		"data:image/png;base64,!!!",
		"data:image/png;base64,aGVsbG8=",
	} {
		_, err := DecodeDataURL(in)
		assert.ErrorIs(t, err, ErrNotImage, in)
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "tpl.png")
	require.NoError(t, os.WriteFile(good, pngBytes(t, 3, 3), 0o644))
	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("hello"), 0o644))

	url, err := ReadFile(good)
	require.NoError(t, err)
	img, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())

	_, err = ReadFile(bad)
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = ReadFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestNilPreviewIsNotUsable(t *testing.T) {
	var p *Preview
	assert.False(t, p.Usable())
	assert.False(t, (&Preview{NativeWidth: 5, NativeHeight: 5}).Usable())
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want int
	}{
		{name: "plain", c: Candidate{Width: 10, Height: 10}, want: 0},
		{name: "static is not positioned", c: Candidate{Position: "static"}, want: 0},
		{name: "positioned", c: Candidate{Position: "absolute"}, want: 2},
		{name: "overlay class", c: Candidate{Class: "bm-Template"}, want: 5},
		{name: "overlay id", c: Candidate{ID: "marble-img"}, want: 5},
		{name: "large", c: Candidate{Width: 200, Height: 100}, want: 1},
		{name: "everything", c: Candidate{Position: "fixed", Class: "overlay", Width: 200, Height: 100}, want: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.c))
		})
	}
}

func TestSniffPicksLargestScoringCandidate(t *testing.T) {
	cands := []Candidate{
		{Src: "data:image/png;base64,a", Class: "overlay", Width: 50, Height: 50},
		{Src: "data:image/png;base64,b", Width: 400, Height: 400}, // size bonus only
		{Src: "data:image/png;base64,c", Position: "absolute", Width: 90, Height: 90},
		{Src: "data:image/png;base64,d", Width: 20, Height: 20}, // score 0
	}

	got, ok := Sniff(cands)
	require.True(t, ok)
	assert.Equal(t, "data:image/png;base64,b", got.Src)

	_, ok = Sniff([]Candidate{{Width: 5, Height: 5}})
	assert.False(t, ok)
}

func TestSniffDataURL(t *testing.T) {
	_, err := SniffDataURL(nil)
	assert.ErrorIs(t, err, ErrNoOverlay)

	_, err = SniffDataURL([]Candidate{{Src: "blob:https://x/1", Class: "template", Width: 10, Height: 10}})
	assert.ErrorIs(t, err, ErrNotImage)

	url, err := SniffDataURL([]Candidate{{Src: "data:image/png;base64,xyz", Class: "template", Width: 10, Height: 10}})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,xyz", url)
}
