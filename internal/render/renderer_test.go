package render

import (
	"image"
	"testing"

	"blue-scan/internal/template"
	"blue-scan/internal/viewport"
	"blue-scan/pkg/colorutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op     string
	rect   viewport.LocalRect
	stroke Stroke
	text   string
}

type recordingCanvas struct {
	calls []call
}

func (c *recordingCanvas) Clear() { c.calls = append(c.calls, call{op: "clear"}) }
func (c *recordingCanvas) StrokeRect(r viewport.LocalRect, s Stroke) {
	c.calls = append(c.calls, call{op: "stroke", rect: r, stroke: s})
}
func (c *recordingCanvas) ShowPreview(_ image.Image, r viewport.LocalRect) {
	c.calls = append(c.calls, call{op: "preview", rect: r})
}
func (c *recordingCanvas) HidePreview()         { c.calls = append(c.calls, call{op: "hide"}) }
func (c *recordingCanvas) Annotate(text string) { c.calls = append(c.calls, call{op: "label", text: text}) }

func (c *recordingCanvas) ops() []string {
	out := make([]string, len(c.calls))
	for i, cl := range c.calls {
		out[i] = cl.op
	}
	return out
}

var halfScale = viewport.Geometry{DisplayWidth: 1000, DisplayHeight: 1000, BufferWidth: 2000, BufferHeight: 2000}

func TestRenderDrawsEveryRectWithStableHue(t *testing.T) {
	c := &recordingCanvas{}
	rects := []viewport.WorldRect{
		{ID: "a", X: 150, Y: 120, W: 40, H: 20},
		{ID: "b", X: 100, Y: 100, W: 10, H: 10},
		{ID: "c", X: 0, Y: 0, W: 2, H: 2},
	}

	f := New(true).Render(c, rects, viewport.At(100, 100), halfScale, nil)

	assert.Equal(t, []string{"clear", "stroke", "stroke", "stroke", "hide", "label"}, c.ops())
	require.Len(t, f.Rects, 3)
	assert.Equal(t, viewport.LocalRect{X: 25, Y: 10, W: 20, H: 10}, f.Rects[0].Local)
	for i, p := range f.Rects {
		assert.Equal(t, (i*57)%360, p.Hue)
		assert.Equal(t, colorutil.ArtworkColor(i), c.calls[1+i].stroke.Color)
		assert.Equal(t, []float64{6, 4}, c.calls[1+i].stroke.Dash)
		assert.Equal(t, 2.0, c.calls[1+i].stroke.Width)
	}
	assert.Equal(t, "anchor=(100,100) scale=0.500x0.500", f.Label)
	assert.False(t, f.Suppressed)
}

func TestRenderHueDependsOnIndexOnly(t *testing.T) {
	r := New(false)
	a := []viewport.WorldRect{{ID: "x", X: 1, Y: 1, W: 1, H: 1}, {ID: "y", X: 5, Y: 5, W: 9, H: 9}}
	b := []viewport.WorldRect{{ID: "other", X: 50, Y: 50, W: 3, H: 3}, {ID: "z", X: 0, Y: 0, W: 1, H: 1}}

	fa := r.Render(&recordingCanvas{}, a, viewport.At(0, 0), halfScale, nil)
	fb := r.Render(&recordingCanvas{}, b, viewport.At(0, 0), halfScale, nil)
	for i := range fa.Rects {
		assert.Equal(t, fa.Rects[i].Hue, fb.Rects[i].Hue)
	}
}

func TestRenderSuppressedWhenAnchorUnknown(t *testing.T) {
	c := &recordingCanvas{}
	preview := usablePreview()

	f := New(true).Render(c, []viewport.WorldRect{{X: 1, Y: 1, W: 1, H: 1}}, viewport.Unknown, halfScale, preview)

	assert.Equal(t, []string{"clear", "hide", "label"}, c.ops())
	assert.True(t, f.Suppressed)
	assert.Equal(t, ReasonAnchorUnknown, f.Reason)
	assert.Empty(t, f.Rects)
	assert.Nil(t, f.Preview)
}

func TestRenderSuppressedOnDegenerateGeometry(t *testing.T) {
	c := &recordingCanvas{}
	g := halfScale
	g.BufferWidth = 0

	f := New(false).Render(c, []viewport.WorldRect{{X: 1, Y: 1, W: 1, H: 1}}, viewport.At(0, 0), g, nil)

	assert.Equal(t, []string{"clear", "hide"}, c.ops())
	assert.True(t, f.Suppressed)
	assert.Equal(t, ReasonSurfaceNotReady, f.Reason)
	assert.Empty(t, f.Label)
}

func TestRenderPositionsPreview(t *testing.T) {
	c := &recordingCanvas{}
	f := New(false).Render(c, nil, viewport.At(100, 100), halfScale, usablePreview())

	require.NotNil(t, f.Preview)
	assert.Equal(t, viewport.LocalRect{X: 50, Y: 100, W: 8, H: 4}, *f.Preview)
	assert.Equal(t, []string{"clear", "preview"}, c.ops())
	assert.Equal(t, *f.Preview, c.calls[1].rect)
}

func TestRenderHidesUnusablePreview(t *testing.T) {
	c := &recordingCanvas{}
	f := New(false).Render(c, nil, viewport.At(0, 0), halfScale, &template.Preview{})
	assert.Nil(t, f.Preview)
	assert.Equal(t, []string{"clear", "hide"}, c.ops())
}

func TestRenderClearsEveryCall(t *testing.T) {
	c := &recordingCanvas{}
	r := New(false)
	for i := 0; i < 3; i++ {
		r.Render(c, nil, viewport.Unknown, halfScale, nil)
	}
	clears := 0
	for _, op := range c.ops() {
		if op == "clear" {
			clears++
		}
	}
	assert.Equal(t, 3, clears)
}

func usablePreview() *template.Preview {
	return &template.Preview{
		Image:        image.NewNRGBA(image.Rect(0, 0, 16, 8)),
		AnchorX:      200,
		AnchorY:      300,
		NativeWidth:  16,
		NativeHeight: 8,
	}
}
