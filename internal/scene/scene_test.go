package scene

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"blue-scan/internal/surface"
	"blue-scan/internal/viewport"
	"blue-scan/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoSurfaces = `
surfaces:
  - name: minimap
    width: 100
    height: 100
    buffer_width: 100
    buffer_height: 100
  - name: map
    left: 10
    top: 20
    width: 800
    height: 600
    buffer_width: 1600
    buffer_height: 1200
    density: 2
    transform: "matrix(1, 0, 0, 1, 4, 5)"
page:
  location: "https://example.test/?x=100&y=200"
  fragments: ["hello"]
  html: page.html
`

func writeScene(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndLocateLargestSurface(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(writeScene(t, dir, twoSurfaces))
	require.NoError(t, err)

	host, err := f.Locate()
	require.NoError(t, err)
	assert.Equal(t, "map", host.(*Host).Name())

	g, err := host.Geometry()
	require.NoError(t, err)
	assert.Equal(t, viewport.Geometry{
		ScreenLeft: 10, ScreenTop: 20,
		DisplayWidth: 800, DisplayHeight: 600,
		BufferWidth: 1600, BufferHeight: 1200,
		PixelDensity: 2,
		Transform:    geometry.Translation(4, 5),
	}, g)
}

func TestPageStateMergesHTMLSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"),
		[]byte(`<div id="coords">TlX: 1 TlY: 2 PxX: 3 PxY: 4</div>`), 0o644))
	f, err := Open(writeScene(t, dir, twoSurfaces))
	require.NoError(t, err)

	ps := f.PageState()
	assert.Equal(t, []string{"hello", "TlX: 1 TlY: 2 PxX: 3 PxY: 4"}, ps.Fragments)
	assert.Equal(t, "https://example.test/?x=100&y=200", ps.Location)
}

func TestPageStateIgnoresMissingHTML(t *testing.T) {
	f, err := Open(writeScene(t, t.TempDir(), twoSurfaces))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, f.PageState().Fragments)
}

func TestRemovedSurfaceReportsNotFound(t *testing.T) {
	dir := t.TempDir()
	path := writeScene(t, dir, twoSurfaces)
	f, err := Open(path)
	require.NoError(t, err)
	host := f.Host("map")

	var resized atomic.Int32
	cancel := host.OnResize(func() { resized.Add(1) })

	writeScene(t, dir, `
surfaces:
  - name: map
    removed: true
`)
	require.NoError(t, f.Reload())
	assert.Equal(t, int32(1), resized.Load())

	_, err = host.Geometry()
	assert.ErrorIs(t, err, surface.ErrSurfaceNotFound)
	_, err = f.Locate()
	assert.ErrorIs(t, err, ErrNoSurfaces)

	cancel()
	require.NoError(t, f.Reload())
	assert.Equal(t, int32(1), resized.Load())
}

func TestReloadKeepsSceneOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := writeScene(t, dir, twoSurfaces)
	f, err := Open(path)
	require.NoError(t, err)

	writeScene(t, dir, "surfaces: [unterminated")
	assert.Error(t, f.Reload())
	_, ok := f.Scene().Surface("map")
	assert.True(t, ok)
}

func TestBadTransformFailsGeometry(t *testing.T) {
	_, err := Surface{Name: "x", Transform: "rotate("}.Geometry()
	assert.Error(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeScene(t, dir, twoSurfaces)
	f, err := Open(path)
	require.NoError(t, err)

	var resized atomic.Int32
	f.Host("map").OnResize(func() { resized.Add(1) })
	require.NoError(t, f.Watch())
	defer f.Close()

	writeScene(t, dir, `
surfaces:
  - name: map
    width: 400
    height: 300
    buffer_width: 400
    buffer_height: 300
`)
	require.Eventually(t, func() bool {
		g, err := f.Host("map").Geometry()
		return err == nil && g.DisplayWidth == 400
	}, 5*time.Second, 20*time.Millisecond)
	assert.Positive(t, resized.Load())
}

func TestCloseWithoutWatch(t *testing.T) {
	f, err := Open(writeScene(t, t.TempDir(), twoSurfaces))
	require.NoError(t, err)
	assert.NoError(t, f.Close())
}
