package cli

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const renderScene = `
surfaces:
  - name: minimap
    width: 100
    height: 100
    buffer_width: 100
    buffer_height: 100
  - name: map
    width: 500
    height: 400
    buffer_width: 1000
    buffer_height: 800
    density: 1
page:
  location: "https://example.test/?x=100&y=200"
`

const renderArtworks = `[
  {"id": 1, "name": "logo", "x": 150, "y": 220, "w": 40, "h": 20},
  {"id": "b7", "name": "flag", "x": 100, "y": 200, "w": 10, "h": 10},
  {"id": 3, "name": "far", "x": -500, "y": -500, "w": 10, "h": 10}
]`

func writeFixtures(t *testing.T, sceneBody string) (dir, scenePath, artworksPath string) {
	t.Helper()
	dir = t.TempDir()
	scenePath = filepath.Join(dir, "scene.yaml")
	artworksPath = filepath.Join(dir, "artworks.json")
	require.NoError(t, os.WriteFile(scenePath, []byte(sceneBody), 0o644))
	require.NoError(t, os.WriteFile(artworksPath, []byte(renderArtworks), 0o644))
	return dir, scenePath, artworksPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRenderFrameReport(t *testing.T) {
	dir, scenePath, artworksPath := writeFixtures(t, renderScene)
	outPath := filepath.Join(dir, "overlay.png")

	out, err := runCLI(t, "render", "--scene", scenePath, "--artworks", artworksPath, "--out", outPath)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "render_frame", []byte(out))

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 500, img.Bounds().Dx(), "overlay buffer matches the largest surface")
	assert.Equal(t, 400, img.Bounds().Dy())
}

func TestRenderJSONReport(t *testing.T) {
	_, scenePath, artworksPath := writeFixtures(t, renderScene)

	out, err := runCLI(t, "--format", "json", "render", "--scene", scenePath, "--artworks", artworksPath, "--pin", "0,0")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   FrameReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "anchor=(0,0) scale=0.500x0.500", resp.Data.Label, "pin beats location")
	require.Len(t, resp.Data.Rects, 3)
	assert.Equal(t, RectReport{Index: 0, ID: "1", Hue: 0, X: 75, Y: 110, W: 20, H: 10}, resp.Data.Rects[0])
}

func TestRenderSuppressedWithoutAnchor(t *testing.T) {
	body := `
surfaces:
  - name: map
    width: 500
    height: 400
    buffer_width: 1000
    buffer_height: 800
`
	_, scenePath, artworksPath := writeFixtures(t, body)

	out, err := runCLI(t, "render", "--scene", scenePath, "--artworks", artworksPath)
	require.NoError(t, err)
	assert.Equal(t, "suppressed: anchor unknown\n", out)
}

func TestRenderMissingSurface(t *testing.T) {
	body := `
surfaces:
  - name: map
    width: 500
    height: 400
    buffer_width: 1000
    buffer_height: 800
    removed: true
page:
  location: "https://example.test/?x=1&y=1"
`
	_, scenePath, artworksPath := writeFixtures(t, body)

	out, err := runCLI(t, "render", "--scene", scenePath, "--artworks", artworksPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "host surface not found")
}

func TestWatchRunsForDuration(t *testing.T) {
	dir, scenePath, artworksPath := writeFixtures(t, renderScene)
	outPath := filepath.Join(dir, "overlay.png")

	out, err := runCLI(t, "--format", "json", "watch", "--scene", scenePath, "--artworks", artworksPath,
		"--out", outPath, "--duration", "400ms")
	require.NoError(t, err)

	var resp struct {
		Data watchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.GreaterOrEqual(t, resp.Data.Frames, 1)
	assert.Len(t, resp.Data.LastFrame.Rects, 3)
	assert.FileExists(t, outPath)
}
