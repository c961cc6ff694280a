// Package scene loads YAML scene files that describe host surfaces and page
// state. A scene file stands in for a live page: the CLI's render and watch
// commands overlay artworks onto the surfaces it describes.
package scene

import (
	"fmt"
	"os"
	"path/filepath"

	"blue-scan/internal/anchor"
	"blue-scan/internal/page"
	"blue-scan/internal/surface"
	"blue-scan/internal/viewport"

	"gopkg.in/yaml.v3"
)

// Surface is one candidate host surface.
type Surface struct {
	Name         string  `yaml:"name"`
	Left         float64 `yaml:"left"`
	Top          float64 `yaml:"top"`
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	BufferWidth  int     `yaml:"buffer_width"`
	BufferHeight int     `yaml:"buffer_height"`
	Density      float64 `yaml:"density"`
	// Transform is a CSS transform string, e.g. "matrix(1,0,0,1,0,0)".
	Transform string `yaml:"transform"`
	// Removed marks a surface that has left the page.
	Removed bool `yaml:"removed"`
}

// Geometry converts the surface description.
func (s Surface) Geometry() (viewport.Geometry, error) {
	t, err := viewport.ParseTransform(s.Transform)
	if err != nil {
		return viewport.Geometry{}, fmt.Errorf("surface %q: %w", s.Name, err)
	}
	return viewport.Geometry{
		ScreenLeft:    s.Left,
		ScreenTop:     s.Top,
		DisplayWidth:  s.Width,
		DisplayHeight: s.Height,
		BufferWidth:   s.BufferWidth,
		BufferHeight:  s.BufferHeight,
		PixelDensity:  s.Density,
		Transform:     t,
	}, nil
}

// Page is the page state a scene exposes to the anchor resolver.
type Page struct {
	Location  string   `yaml:"location"`
	Fragments []string `yaml:"fragments"`
	// HTML optionally names a page snapshot, relative to the scene file,
	// whose readout regions are appended to Fragments.
	HTML string `yaml:"html"`
}

// Scene is a parsed scene file.
type Scene struct {
	Surfaces []Surface `yaml:"surfaces"`
	Page     Page      `yaml:"page"`

	dir string
}

// Load reads a scene file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}
	for i, surf := range s.Surfaces {
		if surf.Name == "" {
			s.Surfaces[i].Name = fmt.Sprintf("surface-%d", i)
		}
	}
	s.dir = filepath.Dir(path)
	return &s, nil
}

// Surface returns the named surface if it is present and not removed.
func (s *Scene) Surface(name string) (Surface, bool) {
	for _, surf := range s.Surfaces {
		if surf.Name == name && !surf.Removed {
			return surf, true
		}
	}
	return Surface{}, false
}

// PageState returns the scene's page for anchor resolution. An unreadable
// HTML snapshot contributes no fragments.
func (s *Scene) PageState() anchor.PageState {
	ps := anchor.PageState{
		Fragments: append([]string(nil), s.Page.Fragments...),
		Location:  s.Page.Location,
	}
	if s.Page.HTML == "" {
		return ps
	}
	path := s.Page.HTML
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	snap, err := page.ExtractFile(path)
	if err != nil {
		return ps
	}
	ps.Fragments = append(ps.Fragments, snap.Fragments...)
	if ps.Location == "" {
		ps.Location = snap.Location
	}
	return ps
}

// ErrNoSurfaces is returned for a scene without any present surface. It
// matches surface.ErrSurfaceNotFound.
var ErrNoSurfaces = fmt.Errorf("scene has no surfaces: %w", surface.ErrSurfaceNotFound)
