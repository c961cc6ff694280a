package template

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoOverlay is returned when no page image looks like a template overlay.
var ErrNoOverlay = errors.New("no overlay image detected")

// Candidate describes an image element found on the host page.
type Candidate struct {
	Src      string
	ID       string
	Class    string
	Position string // computed CSS position; empty means static
	Width    float64
	Height   float64
}

// Area returns the on-screen area of the candidate.
func (c Candidate) Area() float64 {
	return c.Width * c.Height
}

var overlayName = regexp.MustCompile(`(?i)(marble|template|overlay)`)

// minOverlayArea is the area above which an image earns the size bonus.
const minOverlayArea = 10000

// Score rates how much a candidate looks like a template overlay drawn by
// another tool: positioned elements and overlay-ish names score, large
// images get a small bonus.
func Score(c Candidate) int {
	s := 0
	pos := strings.TrimSpace(strings.ToLower(c.Position))
	if pos != "" && pos != "static" {
		s += 2
	}
	if overlayName.MatchString(c.Class + " " + c.ID) {
		s += 5
	}
	if c.Area() > minOverlayArea {
		s++
	}
	return s
}

// Sniff picks the largest candidate with a positive score.
func Sniff(candidates []Candidate) (Candidate, bool) {
	var best Candidate
	bestArea := 0.0
	found := false
	for _, c := range candidates {
		if Score(c) > 0 && c.Area() > bestArea {
			best, bestArea, found = c, c.Area(), true
		}
	}
	return best, found
}

// SniffDataURL returns the data URL of the detected overlay. Only inline
// data:image/ sources can be used as template payloads.
func SniffDataURL(candidates []Candidate) (string, error) {
	c, ok := Sniff(candidates)
	if !ok {
		return "", ErrNoOverlay
	}
	if !strings.HasPrefix(c.Src, "data:image/") {
		return "", ErrNotImage
	}
	return c.Src, nil
}
