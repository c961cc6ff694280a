package anchor

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"blue-scan/internal/session"
	"blue-scan/internal/viewport"
)

// Source names the strategy that produced an anchor.
type Source int

const (
	SourceNone Source = iota
	SourceReadout
	SourcePinned
	SourceLocation
)

func (s Source) String() string {
	switch s {
	case SourceReadout:
		return "readout"
	case SourcePinned:
		return "pinned"
	case SourceLocation:
		return "location"
	default:
		return "none"
	}
}

// PageState is a snapshot of the page: visible text fragments from
// coordinate readout regions, in document order, and the current location.
type PageState struct {
	Fragments []string
	Location  string
}

// PageSource supplies page snapshots.
type PageSource interface {
	PageState() PageState
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc func() PageState

// PageState implements PageSource.
func (f PageSourceFunc) PageState() PageState { return f() }

// Resolver applies the anchor strategies in priority order.
type Resolver struct {
	XParam string
	YParam string
}

// NewResolver creates a resolver reading the given location query parameters.
func NewResolver(xParam, yParam string) *Resolver {
	return &Resolver{XParam: xParam, YParam: yParam}
}

// Resolve returns the first anchor found by, in order: a coordinate readout
// in the page fragments, the session's pinned anchor, and numeric
// coordinates in the location query. It returns viewport.Unknown when
// nothing matches.
func (r *Resolver) Resolve(page PageState, sess *session.State) (viewport.Anchor, Source) {
	if ro, ok := ParseReadout(page.Fragments); ok {
		return viewport.At(float64(ro.TopLeftX), float64(ro.TopLeftY)), SourceReadout
	}
	if a := sess.PinnedAnchor(); a.Known {
		return a, SourcePinned
	}
	if a, ok := r.FromLocation(page.Location); ok {
		return a, SourceLocation
	}
	return viewport.Unknown, SourceNone
}

// FromLocation reads the view coordinates from a URL's query string.
func (r *Resolver) FromLocation(location string) (viewport.Anchor, bool) {
	location = strings.TrimSpace(location)
	if location == "" {
		return viewport.Unknown, false
	}
	u, err := url.Parse(location)
	if err != nil {
		return viewport.Unknown, false
	}
	q := u.Query()
	x, okX := parseCoord(q.Get(r.paramX()))
	y, okY := parseCoord(q.Get(r.paramY()))
	if !okX || !okY {
		return viewport.Unknown, false
	}
	return viewport.At(x, y), true
}

// LocationFor returns location with its coordinate parameters set to
// (x, y), keeping every other part of the URL.
func (r *Resolver) LocationFor(location string, x, y float64) (string, error) {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", fmt.Errorf("parse location: %w", err)
	}
	q := u.Query()
	q.Set(r.paramX(), strconv.FormatFloat(x, 'f', -1, 64))
	q.Set(r.paramY(), strconv.FormatFloat(y, 'f', -1, 64))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r *Resolver) paramX() string {
	if r.XParam == "" {
		return "x"
	}
	return r.XParam
}

func (r *Resolver) paramY() string {
	if r.YParam == "" {
		return "y"
	}
	return r.YParam
}

func parseCoord(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
