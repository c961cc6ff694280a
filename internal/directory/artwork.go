// Package directory talks to the artwork backend: listing, creating and
// managing the rectangles the overlay draws.
package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"blue-scan/internal/viewport"
)

// ID identifies an artwork. The backend sends integers; the value is kept
// opaque so string identifiers work as well.
type ID string

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("artwork id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric IDs as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Mode is the backend's monitoring mode for an artwork.
type Mode string

const (
	ModeBuild   Mode = "build"
	ModeProtect Mode = "protect"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBuild, ModeProtect:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q (want build or protect)", s)
}

// Artwork is one backend-defined rectangle in world pixels.
type Artwork struct {
	ID      ID      `json:"id"`
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
	Mode    Mode    `json:"mode,omitempty"`
	AddedAt string  `json:"added_at,omitempty"`
}

// Rect returns the artwork as a world rectangle.
func (a Artwork) Rect() viewport.WorldRect {
	return viewport.WorldRect{ID: string(a.ID), X: a.X, Y: a.Y, W: a.W, H: a.H}
}

// Rects converts a listing, preserving its order.
func Rects(list []Artwork) []viewport.WorldRect {
	out := make([]viewport.WorldRect, len(list))
	for i, a := range list {
		out[i] = a.Rect()
	}
	return out
}

// Find returns the artwork with the given ID.
func Find(list []Artwork, id ID) (Artwork, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return Artwork{}, false
}

// CreateRequest is the body of POST /artworks.
type CreateRequest struct {
	Name string `json:"name"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	W    int    `json:"w"`
	H    int    `json:"h"`
}

// CornersRequest is the body of POST /artworks/corners.
type CornersRequest struct {
	Name    string    `json:"name"`
	Corners [4][2]int `json:"corners"`
}

// PlaceRequest is the body of POST /artworks/place_tl: a template uploaded
// with its top-left world coordinate.
type PlaceRequest struct {
	Name    string `json:"name"`
	TLX     int    `json:"tl_x"`
	TLY     int    `json:"tl_y"`
	DataURL string `json:"data_url"`
}

// Status is the generic {"ok": ..., "status": ...} reply.
type Status struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
	Mode   Mode   `json:"mode,omitempty"`
	W      int    `json:"w,omitempty"`
	H      int    `json:"h,omitempty"`
}
