package anchor

import (
	"testing"

	"blue-scan/internal/session"
	"blue-scan/internal/viewport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReadout(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      Readout
		ok        bool
	}{
		{
			name:      "labelled with colons",
			fragments: []string{"TlX: 100 TlY: 200 PxX: 3 PxY: 4"},
			want:      Readout{TopLeftX: 100, TopLeftY: 200, PointerX: 3, PointerY: 4},
			ok:        true,
		},
		{
			name:      "case insensitive and equals",
			fragments: []string{"tlx=-5, TLY=7 pxx=0 PXY=-1"},
			want:      Readout{TopLeftX: -5, TopLeftY: 7, PointerX: 0, PointerY: -1},
			ok:        true,
		},
		{
			name:      "any label order",
			fragments: []string{"PxX 1 PxY 2 TlY 30 TlX 40"},
			want:      Readout{TopLeftX: 40, TopLeftY: 30, PointerX: 1, PointerY: 2},
			ok:        true,
		},
		{
			name:      "missing label",
			fragments: []string{"TlX: 1 TlY: 2 PxX: 3"},
		},
		{
			name:      "non numeric",
			fragments: []string{"TlX: a TlY: 2 PxX: 3 PxY: 4"},
		},
		{
			name: "labels split across fragments do not combine",
			fragments: []string{
				"TlX: 1 TlY: 2",
				"PxX: 3 PxY: 4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseReadout(tt.fragments)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReadoutTakesFirstInDocumentOrder(t *testing.T) {
	got, ok := ParseReadout([]string{
		"Zoom 4x",
		"TlX: 10 TlY: 20 PxX: 0 PxY: 0",
		"TlX: 99 TlY: 99 PxX: 0 PxY: 0",
	})
	require.True(t, ok)
	assert.Equal(t, 10, got.TopLeftX)
	assert.Equal(t, 20, got.TopLeftY)
}

func TestResolvePrecedence(t *testing.T) {
	r := NewResolver("x", "y")
	readout := []string{"TlX: 1 TlY: 2 PxX: 0 PxY: 0"}
	location := "https://wplace.live/?x=30&y=40"

	pinned := session.New()
	pinned.Pin(viewport.At(5, 6))

	tests := []struct {
		name   string
		page   PageState
		sess   *session.State
		want   viewport.Anchor
		source Source
	}{
		{
			name:   "readout beats pinned",
			page:   PageState{Fragments: readout, Location: location},
			sess:   pinned,
			want:   viewport.At(1, 2),
			source: SourceReadout,
		},
		{
			name:   "pinned beats location",
			page:   PageState{Location: location},
			sess:   pinned,
			want:   viewport.At(5, 6),
			source: SourcePinned,
		},
		{
			name:   "location when nothing else",
			page:   PageState{Location: location},
			sess:   session.New(),
			want:   viewport.At(30, 40),
			source: SourceLocation,
		},
		{
			name:   "nil session skips pinned",
			page:   PageState{Location: location},
			sess:   nil,
			want:   viewport.At(30, 40),
			source: SourceLocation,
		},
		{
			name:   "unknown",
			page:   PageState{Fragments: []string{"hello"}, Location: "https://wplace.live/"},
			sess:   session.New(),
			want:   viewport.Unknown,
			source: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src := r.Resolve(tt.page, tt.sess)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.source, src)
		})
	}
}

func TestFromLocation(t *testing.T) {
	r := &Resolver{}

	tests := []struct {
		location string
		want     viewport.Anchor
		ok       bool
	}{
		{"https://wplace.live/?x=12&y=-4", viewport.At(12, -4), true},
		{"https://wplace.live/?x=1.5&y=2", viewport.At(1.5, 2), true},
		{"https://wplace.live/?x=12", viewport.Unknown, false},
		{"https://wplace.live/?x=abc&y=1", viewport.Unknown, false},
		{"https://wplace.live/?x=NaN&y=1", viewport.Unknown, false},
		{"https://wplace.live/?x=Inf&y=1", viewport.Unknown, false},
		{"", viewport.Unknown, false},
		{"://bad", viewport.Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, ok := r.FromLocation(tt.location)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromLocationCustomParams(t *testing.T) {
	r := NewResolver("tlx", "tly")
	got, ok := r.FromLocation("https://example.test/map?tlx=7&tly=8&x=1&y=1")
	require.True(t, ok)
	assert.Equal(t, viewport.At(7, 8), got)
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "readout", SourceReadout.String())
	assert.Equal(t, "pinned", SourcePinned.String())
	assert.Equal(t, "location", SourceLocation.String())
	assert.Equal(t, "none", SourceNone.String())
}

func TestLocationForRoundTrips(t *testing.T) {
	r := NewResolver("x", "y")
	loc, err := r.LocationFor("https://example.test/map?zoom=3&x=1#top", 150, -20.5)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/map?x=150&y=-20.5&zoom=3#top", loc)

	got, ok := r.FromLocation(loc)
	require.True(t, ok)
	assert.Equal(t, viewport.At(150, -20.5), got)

	loc, err = r.LocationFor("", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "?x=1&y=2", loc)
}
