package ocr

import (
	"testing"

	"blue-scan/internal/anchor"

	"github.com/stretchr/testify/assert"
)

func TestCleanFragments(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"collapses whitespace", []string{"  TlX: 5   TlY: 6 "}, []string{"TlX: 5 TlY: 6"}},
		{"repairs misread l", []string{"T1X 5 TIY 6 T|X 7", "T1 Y: 8"}, []string{"TlX 5 TlY 6 TlX 7", "TlY: 8"}},
		{"drops empties and repeats", []string{"", "PxX 1", "  ", "PxX 1"}, []string{"PxX 1"}},
		{"leaves other text", []string{"Tile 12"}, []string{"Tile 12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanFragments(tt.in))
		})
	}
}

func TestCleanedLinesFeedReadoutParser(t *testing.T) {
	lines := []string{"T1X: 100 TIY: -20", "PxX: 3 PxY: 4"}
	frags := CleanFragments(append(lines, lines[0]+" "+lines[1]))

	r, ok := anchor.ParseReadout(frags)
	assert.True(t, ok)
	assert.Equal(t, 100, r.TopLeftX)
	assert.Equal(t, -20, r.TopLeftY)
}
