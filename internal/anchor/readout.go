// Package anchor recovers the world coordinate shown at the host surface's
// top-left corner from whatever the page exposes.
package anchor

import (
	"regexp"
	"strconv"
)

// Readout is one parsed coordinate readout.
type Readout struct {
	TopLeftX int
	TopLeftY int
	PointerX int
	PointerY int
}

var readoutLabels = map[string]*regexp.Regexp{
	"tlx": labelPattern("tlx"),
	"tly": labelPattern("tly"),
	"pxx": labelPattern("pxx"),
	"pxy": labelPattern("pxy"),
}

func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + `\s*[:=]?\s*(-?\d+)`)
}

// ParseReadout scans fragments in order and returns the first one carrying
// all four labelled integers (TlX, TlY, PxX, PxY).
func ParseReadout(fragments []string) (Readout, bool) {
	for _, f := range fragments {
		if r, ok := parseFragment(f); ok {
			return r, true
		}
	}
	return Readout{}, false
}

func parseFragment(s string) (Readout, bool) {
	vals := make(map[string]int, len(readoutLabels))
	for name, re := range readoutLabels {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return Readout{}, false
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return Readout{}, false
		}
		vals[name] = v
	}
	return Readout{
		TopLeftX: vals["tlx"],
		TopLeftY: vals["tly"],
		PointerX: vals["pxx"],
		PointerY: vals["pxy"],
	}, true
}
