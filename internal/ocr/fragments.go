package ocr

import (
	"regexp"
	"strings"
)

// Tesseract often reads the lowercase l in "Tl" as 1, I or |.
var tlLabel = regexp.MustCompile(`(?i)\bT[1I|l]\s?([XY])`)

// CleanFragments collapses whitespace, repairs commonly misread readout
// labels and drops empty and repeated lines, preserving order.
func CleanFragments(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		l = tlLabel.ReplaceAllString(l, "Tl$1")
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
