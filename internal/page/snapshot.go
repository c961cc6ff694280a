// Package page extracts what the overlay needs from an HTML snapshot of the
// host page: text of coordinate readout regions, image elements that may be
// template overlays, and the page location.
package page

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"blue-scan/internal/anchor"
	"blue-scan/internal/template"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// readoutName matches ids and classes of elements that display pointer or
// viewport coordinates.
var readoutName = regexp.MustCompile(`(?i)(coord|readout|position|pixel|debug|info)`)

// Snapshot is the extracted page state.
type Snapshot struct {
	// Fragments holds the text of each readout region, outermost regions
	// only, in document order.
	Fragments []string
	// Images lists every <img> with a src.
	Images []template.Candidate
	// Location is the canonical URL, if the page declares one.
	Location string
}

// PageState implements anchor.PageSource.
func (s *Snapshot) PageState() anchor.PageState {
	return anchor.PageState{Fragments: s.Fragments, Location: s.Location}
}

// Extract parses an HTML document.
func Extract(r io.Reader) (*Snapshot, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	s := &Snapshot{}
	s.walk(doc, false)
	return s, nil
}

// ExtractFile parses an HTML file.
func ExtractFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	return Extract(f)
}

func (s *Snapshot) walk(n *html.Node, inReadout bool) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript:
			return
		case atom.Img:
			if c, ok := candidate(n); ok {
				s.Images = append(s.Images, c)
			}
		case atom.Link:
			if strings.EqualFold(attr(n, "rel"), "canonical") && s.Location == "" {
				s.Location = attr(n, "href")
			}
		case atom.Meta:
			if attr(n, "property") == "og:url" && s.Location == "" {
				s.Location = attr(n, "content")
			}
		}
		if !inReadout && isReadout(n) {
			if text := collapse(textOf(n)); text != "" {
				s.Fragments = append(s.Fragments, text)
			}
			inReadout = true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walk(c, inReadout)
	}
}

func isReadout(n *html.Node) bool {
	return readoutName.MatchString(attr(n, "id") + " " + attr(n, "class"))
}

func candidate(n *html.Node) (template.Candidate, bool) {
	src := attr(n, "src")
	if src == "" {
		return template.Candidate{}, false
	}
	style := parseStyle(attr(n, "style"))
	return template.Candidate{
		Src:      src,
		ID:       attr(n, "id"),
		Class:    attr(n, "class"),
		Position: style["position"],
		Width:    dimension(attr(n, "width"), style["width"]),
		Height:   dimension(attr(n, "height"), style["height"]),
	}, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseStyle reads an inline style attribute into lower-cased properties.
func parseStyle(style string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

// dimension prefers a CSS pixel size over the HTML attribute.
func dimension(attrVal, cssVal string) float64 {
	for _, v := range []string{cssVal, attrVal} {
		v = strings.TrimSuffix(strings.TrimSpace(v), "px")
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return 0
}
