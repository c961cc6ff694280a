package viewport

import (
	"fmt"
	"strconv"
	"strings"

	"blue-scan/pkg/geometry"
)

// ParseTransform parses the 2D subset of a computed CSS transform:
// "none", "matrix(a,b,c,d,e,f)", "translate(x[,y])" and "scale(s[,t])",
// optionally chained. Units ("px") are ignored.
func ParseTransform(css string) (geometry.AffineTransform, error) {
	css = strings.TrimSpace(css)
	if css == "" || css == "none" {
		return geometry.Identity(), nil
	}

	result := geometry.Identity()
	rest := css
	for rest != "" {
		open := strings.IndexByte(rest, '(')
		end := strings.IndexByte(rest, ')')
		if open <= 0 || end < open {
			return geometry.AffineTransform{}, fmt.Errorf("malformed transform %q", css)
		}
		name := strings.TrimSpace(rest[:open])
		args, err := parseArgs(rest[open+1 : end])
		if err != nil {
			return geometry.AffineTransform{}, fmt.Errorf("transform %q: %w", css, err)
		}

		var step geometry.AffineTransform
		switch name {
		case "matrix":
			if len(args) != 6 {
				return geometry.AffineTransform{}, fmt.Errorf("matrix needs 6 values, got %d", len(args))
			}
			// CSS matrix(a, b, c, d, e, f) is column-major.
			step = geometry.AffineTransform{
				A: args[0], B: args[2], TX: args[4],
				C: args[1], D: args[3], TY: args[5],
			}
		case "translate":
			switch len(args) {
			case 1:
				step = geometry.Translation(args[0], 0)
			case 2:
				step = geometry.Translation(args[0], args[1])
			default:
				return geometry.AffineTransform{}, fmt.Errorf("translate needs 1 or 2 values, got %d", len(args))
			}
		case "scale":
			switch len(args) {
			case 1:
				step = geometry.Scale(args[0], args[0])
			case 2:
				step = geometry.Scale(args[0], args[1])
			default:
				return geometry.AffineTransform{}, fmt.Errorf("scale needs 1 or 2 values, got %d", len(args))
			}
		default:
			return geometry.AffineTransform{}, fmt.Errorf("unsupported transform function %q", name)
		}

		result = result.Compose(step)
		rest = strings.TrimSpace(rest[end+1:])
	}
	return result, nil
}

// FormatTransform renders t as a CSS matrix() value.
func FormatTransform(t geometry.AffineTransform) string {
	t = t.Normalize()
	if t == geometry.Identity() {
		return "none"
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return fmt.Sprintf("matrix(%s, %s, %s, %s, %s, %s)", f(t.A), f(t.C), f(t.B), f(t.D), f(t.TX), f(t.TY))
}

func parseArgs(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSuffix(f, "px")
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}
