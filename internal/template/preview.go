// Package template handles artwork template images: data URL encoding,
// loading from disk, and the preview kept for the overlay.
package template

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"net/http"
	"os"
	"strings"

	"blue-scan/internal/viewport"

	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when a payload is not a data:image/ URL or does not
// decode as an image.
var ErrNotImage = errors.New("not an image data URL")

// Preview is the most recently created template, positioned at the TL anchor
// it was uploaded with and shown at its native pixel size.
type Preview struct {
	DataURL      string
	Image        image.Image
	AnchorX      int
	AnchorY      int
	NativeWidth  int
	NativeHeight int
}

// NewPreview decodes dataURL to learn the template's native size.
func NewPreview(dataURL string, tlX, tlY int) (*Preview, error) {
	img, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Preview{
		DataURL:      dataURL,
		Image:        img,
		AnchorX:      tlX,
		AnchorY:      tlY,
		NativeWidth:  b.Dx(),
		NativeHeight: b.Dy(),
	}, nil
}

// Usable reports whether the preview can be drawn.
func (p *Preview) Usable() bool {
	return p != nil && p.Image != nil && p.NativeWidth > 0 && p.NativeHeight > 0
}

// Rect returns the world rectangle the preview covers.
func (p *Preview) Rect() viewport.WorldRect {
	return viewport.WorldRect{
		ID: "preview",
		X:  float64(p.AnchorX),
		Y:  float64(p.AnchorY),
		W:  float64(p.NativeWidth),
		H:  float64(p.NativeHeight),
	}
}

// EncodeDataURL wraps raw image bytes in a base64 data URL, sniffing the
// MIME type from content.
func EncodeDataURL(data []byte) (string, error) {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ReadFile loads a PNG or WEBP template from disk as a data URL.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	mime := http.DetectContentType(data)
	if mime != "image/png" && mime != "image/webp" {
		return "", fmt.Errorf("%w: %s is %s, want PNG or WEBP", ErrNotImage, path, mime)
	}
	return EncodeDataURL(data)
}

// DecodeDataURL decodes a base64 data:image/ URL.
func DecodeDataURL(dataURL string) (image.Image, error) {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return nil, ErrNotImage
	}
	comma := strings.IndexByte(dataURL, ',')
	if comma < 0 {
		return nil, ErrNotImage
	}
	meta := dataURL[len("data:"):comma]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrNotImage)
	}

	raw, err := base64.StdEncoding.DecodeString(dataURL[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return img, nil
}
