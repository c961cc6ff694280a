package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every request unless the caller's context is
// shorter.
const DefaultTimeout = 4 * time.Second

// ErrNoBackend is returned by Discover when no candidate answered.
var ErrNoBackend = errors.New("no backend reachable")

// StatusError is a non-2xx backend reply.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client is a JSON client for the artwork backend.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a client for baseURL. A nil httpClient uses
// http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: Normalize(baseURL), http: httpClient, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of c with a different per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	cp := *c
	cp.timeout = d
	return &cp
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string { return c.base }

// Normalize trims whitespace and a trailing slash.
func Normalize(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// List returns every artwork in backend order.
func (c *Client) List(ctx context.Context) ([]Artwork, error) {
	var out []Artwork
	if err := c.do(ctx, http.MethodGet, "/artworks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create adds a rectangle.
func (c *Client) Create(ctx context.Context, req CreateRequest) (Artwork, error) {
	var out Artwork
	err := c.do(ctx, http.MethodPost, "/artworks", req, &out)
	return out, err
}

// CreateFromCorners adds the bounding rectangle of four corner points.
func (c *Client) CreateFromCorners(ctx context.Context, req CornersRequest) (Artwork, error) {
	var out Artwork
	err := c.do(ctx, http.MethodPost, "/artworks/corners", req, &out)
	return out, err
}

// PlaceTL uploads a template anchored at its top-left world coordinate.
// The backend derives the size from the image.
func (c *Client) PlaceTL(ctx context.Context, req PlaceRequest) (Artwork, error) {
	var out Artwork
	err := c.do(ctx, http.MethodPost, "/artworks/place_tl", req, &out)
	return out, err
}

// Delete removes an artwork.
func (c *Client) Delete(ctx context.Context, id ID) error {
	return c.do(ctx, http.MethodDelete, artworkPath(id, ""), nil, nil)
}

// SetTemplate replaces an artwork's template image.
func (c *Client) SetTemplate(ctx context.Context, id ID, dataURL string) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodPost, artworkPath(id, "template"), map[string]string{"data_url": dataURL}, &out)
	return out, err
}

// SetMode switches an artwork between build and protect.
func (c *Client) SetMode(ctx context.Context, id ID, mode Mode) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodPost, artworkPath(id, "mode"), map[string]Mode{"mode": mode}, &out)
	return out, err
}

// Snapshot asks the backend to capture the artwork's baseline.
func (c *Client) Snapshot(ctx context.Context, id ID) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodPost, artworkPath(id, "snapshot"), nil, &out)
	return out, err
}

// GroundSnapshot asks the backend to capture the ground under the artwork.
func (c *Client) GroundSnapshot(ctx context.Context, id ID) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodPost, artworkPath(id, "ground_snapshot"), nil, &out)
	return out, err
}

// MonitorStart starts backend-side monitoring.
func (c *Client) MonitorStart(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodPost, "/monitor/start", nil, &out)
	return out, err
}

// MonitorStop stops backend-side monitoring.
func (c *Client) MonitorStop(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodPost, "/monitor/stop", nil, &out)
	return out, err
}

func artworkPath(id ID, action string) string {
	p := "/artworks/" + url.PathEscape(string(id))
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
