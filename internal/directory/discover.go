package directory

import (
	"context"
	"log"
	"net/http"
	"time"
)

// DefaultCandidates are tried after any configured or remembered URL.
var DefaultCandidates = []string{
	"http://localhost:8000",
	"http://127.0.0.1:8000",
}

// HealthTimeout bounds each discovery probe.
const HealthTimeout = 2500 * time.Millisecond

// Candidates normalizes urls, drops empties and duplicates, and appends
// DefaultCandidates.
func Candidates(urls ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range append(urls, DefaultCandidates...) {
		u = Normalize(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Discover probes /healthz on each candidate in order and returns the first
// healthy one. When none answers it returns the first candidate together
// with ErrNoBackend so callers can still try it.
func Discover(ctx context.Context, httpClient *http.Client, candidates []string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = HealthTimeout
	}
	for _, base := range candidates {
		if ctx.Err() != nil {
			return fallback(candidates), ctx.Err()
		}
		c := NewClient(base, httpClient).WithTimeout(timeout)
		if err := c.Health(ctx); err != nil {
			log.Printf("Directory: %s unreachable: %v", c.BaseURL(), err)
			continue
		}
		log.Printf("Directory: backend found at %s", c.BaseURL())
		return c.BaseURL(), nil
	}
	return fallback(candidates), ErrNoBackend
}

func fallback(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return Normalize(candidates[0])
}
