package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"blue-scan/internal/viewport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func newBackend(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.body))
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestListPreservesOrderAndAcceptsNumericIDs(t *testing.T) {
	srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id": 7, "name": "b", "x": 150, "y": 120, "w": 40, "h": 20, "mode": "build", "added_at": "2024-01-01"},
			{"id": "abc", "name": "a", "x": 1, "y": 2, "w": 3, "h": 4, "mode": "protect", "added_at": "2024-01-02"}
		]`)
	})

	list, err := NewClient(srv.URL+"/", nil).List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ID("7"), list[0].ID)
	assert.Equal(t, ID("abc"), list[1].ID)
	assert.Equal(t, ModeProtect, list[1].Mode)
	assert.Equal(t, []viewport.WorldRect{
		{ID: "7", X: 150, Y: 120, W: 40, H: 20},
		{ID: "abc", X: 1, Y: 2, W: 3, H: 4},
	}, Rects(list))
}

func TestMutationsHitBackendEndpoints(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/artworks", "/artworks/corners", "/artworks/place_tl":
			_, _ = io.WriteString(w, `{"id": 3, "name": "n", "x": 1, "y": 2, "w": 3, "h": 4, "mode": "build"}`)
		default:
			_, _ = io.WriteString(w, `{"ok": true, "status": "started"}`)
		}
	})
	c := NewClient(srv.URL, nil)
	ctx := context.Background()

	_, err := c.Create(ctx, CreateRequest{Name: "n", X: 1, Y: 2, W: 3, H: 4})
	require.NoError(t, err)
	_, err = c.CreateFromCorners(ctx, CornersRequest{Name: "n", Corners: [4][2]int{{0, 0}, {4, 0}, {4, 4}, {0, 4}}})
	require.NoError(t, err)
	a, err := c.PlaceTL(ctx, PlaceRequest{Name: "n", TLX: 10, TLY: 20, DataURL: "data:image/png;base64,AA=="})
	require.NoError(t, err)
	assert.Equal(t, ID("3"), a.ID)
	require.NoError(t, c.Delete(ctx, "3"))
	_, err = c.SetTemplate(ctx, "3", "data:image/png;base64,AA==")
	require.NoError(t, err)
	_, err = c.SetMode(ctx, "3", ModeProtect)
	require.NoError(t, err)
	_, err = c.Snapshot(ctx, "3")
	require.NoError(t, err)
	_, err = c.GroundSnapshot(ctx, "3")
	require.NoError(t, err)
	st, err := c.MonitorStart(ctx)
	require.NoError(t, err)
	assert.True(t, st.OK)
	_, err = c.MonitorStop(ctx)
	require.NoError(t, err)

	got := make([]string, len(*calls))
	for i, cl := range *calls {
		got[i] = cl.method + " " + cl.path
	}
	assert.Equal(t, []string{
		"POST /artworks",
		"POST /artworks/corners",
		"POST /artworks/place_tl",
		"DELETE /artworks/3",
		"POST /artworks/3/template",
		"POST /artworks/3/mode",
		"POST /artworks/3/snapshot",
		"POST /artworks/3/ground_snapshot",
		"POST /monitor/start",
		"POST /monitor/stop",
	}, got)

	assert.Equal(t, float64(10), (*calls)[2].body["tl_x"])
	assert.Equal(t, "data:image/png;base64,AA==", (*calls)[2].body["data_url"])
	assert.Len(t, (*calls)[1].body["corners"], 4)
	assert.Equal(t, "protect", (*calls)[5].body["mode"])
}

func TestNon2xxIsStatusError(t *testing.T) {
	srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"unknown artwork"}`, http.StatusNotFound)
	})

	_, err := NewClient(srv.URL, nil).Snapshot(context.Background(), "9")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "/artworks/9/snapshot", se.Path)
	assert.Contains(t, se.Error(), "unknown artwork")
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	err := NewClient(srv.URL, nil).WithTimeout(20*time.Millisecond).Health(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("build")
	require.NoError(t, err)
	assert.Equal(t, ModeBuild, m)
	_, err = ParseMode("paint")
	assert.Error(t, err)
}

func TestIDMarshal(t *testing.T) {
	b, err := json.Marshal(struct{ A, B ID }{"12", "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"A": 12, "B": "x"}`, string(b))
}

func TestDiscoverPicksFirstHealthy(t *testing.T) {
	var downHits atomic.Int32
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downHits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok": true, "status": "alive"}`)
	}))
	defer up.Close()

	got, err := Discover(context.Background(), nil, []string{down.URL, up.URL + "/"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, up.URL, got)
	assert.Equal(t, int32(1), downHits.Load())
}

func TestDiscoverFallsBackToFirstCandidate(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	got, err := Discover(context.Background(), nil, []string{down.URL + "/"}, time.Second)
	assert.ErrorIs(t, err, ErrNoBackend)
	assert.Equal(t, down.URL, got)
}

func TestCandidatesDeduplicates(t *testing.T) {
	got := Candidates(" http://a:1/ ", "", "http://a:1", "http://localhost:8000/")
	assert.Equal(t, []string{"http://a:1", "http://localhost:8000", "http://127.0.0.1:8000"}, got)
}

type scriptedLister struct {
	lists [][]Artwork
	errs  []error
	n     int
}

func (s *scriptedLister) List(context.Context) ([]Artwork, error) {
	i := s.n
	s.n++
	return s.lists[i], s.errs[i]
}

func TestCacheServesStaleListOnFailure(t *testing.T) {
	first := []Artwork{{ID: "1", W: 1, H: 1}}
	src := &scriptedLister{
		lists: [][]Artwork{nil, first, nil},
		errs:  []error{errors.New("down"), nil, errors.New("timeout")},
	}
	c := NewCache(src)

	list, err := c.List(context.Background())
	assert.Error(t, err)
	assert.Nil(t, list)
	_, ok := c.Last()
	assert.False(t, ok)

	list, err = c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, list)

	list, err = c.List(context.Background())
	assert.Error(t, err)
	assert.Equal(t, first, list)
	assert.False(t, c.FetchedAt().IsZero())
}
