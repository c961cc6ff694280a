package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"blue-scan/internal/anchor"
	"blue-scan/internal/config"
	"blue-scan/internal/directory"
	"blue-scan/internal/overlay"
	"blue-scan/internal/render"
	"blue-scan/internal/session"
	"blue-scan/internal/surface"
	"blue-scan/internal/viewport"
	"blue-scan/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fastTick = 5 * time.Millisecond

var mapGeometry = viewport.Geometry{
	DisplayWidth: 1000, DisplayHeight: 1000,
	BufferWidth: 2000, BufferHeight: 2000,
	PixelDensity: 1,
}

// host is a surface whose presence can be toggled.
type host struct {
	mu      sync.Mutex
	g       viewport.Geometry
	gone    bool
	reads   atomic.Int64
	trigger func()
}

func (h *host) Geometry() (viewport.Geometry, error) {
	h.reads.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gone {
		return viewport.Geometry{}, surface.ErrSurfaceNotFound
	}
	return h.g, nil
}

func (h *host) OnResize(fn func()) func() {
	h.mu.Lock()
	h.trigger = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		h.trigger = nil
		h.mu.Unlock()
	}
}

func (h *host) resize() {
	h.mu.Lock()
	fn := h.trigger
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// flakyLocator fails a fixed number of times before finding the host.
type flakyLocator struct {
	h        *host
	failures atomic.Int64
	calls    atomic.Int64
}

func (l *flakyLocator) Locate() (surface.Host, error) {
	l.calls.Add(1)
	if l.failures.Add(-1) >= 0 {
		return nil, surface.ErrSurfaceNotFound
	}
	return l.h, nil
}

// scriptedLister returns good once then fails, or blocks while gate is set.
type scriptedLister struct {
	mu    sync.Mutex
	list  []directory.Artwork
	fail  bool
	gate  chan struct{}
	calls atomic.Int64
}

func (s *scriptedLister) List(ctx context.Context) ([]directory.Artwork, error) {
	s.calls.Add(1)
	s.mu.Lock()
	gate, fail, list := s.gate, s.fail, s.list
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("backend down")
	}
	return list, nil
}

type harness struct {
	host    *host
	locator *flakyLocator
	lister  *scriptedLister
	sess    *session.State
	layers  []*overlay.Raster
	layerMu sync.Mutex
	frames  chan render.Frame
	m       *Monitor
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		host:   &host{g: mapGeometry},
		lister: &scriptedLister{list: []directory.Artwork{{ID: "1", X: 150, Y: 120, W: 40, H: 20}}},
		sess:   session.New(),
		frames: make(chan render.Frame, 1024),
	}
	h.locator = &flakyLocator{h: h.host}
	h.sess.Pin(viewport.At(100, 100))

	tracker := surface.NewTracker(overlay.Factory(func(r *overlay.Raster) {
		h.layerMu.Lock()
		h.layers = append(h.layers, r)
		h.layerMu.Unlock()
	}))
	if opts.Interval == 0 {
		opts.Interval = fastTick
	}
	h.m = New(tracker, h.locator, directory.NewCache(h.lister), nil, anchor.NewResolver("x", "y"), h.sess, render.New(true), opts)
	h.m.OnFrame(func(f render.Frame) {
		select {
		case h.frames <- f:
		default:
		}
	})
	t.Cleanup(h.m.Stop)
	return h
}

func (h *harness) lastFrame(t *testing.T) render.Frame {
	t.Helper()
	var f render.Frame
	select {
	case f = <-h.frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame rendered")
	}
	for {
		select {
		case f = <-h.frames:
		default:
			return f
		}
	}
}

func TestRendersProjectedArtworks(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.m.Start(context.Background()))

	f := h.lastFrame(t)
	require.Len(t, f.Rects, 1)
	assert.Equal(t, viewport.LocalRect{X: 25, Y: 10, W: 20, H: 10}, f.Rects[0].Local)
	assert.Equal(t, StateTracking, h.m.State())
}

func TestStaleListSurvivesFetchFailure(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.m.Start(context.Background()))
	h.lastFrame(t)

	h.lister.mu.Lock()
	h.lister.fail = true
	h.lister.mu.Unlock()

	require.Eventually(t, func() bool { return h.m.Stats().FetchFailures >= 3 }, 2*time.Second, fastTick)
	f := h.lastFrame(t)
	require.Len(t, f.Rects, 1, "cached list keeps being drawn")
	assert.Equal(t, "1", f.Rects[0].ID)
}

func TestBusyTicksAreSkipped(t *testing.T) {
	h := newHarness(t, Options{})
	gate := make(chan struct{})
	h.lister.gate = gate

	require.NoError(t, h.m.Start(context.Background()))
	require.Eventually(t, func() bool { return h.m.Stats().Skipped >= 5 }, 2*time.Second, fastTick)
	assert.Equal(t, int64(1), h.lister.calls.Load(), "skipped ticks are not queued")

	h.lister.mu.Lock()
	h.lister.gate = nil
	h.lister.mu.Unlock()
	close(gate)
	h.lastFrame(t)
}

func TestNothingHappensAfterStop(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.m.Start(context.Background()))
	h.lastFrame(t)

	h.m.Stop()
	reads := h.host.reads.Load()
	renders := h.m.Stats().Renders

	time.Sleep(20 * fastTick)
	assert.Equal(t, reads, h.host.reads.Load(), "no resync after Stop")
	assert.Equal(t, renders, h.m.Stats().Renders, "no render after Stop")
	assert.Equal(t, StateDetached, h.m.State())

	h.layerMu.Lock()
	defer h.layerMu.Unlock()
	require.NotEmpty(t, h.layers)
	for _, l := range h.layers {
		assert.True(t, l.Released())
	}

	h.m.Stop()
}

func TestStopDuringBlockedFetch(t *testing.T) {
	h := newHarness(t, Options{})
	h.lister.gate = make(chan struct{})
	require.NoError(t, h.m.Start(context.Background()))
	require.Eventually(t, func() bool { return h.lister.calls.Load() == 1 }, time.Second, fastTick)

	done := make(chan struct{})
	go func() {
		h.m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an in-flight fetch")
	}
	assert.Zero(t, h.m.Stats().Renders)
}

func TestAttachRetriesUntilSurfaceAppears(t *testing.T) {
	h := newHarness(t, Options{})
	h.locator.failures.Store(3)

	var states []State
	var mu sync.Mutex
	h.m.OnState(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	require.NoError(t, h.m.Start(context.Background()))
	h.lastFrame(t)
	assert.Equal(t, uint64(3), h.m.Stats().AttachFailures)

	h.m.Stop()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateIdle, StateTracking, StateDetached}, states)
}

func TestAttachGivesUpWhenPolicyStops(t *testing.T) {
	cfg := config.Default()
	cfg.TickInterval = fastTick
	cfg.AttachMaxFailures = 2

	h := newHarness(t, Options{AttachPolicy: cfg.AttachPolicy()})
	h.locator.failures.Store(1 << 30)

	require.NoError(t, h.m.Start(context.Background()))
	require.Eventually(t, func() bool { return h.m.State() == StateDetached }, 2*time.Second, fastTick)
	assert.Equal(t, uint64(3), h.m.Stats().AttachFailures)
	assert.Zero(t, h.m.Stats().Renders)
}

func TestRestartAfterGivingUp(t *testing.T) {
	cfg := config.Default()
	cfg.TickInterval = fastTick
	cfg.AttachMaxFailures = 1

	h := newHarness(t, Options{AttachPolicy: cfg.AttachPolicy()})
	h.locator.failures.Store(1 << 30)

	require.NoError(t, h.m.Start(context.Background()))
	require.Eventually(t, func() bool { return !h.m.Running() }, 2*time.Second, fastTick)
	assert.Equal(t, StateDetached, h.m.State())

	h.locator.failures.Store(0)
	require.NoError(t, h.m.Start(context.Background()))
	require.Eventually(t, func() bool { return h.m.State() == StateTracking }, 2*time.Second, fastTick)
	assert.True(t, h.m.Running())
	h.lastFrame(t)
}

func TestSurfaceLossReattaches(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.m.Start(context.Background()))
	h.lastFrame(t)

	h.host.mu.Lock()
	h.host.gone = true
	h.host.mu.Unlock()
	require.Eventually(t, func() bool { return h.m.State() == StateIdle }, 2*time.Second, fastTick)

	h.host.mu.Lock()
	h.host.gone = false
	h.host.mu.Unlock()
	require.Eventually(t, func() bool { return h.m.State() == StateTracking }, 2*time.Second, fastTick)

	h.layerMu.Lock()
	defer h.layerMu.Unlock()
	assert.GreaterOrEqual(t, len(h.layers), 2)
	assert.True(t, h.layers[0].Released())
}

func TestUnknownAnchorSuppressesFrame(t *testing.T) {
	h := newHarness(t, Options{})
	h.sess.ClearPin()
	require.NoError(t, h.m.Start(context.Background()))

	f := h.lastFrame(t)
	assert.True(t, f.Suppressed)
	assert.Equal(t, render.ReasonAnchorUnknown, f.Reason)
	assert.Empty(t, f.Rects)
}

func TestResizeHintTriggersImmediateTick(t *testing.T) {
	h := newHarness(t, Options{Interval: 450 * time.Millisecond})
	require.NoError(t, h.m.Start(context.Background()))
	h.lastFrame(t)
	before := h.m.Stats().Renders

	h.host.mu.Lock()
	h.host.g.Transform = geometry.Scale(2, 2)
	h.host.mu.Unlock()
	h.host.resize()

	require.Eventually(t, func() bool { return h.m.Stats().Renders > before }, 300*time.Millisecond, fastTick)
}

func TestListEverySpacesFetches(t *testing.T) {
	h := newHarness(t, Options{ListEvery: 4})
	require.NoError(t, h.m.Start(context.Background()))
	require.Eventually(t, func() bool { return h.m.Stats().Ticks >= 12 }, 2*time.Second, fastTick)
	h.m.Stop()

	st := h.m.Stats()
	assert.LessOrEqual(t, h.lister.calls.Load(), int64(st.Ticks/4+1))
}

func TestStartTwice(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.m.Start(context.Background()))
	assert.ErrorIs(t, h.m.Start(context.Background()), ErrRunning)
	_, err := h.m.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunning)
}

func TestRunOnce(t *testing.T) {
	h := newHarness(t, Options{})
	f, err := h.m.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, f.Rects, 1)
	assert.Equal(t, "anchor=(100,100) scale=0.500x0.500", f.Label)

	h.m.Close()
	h.layerMu.Lock()
	defer h.layerMu.Unlock()
	assert.True(t, h.layers[0].Released())
}

func TestRunOnceReportsMissingSurface(t *testing.T) {
	h := newHarness(t, Options{})
	h.locator.failures.Store(1)
	_, err := h.m.RunOnce(context.Background())
	assert.ErrorIs(t, err, surface.ErrSurfaceNotFound)
}
