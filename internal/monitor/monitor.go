// Package monitor runs the polling loop that keeps the overlay attached to
// the host surface and repainted from the artwork directory.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"blue-scan/internal/anchor"
	"blue-scan/internal/directory"
	"blue-scan/internal/render"
	"blue-scan/internal/session"
	"blue-scan/internal/surface"
	"blue-scan/internal/viewport"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"
)

// State is the monitor lifecycle state.
type State int

const (
	// StateIdle means started but not yet attached to a surface.
	StateIdle State = iota
	// StateTracking means an overlay is attached and being repainted.
	StateTracking
	// StateDetached means stopped, or given up on attaching.
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	default:
		return "detached"
	}
}

// ErrRunning is returned by Start and RunOnce while the loop is running.
var ErrRunning = errors.New("monitor already running")

// errGaveUp wraps the last attach error once the retry policy is exhausted.
var errGaveUp = errors.New("attach retries exhausted")

// errNotCanvas is returned when the layer factory builds layers that
// cannot be drawn on.
var errNotCanvas = errors.New("overlay layer is not drawable")

// Lister supplies the artwork listing. directory.Cache returns the previous
// list along with the error on failure.
type Lister interface {
	List(ctx context.Context) ([]directory.Artwork, error)
}

// Options tunes the loop.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	// ListEvery fetches the listing every n ticks; 1 means every tick.
	ListEvery int
	// AttachPolicy spaces out attach retries. backoff.Stop gives up.
	AttachPolicy backoff.BackOff
}

// Stats counts loop activity.
type Stats struct {
	Ticks          uint64
	Skipped        uint64
	Renders        uint64
	FetchFailures  uint64
	AttachFailures uint64
}

// Monitor owns the overlay for one host page.
type Monitor struct {
	tracker  *surface.Tracker
	locator  surface.Locator
	lister   Lister
	pages    anchor.PageSource
	resolver *anchor.Resolver
	session  *session.State
	renderer *render.Renderer
	opts     Options

	sem     *semaphore.Weighted
	paintMu sync.Mutex
	active  atomic.Bool
	kick    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	state   State
	onState func(State)
	onFrame func(render.Frame)

	// Guarded by paintMu.
	canvas     render.Canvas
	nextAttach uint64
	attachErr  bool

	listMu   sync.Mutex
	rects    []viewport.WorldRect
	fetchErr bool

	tickN          atomic.Uint64
	ticks          atomic.Uint64
	skipped        atomic.Uint64
	renders        atomic.Uint64
	fetchFailures  atomic.Uint64
	attachFailures atomic.Uint64
}

// New wires a monitor. The tracker's resize hint is taken over to trigger
// an immediate tick.
func New(tracker *surface.Tracker, locator surface.Locator, lister Lister, pages anchor.PageSource,
	resolver *anchor.Resolver, sess *session.State, renderer *render.Renderer, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = directory.DefaultTimeout
	}
	if opts.ListEvery < 1 {
		opts.ListEvery = 1
	}
	if opts.AttachPolicy == nil {
		opts.AttachPolicy = backoff.NewConstantBackOff(opts.Interval)
	}
	if renderer == nil {
		renderer = render.New(false)
	}
	if sess == nil {
		sess = session.New()
	}
	m := &Monitor{
		tracker:  tracker,
		locator:  locator,
		lister:   lister,
		pages:    pages,
		resolver: resolver,
		session:  sess,
		renderer: renderer,
		opts:     opts,
		sem:      semaphore.NewWeighted(1),
		kick:     make(chan struct{}, 1),
		state:    StateDetached,
	}
	tracker.OnResize(func() {
		select {
		case m.kick <- struct{}{}:
		default:
		}
	})
	return m
}

// OnState registers a callback for state transitions.
func (m *Monitor) OnState(fn func(State)) {
	m.mu.Lock()
	m.onState = fn
	m.mu.Unlock()
}

// OnFrame registers a callback invoked after every render, while the paint
// lock is held.
func (m *Monitor) OnFrame(fn func(render.Frame)) {
	m.mu.Lock()
	m.onFrame = fn
	m.mu.Unlock()
}

// Session returns the session state the monitor renders from.
func (m *Monitor) Session() *session.State { return m.session }

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Running reports whether the loop goroutine is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stats returns a snapshot of the loop counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Ticks:          m.ticks.Load(),
		Skipped:        m.skipped.Load(),
		Renders:        m.renders.Load(),
		FetchFailures:  m.fetchFailures.Load(),
		AttachFailures: m.attachFailures.Load(),
	}
}

// Start launches the loop. The first tick runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.mu.Unlock()

	m.paintMu.Lock()
	m.canvas = nil
	m.nextAttach = 0
	m.attachErr = false
	m.opts.AttachPolicy.Reset()
	m.paintMu.Unlock()
	m.tickN.Store(0)

	m.active.Store(true)
	m.setState(StateIdle)
	log.Printf("Monitor: started (interval %v)", m.opts.Interval)

	m.wg.Add(1)
	go m.loop(ctx)
	return nil
}

// Stop halts the loop and removes the overlay. When it returns no further
// resync or render happens. It is safe to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	m.active.Store(false)
	cancel()

	// Wait out any paint in progress.
	m.paintMu.Lock()
	m.tracker.Detach()
	m.canvas = nil
	m.paintMu.Unlock()

	m.wg.Wait()
	m.setState(StateDetached)
	log.Printf("Monitor: stopped")
}

// RunOnce performs a single synchronous tick without starting the loop. It
// is used by one-shot tools; attach failures are returned rather than
// retried.
func (m *Monitor) RunOnce(ctx context.Context) (render.Frame, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return render.Frame{}, ErrRunning
	}
	m.mu.Unlock()

	m.active.Store(true)
	defer m.active.Store(false)
	return m.step(ctx, m.tickN.Add(1)-1, true)
}

// Close detaches an overlay left by RunOnce.
func (m *Monitor) Close() {
	m.Stop()
	m.paintMu.Lock()
	m.tracker.Detach()
	m.canvas = nil
	m.paintMu.Unlock()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		case <-m.kick:
			m.tick(ctx)
		}
	}
}

// tick starts a tick unless one is still running; busy ticks are dropped,
// never queued.
func (m *Monitor) tick(ctx context.Context) {
	if !m.sem.TryAcquire(1) {
		m.skipped.Add(1)
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.sem.Release(1)
		if _, err := m.step(ctx, m.tickN.Add(1)-1, false); errors.Is(err, errGaveUp) {
			m.giveUp()
		}
	}()
}

func (m *Monitor) step(ctx context.Context, n uint64, strict bool) (render.Frame, error) {
	m.ticks.Add(1)
	if n%uint64(m.opts.ListEvery) == 0 {
		m.refreshList(ctx)
	}
	rects := m.currentRects()

	m.paintMu.Lock()
	defer m.paintMu.Unlock()
	if !m.active.Load() || ctx.Err() != nil {
		return render.Frame{}, context.Canceled
	}

	if err := m.ensureAttached(n, strict); err != nil {
		return render.Frame{}, err
	}

	g, ok := m.tracker.Resync()
	if !ok {
		log.Printf("Monitor: surface lost, reattaching")
		m.tracker.Detach()
		m.canvas = nil
		m.nextAttach = n + 1
		m.setState(StateIdle)
		return render.Frame{}, surface.ErrSurfaceNotFound
	}

	var page anchor.PageState
	if m.pages != nil {
		page = m.pages.PageState()
	}
	a, _ := m.resolver.Resolve(page, m.session)
	frame := m.renderer.Render(m.canvas, rects, a, g, m.session.Preview())
	m.renders.Add(1)

	m.mu.Lock()
	onFrame := m.onFrame
	m.mu.Unlock()
	if onFrame != nil {
		onFrame(frame)
	}
	return frame, nil
}

func (m *Monitor) refreshList(ctx context.Context) {
	fctx, cancel := context.WithTimeout(ctx, m.opts.FetchTimeout)
	defer cancel()
	list, err := m.lister.List(fctx)

	m.listMu.Lock()
	defer m.listMu.Unlock()
	if err != nil {
		m.fetchFailures.Add(1)
		if !m.fetchErr {
			log.Printf("Monitor: artwork list unavailable, keeping %d cached: %v", len(m.rects), err)
		}
		m.fetchErr = true
		if list != nil {
			m.rects = directory.Rects(list)
		}
		return
	}
	if m.fetchErr {
		log.Printf("Monitor: artwork list recovered")
	}
	m.fetchErr = false
	m.rects = directory.Rects(list)
}

func (m *Monitor) currentRects() []viewport.WorldRect {
	m.listMu.Lock()
	defer m.listMu.Unlock()
	return m.rects
}

// ensureAttached attaches when no overlay exists and the retry policy
// allows an attempt at tick n. Called with paintMu held.
func (m *Monitor) ensureAttached(n uint64, strict bool) error {
	if m.canvas != nil {
		return nil
	}
	if !strict && n < m.nextAttach {
		return surface.ErrSurfaceNotFound
	}

	err := m.attach()
	if err == nil {
		if m.attachErr {
			log.Printf("Monitor: surface found after %d failed attempts", m.attachFailures.Load())
		}
		m.attachErr = false
		m.opts.AttachPolicy.Reset()
		m.setState(StateTracking)
		return nil
	}

	m.attachFailures.Add(1)
	if strict {
		return err
	}
	if !m.attachErr {
		log.Printf("Monitor: attach failed, retrying: %v", err)
	}
	m.attachErr = true

	d := m.opts.AttachPolicy.NextBackOff()
	if d == backoff.Stop {
		log.Printf("Monitor: giving up after %d failed attaches", m.attachFailures.Load())
		return fmt.Errorf("%w: %w", errGaveUp, err)
	}
	wait := uint64((d + m.opts.Interval - 1) / m.opts.Interval)
	m.nextAttach = n + max(wait, 1)
	return err
}

func (m *Monitor) attach() error {
	host, err := m.locator.Locate()
	if err != nil {
		return fmt.Errorf("locate surface: %w", err)
	}
	h, err := m.tracker.Attach(host)
	if err != nil {
		return err
	}
	c, ok := h.Layer.(render.Canvas)
	if !ok {
		m.tracker.Detach()
		return errNotCanvas
	}
	m.canvas = c
	return nil
}

// giveUp ends the loop after the attach policy is exhausted. It does the
// bookkeeping of Stop without waiting on the loop, which is still running
// the calling tick, so Start works again afterwards.
func (m *Monitor) giveUp() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.mu.Unlock()

	m.active.Store(false)
	cancel()

	m.paintMu.Lock()
	m.tracker.Detach()
	m.canvas = nil
	m.paintMu.Unlock()

	m.setState(StateDetached)

	// Cleared last so a Start cannot interleave with the teardown.
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	log.Printf("Monitor: stopped after attach failures")
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	fn := m.onState
	m.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
