package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// HotReloader polls the running binary's modification time and reports
// when a rebuilt binary replaces it. OnTick callbacks run on every poll,
// which the desktop app uses to flush preferences.
type HotReloader struct {
	execPath string
	interval time.Duration

	mu          sync.Mutex
	baseline    time.Time
	onNewBinary func()
	onTick      func()
}

// NewHotReloader watches the current executable. It returns nil when the
// executable cannot be found.
func NewHotReloader(interval time.Duration) *HotReloader {
	execPath, err := os.Executable()
	if err != nil {
		return nil
	}
	return newHotReloader(execPath, interval)
}

func newHotReloader(path string, interval time.Duration) *HotReloader {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return &HotReloader{execPath: path, interval: interval, baseline: info.ModTime()}
}

// OnNewBinary sets the callback run, from the polling goroutine, when the
// binary changes. Polling stops after it fires; call ResetBaseline and Run
// again to keep watching.
func (h *HotReloader) OnNewBinary(fn func()) {
	h.mu.Lock()
	h.onNewBinary = fn
	h.mu.Unlock()
}

// OnTick sets a callback run on every poll.
func (h *HotReloader) OnTick(fn func()) {
	h.mu.Lock()
	h.onTick = fn
	h.mu.Unlock()
}

// Run polls until ctx is done or a new binary is seen.
func (h *HotReloader) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.Lock()
			tick, changed := h.onTick, h.onNewBinary
			h.mu.Unlock()
			if tick != nil {
				tick()
			}
			if h.Changed() {
				if changed != nil {
					changed()
				}
				return
			}
		}
	}
}

// Changed reports whether the binary is newer than the baseline.
func (h *HotReloader) Changed() bool {
	info, err := os.Stat(h.execPath)
	if err != nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return info.ModTime().After(h.baseline)
}

// ResetBaseline accepts the current binary, so a declined restart is not
// offered again.
func (h *HotReloader) ResetBaseline() {
	if info, err := os.Stat(h.execPath); err == nil {
		h.mu.Lock()
		h.baseline = info.ModTime()
		h.mu.Unlock()
	}
}

// ExecPath returns the watched executable.
func (h *HotReloader) ExecPath() string {
	return h.execPath
}

// Restart replaces the current process with the watched binary, keeping
// arguments and environment. It does not return on success.
func (h *HotReloader) Restart() error {
	return syscall.Exec(h.execPath, os.Args, os.Environ())
}
