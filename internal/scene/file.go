package scene

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"blue-scan/internal/anchor"
	"blue-scan/internal/surface"
	"blue-scan/internal/viewport"

	"github.com/fsnotify/fsnotify"
)

// File is a scene file kept current on disk. Hosts handed out by a File
// always read the latest loaded scene.
type File struct {
	path string

	mu       sync.RWMutex
	scene    *Scene
	modTime  time.Time
	hooks    map[int]func()
	nextHook int

	checkInterval time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
	watcher       *fsnotify.Watcher
}

// Open loads path. Call Watch to follow later edits.
func Open(path string) (*File, error) {
	f := &File{path: path, hooks: make(map[int]func()), checkInterval: time.Second}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the scene file path.
func (f *File) Path() string { return f.path }

// Scene returns the most recently loaded scene.
func (f *File) Scene() *Scene {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.scene
}

// Reload re-reads the file and notifies resize subscribers. A file that
// fails to parse leaves the previous scene in place.
func (f *File) Reload() error {
	s, err := Load(f.path)
	if err != nil {
		return err
	}
	var mod time.Time
	if info, err := os.Stat(f.path); err == nil {
		mod = info.ModTime()
	}

	f.mu.Lock()
	first := f.scene == nil
	f.scene = s
	f.modTime = mod
	hooks := make([]func(), 0, len(f.hooks))
	for _, h := range f.hooks {
		hooks = append(hooks, h)
	}
	f.mu.Unlock()

	if !first {
		for _, h := range hooks {
			h()
		}
	}
	return nil
}

// PageState implements anchor.PageSource.
func (f *File) PageState() anchor.PageState {
	return f.Scene().PageState()
}

// Host returns a host bound to the named surface.
func (f *File) Host(name string) *Host {
	return &Host{file: f, name: name}
}

// Locate implements surface.Locator: the surface with the largest pixel
// buffer wins.
func (f *File) Locate() (surface.Host, error) {
	s := f.Scene()
	hosts := make([]surface.Host, 0, len(s.Surfaces))
	for _, surf := range s.Surfaces {
		if !surf.Removed {
			hosts = append(hosts, f.Host(surf.Name))
		}
	}
	if len(hosts) == 0 {
		return nil, ErrNoSurfaces
	}
	return surface.Largest(hosts)
}

// Watch follows edits to the scene file with fsnotify, with a slow
// modification-time check as a backstop for filesystems that drop events.
func (f *File) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors often replace the file, so watch its directory.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return err
	}
	f.watcher = w
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	go f.watchLoop()
	return nil
}

// Close stops watching. It is safe to call without Watch.
func (f *File) Close() error {
	if f.watcher == nil {
		return nil
	}
	close(f.stopCh)
	err := f.watcher.Close()
	<-f.doneCh
	f.watcher = nil
	return err
}

func (f *File) watchLoop() {
	defer close(f.doneCh)
	ticker := time.NewTicker(f.checkInterval)
	defer ticker.Stop()

	name := filepath.Clean(f.path)
	for {
		select {
		case <-f.stopCh:
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f.reloadLogged()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Scene: watch error: %v", err)
		case <-ticker.C:
			if f.changedOnDisk() {
				f.reloadLogged()
			}
		}
	}
}

func (f *File) reloadLogged() {
	if err := f.Reload(); err != nil {
		log.Printf("Scene: reload failed: %v", err)
	}
}

func (f *File) changedOnDisk() bool {
	info, err := os.Stat(f.path)
	if err != nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return info.ModTime().After(f.modTime)
}

func (f *File) subscribe(fn func()) func() {
	f.mu.Lock()
	id := f.nextHook
	f.nextHook++
	f.hooks[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.hooks, id)
		f.mu.Unlock()
	}
}

// Host is a surface described by a scene file.
type Host struct {
	file *File
	name string
}

// Name returns the surface name.
func (h *Host) Name() string { return h.name }

// Geometry implements surface.Host. A surface missing from, or removed in,
// the current scene reports surface.ErrSurfaceNotFound.
func (h *Host) Geometry() (viewport.Geometry, error) {
	s, ok := h.file.Scene().Surface(h.name)
	if !ok {
		return viewport.Geometry{}, surface.ErrSurfaceNotFound
	}
	return s.Geometry()
}

// OnResize implements surface.ResizeNotifier. Any reload of the scene file
// counts as a possible resize.
func (h *Host) OnResize(fn func()) func() {
	return h.file.subscribe(fn)
}
