// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"blue-scan/internal/anchor"
	"blue-scan/internal/app"
	bsimage "blue-scan/internal/image"
	"blue-scan/internal/monitor"
	"blue-scan/internal/surface"
	"blue-scan/internal/version"
	"blue-scan/ui/canvas"
	"blue-scan/ui/dialogs"
	"blue-scan/ui/panels"
	"blue-scan/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const (
	appTitle = "Blue Scan"

	// defaultLocation is used when no page location is known, so pans and
	// "Go to" still have coordinate parameters to rewrite.
	defaultLocation = "bluescan://map"

	requestTimeout = 15 * time.Second
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	prefs *prefs.Prefs

	mapCanvas     *canvas.MapCanvas
	overlayView   *canvas.OverlayView
	artworksPanel *panels.ArtworksPanel
	statusBar     *widget.Label
	locationEntry *widget.Entry

	monitorBtn  *widget.Button
	contoursBtn *widget.Button
	monitoring  bool

	// Menu items that need state tracking
	contoursItem *fyne.MenuItem

	dirty bool
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		prefs:  p,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.setupMonitor()
	mw.restore()

	win.Resize(fyne.NewSize(1280, 800))
	win.SetOnClosed(func() {
		state.StopOverlay()
		if m := state.Monitor(); m != nil {
			m.Close()
		}
		mw.SavePreferences()
	})
	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.mapCanvas = canvas.NewMapCanvas()
	mw.overlayView = canvas.NewOverlayView()

	mw.artworksPanel = panels.NewArtworksPanel(mw.state)
	mw.artworksPanel.SetWindow(mw.Window)

	mw.statusBar = widget.NewLabel("Ready")
	mw.locationEntry = widget.NewEntry()
	mw.locationEntry.SetPlaceHolder("Location, e.g. https://example.test/?x=0&y=0")
	mw.locationEntry.OnSubmitted = func(s string) {
		mw.state.SetLocation(s)
	}

	toolbar := mw.createToolbar()

	// The overlay sits above the map and passes input through.
	view := container.NewStack(mw.mapCanvas, mw.overlayView.Object())

	canvasArea := container.NewBorder(
		container.NewVBox(toolbar, mw.locationEntry), // top
		mw.mapCanvas.Readout(),                       // bottom
		nil,                                          // left
		nil,                                          // right
		view,                                         // center
	)

	split := container.NewHSplit(mw.artworksPanel.Container(), canvasArea)
	split.SetOffset(0.3)

	content := container.NewBorder(
		nil,                               // top
		container.NewPadded(mw.statusBar), // bottom
		nil,                               // left
		nil,                               // right
		split,                             // center
	)
	mw.SetContent(content)

	mw.mapCanvas.OnViewChange(mw.onViewChange)
	mw.mapCanvas.OnZoomChange(func(zoom float64) {
		mw.prefs.SetFloat(prefs.KeyZoom, zoom)
		mw.dirty = true
	})
}

// createToolbar creates the backend, overlay and zoom controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	pingBtn := widget.NewButton("Ping", mw.onPing)
	uploadBtn := widget.NewButton("Upload", mw.onUpload)
	listBtn := widget.NewButton("List", mw.artworksPanel.Refresh)
	mw.monitorBtn = widget.NewButton("Start", mw.onToggleMonitor)
	mw.contoursBtn = widget.NewButton("Contours", mw.onToggleContours)

	zoomOutBtn := widget.NewButton("-", mw.mapCanvas.ZoomOut)
	zoomInBtn := widget.NewButton("+", mw.mapCanvas.ZoomIn)
	actualBtn := widget.NewButton("1:1", func() { mw.mapCanvas.SetZoom(1.0) })

	return container.NewHBox(
		pingBtn,
		uploadBtn,
		listBtn,
		mw.monitorBtn,
		mw.contoursBtn,
		widget.NewSeparator(),
		widget.NewLabel("Zoom:"),
		zoomOutBtn,
		zoomInBtn,
		actualBtn,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Map Image...", mw.onOpenMap),
		fyne.NewMenuItem("Backend...", mw.onBackend),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.mapCanvas.ZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.mapCanvas.ZoomOut),
		fyne.NewMenuItem("Actual Size", func() { mw.mapCanvas.SetZoom(1.0) }),
	)

	mw.contoursItem = fyne.NewMenuItem("Contours", mw.onToggleContours)
	overlayMenu := fyne.NewMenu("Overlay",
		mw.contoursItem,
		fyne.NewMenuItem("Upload Artwork...", mw.onUpload),
		fyne.NewMenuItem("Clear Pin", func() {
			mw.state.Session.ClearPin()
			mw.updateStatus("Pin cleared")
		}),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, overlayMenu, helpMenu))
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventStatus, func(data interface{}) {
		if text, ok := data.(string); ok {
			mw.updateStatus(text)
		}
	})

	mw.state.On(app.EventBackendChanged, func(data interface{}) {
		if url, ok := data.(string); ok {
			mw.SetTitle(appTitle + " - " + url)
			mw.prefs.SetString(prefs.KeyLastBackend, url)
			mw.dirty = true
		}
	})

	mw.state.On(app.EventLocationChanged, func(data interface{}) {
		location, _ := data.(string)
		if mw.locationEntry.Text != location {
			mw.locationEntry.SetText(location)
		}
		if a, ok := mw.state.Resolver().FromLocation(location); ok {
			mw.mapCanvas.SetAnchor(a.X, a.Y)
		}
		mw.prefs.SetString(prefs.KeyLastLocation, location)
		mw.dirty = true
	})

	mw.state.On(app.EventOverlayState, func(data interface{}) {
		st, ok := data.(monitor.State)
		if !ok {
			return
		}
		running := st != monitor.StateDetached
		mw.contoursItem.Checked = running
		if running {
			mw.contoursBtn.SetText("Contours (" + st.String() + ")")
		} else {
			mw.contoursBtn.SetText("Contours")
		}
	})
}

// setupMonitor builds the overlay monitor over the map canvas. The page
// state is the canvas readout plus the current location.
func (mw *MainWindow) setupMonitor() {
	tracker := surface.NewTracker(mw.overlayView.Factory())
	locator := surface.LocatorFunc(func() (surface.Host, error) {
		return mw.mapCanvas, nil
	})
	pages := anchor.PageSourceFunc(func() anchor.PageState {
		ps := mw.mapCanvas.PageState()
		ps.Location = mw.state.CurrentLocation()
		return ps
	})
	mw.state.NewMonitor(tracker, locator, pages)
}

// restore applies remembered preferences.
func (mw *MainWindow) restore() {
	mw.mapCanvas.SetZoom(mw.prefs.FloatWithFallback(prefs.KeyZoom, 1.0))

	if path := mw.prefs.String(prefs.KeyLastMapImage); path != "" {
		if err := mw.loadMap(path); err != nil {
			log.Printf("MainWindow: restore map %s: %v", path, err)
		}
	}

	location := mw.prefs.String(prefs.KeyLastLocation)
	if location == "" {
		location = mw.locationFor(0, 0)
	}
	mw.state.SetLocation(location)
	mw.dirty = false
}

// Start runs startup work that needs the network: backend discovery, the
// first listing and, if it was on last time, the overlay.
func (mw *MainWindow) Start(ctx context.Context) {
	go func() {
		url, err := mw.state.ResolveBackend(ctx, mw.prefs.String(prefs.KeyLastBackend))
		if err != nil {
			mw.updateStatus("No backend answered; using " + url)
		} else {
			mw.updateStatus("Backend: " + url)
		}
		mw.artworksPanel.Refresh()
	}()

	if mw.prefs.Bool(prefs.KeyContours, false) {
		if err := mw.state.StartOverlay(ctx); err != nil {
			log.Printf("MainWindow: start overlay: %v", err)
		}
	}
}

// SavePreferencesIfChanged writes preferences when something changed since
// the last save.
func (mw *MainWindow) SavePreferencesIfChanged() {
	if mw.dirty {
		mw.SavePreferences()
	}
}

// SavePreferences writes preferences to disk.
func (mw *MainWindow) SavePreferences() {
	if err := mw.prefs.Save(); err != nil {
		log.Printf("MainWindow: save preferences: %v", err)
		return
	}
	mw.dirty = false
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// onViewChange mirrors user pans and zooms into the location.
func (mw *MainWindow) onViewChange(x, y float64) {
	mw.state.SetLocation(mw.locationFor(x, y))
}

func (mw *MainWindow) locationFor(x, y float64) string {
	base := mw.state.CurrentLocation()
	if base == "" {
		base = defaultLocation
	}
	url, err := mw.state.Resolver().LocationFor(base, x, y)
	if err != nil {
		url, _ = mw.state.Resolver().LocationFor(defaultLocation, x, y)
	}
	return url
}

func (mw *MainWindow) loadMap(path string) error {
	layer, err := bsimage.Load(path)
	if err != nil {
		return err
	}
	mw.mapCanvas.SetLayers(layer)
	mw.prefs.SetString(prefs.KeyLastMapImage, path)
	mw.dirty = true
	mw.updateStatus(fmt.Sprintf("Map %s at (%d,%d), %dx%d",
		filepath.Base(path), layer.OriginX, layer.OriginY, layer.Width(), layer.Height()))
	return nil
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDirectory)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// Toolbar and menu action handlers

func (mw *MainWindow) onPing() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_ = mw.state.Ping(ctx)
	}()
}

func (mw *MainWindow) onUpload() {
	dialogs.NewUploadDialog(mw.state, mw.mapCanvas, mw.Window, nil).Show()
}

func (mw *MainWindow) onToggleMonitor() {
	start := !mw.monitoring
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		var err error
		if start {
			err = mw.state.StartBackendMonitor(ctx)
		} else {
			err = mw.state.StopBackendMonitor(ctx)
		}
		if err != nil {
			return
		}
		mw.monitoring = start
		if start {
			mw.monitorBtn.SetText("Stop")
		} else {
			mw.monitorBtn.SetText("Start")
		}
	}()
}

func (mw *MainWindow) onToggleContours() {
	running, err := mw.state.ToggleOverlay(context.Background())
	if err != nil {
		log.Printf("MainWindow: toggle overlay: %v", err)
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.prefs.SetBool(prefs.KeyContours, running)
	mw.dirty = true
	if running {
		mw.updateStatus("Contours on")
	} else {
		mw.updateStatus("Contours off")
	}
}

func (mw *MainWindow) onOpenMap() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()
		mw.prefs.SetString(prefs.KeyLastDirectory, filepath.Dir(path))
		if !bsimage.IsSupportedFormat(path) {
			dialog.ShowError(fmt.Errorf("unsupported image: want %s", bsimage.FileFilter()), mw.Window)
			return
		}
		if err := mw.loadMap(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(bsimage.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onBackend() {
	entry := widget.NewEntry()
	entry.SetText(mw.state.BackendURL())
	dialog.ShowForm("Backend", "Use", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("URL", entry)},
		func(ok bool) {
			if !ok || entry.Text == "" {
				return
			}
			mw.state.SetBackend(entry.Text)
			mw.artworksPanel.Refresh()
		},
		mw.Window)
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s %s\n\n"+
			"Draws backend artwork outlines over the map view.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.String(), version.BuildTime, version.GitCommit),
		mw.Window)
}
