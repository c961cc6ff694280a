// Package panels provides UI panels for the application.
package panels

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"blue-scan/internal/app"
	"blue-scan/internal/directory"
	"blue-scan/internal/template"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// actionTimeout bounds a single backend action started from the panel.
const actionTimeout = 15 * time.Second

// ArtworksPanel lists the backend's artworks as cards with per-artwork
// actions.
type ArtworksPanel struct {
	state     *app.State
	window    fyne.Window
	container fyne.CanvasObject

	cards   *fyne.Container
	summary *widget.Label
	refresh *widget.Button
	onGoto  func(url string)
}

// NewArtworksPanel creates the panel and subscribes it to listing changes.
func NewArtworksPanel(state *app.State) *ArtworksPanel {
	ap := &ArtworksPanel{state: state}

	ap.summary = widget.NewLabel("No artworks")
	ap.cards = container.NewVBox()
	ap.refresh = widget.NewButton("List", func() {
		ap.Refresh()
	})

	header := container.NewBorder(nil, nil, nil, ap.refresh, ap.summary)
	ap.container = container.NewBorder(header, nil, nil, nil, container.NewVScroll(ap.cards))

	state.On(app.EventArtworksChanged, func(data interface{}) {
		if list, ok := data.([]directory.Artwork); ok {
			ap.show(list)
		}
	})
	return ap
}

// Container returns the panel container.
func (ap *ArtworksPanel) Container() fyne.CanvasObject {
	return ap.container
}

// SetWindow sets the parent window for dialogs.
func (ap *ArtworksPanel) SetWindow(w fyne.Window) {
	ap.window = w
}

// OnGoto sets a callback run after "Go to" rewrites the location.
func (ap *ArtworksPanel) OnGoto(fn func(url string)) {
	ap.onGoto = fn
}

// Refresh re-lists artworks in the background.
func (ap *ArtworksPanel) Refresh() {
	ap.run("list", func(ctx context.Context) error {
		_, err := ap.state.RefreshArtworks(ctx)
		if err != nil {
			ap.state.Status("List failed: %v", err)
		}
		return err
	})
}

func (ap *ArtworksPanel) show(list []directory.Artwork) {
	ap.summary.SetText(listSummary(list))
	objects := make([]fyne.CanvasObject, 0, len(list))
	for _, a := range list {
		objects = append(objects, ap.card(a))
	}
	ap.cards.Objects = objects
	ap.cards.Refresh()
}

func (ap *ArtworksPanel) card(a directory.Artwork) fyne.CanvasObject {
	id := a.ID

	gotoBtn := widget.NewButton("Go to", func() {
		url, err := ap.state.Goto(id)
		if err != nil {
			ap.state.Status("Go to failed: %v", err)
			return
		}
		if ap.onGoto != nil {
			ap.onGoto(url)
		}
	})
	baselineBtn := widget.NewButton("Baseline", func() {
		ap.run("baseline", func(ctx context.Context) error { return ap.state.Snapshot(ctx, id) })
	})
	groundBtn := widget.NewButton("Ground", func() {
		ap.run("ground", func(ctx context.Context) error { return ap.state.Ground(ctx, id) })
	})
	templateBtn := widget.NewButton("Update template", func() {
		ap.pickTemplate(id)
	})

	modeSelect := widget.NewSelect([]string{string(directory.ModeBuild), string(directory.ModeProtect)}, nil)
	modeSelect.SetSelected(string(displayMode(a.Mode)))
	modeSelect.OnChanged = func(s string) {
		mode, err := directory.ParseMode(s)
		if err != nil || mode == displayMode(a.Mode) {
			return
		}
		ap.run("mode", func(ctx context.Context) error { return ap.state.SetMode(ctx, id, mode) })
	}

	deleteBtn := widget.NewButton("Delete", func() {
		ap.confirmDelete(a)
	})
	deleteBtn.Importance = widget.DangerImportance

	title := widget.NewLabelWithStyle(a.Name, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	meta := widget.NewLabel(artworkMeta(a))
	actions := container.NewHBox(gotoBtn, baselineBtn, groundBtn, templateBtn, modeSelect, deleteBtn)
	return widget.NewCard("", "", container.NewVBox(title, meta, actions))
}

func (ap *ArtworksPanel) confirmDelete(a directory.Artwork) {
	if ap.window == nil {
		return
	}
	dialog.ShowConfirm("Delete Artwork",
		fmt.Sprintf("Delete %q (id %s)?", a.Name, a.ID),
		func(confirmed bool) {
			if confirmed {
				ap.run("delete", func(ctx context.Context) error { return ap.state.DeleteArtwork(ctx, a.ID) })
			}
		},
		ap.window)
}

func (ap *ArtworksPanel) pickTemplate(id directory.ID) {
	if ap.window == nil {
		return
	}
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		dataURL, err := template.ReadFile(path)
		if err != nil {
			dialog.ShowError(err, ap.window)
			return
		}
		ap.run("template", func(ctx context.Context) error { return ap.state.UpdateTemplate(ctx, id, dataURL) })
	}, ap.window)
	fd.SetFilter(storage.NewExtensionFileFilter(templateExtensions))
	fd.Show()
}

// run performs a backend action off the UI goroutine.
func (ap *ArtworksPanel) run(name string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("Artworks: %s: %v", name, err)
		}
	}()
}

// templateExtensions are the upload formats the backend accepts.
var templateExtensions = []string{".png", ".webp"}

// displayMode shows artworks without a mode as build.
func displayMode(m directory.Mode) directory.Mode {
	if m == "" {
		return directory.ModeBuild
	}
	return m
}

// artworkMeta formats a card's detail line.
func artworkMeta(a directory.Artwork) string {
	parts := []string{fmt.Sprintf("(%g, %g, %g, %g)", a.X, a.Y, a.W, a.H)}
	if a.AddedAt != "" {
		parts = append(parts, a.AddedAt)
	}
	parts = append(parts, "mode="+string(displayMode(a.Mode)))
	return strings.Join(parts, " • ")
}

func listSummary(list []directory.Artwork) string {
	switch len(list) {
	case 0:
		return "No artworks"
	case 1:
		return "1 artwork"
	}
	return fmt.Sprintf("%d artworks", len(list))
}
