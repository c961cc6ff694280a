// Package dialogs provides application dialogs.
package dialogs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"blue-scan/internal/app"
	"blue-scan/internal/page"
	"blue-scan/internal/session"
	"blue-scan/internal/surface"
	"blue-scan/internal/template"
	"blue-scan/internal/viewport"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// PinTarget is the surface the top-left corner is picked on. Anchor is the
// world coordinate of the surface's first buffer pixel.
type PinTarget interface {
	session.ClickSource
	surface.Host
	Anchor() (x, y int)
}

var (
	errNoTL       = errors.New("enter the top-left corner as x,y")
	errNoTemplate = errors.New("choose a PNG/WEBP image or detect the overlay")
)

var tlPattern = regexp.MustCompile(`^\s*(-?\d+)\s*,\s*(-?\d+)\s*$`)

// UploadDialog creates an artwork from a template placed at a top-left
// world coordinate.
type UploadDialog struct {
	state  *app.State
	target PinTarget
	window fyne.Window
	dlg    dialog.Dialog

	nameEntry *widget.Entry
	tlEntry   *widget.Entry
	fileLabel *widget.Label
	status    *widget.Label

	filePath    string
	overlayData string

	onCreated func()
}

// NewUploadDialog creates the dialog. onCreated runs after a successful
// upload.
func NewUploadDialog(state *app.State, target PinTarget, window fyne.Window, onCreated func()) *UploadDialog {
	return &UploadDialog{
		state:     state,
		target:    target,
		window:    window,
		onCreated: onCreated,
	}
}

// Show displays the dialog.
func (d *UploadDialog) Show() {
	d.nameEntry = widget.NewEntry()
	d.nameEntry.SetPlaceHolder("Name")
	d.tlEntry = widget.NewEntry()
	d.tlEntry.SetPlaceHolder("TL x,y")
	d.fileLabel = widget.NewLabel("No image")
	d.status = widget.NewLabel("")
	d.status.Wrapping = fyne.TextWrapWord

	pinBtn := widget.NewButton("Pin TL", d.pin)
	fileBtn := widget.NewButton("Image...", d.pickFile)
	overlayBtn := widget.NewButton("Detect overlay", d.pickPage)
	createBtn := widget.NewButton("Create", d.create)
	createBtn.Importance = widget.HighImportance
	cancelBtn := widget.NewButton("Cancel", func() { d.dlg.Hide() })

	content := container.NewVBox(
		d.nameEntry,
		container.NewBorder(nil, nil, nil, pinBtn, d.tlEntry),
		container.NewBorder(nil, nil, nil, fileBtn, d.fileLabel),
		d.status,
		container.NewHBox(cancelBtn, overlayBtn, createBtn),
	)

	d.dlg = dialog.NewCustomWithoutButtons("Upload Artwork", content, d.window)
	d.dlg.Resize(fyne.NewSize(420, 0))
	d.dlg.Show()
}

// pin hides the dialog until the next click on the map fills the TL entry.
func (d *UploadDialog) pin() {
	d.dlg.Hide()
	d.state.Status("Click the top-left corner on the map...")
	d.state.Session.BeginPin(d.target, d.geometry, func(a viewport.Anchor) {
		d.state.Pin(a)
		if a.Known {
			ox, oy := d.target.Anchor()
			x, y := worldTL(a, ox, oy)
			d.tlEntry.SetText(fmt.Sprintf("%d,%d", x, y))
			d.state.Status("TL = (%d,%d)", x, y)
		}
		d.dlg.Show()
	})
}

func (d *UploadDialog) geometry() (viewport.Geometry, bool) {
	g, err := d.target.Geometry()
	return g, err == nil
}

func (d *UploadDialog) pickFile() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		d.filePath = reader.URI().Path()
		reader.Close()
		d.overlayData = ""
		d.fileLabel.SetText(d.filePath)
	}, d.window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".webp"}))
	fd.Show()
}

// pickPage detects the overlay image in a saved HTML page and uses it as
// the template.
func (d *UploadDialog) pickPage() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		snap, err := page.ExtractFile(path)
		if err == nil {
			d.overlayData, err = template.SniffDataURL(snap.Images)
		}
		if err != nil {
			d.status.SetText("Overlay not detected: " + err.Error())
			return
		}
		d.fileLabel.SetText("Detected overlay")
		d.status.SetText("Overlay detected (used as template).")
	}, d.window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".html", ".htm"}))
	fd.Show()
}

func (d *UploadDialog) create() {
	x, y, err := parseTL(d.tlEntry.Text)
	if err != nil {
		d.status.SetText(err.Error())
		return
	}
	dataURL, err := d.templateData()
	if err != nil {
		d.status.SetText(err.Error())
		return
	}
	name := strings.TrimSpace(d.nameEntry.Text)
	if name == "" {
		name = defaultName(time.Now())
	}

	d.status.SetText("Creating...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := d.state.CreateArtwork(ctx, name, x, y, dataURL); err != nil {
			d.status.SetText("Create failed: " + err.Error())
			return
		}
		d.dlg.Hide()
		if d.onCreated != nil {
			d.onCreated()
		}
	}()
}

func (d *UploadDialog) templateData() (string, error) {
	if d.overlayData != "" {
		return d.overlayData, nil
	}
	if d.filePath == "" {
		return "", errNoTemplate
	}
	return template.ReadFile(d.filePath)
}

// parseTL parses "x,y" into integer world coordinates.
func parseTL(s string) (x, y int, err error) {
	m := tlPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, errNoTL
	}
	x, _ = strconv.Atoi(m[1])
	y, _ = strconv.Atoi(m[2])
	return x, y, nil
}

// worldTL converts a pinned buffer pixel to a world coordinate given the
// world coordinate of the buffer's origin.
func worldTL(a viewport.Anchor, originX, originY int) (x, y int) {
	return originX + int(a.X), originY + int(a.Y)
}

func defaultName(now time.Time) string {
	return fmt.Sprintf("Art %d", now.UnixMilli())
}
