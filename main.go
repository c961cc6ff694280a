// Package main provides the entry point for the Blue Scan desktop app.
package main

import (
	"context"
	"log"
	"time"

	"blue-scan/internal/app"
	"blue-scan/internal/config"
	"blue-scan/internal/version"
	"blue-scan/ui/mainwindow"
	"blue-scan/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
)

const appID = "io.bluescan.desktop"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting Blue Scan %s", version.String())

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Config: %v; using defaults", err)
		cfg = config.Default()
	}

	fyneApp := fyneapp.NewWithID(appID)
	fyneApp.Settings().SetTheme(&app.BlueScanTheme{})

	appState := app.NewState(cfg)
	appPrefs := prefs.Load()

	win := mainwindow.New(fyneApp, appState, appPrefs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	win.Start(ctx)
	setupHotReload(ctx, win)

	win.ShowAndRun()
}

// setupHotReload offers a restart when the binary is rebuilt and flushes
// preferences on every poll.
func setupHotReload(ctx context.Context, win *mainwindow.MainWindow) {
	reloader := app.NewHotReloader(2 * time.Second)
	if reloader == nil {
		log.Println("Hot reload: unable to determine executable path")
		return
	}
	log.Printf("Hot reload: watching %s", reloader.ExecPath())

	reloader.OnTick(win.SavePreferencesIfChanged)
	reloader.OnNewBinary(func() {
		log.Println("Hot reload: newer binary detected")
		dialog.ShowConfirm("New Version Available",
			"The application binary has been updated.\nRestart now?",
			func(restart bool) {
				if !restart {
					reloader.ResetBaseline()
					go reloader.Run(ctx)
					return
				}
				win.SavePreferences()
				log.Println("Hot reload: restarting...")
				if err := reloader.Restart(); err != nil {
					log.Printf("Hot reload: restart failed: %v", err)
				}
			},
			win.Window)
	})

	go reloader.Run(ctx)
}
