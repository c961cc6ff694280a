package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"blue-scan/internal/anchor"
	"blue-scan/internal/config"
	"blue-scan/internal/directory"
	"blue-scan/internal/monitor"
	"blue-scan/internal/overlay"
	"blue-scan/internal/render"
	"blue-scan/internal/scene"
	"blue-scan/internal/session"
	"blue-scan/internal/surface"
	"blue-scan/internal/viewport"

	"github.com/spf13/cobra"
)

// FrameReport describes one rendered overlay frame.
type FrameReport struct {
	Anchor     viewport.Anchor     `json:"anchor"`
	ScaleX     float64             `json:"scale_x"`
	ScaleY     float64             `json:"scale_y"`
	Suppressed bool                `json:"suppressed"`
	Reason     string              `json:"reason,omitempty"`
	Rects      []RectReport        `json:"rects"`
	Preview    *viewport.LocalRect `json:"preview,omitempty"`
	Label      string              `json:"label,omitempty"`
	Output     string              `json:"output,omitempty"`
}

// RectReport is one projected artwork outline.
type RectReport struct {
	Index int     `json:"index"`
	ID    string  `json:"id"`
	Hue   int     `json:"hue"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}

// NewFrameReport converts a rendered frame.
func NewFrameReport(f render.Frame, output string) FrameReport {
	r := FrameReport{
		Anchor:     f.Anchor,
		ScaleX:     f.ScaleX,
		ScaleY:     f.ScaleY,
		Suppressed: f.Suppressed,
		Reason:     f.Reason,
		Rects:      make([]RectReport, 0, len(f.Rects)),
		Preview:    f.Preview,
		Label:      f.Label,
		Output:     output,
	}
	for _, p := range f.Rects {
		r.Rects = append(r.Rects, RectReport{
			Index: p.Index, ID: p.ID, Hue: p.Hue,
			X: p.Local.X, Y: p.Local.Y, W: p.Local.W, H: p.Local.H,
		})
	}
	return r
}

func (r FrameReport) String() string {
	var b strings.Builder
	if r.Suppressed {
		fmt.Fprintf(&b, "suppressed: %s\n", r.Reason)
	} else {
		fmt.Fprintf(&b, "anchor %s scale %.3fx%.3f\n", r.Anchor, r.ScaleX, r.ScaleY)
		for _, rr := range r.Rects {
			fmt.Fprintf(&b, "  #%d %-8s hue=%-3d x=%g y=%g w=%g h=%g\n", rr.Index, rr.ID, rr.Hue, rr.X, rr.Y, rr.W, rr.H)
		}
		if r.Preview != nil {
			fmt.Fprintf(&b, "  preview x=%g y=%g w=%g h=%g\n", r.Preview.X, r.Preview.Y, r.Preview.W, r.Preview.H)
		}
	}
	if r.Output != "" {
		fmt.Fprintf(&b, "wrote %s\n", filepath.Base(r.Output))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// OverlayOptions holds the flags shared by render and watch.
type OverlayOptions struct {
	Scene    string
	Artworks string
	Out      string
	Pin      string
}

func (o *OverlayOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Scene, "scene", "", "scene file describing host surfaces and page state")
	cmd.Flags().StringVar(&o.Artworks, "artworks", "", "JSON artwork listing (default: fetch from the backend)")
	cmd.Flags().StringVar(&o.Out, "out", "", "write the overlay PNG here")
	cmd.Flags().StringVar(&o.Pin, "pin", "", "pinned anchor x,y")
	_ = cmd.MarkFlagRequired("scene")
}

// staticLister serves a fixed listing.
type staticLister []directory.Artwork

func (l staticLister) List(context.Context) ([]directory.Artwork, error) { return l, nil }

// overlayRig is a monitor wired to a scene file.
type overlayRig struct {
	file    *scene.File
	monitor *monitor.Monitor

	mu     sync.Mutex
	raster *overlay.Raster
}

func newOverlayRig(ctx context.Context, rootOpts *RootOptions, opts *OverlayOptions) (*overlayRig, error) {
	cfg, err := rootOpts.config()
	if err != nil {
		return nil, err
	}

	var lister monitor.Lister
	if opts.Artworks != "" {
		list, err := readArtworks(opts.Artworks)
		if err != nil {
			return nil, err
		}
		lister = staticLister(list)
	} else {
		c, _, err := rootOpts.client(ctx)
		if err != nil {
			return nil, err
		}
		lister = c
	}

	sess := session.New()
	if opts.Pin != "" {
		x, y, err := parsePoint(opts.Pin)
		if err != nil {
			return nil, err
		}
		sess.Pin(viewport.At(x, y))
	}

	file, err := scene.Open(opts.Scene)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadInput, err)
	}

	rig := &overlayRig{file: file}
	tracker := surface.NewTracker(overlay.Factory(func(r *overlay.Raster) {
		rig.mu.Lock()
		rig.raster = r
		rig.mu.Unlock()
	}))
	rig.monitor = monitor.New(tracker, file, directory.NewCache(lister), file,
		anchor.NewResolver(cfg.LocationXParam, cfg.LocationYParam), sess,
		render.New(cfg.Diagnostics), monitorOptions(cfg))
	return rig, nil
}

func monitorOptions(cfg config.Config) monitor.Options {
	return monitor.Options{
		Interval:     cfg.TickInterval,
		FetchTimeout: cfg.FetchTimeout,
		ListEvery:    cfg.ListEvery,
		AttachPolicy: cfg.AttachPolicy(),
	}
}

// writePNG writes the current overlay image atomically.
func (r *overlayRig) writePNG(path string) error {
	r.mu.Lock()
	raster := r.raster
	r.mu.Unlock()
	if raster == nil {
		return errors.New("no overlay layer")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".overlay-*.png")
	if err != nil {
		return fmt.Errorf("write overlay: %w", err)
	}
	if err := raster.WritePNG(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write overlay: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write overlay: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (r *overlayRig) close() {
	r.monitor.Close()
	r.file.Close()
}

func readArtworks(path string) ([]directory.Artwork, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadInput, err)
	}
	var list []directory.Artwork
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", errBadInput, path, err)
	}
	return list, nil
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OverlayOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one overlay frame over a scene",
		Long: `Run a single overlay tick against the largest surface of a scene file:
list artworks, resolve the anchor, project every rectangle and draw it.
The frame report lists each outline in overlay-local pixels.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			rig, err := newOverlayRig(cmd.Context(), rootOpts, opts)
			if err != nil {
				return f.Fail("render", err)
			}
			defer rig.close()

			frame, err := rig.monitor.RunOnce(cmd.Context())
			if err != nil {
				return f.Fail("render", err)
			}
			if opts.Out != "" {
				if err := rig.writePNG(opts.Out); err != nil {
					return f.Fail("render", err)
				}
			}
			return f.Success(NewFrameReport(frame, opts.Out))
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OverlayOptions{}
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep an overlay in sync with a scene file",
		Long: `Run the overlay loop against a scene file. Edits to the scene are picked
up as they are saved; the PNG given by --out is rewritten after every frame.
Runs until interrupted or --duration elapses.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			rig, err := newOverlayRig(ctx, rootOpts, opts)
			if err != nil {
				return f.Fail("watch", err)
			}
			defer rig.file.Close()
			if err := rig.file.Watch(); err != nil {
				return f.Fail("watch", err)
			}

			var frames int
			var last render.Frame
			var mu sync.Mutex
			rig.monitor.OnState(func(s monitor.State) {
				f.VerboseLog("Overlay %s", s)
			})
			rig.monitor.OnFrame(func(fr render.Frame) {
				mu.Lock()
				frames++
				last = fr
				mu.Unlock()
				if opts.Out != "" {
					if err := rig.writePNG(opts.Out); err != nil {
						f.VerboseLog("%v", err)
					}
				}
			})

			if err := rig.monitor.Start(ctx); err != nil {
				return f.Fail("watch", err)
			}
			<-ctx.Done()
			rig.monitor.Stop()

			mu.Lock()
			defer mu.Unlock()
			st := rig.monitor.Stats()
			return f.Success(watchResult{
				Frames:    frames,
				Ticks:     st.Ticks,
				Skipped:   st.Skipped,
				LastFrame: NewFrameReport(last, opts.Out),
			})
		},
	}
	opts.bind(cmd)
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (default: until interrupted)")
	return cmd
}

type watchResult struct {
	Frames    int         `json:"frames"`
	Ticks     uint64      `json:"ticks"`
	Skipped   uint64      `json:"skipped"`
	LastFrame FrameReport `json:"last_frame"`
}

func (r watchResult) String() string {
	return fmt.Sprintf("%d frames in %d ticks (%d skipped)\n%s", r.Frames, r.Ticks, r.Skipped, r.LastFrame)
}
