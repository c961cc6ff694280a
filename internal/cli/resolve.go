package cli

import (
	"fmt"
	"image"
	_ "image/png"
	"os"
	"strings"

	"blue-scan/internal/anchor"
	"blue-scan/internal/directory"
	"blue-scan/internal/ocr"
	"blue-scan/internal/page"
	"blue-scan/internal/session"
	"blue-scan/internal/viewport"
	"blue-scan/pkg/geometry"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

type gotoResult struct {
	ID       directory.ID `json:"id"`
	Location string       `json:"location"`
	Coords   string       `json:"coords"`
	Copied   bool         `json:"copied"`
}

func (r gotoResult) String() string {
	s := r.Location
	if r.Copied {
		s += "\nCopied " + r.Coords
	}
	return s
}

// NewGotoCommand creates the goto command.
func NewGotoCommand(rootOpts *RootOptions) *cobra.Command {
	var location string
	var copyCoords bool
	cmd := &cobra.Command{
		Use:   "goto <id>",
		Short: "Print the view location of an artwork's top-left corner",
		Long: `Rewrite the coordinate parameters of --location so the view opens at
the artwork's top-left corner. With --copy the "(x,y)" pair is also placed on
the clipboard.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			c, cfg, err := rootOpts.client(cmd.Context())
			if err != nil {
				return err
			}
			list, err := c.List(cmd.Context())
			if err != nil {
				return f.Fail("list failed", err)
			}
			id := directory.ID(args[0])
			a, ok := directory.Find(list, id)
			if !ok {
				return f.Fail("goto", badInput("artwork %s not listed", id))
			}
			r := anchor.NewResolver(cfg.LocationXParam, cfg.LocationYParam)
			url, err := r.LocationFor(location, a.X, a.Y)
			if err != nil {
				return f.Fail("goto", fmt.Errorf("%w: %v", errBadInput, err))
			}
			res := gotoResult{ID: id, Location: url, Coords: fmt.Sprintf("(%g,%g)", a.X, a.Y)}
			if copyCoords {
				if err := clipboard.WriteAll(res.Coords); err != nil {
					f.VerboseLog("Clipboard unavailable: %v", err)
				} else {
					res.Copied = true
				}
			}
			return f.Success(res)
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "current view location URL")
	cmd.Flags().BoolVar(&copyCoords, "copy", false, "copy (x,y) to the clipboard")
	return cmd
}

type resolveResult struct {
	Anchor    viewport.Anchor `json:"anchor"`
	Source    string          `json:"source"`
	Fragments []string        `json:"fragments,omitempty"`
	Location  string          `json:"location,omitempty"`
}

func (r resolveResult) String() string {
	return fmt.Sprintf("anchor=%s source=%s", r.Anchor, r.Source)
}

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	Page       string
	Fragments  []string
	Location   string
	Pin        string
	Screenshot string
	Region     string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the view anchor from page state",
		Long: `Apply the anchor strategies in order: a coordinate readout in the page
text, a pinned anchor, then the location's coordinate parameters.

Page text comes from --fragment, the readout regions of an HTML snapshot
(--page) and OCR of a screenshot of the readout (--screenshot).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Page, "page", "", "HTML snapshot of the page")
	cmd.Flags().StringArrayVar(&opts.Fragments, "fragment", nil, "readout text fragment (repeatable)")
	cmd.Flags().StringVar(&opts.Location, "location", "", "view location URL")
	cmd.Flags().StringVar(&opts.Pin, "pin", "", "pinned anchor x,y")
	cmd.Flags().StringVar(&opts.Screenshot, "screenshot", "", "PNG screenshot of the readout to OCR")
	cmd.Flags().StringVar(&opts.Region, "region", "", "screenshot region x,y,w,h holding the readout")
	return cmd
}

func runResolve(rootOpts *RootOptions, opts *ResolveOptions, cmd *cobra.Command) error {
	f := rootOpts.formatter(cmd)
	cfg, err := rootOpts.config()
	if err != nil {
		return err
	}

	state := anchor.PageState{Fragments: append([]string(nil), opts.Fragments...), Location: opts.Location}
	if opts.Page != "" {
		snap, err := page.ExtractFile(opts.Page)
		if err != nil {
			return f.Fail("read page", fmt.Errorf("%w: %v", errBadInput, err))
		}
		f.VerboseLog("Page %s: %d readout regions, %d images", opts.Page, len(snap.Fragments), len(snap.Images))
		state.Fragments = append(state.Fragments, snap.Fragments...)
		if state.Location == "" {
			state.Location = snap.Location
		}
	}
	if opts.Screenshot != "" {
		lines, err := ocrScreenshot(opts.Screenshot, opts.Region)
		if err != nil {
			return f.Fail("ocr", err)
		}
		f.VerboseLog("OCR: %s", strings.Join(lines, " | "))
		state.Fragments = append(state.Fragments, lines...)
	}

	sess := session.New()
	if opts.Pin != "" {
		x, y, err := parsePoint(opts.Pin)
		if err != nil {
			return f.Fail("--pin", err)
		}
		sess.Pin(viewport.At(x, y))
	}

	a, src := anchor.NewResolver(cfg.LocationXParam, cfg.LocationYParam).Resolve(state, sess)
	res := resolveResult{Anchor: a, Source: src.String(), Fragments: state.Fragments, Location: state.Location}
	if err := f.Success(res); err != nil {
		return err
	}
	if !a.Known {
		return NewExitError(ExitFailure, "anchor unknown")
	}
	return nil
}

func ocrScreenshot(path, region string) ([]string, error) {
	var bounds *geometry.RectInt
	if region != "" {
		v, err := parseInts(region, 4)
		if err != nil {
			return nil, err
		}
		bounds = &geometry.RectInt{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadInput, err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", errBadInput, path, err)
	}

	engine, err := ocr.NewEngine()
	if err != nil {
		return nil, err
	}
	defer engine.Close()
	if bounds != nil {
		return engine.RegionFragments(img, *bounds)
	}
	return engine.Fragments(img)
}
