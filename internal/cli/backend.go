package cli

import (
	"fmt"
	"strconv"
	"strings"

	"blue-scan/internal/directory"
	"blue-scan/internal/template"

	"github.com/spf13/cobra"
)

type pingResult struct {
	Backend string `json:"backend"`
	OK      bool   `json:"ok"`
}

func (r pingResult) String() string {
	return fmt.Sprintf("Ping OK (%s)", r.Backend)
}

// NewPingCommand creates the ping command.
func NewPingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ping",
		Short:         "Check backend health",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			c, _, err := rootOpts.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Health(cmd.Context()); err != nil {
				return f.Fail("ping failed", err)
			}
			return f.Success(pingResult{Backend: c.BaseURL(), OK: true})
		},
	}
}

type discoverResult struct {
	Backend   string   `json:"backend"`
	Reachable bool     `json:"reachable"`
	Tried     []string `json:"tried"`
}

func (r discoverResult) String() string {
	if !r.Reachable {
		return fmt.Sprintf("No backend answered (tried %s), falling back to %s", strings.Join(r.Tried, ", "), r.Backend)
	}
	return r.Backend
}

// NewDiscoverCommand creates the discover command.
func NewDiscoverCommand(rootOpts *RootOptions) *cobra.Command {
	var remembered string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find a reachable backend",
		Long: `Probe /healthz on the configured backend, the remembered URL and the
local defaults, in that order, and print the first that answers.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			tried := directory.Candidates(cfg.BackendURL, remembered)
			url, err := directory.Discover(cmd.Context(), nil, tried, cfg.HealthTimeout)
			if err := f.Success(discoverResult{Backend: url, Reachable: err == nil, Tried: tried}); err != nil {
				return err
			}
			if err != nil {
				return WrapExitError(ExitFailure, "discover", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&remembered, "remembered", "", "previously used backend URL")
	return cmd
}

type artworkList []directory.Artwork

func (l artworkList) String() string {
	if len(l) == 0 {
		return "No artworks"
	}
	var b strings.Builder
	for i, a := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s\t%s\t(%g,%g)\t%gx%g\t%s", a.ID, a.Name, a.X, a.Y, a.W, a.H, a.Mode)
	}
	return b.String()
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List artworks in backend order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			c, _, err := rootOpts.client(cmd.Context())
			if err != nil {
				return err
			}
			list, err := c.List(cmd.Context())
			if err != nil {
				return f.Fail("list failed", err)
			}
			return f.Success(artworkList(list))
		},
	}
}

type artworkResult directory.Artwork

func (a artworkResult) String() string {
	return fmt.Sprintf("Created %s %q at (%g,%g), %gx%g", a.ID, a.Name, a.X, a.Y, a.W, a.H)
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	Name    string
	TL      string
	Image   string
	Rect    string
	Corners string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an artwork",
		Long: `Create an artwork from a template image placed at its top-left corner
(--tl and --image), from an explicit rectangle (--rect x,y,w,h), or from four
corner points (--corners x,y;x,y;x,y;x,y).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "artwork name")
	cmd.Flags().StringVar(&opts.TL, "tl", "", "top-left world coordinate x,y")
	cmd.Flags().StringVar(&opts.Image, "image", "", "template image (PNG or WEBP)")
	cmd.Flags().StringVar(&opts.Rect, "rect", "", "rectangle x,y,w,h")
	cmd.Flags().StringVar(&opts.Corners, "corners", "", "corner points x,y;x,y;x,y;x,y")
	cmd.MarkFlagsMutuallyExclusive("tl", "rect", "corners")
	return cmd
}

func runCreate(rootOpts *RootOptions, opts *CreateOptions, cmd *cobra.Command) error {
	f := rootOpts.formatter(cmd)
	ctx := cmd.Context()

	var send func(c *directory.Client) (directory.Artwork, error)
	switch {
	case opts.TL != "":
		tl, err := parseInts(opts.TL, 2)
		if err != nil {
			return f.Fail("--tl", err)
		}
		if opts.Image == "" {
			return f.Fail("create", badInput("--image is required with --tl"))
		}
		dataURL, err := template.ReadFile(opts.Image)
		if err != nil {
			return f.Fail("read template", fmt.Errorf("%w: %v", errBadInput, err))
		}
		f.VerboseLog("Template %s, %d bytes as data URL", opts.Image, len(dataURL))
		send = func(c *directory.Client) (directory.Artwork, error) {
			return c.PlaceTL(ctx, directory.PlaceRequest{Name: opts.Name, TLX: tl[0], TLY: tl[1], DataURL: dataURL})
		}
	case opts.Rect != "":
		r, err := parseInts(opts.Rect, 4)
		if err != nil {
			return f.Fail("--rect", err)
		}
		send = func(c *directory.Client) (directory.Artwork, error) {
			return c.Create(ctx, directory.CreateRequest{Name: opts.Name, X: r[0], Y: r[1], W: r[2], H: r[3]})
		}
	case opts.Corners != "":
		var req directory.CornersRequest
		req.Name = opts.Name
		points := strings.Split(opts.Corners, ";")
		if len(points) != 4 {
			return f.Fail("--corners", badInput("want 4 points, got %d", len(points)))
		}
		for i, p := range points {
			xy, err := parseInts(p, 2)
			if err != nil {
				return f.Fail("--corners", err)
			}
			req.Corners[i] = [2]int{xy[0], xy[1]}
		}
		send = func(c *directory.Client) (directory.Artwork, error) {
			return c.CreateFromCorners(ctx, req)
		}
	default:
		return f.Fail("create", badInput("one of --tl, --rect or --corners is required"))
	}

	c, _, err := rootOpts.client(ctx)
	if err != nil {
		return err
	}
	a, err := send(c)
	if err != nil {
		return f.Fail("create failed", err)
	}
	return f.Success(artworkResult(a))
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete an artwork",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			c, _, err := rootOpts.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), directory.ID(args[0])); err != nil {
				return f.Fail("delete failed", err)
			}
			return f.Success(statusResult{Message: "Deleted " + args[0]})
		},
	}
}

type statusResult struct {
	Message string           `json:"message"`
	Status  directory.Status `json:"status"`
}

func (r statusResult) String() string { return r.Message }

// NewModeCommand creates the mode command.
func NewModeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "mode <id> <build|protect>",
		Short:         "Switch an artwork's mode",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			mode, err := directory.ParseMode(args[1])
			if err != nil {
				return f.Fail("mode", fmt.Errorf("%w: %v", errBadInput, err))
			}
			c, _, err := rootOpts.client(cmd.Context())
			if err != nil {
				return err
			}
			st, err := c.SetMode(cmd.Context(), directory.ID(args[0]), mode)
			if err != nil {
				return f.Fail("mode change failed", err)
			}
			return f.Success(statusResult{Message: "Mode=" + string(mode), Status: st})
		},
	}
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	return artworkActionCommand(rootOpts, "snapshot", "Capture an artwork's baseline", "Baseline OK",
		func(cmd *cobra.Command, c *directory.Client, id directory.ID) (directory.Status, error) {
			return c.Snapshot(cmd.Context(), id)
		})
}

// NewGroundCommand creates the ground command.
func NewGroundCommand(rootOpts *RootOptions) *cobra.Command {
	return artworkActionCommand(rootOpts, "ground", "Capture the ground under an artwork", "Ground snapshot OK",
		func(cmd *cobra.Command, c *directory.Client, id directory.ID) (directory.Status, error) {
			return c.GroundSnapshot(cmd.Context(), id)
		})
}

func artworkActionCommand(rootOpts *RootOptions, name, short, done string,
	action func(*cobra.Command, *directory.Client, directory.ID) (directory.Status, error)) *cobra.Command {
	return &cobra.Command{
		Use:           name + " <id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			c, _, err := rootOpts.client(cmd.Context())
			if err != nil {
				return err
			}
			st, err := action(cmd, c, directory.ID(args[0]))
			if err != nil {
				return f.Fail(name+" failed", err)
			}
			return f.Success(statusResult{Message: done, Status: st})
		},
	}
}

// NewTemplateCommand creates the template command.
func NewTemplateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "template <id> <image>",
		Short:         "Replace an artwork's template image",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			dataURL, err := template.ReadFile(args[1])
			if err != nil {
				return f.Fail("read template", fmt.Errorf("%w: %v", errBadInput, err))
			}
			c, _, err := rootOpts.client(cmd.Context())
			if err != nil {
				return err
			}
			st, err := c.SetTemplate(cmd.Context(), directory.ID(args[0]), dataURL)
			if err != nil {
				return f.Fail("template update failed", err)
			}
			return f.Success(statusResult{Message: "Template updated", Status: st})
		},
	}
}

// NewMonitorCommand creates the monitor command.
func NewMonitorCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "monitor <start|stop>",
		Short:         "Start or stop server-side monitoring",
		Args:          cobra.ExactArgs(1),
		ValidArgs:     []string{"start", "stop"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			var call func(*directory.Client) (directory.Status, error)
			switch args[0] {
			case "start":
				call = func(c *directory.Client) (directory.Status, error) { return c.MonitorStart(cmd.Context()) }
			case "stop":
				call = func(c *directory.Client) (directory.Status, error) { return c.MonitorStop(cmd.Context()) }
			default:
				return f.Fail("monitor", badInput("want start or stop, got %q", args[0]))
			}
			c, _, err := rootOpts.client(cmd.Context())
			if err != nil {
				return err
			}
			st, err := call(c)
			if err != nil {
				return f.Fail("monitor "+args[0]+" failed", err)
			}
			msg := "Stopped"
			if args[0] == "start" {
				msg = fmt.Sprintf("Monitoring (%s)", st.Status)
			}
			return f.Success(statusResult{Message: msg, Status: st})
		},
	}
}

// parseInts parses exactly n comma-separated integers.
func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, badInput("want %d comma-separated integers, got %q", n, s)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, badInput("%q is not an integer", p)
		}
		out[i] = v
	}
	return out, nil
}

// parsePoint parses "x,y" as floats.
func parsePoint(s string) (x, y float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, badInput("want x,y, got %q", s)
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return 0, 0, badInput("want x,y, got %q", s)
	}
	return x, y, nil
}
