// Package cli implements the bluescan command tree.
package cli

import (
	"context"
	"fmt"
	"log"

	"blue-scan/internal/config"
	"blue-scan/internal/directory"
	"blue-scan/internal/version"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Backend string // overrides BLUESCAN_BACKEND_URL
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the bluescan CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "bluescan",
		Short:   "bluescan - artwork outlines over a pixel canvas",
		Version: version.String(),
		Long: `Manage artworks on a bluescan backend and project their outlines onto
a host surface described by a scene file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "backend base URL (default: $BLUESCAN_BACKEND_URL, then discovery)")

	cmd.AddCommand(NewPingCommand(opts))
	cmd.AddCommand(NewDiscoverCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewModeCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewGroundCommand(opts))
	cmd.AddCommand(NewTemplateCommand(opts))
	cmd.AddCommand(NewMonitorCommand(opts))
	cmd.AddCommand(NewGotoCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// config loads the environment configuration with flag overrides applied.
func (o *RootOptions) config() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if o.Backend != "" {
		cfg.BackendURL = o.Backend
	}
	return cfg, nil
}

// client returns a backend client. Without a configured backend the local
// defaults are probed; when none answers the first one is used anyway.
func (o *RootOptions) client(ctx context.Context) (*directory.Client, config.Config, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, cfg, err
	}
	backend := directory.Normalize(cfg.BackendURL)
	if backend == "" {
		backend, err = directory.Discover(ctx, nil, directory.Candidates(), cfg.HealthTimeout)
		if err != nil && o.Verbose {
			log.Printf("CLI: %v, trying %s", err, backend)
		}
	}
	return directory.NewClient(backend, nil).WithTimeout(cfg.FetchTimeout), cfg, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
