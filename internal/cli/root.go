// Package cli implements the ptsctl command tree.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nrfconnect/auto-pts/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Engine    string
	SimDB     string
	Workspace string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for ptsctl. Flag defaults come from
// the PTS_* environment.
func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ptsctl",
		Short: "Drive the Bluetooth Profile Tuning Suite",
		Long: `ptsctl controls a PTS engine: it inspects workspaces, updates PICS and
PIXIT values, runs test cases and serves the bridge over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Engine, "engine", cfg.Engine, "engine driver name")
	cmd.PersistentFlags().StringVar(&opts.SimDB, "sim-db", cfg.SimDB, "SQLite path for the sim driver")
	cmd.PersistentFlags().StringVarP(&opts.Workspace, "workspace", "w", cfg.Workspace, "workspace file (.pqw6)")

	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewPicsCommand(opts))
	cmd.AddCommand(NewPixitCommand(opts))
	cmd.AddCommand(NewBDAddrCommand(opts))
	cmd.AddCommand(NewEnginesCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReceiveCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// logger returns the diagnostic logger for a command: warnings only, or
// everything with --verbose.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// output returns the formatter for a command's results.
func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
