package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nrfconnect/auto-pts/internal/api"
	"github.com/nrfconnect/auto-pts/internal/callback"
	"github.com/nrfconnect/auto-pts/internal/config"
	"github.com/nrfconnect/auto-pts/internal/runner"
	"github.com/nrfconnect/auto-pts/internal/testcase"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cfg := config.Load()
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bridge HTTP API",
		Long: `Connect to the engine and serve the HTTP API until interrupted.

Flags default to the PTS_* environment variables.

Example:
  ptsctl serve --listen :8080 -w demo.pqw6 --answers answers.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Engine = rootOpts.Engine
			cfg.SimDB = rootOpts.SimDB
			cfg.Workspace = rootOpts.Workspace
			cfg.LogLevel = config.ParseLogLevel(logLevel)
			if rootOpts.Verbose {
				cfg.LogLevel = slog.LevelDebug
			}
			logger := config.NewLogger(os.Stdout, cfg.LogLevel)
			return RunServer(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", cfg.LogLevel.String(), "log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&cfg.Answers, "answers", cfg.Answers, "YAML file of implicit send answers")
	cmd.Flags().StringVar(&cfg.CallbackAddr, "callback", cfg.CallbackAddr, "remote receiver address for every run")
	cmd.Flags().DurationVar(&cfg.CallTimeout, "call-timeout", cfg.CallTimeout, "engine call timeout (0 = engine default)")
	cmd.Flags().BoolVar(&cfg.MaximumLogging, "max-logging", cfg.MaximumLogging, "enable maximum engine logging")
	cmd.Flags().BoolVar(&cfg.SaveTestHistory, "save-history", cfg.SaveTestHistory, "save the engine test history log")

	return cmd
}

// RunServer connects to the configured engine and serves the HTTP API until
// a shutdown signal arrives.
func RunServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("ptsbridge: starting",
		"listen_addr", cfg.ListenAddr,
		"engine", cfg.Engine,
		"workspace", cfg.Workspace,
	)

	s, err := openSession(ctx, cfg.Engine, cfg.SimDB, cfg.Workspace, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	settings := EngineSettings{
		CallTimeout:     cfg.CallTimeout,
		MaximumLogging:  cfg.MaximumLogging,
		SaveTestHistory: cfg.SaveTestHistory,
	}
	if err := settings.Apply(ctx, s.control); err != nil {
		return err
	}

	opts := runner.Options{}
	if cfg.Answers != "" {
		answers, err := testcase.LoadAnswers(cfg.Answers)
		if err != nil {
			return err
		}
		opts.Answers = answers
	}
	if cfg.CallbackAddr != "" {
		client, err := callback.Dial(ctx, cfg.CallbackAddr)
		if err != nil {
			return fmt.Errorf("connect to receiver: %w", err)
		}
		defer client.Close()
		opts.Forward = client
		logger.Info("forwarding notifications", "callback_addr", cfg.CallbackAddr)
	}

	run := runner.New(s.control, logger, opts)
	srv := api.NewServer(cfg.ListenAddr, s.control, run, s.registry, cfg.Engine, logger)

	err = srv.Run()
	run.Wait()
	return err
}
