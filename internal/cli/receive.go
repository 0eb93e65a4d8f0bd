package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nrfconnect/auto-pts/internal/callback"
	"github.com/nrfconnect/auto-pts/internal/config"
	"github.com/nrfconnect/auto-pts/internal/testcase"
)

// ReceiveOptions holds flags for the receive command.
type ReceiveOptions struct {
	*RootOptions
	Listen  string
	Answers string

	// ready, when set, is called with the bound address once listening.
	ready func(addr string)
}

// NewReceiveCommand creates the receive command.
func NewReceiveCommand(rootOpts *RootOptions) *cobra.Command {
	cfg := config.Load()
	opts := &ReceiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Serve a remote receiver that prints engine notifications",
		Long: `Listen for a bridge forwarding engine notifications, print every log event
and answer implicit sends from the --answers file.

Example:
  ptsctl receive --listen tcp://127.0.0.1:7000 --answers answers.yaml
  ptsctl receive --listen vsock://2:7000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceive(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "tcp://127.0.0.1:7000", "address to listen on (tcp://, unix://, vsock://)")
	cmd.Flags().StringVar(&opts.Answers, "answers", cfg.Answers, "YAML file of implicit send answers")

	return cmd
}

func runReceive(cmd *cobra.Command, opts *ReceiveOptions) error {
	rcv := &printingReceiver{w: cmd.OutOrStdout()}
	if opts.Answers != "" {
		answers, err := testcase.LoadAnswers(opts.Answers)
		if err != nil {
			return WrapExitError(ExitCommandError, "load answers", err)
		}
		rcv.answers = answers
	}

	ln, err := callback.Listen(opts.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "listen", err)
	}

	logger := opts.logger(cmd)
	srv := callback.NewServer(ln, rcv, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	fmt.Fprintln(cmd.ErrOrStderr(), "receiver listening on", srv.Addr())
	if opts.ready != nil {
		opts.ready(srv.Addr().String())
	}

	return srv.Serve()
}
