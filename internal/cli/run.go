package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nrfconnect/auto-pts/internal/callback"
	"github.com/nrfconnect/auto-pts/internal/config"
	"github.com/nrfconnect/auto-pts/internal/model"
	"github.com/nrfconnect/auto-pts/internal/testcase"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	EngineSettings

	Answers         string
	Callback        string
	CallbackTimeout time.Duration
}

// RunResult is the outcome of one test case.
type RunResult struct {
	Project  string `json:"project"`
	TestCase string `json:"test_case"`
	Verdict  string `json:"verdict"`
	Error    string `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cfg := config.Load()
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <project> <test-case>...",
		Short: "Run test cases and report their verdicts",
		Long: `Run one or more test cases of a project, one after another.

Implicit send requests are answered from the --answers file, or by a remote
receiver when --callback is set. The command exits with status 1 when any
test case does not pass.

Example:
  ptsctl run -w demo.pqw6 --answers answers.yaml GAP GAP/CONN/ACEP/BV-01-C
  ptsctl run -w demo.pqw6 --callback tcp://127.0.0.1:7000 L2CAP L2CAP/COS/CED/BV-01-C`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTestCases(cmd, opts, args[0], args[1:])
		},
	}

	cmd.Flags().StringVar(&opts.Answers, "answers", cfg.Answers, "YAML file of implicit send answers")
	cmd.Flags().StringVar(&opts.Callback, "callback", cfg.CallbackAddr, "remote receiver address (tcp://, unix://, vsock://)")
	cmd.Flags().DurationVar(&opts.CallbackTimeout, "callback-timeout", 0, "per-call deadline for the remote receiver (0 = none)")
	cmd.Flags().DurationVar(&opts.CallTimeout, "call-timeout", cfg.CallTimeout, "engine call timeout (0 = engine default)")
	cmd.Flags().BoolVar(&opts.MaximumLogging, "max-logging", cfg.MaximumLogging, "enable maximum engine logging")
	cmd.Flags().BoolVar(&opts.SaveTestHistory, "save-history", cfg.SaveTestHistory, "save the engine test history log")

	return cmd
}

func runTestCases(cmd *cobra.Command, opts *RunOptions, project string, names []string) error {
	ctx := cmd.Context()
	out := opts.output(cmd)

	tcOpts := testcase.Options{}
	if opts.Verbose {
		diag := out.Diag()
		tcOpts.Sink = func(ev testcase.Event) { printEvent(diag, ev) }
	}
	if opts.Answers != "" {
		answers, err := testcase.LoadAnswers(opts.Answers)
		if err != nil {
			return WrapExitError(ExitCommandError, "load answers", err)
		}
		tcOpts.Answers = answers
	}
	if opts.Callback != "" {
		client, err := callback.Dial(ctx, opts.Callback)
		if err != nil {
			return WrapExitError(ExitCommandError, "connect to receiver", err)
		}
		defer client.Close()
		client.SetCallTimeout(opts.CallbackTimeout)
		tcOpts.Forward = client
	}

	s, err := opts.openWorkspaceSession(ctx, opts.logger(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	if err := opts.EngineSettings.Apply(ctx, s.control); err != nil {
		return WrapExitError(ExitCommandError, "configure engine", err)
	}

	results := make([]RunResult, 0, len(names))
	failed := 0
	for _, name := range names {
		tc := testcase.New(project, name, tcOpts)
		runErr := s.control.RunTestCaseObject(ctx, tc)

		res := RunResult{Project: project, TestCase: name, Verdict: tc.Status()}
		if runErr != nil {
			res.Error = runErr.Error()
		}
		if res.Verdict != model.VerdictPass {
			failed++
		}
		results = append(results, res)

		if out.Format != "json" {
			printVerdict(out.Writer, name, res.Verdict)
			if res.Error != "" {
				fmt.Fprintln(out.Writer, "  error:", res.Error)
			}
		}
	}

	if out.Format == "json" {
		if err := out.Emit(results, func(io.Writer) {}); err != nil {
			return err
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d test cases did not pass", failed, len(names)))
	}
	return nil
}
