package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/launchdarkly/eventsource"
	"github.com/spf13/cobra"

	"github.com/nrfconnect/auto-pts/internal/api"
	"github.com/nrfconnect/auto-pts/internal/model"
	"github.com/nrfconnect/auto-pts/internal/pts"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Server string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <run-id>",
		Short: "Stream the log of a run from a bridge server",
		Long: `Follow the live log of a run submitted to a bridge server and print its
verdict when it ends. The command exits with status 1 unless the run passed.

Example:
  ptsctl watch --server http://localhost:8080 01HZX3J8V4D5W1Q2N6C7B9E0FA`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", "http://localhost:8080", "bridge server base URL")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions, id string) error {
	ctx := cmd.Context()
	out := opts.output(cmd)
	logger := opts.logger(cmd)
	runURL := strings.TrimRight(opts.Server, "/") + "/v1/runs/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, runURL+"/logs", nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "build request", err)
	}
	stream, err := eventsource.SubscribeWithRequest("", req)
	if err != nil {
		return WrapExitError(ExitCommandError, "subscribe to run "+id, err)
	}
	defer stream.Close()

	diag := out.Diag()
	for {
		select {
		case ev, ok := <-stream.Events:
			if !ok {
				return NewExitError(ExitCommandError, "log stream closed before the run ended")
			}
			switch ev.Event() {
			case api.EventLog:
				var line model.LogLine
				if err := json.Unmarshal([]byte(ev.Data()), &line); err != nil {
					logger.Warn("malformed log event", "data", ev.Data(), "error", err)
					continue
				}
				printLog(diag, pts.LogType(line.Type), line.Label, line.Time, line.Message)
			case api.EventDone:
				return finishWatch(cmd, out, runURL)
			}
		case err, ok := <-stream.Errors:
			if ok {
				logger.Debug("log stream error", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// finishWatch fetches the final run record and reports its verdict.
func finishWatch(cmd *cobra.Command, out *OutputFormatter, runURL string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, runURL, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "build request", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return WrapExitError(ExitCommandError, "get run", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return NewExitError(ExitCommandError, fmt.Sprintf("get run: status %d", resp.StatusCode))
	}

	var run model.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return WrapExitError(ExitCommandError, "decode run", err)
	}

	if err := out.Emit(run, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s: %s\n", run.ID, run.TestCase, run.Status)
		printVerdict(w, run.TestCase, run.Verdict)
		if run.Error != "" {
			fmt.Fprintln(w, "  error:", run.Error)
		}
	}); err != nil {
		return err
	}

	if run.Verdict != model.VerdictPass {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s ended with verdict %s", run.ID, run.Verdict))
	}
	return nil
}
