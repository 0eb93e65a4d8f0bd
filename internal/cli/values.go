package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

type valueUpdate struct {
	Project string `json:"project"`
	Name    string `json:"name"`
	Value   any    `json:"value"`
}

// NewPicsCommand creates the pics command.
func NewPicsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pics <project> <entry> <true|false>",
		Short: "Set a PICS entry",
		Long: `Set a PICS entry of a project. Setting an entry to the value it already
holds succeeds.

Example:
  ptsctl pics -w demo.pqw6 L2CAP TSPC_L2CAP_3_13 true`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseBool(args[2])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid PICS value", err)
			}
			return updateValue(cmd, rootOpts, valueUpdate{Project: args[0], Name: args[1], Value: value})
		},
	}
}

// NewPixitCommand creates the pixit command.
func NewPixitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pixit <project> <param> <value>",
		Short: "Set a PIXIT parameter",
		Long: `Set a PIXIT parameter of a project. Setting a parameter to the value it
already holds succeeds.

Example:
  ptsctl pixit -w demo.pqw6 L2CAP TSPX_iut_role_initiator FALSE`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateValue(cmd, rootOpts, valueUpdate{Project: args[0], Name: args[1], Value: args[2]})
		},
	}
}

func updateValue(cmd *cobra.Command, opts *RootOptions, u valueUpdate) error {
	ctx := cmd.Context()
	s, err := opts.openWorkspaceSession(ctx, opts.logger(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	switch v := u.Value.(type) {
	case bool:
		err = s.control.UpdatePics(ctx, u.Project, u.Name, v)
	case string:
		err = s.control.UpdatePixitParam(ctx, u.Project, u.Name, v)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "update "+u.Name, err)
	}

	return opts.output(cmd).Emit(u, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s = %v\n", u.Project, u.Name, u.Value)
	})
}
