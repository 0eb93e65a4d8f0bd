package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
)

// InfoOptions holds flags for the info command.
type InfoOptions struct {
	*RootOptions
	TSS bool
}

type projectDetail struct {
	ptscontrol.ProjectInfo
	TestCases    []ptscontrol.TestCaseInfo `json:"test_cases,omitempty"`
	TSSTestCases []string                  `json:"tss_test_cases,omitempty"`
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InfoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the projects and test cases of a workspace",
		Long: `Print every project of the workspace with its version and test cases.

With --tss the test cases listed in each project's test suite specification
file are printed instead, regardless of their enable state.

Example:
  ptsctl info -w demo.pqw6
  ptsctl info -w demo.pqw6 --tss --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.TSS, "tss", false, "list test cases from the TSS file")

	return cmd
}

func runInfo(cmd *cobra.Command, opts *InfoOptions) error {
	ctx := cmd.Context()
	s, err := opts.openWorkspaceSession(ctx, opts.logger(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	projects, err := s.control.Projects(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "list projects", err)
	}

	details := make([]projectDetail, len(projects))
	for i, p := range projects {
		details[i].ProjectInfo = p
		if opts.TSS {
			names, err := s.control.TestCasesFromTSSFile(ctx, p.Name)
			if err != nil {
				return WrapExitError(ExitCommandError, "list tss test cases", err)
			}
			details[i].TSSTestCases = names
			continue
		}
		cases, err := s.control.TestCases(ctx, p.Name)
		if err != nil {
			return WrapExitError(ExitCommandError, "list test cases", err)
		}
		details[i].TestCases = cases
	}

	return opts.output(cmd).Emit(details, func(w io.Writer) {
		fmt.Fprintln(w, "Project count:", len(details))
		for _, d := range details {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Project name:", d.Name)
			fmt.Fprintln(w, "Project version:", d.Version)
			if opts.TSS {
				fmt.Fprintln(w, "TSS test case count:", len(d.TSSTestCases))
				for _, name := range d.TSSTestCases {
					fmt.Fprintln(w, "  "+name)
				}
				continue
			}
			fmt.Fprintln(w, "Test case count:", d.TestCaseCount)
			for _, tc := range d.TestCases {
				state := "inactive"
				if tc.Active {
					state = "active"
				}
				fmt.Fprintf(w, "  %-40s %-8s %s\n", tc.Name, state, tc.Description)
			}
		}
	})
}
