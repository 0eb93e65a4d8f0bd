package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nrfconnect/auto-pts/internal/ptscontrol"
)

type engineInfo struct {
	BluetoothAddress string `json:"bluetooth_address"`
	BDAddr           string `json:"bd_addr"`
	Version          string `json:"version"`
}

// NewBDAddrCommand creates the bdaddr command.
func NewBDAddrCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bdaddr",
		Short: "Print the engine's Bluetooth address and version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, rootOpts.Engine, rootOpts.SimDB, "", rootOpts.logger(cmd))
			if err != nil {
				return err
			}
			defer s.Close()

			addr, err := s.control.BluetoothAddress(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "read bluetooth address", err)
			}
			bdAddr, err := s.control.BDAddr(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "read bd_addr", err)
			}
			version, err := s.control.Version(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "read version", err)
			}

			info := engineInfo{
				BluetoothAddress: fmt.Sprintf("%x", addr),
				BDAddr:           bdAddr,
				Version:          ptscontrol.FormatVersion(version),
			}
			return rootOpts.output(cmd).Emit(info, func(w io.Writer) {
				fmt.Fprintln(w, "PTS Bluetooth Address:", info.BluetoothAddress)
				fmt.Fprintln(w, "PTS BD_ADDR:", info.BDAddr)
				fmt.Fprintln(w, "PTS Version:", info.Version)
			})
		},
	}
}

// NewEnginesCommand creates the engines command.
func NewEnginesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the available engine drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			drivers := NewRegistry(rootOpts.SimDB, rootOpts.logger(cmd)).List()
			return rootOpts.output(cmd).Emit(drivers, func(w io.Writer) {
				for _, d := range drivers {
					fmt.Fprintf(w, "%-10s %s\n", d.Name, d.Description)
				}
			})
		},
	}
}
