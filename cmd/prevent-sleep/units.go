package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"preventsleep/internal/fsutil"
	"preventsleep/internal/logging"
	"preventsleep/internal/systemd"
)

func newUnitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "Print the state of the systemd sleep units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bus, err := systemd.Connect()
			if err != nil {
				return err
			}
			logger := logging.NewWriterLogger(logging.LevelWarn, logging.FormatText, os.Stderr)
			defer fsutil.CloseWithError(bus.Close, logger, "system bus")

			states, err := systemd.NewReporter(bus, logger).States()
			fmt.Fprint(cmd.OutOrStdout(), systemd.Render(states))
			return err
		},
	}
}
