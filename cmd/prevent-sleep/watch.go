package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"preventsleep/internal/config"
	"preventsleep/internal/logging"
	"preventsleep/internal/watch"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		statusFile string
		refresh    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the state of every checker of the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if statusFile == "" {
				cfg, err := loadConfigFile(root.configPath)
				if err != nil {
					return err
				}
				statusFile = cfg.StatusFile
			}

			logger := logging.NewWriterLogger(logging.LevelError, logging.FormatText, os.Stderr)
			p := tea.NewProgram(watch.NewModel(statusFile, refresh, logger))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running watch view: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFile, "status-file", "", "Status file written by the daemon (default from configuration)")
	cmd.Flags().DurationVar(&refresh, "refresh", time.Second, "Refresh interval")
	return cmd
}

func loadConfigFile(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}
