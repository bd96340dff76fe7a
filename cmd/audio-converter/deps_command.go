package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaki95/audio-converter/internal/deps"
)

func newDepsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check that the external audio tools are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.All(cfg.Tools))
			fmt.Fprintln(cmd.OutOrStdout(), renderDeps(statuses))

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required tools missing", len(missing))
			}
			return nil
		},
	}
}

func renderDeps(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "ok"
		switch {
		case !s.Available && s.Optional:
			state = "missing (optional)"
		case !s.Available:
			state = "missing"
		}
		rows = append(rows, []string{s.Name, s.Command, state, s.Description})
	}
	return renderTable([]string{"Tool", "Command", "Status", "Used for"}, rows)
}
