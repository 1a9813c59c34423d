package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/kmap/internal/demo"
)

func newScriptCommand(ctx *commandContext) *cobra.Command {
	var scriptFlag string
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Show the demo script with its step timings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(scriptFlag)
			if path == "" {
				path = cfg.ScriptPath()
			}
			script := demo.DefaultScript()
			if path != "" {
				if script, err = demo.LoadScriptFile(path); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderScript(script))
			return nil
		},
	}
	cmd.Flags().StringVar(&scriptFlag, "script", "", "Demo script YAML file")
	return cmd
}

func renderScript(script demo.Script) string {
	rows := make([][]string, 0, len(script)+1)
	var elapsed float64
	for _, step := range script {
		rows = append(rows, []string{
			fmt.Sprintf("%d", step.ID),
			step.Name,
			step.Signal,
			fmt.Sprintf("%.1fs", elapsed),
			fmt.Sprintf("%.1fs", step.Duration.Seconds()),
		})
		elapsed += step.Duration.Seconds()
	}
	rows = append(rows, []string{"", "Total", "", "", fmt.Sprintf("%.1fs", script.Total().Seconds())})
	return renderTable(
		[]string{"#", "Step", "Signal", "Starts", "Duration"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
	)
}
