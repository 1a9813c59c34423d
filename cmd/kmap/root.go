package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var projectFlag string
	var headless bool
	var scriptFlag string

	ctx := newCommandContext(&projectFlag)

	rootCmd := &cobra.Command{
		Use:           "kmap",
		Short:         "Living knowledge map for the support workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, ctx, sessionOptions{
				headless:   headless,
				scriptPath: scriptFlag,
			})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "C", "", "Project directory (defaults to the working directory)")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "Run the demo without a terminal UI and print progress")
	rootCmd.Flags().StringVar(&scriptFlag, "script", "", "Demo script YAML file")

	rootCmd.AddCommand(newDemoCommand(ctx))
	rootCmd.AddCommand(newScriptCommand(ctx))
	rootCmd.AddCommand(newPhaseCommand(ctx))
	rootCmd.AddCommand(newEmitCommand(ctx))
	rootCmd.AddCommand(newSceneCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newDemoCommand(ctx *commandContext) *cobra.Command {
	var scriptFlag string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Play the scripted demo once without a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, ctx, sessionOptions{
				headless:   true,
				scriptPath: scriptFlag,
			})
		},
	}
	cmd.Flags().StringVar(&scriptFlag, "script", "", "Demo script YAML file")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kmap version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kmap "+version)
		},
	}
}
