package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/kmap/internal/bridge"
	"github.com/kingrea/kmap/internal/scene"
)

func (c *commandContext) bridgeClient() (*bridge.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	settings, err := bridge.SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, bridge.ErrDisabled
	}
	return bridge.NewClient(settings.URL()), nil
}

func newPhaseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "phase <name>",
		Short: "Set the phase of a running map",
		Long:  "Set the phase of a running map. Valid phases: " + strings.Join(phaseNames(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phase, err := scene.ParsePhase(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.bridgeClient()
			if err != nil {
				return err
			}
			if err := client.SetPhase(cmd.Context(), phase.String()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Phase set to %s\n", phase.FriendlyName())
			return nil
		},
	}
}

func newEmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "emit <signal>",
		Short: "Publish a named workflow signal to a running map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.bridgeClient()
			if err != nil {
				return err
			}
			if err := client.Emit(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Emitted %s\n", args[0])
			return nil
		},
	}
}

func newSceneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scene",
		Short: "Show the state of a running map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.bridgeClient()
			if err != nil {
				return err
			}
			summary, err := client.Scene(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
			return nil
		},
	}
}

func renderSummary(s bridge.SceneSummary) string {
	rows := [][]string{
		{"Phase", s.Phase},
		{"Entities", strconv.Itoa(s.Entities)},
		{"Sparks", strconv.Itoa(s.Sparks)},
		{"Published version", strconv.Itoa(s.PublishedVersion)},
		{"Tracked version", strconv.Itoa(s.TrackedVersion)},
		{"Gate flashing", strconv.FormatBool(s.GateFlashing)},
		{"Highlighting", strconv.FormatBool(s.Highlighting)},
		{"Sandbox", strconv.FormatBool(s.Sandbox)},
		{"Demo", fmt.Sprintf("%s step %d (%.1f%%)", s.Demo.Status, s.Demo.Step, s.Demo.Progress)},
	}
	if s.Workflow.TicketID != "" {
		rows = append(rows, []string{"Ticket", s.Workflow.TicketID})
	}
	if s.Workflow.DraftID != "" {
		rows = append(rows, []string{"Draft", fmt.Sprintf("%s (%s)", s.Workflow.DraftID, s.Workflow.DraftStatus)})
	}
	if s.Workflow.ArticleID != "" {
		rows = append(rows, []string{"Article", fmt.Sprintf("%s v%d", s.Workflow.ArticleID, s.Workflow.Version)})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func phaseNames() []string {
	phases := scene.Phases()
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.String()
	}
	return names
}
