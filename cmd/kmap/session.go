package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/kingrea/kmap/internal/bridge"
	"github.com/kingrea/kmap/internal/demo"
	"github.com/kingrea/kmap/internal/logbook"
	"github.com/kingrea/kmap/internal/tui"
)

type sessionOptions struct {
	headless   bool
	scriptPath string
}

// runSession opens the logbook, starts the bridge and runs the app until
// the user quits or a headless demo completes.
func runSession(cmd *cobra.Command, ctx *commandContext, opts sessionOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	lb, err := logbook.New(cfg.LogPath())
	if err != nil {
		return fmt.Errorf("open logbook: %w", err)
	}

	out := cmd.OutOrStdout()
	headless := opts.headless || !isTerminal(out)
	appOpts := []tui.AppOption{tui.WithLogbook(lb)}
	if opts.scriptPath != "" {
		script, err := demo.LoadScriptFile(opts.scriptPath)
		if err != nil {
			return err
		}
		appOpts = append(appOpts, tui.WithScript(script))
	}
	if headless {
		appOpts = append(appOpts, tui.WithHeadless(out))
	}
	switch cfg.ColorMode() {
	case "always":
		lipgloss.SetColorProfile(termenv.TrueColor)
	case "never":
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	app, err := tui.NewApp(cfg, appOpts...)
	if err != nil {
		return err
	}
	defer app.Close()

	settings, err := bridge.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	server := bridge.NewServer(settings,
		bridge.WithProcessor(app),
		bridge.WithLogger(lb),
	)
	if err := server.Start(runCtx); err != nil {
		if !errors.Is(err, bridge.ErrDisabled) {
			lb.Warn("bridge unavailable: %v", err)
		}
	} else {
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
			defer stop()
			if err := server.Shutdown(shutdownCtx); err != nil {
				lb.Warn("bridge shutdown: %v", err)
			}
		}()
	}

	programOpts := []tea.ProgramOption{tea.WithContext(runCtx)}
	if headless {
		programOpts = append(programOpts, tea.WithoutRenderer(), tea.WithInput(nil))
	} else {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	_, runErr := tea.NewProgram(app, programOpts...).Run()
	// Stop dispatching before the bridge drains its in-flight requests.
	app.Close()
	if runErr != nil {
		return fmt.Errorf("run kmap: %w", runErr)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
