package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/kmap/internal/demo"
	"github.com/kingrea/kmap/internal/scene"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	phaseStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	badgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0b1020")).Background(lipgloss.Color("#F7B801")).Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
)

// stepItem implements list.Item for a demo script step
type stepItem struct {
	step demo.Step
}

func (i stepItem) Title() string {
	return fmt.Sprintf("%d. %s", i.step.ID, i.step.Name)
}

func (i stepItem) Description() string {
	return fmt.Sprintf("%s · %.1fs", i.step.Signal, i.step.Duration.Seconds())
}

func (i stepItem) FilterValue() string { return i.step.Name }

func newScriptList(script demo.Script) list.Model {
	items := make([]list.Item, len(script))
	for i, step := range script {
		items[i] = stepItem{step: step}
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = fmt.Sprintf("Demo script · %s", script.Total())
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

// View renders the header, the active view, the progress bar, the status
// line and key help.
func (a *App) View() string {
	var body string
	switch a.view {
	case viewScript:
		body = a.scriptList.View()
	default:
		body = a.renderMap()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		a.renderHeader(),
		body,
		a.renderProgress(),
		statusStyle.Render(a.statusMsg),
		a.help.View(a.keys),
	)
}

func (a *App) renderMap() string {
	if !a.canvas.Ready() {
		return mutedStyle.Render("Waiting for terminal size...")
	}
	if a.plain {
		return a.canvas.Plain()
	}
	return a.canvas.String()
}

func (a *App) renderHeader() string {
	snap := a.store.Snapshot()
	parts := []string{
		titleStyle.Render("⬡ KMAP"),
		phaseStyle.Render(snap.Phase.FriendlyName()),
	}
	if status := a.tracker.Status(); status.TicketID != "" {
		ticket := status.TicketID
		if status.Version > 0 {
			ticket = fmt.Sprintf("%s · article v%d", ticket, status.Version)
		} else if status.DraftStatus != "" {
			ticket = fmt.Sprintf("%s · %s", ticket, status.DraftStatus)
		}
		parts = append(parts, mutedStyle.Render(ticket))
	}
	if a.sandbox.Load() {
		parts = append(parts, badgeStyle.Render("SANDBOX"))
	}
	parts = append(parts, mutedStyle.Render(fmt.Sprintf("%d entities", len(snap.Entities))))
	return strings.Join(parts, "  ")
}

func (a *App) renderProgress() string {
	state := a.runState
	label := mutedStyle.Render(state.Status.String())
	switch state.Status {
	case demo.StatusRunning:
		label = runningStyle.Render(fmt.Sprintf("step %d/%d", state.Step, len(a.script)))
	case demo.StatusPaused:
		label = pausedStyle.Render("paused")
	}
	return fmt.Sprintf("%s %s", a.progress.ViewAs(state.Progress/100), label)
}

// phaseLabel formats a phase for status messages.
func phaseLabel(p scene.Phase) string {
	return fmt.Sprintf("%s (%s)", p.FriendlyName(), p)
}
