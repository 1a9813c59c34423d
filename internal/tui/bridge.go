package tui

import (
	"github.com/kingrea/kmap/internal/bridge"
	"github.com/kingrea/kmap/internal/scene"
	"github.com/kingrea/kmap/internal/signal"
)

// HandlePhase implements bridge.Processor. The phase is applied on the
// bubbletea goroutine.
func (a *App) HandlePhase(p scene.Phase) error {
	a.dispatch(func() {
		a.store.SetPhase(p)
		a.statusMsg = "Bridge set phase " + phaseLabel(p)
	})
	return nil
}

// HandleSignal implements bridge.Processor by publishing on the bus.
func (a *App) HandleSignal(sig signal.Signal) error {
	a.bus.Publish(sig)
	return nil
}

// Summary implements bridge.Processor.
func (a *App) Summary() bridge.SceneSummary {
	summary := bridge.SummarizeScene(a.store.Snapshot(), a.clock.Now())
	state := a.scheduler.State()
	summary.Demo = bridge.DemoSummary{
		Status:   state.Status.String(),
		Step:     state.Step,
		Progress: state.Progress,
	}
	summary.Workflow = a.tracker.Status()
	summary.Sandbox = a.sandbox.Load()
	return summary
}
