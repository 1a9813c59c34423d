package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/kmap/internal/clock"
	"github.com/kingrea/kmap/internal/config"
	"github.com/kingrea/kmap/internal/demo"
	"github.com/kingrea/kmap/internal/scene"
	"github.com/kingrea/kmap/internal/signal"
	"github.com/kingrea/kmap/internal/workflow"
)

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T, opts ...AppOption) (*App, *clock.Fake) {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Project.Scene.Seed = 7
	fake := clock.NewFake(testEpoch)
	app, err := NewApp(cfg, append([]AppOption{WithClock(fake)}, opts...)...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(app.Close)
	return app, fake
}

// drain applies every queued timer callback and bus signal, the way the
// bubbletea runtime would deliver them.
func drain(app *App) {
	for {
		select {
		case fn := <-app.queue:
			app.Update(dispatchMsg{fn: fn})
		case sig, ok := <-app.signals.Signals:
			if !ok {
				return
			}
			app.Update(signalMsg{sig: sig})
		default:
			return
		}
	}
}

func runFor(app *App, fake *clock.Fake, d, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		fake.Advance(step)
		drain(app)
	}
}

func press(app *App, msg tea.KeyMsg) tea.Cmd {
	_, cmd := app.Update(msg)
	return cmd
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestDemoDrivesSceneThroughEveryPhase(t *testing.T) {
	app, fake := newTestApp(t)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 34})
	app.driver.Frame()
	var seen []scene.Phase
	app.store.OnPhase(func(_, next scene.Phase) {
		seen = append(seen, next)
	})

	press(app, runeKey('d'))
	if !app.sandbox.Load() {
		t.Fatalf("expected sandbox mode after starting the demo")
	}
	runFor(app, fake, app.script.Total()+2*time.Second, 50*time.Millisecond)

	state := app.scheduler.State()
	if state.Status != demo.StatusComplete || state.Progress != 100 {
		t.Fatalf("demo state = %+v, want complete", state)
	}
	if !app.finished {
		t.Fatalf("completion callback not observed")
	}
	want := []scene.Phase{
		scene.PhaseIdle,
		scene.PhaseGenerating,
		scene.PhaseAtGate,
		scene.PhaseApproved,
		scene.PhasePublishingV1,
		scene.PhasePublishingV2,
		scene.PhaseProvenanceHighlight,
	}
	if len(seen) != len(want) {
		t.Fatalf("phases = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("phases = %v, want %v", seen, want)
		}
	}
	snap := app.store.Snapshot()
	if snap.Tracked == nil || snap.Tracked.Version != 2 {
		t.Fatalf("tracked point = %+v, want version 2", snap.Tracked)
	}
	if status := app.tracker.Status(); status.Version != 2 || status.DraftStatus != workflow.DraftPublished {
		t.Fatalf("workflow status = %+v", status)
	}
	if app.scriptList.Index() != len(app.script)-1 {
		t.Fatalf("script selection = %d, want last step", app.scriptList.Index())
	}
}

func TestPauseKeyFreezesDemo(t *testing.T) {
	app, fake := newTestApp(t)
	press(app, runeKey('d'))
	runFor(app, fake, time.Second, 50*time.Millisecond)
	press(app, tea.KeyMsg{Type: tea.KeySpace})
	if got := app.scheduler.State().Status; got != demo.StatusPaused {
		t.Fatalf("status = %s, want paused", got)
	}
	frozen := app.scheduler.Progress()
	runFor(app, fake, 10*time.Second, 100*time.Millisecond)
	if app.scheduler.Progress() != frozen {
		t.Fatalf("progress moved while paused")
	}
	press(app, tea.KeyMsg{Type: tea.KeySpace})
	if got := app.scheduler.State().Status; got != demo.StatusRunning {
		t.Fatalf("status = %s, want running", got)
	}
	press(app, runeKey('s'))
	drain(app)
	if state := app.scheduler.State(); state.Status != demo.StatusIdle || state.Progress != 0 {
		t.Fatalf("state after stop = %+v", state)
	}
	if app.sandbox.Load() {
		t.Fatalf("sandbox should clear when the demo stops")
	}
}

func TestFrameLoopStopsWhenMapUnmounts(t *testing.T) {
	app, _ := newTestApp(t)
	app.Update(tea.WindowSizeMsg{Width: 80, Height: 28})
	gen := app.loop.Mount()
	_, cmd := app.Update(frameMsg{gen: gen})
	if cmd == nil || !app.lastFrame.Painted {
		t.Fatalf("mounted frame should paint and reschedule, stats=%+v", app.lastFrame)
	}
	press(app, tea.KeyMsg{Type: tea.KeyTab})
	if app.view != viewScript {
		t.Fatalf("tab should switch to the script view")
	}
	app.lastFrame.Painted = false
	if _, cmd := app.Update(frameMsg{gen: gen}); cmd != nil || app.lastFrame.Painted {
		t.Fatalf("frame after unmount must not run or reschedule")
	}
	if cmd := press(app, tea.KeyMsg{Type: tea.KeyTab}); cmd == nil {
		t.Fatalf("returning to the map should mount a new frame chain")
	}
	if _, cmd := app.Update(frameMsg{gen: gen}); cmd != nil {
		t.Fatalf("stale generation must stay dead after remount")
	}
}

func TestFrameBeforeResizeIsNoOp(t *testing.T) {
	app, _ := newTestApp(t)
	gen := app.loop.Mount()
	_, cmd := app.Update(frameMsg{gen: gen})
	if cmd == nil {
		t.Fatalf("unsized frame must keep scheduling")
	}
	if app.lastFrame.Painted {
		t.Fatalf("unsized frame should not paint")
	}
}

func TestPhaseAndResetKeys(t *testing.T) {
	app, fake := newTestApp(t)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 34})
	app.driver.Frame()
	press(app, runeKey('3'))
	if got := app.store.Snapshot(); got.Phase != scene.PhaseApproved || !got.GateFlashing {
		t.Fatalf("phase = %s flashing=%v, want flashing approved", got.Phase, got.GateFlashing)
	}
	fake.Advance(scene.GateFlashDuration)
	drain(app)
	if app.store.Snapshot().GateFlashing {
		t.Fatalf("gate flash should end after its timer")
	}
	before := app.store.Snapshot().Entities[0].ID
	press(app, runeKey('r'))
	after := app.store.Snapshot()
	if after.Phase != scene.PhaseIdle || after.Entities[0].ID == before {
		t.Fatalf("reset should regenerate entities in idle, got phase %s id %d", after.Phase, after.Entities[0].ID)
	}
}

func TestBridgeProcessorRunsOnLoop(t *testing.T) {
	app, _ := newTestApp(t)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 34})
	app.driver.Frame()
	if err := app.HandlePhase(scene.PhasePublishingV2); err != nil {
		t.Fatalf("HandlePhase: %v", err)
	}
	if app.store.Snapshot().Phase != scene.PhaseIdle {
		t.Fatalf("phase must not change until the loop runs the callback")
	}
	drain(app)
	summary := app.Summary()
	if summary.Phase != "publishing_v2" || summary.TrackedVersion != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if err := app.HandleSignal(signal.Signal{Name: signal.SelectTicket}); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	drain(app)
	summary = app.Summary()
	if summary.Phase != "idle" || summary.Workflow.TicketID == "" {
		t.Fatalf("summary after select-ticket = %+v", summary)
	}
	if summary.Demo.Status != "idle" {
		t.Fatalf("demo summary = %+v", summary.Demo)
	}
}

func TestHeadlessRunReportsAndFinishes(t *testing.T) {
	var out bytes.Buffer
	app, fake := newTestApp(t, WithHeadless(&out))
	if !app.canvas.Ready() {
		t.Fatalf("headless canvas should be sized from config")
	}
	app.Init()
	runFor(app, fake, app.script.Total()+time.Second, 50*time.Millisecond)
	if !app.finished || !app.closed {
		t.Fatalf("headless run should finish and close, finished=%v closed=%v", app.finished, app.closed)
	}
	report := out.String()
	for _, step := range app.script {
		if !strings.Contains(report, step.Signal) {
			t.Fatalf("report missing %s:\n%s", step.Signal, report)
		}
	}
	if !strings.Contains(report, "complete") {
		t.Fatalf("report missing completion line:\n%s", report)
	}
	if strings.Contains(report, "idle ") {
		t.Fatalf("report should not print an idle line on exit:\n%s", report)
	}
}

func TestViewShowsHeaderAndScript(t *testing.T) {
	app, _ := newTestApp(t)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 34})
	app.driver.Frame()
	view := app.View()
	if !strings.Contains(view, "KMAP") || !strings.Contains(view, "Idle") {
		t.Fatalf("view missing header:\n%s", view)
	}
	press(app, tea.KeyMsg{Type: tea.KeyTab})
	view = app.View()
	if !strings.Contains(view, "Select a support ticket") {
		t.Fatalf("script view missing steps:\n%s", view)
	}
}

func TestDispatchAfterCloseDoesNotBlock(t *testing.T) {
	app, _ := newTestApp(t)
	app.Close()
	finished := make(chan struct{})
	go func() {
		for i := 0; i < 2*dispatchQueueSize; i++ {
			if err := app.HandlePhase(scene.PhaseApproved); err != nil {
				t.Errorf("HandlePhase: %v", err)
				return
			}
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("bridge requests blocked after the app closed")
	}
	if queued := len(app.queue); queued != 0 {
		t.Fatalf("queued %d callbacks after close, want 0", queued)
	}
}

func TestStepCallbackSelectsScriptItem(t *testing.T) {
	app, fake := newTestApp(t)
	press(app, runeKey('d'))
	runFor(app, fake, app.script[0].Duration+500*time.Millisecond, 50*time.Millisecond)
	if got := app.scriptList.Index(); got != 1 {
		t.Fatalf("script selection = %d, want the second step", got)
	}
	if !strings.Contains(app.statusMsg, app.script[1].Name) {
		t.Fatalf("status = %q, want the running step name", app.statusMsg)
	}
}
