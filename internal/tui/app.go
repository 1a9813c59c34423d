// internal/tui/app.go
//
// This is the terminal host for the knowledge map. It uses bubbletea, which
// follows The Elm Architecture:
//
// 1. Model: the scene store, demo scheduler and workflow tracker
// 2. Update: applies frames, keys, timer callbacks and bus signals
// 3. View: paints the braille canvas (or the script list) plus chrome
//
// Every timer in the system (gate flash, draft latency, demo steps, progress
// poller) hands its callback to App.dispatch, which queues it for Update.
// That keeps all scene mutation on the bubbletea goroutine.

package tui

import (
	"fmt"
	"io"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/kmap/internal/animation"
	"github.com/kingrea/kmap/internal/clock"
	"github.com/kingrea/kmap/internal/config"
	"github.com/kingrea/kmap/internal/demo"
	"github.com/kingrea/kmap/internal/logbook"
	"github.com/kingrea/kmap/internal/render"
	"github.com/kingrea/kmap/internal/scene"
	"github.com/kingrea/kmap/internal/signal"
	"github.com/kingrea/kmap/internal/workflow"
)

// viewID represents which screen is showing.
type viewID int

const (
	viewMap    viewID = iota // The knowledge map (primary workflow view)
	viewScript               // The demo script list
)

const (
	dispatchQueueSize = 256
	chromeRows        = 4
)

type frameMsg struct {
	gen uint64
}

type dispatchMsg struct {
	fn func()
}

type signalMsg struct {
	sig signal.Signal
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithClock replaces the real clock for every timer the app owns.
func WithClock(c clock.Clock) AppOption {
	return func(a *App) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLogbook attaches the session logbook.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

// WithScript overrides the demo script.
func WithScript(script demo.Script) AppOption {
	return func(a *App) {
		if len(script) > 0 {
			a.script = script
		}
	}
}

// WithHeadless runs without a terminal: a fixed canvas size, an automatic
// demo start, progress lines written to out, and quit on completion.
func WithHeadless(out io.Writer) AppOption {
	return func(a *App) {
		a.headless = true
		if out == nil {
			out = io.Discard
		}
		a.out = out
	}
}

// App is the main application model.
type App struct {
	cfg     *config.Config
	logbook *logbook.Logbook
	clock   clock.Clock
	queue   chan func()
	done    chan struct{}

	store     *scene.Store
	canvas    *render.Canvas
	driver    *animation.Driver
	loop      animation.Loop
	interval  time.Duration
	lastFrame animation.FrameStats

	bus       *signal.Bus
	signals   signal.Subscription
	scheduler *demo.Scheduler
	tracker   *workflow.Tracker
	script    demo.Script
	runState  demo.RunState
	sandbox   atomic.Bool

	view       viewID
	scriptList list.Model
	progress   progress.Model
	help       help.Model
	keys       keyMap
	plain      bool
	statusMsg  string
	width      int
	height     int

	headless bool
	out      io.Writer
	reported demo.RunState
	finished bool
	closed   bool
}

// NewApp wires the scene store, animation driver, signal bus, workflow
// tracker and demo scheduler around cfg.
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("tui: config is required")
	}
	a := &App{
		cfg:      cfg,
		clock:    clock.Real(),
		queue:    make(chan func(), dispatchQueueSize),
		done:     make(chan struct{}),
		canvas:   render.NewCanvas(),
		interval: cfg.FrameInterval(),
		script:   demo.DefaultScript(),
		keys:     newKeyMap(),
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient()),
		plain:    cfg.ColorMode() == "never",
	}
	if path := cfg.ScriptPath(); path != "" {
		script, err := demo.LoadScriptFile(path)
		if err != nil {
			return nil, err
		}
		a.script = script
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	seed := cfg.Seed()
	if seed == 0 {
		seed = a.clock.Now().UnixNano()
	}
	policy := scene.ContainClusters
	if cfg.Containment() == "wrap" {
		policy = scene.ContainWrap
	}
	a.store = scene.NewStore(
		scene.WithClock(a.clock),
		scene.WithDispatcher(a.dispatch),
		scene.WithRand(rand.New(rand.NewSource(seed))),
		scene.WithContainment(policy),
	)
	a.store.OnPhase(func(prev, next scene.Phase) {
		a.logInfo("phase %s -> %s", prev, next)
	})
	a.driver = animation.NewDriver(a.store, a.canvas, animation.WithClock(a.clock))

	a.bus = signal.NewBus(signal.WithLogger(a.logbook), signal.WithNow(a.clock.Now))
	a.signals = a.bus.Subscribe(signal.Wildcard)
	a.tracker = workflow.NewTracker(a.store,
		workflow.WithClock(a.clock),
		workflow.WithDispatcher(a.dispatch),
		workflow.WithLogger(a.logbook),
	)
	a.scheduler = demo.NewScheduler(a.script,
		demo.WithClock(a.clock),
		demo.WithDispatcher(a.dispatch),
		demo.WithPublisher(a.bus),
		demo.WithHost(a),
		demo.WithSettleDelay(cfg.SettleDelay()),
		demo.WithLogger(a.logbook),
		demo.WithObserver(a.onDemoState),
		demo.WithCompletion(a.onDemoComplete),
	)
	a.scriptList = newScriptList(a.script)
	for i, step := range a.script {
		i, step := i, step
		a.scheduler.Register(step.Signal, func() {
			a.scriptList.Select(i)
			a.statusMsg = fmt.Sprintf("▶ %s", step.Name)
		})
	}

	if a.headless {
		cols, rows := cfg.HeadlessSize()
		a.canvas.Resize(cols, rows)
		a.width, a.height = cols, rows+chromeRows
	}
	a.logInfo("session opened (%d demo steps, %s)", len(a.script), a.script.Total())
	return a, nil
}

// Init mounts the frame loop and starts listening for timer callbacks and
// bus signals. Headless runs start the demo immediately.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		a.waitForDispatch(),
		a.waitForSignal(),
		a.mountFrames(),
	}
	if a.headless {
		a.scheduler.Start()
	}
	return tea.Batch(cmds...)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case frameMsg:
		if !a.loop.Accept(msg.gen) {
			return a, nil
		}
		a.lastFrame = a.driver.Frame()
		return a, a.scheduleFrame(msg.gen)

	case dispatchMsg:
		if msg.fn != nil {
			msg.fn()
		}
		return a, tea.Batch(a.afterEvent(), a.waitForDispatch())

	case signalMsg:
		if err := a.tracker.Handle(msg.sig); err != nil {
			a.statusMsg = fmt.Sprintf("✗ %s: %v", msg.sig.Name, err)
			a.logWarn("signal %s rejected: %v", msg.sig.Name, err)
		}
		return a, tea.Batch(a.afterEvent(), a.waitForSignal())

	case tea.KeyMsg:
		if cmd, handled := a.handleKey(msg); handled {
			return a, cmd
		}
	}

	if a.view == viewScript {
		var cmd tea.Cmd
		a.scriptList, cmd = a.scriptList.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		a.Close()
		return tea.Quit, true
	case key.Matches(msg, a.keys.Demo):
		a.scheduler.Start()
		return a.afterEvent(), true
	case key.Matches(msg, a.keys.Pause):
		a.scheduler.Toggle()
		return nil, true
	case key.Matches(msg, a.keys.Stop):
		a.scheduler.Stop()
		a.statusMsg = "Demo stopped"
		return nil, true
	case key.Matches(msg, a.keys.Reset):
		a.store.Reset()
		a.statusMsg = "Scene regenerated"
		return nil, true
	case key.Matches(msg, a.keys.Phase):
		phases := scene.Phases()
		idx := int(msg.String()[0] - '0')
		if idx >= 0 && idx < len(phases) {
			a.store.SetPhase(phases[idx])
			a.statusMsg = fmt.Sprintf("Phase set to %s", phases[idx].FriendlyName())
		}
		return nil, true
	case key.Matches(msg, a.keys.Switch):
		if a.view == viewMap {
			return a.showScript(), true
		}
		return a.showMap(), true
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		a.resize()
		return nil, true
	}
	return nil, false
}

// afterEvent returns the follow-up command once a callback or signal has
// been applied: remount frames after Navigate, and quit headless runs.
func (a *App) afterEvent() tea.Cmd {
	if a.headless && a.finished {
		a.Close()
		return tea.Quit
	}
	if a.view == viewMap && !a.loop.Mounted() {
		return a.mountFrames()
	}
	return nil
}

func (a *App) showMap() tea.Cmd {
	a.view = viewMap
	return a.mountFrames()
}

func (a *App) showScript() tea.Cmd {
	a.view = viewScript
	a.loop.Unmount()
	return nil
}

// mountFrames starts a fresh frame chain for the map view.
func (a *App) mountFrames() tea.Cmd {
	if a.view != viewMap {
		return nil
	}
	gen := a.loop.Mount()
	return a.scheduleFrame(gen)
}

func (a *App) scheduleFrame(gen uint64) tea.Cmd {
	return tea.Tick(a.interval, func(time.Time) tea.Msg {
		return frameMsg{gen: gen}
	})
}

// dispatch queues fn for the bubbletea goroutine. It is safe to call from
// timer goroutines and HTTP handlers. Once the app is closed nothing drains
// the queue, so late callbacks are dropped instead of blocking the caller.
func (a *App) dispatch(fn func()) {
	select {
	case <-a.done:
		return
	default:
	}
	select {
	case a.queue <- fn:
	case <-a.done:
	}
}

func (a *App) waitForDispatch() tea.Cmd {
	queue := a.queue
	return func() tea.Msg {
		fn, ok := <-queue
		if !ok {
			return nil
		}
		return dispatchMsg{fn: fn}
	}
}

func (a *App) waitForSignal() tea.Cmd {
	ch := a.signals.Signals
	return func() tea.Msg {
		sig, ok := <-ch
		if !ok {
			return nil
		}
		return signalMsg{sig: sig}
	}
}

func (a *App) resize() {
	if a.headless {
		return
	}
	rows := a.height - chromeRows
	if a.help.ShowAll {
		rows -= 2
	}
	a.canvas.Resize(max(0, a.width), max(0, rows))
	a.scriptList.SetSize(max(0, a.width), max(0, rows))
	a.progress.Width = max(10, a.width-12)
	a.help.Width = a.width
}

// EnableSandbox implements demo.Host.
func (a *App) EnableSandbox() {
	if !a.cfg.SandboxEnabled() {
		return
	}
	a.sandbox.Store(true)
	a.logInfo("sandbox mode enabled")
}

// Navigate implements demo.Host. Only the map view is addressable.
func (a *App) Navigate(view string) {
	if view == demo.ViewMap && a.view != viewMap {
		a.view = viewMap
	}
}

func (a *App) onDemoState(state demo.RunState) {
	if a.closed {
		return
	}
	a.runState = state
	if state.Status == demo.StatusIdle {
		a.sandbox.Store(false)
	}
	if a.headless {
		a.reportProgress(state)
	}
}

func (a *App) onDemoComplete() {
	a.statusMsg = "Demo complete"
	a.finished = true
}

// reportProgress writes a line when the step or status changes.
func (a *App) reportProgress(state demo.RunState) {
	if state.Step == a.reported.Step && state.Status == a.reported.Status {
		return
	}
	a.reported = state
	name := ""
	if state.Step > 0 && state.Step <= len(a.script) {
		name = a.script[state.Step-1].Signal
	}
	fmt.Fprintf(a.out, "[%5.1f%%] %-8s step %d/%d %-16s phase=%s\n",
		state.Progress, state.Status, state.Step, len(a.script), name, a.store.Snapshot().Phase)
}

// Close cancels every timer the app owns and stops the frame loop.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	close(a.done)
	a.loop.Unmount()
	a.scheduler.Stop()
	a.tracker.Close()
	a.store.Close()
	a.signals.Close()
	a.logInfo("session closed")
}

// Store exposes the scene store.
func (a *App) Store() *scene.Store {
	return a.store
}

// Scheduler exposes the demo scheduler.
func (a *App) Scheduler() *demo.Scheduler {
	return a.scheduler
}

// Tracker exposes the workflow tracker.
func (a *App) Tracker() *workflow.Tracker {
	return a.tracker
}

// Bus exposes the signal bus.
func (a *App) Bus() *signal.Bus {
	return a.bus
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Info(format, args...)
	}
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook != nil {
		a.logbook.Warn(format, args...)
	}
}
