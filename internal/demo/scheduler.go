package demo

import (
	"sync"
	"time"

	"github.com/kingrea/kmap/internal/clock"
	"github.com/kingrea/kmap/internal/signal"
)

const (
	defaultSettleDelay  = 100 * time.Millisecond
	defaultPollInterval = 50 * time.Millisecond

	// ViewMap is the primary workflow view the demo navigates to on start.
	ViewMap = "map"
	// SourceDemo tags signals published by the scheduler.
	SourceDemo = "demo"
)

// Status is the run status of a scheduler.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusPaused
	StatusComplete
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusComplete:
		return "complete"
	default:
		return "idle"
	}
}

// RunState is a snapshot of the scheduler. Step is 1-based; 0 means not
// started.
type RunState struct {
	Status   Status
	Step     int
	Progress float64
}

// Host is the surrounding application the demo drives on start.
type Host interface {
	EnableSandbox()
	Navigate(view string)
}

// Logger matches logbook.Logbook.Printf.
type Logger interface {
	Printf(format string, args ...any)
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used for step timers and the poller.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDispatcher routes timer callbacks onto the owning event loop.
func WithDispatcher(d clock.Dispatcher) Option {
	return func(s *Scheduler) {
		if d != nil {
			s.dispatch = d
		}
	}
}

// WithPublisher sets the bus each step's signal is published on.
func WithPublisher(p signal.Publisher) Option {
	return func(s *Scheduler) {
		s.publisher = p
	}
}

// WithHost sets the application hooks invoked by Start.
func WithHost(h Host) Option {
	return func(s *Scheduler) {
		s.host = h
	}
}

// WithSettleDelay overrides the pause between Start and the first step.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.settle = d
		}
	}
}

// WithPollInterval overrides how often progress is recomputed while running.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithCompletion registers a callback invoked once the last step elapses.
func WithCompletion(fn func()) Option {
	return func(s *Scheduler) {
		s.onComplete = fn
	}
}

// WithLogger injects a logger for step transitions.
func WithLogger(l Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithObserver registers a callback invoked after every state change and
// progress tick.
func WithObserver(fn func(RunState)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// Scheduler walks a Script on timers. Every timer callback carries the
// generation it was scheduled under; Pause, Resume and Stop bump the
// generation so callbacks already in flight become inert.
type Scheduler struct {
	mu         sync.Mutex
	script     Script
	clock      clock.Clock
	dispatch   clock.Dispatcher
	publisher  signal.Publisher
	host       Host
	settle     time.Duration
	poll       time.Duration
	onComplete func()
	logger     Logger
	observers  []func(RunState)
	callbacks  map[string]func()

	status    Status
	starting  bool
	index     int
	stepStart time.Time
	elapsed   time.Duration
	progress  float64
	gen       uint64
	pending   clock.Timer
	poller    clock.Timer
}

// NewScheduler builds an idle scheduler for script.
func NewScheduler(script Script, opts ...Option) *Scheduler {
	s := &Scheduler{
		script:    append(Script(nil), script...),
		clock:     clock.Real(),
		dispatch:  clock.Inline,
		settle:    defaultSettleDelay,
		poll:      defaultPollInterval,
		callbacks: map[string]func(){},
		index:     -1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Script returns a copy of the steps.
func (s *Scheduler) Script() Script {
	return append(Script(nil), s.script...)
}

// Register installs the callback for a step signal, replacing any earlier one.
func (s *Scheduler) Register(name string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := signal.NormalizeName(name)
	if fn == nil {
		delete(s.callbacks, key)
		return
	}
	s.callbacks[key] = fn
}

// Start enables sandbox mode, navigates to the map and runs step one after
// the settle delay. It is a no-op unless the scheduler is idle.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.status != StatusIdle || s.starting {
		s.mu.Unlock()
		return
	}
	s.starting = true
	s.gen++
	gen := s.gen
	host := s.host
	s.mu.Unlock()

	if host != nil {
		host.EnableSandbox()
		host.Navigate(ViewMap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.pending = s.clock.AfterFunc(s.settle, s.guard(gen, func() {
		s.begin(gen)
	}))
}

func (s *Scheduler) begin(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.starting = false
	s.status = StatusRunning
	s.index = -1
	s.elapsed = 0
	s.progress = 0
	s.startPollerLocked(gen)
	s.mu.Unlock()
	s.logf("demo: started (%d steps, %s)", len(s.script), s.script.Total())
	s.runStep(0, gen)
}

func (s *Scheduler) runStep(i int, gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if i >= len(s.script) {
		s.status = StatusComplete
		s.index = len(s.script) - 1
		s.progress = 100
		s.pending = nil
		s.stopPollerLocked()
		done := s.onComplete
		state := s.stateLocked()
		s.mu.Unlock()
		s.logf("demo: complete")
		s.notify(state)
		if done != nil {
			done()
		}
		return
	}
	step := s.script[i]
	s.index = i
	s.elapsed = 0
	s.stepStart = s.clock.Now()
	fn := s.callbacks[signal.NormalizeName(step.Signal)]
	publisher := s.publisher
	state := s.stateLocked()
	s.mu.Unlock()

	s.logf("demo: step %d/%d %s", i+1, len(s.script), step.Signal)
	s.notify(state)
	if fn != nil {
		fn()
	}
	if publisher != nil {
		publisher.Publish(signal.Signal{Name: step.Signal, Step: step.ID, Source: SourceDemo})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.pending = s.clock.AfterFunc(step.Duration, s.guard(gen, func() {
		s.runStep(i+1, gen)
	}))
}

// Pause freezes the current step, keeping the time already spent in it. It
// is a no-op unless running.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.cancelPendingLocked()
	s.stopPollerLocked()
	s.elapsed = s.clock.Now().Sub(s.stepStart)
	s.updateProgressLocked()
	s.status = StatusPaused
	elapsed := s.elapsed
	state := s.stateLocked()
	s.mu.Unlock()
	s.logf("demo: paused at step %d after %s", state.Step, elapsed)
	s.notify(state)
}

// Resume reschedules the next step after the remaining time of the current
// one. It is a no-op unless paused.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	if s.status != StatusPaused {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	remaining := s.script[s.index].Duration - s.elapsed
	if remaining < 0 {
		remaining = 0
	}
	s.stepStart = s.clock.Now().Add(-s.elapsed)
	s.status = StatusRunning
	next := s.index + 1
	s.pending = s.clock.AfterFunc(remaining, s.guard(gen, func() {
		s.runStep(next, gen)
	}))
	s.startPollerLocked(gen)
	state := s.stateLocked()
	s.mu.Unlock()
	s.logf("demo: resumed, %s left in step %d", remaining, state.Step)
	s.notify(state)
}

// Toggle pauses a running demo or resumes a paused one.
func (s *Scheduler) Toggle() {
	switch s.State().Status {
	case StatusRunning:
		s.Pause()
	case StatusPaused:
		s.Resume()
	}
}

// Stop cancels every pending timer and resets to idle from any state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.gen++
	s.cancelPendingLocked()
	s.stopPollerLocked()
	wasIdle := s.status == StatusIdle && !s.starting
	s.status = StatusIdle
	s.starting = false
	s.index = -1
	s.elapsed = 0
	s.progress = 0
	state := s.stateLocked()
	s.mu.Unlock()
	if !wasIdle {
		s.logf("demo: stopped")
	}
	s.notify(state)
}

// State returns the current run state.
func (s *Scheduler) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Progress returns the last computed progress percentage.
func (s *Scheduler) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Current returns the step in flight, if any.
func (s *Scheduler) Current() (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index < 0 || s.index >= len(s.script) || s.status == StatusIdle {
		return Step{}, false
	}
	return s.script[s.index], true
}

func (s *Scheduler) stateLocked() RunState {
	state := RunState{Status: s.status, Progress: s.progress}
	if s.status != StatusIdle {
		state.Step = s.index + 1
	}
	return state
}

// guard wraps a timer callback so it runs on the dispatcher and only while
// gen is still current.
func (s *Scheduler) guard(gen uint64, fn func()) func() {
	return func() {
		s.dispatch(func() {
			s.mu.Lock()
			live := s.gen == gen
			s.mu.Unlock()
			if live {
				fn()
			}
		})
	}
}

func (s *Scheduler) startPollerLocked(gen uint64) {
	s.stopPollerLocked()
	s.poller = s.clock.AfterFunc(s.poll, s.guard(gen, func() {
		s.pollTick(gen)
	}))
}

func (s *Scheduler) stopPollerLocked() {
	if s.poller != nil {
		s.poller.Stop()
		s.poller = nil
	}
}

func (s *Scheduler) cancelPendingLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *Scheduler) pollTick(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	s.elapsed = s.clock.Now().Sub(s.stepStart)
	s.updateProgressLocked()
	s.startPollerLocked(gen)
	state := s.stateLocked()
	s.mu.Unlock()
	s.notify(state)
}

// updateProgressLocked recomputes progress from s.elapsed. Progress never
// moves backwards.
func (s *Scheduler) updateProgressLocked() {
	total := s.script.Total()
	if total <= 0 || s.index < 0 {
		return
	}
	current := s.elapsed
	if limit := s.script[s.index].Duration; current > limit {
		current = limit
	}
	if current < 0 {
		current = 0
	}
	pct := float64(s.script.elapsedBefore(s.index)+current) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	if pct > s.progress {
		s.progress = pct
	}
}

func (s *Scheduler) notify(state RunState) {
	for _, fn := range s.observers {
		fn(state)
	}
}

func (s *Scheduler) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
