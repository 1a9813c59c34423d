package scene

import (
	"math/rand"
	"sync"
	"time"

	"github.com/kingrea/kmap/internal/clock"
)

// PhaseObserver is notified after a phase has been applied.
type PhaseObserver func(prev, next Phase)

// StoreOption customizes Store construction.
type StoreOption func(*Store)

// WithClock overrides the real clock (tests use clock.Fake).
func WithClock(c clock.Clock) StoreOption {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDispatcher routes timer callbacks onto the goroutine that owns the
// store's callers.
func WithDispatcher(d clock.Dispatcher) StoreOption {
	return func(s *Store) {
		if d != nil {
			s.dispatch = d
		}
	}
}

// WithRand seeds entity selection, population and spark jitter.
func WithRand(rng *rand.Rand) StoreOption {
	return func(s *Store) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithContainment picks the physics containment policy.
func WithContainment(policy Containment) StoreOption {
	return func(s *Store) {
		s.policy = policy
	}
}

// Store owns the canonical scene. Every write installs a new *Scene, so a
// snapshot handed to the renderer is never modified afterwards.
type Store struct {
	mu        sync.Mutex
	current   *Scene
	clock     clock.Clock
	dispatch  clock.Dispatcher
	rng       *rand.Rand
	policy    Containment
	gateTimer clock.Timer
	gateGen   uint64
	observers []PhaseObserver
}

// NewStore creates an empty, unsized scene in the idle phase.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		clock:    clock.Real(),
		dispatch: clock.Inline,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.current = &Scene{Phase: PhaseIdle, Policy: s.policy, nextID: 1}
	return s
}

// OnPhase registers an observer for applied phases.
func (s *Store) OnPhase(fn PhaseObserver) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Snapshot returns the current scene. Callers must treat it as read-only.
func (s *Store) Snapshot() *Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetPhase applies next through Reduce. Any pending gate-flash reset is
// cancelled; entering approved schedules a fresh one.
func (s *Store) SetPhase(next Phase) {
	s.mu.Lock()
	prev := s.current
	s.cancelGateLocked()
	reduced := Reduce(*prev, next, s.clock.Now(), s.rng)
	s.current = &reduced
	if next == PhaseApproved {
		gen := s.gateGen
		s.gateTimer = s.clock.AfterFunc(GateFlashDuration, func() {
			s.dispatch(func() { s.endGateFlash(gen) })
		})
	}
	observers := append([]PhaseObserver(nil), s.observers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(prev.Phase, next)
	}
}

func (s *Store) endGateFlash(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gateGen || !s.current.GateFlashing {
		return
	}
	s.gateTimer = nil
	next := s.current.clone()
	next.GateFlashing = false
	next.Revision++
	s.current = &next
}

func (s *Store) cancelGateLocked() {
	if s.gateTimer != nil {
		s.gateTimer.Stop()
		s.gateTimer = nil
	}
	s.gateGen++
}

// Resize records the canvas size. The first positive size populates the
// entity set; later sizes rescale positions so motion stays continuous.
func (s *Store) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current
	if cur.Width == width && cur.Height == height {
		return
	}
	next := cur.clone()
	next.Width, next.Height = width, height
	next.Revision++
	if len(cur.Entities) == 0 {
		next.Entities = Populate(width, height, s.policy, cur.nextID, s.rng)
		next.nextID = cur.nextID + len(next.Entities)
	} else if cur.Ready() {
		rescale(&next, width/cur.Width, height/cur.Height)
	}
	s.current = &next
}

// Reset regenerates the entity population and returns the scene to idle.
func (s *Store) Reset() {
	s.mu.Lock()
	s.cancelGateLocked()
	cur := s.current
	next := Scene{
		Phase:    PhaseIdle,
		Width:    cur.Width,
		Height:   cur.Height,
		Policy:   s.policy,
		Revision: cur.Revision + 1,
		nextID:   cur.nextID,
	}
	if next.Ready() {
		next.Entities = Populate(next.Width, next.Height, s.policy, next.nextID, s.rng)
		next.nextID += len(next.Entities)
	}
	s.current = &next
	observers := append([]PhaseObserver(nil), s.observers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(cur.Phase, PhaseIdle)
	}
}

// Commit writes back one frame of physics computed from base. The write is
// skipped when nothing changed or when base is no longer current (a phase
// landed in between; the next frame recomputes from it).
func (s *Store) Commit(base *Scene, entities []Entity, sparks []Spark) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if base != s.current {
		return false
	}
	if EntitiesEqual(base.Entities, entities) && SparksEqual(base.Sparks, sparks) {
		return false
	}
	next := *base
	next.Entities = entities
	next.Sparks = sparks
	next.Revision++
	s.current = &next
	return true
}

// Close cancels outstanding timers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelGateLocked()
}

func rescale(s *Scene, kx, ky float64) {
	scale := func(v Vec) Vec { return Vec{v.X * kx, v.Y * ky} }
	for i := range s.Entities {
		e := &s.Entities[i]
		e.Pos = scale(e.Pos)
		if e.Target != nil {
			t := scale(*e.Target)
			e.Target = &t
		}
	}
	for i := range s.Sparks {
		s.Sparks[i].From = scale(s.Sparks[i].From)
		s.Sparks[i].To = scale(s.Sparks[i].To)
	}
	if s.Tracked != nil {
		s.Tracked.Pos = scale(s.Tracked.Pos)
	}
}
