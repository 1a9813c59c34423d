package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/kingrea/kmap/internal/clock"
	"github.com/kingrea/kmap/internal/scene"
	"github.com/kingrea/kmap/internal/signal"
)

const (
	// DefaultDraftLatency is how long a draft spends generating before it
	// reaches the governance gate.
	DefaultDraftLatency = 1500 * time.Millisecond
	// DefaultReviewer signs approvals made by the tracker.
	DefaultReviewer = "kmap-reviewer"
)

// PhaseSetter receives workflow milestones. scene.Store implements it.
type PhaseSetter interface {
	SetPhase(scene.Phase)
}

// Logger matches logbook.Logbook.Printf.
type Logger interface {
	Printf(format string, args ...any)
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the clock used for the draft latency timer.
func WithClock(c clock.Clock) TrackerOption {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithDispatcher routes timer callbacks onto the owning event loop.
func WithDispatcher(d clock.Dispatcher) TrackerOption {
	return func(t *Tracker) {
		if d != nil {
			t.dispatch = d
		}
	}
}

// WithLedger shares an existing ledger.
func WithLedger(l *Ledger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.ledger = l
		}
	}
}

// WithReviewer overrides the reviewer recorded on approvals.
func WithReviewer(name string) TrackerOption {
	return func(t *Tracker) {
		if name != "" {
			t.reviewer = name
		}
	}
}

// WithDraftLatency overrides the generating-to-gate delay.
func WithDraftLatency(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d >= 0 {
			t.latency = d
		}
	}
}

// WithLogger injects a logger for milestone messages.
func WithLogger(l Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = l
	}
}

// Status summarizes the ticket the tracker is working on.
type Status struct {
	TicketID    string      `json:"ticket_id,omitempty"`
	DraftID     string      `json:"draft_id,omitempty"`
	DraftStatus DraftStatus `json:"draft_status,omitempty"`
	ArticleID   string      `json:"article_id,omitempty"`
	Version     int         `json:"version,omitempty"`
}

// Tracker turns named workflow signals into ledger actions and scene
// phases.
type Tracker struct {
	mu       sync.Mutex
	phases   PhaseSetter
	ledger   *Ledger
	clock    clock.Clock
	dispatch clock.Dispatcher
	reviewer string
	latency  time.Duration
	logger   Logger

	ticketID  string
	draftID   string
	articleID string
	pending   clock.Timer
	gen       uint64
}

// NewTracker creates a tracker that reports milestones to phases.
func NewTracker(phases PhaseSetter, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		phases:   phases,
		clock:    clock.Real(),
		dispatch: clock.Inline,
		reviewer: DefaultReviewer,
		latency:  DefaultDraftLatency,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.ledger == nil {
		t.ledger = NewLedger(t.clock.Now)
	}
	return t
}

// Handle applies one signal. Unknown names are ignored. A rejected review
// action returns an error wrapping ErrInvalidTransition or ErrNotFound and
// leaves the phase unchanged.
func (t *Tracker) Handle(sig signal.Signal) error {
	var (
		phase scene.Phase
		err   error
	)
	switch signal.NormalizeName(sig.Name) {
	case signal.SelectTicket:
		phase, err = t.selectTicket()
	case signal.GenerateDraft:
		phase, err = t.generateDraft()
	case signal.ApproveDraft:
		phase, err = t.approveDraft()
	case signal.PublishV1:
		phase, err = t.publish()
	case signal.PublishV2:
		phase, err = t.publishRevision()
	case signal.OpenProvenance:
		phase, err = t.openProvenance()
	default:
		return nil
	}
	if err != nil {
		t.logf("workflow: %s rejected: %v", sig.Name, err)
		return err
	}
	t.logf("workflow: %s -> %s", sig.Name, phase)
	t.setPhase(phase)
	return nil
}

func (t *Tracker) selectTicket() (scene.Phase, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.ticketID = t.ledger.OpenTicket()
	t.draftID = ""
	t.articleID = ""
	return scene.PhaseIdle, nil
}

func (t *Tracker) generateDraft() (scene.Phase, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticketID == "" {
		t.ticketID = t.ledger.OpenTicket()
	}
	draft, err := t.ledger.CreateDraft(t.ticketID)
	if err != nil {
		return scene.PhaseIdle, err
	}
	t.cancelLocked()
	t.draftID = draft.ID
	gen := t.gen
	t.pending = t.clock.AfterFunc(t.latency, func() {
		t.dispatch(func() {
			t.reachGate(gen)
		})
	})
	return scene.PhaseGenerating, nil
}

func (t *Tracker) reachGate(gen uint64) {
	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.gen++
	t.mu.Unlock()
	t.logf("workflow: draft reached the governance gate")
	t.setPhase(scene.PhaseAtGate)
}

func (t *Tracker) approveDraft() (scene.Phase, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draftID == "" {
		return scene.PhaseIdle, fmt.Errorf("workflow: approve: no draft: %w", ErrNotFound)
	}
	if _, err := t.ledger.Approve(t.draftID, t.reviewer); err != nil {
		return scene.PhaseIdle, err
	}
	t.cancelLocked()
	return scene.PhaseApproved, nil
}

func (t *Tracker) publish() (scene.Phase, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draftID == "" {
		return scene.PhaseIdle, fmt.Errorf("workflow: publish: no draft: %w", ErrNotFound)
	}
	article, err := t.ledger.Publish(t.draftID, t.articleID)
	if err != nil {
		return scene.PhaseIdle, err
	}
	t.cancelLocked()
	t.articleID = article.ID
	if article.CurrentVersion > 1 {
		return scene.PhasePublishingV2, nil
	}
	return scene.PhasePublishingV1, nil
}

func (t *Tracker) publishRevision() (scene.Phase, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.articleID == "" {
		return scene.PhaseIdle, fmt.Errorf("workflow: revise: no published article: %w", ErrNotFound)
	}
	revision, err := t.ledger.CreateDraft(t.ticketID)
	if err != nil {
		return scene.PhaseIdle, err
	}
	if _, err := t.ledger.Approve(revision.ID, t.reviewer); err != nil {
		return scene.PhaseIdle, err
	}
	if _, err := t.ledger.Publish(revision.ID, t.articleID); err != nil {
		return scene.PhaseIdle, err
	}
	t.cancelLocked()
	t.draftID = revision.ID
	return scene.PhasePublishingV2, nil
}

func (t *Tracker) openProvenance() (scene.Phase, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger.Record(EventProvenanceViewed, t.draftID, t.ticketID, map[string]string{
		"kb_article_id": t.articleID,
	})
	return scene.PhaseProvenanceHighlight, nil
}

// Status reports the current ticket, draft and article.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	ticketID, draftID, articleID := t.ticketID, t.draftID, t.articleID
	t.mu.Unlock()
	status := Status{TicketID: ticketID, DraftID: draftID, ArticleID: articleID}
	if draftID != "" {
		if draft, err := t.ledger.Draft(draftID); err == nil {
			status.DraftStatus = draft.Status
		}
	}
	if articleID != "" {
		if article, err := t.ledger.Article(articleID); err == nil {
			status.Version = article.CurrentVersion
		}
	}
	return status
}

// Events returns the learning-event log.
func (t *Tracker) Events() []Event {
	return t.ledger.Events()
}

// Ledger exposes the underlying ledger.
func (t *Tracker) Ledger() *Ledger {
	return t.ledger
}

// Close cancels the pending gate transition.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Tracker) cancelLocked() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Tracker) setPhase(p scene.Phase) {
	if t.phases != nil {
		t.phases.SetPhase(p)
	}
}

func (t *Tracker) logf(format string, args ...any) {
	if t.logger != nil {
		t.logger.Printf(format, args...)
	}
}
