package workflow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DraftStatus is the review state of a knowledge-base draft.
type DraftStatus string

const (
	DraftPending    DraftStatus = "draft"
	DraftApproved   DraftStatus = "approved"
	DraftRejected   DraftStatus = "rejected"
	DraftPublished  DraftStatus = "published"
	DraftSuperseded DraftStatus = "superseded"
)

var allowedTransitions = map[DraftStatus][]DraftStatus{
	DraftPending:  {DraftApproved, DraftRejected, DraftSuperseded},
	DraftApproved: {DraftPublished, DraftRejected, DraftSuperseded},
}

var (
	// ErrInvalidTransition reports a draft status change the review rules forbid.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound reports an unknown ticket, draft or article.
	ErrNotFound = errors.New("not found")
)

func validateTransition(from, to DraftStatus) error {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("workflow: %s -> %s: %w", from, to, ErrInvalidTransition)
}

// Event types recorded in the learning-event log.
const (
	EventTicketOpened     = "ticket_opened"
	EventDraftGenerated   = "draft_generated"
	EventApproved         = "approved"
	EventRejected         = "rejected"
	EventSuperseded       = "superseded"
	EventPublished        = "published"
	EventRollback         = "rollback"
	EventProvenanceViewed = "provenance_viewed"
)

// Draft is a generated knowledge-base draft for a ticket.
type Draft struct {
	ID         string
	TicketID   string
	Status     DraftStatus
	Reviewer   string
	ReviewedAt time.Time
	CreatedAt  time.Time
}

// ArticleVersion is one published revision of an article.
type ArticleVersion struct {
	ID          string
	Version     int
	DraftID     string
	Rollback    bool
	PublishedAt time.Time
}

// Article is a published knowledge-base article.
type Article struct {
	ID             string
	TicketID       string
	LatestDraftID  string
	CurrentVersion int
	Versions       []ArticleVersion
}

// Event is an audit record of a review or publish action.
type Event struct {
	ID       string
	Type     string
	DraftID  string
	TicketID string
	Meta     map[string]string
	At       time.Time
}

// Ledger holds tickets, drafts, articles and the learning-event log in
// memory.
type Ledger struct {
	mu       sync.Mutex
	now      func() time.Time
	tickets  []string
	drafts   map[string]*Draft
	order    []string
	articles map[string]*Article
	events   []Event
}

// NewLedger returns an empty ledger using now for timestamps.
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		now:      now,
		drafts:   map[string]*Draft{},
		articles: map[string]*Article{},
	}
}

// OpenTicket registers a new support ticket and returns its id.
func (l *Ledger) OpenTicket() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := fmt.Sprintf("TKT-%04d", len(l.tickets)+1)
	l.tickets = append(l.tickets, id)
	l.logLocked(EventTicketOpened, "", id, nil)
	return id
}

// CreateDraft records a pending draft for ticketID.
func (l *Ledger) CreateDraft(ticketID string) (Draft, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasTicketLocked(ticketID) {
		return Draft{}, fmt.Errorf("workflow: ticket %s: %w", ticketID, ErrNotFound)
	}
	draft := &Draft{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Status:    DraftPending,
		CreatedAt: l.now().UTC(),
	}
	l.drafts[draft.ID] = draft
	l.order = append(l.order, draft.ID)
	l.logLocked(EventDraftGenerated, draft.ID, ticketID, nil)
	return *draft, nil
}

// Approve approves a draft and supersedes every other open draft of the
// same ticket.
func (l *Ledger) Approve(draftID, reviewer string) (Draft, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	draft, err := l.draftLocked(draftID)
	if err != nil {
		return Draft{}, err
	}
	if err := validateTransition(draft.Status, DraftApproved); err != nil {
		return Draft{}, err
	}
	l.reviewLocked(draft, DraftApproved, reviewer)
	l.logLocked(EventApproved, draft.ID, draft.TicketID, map[string]string{"reviewer": reviewer})
	for _, id := range l.order {
		other := l.drafts[id]
		if other.ID == draft.ID || other.TicketID != draft.TicketID {
			continue
		}
		if other.Status != DraftPending && other.Status != DraftApproved {
			continue
		}
		l.reviewLocked(other, DraftSuperseded, reviewer)
		l.logLocked(EventSuperseded, other.ID, other.TicketID, map[string]string{
			"reviewer":      reviewer,
			"kept_draft_id": draft.ID,
		})
	}
	return *draft, nil
}

// Reject rejects a pending or approved draft.
func (l *Ledger) Reject(draftID, reviewer string) (Draft, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	draft, err := l.draftLocked(draftID)
	if err != nil {
		return Draft{}, err
	}
	if err := validateTransition(draft.Status, DraftRejected); err != nil {
		return Draft{}, err
	}
	l.reviewLocked(draft, DraftRejected, reviewer)
	l.logLocked(EventRejected, draft.ID, draft.TicketID, map[string]string{"reviewer": reviewer})
	return *draft, nil
}

// Publish publishes an approved draft. An empty articleID creates a new
// article at version 1; otherwise the article's version is incremented.
func (l *Ledger) Publish(draftID, articleID string) (Article, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	draft, err := l.draftLocked(draftID)
	if err != nil {
		return Article{}, err
	}
	if err := validateTransition(draft.Status, DraftPublished); err != nil {
		return Article{}, err
	}
	var article *Article
	if articleID == "" {
		article = &Article{ID: uuid.NewString(), TicketID: draft.TicketID}
		l.articles[article.ID] = article
	} else if article = l.articles[articleID]; article == nil {
		return Article{}, fmt.Errorf("workflow: article %s: %w", articleID, ErrNotFound)
	}
	article.CurrentVersion++
	article.LatestDraftID = draft.ID
	article.Versions = append(article.Versions, ArticleVersion{
		ID:          uuid.NewString(),
		Version:     article.CurrentVersion,
		DraftID:     draft.ID,
		PublishedAt: l.now().UTC(),
	})
	draft.Status = DraftPublished
	l.logLocked(EventPublished, draft.ID, draft.TicketID, map[string]string{
		"kb_article_id": article.ID,
		"version":       fmt.Sprint(article.CurrentVersion),
	})
	return cloneArticle(article), nil
}

// Rollback republishes an earlier version as a new version number.
func (l *Ledger) Rollback(articleID string, target int) (Article, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	article := l.articles[articleID]
	if article == nil {
		return Article{}, fmt.Errorf("workflow: article %s: %w", articleID, ErrNotFound)
	}
	var source *ArticleVersion
	for i := range article.Versions {
		if article.Versions[i].Version == target {
			source = &article.Versions[i]
			break
		}
	}
	if source == nil {
		return Article{}, fmt.Errorf("workflow: article %s version %d: %w", articleID, target, ErrNotFound)
	}
	draftID := source.DraftID
	article.CurrentVersion++
	article.LatestDraftID = draftID
	article.Versions = append(article.Versions, ArticleVersion{
		ID:          uuid.NewString(),
		Version:     article.CurrentVersion,
		DraftID:     draftID,
		Rollback:    true,
		PublishedAt: l.now().UTC(),
	})
	l.logLocked(EventRollback, draftID, article.TicketID, map[string]string{
		"kb_article_id":  article.ID,
		"target_version": fmt.Sprint(target),
		"new_version":    fmt.Sprint(article.CurrentVersion),
	})
	return cloneArticle(article), nil
}

// Record appends an arbitrary event to the log.
func (l *Ledger) Record(eventType, draftID, ticketID string, meta map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logLocked(eventType, draftID, ticketID, meta)
}

// Draft returns a copy of a draft.
func (l *Ledger) Draft(id string) (Draft, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	draft, err := l.draftLocked(id)
	if err != nil {
		return Draft{}, err
	}
	return *draft, nil
}

// Drafts returns drafts with the given status, newest first. An empty
// status returns every draft.
func (l *Ledger) Drafts(status DraftStatus) []Draft {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Draft
	for i := len(l.order) - 1; i >= 0; i-- {
		if draft := l.drafts[l.order[i]]; status == "" || draft.Status == status {
			out = append(out, *draft)
		}
	}
	return out
}

// Article returns a copy of a published article.
func (l *Ledger) Article(id string) (Article, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	article := l.articles[id]
	if article == nil {
		return Article{}, fmt.Errorf("workflow: article %s: %w", id, ErrNotFound)
	}
	return cloneArticle(article), nil
}

// Events returns the learning-event log in order.
func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *Ledger) hasTicketLocked(id string) bool {
	for _, ticket := range l.tickets {
		if ticket == id {
			return true
		}
	}
	return false
}

func (l *Ledger) draftLocked(id string) (*Draft, error) {
	draft := l.drafts[id]
	if draft == nil {
		return nil, fmt.Errorf("workflow: draft %s: %w", id, ErrNotFound)
	}
	return draft, nil
}

func (l *Ledger) reviewLocked(draft *Draft, status DraftStatus, reviewer string) {
	draft.Status = status
	draft.Reviewer = reviewer
	draft.ReviewedAt = l.now().UTC()
}

func (l *Ledger) logLocked(eventType, draftID, ticketID string, meta map[string]string) {
	if meta == nil {
		meta = map[string]string{}
	}
	l.events = append(l.events, Event{
		ID:       uuid.NewString(),
		Type:     eventType,
		DraftID:  draftID,
		TicketID: ticketID,
		Meta:     meta,
		At:       l.now().UTC(),
	})
}

func cloneArticle(article *Article) Article {
	clone := *article
	clone.Versions = append([]ArticleVersion(nil), article.Versions...)
	return clone
}
