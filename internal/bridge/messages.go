package bridge

import (
	"errors"
	"strings"
	"time"

	"github.com/kingrea/kmap/internal/scene"
	"github.com/kingrea/kmap/internal/signal"
	"github.com/kingrea/kmap/internal/workflow"
)

// ProtocolVersion identifies the bridge contract version exposed via /health.
const ProtocolVersion = "1.0.0"

// PhaseRequest is the body of POST /phase.
type PhaseRequest struct {
	Phase string `json:"phase"`
}

// SignalRequest is the body of POST /signals.
type SignalRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Signal converts the request into a bus signal tagged with the bridge as
// its source.
func (r SignalRequest) Signal() (signal.Signal, error) {
	name := signal.NormalizeName(r.Name)
	if name == "" {
		return signal.Signal{}, errors.New("name is required")
	}
	return signal.Signal{ID: strings.TrimSpace(r.ID), Name: name, Source: SourceBridge}, nil
}

// SourceBridge tags signals received over HTTP.
const SourceBridge = "bridge"

// DemoSummary reports the demo scheduler state.
type DemoSummary struct {
	Status   string  `json:"status"`
	Step     int     `json:"step"`
	Progress float64 `json:"progress"`
}

// SceneSummary is the body of GET /scene.
type SceneSummary struct {
	Phase            string          `json:"phase"`
	Width            float64         `json:"width"`
	Height           float64         `json:"height"`
	Entities         int             `json:"entities"`
	Sparks           int             `json:"sparks"`
	ActiveID         int             `json:"active_id,omitempty"`
	PublishedVersion int             `json:"published_version"`
	TrackedVersion   int             `json:"tracked_version,omitempty"`
	GateFlashing     bool            `json:"gate_flashing"`
	Highlighting     bool            `json:"highlighting"`
	Sandbox          bool            `json:"sandbox"`
	Demo             DemoSummary     `json:"demo"`
	Workflow         workflow.Status `json:"workflow"`
}

// SummarizeScene fills the scene fields of a summary from a snapshot.
func SummarizeScene(s *scene.Scene, now time.Time) SceneSummary {
	if s == nil {
		return SceneSummary{Phase: scene.PhaseIdle.String()}
	}
	summary := SceneSummary{
		Phase:            s.Phase.String(),
		Width:            s.Width,
		Height:           s.Height,
		Entities:         len(s.Entities),
		Sparks:           len(s.Sparks),
		ActiveID:         s.ActiveID,
		PublishedVersion: s.PublishedVersion,
		GateFlashing:     s.GateFlashing,
		Highlighting:     s.Highlighting(now),
	}
	if s.Tracked != nil {
		summary.TrackedVersion = s.Tracked.Version
	}
	return summary
}

// Processor receives validated bridge requests. Implementations hand the
// work to the owning event loop.
type Processor interface {
	HandlePhase(scene.Phase) error
	HandleSignal(signal.Signal) error
	Summary() SceneSummary
}

// Funcs adapts plain functions into a Processor. Nil fields are no-ops.
type Funcs struct {
	Phase  func(scene.Phase) error
	Signal func(signal.Signal) error
	Scene  func() SceneSummary
}

// HandlePhase calls f.Phase.
func (f Funcs) HandlePhase(p scene.Phase) error {
	if f.Phase == nil {
		return nil
	}
	return f.Phase(p)
}

// HandleSignal calls f.Signal.
func (f Funcs) HandleSignal(sig signal.Signal) error {
	if f.Signal == nil {
		return nil
	}
	return f.Signal(sig)
}

// Summary calls f.Scene.
func (f Funcs) Summary() SceneSummary {
	if f.Scene == nil {
		return SceneSummary{Phase: scene.PhaseIdle.String()}
	}
	return f.Scene()
}

// Logger records bridge status information. It matches logbook.Logbook.Printf.
type Logger interface {
	Printf(format string, args ...any)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type acceptedResponse struct {
	Status     string    `json:"status"`
	ServerTime time.Time `json:"server_time"`
}

type errorResponse struct {
	Error string `json:"error"`
}
