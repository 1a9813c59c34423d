package scene

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Phase is a discrete workflow milestone that reparameterizes the scene.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseGenerating
	PhaseAtGate
	PhaseApproved
	PhasePublishingV1
	PhasePublishingV2
	PhaseProvenanceHighlight
)

var phaseNames = []string{
	PhaseIdle:                "idle",
	PhaseGenerating:          "generating",
	PhaseAtGate:              "at_gate",
	PhaseApproved:            "approved",
	PhasePublishingV1:        "publishing_v1",
	PhasePublishingV2:        "publishing_v2",
	PhaseProvenanceHighlight: "provenance_highlight",
}

// Phases lists every phase in workflow order.
func Phases() []Phase {
	return []Phase{
		PhaseIdle,
		PhaseGenerating,
		PhaseAtGate,
		PhaseApproved,
		PhasePublishingV1,
		PhasePublishingV2,
		PhaseProvenanceHighlight,
	}
}

// String returns the wire name of the phase.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// FriendlyName returns a short label for headers.
func (p Phase) FriendlyName() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseGenerating:
		return "Generating Draft"
	case PhaseAtGate:
		return "Awaiting Review"
	case PhaseApproved:
		return "Approved"
	case PhasePublishingV1:
		return "Published v1"
	case PhasePublishingV2:
		return "Published v2"
	case PhaseProvenanceHighlight:
		return "Provenance"
	default:
		return p.String()
	}
}

// ParsePhase resolves a wire name (case-insensitive, dashes allowed).
func ParsePhase(value string) (Phase, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	for i, name := range phaseNames {
		if name == key {
			return Phase(i), nil
		}
	}
	return PhaseIdle, fmt.Errorf("scene: unknown phase %q", value)
}

// Cluster is the region an entity belongs to.
type Cluster int

const (
	ClusterNone Cluster = iota
	ClusterTickets
	ClusterDrafts
	ClusterPublished
)

func (c Cluster) String() string {
	switch c {
	case ClusterTickets:
		return "tickets"
	case ClusterDrafts:
		return "drafts"
	case ClusterPublished:
		return "published"
	default:
		return "none"
	}
}

// Containment selects how drifting entities are kept on the map. A scene
// uses exactly one policy for its whole lifetime.
type Containment int

const (
	ContainClusters Containment = iota
	ContainWrap
)

// Vec is a canvas-space point or velocity in logical pixels.
type Vec struct {
	X, Y float64
}

func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(k float64) Vec { return Vec{v.X * k, v.Y * k} }
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }
func (v Vec) Dist(o Vec) float64 { return v.Sub(o).Len() }
func (v Vec) Lerp(o Vec, t float64) Vec { return v.Add(o.Sub(v).Scale(t)) }

// Entity is a background particle. Physics owns Pos and Vel; phases own
// Cluster, Active, Halo, Version and Target.
type Entity struct {
	ID      int
	Pos     Vec
	Vel     Vec
	Radius  float64
	Opacity float64
	Cluster Cluster
	Active  bool
	Halo    bool
	Version int
	Target  *Vec
}

// TrackedPoint is the published article and its current version.
type TrackedPoint struct {
	Pos        Vec
	Version    int
	PulseUntil time.Time
}

// Spark is a one-shot connector travelling from From to To.
type Spark struct {
	From     Vec
	To       Vec
	Progress float64
	Opacity  float64
}

// Head returns the spark's current position.
func (s Spark) Head() Vec {
	return s.From.Lerp(s.To, s.Progress)
}

// Scene is an immutable snapshot. Mutating operations always build a new
// value; slices are never shared with a previous snapshot once written.
type Scene struct {
	Phase            Phase
	Width            float64
	Height           float64
	Policy           Containment
	Entities         []Entity
	Sparks           []Spark
	ActiveID         int
	PublishedVersion int
	Tracked          *TrackedPoint
	GateFlashing     bool
	HighlightUntil   time.Time
	Revision         uint64

	nextID int
}

// Ready reports whether the canvas size is known.
func (s *Scene) Ready() bool {
	return s != nil && s.Width > 0 && s.Height > 0
}

// Layout returns the cluster geometry for the scene's canvas size.
func (s *Scene) Layout() Layout {
	return LayoutFor(s.Width, s.Height)
}

// Highlighting reports whether the provenance window is open at now.
func (s *Scene) Highlighting(now time.Time) bool {
	return s != nil && s.Tracked != nil && now.Before(s.HighlightUntil)
}

// Active returns the active entity, if any.
func (s *Scene) Active() (Entity, bool) {
	if idx := s.activeIndex(); idx >= 0 {
		return s.Entities[idx], true
	}
	return Entity{}, false
}

func (s *Scene) activeIndex() int {
	if s == nil || s.ActiveID == 0 {
		return -1
	}
	for i := range s.Entities {
		if s.Entities[i].ID == s.ActiveID {
			return i
		}
	}
	return -1
}

func (s Scene) clone() Scene {
	out := s
	out.Entities = append([]Entity(nil), s.Entities...)
	out.Sparks = append([]Spark(nil), s.Sparks...)
	if s.Tracked != nil {
		tracked := *s.Tracked
		out.Tracked = &tracked
	}
	return out
}
