package animation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/kingrea/kmap/internal/clock"
	"github.com/kingrea/kmap/internal/render"
	"github.com/kingrea/kmap/internal/scene"
)

const (
	connectorAlpha = 0.25
	ringAlpha      = 0.6
	glowAlpha      = 0.18
	trailLength    = 12.0
)

// Surface is the drawing target for a frame. render.Canvas implements it.
type Surface interface {
	Ready() bool
	Size() (width, height float64)
	Clear()
	Dot(x, y float64, c colorful.Color, alpha float64)
	Line(x0, y0, x1, y1 float64, c colorful.Color, alpha float64)
	Ring(cx, cy, r float64, c colorful.Color, alpha float64)
	Disc(cx, cy, r float64, c colorful.Color, alpha float64)
	Label(x, y float64, text string, c colorful.Color)
}

// FrameStats summarizes what a frame did.
type FrameStats struct {
	Painted    bool
	Committed  bool
	Entities   int
	Sparks     int
	Connectors int
}

// Option customizes Driver construction.
type Option func(*Driver)

// WithClock overrides the clock used for pulse and highlight windows.
func WithClock(c clock.Clock) Option {
	return func(d *Driver) {
		if c != nil {
			d.clock = c
		}
	}
}

// Driver advances the scene store and paints it onto a surface.
type Driver struct {
	store   *scene.Store
	surface Surface
	clock   clock.Clock
}

// NewDriver binds a driver to the scene store and drawing surface.
func NewDriver(store *scene.Store, surface Surface, opts ...Option) *Driver {
	d := &Driver{store: store, surface: surface, clock: clock.Real()}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Frame runs one frame: advance physics, paint, and write back. When the
// surface is not ready the frame does nothing; the host keeps scheduling.
func (d *Driver) Frame() FrameStats {
	if d == nil || d.store == nil || d.surface == nil || !d.surface.Ready() {
		return FrameStats{}
	}
	width, height := d.surface.Size()
	d.store.Resize(width, height)
	base := d.store.Snapshot()
	if !base.Ready() {
		return FrameStats{}
	}
	now := d.clock.Now()

	d.surface.Clear()
	entities, sparks := scene.Step(base)
	view := *base
	view.Entities, view.Sparks = entities, sparks

	d.paintStructure(&view)
	d.paintSparks(sparks)
	d.paintEntities(&view, now)
	connectors := d.paintConnectors(&view, now)

	return FrameStats{
		Painted:    true,
		Committed:  d.store.Commit(base, entities, sparks),
		Entities:   len(entities),
		Sparks:     len(sparks),
		Connectors: connectors,
	}
}

func (d *Driver) paintStructure(s *scene.Scene) {
	if s.Policy != scene.ContainClusters {
		return
	}
	layout := s.Layout()
	for _, cluster := range []scene.Cluster{scene.ClusterTickets, scene.ClusterDrafts, scene.ClusterPublished} {
		center := layout.Center(cluster)
		d.surface.Ring(center.X, center.Y, layout.Radius, render.Ring, ringAlpha)
		d.surface.Label(center.X, center.Y+layout.Radius+render.CellHeight/2, cluster.String(), render.ClusterColor(cluster))
	}

	gateColor, strokes := render.GateIdle, 1
	if s.GateFlashing {
		gateColor, strokes = render.GateFlash, 2
	}
	top, bottom := s.Height*0.2, s.Height*0.8
	for i := 0; i < strokes; i++ {
		x := layout.GateX + float64(i)*render.CellWidth/2
		d.surface.Line(x, top, x, bottom, gateColor, 1)
	}
	d.surface.Label(layout.GateX, top-render.CellHeight/2, "◆ gate", gateColor)
}

func (d *Driver) paintSparks(sparks []scene.Spark) {
	for _, sp := range sparks {
		head := sp.Head()
		toward := sp.To.Sub(head)
		tail := head
		if dist := toward.Len(); dist > 0 {
			tail = head.Add(toward.Scale(math.Min(trailLength, dist) / dist))
		}
		d.surface.Line(head.X, head.Y, tail.X, tail.Y, render.SparkColor, sp.Opacity*0.5)
		d.surface.Disc(head.X, head.Y, 1.5, render.SparkColor, sp.Opacity)
	}
}

func (d *Driver) paintEntities(s *scene.Scene, now time.Time) {
	for _, e := range s.Entities {
		col := render.ClusterColor(e.Cluster)
		if e.Active || e.Halo {
			d.surface.Disc(e.Pos.X, e.Pos.Y, e.Radius+8, render.HaloColor, glowAlpha)
			d.surface.Ring(e.Pos.X, e.Pos.Y, e.Radius+4, render.HaloColor, 0.7)
			if e.Halo {
				d.surface.Ring(e.Pos.X, e.Pos.Y, e.Radius+8, render.HaloColor, 0.4)
			}
		}
		d.surface.Disc(e.Pos.X, e.Pos.Y, e.Radius, col, e.Opacity)
		if e.Version > 0 {
			d.surface.Label(e.Pos.X, e.Pos.Y, fmt.Sprintf("v%d", e.Version), render.LabelColor)
		}
	}
	if t := s.Tracked; t != nil && now.Before(t.PulseUntil) {
		remaining := float64(t.PulseUntil.Sub(now)) / float64(scene.PulseDuration)
		radius := 6 + 18*(1-remaining)
		d.surface.Ring(t.Pos.X, t.Pos.Y, radius, render.HaloColor, remaining)
	}
}

// paintConnectors draws provenance lines from the tracked point to the
// nearest entities while the highlight window is open, capped at
// scene.MaxConnectors regardless of population.
func (d *Driver) paintConnectors(s *scene.Scene, now time.Time) int {
	if !s.Highlighting(now) {
		return 0
	}
	origin := s.Tracked.Pos
	targets := nearest(s.Entities, origin, scene.MaxConnectors)
	for _, p := range targets {
		d.surface.Line(origin.X, origin.Y, p.X, p.Y, render.Connector, connectorAlpha)
	}
	return len(targets)
}

func nearest(entities []scene.Entity, origin scene.Vec, limit int) []scene.Vec {
	points := make([]scene.Vec, 0, len(entities))
	for _, e := range entities {
		if e.Pos == origin {
			continue
		}
		points = append(points, e.Pos)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Dist(origin) < points[j].Dist(origin)
	})
	if len(points) > limit {
		points = points[:limit]
	}
	return points
}
