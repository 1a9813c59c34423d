package scene

import "math"

// Layout is the cluster geometry derived from a canvas size.
type Layout struct {
	Width    float64
	Height   float64
	Radius   float64
	GateX    float64
	Midpoint Vec
	tickets  Vec
	drafts   Vec
	public   Vec
}

// LayoutFor places the tickets, drafts and published rings left to right
// with the governance gate between drafts and published.
func LayoutFor(width, height float64) Layout {
	mid := Vec{width / 2, height / 2}
	return Layout{
		Width:    width,
		Height:   height,
		Radius:   math.Max(1, math.Min(width*0.11, height*0.35)),
		GateX:    width * 0.62,
		Midpoint: mid,
		tickets:  Vec{width * 0.2, mid.Y},
		drafts:   Vec{width * 0.45, mid.Y},
		public:   Vec{width * 0.82, mid.Y},
	}
}

// Center returns the ring center for a cluster. Unclustered entities are
// held by a ring around the midpoint.
func (l Layout) Center(c Cluster) Vec {
	switch c {
	case ClusterTickets:
		return l.tickets
	case ClusterDrafts:
		return l.drafts
	case ClusterPublished:
		return l.public
	default:
		return l.Midpoint
	}
}

// RadiusFor returns the containment radius for a cluster.
func (l Layout) RadiusFor(c Cluster) float64 {
	if c == ClusterNone {
		return math.Min(l.Width, l.Height) / 2
	}
	return l.Radius
}

// Gate returns the point an entity waits at for review.
func (l Layout) Gate() Vec {
	return Vec{l.GateX, l.Midpoint.Y}
}
