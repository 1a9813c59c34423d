package scene

import (
	"math"
	"math/rand"
	"time"
)

// Reduce computes the scene that follows prev when the workflow reaches
// next. It never mutates prev. Spark batches are re-emitted on every call;
// all other effects are stable when the same phase is applied twice.
func Reduce(prev Scene, next Phase, now time.Time, rng *rand.Rand) Scene {
	s := prev.clone()
	s.Phase = next
	s.Revision++
	layout := s.Layout()
	if next != PhaseApproved {
		s.GateFlashing = false
	}

	switch next {
	case PhaseGenerating:
		idx := s.activeIndex()
		if idx < 0 {
			idx = selectEligible(s.Entities, rng)
			if idx < 0 {
				break
			}
			s.ActiveID = s.Entities[idx].ID
			s.Entities[idx].Active = true
		}
		mid := layout.Midpoint
		s.Entities[idx].Target = &mid
		s.Sparks = append(s.Sparks, burst(s.Entities[idx].Pos, mid, GenerateSparkCount, rng)...)

	case PhaseAtGate:
		if idx := s.activeIndex(); idx >= 0 {
			gate := layout.Gate()
			s.Entities[idx].Target = &gate
			s.Entities[idx].Cluster = ClusterDrafts
		}

	case PhaseApproved:
		s.GateFlashing = true

	case PhasePublishingV1:
		s.PublishedVersion = 1
		dest := layout.Center(ClusterPublished)
		origin := layout.Center(ClusterDrafts)
		if idx := s.activeIndex(); idx >= 0 {
			e := &s.Entities[idx]
			origin = e.Pos
			e.Target = &dest
			e.Halo = true
			e.Version = 1
			e.Cluster = ClusterPublished
		}
		s.Sparks = append(s.Sparks, burst(origin, dest, PublishSparkCount, rng)...)
		s.Tracked = &TrackedPoint{Pos: dest, Version: 1, PulseUntil: now.Add(PulseDuration)}

	case PhasePublishingV2:
		if s.Tracked == nil {
			s.Tracked = &TrackedPoint{Pos: layout.Center(ClusterPublished)}
		}
		if prev.Phase != PhasePublishingV2 {
			version := s.Tracked.Version + 1
			if version < 2 {
				version = 2
			}
			s.Tracked.Version = version
			s.Tracked.PulseUntil = now.Add(PulseDuration)
		}
		s.PublishedVersion = s.Tracked.Version
		if idx := s.activeIndex(); idx >= 0 {
			s.Entities[idx].Version = s.Tracked.Version
			s.Entities[idx].Halo = true
		}

	case PhaseProvenanceHighlight:
		s.HighlightUntil = now.Add(HighlightDuration)

	case PhaseIdle:
		for i := range s.Entities {
			e := &s.Entities[i]
			e.Active = false
			e.Halo = false
			e.Version = 0
			e.Target = nil
			if s.Policy == ContainClusters {
				e.Target = returnTarget(*e, layout)
			}
		}
		s.ActiveID = 0
		s.Sparks = nil
		s.PublishedVersion = 0
		s.Tracked = nil
		s.HighlightUntil = time.Time{}
	}
	return s
}

// selectEligible picks a random non-active ticket, falling back to any
// non-active entity when the tickets ring is exhausted.
func selectEligible(entities []Entity, rng *rand.Rand) int {
	var tickets, others []int
	for i, e := range entities {
		if e.Active {
			continue
		}
		if e.Cluster == ClusterTickets {
			tickets = append(tickets, i)
		} else {
			others = append(others, i)
		}
	}
	pool := tickets
	if len(pool) == 0 {
		pool = others
	}
	if len(pool) == 0 {
		return -1
	}
	if rng == nil {
		return pool[0]
	}
	return pool[rng.Intn(len(pool))]
}

func burst(origin, target Vec, count int, rng *rand.Rand) []Spark {
	sparks := make([]Spark, 0, count)
	for i := 0; i < count; i++ {
		jitter := Vec{}
		if rng != nil {
			angle := rng.Float64() * 2 * math.Pi
			dist := rng.Float64() * SparkOriginJitter
			jitter = Vec{math.Cos(angle) * dist, math.Sin(angle) * dist}
		}
		sparks = append(sparks, Spark{
			From:    origin.Add(jitter),
			To:      target,
			Opacity: 1,
		})
	}
	return sparks
}
