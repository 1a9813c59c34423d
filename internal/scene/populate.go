package scene

import (
	"math"
	"math/rand"
)

// EntityCount sizes the population proportionally to canvas area.
func EntityCount(width, height float64) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	n := int(width * height / AreaPerEntity)
	if n < MinEntities {
		return MinEntities
	}
	if n > MaxEntities {
		return MaxEntities
	}
	return n
}

// Populate seeds a fresh entity set. Half the entities are tickets, 30%
// drafts and the rest published articles, each placed inside its ring.
// IDs start at firstID and are returned contiguous.
func Populate(width, height float64, policy Containment, firstID int, rng *rand.Rand) []Entity {
	count := EntityCount(width, height)
	if count == 0 {
		return nil
	}
	layout := LayoutFor(width, height)
	entities := make([]Entity, 0, count)
	for i := 0; i < count; i++ {
		cluster := clusterFor(i, count)
		var pos Vec
		if policy == ContainWrap {
			pos = Vec{rng.Float64() * width, rng.Float64() * height}
		} else {
			angle := rng.Float64() * 2 * math.Pi
			dist := math.Sqrt(rng.Float64()) * layout.RadiusFor(cluster) * 0.8
			pos = layout.Center(cluster).Add(Vec{math.Cos(angle) * dist, math.Sin(angle) * dist})
		}
		entities = append(entities, Entity{
			ID:      firstID + i,
			Pos:     pos,
			Vel:     Vec{rng.Float64()*2 - 1, rng.Float64()*2 - 1},
			Radius:  MinEntityRadius + rng.Float64()*(MaxEntityRadius-MinEntityRadius),
			Opacity: MinOpacity + rng.Float64()*(MaxOpacity-MinOpacity),
			Cluster: cluster,
		})
	}
	return entities
}

func clusterFor(i, count int) Cluster {
	switch frac := float64(i) / float64(count); {
	case frac < 0.5:
		return ClusterTickets
	case frac < 0.8:
		return ClusterDrafts
	default:
		return ClusterPublished
	}
}
