package scene

import "math"

// Step advances one frame of physics and returns fresh entity and spark
// slices. Only Pos, Vel, Target (on arrival), and spark progress/opacity
// change; cluster, version and other phase-owned fields are carried over.
func Step(s *Scene) ([]Entity, []Spark) {
	if s == nil {
		return nil, nil
	}
	layout := s.Layout()
	entities := make([]Entity, len(s.Entities))
	for i, e := range s.Entities {
		switch {
		case e.Target != nil:
			e = ease(e)
		case e.Active:
			// Pinned at its last target until the next phase moves it.
		default:
			e.Pos = e.Pos.Add(e.Vel.Scale(DriftSpeed))
			if s.Policy == ContainWrap {
				e = wrap(e, s.Width, s.Height)
			} else {
				e = contain(e, layout)
			}
		}
		entities[i] = e
	}
	return entities, advanceSparks(s.Sparks)
}

func ease(e Entity) Entity {
	target := *e.Target
	e.Pos = e.Pos.Add(target.Sub(e.Pos).Scale(EaseFraction))
	if e.Pos.Dist(target) <= SnapDistance {
		e.Pos = target
		e.Target = nil
	}
	return e
}

func wrap(e Entity, width, height float64) Entity {
	if e.Pos.X < 0 {
		e.Pos.X = width
	} else if e.Pos.X > width {
		e.Pos.X = 0
	}
	if e.Pos.Y < 0 {
		e.Pos.Y = height
	} else if e.Pos.Y > height {
		e.Pos.Y = 0
	}
	return e
}

// contain bounces an entity that drifted out of its ring: velocity is
// reversed and damped, and the entity is placed back at 90% of the radius
// along the angle it left by.
func contain(e Entity, layout Layout) Entity {
	center := layout.Center(e.Cluster)
	radius := layout.RadiusFor(e.Cluster)
	offset := e.Pos.Sub(center)
	if offset.Len() <= radius {
		return e
	}
	angle := math.Atan2(offset.Y, offset.X)
	e.Vel = e.Vel.Scale(-BounceDamping)
	e.Pos = center.Add(Vec{math.Cos(angle), math.Sin(angle)}.Scale(radius * ContainmentSnap))
	return e
}

// returnTarget is the point inside its ring that an entity left outside by
// the pipeline eases back to, or nil when it is already contained.
func returnTarget(e Entity, layout Layout) *Vec {
	center := layout.Center(e.Cluster)
	radius := layout.RadiusFor(e.Cluster)
	offset := e.Pos.Sub(center)
	dist := offset.Len()
	if dist <= radius {
		return nil
	}
	back := center.Add(offset.Scale(radius * ContainmentSnap / dist))
	return &back
}

func advanceSparks(sparks []Spark) []Spark {
	if len(sparks) == 0 {
		return nil
	}
	out := make([]Spark, 0, len(sparks))
	for _, sp := range sparks {
		sp.Progress += SparkStep
		if sp.Progress >= 1 {
			continue
		}
		if sp.Progress > SparkFadeStart {
			sp.Opacity = (1 - sp.Progress) / (1 - SparkFadeStart)
		} else {
			sp.Opacity = 1
		}
		out = append(out, sp)
	}
	return out
}

// EntitiesEqual compares two entity collections by content.
func EntitiesEqual(a, b []Entity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Pos != y.Pos || x.Vel != y.Vel || x.Radius != y.Radius ||
			x.Opacity != y.Opacity || x.Cluster != y.Cluster || x.Active != y.Active ||
			x.Halo != y.Halo || x.Version != y.Version {
			return false
		}
		if (x.Target == nil) != (y.Target == nil) {
			return false
		}
		if x.Target != nil && *x.Target != *y.Target {
			return false
		}
	}
	return true
}

// SparksEqual compares two spark collections by content.
func SparksEqual(a, b []Spark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
