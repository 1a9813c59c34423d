// Package scene owns the Living Knowledge Map's state: the drifting cluster
// entities, the tracked article point, spark trails and the current workflow
// phase. Reduce maps (scene, phase) to the next scene, Step advances one frame
// of physics, and Store serializes both writers behind whole-state
// replacement so frame reads never observe a half-applied phase.
package scene
