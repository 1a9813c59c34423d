package scene

import "time"

// Physics and presentation tuning. These are fixed at build time.
const (
	DriftSpeed      = 0.35
	EaseFraction    = 0.08
	SnapDistance    = 2.0
	SparkStep       = 0.03
	SparkFadeStart  = 0.7
	BounceDamping   = 0.5
	ContainmentSnap = 0.9

	MinEntityRadius = 1.5
	MaxEntityRadius = 3.5
	MinOpacity      = 0.35
	MaxOpacity      = 0.9

	AreaPerEntity = 9000.0
	MinEntities   = 24
	MaxEntities   = 500

	GenerateSparkCount = 12
	PublishSparkCount  = 24
	SparkOriginJitter  = 12.0

	MaxConnectors = 20
)

const (
	GateFlashDuration = 500 * time.Millisecond
	HighlightDuration = 1200 * time.Millisecond
	PulseDuration     = 1500 * time.Millisecond
)
