package render

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/kingrea/kmap/internal/scene"
)

var (
	Background = mustHex("#0b1020")
	Ring       = mustHex("#1e293b")
	GateIdle   = mustHex("#64748b")
	GateFlash  = mustHex("#f472b6")
	SparkColor = mustHex("#e879f9")
	Connector  = mustHex("#a5b4fc")
	HaloColor  = mustHex("#fde68a")
	LabelColor = mustHex("#f8fafc")
)

// ClusterColor maps an entity's cluster to its stroke color.
func ClusterColor(c scene.Cluster) colorful.Color {
	switch c {
	case scene.ClusterTickets:
		return mustHex("#60a5fa")
	case scene.ClusterDrafts:
		return mustHex("#fbbf24")
	case scene.ClusterPublished:
		return mustHex("#34d399")
	default:
		return mustHex("#94a3b8")
	}
}

// Fade blends c toward the background in Lab space. alpha is clamped to
// [0,1]; 1 returns c unchanged.
func Fade(c colorful.Color, alpha float64) colorful.Color {
	switch {
	case alpha <= 0:
		return Background
	case alpha >= 1:
		return c
	}
	return Background.BlendLab(c, alpha).Clamped()
}

func mustHex(value string) colorful.Color {
	c, err := colorful.Hex(value)
	if err != nil {
		panic(fmt.Sprintf("render: bad palette color %q: %v", value, err))
	}
	return c
}
