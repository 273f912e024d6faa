package layout

import (
	"math"

	"github.com/elonfeng/hyperadar/pkg/token"
)

// density factor bounds applied to the radius range.
const (
	minDensity = 0.35
	maxDensity = 1.0
)

// RadiusRange returns the bubble radius range for a set of n nodes. Larger
// sets get smaller bubbles.
func RadiusRange(n int, cfg Config) (minR, maxR float64) {
	cfg = cfg.withDefaults()
	density := maxDensity
	if n > 0 {
		density = math.Sqrt(float64(cfg.ReferenceCount) / float64(n))
		density = math.Max(minDensity, math.Min(maxDensity, density))
	}
	return cfg.MinRadius * density, cfg.MaxRadius * density
}

// RadiusScale is a square-root scale from [0, maxHype] onto [minR, maxR].
type RadiusScale struct {
	MaxHype    float64
	MinR, MaxR float64
}

// NewRadiusScale builds the scale for one node list.
func NewRadiusScale(nodes []token.Node, cfg Config) RadiusScale {
	minR, maxR := RadiusRange(len(nodes), cfg)
	top := 0.0
	for _, n := range nodes {
		if h := n.Hype; !math.IsNaN(h) && h > top {
			top = h
		}
	}
	return RadiusScale{MaxHype: top, MinR: minR, MaxR: maxR}
}

// Radius maps a hype value. Values are clamped into the domain, so the
// result is monotonic in hype and never below MinR.
func (s RadiusScale) Radius(hype float64) float64 {
	if s.MaxHype <= 0 || math.IsNaN(hype) {
		return s.MinR
	}
	t := math.Max(0, math.Min(1, hype/s.MaxHype))
	return s.MinR + (s.MaxR-s.MinR)*math.Sqrt(t)
}

// Radii returns one radius per node, in order.
func Radii(nodes []token.Node, cfg Config) []float64 {
	s := NewRadiusScale(nodes, cfg)
	out := make([]float64, len(nodes))
	for i, n := range nodes {
		out[i] = s.Radius(n.Hype)
	}
	return out
}
