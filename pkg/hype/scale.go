package hype

import "math"

// Scale maps a value into [0,1].
type Scale interface {
	Map(v float64) float64
}

// LinearScale is a clamped min-max scale over an observed domain.
type LinearScale struct {
	min, max float64
	// degenerate is the output used when the domain has no width.
	degenerate float64
	flat       bool
}

// NewLinearScale builds a scale over values. An empty input, or one where
// every value is equal, produces a flat scale: all inputs map to 0 when the
// shared value is 0 (or there are no values) and to 0.5 otherwise.
func NewLinearScale(values []float64) LinearScale {
	s := LinearScale{}
	first := true
	for _, v := range values {
		v = finite(v)
		if first {
			s.min, s.max = v, v
			first = false
			continue
		}
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
	}

	if first || s.max == s.min {
		s.flat = true
		if !first && s.min != 0 {
			s.degenerate = 0.5
		}
	}
	return s
}

// Domain returns the observed bounds.
func (s LinearScale) Domain() (float64, float64) { return s.min, s.max }

func (s LinearScale) Map(v float64) float64 {
	if s.flat {
		return s.degenerate
	}
	return clamp01((finite(v) - s.min) / (s.max - s.min))
}

// PriceChangeBand is the fixed percent band mapped onto [0,1]. Moves beyond
// it saturate regardless of how the rest of the set moved.
const PriceChangeBand = 50.0

type priceScale struct{}

// PriceScale maps a percent change from [-50, 50] onto [0, 1], clamped.
var PriceScale Scale = priceScale{}

func (priceScale) Map(pct float64) float64 {
	return clamp01((finite(pct) + PriceChangeBand) / (2 * PriceChangeBand))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
