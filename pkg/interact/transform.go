package interact

import (
	"math"
	"time"
)

// Zoom limits and button factors.
const (
	MinScale = 0.5
	MaxScale = 6.0

	ZoomInFactor  = 1.25
	ZoomOutFactor = 0.8

	// ZoomDuration is the length of animated button zooms.
	ZoomDuration = 250 * time.Millisecond

	wheelSensitivity = 0.002
)

// Transform maps simulation space to screen space: screen = world*K + (X, Y).
// It is applied by the renderer only; the simulation never sees it.
type Transform struct {
	K float64 `json:"k"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Identity is the untransformed view.
var Identity = Transform{K: 1}

// Apply maps a world point to the screen.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return x*t.K + t.X, y*t.K + t.Y
}

// Invert maps a screen point back into the world.
func (t Transform) Invert(sx, sy float64) (float64, float64) {
	return (sx - t.X) / t.K, (sy - t.Y) / t.K
}

// ScaleAround multiplies the scale by factor, clamped to [MinScale, MaxScale],
// keeping the screen point (px, py) fixed.
func (t Transform) ScaleAround(factor, px, py float64) Transform {
	k := ClampScale(t.K * factor)
	wx, wy := t.Invert(px, py)
	return Transform{K: k, X: px - wx*k, Y: py - wy*k}
}

// Translate shifts the view by a screen-space delta.
func (t Transform) Translate(dx, dy float64) Transform {
	return Transform{K: t.K, X: t.X + dx, Y: t.Y + dy}
}

// ClampScale bounds k to the zoom limits.
func ClampScale(k float64) float64 {
	if math.IsNaN(k) {
		return 1
	}
	return math.Max(MinScale, math.Min(MaxScale, k))
}

// lerp interpolates every component with the same weight, which keeps any
// point fixed by both endpoints fixed along the way.
func lerp(a, b Transform, w float64) Transform {
	return Transform{
		K: a.K + (b.K-a.K)*w,
		X: a.X + (b.X-a.X)*w,
		Y: a.Y + (b.Y-a.Y)*w,
	}
}

func easeCubicInOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	f := 2*t - 2
	return 1 + f*f*f/2
}

// transition animates between two transforms.
type transition struct {
	from, to Transform
	start    time.Duration
	duration time.Duration
}

func (tr transition) at(now time.Duration) (Transform, bool) {
	elapsed := now - tr.start
	if elapsed >= tr.duration {
		return tr.to, true
	}
	if elapsed < 0 {
		elapsed = 0
	}
	w := easeCubicInOut(float64(elapsed) / float64(tr.duration))
	return lerp(tr.from, tr.to, w), false
}
