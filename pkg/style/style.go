// Package style holds the fixed set of bubble style templates. Renderers
// register these once and reference them by key, so the number of visual
// resources never grows with the number of tokens.
package style

import "math"

// Key indexes a template. Keys are dense in [0, Count).
type Key int

const (
	Plunge Key = iota
	Down
	Dip
	Flat
	Up
	Rally
	Moon

	Count = int(Moon) + 1
)

// Template is one pre-registered bubble look.
type Template struct {
	Key          Key    `json:"key"`
	Name         string `json:"name"`
	GradientFrom string `json:"gradient_from"`
	GradientTo   string `json:"gradient_to"`
	Stroke       string `json:"stroke"`
	Text         string `json:"text"`
}

var templates = [Count]Template{
	{Key: Plunge, Name: "plunge", GradientFrom: "#7f1d1d", GradientTo: "#ef4444", Stroke: "#fca5a5", Text: "#fff1f2"},
	{Key: Down, Name: "down", GradientFrom: "#991b1b", GradientTo: "#f87171", Stroke: "#fecaca", Text: "#fff1f2"},
	{Key: Dip, Name: "dip", GradientFrom: "#7c2d12", GradientTo: "#fb923c", Stroke: "#fed7aa", Text: "#fff7ed"},
	{Key: Flat, Name: "flat", GradientFrom: "#1e293b", GradientTo: "#64748b", Stroke: "#cbd5e1", Text: "#f8fafc"},
	{Key: Up, Name: "up", GradientFrom: "#14532d", GradientTo: "#4ade80", Stroke: "#bbf7d0", Text: "#f0fdf4"},
	{Key: Rally, Name: "rally", GradientFrom: "#166534", GradientTo: "#22c55e", Stroke: "#86efac", Text: "#f0fdf4"},
	{Key: Moon, Name: "moon", GradientFrom: "#713f12", GradientTo: "#fbbf24", Stroke: "#fde68a", Text: "#fffbeb"},
}

// Templates returns every template in key order.
func Templates() []Template {
	out := make([]Template, Count)
	copy(out, templates[:])
	return out
}

// Get returns the template for k; out-of-range keys read as Flat.
func Get(k Key) Template {
	if k < 0 || int(k) >= Count {
		return templates[Flat]
	}
	return templates[k]
}

// KeyFor buckets a percent price change.
func KeyFor(pct float64) Key {
	switch {
	case math.IsNaN(pct):
		return Flat
	case pct <= -20:
		return Plunge
	case pct <= -5:
		return Down
	case pct <= -0.5:
		return Dip
	case pct < 0.5:
		return Flat
	case pct < 5:
		return Up
	case pct < 20:
		return Rally
	}
	return Moon
}

func (k Key) String() string { return Get(k).Name }
