package layout

import "time"

// Config tunes the force simulation. Zero fields take the defaults below,
// except DriftAmplitude where zero disables drift.
type Config struct {
	// Padding is the gap kept between bubble edges.
	Padding float64 `yaml:"padding"`
	// RepulsionStrength is the pairwise charge; negative pushes apart.
	RepulsionStrength float64 `yaml:"repulsion_strength"`
	// CollisionPasses is the minimum number of relaxation passes per step
	// (at least 2). More run while bubbles still overlap.
	CollisionPasses int `yaml:"collision_passes"`
	// CenterStrength is the pull toward the drifting target.
	CenterStrength float64 `yaml:"center_strength"`
	// VelocityDecay is the fraction of velocity lost each step.
	VelocityDecay float64 `yaml:"velocity_decay"`
	// AlphaDecay is the per-step rate at which energy approaches AlphaFloor.
	AlphaDecay float64 `yaml:"alpha_decay"`
	// AlphaFloor keeps the simulation alive; it must stay above zero.
	AlphaFloor float64 `yaml:"alpha_floor"`
	// ReleaseAlpha is the energy restored when a dragged bubble is dropped.
	ReleaseAlpha float64 `yaml:"release_alpha"`

	// DriftAmplitude is the drift radius as a fraction of the viewport.
	DriftAmplitude float64       `yaml:"drift_amplitude"`
	DriftPeriodX   time.Duration `yaml:"drift_period_x"`
	DriftPeriodY   time.Duration `yaml:"drift_period_y"`

	MinRadius      float64 `yaml:"min_radius"`
	MaxRadius      float64 `yaml:"max_radius"`
	ReferenceCount int     `yaml:"reference_count"`

	// ReuseState keeps position and velocity for ids that survive a restart.
	// Off by default: every generation is reseeded.
	ReuseState bool `yaml:"reuse_state"`

	TickInterval time.Duration `yaml:"tick_interval"`
}

// DefaultConfig returns the stock simulation parameters.
func DefaultConfig() Config {
	return Config{
		Padding:           3,
		RepulsionStrength: -12,
		CollisionPasses:   6,
		CenterStrength:    0.03,
		VelocityDecay:     0.4,
		AlphaDecay:        0.0228,
		AlphaFloor:        0.02,
		ReleaseAlpha:      0.3,
		DriftAmplitude:    0.04,
		DriftPeriodX:      23 * time.Second,
		DriftPeriodY:      31 * time.Second,
		MinRadius:         12,
		MaxRadius:         72,
		ReferenceCount:    40,
		TickInterval:      16 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Padding < 0 {
		c.Padding = 0
	}
	if c.Padding == 0 {
		c.Padding = d.Padding
	}
	if c.RepulsionStrength == 0 {
		c.RepulsionStrength = d.RepulsionStrength
	}
	if c.CollisionPasses < 2 {
		c.CollisionPasses = max(d.CollisionPasses, 2)
	}
	if c.CenterStrength <= 0 {
		c.CenterStrength = d.CenterStrength
	}
	if c.VelocityDecay <= 0 || c.VelocityDecay >= 1 {
		c.VelocityDecay = d.VelocityDecay
	}
	if c.AlphaDecay <= 0 || c.AlphaDecay >= 1 {
		c.AlphaDecay = d.AlphaDecay
	}
	if c.AlphaFloor <= 0 {
		c.AlphaFloor = d.AlphaFloor
	}
	if c.ReleaseAlpha <= 0 {
		c.ReleaseAlpha = d.ReleaseAlpha
	}
	if c.DriftAmplitude < 0 {
		c.DriftAmplitude = 0
	}
	if c.DriftPeriodX <= 0 {
		c.DriftPeriodX = d.DriftPeriodX
	}
	if c.DriftPeriodY <= 0 {
		c.DriftPeriodY = d.DriftPeriodY
	}
	if c.MinRadius <= 0 {
		c.MinRadius = d.MinRadius
	}
	if c.MaxRadius < c.MinRadius {
		c.MaxRadius = max(d.MaxRadius, c.MinRadius)
	}
	if c.ReferenceCount <= 0 {
		c.ReferenceCount = d.ReferenceCount
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	return c
}
