package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/hyperadar/pkg/token"
)

func TestRadii_Monotonic(t *testing.T) {
	nodes := []token.Node{
		{ID: "a", Hype: 0.9}, {ID: "b", Hype: 0.1}, {ID: "c", Hype: 0},
		{ID: "d", Hype: 2.4}, {ID: "e", Hype: 0.9}, {ID: "f", Hype: 1.7},
	}
	radii := Radii(nodes, DefaultConfig())

	for i := range nodes {
		assert.GreaterOrEqual(t, radii[i], 0.0)
		for j := range nodes {
			if nodes[i].Hype > nodes[j].Hype {
				assert.GreaterOrEqual(t, radii[i], radii[j], "%s vs %s", nodes[i].ID, nodes[j].ID)
			}
		}
	}
}

func TestRadiusScale_Bounds(t *testing.T) {
	nodes := []token.Node{{Hype: 0}, {Hype: 4}}
	s := NewRadiusScale(nodes, DefaultConfig())

	assert.Equal(t, s.MinR, s.Radius(0))
	assert.Equal(t, s.MaxR, s.Radius(4))
	assert.InDelta(t, s.MinR+(s.MaxR-s.MinR)*0.5, s.Radius(1), 1e-9)
	assert.Equal(t, s.MaxR, s.Radius(100))
	assert.Equal(t, s.MinR, s.Radius(-3))
}

func TestRadiusScale_AllZero(t *testing.T) {
	s := NewRadiusScale([]token.Node{{Hype: 0}, {Hype: 0}}, DefaultConfig())
	assert.Equal(t, s.MinR, s.Radius(0))
	assert.Greater(t, s.MinR, 0.0)
}

func TestRadiusRange_ShrinksWithCount(t *testing.T) {
	cfg := DefaultConfig()
	min10, max10 := RadiusRange(10, cfg)
	min160, max160 := RadiusRange(160, cfg)
	min5000, max5000 := RadiusRange(5000, cfg)

	assert.Equal(t, cfg.MinRadius, min10)
	assert.Equal(t, cfg.MaxRadius, max10)
	assert.Less(t, max160, max10)
	assert.Less(t, min160, min10)
	assert.InDelta(t, cfg.MaxRadius*0.5, max160, 1e-9)
	assert.InDelta(t, cfg.MaxRadius*minDensity, max5000, 1e-9)
	assert.InDelta(t, cfg.MinRadius*minDensity, min5000, 1e-9)
}

func TestDiffNodes(t *testing.T) {
	prev := []token.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	next := []token.Node{{ID: "c"}, {ID: "d"}, {ID: "a"}}

	d := DiffNodes(prev, next)
	assert.Equal(t, []string{"d"}, d.Enter)
	assert.Equal(t, []string{"c", "a"}, d.Update)
	assert.Equal(t, []string{"b"}, d.Exit)

	empty := DiffNodes(nil, nil)
	assert.Empty(t, empty.Enter)
	assert.Empty(t, empty.Update)
	assert.Empty(t, empty.Exit)
}
