package layout

import (
	"math"
	"time"

	"github.com/elonfeng/hyperadar/pkg/token"
)

// Dims is the viewport size in pixels.
type Dims struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the viewport midpoint.
func (d Dims) Center() (float64, float64) { return d.Width / 2, d.Height / 2 }

// Placement is the render-facing view of one body.
type Placement struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	R      float64 `json:"r"`
	Pinned bool    `json:"pinned,omitempty"`
}

// golden angle used for phyllotaxis seeding and jiggle directions.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Engine runs one force simulation generation at a time. It is not safe for
// concurrent use; the owner drives it from a single goroutine.
type Engine struct {
	cfg   Config
	clock Clock

	nodes  []token.Node
	order  []*Body
	arena  *arena
	dims   Dims
	scale  RadiusScale
	alpha  float64
	origin time.Duration

	generation uint64
	running    bool
	steps      uint64
}

// NewEngine creates an idle engine. A nil clock uses the system clock.
func NewEngine(cfg Config, clock Clock) *Engine {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &Engine{
		cfg:   cfg.withDefaults(),
		clock: clock,
		arena: newArena(),
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Restart begins a new generation for nodes laid out in dims. The previous
// generation ends here: alpha and the drift origin reset, bodies for ids that
// left are released and bodies for new ids are seeded near the center.
// Surviving ids keep their motion when ReuseState is set.
func (e *Engine) Restart(nodes []token.Node, dims Dims) Diff {
	nodes = uniqueNodes(nodes)
	diff := DiffNodes(e.nodes, nodes)

	if !e.cfg.ReuseState {
		e.arena.reset()
	} else {
		for _, id := range diff.Exit {
			e.arena.release(id)
		}
		e.rescale(e.dims, dims)
	}

	e.scale = NewRadiusScale(nodes, e.cfg)
	spacing := (e.scale.MinR + e.scale.MaxR) / 2
	cx, cy := dims.Center()

	e.order = make([]*Body, len(nodes))
	for i, n := range nodes {
		b, ok := e.arena.get(n.ID)
		if !ok {
			b = e.arena.alloc(n.ID)
			r := spacing * math.Sqrt(0.5+float64(i))
			a := float64(i) * goldenAngle
			b.X = cx + r*math.Cos(a)
			b.Y = cy + r*math.Sin(a)
		}
		b.R = e.scale.Radius(n.Hype)
		e.order[i] = b
	}

	e.nodes = nodes
	e.dims = dims
	e.alpha = 1
	e.origin = e.clock.Now()
	e.generation++
	e.running = true
	e.steps = 0
	return diff
}

// rescale maps surviving bodies from the old viewport into the new one.
func (e *Engine) rescale(from, to Dims) {
	if from == to || from.Width <= 0 || from.Height <= 0 {
		return
	}
	k := math.Min(to.Width/from.Width, to.Height/from.Height)
	fx, fy := from.Center()
	tx, ty := to.Center()
	for _, b := range e.arena.bodies {
		b.X = tx + (b.X-fx)*k
		b.Y = ty + (b.Y-fy)*k
		b.PX = tx + (b.PX-fx)*k
		b.PY = ty + (b.PY-fy)*k
	}
}

// Stop ends the current generation. Step is a no-op until the next Restart.
func (e *Engine) Stop() { e.running = false }

func (e *Engine) Running() bool      { return e.running }
func (e *Engine) Generation() uint64 { return e.generation }
func (e *Engine) Alpha() float64     { return e.alpha }
func (e *Engine) Dims() Dims         { return e.dims }
func (e *Engine) Steps() uint64      { return e.steps }

// Nodes returns the node list of the current generation.
func (e *Engine) Nodes() []token.Node { return e.nodes }

// Live returns the number of bodies held by the arena.
func (e *Engine) Live() int { return e.arena.len() }

// Body returns a copy of the state for id.
func (e *Engine) Body(id string) (Body, bool) {
	b, ok := e.arena.get(id)
	if !ok {
		return Body{}, false
	}
	return *b, true
}

// Target returns the drifting centering target at the clock's current time.
func (e *Engine) Target() (float64, float64) {
	return e.target(e.clock.Now() - e.origin)
}

func (e *Engine) target(elapsed time.Duration) (float64, float64) {
	cx, cy := e.dims.Center()
	amp := e.cfg.DriftAmplitude
	if amp == 0 {
		return cx, cy
	}
	t := elapsed.Seconds()
	px := e.cfg.DriftPeriodX.Seconds()
	py := e.cfg.DriftPeriodY.Seconds()
	return cx + amp*e.dims.Width*math.Sin(2*math.Pi*t/px),
		cy + amp*e.dims.Height*math.Cos(2*math.Pi*t/py)
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	if !e.running || len(e.order) == 0 {
		return
	}

	e.alpha += (e.cfg.AlphaFloor - e.alpha) * e.cfg.AlphaDecay
	tx, ty := e.target(e.clock.Now() - e.origin)

	e.applyRepulsion()
	e.applyCentering(tx, ty)
	e.integrate()
	e.resolveCollisions()
	e.steps++
}

// Pin holds id at (x, y) until Unpin. The body still blocks others.
func (e *Engine) Pin(id string, x, y float64) bool {
	b, ok := e.arena.get(id)
	if !ok {
		return false
	}
	b.Pinned = true
	b.PX, b.PY = x, y
	b.X, b.Y = x, y
	b.VX, b.VY = 0, 0
	return true
}

// Unpin releases id and reheats the simulation so neighbours re-settle.
func (e *Engine) Unpin(id string) bool {
	b, ok := e.arena.get(id)
	if !ok || !b.Pinned {
		return false
	}
	b.Pinned = false
	e.alpha = math.Max(e.alpha, e.cfg.ReleaseAlpha)
	return true
}

// Placements returns the current positions in node order.
func (e *Engine) Placements() []Placement {
	out := make([]Placement, len(e.order))
	for i, b := range e.order {
		out[i] = Placement{ID: b.ID, X: b.X, Y: b.Y, R: b.R, Pinned: b.Pinned}
	}
	return out
}

// HitTest returns the id of the body containing the world point (x, y). When
// bubbles overlap the one whose center is nearest wins.
func (e *Engine) HitTest(x, y float64) (string, bool) {
	best, bestD := "", math.Inf(1)
	for _, b := range e.order {
		d := math.Hypot(x-b.X, y-b.Y)
		if d <= b.R && d < bestD {
			best, bestD = b.ID, d
		}
	}
	return best, best != ""
}

// Node returns the node with id from the current generation.
func (e *Engine) Node(id string) (token.Node, bool) {
	for _, n := range e.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return token.Node{}, false
}

func uniqueNodes(nodes []token.Node) []token.Node {
	seen := make(map[string]bool, len(nodes))
	out := make([]token.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ID == "" || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out
}
