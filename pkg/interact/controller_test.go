package interact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/hyperadar/pkg/layout"
	"github.com/elonfeng/hyperadar/pkg/token"
)

type recorder struct {
	selections []*token.Node
	hovers     []*Popover
}

func (r *recorder) SelectionChanged(n *token.Node) { r.selections = append(r.selections, n) }
func (r *recorder) HoverChanged(p *Popover)        { r.hovers = append(r.hovers, p) }

func setup(t *testing.T) (*Controller, *layout.Engine, *layout.ManualClock, *recorder) {
	t.Helper()
	clock := layout.NewManualClock()
	engine := layout.NewEngine(layout.DefaultConfig(), clock)
	rec := &recorder{}
	c := NewController(DefaultViewportConfig(), engine, clock, rec)
	dims, changed := c.Resize(1000)
	require.True(t, changed)
	engine.Restart([]token.Node{
		{ID: "a", Symbol: "AAA", Hype: 0.9},
		{ID: "b", Symbol: "BBB", Hype: 0.5},
		{ID: "c", Symbol: "CCC", Hype: 0.1},
	}, dims)
	return c, engine, clock, rec
}

// screenOf returns the screen position of a body's center.
func screenOf(t *testing.T, c *Controller, e *layout.Engine, id string) (float64, float64) {
	t.Helper()
	b, ok := e.Body(id)
	require.True(t, ok)
	return c.Transform().Apply(b.X, b.Y)
}

func TestResize_HeightClamped(t *testing.T) {
	c := NewController(ViewportConfig{}, nil, layout.NewManualClock(), nil)

	d, changed := c.Resize(1000)
	assert.True(t, changed)
	assert.Equal(t, 620.0, d.Height)

	d, _ = c.Resize(300)
	assert.Equal(t, 360.0, d.Height)

	d, _ = c.Resize(4000)
	assert.Equal(t, 820.0, d.Height)

	_, changed = c.Resize(4000)
	assert.False(t, changed)
	_, changed = c.Resize(0)
	assert.False(t, changed)
	_, changed = c.Resize(-10)
	assert.False(t, changed)
}

func TestZoom_StaysInBounds(t *testing.T) {
	c, _, clock, _ := setup(t)

	for i := 0; i < 40; i++ {
		c.ZoomIn()
		clock.Advance(50 * time.Millisecond)
		k := c.Advance().K
		require.LessOrEqual(t, k, MaxScale)
		require.GreaterOrEqual(t, k, MinScale)
	}
	clock.Advance(time.Second)
	assert.Equal(t, MaxScale, c.Advance().K)

	for i := 0; i < 40; i++ {
		c.ZoomOut()
	}
	clock.Advance(time.Second)
	assert.Equal(t, MinScale, c.Advance().K)
	assert.False(t, c.Animating())
}

func TestZoom_AnimatesAndKeepsCenter(t *testing.T) {
	c, _, clock, _ := setup(t)
	cx, cy := c.Dims().Center()

	c.ZoomIn()
	assert.True(t, c.Animating())
	clock.Advance(ZoomDuration / 2)
	mid := c.Advance()
	assert.Greater(t, mid.K, 1.0)
	assert.Less(t, mid.K, ZoomInFactor)
	wx, wy := mid.Invert(cx, cy)
	assert.InDelta(t, cx, wx, 1e-9)
	assert.InDelta(t, cy, wy, 1e-9)

	clock.Advance(ZoomDuration)
	end := c.Advance()
	assert.InDelta(t, ZoomInFactor, end.K, 1e-12)
	assert.False(t, c.Animating())

	c.Reset()
	clock.Advance(ZoomDuration)
	assert.Equal(t, Identity, c.Advance())
}

func TestWheelAndPan(t *testing.T) {
	c, _, _, _ := setup(t)

	c.Wheel(-500, 200, 100)
	tr := c.Transform()
	assert.InDelta(t, 2.0, tr.K, 1e-9)
	wx, wy := tr.Invert(200, 100)
	assert.InDelta(t, 200, wx, 1e-9)
	assert.InDelta(t, 100, wy, 1e-9)

	c.Pan(30, -20)
	assert.Equal(t, tr.X+30, c.Transform().X)
	assert.Equal(t, tr.Y-20, c.Transform().Y)

	c.Pinch(0, 0, 0)
	assert.InDelta(t, 2.0, c.Transform().K, 1e-9)
}

func TestPinch_ContinuesFromAnimatedScale(t *testing.T) {
	c, _, clock, _ := setup(t)
	cx, cy := c.Dims().Center()

	c.ZoomIn()
	clock.Advance(ZoomDuration / 2)
	c.Pinch(1, cx, cy)

	assert.False(t, c.Animating())
	k := c.Transform().K
	assert.Greater(t, k, 1.0, "pinch keeps the scale reached mid-animation")
	assert.Less(t, k, ZoomInFactor)

	clock.Advance(ZoomDuration)
	assert.Equal(t, k, c.Advance().K)
}

func TestTransform_RoundTrip(t *testing.T) {
	tr := Transform{K: 2.5, X: -40, Y: 12}
	sx, sy := tr.Apply(10, 20)
	x, y := tr.Invert(sx, sy)
	assert.InDelta(t, 10, x, 1e-9)
	assert.InDelta(t, 20, y, 1e-9)
}

func TestClick_SelectsAndClears(t *testing.T) {
	c, e, _, rec := setup(t)
	c.Wheel(-200, 0, 0)

	px, py := screenOf(t, c, e, "b")
	n, ok := c.Click(px, py)
	require.True(t, ok)
	assert.Equal(t, "b", n.ID)
	sel, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "BBB", sel.Symbol)

	// clicking the same node again emits nothing new
	c.Click(px, py)
	assert.Len(t, rec.selections, 1)

	_, ok = c.Click(-5000, -5000)
	assert.False(t, ok)
	_, ok = c.Selected()
	assert.False(t, ok)
	require.Len(t, rec.selections, 2)
	assert.Nil(t, rec.selections[1])

	c.ClearSelection()
	assert.Len(t, rec.selections, 2)
}

func TestHover_SinglePopover(t *testing.T) {
	c, e, _, rec := setup(t)
	base := LivePopovers()

	ax, ay := screenOf(t, c, e, "a")
	p, ok := c.Hover(ax, ay)
	require.True(t, ok)
	assert.Equal(t, "a", p.NodeID)
	assert.Equal(t, ax+14, p.X)

	bx, by := screenOf(t, c, e, "b")
	p, ok = c.Hover(bx, by)
	require.True(t, ok)
	assert.Equal(t, "b", p.NodeID)
	assert.Equal(t, base+1, LivePopovers())

	c.Leave()
	assert.Equal(t, base, LivePopovers())
	require.Len(t, rec.hovers, 3)
	assert.Nil(t, rec.hovers[2])
}

func TestClose_ReleasesPopover(t *testing.T) {
	c, e, _, rec := setup(t)
	base := LivePopovers()

	for i := 0; i < 5; i++ {
		ax, ay := screenOf(t, c, e, "a")
		c.Hover(ax, ay)
	}
	assert.Equal(t, base+1, LivePopovers())

	events := len(rec.hovers)
	c.Close()
	assert.Equal(t, base, LivePopovers())
	assert.True(t, c.Closed())
	assert.Len(t, rec.hovers, events)

	ax, ay := screenOf(t, c, e, "a")
	_, ok := c.Hover(ax, ay)
	assert.False(t, ok)
	assert.Equal(t, base, LivePopovers())
	c.Close()
}

func TestDrag_PinsAndReleases(t *testing.T) {
	c, e, clock, _ := setup(t)
	for i := 0; i < 50; i++ {
		clock.Advance(16 * time.Millisecond)
		e.Step()
	}
	before, _ := e.Body("a")

	px, py := screenOf(t, c, e, "a")
	id, ok := c.DragStart(px+2, py)
	require.True(t, ok)
	assert.Equal(t, "a", id)

	require.True(t, c.DragMove(px+102, py+40))
	b, _ := e.Body("a")
	assert.True(t, b.Pinned)
	assert.InDelta(t, before.X+100, b.X, 1e-9)
	assert.InDelta(t, before.Y+40, b.Y, 1e-9)

	_, hovering := c.Hover(px, py)
	assert.False(t, hovering)

	assert.True(t, c.DragEnd())
	b, _ = e.Body("a")
	assert.False(t, b.Pinned)
	assert.False(t, c.DragEnd())
	assert.False(t, c.DragMove(0, 0))

	_, ok = c.DragStart(-5000, -5000)
	assert.False(t, ok)
}

func TestSetNodes_DropsDeparted(t *testing.T) {
	c, e, _, rec := setup(t)
	base := LivePopovers()

	bx, by := screenOf(t, c, e, "b")
	c.Click(bx, by)
	ax, ay := screenOf(t, c, e, "a")
	c.Hover(ax, ay)

	c.SetNodes([]token.Node{{ID: "b", Symbol: "BBB", Hype: 3}})
	sel, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, 3.0, sel.Hype)
	_, ok = c.Popover()
	assert.False(t, ok)
	assert.Equal(t, base, LivePopovers())

	c.SetNodes(nil)
	_, ok = c.Selected()
	assert.False(t, ok)
	assert.Nil(t, rec.selections[len(rec.selections)-1])
}
