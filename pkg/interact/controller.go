// Package interact turns pointer input into view transforms, selection,
// hover popovers and drag pins. It owns no goroutines; callers serialize
// access.
package interact

import (
	"math"
	"sync/atomic"

	"github.com/elonfeng/hyperadar/pkg/layout"
	"github.com/elonfeng/hyperadar/pkg/token"
)

// Scene is the part of the layout engine the controller drives.
type Scene interface {
	HitTest(x, y float64) (string, bool)
	Node(id string) (token.Node, bool)
	Body(id string) (layout.Body, bool)
	Pin(id string, x, y float64) bool
	Unpin(id string) bool
}

// Listener receives state changes. A nil node or popover means cleared.
type Listener interface {
	SelectionChanged(node *token.Node)
	HoverChanged(p *Popover)
}

// ViewportConfig bounds the drawing surface.
type ViewportConfig struct {
	AspectRatio   float64 `yaml:"aspect_ratio"`
	MinHeight     float64 `yaml:"min_height"`
	MaxHeight     float64 `yaml:"max_height"`
	PopoverOffset float64 `yaml:"popover_offset"`
}

func DefaultViewportConfig() ViewportConfig {
	return ViewportConfig{AspectRatio: 0.62, MinHeight: 360, MaxHeight: 820, PopoverOffset: 14}
}

func (c ViewportConfig) withDefaults() ViewportConfig {
	d := DefaultViewportConfig()
	if c.AspectRatio <= 0 {
		c.AspectRatio = d.AspectRatio
	}
	if c.MinHeight <= 0 {
		c.MinHeight = d.MinHeight
	}
	if c.MaxHeight < c.MinHeight {
		c.MaxHeight = math.Max(d.MaxHeight, c.MinHeight)
	}
	if c.PopoverOffset < 0 {
		c.PopoverOffset = d.PopoverOffset
	}
	return c
}

// Height derives the surface height for a width.
func (c ViewportConfig) Height(width float64) float64 {
	c = c.withDefaults()
	return math.Max(c.MinHeight, math.Min(c.MaxHeight, width*c.AspectRatio))
}

// Popover is the floating detail panel for the hovered node.
type Popover struct {
	NodeID string     `json:"node_id"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Node   token.Node `json:"node"`
}

var livePopovers atomic.Int64

// LivePopovers reports popovers created and not yet released, across all
// controllers.
func LivePopovers() int64 { return livePopovers.Load() }

// Controller holds the interaction state for one view.
type Controller struct {
	cfg      ViewportConfig
	scene    Scene
	clock    layout.Clock
	listener Listener

	dims      layout.Dims
	transform Transform
	anim      *transition

	selected *token.Node
	popover  *Popover

	dragging       string
	dragDX, dragDY float64

	closed bool
}

// NewController builds a controller over scene. listener may be nil.
func NewController(cfg ViewportConfig, scene Scene, clock layout.Clock, listener Listener) *Controller {
	if clock == nil {
		clock = layout.NewSystemClock()
	}
	return &Controller{
		cfg:       cfg.withDefaults(),
		scene:     scene,
		clock:     clock,
		listener:  listener,
		transform: Identity,
	}
}

// Dims returns the current surface size.
func (c *Controller) Dims() layout.Dims { return c.dims }

// Resize derives the height from width and reports whether the surface
// changed. Non-positive widths are ignored.
func (c *Controller) Resize(width float64) (layout.Dims, bool) {
	if c.closed || !(width > 0) || math.IsInf(width, 0) {
		return c.dims, false
	}
	next := layout.Dims{Width: width, Height: c.cfg.Height(width)}
	if next == c.dims {
		return c.dims, false
	}
	c.dims = next
	return next, true
}

// Transform returns the transform without advancing animations.
func (c *Controller) Transform() Transform { return c.transform }

// Animating reports whether a button zoom is in flight.
func (c *Controller) Animating() bool { return c.anim != nil }

// Advance steps any running zoom animation to the clock's current time.
func (c *Controller) Advance() Transform {
	if c.anim == nil {
		return c.transform
	}
	t, done := c.anim.at(c.clock.Now())
	c.transform = t
	if done {
		c.anim = nil
	}
	return c.transform
}

// goal is where the view is heading: the animation target if one is running.
func (c *Controller) goal() Transform {
	if c.anim != nil {
		return c.anim.to
	}
	return c.transform
}

func (c *Controller) animateTo(to Transform) {
	from := c.Advance()
	c.anim = &transition{from: from, to: to, start: c.clock.Now(), duration: ZoomDuration}
}

// ZoomIn animates a zoom toward the surface center.
func (c *Controller) ZoomIn() { c.zoomButton(ZoomInFactor) }

// ZoomOut animates a zoom away from the surface center.
func (c *Controller) ZoomOut() { c.zoomButton(ZoomOutFactor) }

func (c *Controller) zoomButton(factor float64) {
	if c.closed {
		return
	}
	cx, cy := c.dims.Center()
	c.animateTo(c.goal().ScaleAround(factor, cx, cy))
}

// Reset animates back to the identity transform.
func (c *Controller) Reset() {
	if c.closed {
		return
	}
	c.animateTo(Identity)
}

// Wheel zooms about the pointer. Positive delta zooms out.
func (c *Controller) Wheel(delta, px, py float64) {
	if c.closed || math.IsNaN(delta) {
		return
	}
	c.Pinch(math.Pow(2, -delta*wheelSensitivity), px, py)
}

// Pinch scales by factor about (px, py), interrupting any animation.
func (c *Controller) Pinch(factor, px, py float64) {
	if c.closed || !(factor > 0) || math.IsInf(factor, 0) {
		return
	}
	c.Advance()
	c.anim = nil
	c.transform = c.transform.ScaleAround(factor, px, py)
}

// Pan shifts the view by a screen delta, interrupting any animation.
func (c *Controller) Pan(dx, dy float64) {
	if c.closed {
		return
	}
	c.Advance()
	c.anim = nil
	c.transform = c.transform.Translate(dx, dy)
}

func (c *Controller) hit(px, py float64) (string, float64, float64, bool) {
	wx, wy := c.transform.Invert(px, py)
	id, ok := c.scene.HitTest(wx, wy)
	return id, wx, wy, ok
}

// Click selects the node under the pointer, or clears the selection when
// nothing is hit.
func (c *Controller) Click(px, py float64) (token.Node, bool) {
	if c.closed {
		return token.Node{}, false
	}
	id, _, _, ok := c.hit(px, py)
	if !ok {
		c.ClearSelection()
		return token.Node{}, false
	}
	node, ok := c.scene.Node(id)
	if !ok {
		c.ClearSelection()
		return token.Node{}, false
	}
	if c.selected != nil && c.selected.ID == id {
		return *c.selected, true
	}
	c.setSelected(&node)
	return node, true
}

// ClearSelection closes the detail panel.
func (c *Controller) ClearSelection() {
	if c.selected == nil {
		return
	}
	c.setSelected(nil)
}

func (c *Controller) setSelected(n *token.Node) {
	c.selected = n
	if c.listener != nil {
		c.listener.SelectionChanged(n)
	}
}

// Selected returns the selected node.
func (c *Controller) Selected() (token.Node, bool) {
	if c.selected == nil {
		return token.Node{}, false
	}
	return *c.selected, true
}

// Hover shows the popover for the node under the pointer, moving the
// existing one when possible. Hovering empty space hides it.
func (c *Controller) Hover(px, py float64) (*Popover, bool) {
	if c.closed || c.dragging != "" {
		return nil, false
	}
	id, _, _, ok := c.hit(px, py)
	var node token.Node
	if ok {
		node, ok = c.scene.Node(id)
	}
	if !ok {
		c.Leave()
		return nil, false
	}
	if c.popover == nil {
		c.popover = &Popover{}
		livePopovers.Add(1)
	}
	c.popover.NodeID = id
	c.popover.X = px + c.cfg.PopoverOffset
	c.popover.Y = py + c.cfg.PopoverOffset
	c.popover.Node = node
	p := *c.popover
	if c.listener != nil {
		c.listener.HoverChanged(&p)
	}
	return &p, true
}

// Leave hides the popover.
func (c *Controller) Leave() {
	if c.popover == nil {
		return
	}
	c.releasePopover()
	if c.listener != nil {
		c.listener.HoverChanged(nil)
	}
}

func (c *Controller) releasePopover() {
	if c.popover == nil {
		return
	}
	c.popover = nil
	livePopovers.Add(-1)
}

// Popover returns a copy of the live popover.
func (c *Controller) Popover() (Popover, bool) {
	if c.popover == nil {
		return Popover{}, false
	}
	return *c.popover, true
}

// DragStart pins the node under the pointer. The grab offset is kept so the
// bubble does not jump to the pointer.
func (c *Controller) DragStart(px, py float64) (string, bool) {
	if c.closed {
		return "", false
	}
	c.DragEnd()
	id, wx, wy, ok := c.hit(px, py)
	if !ok {
		return "", false
	}
	b, ok := c.scene.Body(id)
	if !ok || !c.scene.Pin(id, b.X, b.Y) {
		return "", false
	}
	c.dragging = id
	c.dragDX, c.dragDY = b.X-wx, b.Y-wy
	c.Leave()
	return id, true
}

// DragMove moves the pinned node with the pointer.
func (c *Controller) DragMove(px, py float64) bool {
	if c.closed || c.dragging == "" {
		return false
	}
	wx, wy := c.transform.Invert(px, py)
	if !c.scene.Pin(c.dragging, wx+c.dragDX, wy+c.dragDY) {
		c.dragging = ""
		return false
	}
	return true
}

// DragEnd releases the pin.
func (c *Controller) DragEnd() bool {
	if c.dragging == "" {
		return false
	}
	id := c.dragging
	c.dragging = ""
	return c.scene.Unpin(id)
}

// Dragging returns the id being dragged, if any.
func (c *Controller) Dragging() (string, bool) { return c.dragging, c.dragging != "" }

// SetNodes reconciles interaction state with a new node set: selection and
// hover on ids that left are dropped, survivors get fresh metrics.
func (c *Controller) SetNodes(nodes []token.Node) {
	if c.closed {
		return
	}
	byID := make(map[string]token.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	if c.selected != nil {
		if n, ok := byID[c.selected.ID]; ok {
			c.setSelected(&n)
		} else {
			c.setSelected(nil)
		}
	}
	if c.popover != nil {
		if n, ok := byID[c.popover.NodeID]; ok {
			c.popover.Node = n
			p := *c.popover
			if c.listener != nil {
				c.listener.HoverChanged(&p)
			}
		} else {
			c.Leave()
		}
	}
	if c.dragging != "" {
		if _, ok := byID[c.dragging]; !ok {
			c.dragging = ""
		}
	}
}

// Close tears down interaction state. No listener calls are made and the
// controller ignores further input.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	if c.dragging != "" {
		c.scene.Unpin(c.dragging)
		c.dragging = ""
	}
	c.releasePopover()
	c.selected = nil
	c.anim = nil
	c.listener = nil
	c.closed = true
}

// Closed reports whether Close has run.
func (c *Controller) Closed() bool { return c.closed }
