// Package view runs one interactive bubble view: a single goroutine owns the
// layout engine, the interaction controller and the scoring config, and every
// change is posted to it.
package view

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/hyperadar/internal/metrics"
	"github.com/elonfeng/hyperadar/pkg/hype"
	"github.com/elonfeng/hyperadar/pkg/interact"
	"github.com/elonfeng/hyperadar/pkg/layout"
	"github.com/elonfeng/hyperadar/pkg/token"
)

// Options wires a view. Only Sink is required.
type Options struct {
	ID       string
	Scoring  hype.Config
	Layout   layout.Config
	Viewport interact.ViewportConfig
	Clock    layout.Clock
	Tickers  TickerFactory
	Sink     Sink
	Logger   *logrus.Entry
	Metrics  *metrics.Metrics

	// Width, when positive, sizes the surface before the first Resize.
	Width float64

	// OnSelect is called on the view goroutine when a different node is
	// opened. It must not block.
	OnSelect func(node token.Node, tf token.Timeframe)
}

// Stats is a point-in-time view summary.
type Stats struct {
	Seq        uint64
	Generation uint64
	Nodes      int
	Bodies     int
	Timers     int
	Steps      uint64
	Dims       layout.Dims
	Transform  interact.Transform
	Selected   string
	Closed     bool
}

// View is safe for concurrent use. Methods post work to the view goroutine
// and return immediately; after Close they are no-ops.
type View struct {
	id      string
	inbox   chan func()
	closing chan struct{}
	done    chan struct{}
	once    sync.Once

	// owned by the loop goroutine
	cfg      hype.Config
	snap     token.Snapshot
	hasSnap  bool
	engine   *layout.Engine
	ctrl     *interact.Controller
	tickers  TickerFactory
	ticker   Ticker
	timers   int
	sink     Sink
	log      *logrus.Entry
	metrics  *metrics.Metrics
	onSelect func(token.Node, token.Timeframe)

	selectedID string
}

// New starts a view.
func New(opts Options) *View {
	if opts.Clock == nil {
		opts.Clock = layout.NewSystemClock()
	}
	if opts.Tickers == nil {
		opts.Tickers = SystemTickers
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		opts.Logger = logrus.NewEntry(l)
	}
	if opts.Scoring == (hype.Config{}) {
		opts.Scoring = hype.DefaultConfig()
	}

	v := &View{
		id:       opts.ID,
		inbox:    make(chan func(), 64),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		cfg:      opts.Scoring,
		engine:   layout.NewEngine(opts.Layout, opts.Clock),
		tickers:  opts.Tickers,
		sink:     opts.Sink,
		log:      opts.Logger.WithField("view", opts.ID),
		metrics:  opts.Metrics,
		onSelect: opts.OnSelect,
	}
	v.ctrl = interact.NewController(opts.Viewport, v.engine, opts.Clock, listener{v})
	if opts.Width > 0 {
		v.ctrl.Resize(opts.Width)
	}
	if v.metrics != nil {
		v.metrics.ActiveViews.Inc()
	}

	go v.loop()
	return v
}

// ID returns the view identifier.
func (v *View) ID() string { return v.id }

// Done is closed once the view goroutine has exited.
func (v *View) Done() <-chan struct{} { return v.done }

func (v *View) loop() {
	defer close(v.done)
	for {
		var tick <-chan time.Time
		if v.ticker != nil {
			tick = v.ticker.C()
		}
		select {
		case fn := <-v.inbox:
			fn()
		case <-tick:
			v.step()
		case <-v.closing:
			v.shutdown()
			return
		}
	}
}

// post queues fn for the loop. It reports false once the view is closing.
func (v *View) post(fn func()) bool {
	select {
	case <-v.closing:
		return false
	default:
	}
	select {
	case v.inbox <- fn:
		return true
	case <-v.closing:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (v *View) call(fn func()) bool {
	ran := make(chan struct{})
	if !v.post(func() { fn(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-v.done:
		return false
	}
}

// Close stops the frame timer, tears down interaction state and waits for
// the view goroutine to exit. It is idempotent.
func (v *View) Close() {
	v.once.Do(func() { close(v.closing) })
	<-v.done
}

func (v *View) shutdown() {
	v.stopTicker()
	v.ctrl.Close()
	v.engine.Stop()
	if v.metrics != nil {
		v.metrics.ActiveViews.Dec()
	}
	v.log.Debug("view closed")
}

func (v *View) stopTicker() {
	if v.ticker == nil {
		return
	}
	v.ticker.Stop()
	v.ticker = nil
	v.timers--
	if v.metrics != nil {
		v.metrics.LiveTimers.Dec()
	}
}

// restart rescores the held snapshot and begins a new generation. The old
// generation's timer is stopped first, so at most one is ever live.
func (v *View) restart() {
	v.stopTicker()

	dims := v.ctrl.Dims()
	if !v.hasSnap || dims.Width <= 0 {
		return
	}

	nodes := hype.Score(v.snap, v.cfg)
	v.ctrl.SetNodes(nodes)
	diff := v.engine.Restart(nodes, dims)
	if v.metrics != nil {
		v.metrics.Generations.Inc()
	}
	v.log.WithFields(logrus.Fields{
		"generation": v.engine.Generation(),
		"nodes":      len(nodes),
		"enter":      len(diff.Enter),
		"exit":       len(diff.Exit),
		"timeframe":  v.cfg.Timeframe,
	}).Debug("generation started")

	if len(nodes) > 0 {
		v.ticker = v.tickers(v.engine.Config().TickInterval)
		v.timers++
		if v.metrics != nil {
			v.metrics.LiveTimers.Inc()
		}
	}
	v.emitFrame()
}

func (v *View) step() {
	v.ctrl.Advance()
	v.engine.Step()
	if v.metrics != nil {
		v.metrics.SimulationSteps.Inc()
	}
	v.emitFrame()
}

func (v *View) emitFrame() {
	if v.sink == nil {
		return
	}
	dims := v.engine.Dims()
	f := Frame{
		Seq:        v.snap.Seq,
		Generation: v.engine.Generation(),
		Step:       v.engine.Steps(),
		Width:      dims.Width,
		Height:     dims.Height,
		Transform:  v.ctrl.Transform(),
		Bubbles:    buildBubbles(v.engine.Placements(), v.engine.Nodes()),
	}
	if n, ok := v.ctrl.Selected(); ok {
		f.Selected = n.ID
	}
	v.sink.Frame(f)
}

// SetSnapshot offers a new upstream snapshot. Snapshots not newer than the
// one held are ignored.
func (v *View) SetSnapshot(snap token.Snapshot) bool {
	return v.post(func() {
		if v.hasSnap && snap.Seq <= v.snap.Seq {
			if v.metrics != nil {
				v.metrics.StaleSnapshots.Inc()
			}
			v.log.WithFields(logrus.Fields{"seq": snap.Seq, "held": v.snap.Seq}).Debug("stale snapshot ignored")
			return
		}
		v.snap = snap
		v.hasSnap = true
		v.restart()
	})
}

// SetConfig replaces the scoring config and restarts when it changed.
func (v *View) SetConfig(cfg hype.Config) bool {
	return v.post(func() {
		if cfg == v.cfg {
			return
		}
		v.cfg = cfg
		v.restart()
	})
}

// Config returns the scoring config in effect.
func (v *View) Config() hype.Config {
	var cfg hype.Config
	v.call(func() { cfg = v.cfg })
	return cfg
}

// Resize sets the surface width. A changed surface starts a new generation.
func (v *View) Resize(width float64) bool {
	return v.post(func() {
		if _, changed := v.ctrl.Resize(width); changed {
			v.restart()
		}
	})
}

func (v *View) Click(px, py float64) bool {
	return v.post(func() {
		v.ctrl.Click(px, py)
		v.emitFrame()
	})
}

func (v *View) ClearSelection() bool {
	return v.post(func() {
		v.ctrl.ClearSelection()
		v.emitFrame()
	})
}

func (v *View) Hover(px, py float64) bool {
	return v.post(func() { v.ctrl.Hover(px, py) })
}

func (v *View) Leave() bool {
	return v.post(func() { v.ctrl.Leave() })
}

func (v *View) DragStart(px, py float64) bool {
	return v.post(func() { v.ctrl.DragStart(px, py) })
}

func (v *View) DragMove(px, py float64) bool {
	return v.post(func() { v.ctrl.DragMove(px, py) })
}

func (v *View) DragEnd() bool {
	return v.post(func() { v.ctrl.DragEnd() })
}

func (v *View) ZoomIn() bool    { return v.post(v.ctrl.ZoomIn) }
func (v *View) ZoomOut() bool   { return v.post(v.ctrl.ZoomOut) }
func (v *View) ZoomReset() bool { return v.post(v.ctrl.Reset) }

func (v *View) Wheel(delta, px, py float64) bool {
	return v.post(func() { v.ctrl.Wheel(delta, px, py) })
}

func (v *View) Pinch(factor, px, py float64) bool {
	return v.post(func() { v.ctrl.Pinch(factor, px, py) })
}

func (v *View) Pan(dx, dy float64) bool {
	return v.post(func() { v.ctrl.Pan(dx, dy) })
}

// Stats reports the view state once pending work has run.
func (v *View) Stats() Stats {
	var s Stats
	ok := v.call(func() {
		s = Stats{
			Seq:        v.snap.Seq,
			Generation: v.engine.Generation(),
			Nodes:      len(v.engine.Nodes()),
			Bodies:     v.engine.Live(),
			Timers:     v.timers,
			Steps:      v.engine.Steps(),
			Dims:       v.ctrl.Dims(),
			Transform:  v.ctrl.Advance(),
		}
		if n, ok := v.ctrl.Selected(); ok {
			s.Selected = n.ID
		}
	})
	if !ok {
		return Stats{Closed: true}
	}
	return s
}

// Placements returns the current layout once pending work has run.
func (v *View) Placements() []layout.Placement {
	var out []layout.Placement
	v.call(func() { out = v.engine.Placements() })
	return out
}

// listener forwards controller events to the sink. It runs on the loop.
type listener struct{ v *View }

func (l listener) SelectionChanged(n *token.Node) {
	if l.v.sink != nil {
		l.v.sink.Selection(n)
	}
	if n == nil {
		l.v.selectedID = ""
		return
	}
	if n.ID != l.v.selectedID && l.v.onSelect != nil {
		l.v.onSelect(*n, l.v.cfg.Timeframe)
	}
	l.v.selectedID = n.ID
}

func (l listener) HoverChanged(p *interact.Popover) {
	if l.v.sink != nil {
		l.v.sink.Hover(p)
	}
}
