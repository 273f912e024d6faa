// Package trend watches ranked nodes across refreshes and reports tokens
// that are heating up.
package trend

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elonfeng/hyperadar/pkg/alert"
	"github.com/elonfeng/hyperadar/pkg/token"
)

// Options tunes hot-token detection.
type Options struct {
	MinHype     float64       `yaml:"min_hype"`
	MinRankRise int           `yaml:"min_rank_rise"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

func DefaultOptions() Options {
	return Options{MinHype: 0.6, MinRankRise: 10, Cooldown: time.Hour}
}

// Hot is one token that qualified in a detection pass.
type Hot struct {
	Node      token.Node
	Rank      int // 1-based
	PrevRank  int // 0 when the token was not ranked before
	HypeDelta float64
}

// Entered reports whether the token is new to the ranking.
func (h Hot) Entered() bool { return h.PrevRank == 0 }

type seen struct {
	rank int
	hype float64
}

// Detector remembers the previous ranking in memory only.
type Detector struct {
	mu      sync.Mutex
	opts    Options
	last    map[string]seen
	alerted map[string]time.Time
	primed  bool
	now     func() time.Time
}

// NewDetector creates a detector. Zero option fields take defaults.
func NewDetector(opts Options) *Detector {
	d := DefaultOptions()
	if opts.MinHype <= 0 {
		opts.MinHype = d.MinHype
	}
	if opts.MinRankRise <= 0 {
		opts.MinRankRise = d.MinRankRise
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = d.Cooldown
	}
	return &Detector{
		opts:    opts,
		last:    make(map[string]seen),
		alerted: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Detect compares nodes, ranked best first, with the previous pass. The
// first pass only records a baseline. A token is hot when its hype reaches
// MinHype and it either entered the ranking or climbed MinRankRise places,
// and it was not reported within Cooldown.
func (d *Detector) Detect(nodes []token.Node) []Hot {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	next := make(map[string]seen, len(nodes))
	var hot []Hot
	for i, n := range nodes {
		rank := i + 1
		next[n.ID] = seen{rank: rank, hype: n.Hype}
		if !d.primed || n.Hype < d.opts.MinHype {
			continue
		}
		prev, ok := d.last[n.ID]
		if ok && prev.rank-rank < d.opts.MinRankRise {
			continue
		}
		if at, ok := d.alerted[n.ID]; ok && now.Sub(at) < d.opts.Cooldown {
			continue
		}
		h := Hot{Node: n, Rank: rank, HypeDelta: n.Hype}
		if ok {
			h.PrevRank = prev.rank
			h.HypeDelta = n.Hype - prev.hype
		}
		hot = append(hot, h)
		d.alerted[n.ID] = now
	}

	for id, at := range d.alerted {
		if now.Sub(at) >= d.opts.Cooldown {
			delete(d.alerted, id)
		}
	}
	d.last = next
	d.primed = true

	sort.SliceStable(hot, func(i, j int) bool { return hot[i].Rank < hot[j].Rank })
	return hot
}

// Notification summarizes a detection pass for the alert manager.
func Notification(hot []Hot, tf token.Timeframe) *alert.Notification {
	if len(hot) == 0 {
		return nil
	}
	top := hot[0].Node
	name := top.Symbol
	if name == "" {
		name = top.ID
	}

	var lines []string
	nodes := make([]token.Node, len(hot))
	for i, h := range hot {
		nodes[i] = h.Node
		move := "new"
		if !h.Entered() {
			move = fmt.Sprintf("#%d → #%d", h.PrevRank, h.Rank)
		}
		lines = append(lines, fmt.Sprintf("%s (%s, hype %+.3f)", h.Node.Symbol, move, h.HypeDelta))
	}

	title := fmt.Sprintf("$%s is heating up", name)
	if len(hot) > 1 {
		title = fmt.Sprintf("$%s and %d more heating up", name, len(hot)-1)
	}
	return &alert.Notification{
		Kind:      alert.KindHot,
		Title:     title,
		Body:      strings.Join(lines, "\n"),
		URL:       top.URL,
		Hype:      top.Hype,
		Timeframe: tf,
		Nodes:     nodes,
		At:        time.Now().UTC(),
	}
}
