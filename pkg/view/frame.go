package view

import (
	"github.com/elonfeng/hyperadar/pkg/interact"
	"github.com/elonfeng/hyperadar/pkg/layout"
	"github.com/elonfeng/hyperadar/pkg/style"
	"github.com/elonfeng/hyperadar/pkg/token"
)

// Bubble is one drawn node in world coordinates.
type Bubble struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Icon        string    `json:"icon,omitempty"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	R           float64   `json:"r"`
	Style       style.Key `json:"style"`
	PriceChange float64   `json:"price_change"`
	Pinned      bool      `json:"pinned,omitempty"`
}

// Frame is everything a renderer needs to draw one tick.
type Frame struct {
	Seq        uint64             `json:"seq"`
	Generation uint64             `json:"generation"`
	Step       uint64             `json:"step"`
	Width      float64            `json:"width"`
	Height     float64            `json:"height"`
	Transform  interact.Transform `json:"transform"`
	Selected   string             `json:"selected,omitempty"`
	Bubbles    []Bubble           `json:"bubbles"`
}

// Sink receives view output on the view's goroutine. Implementations must
// not block.
type Sink interface {
	Frame(f Frame)
	Selection(node *token.Node)
	Hover(p *interact.Popover)
}

func buildBubbles(placements []layout.Placement, nodes []token.Node) []Bubble {
	out := make([]Bubble, len(placements))
	for i, p := range placements {
		n := nodes[i]
		label := n.Symbol
		if label == "" {
			label = n.Name
		}
		out[i] = Bubble{
			ID:          p.ID,
			Label:       label,
			Icon:        n.Icon,
			X:           p.X,
			Y:           p.Y,
			R:           p.R,
			Style:       style.KeyFor(n.PriceChange),
			PriceChange: n.PriceChange,
			Pinned:      p.Pinned,
		}
	}
	return out
}
