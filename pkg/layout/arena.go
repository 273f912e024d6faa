package layout

import "github.com/elonfeng/hyperadar/pkg/token"

// Diff classifies ids between two node lists.
type Diff struct {
	Enter  []string `json:"enter"`
	Update []string `json:"update"`
	Exit   []string `json:"exit"`
}

// DiffNodes compares prev and next by id. Enter and Update follow next's
// order; Exit follows prev's order.
func DiffNodes(prev, next []token.Node) Diff {
	inPrev := make(map[string]bool, len(prev))
	for _, n := range prev {
		inPrev[n.ID] = true
	}
	inNext := make(map[string]bool, len(next))

	var d Diff
	for _, n := range next {
		if inNext[n.ID] {
			continue
		}
		inNext[n.ID] = true
		if inPrev[n.ID] {
			d.Update = append(d.Update, n.ID)
		} else {
			d.Enter = append(d.Enter, n.ID)
		}
	}
	for _, n := range prev {
		if !inNext[n.ID] {
			d.Exit = append(d.Exit, n.ID)
		}
	}
	return d
}

// Body is the mutable simulation state of one node.
type Body struct {
	ID     string
	X, Y   float64
	VX, VY float64
	R      float64

	Pinned bool
	PX, PY float64
}

// arena owns every live Body, keyed by node id.
type arena struct {
	bodies map[string]*Body
}

func newArena() *arena {
	return &arena{bodies: make(map[string]*Body)}
}

func (a *arena) get(id string) (*Body, bool) {
	b, ok := a.bodies[id]
	return b, ok
}

func (a *arena) alloc(id string) *Body {
	b := &Body{ID: id}
	a.bodies[id] = b
	return b
}

func (a *arena) release(id string) {
	delete(a.bodies, id)
}

func (a *arena) len() int { return len(a.bodies) }

func (a *arena) reset() {
	clear(a.bodies)
}
