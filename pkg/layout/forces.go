package layout

import "math"

// minimum squared distance used by repulsion, so near-coincident pairs do not
// produce unbounded impulses.
const minDistance2 = 1.0

// jiggle returns a tiny deterministic offset for pair (i, j) used when two
// bodies sit on the same point.
func jiggle(i, j int) (float64, float64) {
	a := float64(i*31+j) * goldenAngle
	return 1e-6 * math.Cos(a), 1e-6 * math.Sin(a)
}

// applyRepulsion pushes every pair apart with a constant-strength charge.
func (e *Engine) applyRepulsion() {
	k := e.cfg.RepulsionStrength * e.alpha
	for i := 0; i < len(e.order); i++ {
		a := e.order[i]
		for j := i + 1; j < len(e.order); j++ {
			b := e.order[j]
			dx, dy := b.X-a.X, b.Y-a.Y
			if dx == 0 && dy == 0 {
				dx, dy = jiggle(i, j)
			}
			l2 := math.Max(dx*dx+dy*dy, minDistance2)
			w := k / l2
			a.VX += dx * w
			a.VY += dy * w
			b.VX -= dx * w
			b.VY -= dy * w
		}
	}
}

// applyCentering pulls every body toward (tx, ty).
func (e *Engine) applyCentering(tx, ty float64) {
	k := e.cfg.CenterStrength * e.alpha
	for _, b := range e.order {
		b.VX += (tx - b.X) * k
		b.VY += (ty - b.Y) * k
	}
}

// integrate applies damped velocity to free bodies and holds pinned ones.
func (e *Engine) integrate() {
	keep := 1 - e.cfg.VelocityDecay
	for _, b := range e.order {
		if b.Pinned {
			b.X, b.Y = b.PX, b.PY
			b.VX, b.VY = 0, 0
			continue
		}
		b.VX *= keep
		b.VY *= keep
		b.X += b.VX
		b.Y += b.VY
	}
}

// collisionTolerance is the overlap, in pixels, left after relaxation.
const collisionTolerance = 0.1

// maxExtraPasses bounds the passes run beyond CollisionPasses when overlap
// is still above collisionTolerance.
const maxExtraPasses = 32

// resolveCollisions runs CollisionPasses relaxation passes, then keeps going
// while any pair overlaps by more than collisionTolerance, up to
// maxExtraPasses more.
func (e *Engine) resolveCollisions() {
	worst := 0.0
	for pass := 0; pass < e.cfg.CollisionPasses; pass++ {
		worst = e.relaxCollisions()
	}
	for extra := 0; extra < maxExtraPasses && worst > collisionTolerance; extra++ {
		worst = e.relaxCollisions()
	}
}

// relaxCollisions runs one positional pass separating every overlapping pair
// to r(i)+r(j)+Padding and returns the largest overlap it found. Larger
// bubbles move less; pinned bubbles do not move.
func (e *Engine) relaxCollisions() float64 {
	worst := 0.0
	pad := e.cfg.Padding
	for i := 0; i < len(e.order); i++ {
		a := e.order[i]
		for j := i + 1; j < len(e.order); j++ {
			b := e.order[j]
			if a.Pinned && b.Pinned {
				continue
			}
			want := a.R + b.R + pad
			dx, dy := b.X-a.X, b.Y-a.Y
			d2 := dx*dx + dy*dy
			if d2 >= want*want {
				continue
			}
			if d2 == 0 {
				dx, dy = jiggle(i, j)
				d2 = dx*dx + dy*dy
			}
			l := math.Sqrt(d2)
			overlap := want - l
			worst = math.Max(worst, overlap)
			ux, uy := dx/l, dy/l

			var shareA, shareB float64
			switch {
			case a.Pinned:
				shareB = 1
			case b.Pinned:
				shareA = 1
			default:
				ra, rb := a.R*a.R, b.R*b.R
				if ra+rb == 0 {
					shareA, shareB = 0.5, 0.5
				} else {
					shareA = rb / (ra + rb)
					shareB = ra / (ra + rb)
				}
			}

			a.X -= ux * overlap * shareA
			a.Y -= uy * overlap * shareA
			b.X += ux * overlap * shareB
			b.Y += uy * overlap * shareB
		}
	}
	return worst
}
