package geom

// Cubic is a cubic bezier curve.  P0 and P3 are the endpoints, P1 and P2 the
// control points.
type Cubic struct {
	P0, P1, P2, P3 Point
}

// maxSplits caps subdivision of a single curve.  2^32 sub-curves is far past
// double precision; pathological input degenerates to chords instead of
// recursing forever.
const maxSplits = 32

// flat reports whether the control points lie within flatness of the chord,
// i.e. whether replacing the curve by its chord discards no more than
// flatness of curvature.
func (c Cubic) flat(flatness float64) bool {
	return PerpDist(c.P1, c.P0, c.P3) <= flatness && PerpDist(c.P2, c.P0, c.P3) <= flatness
}

// split bisects the curve at t=1/2 by de Casteljau.
func (c Cubic) split() (Cubic, Cubic) {
	ab := Lerp(c.P0, c.P1, 0.5)
	bc := Lerp(c.P1, c.P2, 0.5)
	cd := Lerp(c.P2, c.P3, 0.5)
	abbc := Lerp(ab, bc, 0.5)
	bccd := Lerp(bc, cd, 0.5)
	mid := Lerp(abbc, bccd, 0.5)
	return Cubic{c.P0, ab, abbc, mid}, Cubic{mid, bccd, cd, c.P3}
}

// FlattenCubic converts a chain of cubic bezier curves into a polyline whose
// maximum perpendicular deviation from the curves is at most flatness.  The
// subdivision worklist is explicit rather than recursive, so adversarial
// input cannot exhaust the stack.  An empty chain yields nil.
func FlattenCubic(curves []Cubic, flatness float64) []Point {
	if len(curves) == 0 {
		return nil
	}
	if flatness <= 0 {
		flatness = 1e-3
	}
	type item struct {
		c     Cubic
		depth int
	}
	out := []Point{curves[0].P0}
	var stack []item
	for _, c := range curves {
		stack = append(stack[:0], item{c, 0})
		for len(stack) > 0 {
			it := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if it.depth >= maxSplits || it.c.flat(flatness) {
				out = append(out, it.c.P3)
				continue
			}
			a, b := it.c.split()
			// push the far half first so the near half pops first
			stack = append(stack, item{b, it.depth + 1}, item{a, it.depth + 1})
		}
	}
	return out
}
