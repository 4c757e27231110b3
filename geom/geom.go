// Package geom provides the planar geometry used to keep pen motion inside
// the travel envelope: rectangle clipping, polyline clipping, bezier
// flattening, chain simplification, and the SVG viewport mapping.
//
// Everything in this package is a pure function; no I/O, no shared state.
package geom

import "math"

// Cohen-Sutherland outcodes.  A point strictly inside the rectangle encodes
// to zero; each set bit names a violated side.
const (
	codeInside = 0
	codeLeft   = 1
	codeRight  = 2
	codeBottom = 4
	codeTop    = 8
)

// Point is a position in the XY plane, in machine-native inches unless
// the caller says otherwise.
type Point struct {
	X float64
	Y float64
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Scale returns p scaled by k about the origin.
func (p Point) Scale(k float64) Point {
	return Point{p.X * k, p.Y * k}
}

// Dist returns the euclidean distance from p to q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Lerp returns the point a fraction t of the way from p to q.
func Lerp(p, q Point, t float64) Point {
	return Point{p.X + (q.X-p.X)*t, p.Y + (q.Y-p.Y)*t}
}

// PerpDist returns the perpendicular distance from p to the infinite line
// through a and b.  If a and b coincide the point distance is returned.
func PerpDist(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return p.Dist(a)
	}
	return math.Abs(dy*(p.X-a.X)-dx*(p.Y-a.Y)) / l
}

// Segment is an ordered pair of points representing a candidate move.
type Segment struct {
	P0 Point
	P1 Point
}

// Bounds is the axis-aligned travel envelope.  Min and Max are corners;
// Min.X <= Max.X and Min.Y <= Max.Y is assumed, not checked.
type Bounds struct {
	Min Point
	Max Point
}

// Contains reports whether p lies inside or on the boundary of b.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Clamp returns p with each coordinate forced into the envelope.
func (b Bounds) Clamp(p Point) Point {
	return Point{
		X: math.Min(math.Max(p.X, b.Min.X), b.Max.X),
		Y: math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y),
	}
}

func (b Bounds) outcode(p Point) int {
	code := codeInside
	if p.X < b.Min.X {
		code |= codeLeft
	} else if p.X > b.Max.X {
		code |= codeRight
	}
	if p.Y < b.Min.Y {
		code |= codeBottom
	} else if p.Y > b.Max.Y {
		code |= codeTop
	}
	return code
}

// ClipSegment clips s against b with the Cohen-Sutherland algorithm.  The
// second return is false when no part of s lies inside b.  The input is not
// mutated; the returned segment is a sub-segment of the original with both
// endpoints inside or on the rectangle.
func ClipSegment(s Segment, b Bounds) (Segment, bool) {
	p0, p1 := s.P0, s.P1
	c0, c1 := b.outcode(p0), b.outcode(p1)
	for {
		if c0|c1 == 0 {
			// trivial accept
			return Segment{p0, p1}, true
		}
		if c0&c1 != 0 {
			// both endpoints violate the same side
			return Segment{}, false
		}
		// pick the endpoint that is outside and slide it to the nearest
		// violated boundary line
		c := c0
		if c == codeInside {
			c = c1
		}
		dx := p1.X - p0.X
		dy := p1.Y - p0.Y
		var p Point
		switch {
		case c&codeTop != 0:
			if dy == 0 {
				return Segment{}, false
			}
			p = Point{p0.X + dx*(b.Max.Y-p0.Y)/dy, b.Max.Y}
		case c&codeBottom != 0:
			if dy == 0 {
				return Segment{}, false
			}
			p = Point{p0.X + dx*(b.Min.Y-p0.Y)/dy, b.Min.Y}
		case c&codeRight != 0:
			if dx == 0 {
				return Segment{}, false
			}
			p = Point{b.Max.X, p0.Y + dy*(b.Max.X-p0.X)/dx}
		case c&codeLeft != 0:
			if dx == 0 {
				return Segment{}, false
			}
			p = Point{b.Min.X, p0.Y + dy*(b.Min.X-p0.X)/dx}
		}
		if c == c0 {
			p0 = p
			c0 = b.outcode(p0)
		} else {
			p1 = p
			c1 = b.outcode(p1)
		}
	}
}

// ClipPolyline clips the open polyline through vertices against b, clipping
// every interior segment independently, and returns the in-bounds sub-runs in
// order.  A run always has at least two vertices.  Disjoint runs arise when
// the chain exits and re-enters the envelope.
func ClipPolyline(vertices []Point, b Bounds) [][]Point {
	const eps = 1e-9
	var runs [][]Point
	var run []Point
	for i := 0; i+1 < len(vertices); i++ {
		seg, ok := ClipSegment(Segment{vertices[i], vertices[i+1]}, b)
		if !ok {
			if len(run) >= 2 {
				runs = append(runs, run)
			}
			run = nil
			continue
		}
		if len(run) == 0 {
			run = []Point{seg.P0, seg.P1}
			continue
		}
		last := run[len(run)-1]
		if last.Dist(seg.P0) > eps {
			// the chain left the envelope and came back somewhere else
			runs = append(runs, run)
			run = []Point{seg.P0, seg.P1}
			continue
		}
		run = append(run, seg.P1)
	}
	if len(run) >= 2 {
		runs = append(runs, run)
	}
	return runs
}
