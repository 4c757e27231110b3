package geom

import (
	"math"
	"testing"
)

var travel = Bounds{Min: Point{0, 0}, Max: Point{4, 2}}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClipSegmentFullyInsideUnchanged(t *testing.T) {
	segs := []Segment{
		{Point{0.5, 0.5}, Point{3.5, 1.5}},
		{Point{0, 0}, Point{4, 2}}, // corner to corner, on the boundary
		{Point{1, 1}, Point{1, 1}}, // degenerate
	}
	for _, s := range segs {
		got, ok := ClipSegment(s, travel)
		if !ok {
			t.Errorf("segment %v should be accepted", s)
			continue
		}
		if got != s {
			t.Errorf("in-bounds segment mutated: %v -> %v", s, got)
		}
	}
}

func TestClipSegmentFullyOutsideOneSideRejected(t *testing.T) {
	segs := []Segment{
		{Point{-1, 0.5}, Point{-2, 1.5}},  // left
		{Point{5, 0}, Point{6, 2}},        // right
		{Point{1, 3}, Point{3, 2.5}},      // top
		{Point{1, -1}, Point{3, -0.5}},    // bottom
		{Point{-1, 0.5}, Point{-1, 1.5}},  // vertical, left
		{Point{0.5, -1}, Point{3.5, -1}},  // horizontal, below
	}
	for _, s := range segs {
		if _, ok := ClipSegment(s, travel); ok {
			t.Errorf("segment %v should be rejected", s)
		}
	}
}

func TestClipSegmentCrossingStaysOnRectangle(t *testing.T) {
	segs := []Segment{
		{Point{2, 1}, Point{2, 5}},     // exits through the top, vertical
		{Point{-2, 1}, Point{6, 1}},    // crosses left and right, horizontal
		{Point{0, 1}, Point{3, -1}},    // exits through the bottom at a slope
		{Point{-1, -1}, Point{5, 3}},   // diagonal through both corners' region
	}
	for _, s := range segs {
		got, ok := ClipSegment(s, travel)
		if !ok {
			t.Fatalf("segment %v should be accepted after truncation", s)
		}
		for _, p := range []Point{got.P0, got.P1} {
			if !travel.Contains(p) {
				t.Errorf("clipped endpoint %v outside bounds for input %v", p, s)
			}
		}
		// each clipped endpoint must be a convex combination of the inputs
		for _, p := range []Point{got.P0, got.P1} {
			dx := s.P1.X - s.P0.X
			dy := s.P1.Y - s.P0.Y
			var tt float64
			if math.Abs(dx) > math.Abs(dy) {
				tt = (p.X - s.P0.X) / dx
			} else {
				tt = (p.Y - s.P0.Y) / dy
			}
			if tt < -1e-9 || tt > 1+1e-9 {
				t.Errorf("clipped point %v not on original segment %v (t=%v)", p, s, tt)
			}
			on := Lerp(s.P0, s.P1, tt)
			if !almost(on.X, p.X) || !almost(on.Y, p.Y) {
				t.Errorf("clipped point %v off the line of %v", p, s)
			}
		}
	}
}

func TestClipSegmentBoundaryExitPoint(t *testing.T) {
	// moveto(0,1) then lineto(3,-1) against [[0,0],[4,2]]: the pen leaves
	// the envelope where the line crosses y=0, at x=1.5
	got, ok := ClipSegment(Segment{Point{0, 1}, Point{3, -1}}, travel)
	if !ok {
		t.Fatal("crossing segment rejected")
	}
	if got.P0 != (Point{0, 1}) {
		t.Errorf("in-bounds start moved: %v", got.P0)
	}
	if !almost(got.P1.X, 1.5) || !almost(got.P1.Y, 0) {
		t.Errorf("expected exit at (1.5,0), got %v", got.P1)
	}
}

func TestClipPolylineSplitsIntoRuns(t *testing.T) {
	verts := []Point{{0, 1}, {1, 1}, {3, -1}, {5, 1}}
	runs := ClipPolyline(verts, travel)
	if len(runs) != 2 {
		t.Fatalf("expected 2 disjoint in-bounds runs, got %d: %v", len(runs), runs)
	}
	for _, run := range runs {
		if len(run) < 2 {
			t.Errorf("run with fewer than 2 vertices: %v", run)
		}
		for _, p := range run {
			if !travel.Contains(p) {
				t.Errorf("run vertex %v outside bounds", p)
			}
		}
	}
	// the first run ends where the chain exits through y=0
	first := runs[0]
	end := first[len(first)-1]
	if !almost(end.Y, 0) {
		t.Errorf("first run should end on the bottom edge, got %v", end)
	}
	// the second run starts where it re-enters through y=0
	if !almost(runs[1][0].Y, 0) {
		t.Errorf("second run should start on the bottom edge, got %v", runs[1][0])
	}
}

func TestClipPolylineFullyInside(t *testing.T) {
	verts := []Point{{0.5, 0.5}, {1, 1}, {2, 0.5}, {3, 1.5}}
	runs := ClipPolyline(verts, travel)
	if len(runs) != 1 {
		t.Fatalf("expected a single run, got %d", len(runs))
	}
	if len(runs[0]) != len(verts) {
		t.Fatalf("expected %d vertices, got %d", len(verts), len(runs[0]))
	}
	for i := range verts {
		if runs[0][i] != verts[i] {
			t.Errorf("vertex %d mutated: %v -> %v", i, verts[i], runs[0][i])
		}
	}
}

func TestBoundsClamp(t *testing.T) {
	cases := []struct{ in, want Point }{
		{Point{-1, -1}, Point{0, 0}},
		{Point{5, 3}, Point{4, 2}},
		{Point{2, 1}, Point{2, 1}},
		{Point{2, 9}, Point{2, 2}},
	}
	for _, c := range cases {
		if got := travel.Clamp(c.in); got != c.want {
			t.Errorf("Clamp(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
