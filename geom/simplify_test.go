package geom

import "testing"

func TestSimplifySmallInputsUnchanged(t *testing.T) {
	for _, verts := range [][]Point{
		nil,
		{},
		{{1, 1}},
		{{1, 1}, {2, 2}},
	} {
		got := Simplify(verts, 0.1)
		if len(got) != len(verts) {
			t.Errorf("input of %d vertices should pass through, got %d", len(verts), len(got))
		}
	}
}

func TestSimplifyCollinearCollapses(t *testing.T) {
	verts := []Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {4, 0}}
	got := Simplify(verts, 1e-6)
	if len(got) != 2 {
		t.Fatalf("collinear chain should collapse to endpoints, got %v", got)
	}
	if got[0] != verts[0] || got[1] != verts[4] {
		t.Errorf("endpoints must be preserved, got %v", got)
	}
}

func TestSimplifyRespectsTolerance(t *testing.T) {
	verts := []Point{{0, 0}, {1, 0.5}, {2, 0}, {3, 0.5}, {4, 0}}
	got := Simplify(verts, 0.1)
	// nothing is within 0.1 of the long chords; every vertex survives
	if len(got) != len(verts) {
		t.Fatalf("zig-zag above tolerance must be kept, got %v", got)
	}
	loose := Simplify(verts, 1.0)
	if len(loose) >= len(verts) {
		t.Errorf("generous tolerance should drop vertices, got %v", loose)
	}
}

func TestSimplifyNeverLongerAndWithinTolerance(t *testing.T) {
	verts := []Point{
		{0, 0}, {0.5, 0.01}, {1, -0.01}, {1.5, 0.02}, {2, 0},
		{2.5, 1}, {3, 2}, {3.5, 2.01}, {4, 2},
	}
	tol := 0.05
	got := Simplify(verts, tol)
	if len(got) > len(verts) {
		t.Fatalf("output longer than input: %d > %d", len(got), len(verts))
	}
	// every dropped vertex must lie within tol of the chord that replaced it
	ki := 0
	for i, v := range verts {
		if ki < len(got) && v == got[ki] {
			ki++
			continue
		}
		// find the chord bracketing this original index
		var a, b Point
		found := false
		for j := 0; j+1 < len(got); j++ {
			ai := indexOf(verts, got[j])
			bi := indexOf(verts, got[j+1])
			if ai < i && i < bi {
				a, b = got[j], got[j+1]
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("vertex %d (%v) not bracketed by any kept chord", i, v)
		}
		if d := PerpDist(v, a, b); d > tol {
			t.Errorf("dropped vertex %v deviates %v from chord %v-%v", v, d, a, b)
		}
	}
}

func indexOf(verts []Point, p Point) int {
	for i, v := range verts {
		if v == p {
			return i
		}
	}
	return -1
}
