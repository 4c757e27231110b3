package geom

import "testing"

func TestViewportIdentityFallbacks(t *testing.T) {
	cases := []struct {
		viewBox string
		w, h    float64
	}{
		{"", 100, 100},
		{"0 0 100", 100, 100},
		{"0 0 abc 100", 100, 100},
		{"0 0 0 100", 100, 100},   // zero width viewBox
		{"0 0 100 100", 0, 100},   // zero doc width
		{"0 0 100 100", 100, -50}, // negative doc height
	}
	for _, c := range cases {
		vp := ViewportTransform(c.viewBox, "xMidYMid meet", c.w, c.h)
		if vp != identity {
			t.Errorf("viewBox %q doc %vx%v: expected identity, got %+v", c.viewBox, c.w, c.h, vp)
		}
	}
}

func TestViewportNoneNonUniform(t *testing.T) {
	vp := ViewportTransform("0 0 100 50", "none", 200, 200)
	if vp.ScaleX != 2 || vp.ScaleY != 4 {
		t.Errorf("none should fill both axes, got %+v", vp)
	}
	if vp.OffsetX != 0 || vp.OffsetY != 0 {
		t.Errorf("zero-origin viewBox should have no offset, got %+v", vp)
	}
}

func TestViewportMeetCentersLeftoverSpace(t *testing.T) {
	// viewBox twice as wide as tall, square document: meet scales by width,
	// vertical leftover is split by Mid
	vp := ViewportTransform("0 0 100 50", "xMidYMid meet", 200, 200)
	if vp.ScaleX != 2 || vp.ScaleY != 2 {
		t.Fatalf("expected uniform scale 2, got %+v", vp)
	}
	if vp.OffsetX != 0 {
		t.Errorf("no horizontal leftover expected, got %v", vp.OffsetX)
	}
	if vp.OffsetY != 50 {
		t.Errorf("expected vertical offset 50, got %v", vp.OffsetY)
	}
}

func TestViewportSliceCovers(t *testing.T) {
	vp := ViewportTransform("0 0 100 50", "xMinYMin slice", 200, 200)
	if vp.ScaleX != 4 || vp.ScaleY != 4 {
		t.Fatalf("slice should take the larger scale, got %+v", vp)
	}
	if vp.OffsetX != 0 || vp.OffsetY != 0 {
		t.Errorf("Min alignment puts content at the origin, got %+v", vp)
	}
}

func TestViewportAlignmentKeywords(t *testing.T) {
	// 100x50 viewBox in 200x200 doc, meet: scale 2, leftover 100 vertically
	cases := []struct {
		align   string
		offsetY float64
	}{
		{"xMidYMin", 0},
		{"xMidYMid", 50},
		{"xMidYMax", 100},
	}
	for _, c := range cases {
		vp := ViewportTransform("0 0 100 50", c.align+" meet", 200, 200)
		if vp.OffsetY != c.offsetY {
			t.Errorf("%s: expected offsetY %v, got %v", c.align, c.offsetY, vp.OffsetY)
		}
	}
}

func TestViewportNonzeroOrigin(t *testing.T) {
	vp := ViewportTransform("10 20 100 50", "none", 100, 50)
	// scale 1; content shifted so that (10,20) maps to the document origin
	if vp.ScaleX != 1 || vp.ScaleY != 1 {
		t.Fatalf("expected unit scale, got %+v", vp)
	}
	if vp.OffsetX != -10 || vp.OffsetY != -20 {
		t.Errorf("expected offsets (-10,-20), got %+v", vp)
	}
}

func TestViewportCommaSeparated(t *testing.T) {
	vp := ViewportTransform("0,0,100,50", "none", 200, 100)
	if vp.ScaleX != 2 || vp.ScaleY != 2 {
		t.Errorf("comma separated viewBox should parse, got %+v", vp)
	}
}
