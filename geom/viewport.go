package geom

import (
	"strconv"
	"strings"
)

// Viewport is the result of mapping an SVG viewBox onto a document rectangle:
// user coordinates transform as x' = x*ScaleX + OffsetX (likewise Y).
type Viewport struct {
	ScaleX  float64
	ScaleY  float64
	OffsetX float64
	OffsetY float64
}

// identity is the fallback for missing or degenerate input.
var identity = Viewport{ScaleX: 1, ScaleY: 1}

// Apply maps p through the viewport transform.
func (v Viewport) Apply(p Point) Point {
	return Point{X: p.X*v.ScaleX + v.OffsetX, Y: p.Y*v.ScaleY + v.OffsetY}
}

// parseViewBox accepts the SVG viewBox grammar: four numbers separated by
// whitespace and/or commas.
func parseViewBox(s string) (minX, minY, width, height float64, ok bool) {
	f := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(f) != 4 {
		return 0, 0, 0, 0, false
	}
	vals := make([]float64, 4)
	for i, str := range f {
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], vals[3], true
}

// alignFraction maps an alignment keyword half ("Min", "Mid", "Max") to the
// fraction of leftover space placed before the content.
func alignFraction(word string) float64 {
	switch word {
	case "Min":
		return 0
	case "Max":
		return 1
	default:
		return 0.5
	}
}

// ViewportTransform computes the SVG viewBox/preserveAspectRatio mapping from
// the viewBox coordinate system onto a document of docWidth x docHeight.  All
// nine alignment keywords and the meet/slice modes are honored, as is
// preserveAspectRatio="none" (non-uniform fill).  A missing or invalid
// viewBox, or non-positive document dimensions, yield the identity transform.
func ViewportTransform(viewBox, preserveAspect string, docWidth, docHeight float64) Viewport {
	minX, minY, vbW, vbH, ok := parseViewBox(viewBox)
	if !ok || vbW <= 0 || vbH <= 0 || docWidth <= 0 || docHeight <= 0 {
		return identity
	}
	sx := docWidth / vbW
	sy := docHeight / vbH

	fields := strings.Fields(preserveAspect)
	align := "xMidYMid"
	mode := "meet"
	if len(fields) > 0 && fields[0] != "" {
		align = fields[0]
	}
	if len(fields) > 1 {
		mode = fields[1]
	}

	if align == "none" {
		return Viewport{
			ScaleX:  sx,
			ScaleY:  sy,
			OffsetX: -minX * sx,
			OffsetY: -minY * sy,
		}
	}

	// uniform scale: meet fits the whole viewBox inside the document,
	// slice covers the document entirely
	s := sx
	if mode == "slice" {
		if sy > s {
			s = sy
		}
	} else {
		if sy < s {
			s = sy
		}
	}

	fx, fy := 0.5, 0.5
	// keyword shape is xA..YB..; tolerate anything else by keeping Mid
	if len(align) == 8 && strings.HasPrefix(align, "x") {
		fx = alignFraction(align[1:4])
		fy = alignFraction(align[5:8])
	}
	return Viewport{
		ScaleX:  s,
		ScaleY:  s,
		OffsetX: -minX*s + fx*(docWidth-vbW*s),
		OffsetY: -minY*s + fy*(docHeight-vbH*s),
	}
}
