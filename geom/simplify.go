package geom

// Simplify removes vertices that contribute less than tolerance of
// perpendicular deviation.  Starting from a kept vertex, the run is extended
// as far as every interior vertex stays within tolerance of the chord to the
// candidate endpoint; the interior is then dropped and the walk continues
// from the new endpoint.  Inputs with fewer than three points are returned
// unchanged.
func Simplify(vertices []Point, tolerance float64) []Point {
	if len(vertices) < 3 {
		return vertices
	}
	out := []Point{vertices[0]}
	anchor := 0
	for anchor < len(vertices)-1 {
		end := anchor + 1
		for cand := anchor + 2; cand < len(vertices); cand++ {
			ok := true
			for j := anchor + 1; j < cand; j++ {
				if PerpDist(vertices[j], vertices[anchor], vertices[cand]) > tolerance {
					ok = false
					break
				}
			}
			if !ok {
				break
			}
			end = cand
		}
		out = append(out, vertices[end])
		anchor = end
	}
	return out
}
