package motion

import (
	"fmt"

	"github.com/plotterlab/axidraw/geom"
)

// DrawPath draws an open polyline through vertices (display units), lifting
// the pen over any out-of-bounds excursions and hopping between the
// in-bounds runs.  The pen finishes up, and the turtle finishes at the last
// input vertex whether or not it is reachable.
func (p *Plotter) DrawPath(vertices []geom.Point) error {
	if len(vertices) < 2 {
		return fmt.Errorf("motion: a path needs at least two vertices, got %d", len(vertices))
	}
	scale := p.cfg.Units.PerInch()
	pts := make([]geom.Point, len(vertices))
	for i, v := range vertices {
		pts[i] = geom.Point{X: v.X / scale, Y: v.Y / scale}
	}
	last := pts[len(pts)-1]

	if p.state != Connected {
		if err := p.notConnected(); err != nil {
			return err
		}
		p.turtle.X = last.X
		p.turtle.Y = last.Y
		p.turtle.PenUp = true
		return nil
	}

	for _, run := range geom.ClipPolyline(pts, p.bounds) {
		if !p.phys.PenUp {
			if err := p.penHardware(true); err != nil {
				return err
			}
		}
		if err := p.physMove(run[0]); err != nil {
			return err
		}
		if err := p.penHardware(false); err != nil {
			return err
		}
		for _, v := range run[1:] {
			if err := p.CheckStop(); err != nil {
				return err
			}
			if p.state != Connected {
				return nil
			}
			if err := p.physMove(v); err != nil {
				return err
			}
		}
	}
	if p.state == Connected && !p.phys.PenUp {
		if err := p.penHardware(true); err != nil {
			return err
		}
	}
	p.turtle.X = last.X
	p.turtle.Y = last.Y
	p.turtle.PenUp = true
	return nil
}

// WalkHome raises the pen and returns to the origin.
func (p *Plotter) WalkHome() error {
	if p.state != Connected {
		if err := p.notConnected(); err != nil {
			return err
		}
	}
	if err := p.PenUp(); err != nil {
		return err
	}
	if err := p.physMove(geom.Point{}); err != nil {
		return err
	}
	p.turtle.X = 0
	p.turtle.Y = 0
	return nil
}
